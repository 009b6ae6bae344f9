package domain

import "fmt"

// AnchorType labels an exemplar phrase with the intent it represents.
type AnchorType string

const (
	AnchorGreeting AnchorType = "GREETING"
	AnchorUnsafe   AnchorType = "UNSAFE"
)

// ParseAnchorType validates a caller-supplied anchor type.
func ParseAnchorType(s string) (AnchorType, error) {
	switch AnchorType(s) {
	case AnchorGreeting, AnchorUnsafe:
		return AnchorType(s), nil
	}
	return "", fmt.Errorf("unknown anchor type: %q", s)
}

// Anchor is a labeled exemplar phrase used for nearest-neighbor intent
// classification in semantic routing mode.
type Anchor struct {
	Text   string
	Type   AnchorType
	Vector []float32
}

// RouteDecision classifies an incoming query before retrieval runs.
// It is derived per request and never persisted.
type RouteDecision string

const (
	RouteGreeting RouteDecision = "GREETING"
	RouteUnsafe   RouteDecision = "UNSAFE"
	RouteBusiness RouteDecision = "BUSINESS"
)
