package routing

import (
	"context"
	"log/slog"

	"policy-copilot/internal/domain"
)

// Default similarity thresholds for the nearest-anchor decision. The unsafe
// bar sits lower than the greeting bar: missing a greeting costs a slightly
// stiff answer, missing an unsafe query costs much more.
const (
	DefaultUnsafeThreshold   = 0.60
	DefaultGreetingThreshold = 0.65
)

// SemanticRouter classifies queries by similarity to labeled anchor phrases.
// When the anchor index or the encoder is unavailable it fails open to
// BUSINESS so retrieval keeps working, and logs the degraded decision.
type SemanticRouter struct {
	store             *AnchorStore
	encoder           domain.DenseEncoder
	unsafeThreshold   float32
	greetingThreshold float32
	logger            *slog.Logger
}

func NewSemanticRouter(store *AnchorStore, encoder domain.DenseEncoder, unsafeThreshold, greetingThreshold float32, logger *slog.Logger) *SemanticRouter {
	return &SemanticRouter{
		store:             store,
		encoder:           encoder,
		unsafeThreshold:   unsafeThreshold,
		greetingThreshold: greetingThreshold,
		logger:            logger,
	}
}

var _ Router = (*SemanticRouter)(nil)

func (r *SemanticRouter) Route(ctx context.Context, query string) domain.RouteDecision {
	// Initialize is a no-op once it has succeeded; retrying here lets the
	// router recover after a failed startup initialization.
	if err := r.store.Initialize(ctx); err != nil {
		r.logger.Warn("semantic_routing_degraded",
			slog.Bool("fail_open", true),
			slog.String("stage", "initialize"),
			slog.String("error", err.Error()))
		return domain.RouteBusiness
	}

	vector, err := r.encoder.Encode(ctx, query)
	if err != nil {
		r.logger.Warn("semantic_routing_degraded",
			slog.Bool("fail_open", true),
			slog.String("stage", "encode"),
			slog.String("error", err.Error()))
		return domain.RouteBusiness
	}

	anchorType, score, found, err := r.store.Nearest(ctx, vector)
	if err != nil {
		r.logger.Warn("semantic_routing_degraded",
			slog.Bool("fail_open", true),
			slog.String("stage", "anchor_query"),
			slog.String("error", err.Error()))
		return domain.RouteBusiness
	}
	if !found {
		return domain.RouteBusiness
	}

	decision := domain.RouteBusiness
	switch anchorType {
	case domain.AnchorUnsafe:
		if score > r.unsafeThreshold {
			decision = domain.RouteUnsafe
		}
	case domain.AnchorGreeting:
		if score > r.greetingThreshold {
			decision = domain.RouteGreeting
		}
	}

	r.logger.Info("query_routed",
		slog.String("decision", string(decision)),
		slog.String("nearest_anchor_type", string(anchorType)),
		slog.Float64("score", float64(score)),
		slog.String("method", "semantic"))
	return decision
}
