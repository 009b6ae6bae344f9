// Package routing classifies incoming queries before any retrieval work
// happens. Two interchangeable strategies exist: a keyword matcher and a
// nearest-anchor semantic classifier.
package routing

import (
	"context"

	"policy-copilot/internal/domain"
)

// Router classifies a raw user query. Implementations never fail the
// request: when classification itself is unavailable they return
// RouteBusiness so the retrieval pipeline stays reachable.
type Router interface {
	Route(ctx context.Context, query string) domain.RouteDecision
}
