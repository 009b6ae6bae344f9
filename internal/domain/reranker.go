package domain

import "context"

// RerankCandidate is a fused document submitted for cross-encoder scoring.
type RerankCandidate struct {
	// ID is the chunk id, used to map results back.
	ID string
	// Content is the text scored against the query.
	Content string
	// Score is the retrieval score before reranking (logging only).
	Score float32
}

// RerankResult carries the cross-encoder relevance score for one candidate.
type RerankResult struct {
	ID    string
	Score float32
}

// Reranker scores a candidate batch with a cross-encoder model. The response
// has the same cardinality as the input. Unlike soft-degrading stages, a
// reranker failure while reranking is enabled propagates to the caller;
// silently skipping the pass would change result ordering unpredictably.
type Reranker interface {
	Rerank(ctx context.Context, query string, candidates []RerankCandidate) ([]RerankResult, error)
	ModelName() string
}
