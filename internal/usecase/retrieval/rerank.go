package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"policy-copilot/internal/domain"
)

// RerankConfig controls the cross-encoder stage.
type RerankConfig struct {
	Enabled bool
	TopK    int
	Timeout time.Duration
}

// Rerank reorders fused candidates with a cross-encoder and truncates to
// TopK. Disabled reranking falls back to similarity-score order. Reranker
// failure is a hard error while the stage is enabled: silently serving
// unreranked results would mask a broken model endpoint.
func Rerank(ctx context.Context, reranker domain.Reranker, cfg RerankConfig, query string, docs []domain.ScoredDocument, logger *slog.Logger) ([]domain.ScoredDocument, error) {
	topK := cfg.TopK
	if topK <= 0 {
		topK = 5
	}

	if !cfg.Enabled || len(docs) == 0 {
		return truncateByScore(docs, topK), nil
	}

	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	candidates := make([]domain.RerankCandidate, len(docs))
	byID := make(map[string]domain.ScoredDocument, len(docs))
	for i, doc := range docs {
		candidates[i] = domain.RerankCandidate{ID: doc.ID, Content: doc.Content, Score: doc.Score}
		byID[doc.ID] = doc
	}

	results, err := reranker.Rerank(ctx, query, candidates)
	if err != nil {
		return nil, fmt.Errorf("reranking failed: %w", err)
	}
	// The reranker scores every candidate it is given. A short reply would
	// silently shrink the context pool, so treat it like any other failure.
	if len(results) != len(candidates) {
		return nil, fmt.Errorf("reranker returned %d results for %d candidates", len(results), len(candidates))
	}

	// Cross-encoder scores replace similarity scores from here on; the two
	// scales are not comparable.
	reranked := make([]domain.ScoredDocument, 0, len(results))
	for _, r := range results {
		doc, ok := byID[r.ID]
		if !ok {
			return nil, fmt.Errorf("reranker returned unknown candidate id %q", r.ID)
		}
		doc.Score = r.Score
		reranked = append(reranked, doc)
	}

	sort.SliceStable(reranked, func(i, j int) bool {
		return reranked[i].Score > reranked[j].Score
	})
	if len(reranked) > topK {
		reranked = reranked[:topK]
	}

	logger.Info("rerank_stage_completed",
		slog.Int("candidate_count", len(docs)),
		slog.Int("kept", len(reranked)),
		slog.String("model", reranker.ModelName()))
	return reranked, nil
}

func truncateByScore(docs []domain.ScoredDocument, topK int) []domain.ScoredDocument {
	sorted := make([]domain.ScoredDocument, len(docs))
	copy(sorted, docs)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Score > sorted[j].Score
	})
	if len(sorted) > topK {
		sorted = sorted[:topK]
	}
	return sorted
}
