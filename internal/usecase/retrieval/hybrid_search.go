package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"policy-copilot/internal/domain"
)

// sparsePrefetchMultiplier sizes the sparse candidate pool relative to the
// final limit, so dense rescoring has headroom to reorder.
const sparsePrefetchMultiplier = 2

// HybridSearcher runs vector search over the policy collection for one or
// more query variants in parallel and fuses the results. With hybrid mode on,
// each variant does a two-stage query: sparse prefetch then dense rescore.
type HybridSearcher struct {
	index         domain.VectorIndex
	dense         domain.DenseEncoder
	sparse        domain.SparseEncoder
	collection    string
	hybridEnabled bool
	limit         int
	logger        *slog.Logger
}

// NewHybridSearcher constructs a searcher. sparse may be nil when
// hybridEnabled is false.
func NewHybridSearcher(index domain.VectorIndex, dense domain.DenseEncoder, sparse domain.SparseEncoder, collection string, hybridEnabled bool, limit int, logger *slog.Logger) *HybridSearcher {
	return &HybridSearcher{
		index:         index,
		dense:         dense,
		sparse:        sparse,
		collection:    collection,
		hybridEnabled: hybridEnabled,
		limit:         limit,
		logger:        logger,
	}
}

// Search retrieves candidates for every variant and fuses them by max score.
// A single failed variant is tolerated as long as at least one succeeds;
// only total failure returns ErrRetrievalUnavailable.
func (s *HybridSearcher) Search(ctx context.Context, variants []string) ([]domain.ScoredDocument, error) {
	if len(variants) == 0 {
		return nil, fmt.Errorf("%w: no query variants", domain.ErrRetrievalUnavailable)
	}

	type searchResult struct {
		index   int
		results []domain.ScoredDocument
		err     error
	}

	searchStart := time.Now()
	resultsChan := make(chan searchResult, len(variants))
	var wg sync.WaitGroup

	for i, variant := range variants {
		wg.Add(1)
		go func(idx int, query string) {
			defer wg.Done()
			results, err := s.searchOne(ctx, query)
			resultsChan <- searchResult{index: idx, results: results, err: err}
		}(i, variant)
	}

	go func() {
		wg.Wait()
		close(resultsChan)
	}()

	resultSets := make([][]domain.ScoredDocument, 0, len(variants))
	var lastErr error
	failures := 0
	for sr := range resultsChan {
		if sr.err != nil {
			failures++
			lastErr = sr.err
			s.logger.Warn("variant_search_failed",
				slog.Int("variant_index", sr.index),
				slog.String("error", sr.err.Error()))
			continue
		}
		resultSets = append(resultSets, sr.results)
	}

	if len(resultSets) == 0 {
		return nil, fmt.Errorf("%w: all %d variants failed: %v", domain.ErrRetrievalUnavailable, len(variants), lastErr)
	}

	fused := Fuse(resultSets...)
	s.logger.Info("parallel_vector_search_completed",
		slog.Int("variant_count", len(variants)),
		slog.Int("failed_variants", failures),
		slog.Int("fused_count", len(fused)),
		slog.Bool("hybrid", s.hybridEnabled),
		slog.Int64("duration_ms", time.Since(searchStart).Milliseconds()))
	return fused, nil
}

func (s *HybridSearcher) searchOne(ctx context.Context, query string) ([]domain.ScoredDocument, error) {
	denseVector, err := s.dense.Encode(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to encode query: %w", err)
	}

	vectorQuery := domain.VectorQuery{
		Dense:       denseVector,
		Limit:       s.limit,
		WithPayload: true,
	}
	if s.hybridEnabled {
		sparseVector, err := s.sparse.EncodeSparse(ctx, query)
		if err != nil {
			return nil, fmt.Errorf("failed to sparse-encode query: %w", err)
		}
		vectorQuery.Prefetch = &domain.SparsePrefetch{
			Vector: *sparseVector,
			Limit:  s.limit * sparsePrefetchMultiplier,
		}
	}

	points, err := s.index.Query(ctx, s.collection, vectorQuery)
	if err != nil {
		return nil, fmt.Errorf("vector query failed: %w", err)
	}

	docs := make([]domain.ScoredDocument, 0, len(points))
	for _, p := range points {
		docs = append(docs, domain.DocumentFromPayload(p.ID, p.Score, p.Payload))
	}
	return docs, nil
}
