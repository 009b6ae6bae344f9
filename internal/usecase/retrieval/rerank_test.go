package retrieval

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"policy-copilot/internal/domain"
)

type stubReranker struct {
	results []domain.RerankResult
	err     error
	calls   int
}

func (s *stubReranker) Rerank(ctx context.Context, query string, candidates []domain.RerankCandidate) ([]domain.RerankResult, error) {
	s.calls++
	return s.results, s.err
}

func (s *stubReranker) ModelName() string { return "stub-reranker" }

func rerankDocs() []domain.ScoredDocument {
	return []domain.ScoredDocument{
		{ID: "a", Content: "first", Score: 0.9},
		{ID: "b", Content: "second", Score: 0.8},
		{ID: "c", Content: "third", Score: 0.7},
	}
}

func TestRerank_ReordersByCrossEncoderScore(t *testing.T) {
	reranker := &stubReranker{results: []domain.RerankResult{
		{ID: "c", Score: 0.99},
		{ID: "a", Score: 0.50},
		{ID: "b", Score: 0.10},
	}}

	out, err := Rerank(context.Background(), reranker, RerankConfig{Enabled: true, TopK: 2}, "q", rerankDocs(), testLogger())
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "c", out[0].ID)
	assert.InDelta(t, 0.99, float64(out[0].Score), 1e-6)
	assert.Equal(t, "a", out[1].ID)
}

func TestRerank_DisabledSortsAndTruncates(t *testing.T) {
	reranker := &stubReranker{}

	docs := []domain.ScoredDocument{
		{ID: "low", Score: 0.1},
		{ID: "high", Score: 0.9},
		{ID: "mid", Score: 0.5},
	}
	out, err := Rerank(context.Background(), reranker, RerankConfig{Enabled: false, TopK: 2}, "q", docs, testLogger())
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "high", out[0].ID)
	assert.Equal(t, "mid", out[1].ID)
	assert.Zero(t, reranker.calls)
}

func TestRerank_EmptyCandidatesSkipsCall(t *testing.T) {
	reranker := &stubReranker{}

	out, err := Rerank(context.Background(), reranker, RerankConfig{Enabled: true, TopK: 5}, "q", nil, testLogger())
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.Zero(t, reranker.calls)
}

func TestRerank_ShortReplyIsAnError(t *testing.T) {
	// Two scores for three candidates means the service dropped one.
	reranker := &stubReranker{results: []domain.RerankResult{
		{ID: "a", Score: 0.9},
		{ID: "b", Score: 0.5},
	}}

	_, err := Rerank(context.Background(), reranker, RerankConfig{Enabled: true, TopK: 5}, "q", rerankDocs(), testLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2 results for 3 candidates")
}

func TestRerank_UnknownCandidateIDIsAnError(t *testing.T) {
	reranker := &stubReranker{results: []domain.RerankResult{
		{ID: "a", Score: 0.9},
		{ID: "b", Score: 0.5},
		{ID: "zz", Score: 0.1},
	}}

	_, err := Rerank(context.Background(), reranker, RerankConfig{Enabled: true, TopK: 5}, "q", rerankDocs(), testLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown candidate id")
}

func TestRerank_FailurePropagates(t *testing.T) {
	reranker := &stubReranker{err: errors.New("reranker down")}

	_, err := Rerank(context.Background(), reranker, RerankConfig{Enabled: true, TopK: 5}, "q", rerankDocs(), testLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reranker down")
}

func TestRerank_DefaultTopK(t *testing.T) {
	docs := make([]domain.ScoredDocument, 8)
	for i := range docs {
		docs[i] = domain.ScoredDocument{ID: string(rune('a' + i)), Score: float32(i)}
	}

	out, err := Rerank(context.Background(), &stubReranker{}, RerankConfig{Enabled: false}, "q", docs, testLogger())
	require.NoError(t, err)
	assert.Len(t, out, 5)
}
