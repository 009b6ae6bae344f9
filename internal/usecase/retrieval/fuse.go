package retrieval

import (
	"sort"

	"policy-copilot/internal/domain"
)

// Fuse merges per-variant result lists into one list keyed by chunk id,
// keeping the maximum score seen for each chunk. Max-score fusion is
// order-independent, so variant completion order never changes the output.
func Fuse(resultSets ...[]domain.ScoredDocument) []domain.ScoredDocument {
	best := make(map[string]domain.ScoredDocument)
	for _, results := range resultSets {
		for _, doc := range results {
			if existing, ok := best[doc.ID]; !ok || doc.Score > existing.Score {
				best[doc.ID] = doc
			}
		}
	}

	fused := make([]domain.ScoredDocument, 0, len(best))
	for _, doc := range best {
		fused = append(fused, doc)
	}
	sort.SliceStable(fused, func(i, j int) bool {
		if fused[i].Score != fused[j].Score {
			return fused[i].Score > fused[j].Score
		}
		return fused[i].ID < fused[j].ID
	})
	return fused
}
