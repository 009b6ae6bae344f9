// Package retrieval implements the retrieval pipeline: query expansion,
// hybrid vector search with fan-out over variants, score fusion, and
// cross-encoder reranking.
package retrieval

import (
	"context"
	"log/slog"
	"strings"

	"policy-copilot/internal/domain"
)

// expansionSeparator delimits query variants in the expansion model's reply.
// A line-based format is too fragile: the model may wrap a single variant.
const expansionSeparator = "||"

const expansionSystemPrompt = `You are a search query expansion assistant for an insurance policy knowledge base.
Given a user question, produce 2 to 3 alternative phrasings that could match relevant policy text: use synonyms, expand abbreviations, and restate colloquial wording in policy terms.
Output ONLY the alternative phrasings separated by "||" on a single line. Do not number them, do not explain, do not repeat the original question.`

// QueryExpander widens a query into retrieval variants via a chat model.
// Expansion is best effort: any failure degrades to the original query alone.
type QueryExpander struct {
	chat        domain.ChatClient
	enabled     bool
	maxVariants int
	logger      *slog.Logger
}

func NewQueryExpander(chat domain.ChatClient, enabled bool, maxVariants int, logger *slog.Logger) *QueryExpander {
	if maxVariants <= 0 {
		maxVariants = 3
	}
	return &QueryExpander{
		chat:        chat,
		enabled:     enabled,
		maxVariants: maxVariants,
		logger:      logger,
	}
}

// Expand returns the retrieval variants for a query. The original query is
// always first. When expansion is disabled no model call happens at all.
func (e *QueryExpander) Expand(ctx context.Context, query string) []string {
	if !e.enabled {
		return []string{query}
	}

	reply, err := e.chat.Complete(ctx, expansionSystemPrompt, query)
	if err != nil {
		e.logger.Warn("expansion_failed",
			slog.String("query", query),
			slog.String("error", err.Error()))
		return []string{query}
	}

	variants := []string{query}
	seen := map[string]bool{strings.ToLower(strings.TrimSpace(query)): true}
	for _, part := range strings.Split(reply, expansionSeparator) {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		key := strings.ToLower(trimmed)
		if seen[key] {
			continue
		}
		seen[key] = true
		variants = append(variants, trimmed)
		if len(variants) > e.maxVariants {
			break
		}
	}

	if len(variants) > 1 {
		e.logger.Info("query_expanded",
			slog.String("original", query),
			slog.Any("variants", variants[1:]))
	}
	return variants
}
