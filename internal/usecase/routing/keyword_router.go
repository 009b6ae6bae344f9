package routing

import (
	"context"
	"log/slog"
	"strings"
	"unicode"

	"policy-copilot/internal/domain"
)

// fuzzyMatchCutoff is the minimum normalized edit-distance similarity for a
// query to count as a near-miss of a known phrase.
const fuzzyMatchCutoff = 0.8

// KeywordRouter classifies queries by phrase containment with a fuzzy
// fallback for close misspellings. It needs no external services, so it is
// the default routing mode.
type KeywordRouter struct {
	greetings []string
	unsafe    []string
	cutoff    float64
	logger    *slog.Logger
}

func NewKeywordRouter(logger *slog.Logger) *KeywordRouter {
	return &KeywordRouter{
		greetings: greetingPhrases,
		unsafe:    unsafePhrases,
		cutoff:    fuzzyMatchCutoff,
		logger:    logger,
	}
}

var _ Router = (*KeywordRouter)(nil)

// Route returns the decision for a raw query. Greeting phrases are checked
// before unsafe ones, so a query containing both reads as a greeting.
func (r *KeywordRouter) Route(_ context.Context, query string) domain.RouteDecision {
	normalized := strings.ToLower(strings.TrimSpace(query))
	if normalized == "" {
		return domain.RouteBusiness
	}
	tokens := tokenize(normalized)

	if phrase, ok := matchAny(normalized, tokens, r.greetings); ok {
		r.logger.Info("query_routed",
			slog.String("decision", string(domain.RouteGreeting)),
			slog.String("matched_phrase", phrase),
			slog.String("method", "substring"))
		return domain.RouteGreeting
	}
	if phrase, ok := matchAny(normalized, tokens, r.unsafe); ok {
		r.logger.Info("query_routed",
			slog.String("decision", string(domain.RouteUnsafe)),
			slog.String("matched_phrase", phrase),
			slog.String("method", "substring"))
		return domain.RouteUnsafe
	}

	if phrase, ok := r.fuzzyMatch(normalized, r.greetings); ok {
		r.logger.Info("query_routed",
			slog.String("decision", string(domain.RouteGreeting)),
			slog.String("matched_phrase", phrase),
			slog.String("method", "fuzzy"))
		return domain.RouteGreeting
	}
	if phrase, ok := r.fuzzyMatch(normalized, r.unsafe); ok {
		r.logger.Info("query_routed",
			slog.String("decision", string(domain.RouteUnsafe)),
			slog.String("matched_phrase", phrase),
			slog.String("method", "fuzzy"))
		return domain.RouteUnsafe
	}

	return domain.RouteBusiness
}

func tokenize(normalized string) []string {
	return strings.FieldsFunc(normalized, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

func matchAny(normalized string, tokens []string, phrases []string) (string, bool) {
	for _, phrase := range phrases {
		if matchPhrase(normalized, tokens, phrase) {
			return phrase, true
		}
	}
	return "", false
}

// matchPhrase decides how a phrase may appear in the query. Multi-word and
// symbol-bearing phrases match by containment. A single-word phrase must
// equal a whole token: "hi" and "hey" never fire inside "which" or "they".
func matchPhrase(normalized string, tokens []string, phrase string) bool {
	if strings.ContainsRune(phrase, ' ') || !isWordOnly(phrase) {
		return strings.Contains(normalized, phrase)
	}
	for _, token := range tokens {
		if token == phrase {
			return true
		}
	}
	return false
}

func isWordOnly(phrase string) bool {
	for _, r := range phrase {
		if !unicode.IsLetter(r) && !unicode.IsNumber(r) {
			return false
		}
	}
	return true
}

func (r *KeywordRouter) fuzzyMatch(normalized string, phrases []string) (string, bool) {
	for _, phrase := range phrases {
		if stringSimilarity(normalized, phrase) >= r.cutoff {
			return phrase, true
		}
	}
	return "", false
}
