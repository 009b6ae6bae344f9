package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"policy-copilot/internal/domain"
	"policy-copilot/internal/usecase/retrieval"
	"policy-copilot/internal/usecase/routing"
)

// Canned replies for queries that never reach retrieval.
const (
	greetingAnswer = "Hello! I can help you with questions about your insurance policy, such as coverage, deductibles, and claims. What would you like to know?"
	unsafeAnswer   = "I can only help with questions about insurance policies. I cannot assist with that request."
	noInfoAnswer   = "I could not find any information about that in the policy documents. Try rephrasing your question or asking about a specific coverage."
)

// AnswerPolicyQueryInput encapsulates the parameters of an answer request.
type AnswerPolicyQueryInput struct {
	Query      string
	ForceTable bool
}

// Source is one cited document in an answer: the source file it came from
// plus the content, id, and score of that file's best surviving chunk.
type Source struct {
	Title   string
	Content string
	ID      string
	Score   float32
}

// AnswerPolicyQueryOutput is the normalized answer returned to API clients.
type AnswerPolicyQueryOutput struct {
	Answer  string
	Sources []Source
	Route   domain.RouteDecision
}

// AnswerPolicyQueryUsecase defines the contract for answering a policy query.
type AnswerPolicyQueryUsecase interface {
	Execute(ctx context.Context, input AnswerPolicyQueryInput) (*AnswerPolicyQueryOutput, error)
}

type queryExpander interface {
	Expand(ctx context.Context, query string) []string
}

type documentSearcher interface {
	Search(ctx context.Context, variants []string) ([]domain.ScoredDocument, error)
}

type answerPolicyQueryUsecase struct {
	router        routing.Router
	expander      queryExpander
	searcher      documentSearcher
	reranker      domain.Reranker
	rerankCfg     retrieval.RerankConfig
	promptBuilder *PromptBuilder
	chat          domain.ChatClient
	cache         *expirable.LRU[string, AnswerPolicyQueryOutput]
	logger        *slog.Logger
}

// NewAnswerPolicyQueryUsecase wires together the full answer pipeline.
// cacheSize <= 0 disables the answer cache.
func NewAnswerPolicyQueryUsecase(
	router routing.Router,
	expander queryExpander,
	searcher documentSearcher,
	reranker domain.Reranker,
	rerankCfg retrieval.RerankConfig,
	promptBuilder *PromptBuilder,
	chat domain.ChatClient,
	cacheSize int,
	cacheTTL time.Duration,
	logger *slog.Logger,
) AnswerPolicyQueryUsecase {
	var cache *expirable.LRU[string, AnswerPolicyQueryOutput]
	if cacheSize > 0 {
		cache = expirable.NewLRU[string, AnswerPolicyQueryOutput](cacheSize, nil, cacheTTL)
	}
	return &answerPolicyQueryUsecase{
		router:        router,
		expander:      expander,
		searcher:      searcher,
		reranker:      reranker,
		rerankCfg:     rerankCfg,
		promptBuilder: promptBuilder,
		chat:          chat,
		cache:         cache,
		logger:        logger,
	}
}

// Execute routes the query, then runs expansion, hybrid retrieval, reranking,
// and synthesis for business queries. Greeting and unsafe queries short-circuit
// with canned replies and never touch retrieval.
func (u *answerPolicyQueryUsecase) Execute(ctx context.Context, input AnswerPolicyQueryInput) (*AnswerPolicyQueryOutput, error) {
	startTime := time.Now()
	cacheKey := fmt.Sprintf("%s|force_table=%t", input.Query, input.ForceTable)

	if u.cache != nil {
		if cached, ok := u.cache.Get(cacheKey); ok {
			u.logger.Info("answer_cache_hit", slog.String("query", input.Query))
			return &cached, nil
		}
	}

	route := u.router.Route(ctx, input.Query)
	switch route {
	case domain.RouteGreeting:
		return &AnswerPolicyQueryOutput{Answer: greetingAnswer, Sources: []Source{}, Route: route}, nil
	case domain.RouteUnsafe:
		u.logger.Warn("unsafe_query_blocked", slog.String("query", input.Query))
		return &AnswerPolicyQueryOutput{Answer: unsafeAnswer, Sources: []Source{}, Route: route}, nil
	}

	variants := u.expander.Expand(ctx, input.Query)

	docs, err := u.searcher.Search(ctx, variants)
	if err != nil {
		return nil, err
	}

	docs, err = retrieval.Rerank(ctx, u.reranker, u.rerankCfg, input.Query, docs, u.logger)
	if err != nil {
		return nil, err
	}

	if len(docs) == 0 {
		// An empty result set is an answer, not a failure.
		output := &AnswerPolicyQueryOutput{Answer: noInfoAnswer, Sources: []Source{}, Route: route}
		return output, nil
	}

	system := u.promptBuilder.BuildSystemPrompt(input.ForceTable)
	user := u.promptBuilder.BuildUserPrompt(input.Query, docs)

	answer, err := u.chat.Complete(ctx, system, user)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrAnswerGeneration, err)
	}

	output := &AnswerPolicyQueryOutput{
		Answer:  answer,
		Sources: collectSources(docs),
		Route:   route,
	}
	if u.cache != nil {
		u.cache.Add(cacheKey, *output)
	}

	u.logger.Info("answer_generated",
		slog.String("query", input.Query),
		slog.Int("context_chunks", len(docs)),
		slog.Int("source_count", len(output.Sources)),
		slog.Bool("force_table", input.ForceTable),
		slog.Int64("duration_ms", time.Since(startTime).Milliseconds()))
	return output, nil
}

// collectSources deduplicates source documents in ranking order. The first
// chunk seen for a file is its highest-ranked one and supplies the citation's
// content, id, and score.
func collectSources(docs []domain.ScoredDocument) []Source {
	seen := make(map[string]bool, len(docs))
	sources := make([]Source, 0, len(docs))
	for _, doc := range docs {
		title := doc.Metadata.SourceFile
		if seen[title] {
			continue
		}
		seen[title] = true
		sources = append(sources, Source{
			Title:   title,
			Content: doc.Content,
			ID:      doc.ID,
			Score:   doc.Score,
		})
	}
	return sources
}
