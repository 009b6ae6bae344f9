// Package di wires configuration into the concrete component graph.
package di

import (
	"log/slog"
	"time"

	"policy-copilot/internal/adapter/inference"
	"policy-copilot/internal/adapter/vectorindex"
	"policy-copilot/internal/domain"
	"policy-copilot/internal/infra/config"
	"policy-copilot/internal/infra/httpclient"
	"policy-copilot/internal/infra/resilience"
	"policy-copilot/internal/usecase"
	"policy-copilot/internal/usecase/retrieval"
	"policy-copilot/internal/usecase/routing"
)

// ApplicationComponents holds all wired dependencies for the application.
type ApplicationComponents struct {
	Index domain.VectorIndex

	Router      routing.Router
	AnchorStore *routing.AnchorStore

	AnswerUsecase usecase.AnswerPolicyQueryUsecase
}

// NewApplicationComponents wires all dependencies from config.
func NewApplicationComponents(cfg *config.Config, log *slog.Logger) *ApplicationComponents {
	executor := resilience.NewExecutor(resilience.DefaultConfig())

	// Shared HTTP clients with connection pooling
	indexHTTP := httpclient.NewPooledClient(time.Duration(cfg.Index.Timeout) * time.Second)
	embedderHTTP := httpclient.NewPooledClient(time.Duration(cfg.Embedder.Timeout) * time.Second)
	llmHTTP := httpclient.NewPooledClient(time.Duration(cfg.LLM.Timeout) * time.Second)

	index := vectorindex.NewQdrantClient(cfg.Index.URL, cfg.Index.APIKey,
		time.Duration(cfg.Index.Timeout)*time.Second, log, indexHTTP)

	denseEmbedder := inference.NewDenseEmbedder(cfg.Embedder.URL, cfg.Embedder.Model,
		cfg.Embedder.APIKey, cfg.Embedder.Dimensions,
		time.Duration(cfg.Embedder.Timeout)*time.Second, log, executor, embedderHTTP)

	var sparseEmbedder domain.SparseEncoder
	if cfg.Hybrid.Enabled {
		sparseHTTP := httpclient.NewPooledClient(time.Duration(cfg.Hybrid.Timeout) * time.Second)
		sparseEmbedder = inference.NewSparseEmbedder(cfg.Hybrid.URL, cfg.Hybrid.Model,
			time.Duration(cfg.Hybrid.Timeout)*time.Second, log, executor, sparseHTTP)
	}

	completionClient := inference.NewCompletionClient(cfg.LLM.URL, cfg.LLM.Model,
		cfg.LLM.APIKey, cfg.LLM.Temperature, cfg.LLM.MaxRequestsPerSec,
		time.Duration(cfg.LLM.Timeout)*time.Second, log, executor, llmHTTP)

	// Routing: the semantic mode carries its own anchor embedding space,
	// separate from the document space.
	var router routing.Router
	var anchorStore *routing.AnchorStore
	if cfg.Router.Mode == config.RouterModeSemantic {
		anchorHTTP := httpclient.NewPooledClient(time.Duration(cfg.Anchors.Timeout) * time.Second)
		anchorEmbedder := inference.NewDenseEmbedder(cfg.Anchors.URL, cfg.Anchors.Model,
			cfg.Anchors.APIKey, cfg.Anchors.Dimensions,
			time.Duration(cfg.Anchors.Timeout)*time.Second, log, executor, anchorHTTP)
		anchorStore = routing.NewAnchorStore(index, anchorEmbedder, cfg.Anchors.Collection, log)
		router = routing.NewSemanticRouter(anchorStore, anchorEmbedder,
			routing.DefaultUnsafeThreshold, routing.DefaultGreetingThreshold, log)
	} else {
		router = routing.NewKeywordRouter(log)
	}

	expander := retrieval.NewQueryExpander(completionClient, cfg.Expansion.Enabled, 3, log)

	searcher := retrieval.NewHybridSearcher(index, denseEmbedder, sparseEmbedder,
		cfg.Index.PolicyCollection, cfg.Hybrid.Enabled, cfg.Retrieval.SearchLimit, log)

	var reranker domain.Reranker
	if cfg.Rerank.Enabled {
		rerankHTTP := httpclient.NewPooledClient(time.Duration(cfg.Rerank.Timeout) * time.Second)
		reranker = inference.NewRerankerClient(cfg.Rerank.URL, cfg.Rerank.Model,
			time.Duration(cfg.Rerank.Timeout)*time.Second, log, executor, rerankHTTP)
	}
	rerankCfg := retrieval.RerankConfig{
		Enabled: cfg.Rerank.Enabled,
		TopK:    cfg.Rerank.TopK,
		Timeout: time.Duration(cfg.Rerank.Timeout) * time.Second,
	}

	answerUsecase := usecase.NewAnswerPolicyQueryUsecase(
		router,
		expander,
		searcher,
		reranker,
		rerankCfg,
		usecase.NewPromptBuilder(),
		completionClient,
		cfg.Cache.Size,
		time.Duration(cfg.Cache.TTLMinutes)*time.Minute,
		log,
	)

	return &ApplicationComponents{
		Index:         index,
		Router:        router,
		AnchorStore:   anchorStore,
		AnswerUsecase: answerUsecase,
	}
}
