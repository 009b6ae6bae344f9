package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Router modes. Selected once at startup, never per request.
const (
	RouterModeKeyword  = "keyword"
	RouterModeSemantic = "semantic"
)

type Config struct {
	Env  string
	Port string

	Index     IndexConfig
	Embedder  EmbedderConfig
	Anchors   AnchorConfig
	Hybrid    HybridConfig
	Rerank    RerankConfig
	Expansion ExpansionConfig
	LLM       LLMConfig
	Router    RouterConfig
	Retrieval RetrievalConfig
	Cache     CacheConfig
}

// IndexConfig points at the external vector index service.
type IndexConfig struct {
	URL              string
	APIKey           string
	PolicyCollection string
	Timeout          int
}

// EmbedderConfig configures the document-space dense embedder (1536-dim).
type EmbedderConfig struct {
	URL        string
	APIKey     string
	Model      string
	Dimensions int
	Timeout    int
}

// AnchorConfig configures semantic routing: the guardrail collection and its
// own 384-dim embedding space, independent from the document space.
type AnchorConfig struct {
	Collection string
	URL        string
	APIKey     string
	Model      string
	Dimensions int
	Timeout    int
}

type HybridConfig struct {
	Enabled bool
	URL     string
	Model   string
	Timeout int
}

type RerankConfig struct {
	Enabled bool
	URL     string
	Model   string
	TopK    int
	Timeout int
}

type ExpansionConfig struct {
	Enabled bool
	Timeout int
}

type LLMConfig struct {
	URL         string
	APIKey      string
	Model       string
	Temperature float64
	Timeout     int
	// MaxRequestsPerSec caps completion-service calls across expansion and
	// synthesis. Zero disables the limiter.
	MaxRequestsPerSec float64
}

type RouterConfig struct {
	Mode string
}

type RetrievalConfig struct {
	SearchLimit int
}

type CacheConfig struct {
	Size       int
	TTLMinutes int
}

func Load() *Config {
	// Local development convenience; missing .env is not an error.
	_ = godotenv.Load()

	return &Config{
		Env:  getEnv("ENV", "development"),
		Port: getEnv("PORT", "8085"),
		Index: IndexConfig{
			URL:              getEnv("QDRANT_URL", "http://localhost:6333"),
			APIKey:           getSecret("QDRANT_API_KEY", "QDRANT_API_KEY_FILE", ""),
			PolicyCollection: getEnv("QDRANT_COLLECTION_NAME", "policies"),
			Timeout:          getEnvInt("QDRANT_TIMEOUT", 30),
		},
		Embedder: EmbedderConfig{
			URL:        getEnv("EMBEDDER_URL", "https://api.openai.com"),
			APIKey:     getSecret("OPENAI_API_KEY", "OPENAI_API_KEY_FILE", ""),
			Model:      getEnv("EMBEDDING_MODEL", "text-embedding-3-small"),
			Dimensions: getEnvInt("EMBEDDING_DIMENSIONS", 1536),
			Timeout:    getEnvInt("EMBEDDER_TIMEOUT", 30),
		},
		Anchors: AnchorConfig{
			Collection: getEnv("QDRANT_SEMANTIC_COLLECTION_NAME", "semantic_guardrails"),
			URL:        getEnvWithAlt("ROUTER_EMBEDDER_URL", "EMBEDDER_URL", "http://localhost:8095"),
			APIKey:     getSecret("ROUTER_EMBEDDER_API_KEY", "ROUTER_EMBEDDER_API_KEY_FILE", ""),
			Model:      getEnv("ROUTER_EMBEDDING_MODEL", "paraphrase-multilingual-minilm-l12-v2"),
			Dimensions: getEnvInt("ROUTER_EMBEDDING_DIMENSIONS", 384),
			Timeout:    getEnvInt("ROUTER_EMBEDDER_TIMEOUT", 10),
		},
		Hybrid: HybridConfig{
			Enabled: getEnvBool("ENABLE_HYBRID_SEARCH", true),
			URL:     getEnv("SPARSE_EMBEDDER_URL", "http://localhost:8096"),
			Model:   getEnv("SPARSE_EMBEDDING_MODEL", "bm42-all-minilm-l6-v2-attentions"),
			Timeout: getEnvInt("SPARSE_EMBEDDER_TIMEOUT", 15),
		},
		Rerank: RerankConfig{
			Enabled: getEnvBool("ENABLE_RERANKING", true),
			URL:     getEnv("RERANK_URL", "http://localhost:8097"),
			Model:   getEnv("RERANK_MODEL", "ms-marco-multibert-l-12"),
			TopK:    getEnvInt("RERANK_TOP_K", 5),
			Timeout: getEnvInt("RERANK_TIMEOUT", 20),
		},
		Expansion: ExpansionConfig{
			Enabled: getEnvBool("ENABLE_QUERY_EXPANSION", true),
			Timeout: getEnvInt("QUERY_EXPANSION_TIMEOUT", 15),
		},
		LLM: LLMConfig{
			URL:               getEnv("LLM_URL", "https://api.openai.com"),
			APIKey:            getSecret("OPENAI_API_KEY", "OPENAI_API_KEY_FILE", ""),
			Model:             getEnv("LLM_MODEL", "gpt-4o-mini"),
			Temperature:       getEnvFloat("LLM_TEMPERATURE", 0.0),
			Timeout:           getEnvInt("LLM_TIMEOUT", 60),
			MaxRequestsPerSec: getEnvFloat("LLM_MAX_RPS", 0),
		},
		Router: RouterConfig{
			Mode: getEnv("SEMANTIC_ROUTER_MODE", RouterModeKeyword),
		},
		Retrieval: RetrievalConfig{
			SearchLimit: getEnvInt("RETRIEVAL_SEARCH_LIMIT", 10),
		},
		Cache: CacheConfig{
			Size:       getEnvInt("ANSWER_CACHE_SIZE", 256),
			TTLMinutes: getEnvInt("ANSWER_CACHE_TTL_MINUTES", 10),
		},
	}
}

// Validate reports configuration errors that must prevent startup. Everything
// else degrades at runtime.
func (c *Config) Validate() error {
	switch c.Router.Mode {
	case RouterModeKeyword, RouterModeSemantic:
	default:
		return fmt.Errorf("SEMANTIC_ROUTER_MODE must be %q or %q, got %q",
			RouterModeKeyword, RouterModeSemantic, c.Router.Mode)
	}
	if c.Index.URL == "" {
		return fmt.Errorf("QDRANT_URL is required")
	}
	if c.Index.PolicyCollection == "" {
		return fmt.Errorf("QDRANT_COLLECTION_NAME is required")
	}
	if c.Embedder.Dimensions <= 0 {
		return fmt.Errorf("EMBEDDING_DIMENSIONS must be positive, got %d", c.Embedder.Dimensions)
	}
	if c.Router.Mode == RouterModeSemantic && c.Anchors.Dimensions <= 0 {
		return fmt.Errorf("ROUTER_EMBEDDING_DIMENSIONS must be positive, got %d", c.Anchors.Dimensions)
	}
	if c.Hybrid.Enabled && c.Hybrid.URL == "" {
		return fmt.Errorf("SPARSE_EMBEDDER_URL is required when hybrid search is enabled")
	}
	if c.Rerank.Enabled && c.Rerank.URL == "" {
		return fmt.Errorf("RERANK_URL is required when reranking is enabled")
	}
	if c.LLM.URL == "" || c.LLM.Model == "" {
		return fmt.Errorf("LLM_URL and LLM_MODEL are required")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getSecret(envKey, fileEnvKey, fallback string) string {
	if value, ok := os.LookupEnv(envKey); ok {
		return value
	}
	if filePath, ok := os.LookupEnv(fileEnvKey); ok {
		content, err := os.ReadFile(filePath)
		if err == nil {
			return strings.TrimSpace(string(content))
		}
	}
	return fallback
}

func getEnvWithAlt(key, altKey, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	if value, ok := os.LookupEnv(altKey); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return fallback
}
