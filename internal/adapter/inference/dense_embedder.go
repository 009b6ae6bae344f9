package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"policy-copilot/internal/domain"
	"policy-copilot/internal/infra/resilience"
)

// EmbeddingRequest is the request payload for the embeddings endpoint.
type EmbeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

// EmbeddingResponse is the response from the embeddings endpoint.
type EmbeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Model string `json:"model"`
}

// DenseEmbedder implements domain.DenseEncoder against an OpenAI-compatible
// embeddings endpoint. Two instances exist at runtime when semantic routing
// is on: one for retrieval vectors and one for the smaller anchor vectors.
type DenseEmbedder struct {
	BaseURL string
	Model   string
	APIKey  string
	Dims    int
	Client  *http.Client
	logger  *slog.Logger
	exec    *resilience.Executor
}

// NewDenseEmbedder constructs an embedder for the given model and vector
// size. If client is nil, a default http.Client is created with the given
// timeout.
func NewDenseEmbedder(baseURL, model, apiKey string, dims int, timeout time.Duration, logger *slog.Logger, exec *resilience.Executor, client ...*http.Client) *DenseEmbedder {
	var c *http.Client
	if len(client) > 0 && client[0] != nil {
		c = client[0]
	} else {
		c = &http.Client{Timeout: timeout}
	}
	return &DenseEmbedder{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Model:   model,
		APIKey:  apiKey,
		Dims:    dims,
		Client:  c,
		logger:  logger,
		exec:    exec,
	}
}

var _ domain.DenseEncoder = (*DenseEmbedder)(nil)

// Encode embeds a single text into a dense vector.
func (e *DenseEmbedder) Encode(ctx context.Context, text string) ([]float32, error) {
	var vector []float32
	call := func(ctx context.Context) error {
		v, err := e.encodeOnce(ctx, text)
		if err != nil {
			return err
		}
		vector = v
		return nil
	}

	var err error
	if e.exec != nil {
		err = e.exec.Execute(ctx, "dense_embed", call)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return nil, err
	}
	return vector, nil
}

func (e *DenseEmbedder) encodeOnce(ctx context.Context, text string) ([]float32, error) {
	startTime := time.Now()

	jsonPayload, err := json.Marshal(EmbeddingRequest{Model: e.Model, Input: []string{text}})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal embedding request: %w", err)
	}

	url := fmt.Sprintf("%s/v1/embeddings", e.BaseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonPayload))
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if e.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.APIKey)
	}

	resp, err := e.Client.Do(req)
	if err != nil {
		e.logger.Warn("embedding_failed",
			slog.String("model", e.Model),
			slog.String("error", err.Error()),
			slog.Int64("elapsed_ms", time.Since(startTime).Milliseconds()))
		return nil, fmt.Errorf("failed to call embeddings endpoint: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		e.logger.Warn("embedding_failed",
			slog.String("model", e.Model),
			slog.Int("status_code", resp.StatusCode),
			slog.String("body", truncateString(string(body), 500)))
		return nil, fmt.Errorf("embeddings endpoint returned %d: %s", resp.StatusCode, truncateString(string(body), 200))
	}

	var embResp EmbeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&embResp); err != nil {
		return nil, fmt.Errorf("failed to decode embedding response: %w", err)
	}
	if len(embResp.Data) == 0 {
		return nil, fmt.Errorf("embeddings endpoint returned no data")
	}

	vector := embResp.Data[0].Embedding
	if e.Dims > 0 && len(vector) != e.Dims {
		return nil, fmt.Errorf("embedding has %d dimensions, expected %d", len(vector), e.Dims)
	}

	e.logger.Debug("embedding_completed",
		slog.String("model", e.Model),
		slog.Int("dimensions", len(vector)),
		slog.Int64("elapsed_ms", time.Since(startTime).Milliseconds()))
	return vector, nil
}

// Dimensions returns the vector size this embedder produces.
func (e *DenseEmbedder) Dimensions() int {
	return e.Dims
}

// Version returns the embedding model identifier.
func (e *DenseEmbedder) Version() string {
	return e.Model
}
