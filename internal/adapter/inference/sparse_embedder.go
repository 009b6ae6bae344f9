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

// SparseEmbedRequest is the request payload for the sparse embedding endpoint.
type SparseEmbedRequest struct {
	Model string `json:"model,omitempty"`
	Text  string `json:"text"`
}

// SparseEmbedResponse is the response from the sparse embedding endpoint.
type SparseEmbedResponse struct {
	Indices []uint32  `json:"indices"`
	Values  []float32 `json:"values"`
	Model   string    `json:"model,omitempty"`
}

// SparseEmbedder implements domain.SparseEncoder via HTTP calls to the
// lexical embedding service used for the hybrid prefetch stage.
type SparseEmbedder struct {
	BaseURL string
	Model   string
	Client  *http.Client
	logger  *slog.Logger
	exec    *resilience.Executor
}

// NewSparseEmbedder constructs a sparse embedder. If client is nil, a default
// http.Client is created with the given timeout.
func NewSparseEmbedder(baseURL, model string, timeout time.Duration, logger *slog.Logger, exec *resilience.Executor, client ...*http.Client) *SparseEmbedder {
	var c *http.Client
	if len(client) > 0 && client[0] != nil {
		c = client[0]
	} else {
		c = &http.Client{Timeout: timeout}
	}
	return &SparseEmbedder{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Model:   model,
		Client:  c,
		logger:  logger,
		exec:    exec,
	}
}

var _ domain.SparseEncoder = (*SparseEmbedder)(nil)

// EncodeSparse embeds a text into a sparse term-weight vector.
func (e *SparseEmbedder) EncodeSparse(ctx context.Context, text string) (*domain.SparseVector, error) {
	var vector *domain.SparseVector
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
		err = e.exec.Execute(ctx, "sparse_embed", call)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return nil, err
	}
	return vector, nil
}

func (e *SparseEmbedder) encodeOnce(ctx context.Context, text string) (*domain.SparseVector, error) {
	startTime := time.Now()

	jsonPayload, err := json.Marshal(SparseEmbedRequest{Model: e.Model, Text: text})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal sparse embed request: %w", err)
	}

	url := fmt.Sprintf("%s/v1/sparse-embed", e.BaseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonPayload))
	if err != nil {
		return nil, fmt.Errorf("failed to create sparse embed request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.Client.Do(req)
	if err != nil {
		e.logger.Warn("sparse_embedding_failed",
			slog.String("error", err.Error()),
			slog.Int64("elapsed_ms", time.Since(startTime).Milliseconds()))
		return nil, fmt.Errorf("failed to call sparse embed endpoint: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		e.logger.Warn("sparse_embedding_failed",
			slog.Int("status_code", resp.StatusCode),
			slog.String("body", truncateString(string(body), 500)))
		return nil, fmt.Errorf("sparse embed endpoint returned %d: %s", resp.StatusCode, truncateString(string(body), 200))
	}

	var embResp SparseEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&embResp); err != nil {
		return nil, fmt.Errorf("failed to decode sparse embed response: %w", err)
	}
	if len(embResp.Indices) != len(embResp.Values) {
		return nil, fmt.Errorf("sparse embed returned %d indices but %d values", len(embResp.Indices), len(embResp.Values))
	}

	e.logger.Debug("sparse_embedding_completed",
		slog.Int("term_count", len(embResp.Indices)),
		slog.Int64("elapsed_ms", time.Since(startTime).Milliseconds()))
	return &domain.SparseVector{Indices: embResp.Indices, Values: embResp.Values}, nil
}

// Version returns the sparse model identifier.
func (e *SparseEmbedder) Version() string {
	return e.Model
}
