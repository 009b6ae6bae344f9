package vectorindex

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"policy-copilot/internal/domain"
)

// QdrantClient talks to the external vector index over its REST API. It
// implements the full index contract the core needs: collection lifecycle,
// point upsert, two-stage queries, scroll enumeration, and payload-filtered
// deletes. Collections are passed per call because the service works with
// two of them (policy chunks and routing anchors).
type QdrantClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  *slog.Logger
}

// NewQdrantClient constructs a client for the index at baseURL. If client is
// nil a default with the given timeout is created.
func NewQdrantClient(baseURL, apiKey string, timeout time.Duration, logger *slog.Logger, client ...*http.Client) *QdrantClient {
	var c *http.Client
	if len(client) > 0 && client[0] != nil {
		c = client[0]
	} else {
		c = &http.Client{Timeout: timeout}
	}
	return &QdrantClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  c,
		logger:  logger,
	}
}

var _ domain.VectorIndex = (*QdrantClient)(nil)

type collectionInfoResponse struct {
	Result struct {
		PointsCount int `json:"points_count"`
		Config      struct {
			Params struct {
				Vectors json.RawMessage `json:"vectors"`
			} `json:"params"`
		} `json:"config"`
	} `json:"result"`
}

func (c *QdrantClient) CollectionInfo(ctx context.Context, collection string) (*domain.CollectionInfo, error) {
	var resp collectionInfoResponse
	status, err := c.doJSON(ctx, http.MethodGet, c.collectionPath(collection), nil, &resp)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return &domain.CollectionInfo{Exists: false}, nil
	}
	if status >= 300 {
		return nil, fmt.Errorf("qdrant collection info returned %d", status)
	}

	return &domain.CollectionInfo{
		Exists:     true,
		DenseSize:  parseDenseSize(resp.Result.Config.Params.Vectors),
		PointCount: resp.Result.PointsCount,
	}, nil
}

// parseDenseSize handles both vector config shapes: a single unnamed vector
// ({"size":N,...}) and named vectors ({"dense":{"size":N,...},...}).
func parseDenseSize(raw json.RawMessage) int {
	if len(raw) == 0 {
		return 0
	}

	var single struct {
		Size int `json:"size"`
	}
	if err := json.Unmarshal(raw, &single); err == nil && single.Size > 0 {
		return single.Size
	}

	var named map[string]struct {
		Size int `json:"size"`
	}
	if err := json.Unmarshal(raw, &named); err == nil {
		if cfg, ok := named["dense"]; ok {
			return cfg.Size
		}
		for _, cfg := range named {
			if cfg.Size > 0 {
				return cfg.Size
			}
		}
	}
	return 0
}

func (c *QdrantClient) CreateCollection(ctx context.Context, collection string, denseSize int, withSparse bool) error {
	if denseSize <= 0 {
		return fmt.Errorf("dense vector size must be positive, got %d", denseSize)
	}

	var body map[string]any
	if withSparse {
		body = map[string]any{
			"vectors": map[string]any{
				"dense": map[string]any{"size": denseSize, "distance": "Cosine"},
			},
			"sparse_vectors": map[string]any{
				"sparse": map[string]any{},
			},
		}
	} else {
		body = map[string]any{
			"vectors": map[string]any{"size": denseSize, "distance": "Cosine"},
		}
	}

	status, err := c.doJSON(ctx, http.MethodPut, c.collectionPath(collection), body, nil)
	if err != nil {
		return err
	}
	// 409 means the collection already exists, which is fine for an
	// idempotent ensure path.
	if status == http.StatusConflict {
		return nil
	}
	if status >= 300 {
		return fmt.Errorf("qdrant create collection returned %d", status)
	}

	c.logger.Info("collection_created",
		slog.String("collection", collection),
		slog.Int("dense_size", denseSize),
		slog.Bool("with_sparse", withSparse))
	return nil
}

func (c *QdrantClient) DeleteCollection(ctx context.Context, collection string) error {
	status, err := c.doJSON(ctx, http.MethodDelete, c.collectionPath(collection), nil, nil)
	if err != nil {
		return err
	}
	if status >= 300 && status != http.StatusNotFound {
		return fmt.Errorf("qdrant delete collection returned %d", status)
	}
	return nil
}

func (c *QdrantClient) Upsert(ctx context.Context, collection string, points []domain.Point) error {
	if len(points) == 0 {
		return nil
	}

	apiPoints := make([]map[string]any, 0, len(points))
	for _, p := range points {
		point := map[string]any{
			"id":      p.ID,
			"payload": p.Payload,
		}
		if p.Sparse != nil {
			point["vector"] = map[string]any{
				"dense": p.Dense,
				"sparse": map[string]any{
					"indices": p.Sparse.Indices,
					"values":  p.Sparse.Values,
				},
			}
		} else {
			point["vector"] = p.Dense
		}
		apiPoints = append(apiPoints, point)
	}

	status, err := c.doJSON(ctx, http.MethodPut,
		c.collectionPath(collection)+"/points?wait=true",
		map[string]any{"points": apiPoints}, nil)
	if err != nil {
		return err
	}
	if status >= 300 {
		return fmt.Errorf("qdrant upsert returned %d", status)
	}
	return nil
}

type queryResponse struct {
	Result struct {
		Points []rawPoint `json:"points"`
	} `json:"result"`
}

type rawPoint struct {
	ID      any            `json:"id"`
	Score   float32        `json:"score"`
	Payload map[string]any `json:"payload"`
}

func (c *QdrantClient) Query(ctx context.Context, collection string, query domain.VectorQuery) ([]domain.ScoredPoint, error) {
	body := map[string]any{
		"query":        query.Dense,
		"limit":        query.Limit,
		"with_payload": query.WithPayload,
	}
	if query.Prefetch != nil {
		// Two-stage search: sparse prefetch narrows candidates, the dense
		// vector rescores exactly those. Named vector spaces apply only in
		// this mode; a plain query hits the default unnamed vector.
		body["using"] = "dense"
		body["prefetch"] = []map[string]any{{
			"query": map[string]any{
				"indices": query.Prefetch.Vector.Indices,
				"values":  query.Prefetch.Vector.Values,
			},
			"using": "sparse",
			"limit": query.Prefetch.Limit,
		}}
	}

	var resp queryResponse
	status, err := c.doJSON(ctx, http.MethodPost, c.collectionPath(collection)+"/points/query", body, &resp)
	if err != nil {
		return nil, err
	}
	if status >= 300 {
		return nil, fmt.Errorf("qdrant query returned %d", status)
	}

	return toScoredPoints(resp.Result.Points), nil
}

type scrollResponse struct {
	Result struct {
		Points []rawPoint `json:"points"`
	} `json:"result"`
}

func (c *QdrantClient) Scroll(ctx context.Context, collection string, limit int) ([]domain.ScoredPoint, error) {
	body := map[string]any{
		"limit":        limit,
		"with_payload": true,
		"with_vector":  false,
	}

	var resp scrollResponse
	status, err := c.doJSON(ctx, http.MethodPost, c.collectionPath(collection)+"/points/scroll", body, &resp)
	if err != nil {
		return nil, err
	}
	if status >= 300 {
		return nil, fmt.Errorf("qdrant scroll returned %d", status)
	}

	return toScoredPoints(resp.Result.Points), nil
}

func (c *QdrantClient) DeleteByField(ctx context.Context, collection, field, value string) error {
	body := map[string]any{
		"filter": map[string]any{
			"must": []map[string]any{
				{"key": field, "match": map[string]any{"value": value}},
			},
		},
	}

	status, err := c.doJSON(ctx, http.MethodPost, c.collectionPath(collection)+"/points/delete?wait=true", body, nil)
	if err != nil {
		return err
	}
	if status >= 300 {
		return fmt.Errorf("qdrant delete points returned %d", status)
	}
	return nil
}

func (c *QdrantClient) collectionPath(collection string) string {
	return "/collections/" + url.PathEscape(collection)
}

func (c *QdrantClient) doJSON(ctx context.Context, method, path string, in, out any) (int, error) {
	var reqBody io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return 0, fmt.Errorf("failed to marshal qdrant request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return 0, fmt.Errorf("failed to create qdrant request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("api-key", c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("qdrant request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if out != nil && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("failed to decode qdrant response: %w", err)
		}
	} else {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	}

	return resp.StatusCode, nil
}

func toScoredPoints(raw []rawPoint) []domain.ScoredPoint {
	points := make([]domain.ScoredPoint, 0, len(raw))
	for _, p := range raw {
		points = append(points, domain.ScoredPoint{
			ID:      fmt.Sprint(p.ID),
			Score:   p.Score,
			Payload: p.Payload,
		})
	}
	return points
}
