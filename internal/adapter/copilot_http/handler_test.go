package copilot_http

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"policy-copilot/internal/domain"
	"policy-copilot/internal/usecase"
	"policy-copilot/internal/usecase/routing"
)

type stubAnswerUsecase struct {
	output *usecase.AnswerPolicyQueryOutput
	err    error
	input  usecase.AnswerPolicyQueryInput
}

func (s *stubAnswerUsecase) Execute(ctx context.Context, input usecase.AnswerPolicyQueryInput) (*usecase.AnswerPolicyQueryOutput, error) {
	s.input = input
	return s.output, s.err
}

type stubRouter struct {
	decision domain.RouteDecision
}

func (s *stubRouter) Route(ctx context.Context, query string) domain.RouteDecision {
	return s.decision
}

type stubAnchorIndex struct {
	scrolled    []domain.ScoredPoint
	upserted    []domain.Point
	deleteCalls [][2]string
}

func (s *stubAnchorIndex) CollectionInfo(ctx context.Context, collection string) (*domain.CollectionInfo, error) {
	return &domain.CollectionInfo{Exists: true, DenseSize: 3}, nil
}

func (s *stubAnchorIndex) CreateCollection(ctx context.Context, collection string, denseSize int, withSparse bool) error {
	return nil
}

func (s *stubAnchorIndex) DeleteCollection(ctx context.Context, collection string) error { return nil }

func (s *stubAnchorIndex) Upsert(ctx context.Context, collection string, points []domain.Point) error {
	s.upserted = append(s.upserted, points...)
	return nil
}

func (s *stubAnchorIndex) Query(ctx context.Context, collection string, query domain.VectorQuery) ([]domain.ScoredPoint, error) {
	return nil, nil
}

func (s *stubAnchorIndex) Scroll(ctx context.Context, collection string, limit int) ([]domain.ScoredPoint, error) {
	return s.scrolled, nil
}

func (s *stubAnchorIndex) DeleteByField(ctx context.Context, collection, field, value string) error {
	s.deleteCalls = append(s.deleteCalls, [2]string{field, value})
	return nil
}

type stubAnchorEncoder struct{}

func (s *stubAnchorEncoder) Encode(ctx context.Context, text string) ([]float32, error) {
	return []float32{0.1, 0.2, 0.3}, nil
}

func (s *stubAnchorEncoder) Dimensions() int { return 3 }
func (s *stubAnchorEncoder) Version() string { return "stub" }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func doRequest(h *Handler, method, path, body string) *httptest.ResponseRecorder {
	e := echo.New()
	h.RegisterRoutes(e)

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestAnswer_Success(t *testing.T) {
	uc := &stubAnswerUsecase{output: &usecase.AnswerPolicyQueryOutput{
		Answer: "Water damage is covered up to $5,000.",
		Sources: []usecase.Source{
			{Title: "home-policy.pdf", Content: "Water damage is covered up to $5,000.", ID: "c1", Score: 0.9},
		},
		Route: domain.RouteBusiness,
	}}
	h := NewHandler(uc, &stubRouter{}, nil)

	rec := doRequest(h, http.MethodPost, "/v1/copilot/answer", `{"query":"is water damage covered?","force_table":true}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"answer":"Water damage is covered up to $5,000.","sources":[{"title":"home-policy.pdf","content":"Water damage is covered up to $5,000.","id":"c1","score":0.9}],"route":"BUSINESS"}`, rec.Body.String())
	assert.True(t, uc.input.ForceTable)
}

func TestAnswer_EmptyQueryRejected(t *testing.T) {
	h := NewHandler(&stubAnswerUsecase{}, &stubRouter{}, nil)

	rec := doRequest(h, http.MethodPost, "/v1/copilot/answer", `{"query":"   "}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAnswer_RetrievalUnavailableMapsTo503(t *testing.T) {
	uc := &stubAnswerUsecase{err: domain.ErrRetrievalUnavailable}
	h := NewHandler(uc, &stubRouter{}, nil)

	rec := doRequest(h, http.MethodPost, "/v1/copilot/answer", `{"query":"q"}`)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestAnswer_GenerationFailureMapsTo502(t *testing.T) {
	uc := &stubAnswerUsecase{err: domain.ErrAnswerGeneration}
	h := NewHandler(uc, &stubRouter{}, nil)

	rec := doRequest(h, http.MethodPost, "/v1/copilot/answer", `{"query":"q"}`)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestRouteQuery(t *testing.T) {
	h := NewHandler(&stubAnswerUsecase{}, &stubRouter{decision: domain.RouteGreeting}, nil)

	rec := doRequest(h, http.MethodPost, "/v1/copilot/route", `{"query":"hola"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"route":"GREETING"}`, rec.Body.String())
}

func TestAnchors_UnavailableInKeywordMode(t *testing.T) {
	h := NewHandler(&stubAnswerUsecase{}, &stubRouter{}, nil)

	rec := doRequest(h, http.MethodGet, "/v1/copilot/anchors", "")

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func anchorFixture(index *stubAnchorIndex) *Handler {
	store := routing.NewAnchorStore(index, &stubAnchorEncoder{}, "guardrails", testLogger())
	return NewHandler(&stubAnswerUsecase{}, &stubRouter{}, store)
}

func TestAnchors_List(t *testing.T) {
	index := &stubAnchorIndex{scrolled: []domain.ScoredPoint{
		{ID: "1", Payload: map[string]any{"text": "hola", "type": "GREETING"}},
	}}
	h := anchorFixture(index)

	rec := doRequest(h, http.MethodGet, "/v1/copilot/anchors", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"anchors":[{"text":"hola","type":"GREETING"}]}`, rec.Body.String())
}

func TestAnchors_Add(t *testing.T) {
	index := &stubAnchorIndex{}
	h := anchorFixture(index)

	rec := doRequest(h, http.MethodPost, "/v1/copilot/anchors", `{"text":"cheers","type":"greeting"}`)

	require.Equal(t, http.StatusCreated, rec.Code)
	require.Len(t, index.upserted, 1)
	assert.Equal(t, "cheers", index.upserted[0].Payload["text"])
	assert.Equal(t, "GREETING", index.upserted[0].Payload["type"])
}

func TestAnchors_AddRejectsUnknownType(t *testing.T) {
	h := anchorFixture(&stubAnchorIndex{})

	rec := doRequest(h, http.MethodPost, "/v1/copilot/anchors", `{"text":"x","type":"SPAM"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAnchors_Delete(t *testing.T) {
	index := &stubAnchorIndex{}
	h := anchorFixture(index)

	rec := doRequest(h, http.MethodDelete, "/v1/copilot/anchors?text=hola", "")

	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Len(t, index.deleteCalls, 1)
	assert.Equal(t, [2]string{"text", "hola"}, index.deleteCalls[0])
}

func TestAnchors_DeleteRequiresText(t *testing.T) {
	h := anchorFixture(&stubAnchorIndex{})

	rec := doRequest(h, http.MethodDelete, "/v1/copilot/anchors", "")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
