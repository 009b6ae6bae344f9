// Package copilot_http exposes the query answering and anchor administration
// endpoints over HTTP.
package copilot_http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"policy-copilot/internal/domain"
	"policy-copilot/internal/usecase"
	"policy-copilot/internal/usecase/routing"
)

// AnswerRequest is the payload for POST /v1/copilot/answer.
type AnswerRequest struct {
	Query      string `json:"query"`
	ForceTable bool   `json:"force_table"`
}

// SourceItem is one citation in an answer response.
type SourceItem struct {
	Title   string  `json:"title"`
	Content string  `json:"content"`
	ID      string  `json:"id"`
	Score   float32 `json:"score"`
}

// AnswerResponse is the reply for POST /v1/copilot/answer.
type AnswerResponse struct {
	Answer  string       `json:"answer"`
	Sources []SourceItem `json:"sources"`
	Route   string       `json:"route"`
}

// RouteRequest is the payload for POST /v1/copilot/route.
type RouteRequest struct {
	Query string `json:"query"`
}

// RouteResponse is the reply for POST /v1/copilot/route.
type RouteResponse struct {
	Route string `json:"route"`
}

// AnchorItem is one anchor in admin responses and requests.
type AnchorItem struct {
	Text string `json:"text"`
	Type string `json:"type"`
}

// AnchorListResponse is the reply for GET /v1/copilot/anchors.
type AnchorListResponse struct {
	Anchors []AnchorItem `json:"anchors"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type Handler struct {
	answerUsecase usecase.AnswerPolicyQueryUsecase
	router        routing.Router
	// anchorStore is nil in keyword routing mode; anchor admin endpoints
	// then report the feature as unavailable.
	anchorStore *routing.AnchorStore
}

func NewHandler(answerUsecase usecase.AnswerPolicyQueryUsecase, router routing.Router, anchorStore *routing.AnchorStore) *Handler {
	return &Handler{
		answerUsecase: answerUsecase,
		router:        router,
		anchorStore:   anchorStore,
	}
}

// RegisterRoutes attaches all copilot endpoints to the echo instance.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.POST("/v1/copilot/answer", h.Answer)
	e.POST("/v1/copilot/route", h.RouteQuery)
	e.GET("/v1/copilot/anchors", h.ListAnchors)
	e.POST("/v1/copilot/anchors", h.AddAnchor)
	e.DELETE("/v1/copilot/anchors", h.DeleteAnchor)
}

// Answer a policy question
// (POST /v1/copilot/answer)
func (h *Handler) Answer(ctx echo.Context) error {
	var req AnswerRequest
	if err := ctx.Bind(&req); err != nil {
		return ctx.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request"})
	}
	if strings.TrimSpace(req.Query) == "" {
		return ctx.JSON(http.StatusBadRequest, errorResponse{Error: "query must not be empty"})
	}

	output, err := h.answerUsecase.Execute(ctx.Request().Context(), usecase.AnswerPolicyQueryInput{
		Query:      req.Query,
		ForceTable: req.ForceTable,
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrRetrievalUnavailable):
			return ctx.JSON(http.StatusServiceUnavailable, errorResponse{Error: "retrieval is temporarily unavailable"})
		case errors.Is(err, domain.ErrAnswerGeneration):
			return ctx.JSON(http.StatusBadGateway, errorResponse{Error: "could not generate an answer"})
		default:
			return ctx.JSON(http.StatusInternalServerError, errorResponse{Error: "internal error"})
		}
	}

	sources := make([]SourceItem, 0, len(output.Sources))
	for _, s := range output.Sources {
		sources = append(sources, SourceItem{Title: s.Title, Content: s.Content, ID: s.ID, Score: s.Score})
	}
	return ctx.JSON(http.StatusOK, AnswerResponse{
		Answer:  output.Answer,
		Sources: sources,
		Route:   string(output.Route),
	})
}

// Classify a query without answering it
// (POST /v1/copilot/route)
func (h *Handler) RouteQuery(ctx echo.Context) error {
	var req RouteRequest
	if err := ctx.Bind(&req); err != nil {
		return ctx.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request"})
	}
	if strings.TrimSpace(req.Query) == "" {
		return ctx.JSON(http.StatusBadRequest, errorResponse{Error: "query must not be empty"})
	}

	decision := h.router.Route(ctx.Request().Context(), req.Query)
	return ctx.JSON(http.StatusOK, RouteResponse{Route: string(decision)})
}

// List routing anchors
// (GET /v1/copilot/anchors)
func (h *Handler) ListAnchors(ctx echo.Context) error {
	if h.anchorStore == nil {
		return h.anchorsUnavailable(ctx)
	}

	anchors, err := h.anchorStore.ListAnchors(ctx.Request().Context())
	if err != nil {
		return ctx.JSON(http.StatusServiceUnavailable, errorResponse{Error: "anchor index unavailable"})
	}

	items := make([]AnchorItem, 0, len(anchors))
	for _, a := range anchors {
		items = append(items, AnchorItem{Text: a.Text, Type: string(a.Type)})
	}
	return ctx.JSON(http.StatusOK, AnchorListResponse{Anchors: items})
}

// Add a routing anchor
// (POST /v1/copilot/anchors)
func (h *Handler) AddAnchor(ctx echo.Context) error {
	if h.anchorStore == nil {
		return h.anchorsUnavailable(ctx)
	}

	var req AnchorItem
	if err := ctx.Bind(&req); err != nil {
		return ctx.JSON(http.StatusBadRequest, errorResponse{Error: "invalid request"})
	}
	if strings.TrimSpace(req.Text) == "" {
		return ctx.JSON(http.StatusBadRequest, errorResponse{Error: "text must not be empty"})
	}
	anchorType, err := domain.ParseAnchorType(strings.ToUpper(req.Type))
	if err != nil {
		return ctx.JSON(http.StatusBadRequest, errorResponse{Error: "type must be GREETING or UNSAFE"})
	}

	if err := h.anchorStore.AddAnchor(ctx.Request().Context(), domain.Anchor{Text: req.Text, Type: anchorType}); err != nil {
		return ctx.JSON(http.StatusServiceUnavailable, errorResponse{Error: "anchor index unavailable"})
	}
	return ctx.JSON(http.StatusCreated, AnchorItem{Text: req.Text, Type: string(anchorType)})
}

// Delete routing anchors by exact text
// (DELETE /v1/copilot/anchors?text=...)
func (h *Handler) DeleteAnchor(ctx echo.Context) error {
	if h.anchorStore == nil {
		return h.anchorsUnavailable(ctx)
	}

	text := ctx.QueryParam("text")
	if strings.TrimSpace(text) == "" {
		return ctx.JSON(http.StatusBadRequest, errorResponse{Error: "text query parameter is required"})
	}

	if err := h.anchorStore.DeleteAnchor(ctx.Request().Context(), text); err != nil {
		return ctx.JSON(http.StatusServiceUnavailable, errorResponse{Error: "anchor index unavailable"})
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (h *Handler) anchorsUnavailable(ctx echo.Context) error {
	return ctx.JSON(http.StatusConflict, errorResponse{Error: "anchor administration requires semantic routing mode"})
}
