package routing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"policy-copilot/internal/domain"
)

func semanticFixture(index *stubIndex, encoder *stubEncoder) *SemanticRouter {
	if index.info == nil {
		index.info = &domain.CollectionInfo{Exists: true, DenseSize: encoder.dims, PointCount: 28}
	}
	store := NewAnchorStore(index, encoder, "guardrails", testLogger())
	return NewSemanticRouter(store, encoder, DefaultUnsafeThreshold, DefaultGreetingThreshold, testLogger())
}

func TestSemanticRouter_GreetingAboveThreshold(t *testing.T) {
	index := &stubIndex{queryResult: []domain.ScoredPoint{
		{ID: "1", Score: 0.82, Payload: map[string]any{"type": "GREETING", "text": "hello"}},
	}}
	router := semanticFixture(index, &stubEncoder{dims: 384, vector: []float32{0.1}})

	assert.Equal(t, domain.RouteGreeting, router.Route(context.Background(), "hey there"))
}

func TestSemanticRouter_GreetingBelowThreshold(t *testing.T) {
	index := &stubIndex{queryResult: []domain.ScoredPoint{
		{ID: "1", Score: 0.64, Payload: map[string]any{"type": "GREETING", "text": "hello"}},
	}}
	router := semanticFixture(index, &stubEncoder{dims: 384, vector: []float32{0.1}})

	assert.Equal(t, domain.RouteBusiness, router.Route(context.Background(), "hello deductible"))
}

func TestSemanticRouter_UnsafeThresholdIsLowerThanGreeting(t *testing.T) {
	// 0.62 clears the unsafe bar but would not clear the greeting bar.
	index := &stubIndex{queryResult: []domain.ScoredPoint{
		{ID: "1", Score: 0.62, Payload: map[string]any{"type": "UNSAFE", "text": "drop table"}},
	}}
	router := semanticFixture(index, &stubEncoder{dims: 384, vector: []float32{0.1}})

	assert.Equal(t, domain.RouteUnsafe, router.Route(context.Background(), "drop the tables"))
}

func TestSemanticRouter_FailsOpenOnEncoderError(t *testing.T) {
	index := &stubIndex{}
	encoder := &stubEncoder{dims: 384, err: errors.New("embedder down")}
	router := semanticFixture(index, encoder)

	assert.Equal(t, domain.RouteBusiness, router.Route(context.Background(), "hello"))
}

func TestSemanticRouter_FailsOpenOnIndexError(t *testing.T) {
	index := &stubIndex{queryErr: errors.New("index down")}
	router := semanticFixture(index, &stubEncoder{dims: 384, vector: []float32{0.1}})

	assert.Equal(t, domain.RouteBusiness, router.Route(context.Background(), "hello"))
}

func TestSemanticRouter_EmptyAnchorCollectionIsBusiness(t *testing.T) {
	index := &stubIndex{queryResult: []domain.ScoredPoint{}}
	router := semanticFixture(index, &stubEncoder{dims: 384, vector: []float32{0.1}})

	assert.Equal(t, domain.RouteBusiness, router.Route(context.Background(), "anything"))
}
