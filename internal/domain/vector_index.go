package domain

import "context"

// CollectionInfo describes an index collection's shape.
type CollectionInfo struct {
	Exists     bool
	DenseSize  int
	PointCount int
}

// Point is a single upsert unit: an id, a dense vector, an optional sparse
// vector, and an arbitrary payload.
type Point struct {
	ID      string
	Dense   []float32
	Sparse  *SparseVector
	Payload map[string]any
}

// SparsePrefetch is the optional first stage of a two-stage query: a cheap
// sparse candidate pass whose results the dense vector then rescores.
type SparsePrefetch struct {
	Vector SparseVector
	Limit  int
}

// VectorQuery is a similarity query against a collection.
type VectorQuery struct {
	Dense       []float32
	Prefetch    *SparsePrefetch
	Limit       int
	WithPayload bool
}

// ScoredPoint is a raw query hit before domain conversion.
type ScoredPoint struct {
	ID      string
	Score   float32
	Payload map[string]any
}

// VectorIndex is the contract this core needs from the external vector index
// service. The index's own storage internals are out of scope; only this
// query surface matters.
type VectorIndex interface {
	CollectionInfo(ctx context.Context, collection string) (*CollectionInfo, error)
	// CreateCollection provisions a collection with the given dense
	// dimensionality; withSparse additionally configures a named sparse
	// vector space for hybrid prefetch.
	CreateCollection(ctx context.Context, collection string, denseSize int, withSparse bool) error
	DeleteCollection(ctx context.Context, collection string) error
	Upsert(ctx context.Context, collection string, points []Point) error
	Query(ctx context.Context, collection string, query VectorQuery) ([]ScoredPoint, error)
	// Scroll enumerates points with payloads, up to limit.
	Scroll(ctx context.Context, collection string, limit int) ([]ScoredPoint, error)
	// DeleteByField removes every point whose payload field exactly equals value.
	DeleteByField(ctx context.Context, collection, field, value string) error
}
