package domain

import "context"

// DenseEncoder produces fixed-length embeddings. The service runs two
// independent embedding spaces: 1536-dim for policy documents and 384-dim for
// routing anchors. They are never mixed; Dimensions tells callers which
// space an encoder belongs to.
type DenseEncoder interface {
	Encode(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
	Version() string
}

// SparseEncoder produces term-level sparse weight vectors for the hybrid
// prefetch stage.
type SparseEncoder interface {
	EncodeSparse(ctx context.Context, text string) (*SparseVector, error)
	Version() string
}
