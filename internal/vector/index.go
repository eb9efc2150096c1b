// Package vector provides the embedding index used for semantic passage retrieval.
package vector

import (
	"context"
	"errors"
)

// ErrCorrupt is returned by Load when a persisted index fails validation.
var ErrCorrupt = errors.New("corrupt vector index")

// VectorIndex stores embeddings by ID and answers nearest-neighbour queries.
type VectorIndex interface {
	Add(ctx context.Context, ids []string, vectors [][]float32) error
	Search(ctx context.Context, query []float32, k int) ([]*VectorResult, error)
	Save(path string) error
	Load(path string) error
	Size() int
	Dimensions() int
	Close() error
}

// VectorResult is a single search hit; ID is the document unit ID.
type VectorResult struct {
	ID    string
	Score float64 // inner product, equal to cosine similarity for normalized vectors
}
