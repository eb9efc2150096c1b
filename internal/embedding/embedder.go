// Package embedding turns text into vectors for semantic retrieval.
package embedding

import (
	"context"

	"github.com/hyperjump/astrabot/internal/vector"
)

// Embedder produces vector embeddings for text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	// Model identifies the embedding model; persisted indexes record it to detect mismatches.
	Model() string
	Close() error
}

// CachedEmbedder memoizes single-text embeddings of an inner embedder.
// Batches bypass the cache since they are only used while building indexes.
type CachedEmbedder struct {
	Embedder
	cache *EmbeddingCache
}

// NewCachedEmbedder wraps inner with an LRU cache of the given capacity.
func NewCachedEmbedder(inner Embedder, capacity int) *CachedEmbedder {
	return &CachedEmbedder{Embedder: inner, cache: NewEmbeddingCache(capacity)}
}

// Embed returns the cached embedding for text or computes and stores it.
func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if v, ok := c.cache.Get(text); ok {
		return v, nil
	}
	v, err := c.Embedder.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	c.cache.Set(text, v)
	return v, nil
}

// batched splits texts into groups of at most size and calls fn for each, concatenating results.
func batched(ctx context.Context, texts []string, size int, fn func(context.Context, []string) ([][]float32, error)) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += size {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		end := start + size
		if end > len(texts) {
			end = len(texts)
		}
		vecs, err := fn(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, vecs...)
	}
	return out, nil
}

// normalize scales v in place to unit length so inner products of stored vectors are cosines.
// A zero vector stays zero.
func normalize(v []float32) {
	n := vector.L2Norm(v)
	if n == 0 {
		return
	}
	inv := float32(1 / n)
	for i := range v {
		v[i] *= inv
	}
}
