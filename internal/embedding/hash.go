package embedding

import (
	"context"
	"fmt"
)

// HashEmbedder is a deterministic, offline embedder using signed feature hashing over word
// tokens and character trigrams. It needs no model files and captures lexical overlap,
// including shared stems of German compounds ("Krebs" / "Krebsfrüherkennung").
type HashEmbedder struct {
	dimensions int
}

// NewHashEmbedder returns an embedder producing vectors of the given dimensions (default 384).
func NewHashEmbedder(dimensions int) *HashEmbedder {
	if dimensions <= 0 {
		dimensions = 384
	}
	return &HashEmbedder{dimensions: dimensions}
}

// Embed returns the L2-normalized hashed feature vector of text.
func (e *HashEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	vec := make([]float32, e.dimensions)
	for _, word := range SplitWords(text) {
		e.add(vec, "w:"+word, 1.0)
		runes := []rune("^" + word + "$")
		for i := 0; i+3 <= len(runes); i++ {
			e.add(vec, "t:"+string(runes[i:i+3]), 0.35)
		}
	}
	normalize(vec)
	return vec, nil
}

func (e *HashEmbedder) add(vec []float32, feature string, weight float32) {
	h := HashString(feature)
	idx := int(h % uint64(e.dimensions))
	if h&(1<<63) != 0 {
		weight = -weight
	}
	vec[idx] += weight
}

// EmbedBatch calls Embed for each text.
func (e *HashEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		emb, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		embeddings[i] = emb
	}
	return embeddings, nil
}

// Dimensions returns the embedding dimension.
func (e *HashEmbedder) Dimensions() int {
	return e.dimensions
}

// Model returns the hashing scheme identifier.
func (e *HashEmbedder) Model() string {
	return fmt.Sprintf("hash-trigram-%d", e.dimensions)
}

// Close is a no-op.
func (e *HashEmbedder) Close() error {
	return nil
}
