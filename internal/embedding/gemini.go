package embedding

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

const (
	defaultGeminiEmbeddingModel = "text-embedding-004"
	defaultGeminiDimensions     = 768
	geminiBatchSize             = 100
)

// GeminiEmbedder calls the Gemini API embedContent endpoint.
type GeminiEmbedder struct {
	client     *genai.Client
	model      string
	dimensions int
}

// NewGeminiEmbedder creates an embedder requesting vectors of the given dimensions (default 768).
func NewGeminiEmbedder(ctx context.Context, apiKey, model string, dimensions int) (*GeminiEmbedder, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini embedder: API key is required")
	}
	if model == "" {
		model = defaultGeminiEmbeddingModel
	}
	if dimensions <= 0 {
		dimensions = defaultGeminiDimensions
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini embedder: create client: %w", err)
	}
	return &GeminiEmbedder{client: client, model: model, dimensions: dimensions}, nil
}

// Embed returns the embedding of a single text.
func (e *GeminiEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch embeds texts in request-sized groups, preserving order.
func (e *GeminiEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return batched(ctx, texts, geminiBatchSize, e.embed)
}

func (e *GeminiEmbedder) embed(ctx context.Context, texts []string) ([][]float32, error) {
	contents := make([]*genai.Content, len(texts))
	for i, t := range texts {
		contents[i] = genai.NewContentFromText(t, genai.RoleUser)
	}
	dims := int32(e.dimensions)
	result, err := e.client.Models.EmbedContent(ctx, e.model, contents, &genai.EmbedContentConfig{
		OutputDimensionality: &dims,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini embeddings: %w", err)
	}
	if result == nil || len(result.Embeddings) != len(texts) {
		return nil, fmt.Errorf("gemini embeddings: unexpected result size for %d inputs", len(texts))
	}
	out := make([][]float32, len(texts))
	for i, emb := range result.Embeddings {
		if emb == nil || len(emb.Values) != e.dimensions {
			return nil, fmt.Errorf("gemini embeddings: vector %d has wrong dimensions", i)
		}
		out[i] = emb.Values
	}
	return out, nil
}

// Dimensions returns the embedding dimension.
func (e *GeminiEmbedder) Dimensions() int { return e.dimensions }

// Model returns the provider-qualified model name.
func (e *GeminiEmbedder) Model() string { return "gemini:" + e.model }

// Close is a no-op.
func (e *GeminiEmbedder) Close() error { return nil }
