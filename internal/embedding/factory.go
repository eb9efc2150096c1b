package embedding

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/hyperjump/astrabot/internal/config"
)

// New builds the embedder selected by cfg and wraps it with the query cache.
// The "auto" provider picks the first of OpenAI, Gemini (by available API key), a local ONNX
// model (if the model file exists and CGO is enabled), and finally the hashing embedder.
func New(ctx context.Context, cfg config.EmbeddingConfig, logger *zap.Logger) (Embedder, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	inner, err := newProvider(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	logger.Info("embedder ready", zap.String("model", inner.Model()), zap.Int("dimensions", inner.Dimensions()))
	return NewCachedEmbedder(inner, cfg.CacheSize), nil
}

func newProvider(ctx context.Context, cfg config.EmbeddingConfig, logger *zap.Logger) (Embedder, error) {
	switch cfg.Provider {
	case config.ProviderOpenAI:
		return NewOpenAIEmbedder(config.APIKey(config.ProviderOpenAI, cfg.APIKeyEnv), cfg.BaseURL, cfg.Model, cfg.Dimensions)
	case config.ProviderGemini:
		return NewGeminiEmbedder(ctx, config.APIKey(config.ProviderGemini, cfg.APIKeyEnv), cfg.Model, cfg.Dimensions)
	case config.ProviderONNX:
		return NewONNXEmbedder(cfg.ModelPath, cfg.Dimensions, cfg.MaxTokens)
	case config.ProviderHash:
		return NewHashEmbedder(cfg.Dimensions), nil
	case config.ProviderAuto, "":
		return autoProvider(ctx, cfg, logger), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}
}

func autoProvider(ctx context.Context, cfg config.EmbeddingConfig, logger *zap.Logger) Embedder {
	if key := config.APIKey(config.ProviderOpenAI, cfg.APIKeyEnv); key != "" {
		e, err := NewOpenAIEmbedder(key, cfg.BaseURL, cfg.Model, 0)
		if err == nil {
			return e
		}
		logger.Warn("openai embedder unavailable", zap.Error(err))
	}
	if key := config.APIKey(config.ProviderGemini, cfg.APIKeyEnv); key != "" {
		e, err := NewGeminiEmbedder(ctx, key, "", 0)
		if err == nil {
			return e
		}
		logger.Warn("gemini embedder unavailable", zap.Error(err))
	}
	if cfg.ModelPath != "" {
		if _, statErr := os.Stat(cfg.ModelPath); statErr == nil {
			e, err := NewONNXEmbedder(cfg.ModelPath, cfg.Dimensions, cfg.MaxTokens)
			if err == nil {
				return e
			}
			logger.Warn("ONNX embedder unavailable, using hashing embedder", zap.Error(err))
		}
	}
	return NewHashEmbedder(cfg.Dimensions)
}
