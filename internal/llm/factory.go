package llm

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/hyperjump/astrabot/internal/config"
)

// New builds the generator selected by cfg.
// "auto" picks the first provider with an API key in the order OpenAI, Anthropic, Gemini and
// returns ErrNoProvider when none has one. "extractive" always returns ErrNoProvider so the
// caller runs without a language model.
func New(ctx context.Context, cfg config.LLMConfig, logger *zap.Logger) (Generator, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	settings := Settings{
		Model:       cfg.Model,
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
		Timeout:     cfg.Timeout,
		BaseURL:     cfg.BaseURL,
	}
	switch cfg.Provider {
	case config.ProviderOpenAI, config.ProviderAnthropic, config.ProviderGemini:
		return newProvider(ctx, cfg.Provider, config.APIKey(cfg.Provider, cfg.APIKeyEnv), settings)
	case config.ProviderExtractive:
		return nil, ErrNoProvider
	case config.ProviderAuto, "":
		for _, p := range []string{config.ProviderOpenAI, config.ProviderAnthropic, config.ProviderGemini} {
			key := config.APIKey(p, cfg.APIKeyEnv)
			if key == "" {
				continue
			}
			// A configured model name only applies to an explicitly chosen provider.
			g, err := newProvider(ctx, p, key, Settings{
				Temperature: settings.Temperature,
				MaxTokens:   settings.MaxTokens,
				Timeout:     settings.Timeout,
			})
			if err != nil {
				logger.Warn("language model provider unavailable", zap.String("provider", p), zap.Error(err))
				continue
			}
			logger.Info("language model ready", zap.String("model", g.Model()))
			return g, nil
		}
		return nil, ErrNoProvider
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}

func newProvider(ctx context.Context, provider, key string, settings Settings) (Generator, error) {
	switch provider {
	case config.ProviderOpenAI:
		return NewOpenAIGenerator(key, settings)
	case config.ProviderAnthropic:
		return NewAnthropicGenerator(key, settings)
	default:
		return NewGeminiGenerator(ctx, key, settings)
	}
}
