package config

import (
	"os"

	"github.com/joho/godotenv"
)

const (
	ProviderOpenAI     = "openai"
	ProviderAnthropic  = "anthropic"
	ProviderGemini     = "gemini"
	ProviderONNX       = "onnx"
	ProviderHash       = "hash"
	ProviderExtractive = "extractive"
)

// defaultKeyEnv maps remote providers to the environment variable holding their API key.
var defaultKeyEnv = map[string][]string{
	ProviderOpenAI:    {"OPENAI_API_KEY"},
	ProviderAnthropic: {"ANTHROPIC_API_KEY"},
	ProviderGemini:    {"GEMINI_API_KEY", "GOOGLE_API_KEY"},
}

// LoadDotEnv loads KEY=value pairs from the given .env files (default ".env") into the
// process environment. Missing files are ignored and existing variables are not overridden.
func LoadDotEnv(paths ...string) {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		_ = godotenv.Load(p)
	}
}

// APIKey returns the API key for provider. keyEnv overrides the provider's default variable names.
func APIKey(provider, keyEnv string) string {
	if keyEnv != "" {
		return os.Getenv(keyEnv)
	}
	for _, name := range defaultKeyEnv[provider] {
		if v := os.Getenv(name); v != "" {
			return v
		}
	}
	return ""
}
