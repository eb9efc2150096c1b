package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

const defaultGeminiModel = "gemini-2.0-flash"

// GeminiGenerator calls the Gemini API through google.golang.org/genai.
type GeminiGenerator struct {
	client   *genai.Client
	settings Settings
}

// NewGeminiGenerator creates a Gemini-backed generator.
func NewGeminiGenerator(ctx context.Context, apiKey string, settings Settings) (*GeminiGenerator, error) {
	if apiKey == "" {
		return nil, errors.New("gemini: API key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	return &GeminiGenerator{client: client, settings: settings.withDefaults(defaultGeminiModel)}, nil
}

// geminiContents converts non-system messages; assistant turns take the model role.
func geminiContents(messages []Message) []*genai.Content {
	contents := make([]*genai.Content, 0, len(messages))
	for _, m := range messages {
		var role genai.Role = genai.RoleUser
		if m.Role == RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(m.Content, role))
	}
	return contents
}

// Chat maps assistant turns to the model role and passes the system message as system instruction.
func (g *GeminiGenerator) Chat(ctx context.Context, messages []Message) (string, error) {
	if err := validate(messages); err != nil {
		return "", err
	}
	ctx, cancel := context.WithTimeout(ctx, g.settings.Timeout)
	defer cancel()

	system, rest := splitSystem(messages)
	contents := geminiContents(rest)
	cfg := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(float32(g.settings.Temperature)),
		MaxOutputTokens: int32(g.settings.MaxTokens),
	}
	if system != "" {
		cfg.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.settings.Model, contents, cfg)
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	var out strings.Builder
	if resp != nil {
		for _, cand := range resp.Candidates {
			if cand.Content == nil {
				continue
			}
			for _, part := range cand.Content.Parts {
				out.WriteString(part.Text)
			}
			if out.Len() > 0 {
				break
			}
		}
	}
	if out.Len() == 0 {
		return "", errors.New("gemini returned no text")
	}
	return out.String(), nil
}

// Model returns "gemini:<model>".
func (g *GeminiGenerator) Model() string { return "gemini:" + g.settings.Model }
