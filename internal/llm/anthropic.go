package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const defaultAnthropicModel = "claude-sonnet-4-20250514"

// AnthropicGenerator calls the Anthropic Messages API.
type AnthropicGenerator struct {
	client   anthropic.Client
	settings Settings
}

// NewAnthropicGenerator creates an Anthropic-backed generator.
func NewAnthropicGenerator(apiKey string, settings Settings) (*AnthropicGenerator, error) {
	if apiKey == "" {
		return nil, errors.New("anthropic: API key is required")
	}
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if settings.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(settings.BaseURL))
	}
	return &AnthropicGenerator{
		client:   anthropic.NewClient(opts...),
		settings: settings.withDefaults(defaultAnthropicModel),
	}, nil
}

// Chat moves the system message into the request's system field and sends the rest.
func (g *AnthropicGenerator) Chat(ctx context.Context, messages []Message) (string, error) {
	if err := validate(messages); err != nil {
		return "", err
	}
	ctx, cancel := context.WithTimeout(ctx, g.settings.Timeout)
	defer cancel()

	system, rest := splitSystem(messages)
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(g.settings.Model),
		MaxTokens: int64(g.settings.MaxTokens),
		Messages:  make([]anthropic.MessageParam, 0, len(rest)),
	}
	for _, m := range rest {
		block := anthropic.NewTextBlock(m.Content)
		if m.Role == RoleAssistant {
			params.Messages = append(params.Messages, anthropic.NewAssistantMessage(block))
		} else {
			params.Messages = append(params.Messages, anthropic.NewUserMessage(block))
		}
	}
	if g.settings.Temperature > 0 {
		params.Temperature = anthropic.Float(g.settings.Temperature)
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	resp, err := g.client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("anthropic messages: %w", err)
	}
	var out strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			out.WriteString(block.Text)
		}
	}
	if out.Len() == 0 {
		return "", errors.New("anthropic returned no text")
	}
	return out.String(), nil
}

// Model returns "anthropic:<model>".
func (g *AnthropicGenerator) Model() string { return "anthropic:" + g.settings.Model }
