package llm

import (
	"context"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

const defaultOpenAIModel = "gpt-4o-mini"

// OpenAIGenerator calls the OpenAI chat completion API, or a compatible server via BaseURL.
type OpenAIGenerator struct {
	client   *openai.Client
	settings Settings
}

// NewOpenAIGenerator creates an OpenAI-backed generator.
func NewOpenAIGenerator(apiKey string, settings Settings) (*OpenAIGenerator, error) {
	if apiKey == "" {
		return nil, errors.New("openai: API key is required")
	}
	cfg := openai.DefaultConfig(apiKey)
	if settings.BaseURL != "" {
		cfg.BaseURL = settings.BaseURL
	}
	return &OpenAIGenerator{
		client:   openai.NewClientWithConfig(cfg),
		settings: settings.withDefaults(defaultOpenAIModel),
	}, nil
}

// Chat sends the message history and returns the first choice.
func (g *OpenAIGenerator) Chat(ctx context.Context, messages []Message) (string, error) {
	if err := validate(messages); err != nil {
		return "", err
	}
	ctx, cancel := context.WithTimeout(ctx, g.settings.Timeout)
	defer cancel()

	oaMsgs := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		role := m.Role
		if role != openai.ChatMessageRoleSystem && role != openai.ChatMessageRoleAssistant {
			role = openai.ChatMessageRoleUser
		}
		oaMsgs = append(oaMsgs, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}

	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       g.settings.Model,
		Messages:    oaMsgs,
		Temperature: float32(g.settings.Temperature),
		MaxTokens:   g.settings.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", errors.New("openai returned no content")
	}
	return resp.Choices[0].Message.Content, nil
}

// Model returns "openai:<model>".
func (g *OpenAIGenerator) Model() string { return "openai:" + g.settings.Model }
