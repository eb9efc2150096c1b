// Package llm provides chat-completion backends behind a single Generator interface.
package llm

import (
	"context"
	"errors"
	"time"
)

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ErrNoProvider is returned by New when auto selection finds no usable backend.
var ErrNoProvider = errors.New("no language model provider configured")

// Message is one chat message. Role is RoleSystem, RoleUser or RoleAssistant.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Generator produces a completion for a message history.
type Generator interface {
	Chat(ctx context.Context, messages []Message) (string, error)
	// Model identifies the backend and model, e.g. "openai:gpt-4o-mini".
	Model() string
}

// Settings are the tuning knobs shared by all backends.
type Settings struct {
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
	BaseURL     string
}

func (s Settings) withDefaults(model string) Settings {
	if s.Model == "" {
		s.Model = model
	}
	if s.MaxTokens <= 0 {
		s.MaxTokens = 1024
	}
	if s.Timeout <= 0 {
		s.Timeout = 60 * time.Second
	}
	return s
}

// splitSystem returns the first system message and the remaining conversation.
func splitSystem(messages []Message) (string, []Message) {
	var system string
	rest := make([]Message, 0, len(messages))
	for _, m := range messages {
		if m.Role == RoleSystem {
			if system == "" {
				system = m.Content
			}
			continue
		}
		rest = append(rest, m)
	}
	return system, rest
}

func validate(messages []Message) error {
	for _, m := range messages {
		if m.Role == RoleUser {
			return nil
		}
	}
	return errors.New("at least one user message is required")
}
