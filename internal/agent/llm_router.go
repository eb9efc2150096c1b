package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/hyperjump/astrabot/internal/llm"
	"github.com/hyperjump/astrabot/internal/models"
)

const routingInstructions = `You select the information tools needed to answer the user's latest message.
Use the conversation so far only to understand what the message refers to.

Available tools:
%s
Reply with a single JSON object and nothing else:
{"capabilities": [{"name": "<tool name>", "query": "<self-contained search query in German>"}], "off_topic": false}

Rules:
- List the tools in order of relevance. Use an empty list when no tool is needed.
- Set "off_topic" to true, with an empty list, when the message is outside the assistant's purpose.
- Greetings, thanks and questions about the assistant itself are not off topic.

The assistant's purpose:
%s`

type routeResponse struct {
	Capabilities []struct {
		Name  string `json:"name"`
		Query string `json:"query"`
	} `json:"capabilities"`
	OffTopic bool `json:"off_topic"`
}

// LLMRouter asks a language model to pick capabilities from their names and descriptions.
// Unusable model output falls back to the keyword router.
type LLMRouter struct {
	gen             llm.Generator
	fallback        Router
	maxCapabilities int
	logger          *zap.Logger
}

// NewLLMRouter returns a router backed by gen. A nil fallback uses a KeywordRouter.
func NewLLMRouter(gen llm.Generator, fallback Router, maxCaps int, logger *zap.Logger) *LLMRouter {
	if fallback == nil {
		fallback = NewKeywordRouter(maxCaps)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LLMRouter{gen: gen, fallback: fallback, maxCapabilities: maxCaps, logger: logger}
}

func (r *LLMRouter) Decide(ctx context.Context, in Input) (Decision, error) {
	reply, err := r.gen.Chat(ctx, routingMessages(in))
	if err != nil {
		if ctx.Err() != nil {
			return Decision{}, ctx.Err()
		}
		r.logger.Warn("Routing model failed, using keyword routing", zap.String("model", r.gen.Model()), zap.Error(err))
		return r.fallback.Decide(ctx, in)
	}
	d, err := r.parse(reply, in)
	if err != nil {
		r.logger.Warn("Unusable routing reply, using keyword routing", zap.Error(err))
		return r.fallback.Decide(ctx, in)
	}
	return d, nil
}

func routingMessages(in Input) []llm.Message {
	var tools strings.Builder
	for _, c := range in.Capabilities {
		fmt.Fprintf(&tools, "- %s: %s\n", c.Name(), c.Description())
	}
	prompt := DefaultSystemPrompt
	if in.Policy != nil {
		prompt = in.Policy.SystemPrompt()
	}
	msgs := []llm.Message{{Role: llm.RoleSystem, Content: fmt.Sprintf(routingInstructions, tools.String(), prompt)}}
	msgs = append(msgs, windowMessages(in.Window)...)
	return append(msgs, llm.Message{Role: llm.RoleUser, Content: in.Message})
}

func windowMessages(window []models.Turn) []llm.Message {
	msgs := make([]llm.Message, 0, len(window))
	for _, t := range window {
		role := llm.RoleUser
		if t.Role == models.RoleAssistant {
			role = llm.RoleAssistant
		}
		msgs = append(msgs, llm.Message{Role: role, Content: t.Content})
	}
	return msgs
}

func (r *LLMRouter) parse(reply string, in Input) (Decision, error) {
	start, end := strings.Index(reply, "{"), strings.LastIndex(reply, "}")
	if start < 0 || end < start {
		return Decision{}, errors.New("no JSON object in reply")
	}
	var resp routeResponse
	if err := json.Unmarshal([]byte(reply[start:end+1]), &resp); err != nil {
		return Decision{}, fmt.Errorf("decode routing reply: %w", err)
	}

	known := make(map[string]bool, len(in.Capabilities))
	for _, c := range in.Capabilities {
		known[c.Name()] = true
	}
	var d Decision
	seen := make(map[string]bool)
	for _, c := range resp.Capabilities {
		if !known[c.Name] || seen[c.Name] {
			r.logger.Debug("Dropping routed capability", zap.String("capability", c.Name))
			continue
		}
		seen[c.Name] = true
		query := strings.TrimSpace(c.Query)
		if query == "" {
			query = in.Message
		}
		d.Selections = append(d.Selections, Selection{Capability: c.Name, Query: query})
		if r.maxCapabilities > 0 && len(d.Selections) == r.maxCapabilities {
			break
		}
	}
	if len(d.Selections) == 0 {
		d.OffTopic = resp.OffTopic
		d.Greeting = !resp.OffTopic && isGreeting(in.Message)
	}
	return d, nil
}
