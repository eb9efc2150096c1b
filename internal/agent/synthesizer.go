package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/hyperjump/astrabot/internal/llm"
	"github.com/hyperjump/astrabot/internal/models"
	"github.com/hyperjump/astrabot/internal/search"
)

// Request is the material for composing one reply.
type Request struct {
	Policy   *Policy
	Language Language
	Message  string
	Window   []models.Turn
	Decision Decision
	// Results holds only successful capability queries, in decision order.
	Results []models.CapabilityResult
}

// Synthesizer composes the reply text for a turn.
type Synthesizer interface {
	Synthesize(ctx context.Context, req Request) (string, error)
}

// LLMSynthesizer writes replies with a language model.
type LLMSynthesizer struct {
	gen llm.Generator
}

func NewLLMSynthesizer(gen llm.Generator) *LLMSynthesizer {
	return &LLMSynthesizer{gen: gen}
}

// Synthesize fails with models.ErrGenerationFailure when the model errors or returns nothing.
func (s *LLMSynthesizer) Synthesize(ctx context.Context, req Request) (string, error) {
	msgs := []llm.Message{{Role: llm.RoleSystem, Content: systemMessage(req)}}
	msgs = append(msgs, windowMessages(req.Window)...)
	msgs = append(msgs, llm.Message{Role: llm.RoleUser, Content: req.Message})

	reply, err := s.gen.Chat(ctx, msgs)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", models.ErrGenerationFailure, s.gen.Model(), err)
	}
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return "", fmt.Errorf("%w: %s: empty reply", models.ErrGenerationFailure, s.gen.Model())
	}
	return reply, nil
}

func systemMessage(req Request) string {
	var b strings.Builder
	b.WriteString(req.Policy.SystemPrompt())
	if name := req.Language.Name(); name != "" {
		fmt.Fprintf(&b, "\n\nThe user's latest message is in %s. Answer in %s.", name, name)
	} else {
		b.WriteString("\n\nAnswer in the language of the user's latest message.")
	}

	if len(req.Decision.Selections) == 0 {
		return b.String()
	}
	if len(req.Results) == 0 || passageCount(req.Results) == 0 {
		b.WriteString("\n\nNo reference information was found for this message. Say so briefly and suggest asking a doctor.")
		return b.String()
	}
	b.WriteString("\n\nReference information (German). Base your answer on it and translate where needed:\n")
	for _, r := range req.Results {
		for _, p := range r.Passages {
			fmt.Fprintf(&b, "\n[%s %d]\n%s\n", r.Capability, p.Rank, strings.TrimSpace(p.Text()))
		}
	}
	return b.String()
}

func passageCount(results []models.CapabilityResult) int {
	n := 0
	for _, r := range results {
		n += len(r.Passages)
	}
	return n
}

// ExtractiveSynthesizer answers without a language model by quoting the best passages.
// Passages are quoted as stored, so only the introduction follows the user's language.
type ExtractiveSynthesizer struct {
	// SnippetLength caps each quoted passage in runes.
	SnippetLength int
}

func NewExtractiveSynthesizer() *ExtractiveSynthesizer {
	return &ExtractiveSynthesizer{SnippetLength: 300}
}

func (s *ExtractiveSynthesizer) Synthesize(_ context.Context, req Request) (string, error) {
	texts := req.Policy.Texts(req.Language)
	if len(req.Decision.Selections) == 0 {
		if req.Decision.Greeting {
			return texts.Greeting, nil
		}
		return texts.Clarify, nil
	}
	if passageCount(req.Results) == 0 {
		return texts.NoResults, nil
	}

	var b strings.Builder
	b.WriteString(texts.Sources)
	for _, r := range req.Results {
		for _, p := range r.Passages {
			b.WriteString("\n\n- ")
			b.WriteString(search.Snippet(p.Text(), req.Message, s.SnippetLength))
		}
	}
	return b.String(), nil
}
