package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hyperjump/astrabot/internal/config"
)

func clearKeys(t *testing.T) {
	t.Helper()
	for _, k := range []string{"OPENAI_API_KEY", "ANTHROPIC_API_KEY", "GEMINI_API_KEY", "GOOGLE_API_KEY"} {
		t.Setenv(k, "")
	}
}

func TestNew_selection(t *testing.T) {
	ctx := context.Background()

	t.Run("auto without keys", func(t *testing.T) {
		clearKeys(t)
		if _, err := New(ctx, config.LLMConfig{Provider: config.ProviderAuto}, nil); !errors.Is(err, ErrNoProvider) {
			t.Errorf("expected ErrNoProvider, got %v", err)
		}
	})

	t.Run("auto prefers anthropic over gemini", func(t *testing.T) {
		clearKeys(t)
		t.Setenv("ANTHROPIC_API_KEY", "sk-ant")
		t.Setenv("GEMINI_API_KEY", "g")
		g, err := New(ctx, config.LLMConfig{Provider: config.ProviderAuto}, nil)
		if err != nil {
			t.Fatal(err)
		}
		if !strings.HasPrefix(g.Model(), "anthropic:") {
			t.Errorf("Model() = %s", g.Model())
		}
	})

	t.Run("explicit provider with model", func(t *testing.T) {
		clearKeys(t)
		t.Setenv("OPENAI_API_KEY", "sk")
		g, err := New(ctx, config.LLMConfig{Provider: config.ProviderOpenAI, Model: "gpt-4o"}, nil)
		if err != nil {
			t.Fatal(err)
		}
		if g.Model() != "openai:gpt-4o" {
			t.Errorf("Model() = %s", g.Model())
		}
	})

	t.Run("explicit provider without key", func(t *testing.T) {
		clearKeys(t)
		if _, err := New(ctx, config.LLMConfig{Provider: config.ProviderAnthropic}, nil); err == nil {
			t.Error("expected missing key error")
		}
	})

	t.Run("extractive", func(t *testing.T) {
		t.Setenv("OPENAI_API_KEY", "sk")
		if _, err := New(ctx, config.LLMConfig{Provider: config.ProviderExtractive}, nil); !errors.Is(err, ErrNoProvider) {
			t.Errorf("expected ErrNoProvider, got %v", err)
		}
	})

	t.Run("unknown", func(t *testing.T) {
		if _, err := New(ctx, config.LLMConfig{Provider: "llama"}, nil); err == nil {
			t.Error("expected error")
		}
	})
}

func TestSplitSystem(t *testing.T) {
	system, rest := splitSystem([]Message{
		{Role: RoleSystem, Content: "policy"},
		{Role: RoleUser, Content: "hi"},
		{Role: RoleSystem, Content: "ignored"},
		{Role: RoleAssistant, Content: "hello"},
	})
	if system != "policy" || len(rest) != 2 || rest[1].Role != RoleAssistant {
		t.Errorf("splitSystem = %q %+v", system, rest)
	}
	if err := validate(rest[1:]); err == nil {
		t.Error("validate should require a user message")
	}
}

func TestGeminiContents(t *testing.T) {
	_, rest := splitSystem([]Message{
		{Role: RoleSystem, Content: "policy"},
		{Role: RoleUser, Content: "Was ist Lynparza?"},
		{Role: RoleAssistant, Content: "Ein PARP-Hemmer."},
		{Role: RoleUser, Content: "Und die Dosis?"},
	})
	contents := geminiContents(rest)
	if len(contents) != 3 {
		t.Fatalf("contents = %d, want 3", len(contents))
	}
	wantRoles := []string{"user", "model", "user"}
	for i, c := range contents {
		if c.Role != wantRoles[i] {
			t.Errorf("contents[%d].Role = %q, want %q", i, c.Role, wantRoles[i])
		}
		if len(c.Parts) != 1 || c.Parts[0].Text != rest[i].Content {
			t.Errorf("contents[%d] text = %+v", i, c.Parts)
		}
	}
}

func TestOpenAIGenerator_Chat(t *testing.T) {
	var got struct {
		Model    string    `json:"model"`
		Messages []Message `json:"messages"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"c1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"Hallo!"},"finish_reason":"stop"}]}`)
	}))
	defer srv.Close()

	g, err := NewOpenAIGenerator("sk", Settings{Model: "gpt-test", BaseURL: srv.URL + "/v1", Timeout: 5 * time.Second})
	if err != nil {
		t.Fatal(err)
	}
	reply, err := g.Chat(context.Background(), []Message{
		{Role: RoleSystem, Content: "Sei freundlich."},
		{Role: RoleUser, Content: "Hallo"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if reply != "Hallo!" {
		t.Errorf("reply = %q", reply)
	}
	if got.Model != "gpt-test" || len(got.Messages) != 2 || got.Messages[0].Role != RoleSystem {
		t.Errorf("request = %+v", got)
	}
}

func TestAnthropicGenerator_Chat(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"msg_1","type":"message","role":"assistant","model":"claude-test",
			"content":[{"type":"text","text":"Guten Tag."}],"stop_reason":"end_turn",
			"usage":{"input_tokens":3,"output_tokens":2}}`)
	}))
	defer srv.Close()

	g, err := NewAnthropicGenerator("sk-ant", Settings{Model: "claude-test", BaseURL: srv.URL, Timeout: 5 * time.Second})
	if err != nil {
		t.Fatal(err)
	}
	reply, err := g.Chat(context.Background(), []Message{
		{Role: RoleSystem, Content: "Du bist AstraBot."},
		{Role: RoleUser, Content: "Hallo"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if reply != "Guten Tag." {
		t.Errorf("reply = %q", reply)
	}
	if msgs, _ := got["messages"].([]any); len(msgs) != 1 {
		t.Errorf("system message should not be sent as a turn: %v", got["messages"])
	}
	if got["system"] == nil {
		t.Error("system field missing")
	}
}

func TestGenerators_rejectMissingKey(t *testing.T) {
	if _, err := NewOpenAIGenerator("", Settings{}); err == nil {
		t.Error("openai: expected error")
	}
	if _, err := NewAnthropicGenerator("", Settings{}); err == nil {
		t.Error("anthropic: expected error")
	}
	if _, err := NewGeminiGenerator(context.Background(), "", Settings{}); err == nil {
		t.Error("gemini: expected error")
	}
}
