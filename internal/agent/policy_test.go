package agent

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDetectLanguage(t *testing.T) {
	tests := []struct {
		text string
		want Language
	}{
		{"Welche Nebenwirkungen hat Lynparza?", German},
		{"What are the side effects of Lynparza?", English},
		{"Früherkennung", German},
		{"How often should I go to the check-up?", English},
		{"Wie oft soll ich zur Vorsorgeuntersuchung gehen?", German},
		{"Quels sont les effets secondaires de Lynparza ?", French},
		{"¿Cuáles son los efectos secundarios de Lynparza?", Spanish},
		{"Quali sono gli effetti collaterali di Lynparza?", Italian},
		{"Lynparza", Unknown},
		{"Lynparza side effects?", Unknown},
		{"", Unknown},
		// one German and one English stop word
		{"Lynparza und the", Unknown},
	}
	for _, tt := range tests {
		if got := DetectLanguage(tt.text); got != tt.want {
			t.Errorf("DetectLanguage(%q) = %s, want %s", tt.text, got, tt.want)
		}
	}
}

func TestLoadPolicy(t *testing.T) {
	p, err := LoadPolicy("")
	if err != nil || p.SystemPrompt() != DefaultSystemPrompt {
		t.Fatalf("default policy: %v", err)
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "policy.txt")
	if err := os.WriteFile(path, []byte("\nDu bist ein Testbot.\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	p, err = LoadPolicy(path)
	if err != nil {
		t.Fatal(err)
	}
	if p.SystemPrompt() != "Du bist ein Testbot." {
		t.Errorf("SystemPrompt = %q", p.SystemPrompt())
	}
	if p.Texts(English).Decline == "" || p.Texts(French).Decline == p.Texts(German).Decline {
		t.Error("texts not defaulted")
	}

	empty := filepath.Join(dir, "empty.txt")
	os.WriteFile(empty, []byte("  \n"), 0o600)
	if _, err := LoadPolicy(empty); err == nil {
		t.Error("expected error for empty policy file")
	}
	if _, err := LoadPolicy(filepath.Join(dir, "missing.txt")); err == nil {
		t.Error("expected error for missing policy file")
	}
}

func TestPolicy_TextsFallback(t *testing.T) {
	p := DefaultPolicy()
	for _, lang := range []Language{Unknown, "pt"} {
		got := p.Texts(lang)
		for _, pair := range [][3]string{
			{got.Decline, p.Texts(German).Decline, p.Texts(English).Decline},
			{got.Apology, p.Texts(German).Apology, p.Texts(English).Apology},
			{got.Clarify, p.Texts(German).Clarify, p.Texts(English).Clarify},
		} {
			if !strings.HasPrefix(pair[0], pair[1]) || !strings.HasSuffix(pair[0], pair[2]) {
				t.Errorf("Texts(%s) = %q, want German then English", lang, pair[0])
			}
		}
	}
	for _, lang := range []Language{German, English, French, Spanish, Italian} {
		if lang.Name() == "" || p.Texts(lang).Apology == "" {
			t.Errorf("%s lacks a name or texts", lang)
		}
	}
	if Unknown.Name() != "" {
		t.Errorf("Unknown.Name() = %q", Unknown.Name())
	}
}

func TestPolicy_UI(t *testing.T) {
	p := DefaultPolicy()
	ui := p.UI()
	if ui.Title != "Astrabot" || ui.Placeholder != "Stell mir eine Frage" || len(ui.Greeting) != 3 {
		t.Errorf("UI = %+v", ui)
	}
	ui.Greeting[0] = "changed"
	if strings.HasPrefix(p.UI().Greeting[0], "changed") {
		t.Error("UI greeting is shared")
	}
}
