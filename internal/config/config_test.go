package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  host: "127.0.0.1"
  port: 9000
storage:
  index_root: "./indices"
llm:
  provider: openai
  model: gpt-4o-mini
  timeout: 30s
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9000 {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
	if want := filepath.Join(dir, "indices"); cfg.Storage.IndexRoot != want {
		t.Errorf("index_root = %s, want %s", cfg.Storage.IndexRoot, want)
	}
	if cfg.LLM.Timeout != 30*time.Second {
		t.Errorf("llm timeout = %v, want 30s", cfg.LLM.Timeout)
	}
	if cfg.Debug {
		t.Error("debug should default to false when unset")
	}
	if len(cfg.Collections) != 3 {
		t.Fatalf("expected default collections, got %d", len(cfg.Collections))
	}
}

func TestLoad_collectionsRelativeToConfigDir(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
collections:
  - name: lynparza
    description: "Liefert Informationen über das Krebsmedikament Lynparza."
    source_dir: "./docs/Lynparza"
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(cfg.Collections) != 1 {
		t.Fatalf("collections: got %d", len(cfg.Collections))
	}
	want := filepath.Join(dir, "docs", "Lynparza")
	if cfg.Collections[0].SourceDir != want {
		t.Errorf("source_dir = %s, want %s", cfg.Collections[0].SourceDir, want)
	}
	if got := cfg.CollectionDir("lynparza"); got != filepath.Join(dir, "data", "lynparza") {
		t.Errorf("CollectionDir = %s", got)
	}
}

func TestLoad_rejectsInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name: "duplicate collection",
			content: `
collections:
  - {name: kfe, source_dir: ./a}
  - {name: kfe, source_dir: ./b}
`,
			wantErr: "duplicate collection",
		},
		{
			name: "missing source dir",
			content: `
collections:
  - {name: kfe}
`,
			wantErr: "no source_dir",
		},
		{
			name:    "unknown staleness",
			content: "index:\n  staleness: sometimes\n",
			wantErr: "index.staleness",
		},
		{
			name:    "unknown router",
			content: "agent:\n  router: dice\n",
			wantErr: "agent.router",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(path, []byte(tt.content), 0600); err != nil {
				t.Fatal(err)
			}
			_, err := Load(path)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Load() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoad_missingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)
	if cfg.Server.Host != "localhost" {
		t.Errorf("default host: got %s", cfg.Server.Host)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("default port: got %d", cfg.Server.Port)
	}
	if cfg.Agent.HistoryWindow != 5 {
		t.Errorf("default history window: got %d", cfg.Agent.HistoryWindow)
	}
	if cfg.Agent.TopK != 3 {
		t.Errorf("default top_k: got %d", cfg.Agent.TopK)
	}
	if cfg.Index.Staleness != StalenessRebuild {
		t.Errorf("default staleness: got %s", cfg.Index.Staleness)
	}
	if cfg.Stream.Delay != 50*time.Millisecond {
		t.Errorf("default stream delay: got %v", cfg.Stream.Delay)
	}
	if !cfg.Agent.ParallelOrDefault() || !cfg.Index.KeywordOrDefault() {
		t.Error("parallel queries and keyword index should default to enabled")
	}
	names := make([]string, 0, len(cfg.Collections))
	for _, c := range cfg.Collections {
		names = append(names, c.Name)
	}
	if strings.Join(names, ",") != "lynparza,kfe,vu_gc" {
		t.Errorf("default collections: got %v", names)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestApplyDefaults_noDelayKeepsZero(t *testing.T) {
	cfg := &Config{Stream: StreamConfig{NoDelay: true}}
	ApplyDefaults(cfg)
	if cfg.Stream.Delay != 0 {
		t.Errorf("no_delay should keep delay at zero, got %v", cfg.Stream.Delay)
	}
}

func TestDefault(t *testing.T) {
	dir := t.TempDir()
	cfg := Default(dir)
	if cfg.Storage.IndexRoot != filepath.Join(dir, "data") {
		t.Errorf("index root: got %s", cfg.Storage.IndexRoot)
	}
	col, ok := cfg.Collection("vu_gc")
	if !ok {
		t.Fatal("vu_gc collection missing")
	}
	if col.SourceDir != filepath.Join(dir, "VU GC") {
		t.Errorf("vu_gc source dir: got %s", col.SourceDir)
	}
	if m := col.Model(); m.Name != "vu_gc" || m.Description == "" {
		t.Errorf("Model() = %+v", m)
	}
}

func TestSave(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "saved.yaml")
	cfg := Default(dir)
	cfg.Server.Port = 9090
	if err := Save(path, cfg); err != nil {
		t.Fatal(err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Server.Port != 9090 {
		t.Errorf("loaded port: got %d", loaded.Server.Port)
	}
	if loaded.Agent.QueryTimeout != cfg.Agent.QueryTimeout {
		t.Errorf("query timeout round trip: got %v want %v", loaded.Agent.QueryTimeout, cfg.Agent.QueryTimeout)
	}
}

func TestLoadDotEnvAndAPIKey(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	if err := os.WriteFile(envPath, []byte("ASTRABOT_TEST_KEY=sk-test\n"), 0600); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Unsetenv("ASTRABOT_TEST_KEY") })
	LoadDotEnv(envPath, filepath.Join(dir, "missing.env"))
	if got := APIKey(ProviderOpenAI, "ASTRABOT_TEST_KEY"); got != "sk-test" {
		t.Errorf("APIKey with override = %q", got)
	}
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("GOOGLE_API_KEY", "g-key")
	if got := APIKey(ProviderGemini, ""); got != "g-key" {
		t.Errorf("APIKey fallback env = %q", got)
	}
	if got := APIKey("unknown", ""); got != "" {
		t.Errorf("unknown provider should have no key, got %q", got)
	}
}
