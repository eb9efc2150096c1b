// Package config provides configuration loading and structs for the AstraBot assistant.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hyperjump/astrabot/internal/models"
)

// Config holds all configuration for the application.
type Config struct {
	Debug       bool               `yaml:"debug"`
	Server      ServerConfig       `yaml:"server"`
	Storage     StorageConfig      `yaml:"storage"`
	Collections []CollectionConfig `yaml:"collections"`
	Chunking    ChunkingConfig     `yaml:"chunking"`
	Embedding   EmbeddingConfig    `yaml:"embedding"`
	LLM         LLMConfig          `yaml:"llm"`
	Agent       AgentConfig        `yaml:"agent"`
	Index       IndexConfig        `yaml:"index"`
	Stream      StreamConfig       `yaml:"stream"`
	Watch       WatchConfig        `yaml:"watch"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StorageConfig holds the root under which each collection's index store lives.
type StorageConfig struct {
	IndexRoot string `yaml:"index_root"`
	// LogFile receives logs while the terminal UI owns stdout.
	LogFile string `yaml:"log_file"`
}

// CollectionConfig describes one document collection and the capability built over it.
type CollectionConfig struct {
	Name        string   `yaml:"name"`
	FullName    string   `yaml:"full_name"`
	Description string   `yaml:"description"`
	SourceDir   string   `yaml:"source_dir"`
	Keywords    []string `yaml:"keywords"`
}

// Model converts the config entry into the shared collection model.
func (c CollectionConfig) Model() models.Collection {
	return models.Collection{
		Name:        c.Name,
		FullName:    c.FullName,
		Description: c.Description,
		SourceDir:   c.SourceDir,
		Keywords:    append([]string(nil), c.Keywords...),
	}
}

// ChunkingConfig controls how extracted text is split into document units.
type ChunkingConfig struct {
	Size    int `yaml:"size"`
	Overlap int `yaml:"overlap"`
}

// EmbeddingConfig selects and tunes the embedder.
// Provider is one of auto, hash, onnx, openai, gemini.
type EmbeddingConfig struct {
	Provider   string `yaml:"provider"`
	Model      string `yaml:"model"`
	ModelPath  string `yaml:"model_path"`
	Dimensions int    `yaml:"dimensions"`
	MaxTokens  int    `yaml:"max_tokens"`
	CacheSize  int    `yaml:"cache_size"`
	APIKeyEnv  string `yaml:"api_key_env"`
	BaseURL    string `yaml:"base_url"`
}

// LLMConfig selects the generation backend.
// Provider is one of auto, openai, anthropic, gemini, extractive.
type LLMConfig struct {
	Provider    string        `yaml:"provider"`
	Model       string        `yaml:"model"`
	Temperature float64       `yaml:"temperature"`
	MaxTokens   int           `yaml:"max_tokens"`
	Timeout     time.Duration `yaml:"timeout"`
	APIKeyEnv   string        `yaml:"api_key_env"`
	BaseURL     string        `yaml:"base_url"`
}

// AgentConfig tunes the conversational controller.
type AgentConfig struct {
	HistoryWindow   int           `yaml:"history_window"`
	TopK            int           `yaml:"top_k"`
	Router          string        `yaml:"router"` // llm or keyword
	MaxCapabilities int           `yaml:"max_capabilities"`
	QueryTimeout    time.Duration `yaml:"query_timeout"`
	Parallel        *bool         `yaml:"parallel"`
	PolicyFile      string        `yaml:"policy_file"`
}

// ParallelOrDefault returns whether capability queries run concurrently; defaults to true when unset.
func (a *AgentConfig) ParallelOrDefault() bool {
	if a.Parallel != nil {
		return *a.Parallel
	}
	return true
}

// IndexConfig controls persisted index reuse.
type IndexConfig struct {
	// Staleness is "rebuild" (fingerprint mismatch invalidates the store) or "ignore".
	Staleness string `yaml:"staleness"`
	// Keyword enables the bleve keyword index alongside vectors.
	Keyword       *bool   `yaml:"keyword"`
	KeywordWeight float64 `yaml:"keyword_weight"`
}

// KeywordOrDefault returns whether the keyword index is built; defaults to true when unset.
func (i *IndexConfig) KeywordOrDefault() bool {
	if i.Keyword != nil {
		return *i.Keyword
	}
	return true
}

// StreamConfig holds reply streaming settings.
type StreamConfig struct {
	Delay time.Duration `yaml:"delay"`
	// NoDelay disables pacing; a zero Delay alone means "use the default".
	NoDelay bool `yaml:"no_delay"`
}

// WatchConfig holds source directory watch settings.
type WatchConfig struct {
	Enabled    bool          `yaml:"enabled"`
	Debounce   time.Duration `yaml:"debounce"`
	Extensions []string      `yaml:"extensions"`
}

// Load reads and parses the config file at path, expands paths, and applies defaults.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.expandPaths(filepath.Dir(path))
	return &cfg, nil
}

// Default returns a fully defaulted config whose relative paths resolve against baseDir.
func Default(baseDir string) *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	cfg.expandPaths(baseDir)
	return cfg
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Validate reports configuration that cannot be served, such as duplicate collection names.
func (c *Config) Validate() error {
	seen := make(map[string]bool, len(c.Collections))
	for _, col := range c.Collections {
		if col.Name == "" {
			return fmt.Errorf("invalid config: collection without name")
		}
		if seen[col.Name] {
			return fmt.Errorf("invalid config: duplicate collection %q", col.Name)
		}
		seen[col.Name] = true
		if col.SourceDir == "" {
			return fmt.Errorf("invalid config: collection %q has no source_dir", col.Name)
		}
	}
	switch c.Index.Staleness {
	case StalenessRebuild, StalenessIgnore:
	default:
		return fmt.Errorf("invalid config: index.staleness %q (want %q or %q)", c.Index.Staleness, StalenessRebuild, StalenessIgnore)
	}
	switch c.Agent.Router {
	case RouterLLM, RouterKeyword:
	default:
		return fmt.Errorf("invalid config: agent.router %q (want %q or %q)", c.Agent.Router, RouterLLM, RouterKeyword)
	}
	return nil
}

// Collection returns the named collection config.
func (c *Config) Collection(name string) (CollectionConfig, bool) {
	for _, col := range c.Collections {
		if col.Name == name {
			return col, true
		}
	}
	return CollectionConfig{}, false
}

// CollectionDir returns the index store location for a collection.
func (c *Config) CollectionDir(name string) string {
	return filepath.Join(c.Storage.IndexRoot, name)
}

func (c *Config) expandPaths(configDir string) {
	c.Storage.IndexRoot = expandPath(c.Storage.IndexRoot, configDir)
	c.Storage.LogFile = expandPath(c.Storage.LogFile, configDir)
	c.Embedding.ModelPath = expandPath(c.Embedding.ModelPath, configDir)
	c.Agent.PolicyFile = expandPath(c.Agent.PolicyFile, configDir)
	for i := range c.Collections {
		c.Collections[i].SourceDir = expandPath(c.Collections[i].SourceDir, configDir)
	}
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
