package config

import "time"

const (
	StalenessRebuild = "rebuild"
	StalenessIgnore  = "ignore"

	RouterLLM     = "llm"
	RouterKeyword = "keyword"

	ProviderAuto = "auto"
)

// DefaultCollections returns the three collections AstraBot ships with.
func DefaultCollections() []CollectionConfig {
	return []CollectionConfig{
		{
			Name:        "lynparza",
			FullName:    "Lynparza",
			Description: "Liefert Informationen über das Krebsmedikament Lynparza.",
			SourceDir:   "./Lynparza",
			Keywords:    []string{"lynparza", "olaparib", "parp", "medikament", "medication", "tablette", "nebenwirkung", "side effect", "dosis", "dose"},
		},
		{
			Name:        "kfe",
			FullName:    "Krebsfrüherkennung",
			Description: "Liefert Informationen über Krebs, Krebsfrüherkennung und Krebssymptome.",
			SourceDir:   "./KFE",
			Keywords:    []string{"krebs", "cancer", "früherkennung", "early detection", "symptom", "tumor", "screening", "mammographie", "koloskopie", "darmkrebs", "brustkrebs", "prostata"},
		},
		{
			Name:        "vu_gc",
			FullName:    "Vorsorgeuntersuchung / Gesundheits-Check",
			Description: "Liefert Informationen über die Vorsorgeuntersuchung/den Gesundheits-Check in Österreich.",
			SourceDir:   "./VU GC",
			Keywords:    []string{"vorsorgeuntersuchung", "vorsorge", "gesundheits-check", "gesundheitscheck", "check-up", "checkup", "preventive", "untersuchung", "österreich", "austria"},
		},
	}
}

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Storage.IndexRoot == "" {
		cfg.Storage.IndexRoot = "./data"
	}
	if cfg.Storage.LogFile == "" {
		cfg.Storage.LogFile = "./data/astrabot.log"
	}
	if cfg.Collections == nil {
		cfg.Collections = DefaultCollections()
	}
	if cfg.Chunking.Size == 0 {
		cfg.Chunking.Size = 256
	}
	if cfg.Chunking.Overlap == 0 {
		cfg.Chunking.Overlap = 32
	}
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = ProviderAuto
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 384
	}
	if cfg.Embedding.MaxTokens == 0 {
		cfg.Embedding.MaxTokens = 256
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 10000
	}
	if cfg.Embedding.ModelPath == "" {
		cfg.Embedding.ModelPath = "./models/all-MiniLM-L6-v2.onnx"
	}
	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = ProviderAuto
	}
	if cfg.LLM.MaxTokens == 0 {
		cfg.LLM.MaxTokens = 1024
	}
	if cfg.LLM.Timeout == 0 {
		cfg.LLM.Timeout = 60 * time.Second
	}
	if cfg.Agent.HistoryWindow == 0 {
		cfg.Agent.HistoryWindow = 5
	}
	if cfg.Agent.TopK == 0 {
		cfg.Agent.TopK = 3
	}
	if cfg.Agent.Router == "" {
		cfg.Agent.Router = RouterLLM
	}
	if cfg.Agent.MaxCapabilities == 0 {
		cfg.Agent.MaxCapabilities = 3
	}
	if cfg.Agent.QueryTimeout == 0 {
		cfg.Agent.QueryTimeout = 10 * time.Second
	}
	if cfg.Index.Staleness == "" {
		cfg.Index.Staleness = StalenessRebuild
	}
	if cfg.Index.KeywordWeight == 0 {
		cfg.Index.KeywordWeight = 0.3
	}
	if cfg.Stream.Delay == 0 && !cfg.Stream.NoDelay {
		cfg.Stream.Delay = 50 * time.Millisecond
	}
	if cfg.Watch.Debounce == 0 {
		cfg.Watch.Debounce = 500 * time.Millisecond
	}
	if cfg.Watch.Extensions == nil {
		cfg.Watch.Extensions = []string{".txt", ".md", ".rst", ".pdf", ".docx", ".xlsx", ".pptx", ".odp", ".ods"}
	}
}
