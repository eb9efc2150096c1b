package app

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/hyperjump/astrabot/internal/agent"
	"github.com/hyperjump/astrabot/internal/config"
	"github.com/hyperjump/astrabot/internal/llm"
	"github.com/hyperjump/astrabot/internal/session"
	"github.com/hyperjump/astrabot/internal/watcher"
)

// App is a fully wired assistant.
type App struct {
	*Catalog

	Config     *config.Config
	Logger     *zap.Logger
	Controller *agent.Controller
	Sessions   *session.Manager
	// Generator is nil when no language model is configured.
	Generator llm.Generator

	watcher *watcher.Watcher
}

// Option configures New.
type Option func(*options)

type options struct {
	generator llm.Generator
}

// WithGenerator uses gen instead of the configured language model.
func WithGenerator(gen llm.Generator) Option {
	return func(o *options) { o.generator = gen }
}

// New opens the catalog and builds the conversational controller over it.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger, opts ...Option) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	policy, err := agent.LoadPolicy(cfg.Agent.PolicyFile)
	if err != nil {
		return nil, err
	}

	gen := o.generator
	if gen == nil {
		gen, err = llm.New(ctx, cfg.LLM, logger)
		switch {
		case errors.Is(err, llm.ErrNoProvider):
			logger.Warn("No language model configured; answering with retrieved passages only")
			gen = nil
		case err != nil:
			return nil, fmt.Errorf("failed to initialize language model: %w", err)
		}
	}

	catalog, err := OpenCatalog(ctx, cfg, logger, OpenOptions{})
	if err != nil {
		return nil, err
	}

	keywordRouter := agent.NewKeywordRouter(cfg.Agent.MaxCapabilities)
	var router agent.Router = keywordRouter
	var synth agent.Synthesizer = agent.NewExtractiveSynthesizer()
	if gen != nil {
		synth = agent.NewLLMSynthesizer(gen)
		if cfg.Agent.Router == config.RouterLLM {
			router = agent.NewLLMRouter(gen, keywordRouter, cfg.Agent.MaxCapabilities, logger)
		}
	}

	ctrl, err := agent.NewController(policy, catalog.Registry(), router, synth,
		agent.WithLogger(logger),
		agent.WithHistoryWindow(cfg.Agent.HistoryWindow),
		agent.WithQueryTimeout(cfg.Agent.QueryTimeout),
		agent.WithParallel(cfg.Agent.ParallelOrDefault()),
	)
	if err != nil {
		catalog.Close()
		return nil, err
	}

	logger.Info("AstraBot ready",
		zap.Strings("capabilities", catalog.Registry().Names()),
		zap.Bool("language_model", gen != nil),
		zap.String("router", fmt.Sprintf("%T", router)),
	)
	return &App{
		Catalog:    catalog,
		Config:     cfg,
		Logger:     logger,
		Controller: ctrl,
		Sessions:   session.NewManager(),
		Generator:  gen,
	}, nil
}

// StartWatcher watches the collection sources when watching is enabled; changes mark the
// collection stale. It stops when ctx is done.
func (a *App) StartWatcher(ctx context.Context) error {
	if !a.Config.Watch.Enabled {
		return nil
	}
	roots := make(map[string]string, len(a.Config.Collections))
	for _, col := range a.Config.Collections {
		roots[col.Name] = col.SourceDir
	}
	a.watcher = watcher.New(roots, a.Config.Watch.Extensions,
		func(collection, path string) {
			a.Logger.Debug("Source changed", zap.String("collection", collection), zap.String("path", path))
			a.MarkStale(collection)
		},
		watcher.WithLogger(a.Logger),
		watcher.WithDebounce(a.Config.Watch.Debounce),
	)
	return a.watcher.Start(ctx)
}

// Close stops the watcher and releases the catalog.
func (a *App) Close() error {
	if a.watcher != nil {
		a.watcher.Stop()
	}
	return a.Catalog.Close()
}
