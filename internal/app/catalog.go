// Package app wires configuration, collection indexes, capabilities and the chat controller.
package app

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"go.uber.org/zap"

	"github.com/hyperjump/astrabot/internal/capability"
	"github.com/hyperjump/astrabot/internal/config"
	"github.com/hyperjump/astrabot/internal/embedding"
	"github.com/hyperjump/astrabot/internal/index"
	"github.com/hyperjump/astrabot/internal/loader"
	"github.com/hyperjump/astrabot/internal/models"
)

// ErrNoCapabilities is returned when no collection could be opened.
var ErrNoCapabilities = errors.New("no capability available")

// CollectionStatus is the state of one configured collection.
type CollectionStatus struct {
	index.Status
	Available bool `json:"available"`
	// Stale is set when the sources changed after the index was opened.
	Stale bool `json:"stale"`
	// Built is set when the index was built rather than loaded in this process.
	Built     bool   `json:"built"`
	LoadError string `json:"load_error,omitempty"`
}

// Catalog holds the opened index and capability of every configured collection.
type Catalog struct {
	cfg      *config.Config
	logger   *zap.Logger
	embedder embedding.Embedder
	builder  *index.Builder
	loader   *loader.Loader

	errs        map[string]error
	registry    *capability.Registry
	descriptors []capability.Descriptor

	// mu guards indexes, stale and the embedder handle once OpenCatalog returns.
	mu      sync.Mutex
	indexes map[string]*index.Index
	stale   map[string]bool
}

// OpenOptions control which collections are opened and how.
type OpenOptions struct {
	// Only restricts opening to the named collections.
	Only []string
	// Force discards persisted stores before opening.
	Force bool
}

// OpenCatalog opens every configured collection, building indexes whose stores are missing or
// stale. A collection that fails is unavailable for the process; only the failure of all of them
// is an error.
func OpenCatalog(ctx context.Context, cfg *config.Config, logger *zap.Logger, opts OpenOptions) (*Catalog, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	embedder, err := embedding.New(ctx, cfg.Embedding, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}
	c := &Catalog{
		cfg:      cfg,
		logger:   logger,
		embedder: embedder,
		builder: index.NewBuilder(cfg.Storage.IndexRoot, embedder,
			index.WithLogger(logger),
			index.WithStaleness(cfg.Index.Staleness),
			index.WithKeyword(cfg.Index.KeywordOrDefault(), cfg.Index.KeywordWeight),
		),
		loader:  loader.New(cfg.Chunking.Size, cfg.Chunking.Overlap, loader.WithLogger(logger)),
		indexes: make(map[string]*index.Index),
		errs:    make(map[string]error),
		stale:   make(map[string]bool),
	}

	var caps []*capability.Capability
	for _, col := range cfg.Collections {
		if len(opts.Only) > 0 && !slices.Contains(opts.Only, col.Name) {
			continue
		}
		d := capability.Descriptor{Name: col.Name, FullName: col.FullName, Description: col.Description}
		capab, err := c.open(ctx, col, opts.Force)
		if err != nil {
			if ctx.Err() != nil {
				c.Close()
				return nil, ctx.Err()
			}
			logger.Error("Collection unavailable", zap.String("collection", col.Name), zap.Error(err))
			c.errs[col.Name] = err
			d.Error = err.Error()
		} else {
			d.Available = true
			caps = append(caps, capab)
		}
		c.descriptors = append(c.descriptors, d)
	}

	if len(caps) == 0 {
		err := errors.Join(mapValues(c.errs)...)
		c.Close()
		if err == nil {
			return nil, ErrNoCapabilities
		}
		return nil, fmt.Errorf("%w: %w", ErrNoCapabilities, err)
	}
	if c.registry, err = capability.NewRegistry(caps...); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

func mapValues(m map[string]error) []error {
	out := make([]error, 0, len(m))
	for _, err := range m {
		out = append(out, err)
	}
	return out
}

func (c *Catalog) open(ctx context.Context, col config.CollectionConfig, force bool) (*capability.Capability, error) {
	if force {
		if err := c.builder.Invalidate(col.Name); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", models.ErrIndexBuildFailure, col.Name, err)
		}
	}

	var idx *index.Index
	units, err := c.loader.Load(ctx, col.Model())
	switch {
	case err == nil:
		idx, err = c.builder.Ensure(ctx, col.Name, units)
	case errors.Is(err, models.ErrSourceUnavailable) && c.builder.Exists(col.Name):
		c.logger.Warn("Sources unavailable, loading persisted index",
			zap.String("collection", col.Name), zap.Error(err))
		idx, err = c.builder.Load(ctx, col.Name)
	}
	if err != nil {
		return nil, err
	}

	capab, err := capability.New(col.Name, col.Description, idx,
		capability.WithFullName(col.FullName),
		capability.WithKeywords(col.Keywords...),
		capability.WithTopK(c.cfg.Agent.TopK),
	)
	if err != nil {
		_ = idx.Close()
		return nil, err
	}
	c.indexes[col.Name] = idx
	return capab, nil
}

// Registry returns the capabilities that opened successfully.
func (c *Catalog) Registry() *capability.Registry { return c.registry }

// Capability returns the named available capability.
func (c *Catalog) Capability(name string) (*capability.Capability, bool) {
	return c.registry.Get(name)
}

// Capabilities describes every configured collection that was opened, available or not.
func (c *Catalog) Capabilities() []capability.Descriptor {
	return append([]capability.Descriptor(nil), c.descriptors...)
}

// MarkStale records that the sources of collection changed since its index was opened.
func (c *Catalog) MarkStale(collection string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.stale[collection] {
		c.logger.Warn("Collection sources changed; rebuild with 'astrabot index'",
			zap.String("collection", collection))
	}
	c.stale[collection] = true
}

// Status reports every configured collection.
func (c *Catalog) Status() []CollectionStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]CollectionStatus, 0, len(c.cfg.Collections))
	for _, col := range c.cfg.Collections {
		st := CollectionStatus{Status: c.builder.Inspect(col.Name), Stale: c.stale[col.Name]}
		if idx, ok := c.indexes[col.Name]; ok {
			st.Available = true
			st.Built = idx.Built()
		}
		if err, ok := c.errs[col.Name]; ok {
			st.LoadError = err.Error()
		}
		out = append(out, st)
	}
	return out
}

// Close releases every opened index and the embedder.
func (c *Catalog) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var errs []error
	for name, idx := range c.indexes {
		if err := idx.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", name, err))
		}
	}
	c.indexes = map[string]*index.Index{}
	if c.embedder != nil {
		if err := c.embedder.Close(); err != nil {
			errs = append(errs, err)
		}
		c.embedder = nil
	}
	return errors.Join(errs...)
}

// InspectStores reports the persisted store of every configured collection without opening it.
func InspectStores(cfg *config.Config) []CollectionStatus {
	b := index.NewBuilder(cfg.Storage.IndexRoot, nil)
	out := make([]CollectionStatus, 0, len(cfg.Collections))
	for _, col := range cfg.Collections {
		out = append(out, CollectionStatus{Status: b.Inspect(col.Name)})
	}
	return out
}
