package index

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/astrabot/internal/config"
	"github.com/hyperjump/astrabot/internal/embedding"
	"github.com/hyperjump/astrabot/internal/keyword"
	"github.com/hyperjump/astrabot/internal/models"
	"github.com/hyperjump/astrabot/internal/search"
	"github.com/hyperjump/astrabot/internal/storage"
	"github.com/hyperjump/astrabot/internal/vector"
)

const tmpPrefix = ".tmp-"

// Builder loads persisted collection indexes from root or builds them from document units.
type Builder struct {
	root          string
	embedder      embedding.Embedder
	staleness     string
	keyword       bool
	keywordWeight float64
	logger        *zap.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// Option configures a Builder.
type Option func(*Builder)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(b *Builder) {
		if l != nil {
			b.logger = l
		}
	}
}

// WithStaleness sets the reuse policy: config.StalenessRebuild or config.StalenessIgnore.
func WithStaleness(policy string) Option {
	return func(b *Builder) { b.staleness = policy }
}

// WithKeyword enables the keyword index and sets its weight in fused scores.
func WithKeyword(enabled bool, weight float64) Option {
	return func(b *Builder) {
		b.keyword = enabled
		b.keywordWeight = weight
	}
}

// NewBuilder creates a builder storing one directory per collection under root.
func NewBuilder(root string, embedder embedding.Embedder, opts ...Option) *Builder {
	b := &Builder{
		root:          root,
		embedder:      embedder,
		staleness:     config.StalenessRebuild,
		keyword:       true,
		keywordWeight: 0.3,
		logger:        zap.NewNop(),
		locks:         make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Dir returns the store directory of a collection.
func (b *Builder) Dir(collection string) string {
	return filepath.Join(b.root, collection)
}

func (b *Builder) lock(collection string) func() {
	b.mu.Lock()
	l, ok := b.locks[collection]
	if !ok {
		l = &sync.Mutex{}
		b.locks[collection] = l
	}
	b.mu.Unlock()
	l.Lock()
	return l.Unlock
}

// Exists reports whether a complete store (one with a manifest) is present for collection.
func (b *Builder) Exists(collection string) bool {
	_, err := os.Stat(filepath.Join(b.Dir(collection), ManifestFile))
	return err == nil
}

// Ensure returns the index for collection. A persisted store is loaded when present and,
// under the rebuild policy, still matching units and the embedder; otherwise the index is
// built from units, persisted and loaded.
//
// Errors wrap models.ErrIndexBuildFailure or models.ErrIndexLoadFailure.
func (b *Builder) Ensure(ctx context.Context, collection string, units []*models.DocumentUnit) (*Index, error) {
	defer b.lock(collection)()
	b.cleanupTemp(collection)

	dir := b.Dir(collection)
	m, err := ReadManifest(dir)
	switch {
	case err == nil:
		if reason := b.staleReason(m, units); reason != "" {
			b.logger.Info("Rebuilding stale index",
				zap.String("collection", collection), zap.String("reason", reason))
			break
		}
		idx, err := b.load(ctx, collection, m)
		if err != nil {
			return nil, err
		}
		b.logger.Info("Index loaded",
			zap.String("collection", collection), zap.Int("units", m.UnitCount))
		return idx, nil
	case errors.Is(err, os.ErrNotExist):
		if _, statErr := os.Stat(dir); statErr == nil {
			b.logger.Warn("Discarding incomplete index store", zap.String("dir", dir))
		}
	default:
		return nil, fmt.Errorf("%w: %s: %w", models.ErrIndexLoadFailure, collection, err)
	}

	if err := b.build(ctx, collection, units); err != nil {
		return nil, err
	}
	m, err = ReadManifest(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", models.ErrIndexLoadFailure, collection, err)
	}
	idx, err := b.load(ctx, collection, m)
	if err != nil {
		return nil, err
	}
	idx.built = true
	return idx, nil
}

// Load opens the persisted store of collection without checking it against sources.
// It is used when the sources are unavailable.
func (b *Builder) Load(ctx context.Context, collection string) (*Index, error) {
	defer b.lock(collection)()
	m, err := ReadManifest(b.Dir(collection))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", models.ErrIndexLoadFailure, collection, err)
	}
	return b.load(ctx, collection, m)
}

// Invalidate removes the persisted store of collection so the next Ensure rebuilds it.
func (b *Builder) Invalidate(collection string) error {
	defer b.lock(collection)()
	if err := os.RemoveAll(b.Dir(collection)); err != nil {
		return fmt.Errorf("remove index store: %w", err)
	}
	b.logger.Info("Index invalidated", zap.String("collection", collection))
	return nil
}

// staleReason returns why m no longer matches, or "" when the store can be reused.
func (b *Builder) staleReason(m *Manifest, units []*models.DocumentUnit) string {
	if m.EmbedderModel != b.embedder.Model() && b.staleness == config.StalenessIgnore {
		b.logger.Warn("Index was built with a different embedder",
			zap.String("collection", m.Collection),
			zap.String("index_model", m.EmbedderModel),
			zap.String("embedder_model", b.embedder.Model()))
	}
	if b.staleness == config.StalenessIgnore {
		return ""
	}
	switch {
	case m.EmbedderModel != b.embedder.Model() || m.Dimensions != b.embedder.Dimensions():
		return "embedder changed"
	case m.Keyword != b.keyword:
		return "keyword setting changed"
	case len(units) > 0 && m.Fingerprint != Fingerprint(units):
		return "sources changed"
	}
	return ""
}

// cleanupTemp removes temporary directories left behind by interrupted builds.
func (b *Builder) cleanupTemp(collection string) {
	matches, _ := filepath.Glob(filepath.Join(b.root, tmpPrefix+collection+"-*"))
	for _, dir := range matches {
		b.logger.Debug("Removing leftover build directory", zap.String("dir", dir))
		_ = os.RemoveAll(dir)
	}
}

func (b *Builder) build(ctx context.Context, collection string, units []*models.DocumentUnit) (err error) {
	fail := func(err error) error {
		return fmt.Errorf("%w: %s: %w", models.ErrIndexBuildFailure, collection, err)
	}
	if len(units) == 0 {
		return fail(errors.New("no document units"))
	}
	if err := os.MkdirAll(b.root, 0755); err != nil {
		return fail(err)
	}

	start := time.Now()
	tmp := filepath.Join(b.root, tmpPrefix+collection+"-"+uuid.NewString())
	defer func() {
		if err != nil {
			_ = os.RemoveAll(tmp)
		}
	}()
	b.logger.Info("Building index", zap.String("collection", collection), zap.Int("units", len(units)))

	texts := make([]string, len(units))
	ids := make([]string, len(units))
	for i, u := range units {
		texts[i] = u.Content
		ids[i] = u.ID
	}
	vecs, err := b.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return fail(fmt.Errorf("embed units: %w", err))
	}
	if len(vecs) != len(units) {
		return fail(fmt.Errorf("embedder returned %d vectors for %d units", len(vecs), len(units)))
	}

	vecIndex, err := vector.NewMemoryIndex(b.embedder.Dimensions())
	if err != nil {
		return fail(err)
	}
	if err := vecIndex.Add(ctx, ids, vecs); err != nil {
		return fail(fmt.Errorf("index vectors: %w", err))
	}
	if err := vecIndex.Save(filepath.Join(tmp, VectorsFile)); err != nil {
		return fail(err)
	}

	store, err := storage.NewSQLiteStorage(filepath.Join(tmp, PassagesFile))
	if err != nil {
		return fail(err)
	}
	err = store.BatchCreateUnits(ctx, units)
	if closeErr := store.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return fail(fmt.Errorf("store units: %w", err))
	}

	if b.keyword {
		kw, err := keyword.NewBleveIndex(filepath.Join(tmp, KeywordDir))
		if err != nil {
			return fail(err)
		}
		err = kw.IndexBatch(ctx, units)
		if closeErr := kw.Close(); err == nil {
			err = closeErr
		}
		if err != nil {
			return fail(fmt.Errorf("index keywords: %w", err))
		}
	}

	if err := ctx.Err(); err != nil {
		return fail(err)
	}
	if err := writeManifest(tmp, &Manifest{
		Collection:    collection,
		Fingerprint:   Fingerprint(units),
		EmbedderModel: b.embedder.Model(),
		Dimensions:    b.embedder.Dimensions(),
		UnitCount:     len(units),
		Keyword:       b.keyword,
		CreatedAt:     time.Now().UTC(),
	}); err != nil {
		return fail(err)
	}

	dir := b.Dir(collection)
	if err := os.RemoveAll(dir); err != nil {
		return fail(err)
	}
	if err := os.Rename(tmp, dir); err != nil {
		return fail(err)
	}
	b.logger.Info("Index built",
		zap.String("collection", collection),
		zap.Int("units", len(units)),
		zap.Duration("duration", time.Since(start)))
	return nil
}

func (b *Builder) load(ctx context.Context, collection string, m *Manifest) (idx *Index, err error) {
	fail := func(err error) error {
		return fmt.Errorf("%w: %s: %w", models.ErrIndexLoadFailure, collection, err)
	}
	if m.Collection != collection {
		return nil, fail(fmt.Errorf("manifest belongs to %q", m.Collection))
	}
	if m.Dimensions != b.embedder.Dimensions() {
		return nil, fail(fmt.Errorf("index has %d dimensions, embedder produces %d", m.Dimensions, b.embedder.Dimensions()))
	}
	dir := b.Dir(collection)

	store, err := storage.OpenSQLiteStorage(filepath.Join(dir, PassagesFile))
	if err != nil {
		return nil, fail(err)
	}
	defer func() {
		if err != nil {
			_ = store.Close()
		}
	}()
	if err := store.Check(ctx); err != nil {
		return nil, fail(err)
	}
	n, err := store.CountUnits(ctx)
	if err != nil {
		return nil, fail(err)
	}
	if int(n) != m.UnitCount {
		return nil, fail(fmt.Errorf("store has %d units, manifest %d", n, m.UnitCount))
	}

	vecIndex, err := vector.NewMemoryIndex(m.Dimensions)
	if err != nil {
		return nil, fail(err)
	}
	if err := vecIndex.Load(filepath.Join(dir, VectorsFile)); err != nil {
		return nil, fail(err)
	}
	if vecIndex.Size() != m.UnitCount {
		return nil, fail(fmt.Errorf("vector index has %d entries, manifest %d", vecIndex.Size(), m.UnitCount))
	}

	opts := []search.Option{search.WithLogger(b.logger.With(zap.String("collection", collection)))}
	var kw *keyword.BleveIndex
	if m.Keyword {
		kw, err = keyword.OpenBleveIndex(filepath.Join(dir, KeywordDir))
		if err != nil {
			return nil, fail(err)
		}
		opts = append(opts, search.WithKeywordIndex(kw), search.WithSpellChecker(keyword.NewSpellChecker(kw)))
	}

	return &Index{
		collection:    collection,
		dir:           dir,
		manifest:      m,
		keywordWeight: b.keywordWeight,
		store:         store,
		vectors:       vecIndex,
		keywords:      kw,
		retriever:     search.NewRetriever(store, b.embedder, vecIndex, opts...),
	}, nil
}
