// Package loader reads a collection's source directory and produces normalized document units.
package loader

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/astrabot/internal/extract"
	"github.com/hyperjump/astrabot/internal/fileid"
	"github.com/hyperjump/astrabot/internal/models"
)

// Loader turns every readable file under a collection's source directory into DocumentUnits.
type Loader struct {
	extractor *extract.Extractor
	chunker   *Chunker
	logger    *zap.Logger
	now       func() time.Time
}

// Option configures a Loader.
type Option func(*Loader)

// WithLogger sets a logger for skipped files and per-collection summaries.
func WithLogger(l *zap.Logger) Option {
	return func(ld *Loader) { ld.logger = l }
}

// New creates a loader that chunks text into windows of chunkSize words with chunkOverlap overlap.
func New(chunkSize, chunkOverlap int, opts ...Option) *Loader {
	ld := &Loader{
		extractor: extract.NewExtractor(),
		chunker:   NewChunker(chunkSize, chunkOverlap),
		logger:    zap.NewNop(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(ld)
	}
	return ld
}

// Load walks col.SourceDir in lexical order and returns the units of every readable file.
// Hidden files and directories are skipped, as are files whose content cannot be read as text.
// Returns models.ErrSourceUnavailable when the directory is missing, not a directory, or unreadable.
func (ld *Loader) Load(ctx context.Context, col models.Collection) ([]*models.DocumentUnit, error) {
	root, err := filepath.Abs(col.SourceDir)
	if err != nil {
		return nil, fmt.Errorf("%w: collection %q: %w", models.ErrSourceUnavailable, col.Name, err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("%w: collection %q: %w", models.ErrSourceUnavailable, col.Name, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: collection %q: not a directory: %s", models.ErrSourceUnavailable, col.Name, root)
	}

	var units []*models.DocumentUnit
	files := 0
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if path == root {
				return walkErr
			}
			ld.logger.Warn("loader skipping unreadable entry", zap.String("path", path), zap.Error(walkErr))
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		// Resolve symlinks so only regular files contribute.
		finfo, statErr := os.Stat(path)
		if statErr != nil || !finfo.Mode().IsRegular() {
			return nil
		}
		fileUnits, err := ld.loadFile(col.Name, root, path)
		if err != nil {
			ld.logger.Warn("loader skipping file", zap.String("collection", col.Name), zap.String("path", path), zap.Error(err))
			return nil
		}
		files++
		units = append(units, fileUnits...)
		return nil
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: collection %q: %w", models.ErrSourceUnavailable, col.Name, err)
	}
	ld.logger.Info("collection loaded",
		zap.String("collection", col.Name),
		zap.Int("files", files),
		zap.Int("units", len(units)))
	return units, nil
}

func (ld *Loader) loadFile(collection, root, path string) ([]*models.DocumentUnit, error) {
	text, err := ld.extractor.Extract(path)
	if err != nil {
		if errors.Is(err, extract.ErrUnsupported) {
			return nil, err
		}
		return nil, fmt.Errorf("extract: %w", err)
	}
	rel, err := filepath.Rel(root, path)
	if err != nil {
		rel = filepath.Base(path)
	}
	sourceID := fileid.SourceID(collection, rel)
	title := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	created := ld.now()

	chunks := ld.chunker.Split(Preprocess(text))
	units := make([]*models.DocumentUnit, 0, len(chunks))
	for i, chunk := range chunks {
		units = append(units, &models.DocumentUnit{
			ID:         fileid.UnitID(sourceID, i),
			Collection: collection,
			SourceID:   sourceID,
			SourcePath: filepath.ToSlash(rel),
			Title:      title,
			Content:    chunk,
			ChunkIndex: i,
			CreatedAt:  created,
		})
	}
	return units, nil
}
