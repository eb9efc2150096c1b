// Package index builds, persists and reloads the per-collection semantic indexes.
package index

import (
	"context"
	"errors"

	"github.com/hyperjump/astrabot/internal/keyword"
	"github.com/hyperjump/astrabot/internal/models"
	"github.com/hyperjump/astrabot/internal/search"
	"github.com/hyperjump/astrabot/internal/storage"
	"github.com/hyperjump/astrabot/internal/vector"
)

// Index is a loaded, read-only semantic index over one collection.
type Index struct {
	collection    string
	dir           string
	manifest      *Manifest
	built         bool
	keywordWeight float64

	store     *storage.SQLiteStorage
	vectors   *vector.MemoryIndex
	keywords  *keyword.BleveIndex
	retriever *search.Retriever
}

// Collection returns the collection name.
func (i *Index) Collection() string { return i.collection }

// Dir returns the store directory.
func (i *Index) Dir() string { return i.dir }

// Manifest returns the manifest the index was loaded from.
func (i *Index) Manifest() Manifest { return *i.manifest }

// Built reports whether this process built the index rather than loading it.
func (i *Index) Built() bool { return i.built }

// Size returns the number of indexed units.
func (i *Index) Size() int { return i.vectors.Size() }

// Search returns the k most relevant passages for text.
func (i *Index) Search(ctx context.Context, text string, k int) ([]*models.Passage, error) {
	return i.retriever.Search(ctx, &models.RetrievalQuery{
		Text:          text,
		Limit:         k,
		KeywordWeight: i.keywordWeight,
	})
}

// Close releases the store handles.
func (i *Index) Close() error {
	var errs []error
	if i.keywords != nil {
		errs = append(errs, i.keywords.Close())
	}
	errs = append(errs, i.vectors.Close(), i.store.Close())
	return errors.Join(errs...)
}
