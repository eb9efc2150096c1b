// Package keyword provides keyword (BM25) indexing and search over document units.
package keyword

import (
	"context"

	"github.com/hyperjump/astrabot/internal/models"
)

// SearchOptions optional parameters for keyword search. Nil means use defaults.
type SearchOptions struct {
	// TitleBoost multiplies the score of matches in the title (source file name) field.
	TitleBoost float64
	// FuzzyEnabled matches terms within Fuzziness edits for typo tolerance.
	FuzzyEnabled bool
	// Fuzziness is the maximum Levenshtein edit distance (1 or 2). Default 1.
	Fuzziness int
}

// KeywordIndex defines keyword search operations.
type KeywordIndex interface {
	Index(ctx context.Context, unit *models.DocumentUnit) error
	// IndexBatch indexes units in one batch.
	IndexBatch(ctx context.Context, units []*models.DocumentUnit) error
	Search(ctx context.Context, query string, limit int, opts *SearchOptions) ([]*KeywordResult, error)
	// DocCount returns the total number of units in the index.
	DocCount() (uint64, error)
	Close() error
}

// KeywordResult is a single keyword search hit.
type KeywordResult struct {
	ID    string
	Score float64
}

// TermDictionary provides the indexed vocabulary for spell checking.
type TermDictionary interface {
	// Terms returns every indexed term with its document frequency.
	Terms() (map[string]int, error)
}
