package keyword

import (
	"context"
	"fmt"
	"os"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/lang/de"
	"github.com/blevesearch/bleve/v2/mapping"
	blevequery "github.com/blevesearch/bleve/v2/search/query"

	"github.com/hyperjump/astrabot/internal/models"
)

// BleveIndex implements KeywordIndex using Bleve.
type BleveIndex struct {
	index bleve.Index
}

// unitDoc is the indexed shape of a unit. Only title and content are searchable.
type unitDoc struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

func newMapping() mapping.IndexMapping {
	im := bleve.NewIndexMapping()

	// The corpus is German: the de analyzer lowercases, drops stop words and stems,
	// so "Brustkrebs" and "Brustkrebses" share a term.
	text := bleve.NewTextFieldMapping()
	text.Analyzer = de.AnalyzerName
	text.Store = false
	text.IncludeTermVectors = false

	docMapping := bleve.NewDocumentMapping()
	docMapping.AddFieldMappingsAt("content", text)
	docMapping.AddFieldMappingsAt("title", text)

	im.DefaultMapping = docMapping
	im.DefaultAnalyzer = de.AnalyzerName
	return im
}

// NewBleveIndex creates a Bleve index at path, or opens it when the path already exists.
func NewBleveIndex(path string) (*BleveIndex, error) {
	if _, err := os.Stat(path); err == nil {
		return OpenBleveIndex(path)
	}
	index, err := bleve.New(path, newMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create Bleve index: %w", err)
	}
	return &BleveIndex{index: index}, nil
}

// OpenBleveIndex opens an existing Bleve index and fails if none is present.
func OpenBleveIndex(path string) (*BleveIndex, error) {
	index, err := bleve.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open Bleve index: %w", err)
	}
	return &BleveIndex{index: index}, nil
}

// Index indexes a single unit by its ID.
func (b *BleveIndex) Index(ctx context.Context, unit *models.DocumentUnit) error {
	return b.index.Index(unit.ID, unitDoc{Title: unit.Title, Content: unit.Content})
}

// IndexBatch indexes units with one Bleve batch.
func (b *BleveIndex) IndexBatch(ctx context.Context, units []*models.DocumentUnit) error {
	batch := b.index.NewBatch()
	for _, u := range units {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := batch.Index(u.ID, unitDoc{Title: u.Title, Content: u.Content}); err != nil {
			return fmt.Errorf("failed to batch unit %s: %w", u.ID, err)
		}
	}
	return b.index.Batch(batch)
}

// Search runs a disjunction of content and title matches and returns up to limit hits.
// Title matches are boosted by opts.TitleBoost.
func (b *BleveIndex) Search(ctx context.Context, query string, limit int, opts *SearchOptions) ([]*KeywordResult, error) {
	if limit <= 0 {
		return nil, nil
	}
	titleBoost := 1.0
	fuzzy := false
	fuzziness := 1
	if opts != nil {
		if opts.TitleBoost > 0 {
			titleBoost = opts.TitleBoost
		}
		fuzzy = opts.FuzzyEnabled
		if opts.Fuzziness > 0 {
			fuzziness = min(opts.Fuzziness, 2)
		}
	}

	content := bleve.NewMatchQuery(query)
	content.SetField("content")
	title := bleve.NewMatchQuery(query)
	title.SetField("title")
	title.SetBoost(titleBoost)
	if fuzzy {
		content.SetFuzziness(fuzziness)
		title.SetFuzziness(fuzziness)
	}

	req := bleve.NewSearchRequest(bleve.NewDisjunctionQuery([]blevequery.Query{content, title}...))
	req.Size = limit
	results, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("Bleve search failed: %w", err)
	}
	out := make([]*KeywordResult, len(results.Hits))
	for i, hit := range results.Hits {
		out[i] = &KeywordResult{ID: hit.ID, Score: hit.Score}
	}
	return out, nil
}

// DocCount returns the total number of units in the index.
func (b *BleveIndex) DocCount() (uint64, error) {
	return b.index.DocCount()
}

// Terms returns the content and title vocabulary with document frequencies.
func (b *BleveIndex) Terms() (map[string]int, error) {
	terms := make(map[string]int)
	for _, field := range []string{"content", "title"} {
		dict, err := b.index.FieldDict(field)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s dictionary: %w", field, err)
		}
		for {
			entry, err := dict.Next()
			if err != nil {
				_ = dict.Close()
				return nil, err
			}
			if entry == nil {
				break
			}
			terms[entry.Term] = max(terms[entry.Term], int(entry.Count))
		}
		if err := dict.Close(); err != nil {
			return nil, err
		}
	}
	return terms, nil
}

// Close closes the Bleve index.
func (b *BleveIndex) Close() error {
	return b.index.Close()
}
