package search

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/hyperjump/astrabot/internal/embedding"
	"github.com/hyperjump/astrabot/internal/keyword"
	"github.com/hyperjump/astrabot/internal/models"
	"github.com/hyperjump/astrabot/internal/storage"
	"github.com/hyperjump/astrabot/internal/vector"
)

// Retriever answers passage queries for one collection.
type Retriever struct {
	store        storage.UnitStore
	embedder     embedding.Embedder
	vectorIndex  vector.VectorIndex
	keywordIndex keyword.KeywordIndex
	speller      *keyword.SpellChecker
	logger       *zap.Logger
}

// Option configures a Retriever.
type Option func(*Retriever)

// WithKeywordIndex enables the keyword half of hybrid retrieval.
func WithKeywordIndex(idx keyword.KeywordIndex) Option {
	return func(r *Retriever) { r.keywordIndex = idx }
}

// WithSpellChecker retries a keyword search that found nothing with a corrected query.
func WithSpellChecker(sc *keyword.SpellChecker) Option {
	return func(r *Retriever) { r.speller = sc }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Retriever) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewRetriever creates a retriever with the given dependencies.
func NewRetriever(store storage.UnitStore, embedder embedding.Embedder, vectorIndex vector.VectorIndex, opts ...Option) *Retriever {
	r := &Retriever{
		store:       store,
		embedder:    embedder,
		vectorIndex: vectorIndex,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Search runs keyword and semantic retrieval concurrently, fuses the scores and returns
// at most query.Limit passages ranked from 1.
func (r *Retriever) Search(ctx context.Context, query *models.RetrievalQuery) ([]*models.Passage, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}
	useKeyword := r.keywordIndex != nil && query.KeywordWeight > 0

	var (
		keywordResults  []*keyword.KeywordResult
		semanticResults []*vector.VectorResult
		errChan         = make(chan error, 2)
		wg              sync.WaitGroup
	)

	if useKeyword {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results, err := r.searchKeyword(ctx, query.Text, query.Candidates)
			if err != nil {
				errChan <- fmt.Errorf("keyword search failed: %w", err)
				return
			}
			keywordResults = results
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		queryEmbedding, err := r.embedder.Embed(ctx, query.Text)
		if err != nil {
			errChan <- fmt.Errorf("embedding failed: %w", err)
			return
		}
		results, err := r.vectorIndex.Search(ctx, queryEmbedding, query.Candidates)
		if err != nil {
			errChan <- fmt.Errorf("vector search failed: %w", err)
			return
		}
		semanticResults = results
	}()

	wg.Wait()
	close(errChan)
	for err := range errChan {
		if err != nil {
			return nil, err
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	keywordWeight := 0.0
	if useKeyword {
		keywordWeight = query.KeywordWeight
	}
	fused := Fuse(NormalizeKeywordScores(keywordResults), NormalizeSemanticScores(semanticResults), keywordWeight, 1-keywordWeight)
	if len(fused) > query.Limit {
		fused = fused[:query.Limit]
	}

	ids := make([]string, len(fused))
	for i, f := range fused {
		ids[i] = f.UnitID
	}
	units, err := r.store.GetUnits(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load passages: %w", err)
	}

	passages := make([]*models.Passage, 0, len(fused))
	for _, f := range fused {
		unit, ok := units[f.UnitID]
		if !ok {
			r.logger.Warn("Indexed unit missing from store", zap.String("unit_id", f.UnitID))
			continue
		}
		passages = append(passages, &models.Passage{
			Unit:          unit,
			Score:         f.Score,
			KeywordScore:  f.KeywordScore,
			SemanticScore: f.SemanticScore,
			Rank:          len(passages) + 1,
		})
	}
	return passages, nil
}

func (r *Retriever) searchKeyword(ctx context.Context, text string, limit int) ([]*keyword.KeywordResult, error) {
	opts := &keyword.SearchOptions{TitleBoost: 1.5}
	results, err := r.keywordIndex.Search(ctx, text, limit, opts)
	if err != nil || len(results) > 0 || r.speller == nil {
		return results, err
	}
	corrected, ok := r.speller.Correct(text)
	if !ok {
		return results, nil
	}
	r.logger.Debug("Retrying keyword search with corrected query",
		zap.String("query", text), zap.String("corrected", corrected))
	return r.keywordIndex.Search(ctx, corrected, limit, opts)
}
