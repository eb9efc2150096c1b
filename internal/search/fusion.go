// Package search runs hybrid (keyword + semantic) retrieval over one collection and fuses the scores.
package search

import (
	"sort"

	"github.com/hyperjump/astrabot/internal/keyword"
	"github.com/hyperjump/astrabot/internal/vector"
)

// FusedResult holds a unit ID and fused keyword/semantic scores.
type FusedResult struct {
	UnitID        string
	Score         float64
	KeywordScore  float64
	SemanticScore float64
}

// NormalizeKeywordScores normalizes keyword scores to [0,1] by max.
func NormalizeKeywordScores(results []*keyword.KeywordResult) map[string]float64 {
	normalized := make(map[string]float64, len(results))
	var maxScore float64
	for _, r := range results {
		maxScore = max(maxScore, r.Score)
	}
	for _, r := range results {
		if maxScore > 0 {
			normalized[r.ID] = r.Score / maxScore
		} else {
			normalized[r.ID] = 0
		}
	}
	return normalized
}

// NormalizeSemanticScores maps cosine similarity into [0,1]; negative similarity counts as 0.
func NormalizeSemanticScores(results []*vector.VectorResult) map[string]float64 {
	normalized := make(map[string]float64, len(results))
	for _, r := range results {
		normalized[r.ID] = min(max(r.Score, 0), 1)
	}
	return normalized
}

// Fuse merges keyword and semantic score maps with weights and returns results sorted
// by score descending, then by unit ID so equal scores have a stable order.
func Fuse(keywordScores, semanticScores map[string]float64, keywordWeight, semanticWeight float64) []*FusedResult {
	scoreMap := make(map[string]*FusedResult, len(keywordScores)+len(semanticScores))
	for id, score := range keywordScores {
		scoreMap[id] = &FusedResult{UnitID: id, KeywordScore: score}
	}
	for id, score := range semanticScores {
		if result, ok := scoreMap[id]; ok {
			result.SemanticScore = score
		} else {
			scoreMap[id] = &FusedResult{UnitID: id, SemanticScore: score}
		}
	}
	results := make([]*FusedResult, 0, len(scoreMap))
	for _, result := range scoreMap {
		result.Score = keywordWeight*result.KeywordScore + semanticWeight*result.SemanticScore
		results = append(results, result)
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].UnitID < results[j].UnitID
	})
	return results
}
