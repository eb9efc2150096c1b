package models

import "fmt"

// RetrievalQuery is a request against a single semantic index.
type RetrievalQuery struct {
	Text  string `json:"text"`
	Limit int    `json:"limit,omitempty"`
	// Candidates is how many hits each retriever contributes before fusion.
	Candidates int `json:"candidates,omitempty"`
	// KeywordWeight balances keyword against semantic scores; 0 means semantic only.
	KeywordWeight float64 `json:"keyword_weight,omitempty"`
}

// Validate ensures the query has text and normalizes limits.
func (q *RetrievalQuery) Validate() error {
	if q.Text == "" {
		return fmt.Errorf("query cannot be empty")
	}
	if q.Limit <= 0 {
		q.Limit = 3
	}
	if q.Limit > 50 {
		q.Limit = 50
	}
	if q.Candidates < q.Limit {
		q.Candidates = q.Limit * 4
	}
	if q.KeywordWeight < 0 {
		q.KeywordWeight = 0
	}
	if q.KeywordWeight > 1 {
		q.KeywordWeight = 1
	}
	return nil
}
