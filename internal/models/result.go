package models

// Passage is a single retrieved unit with its fused relevance score.
type Passage struct {
	Unit          *DocumentUnit `json:"unit"`
	Score         float64       `json:"score"`
	KeywordScore  float64       `json:"keyword_score"`
	SemanticScore float64       `json:"semantic_score"`
	Rank          int           `json:"rank"`
}

// Text returns the passage content, or "" for a nil unit.
func (p *Passage) Text() string {
	if p == nil || p.Unit == nil {
		return ""
	}
	return p.Unit.Content
}

// CapabilityResult is the outcome of querying one capability during a turn.
type CapabilityResult struct {
	Capability string     `json:"capability"`
	Query      string     `json:"query"`
	Passages   []*Passage `json:"passages"`
	// Err is set when the query failed; such results are dropped before synthesis.
	Err error `json:"-"`
}
