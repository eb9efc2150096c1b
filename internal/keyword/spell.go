package keyword

import (
	"sort"
	"strings"
	"sync"
	"unicode"
)

// Suggestion is a dictionary term close to a misspelled query term.
type Suggestion struct {
	Term      string
	Distance  int
	Frequency int
	Score     float64
}

// SpellChecker suggests corrections for query terms that are absent from the index vocabulary.
type SpellChecker struct {
	dictionary  TermDictionary
	maxDistance int
	minFreq     int
	minLength   int

	once  sync.Once
	terms map[string]int
	err   error
}

// SpellCheckerOption is a functional option for configuring SpellChecker.
type SpellCheckerOption func(*SpellChecker)

// WithMaxDistance sets the maximum Damerau-Levenshtein distance for suggestions.
func WithMaxDistance(d int) SpellCheckerOption {
	return func(s *SpellChecker) {
		if d > 0 {
			s.maxDistance = d
		}
	}
}

// WithMinFrequency ignores dictionary terms seen in fewer than f units.
func WithMinFrequency(f int) SpellCheckerOption {
	return func(s *SpellChecker) {
		if f >= 0 {
			s.minFreq = f
		}
	}
}

// NewSpellChecker creates a SpellChecker over dict. The vocabulary is read once, on first use.
func NewSpellChecker(dict TermDictionary, opts ...SpellCheckerOption) *SpellChecker {
	s := &SpellChecker{
		dictionary:  dict,
		maxDistance: 2,
		minFreq:     1,
		minLength:   4,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *SpellChecker) load() (map[string]int, error) {
	s.once.Do(func() {
		s.terms, s.err = s.dictionary.Terms()
	})
	return s.terms, s.err
}

// Suggest returns dictionary terms within the maximum distance of term, best first.
// Ties on score are broken by term so the order is deterministic.
func (s *SpellChecker) Suggest(term string) []Suggestion {
	terms, err := s.load()
	if err != nil {
		return nil
	}
	term = strings.ToLower(term)
	n := len([]rune(term))
	var out []Suggestion
	for candidate, freq := range terms {
		if candidate == term || freq < s.minFreq {
			continue
		}
		diff := len([]rune(candidate)) - n
		if diff > s.maxDistance || -diff > s.maxDistance {
			continue
		}
		d := DamerauLevenshteinDistance(term, candidate)
		if d > s.maxDistance {
			continue
		}
		out = append(out, Suggestion{
			Term:      candidate,
			Distance:  d,
			Frequency: freq,
			Score:     float64(freq) / float64(d+1),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Term < out[j].Term
	})
	return out
}

// Correct rewrites query with the best suggestion for each unknown term.
// Short terms, numbers and known terms are kept. It reports whether anything changed.
func (s *SpellChecker) Correct(query string) (string, bool) {
	terms, err := s.load()
	if err != nil || len(terms) == 0 {
		return query, false
	}
	words := strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	changed := false
	for i, w := range words {
		if _, ok := terms[w]; ok || len([]rune(w)) < s.minLength || strings.IndexFunc(w, unicode.IsDigit) >= 0 {
			continue
		}
		if sugg := s.Suggest(w); len(sugg) > 0 {
			words[i] = sugg[0].Term
			changed = true
		}
	}
	if !changed {
		return query, false
	}
	return strings.Join(words, " "), true
}
