package agent

import (
	"context"
	"slices"
	"strings"

	"github.com/hyperjump/astrabot/internal/capability"
	"github.com/hyperjump/astrabot/internal/keyword"
	"github.com/hyperjump/astrabot/internal/models"
)

// Selection is one capability chosen for a turn and the query to send it.
type Selection struct {
	Capability string `json:"capability"`
	Query      string `json:"query"`
}

// Decision is the outcome of routing a message. Selections are ranked best first.
// A decision with no selections and no flag set leaves the reply to the synthesizer, which
// answers under the policy or asks the user to be more specific.
type Decision struct {
	Selections []Selection `json:"selections"`
	OffTopic   bool        `json:"off_topic"`
	Greeting   bool        `json:"greeting"`
}

// Names returns the selected capability names in rank order.
func (d Decision) Names() []string {
	names := make([]string, len(d.Selections))
	for i, s := range d.Selections {
		names[i] = s.Capability
	}
	return names
}

// Input is everything a router may look at.
type Input struct {
	Policy       *Policy
	Capabilities []*capability.Capability
	Message      string
	Window       []models.Turn
}

// Router picks the capabilities a message needs.
type Router interface {
	Decide(ctx context.Context, in Input) (Decision, error)
}

// Heuristic is a deterministic rule tried before the router. It reports false when it does not apply.
type Heuristic func(in Input) (Decision, bool)

var greetingWords = set("hallo", "hi", "hey", "servus", "grüß", "gruß", "grüezi", "moin", "guten", "tag",
	"morgen", "abend", "hello", "good", "morning", "evening", "danke", "dankeschön", "vielen", "dank",
	"thanks", "thank", "you", "tschüss", "ciao", "bye", "goodbye", "ok", "okay", "super", "astrabot",
	"wie", "geht", "es", "dir", "du", "wer", "bist", "how", "are", "who")

// isGreeting reports whether text consists only of greeting and courtesy words.
func isGreeting(text string) bool {
	tokens := tokenize(text)
	if len(tokens) == 0 {
		return false
	}
	for _, t := range tokens {
		if _, ok := greetingWords[t]; !ok {
			return false
		}
	}
	return true
}

// GreetingHeuristic answers greetings and thanks without querying any capability.
func GreetingHeuristic(in Input) (Decision, bool) {
	if isGreeting(in.Message) {
		return Decision{Greeting: true}, true
	}
	return Decision{}, false
}

var followUpCues = set("dazu", "davon", "darüber", "damit", "dabei", "dafür", "weitere", "weiteres", "mehr",
	"außerdem", "ebenfalls", "also", "more", "further", "else", "it", "that", "this", "those", "them")

func hasFollowUpCue(tokens []string) bool {
	for _, t := range tokens {
		if _, ok := followUpCues[t]; ok {
			return true
		}
	}
	return false
}

// KeywordRouter routes by matching capability keywords and names against the message.
// Earlier user turns in the window count at half weight when the message refers back to them.
// It never marks a message off-topic: missing a keyword says nothing about the topic.
type KeywordRouter struct {
	MaxCapabilities int
}

// NewKeywordRouter returns a router selecting at most maxCaps capabilities; maxCaps <= 0 means no limit.
func NewKeywordRouter(maxCaps int) *KeywordRouter {
	return &KeywordRouter{MaxCapabilities: maxCaps}
}

type scored struct {
	cap   *capability.Capability
	score float64
	order int
	// context is the most recent earlier user turn that matched.
	context string
}

// Decide never fails; it ignores ctx.
func (r *KeywordRouter) Decide(_ context.Context, in Input) (Decision, error) {
	tokens := tokenize(in.Message)
	lower := strings.ToLower(in.Message)
	followUp := hasFollowUpCue(tokens)

	var hits []scored
	for i, c := range in.Capabilities {
		s := scored{cap: c, order: i, score: float64(matchCount(c, lower, tokens))}
		if followUp {
			for _, t := range in.Window {
				if t.Role != models.RoleUser {
					continue
				}
				if n := matchCount(c, strings.ToLower(t.Content), tokenize(t.Content)); n > 0 {
					s.score += float64(n) / 2
					s.context = t.Content
				}
			}
		}
		if s.score > 0 {
			hits = append(hits, s)
		}
	}
	if len(hits) == 0 {
		if isGreeting(in.Message) {
			return Decision{Greeting: true}, nil
		}
		return Decision{}, nil
	}

	slices.SortStableFunc(hits, func(a, b scored) int {
		switch {
		case a.score > b.score:
			return -1
		case a.score < b.score:
			return 1
		}
		return a.order - b.order
	})
	if r.MaxCapabilities > 0 && len(hits) > r.MaxCapabilities {
		hits = hits[:r.MaxCapabilities]
	}

	d := Decision{Selections: make([]Selection, len(hits))}
	for i, h := range hits {
		query := in.Message
		if h.context != "" && matchCount(h.cap, lower, tokens) == 0 {
			query = h.context + " " + in.Message
		}
		d.Selections[i] = Selection{Capability: h.cap.Name(), Query: query}
	}
	return d, nil
}

// matchCount counts the distinct routing terms of c found in a message.
func matchCount(c *capability.Capability, lower string, tokens []string) int {
	terms := c.Keywords()
	terms = append(terms, strings.ToLower(c.Name()))
	terms = append(terms, tokenize(c.FullName())...)

	seen := make(map[string]bool, len(terms))
	n := 0
	for _, term := range terms {
		if term == "" || seen[term] {
			continue
		}
		seen[term] = true
		if matchesTerm(term, lower, tokens) {
			n++
		}
	}
	return n
}

func matchesTerm(term, lower string, tokens []string) bool {
	if strings.ContainsAny(term, " -") {
		return strings.Contains(lower, term)
	}
	for _, tok := range tokens {
		switch {
		case tok == term:
			return true
		case len(term) >= 4 && strings.Contains(tok, term):
			return true
		case len(term) >= 5 && len(tok) >= 5 && keyword.DamerauLevenshteinDistance(tok, term) <= 1:
			return true
		}
	}
	return false
}
