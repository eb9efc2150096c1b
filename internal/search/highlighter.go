package search

import (
	"strings"
	"unicode"

	"github.com/hyperjump/astrabot/pkg/utils"
)

// Snippet returns about maxLen runes of content around the first query word it contains.
// maxLen <= 0 returns content unchanged.
func Snippet(content, query string, maxLen int) string {
	runes := []rune(content)
	if maxLen <= 0 || len(runes) <= maxLen {
		return content
	}
	start := firstMatch(runes, query)
	if start <= maxLen/4 {
		return utils.Truncate(content, maxLen)
	}
	start = min(start-maxLen/4, len(runes)-maxLen)
	for start > 0 && !unicode.IsSpace(runes[start-1]) {
		start--
	}
	return "..." + utils.Truncate(string(runes[start:]), maxLen)
}

// firstMatch returns the rune offset of the earliest case-insensitive occurrence
// of a query word with at least three letters, or -1.
func firstMatch(content []rune, query string) int {
	lower := make([]rune, len(content))
	for i, r := range content {
		lower[i] = unicode.ToLower(r)
	}
	best := -1
	words := strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		word := []rune(w)
		if len(word) < 3 {
			continue
		}
		limit := len(lower) - len(word)
		if best >= 0 {
			limit = min(limit, best-1)
		}
		for i := 0; i <= limit; i++ {
			if string(lower[i:i+len(word)]) == w {
				best = i
				break
			}
		}
	}
	return best
}
