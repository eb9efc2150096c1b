package loader

import (
	"strings"
	"unicode"
)

// Preprocess normalizes extracted text for indexing: trims, drops control characters
// and collapses whitespace runs into single spaces.
func Preprocess(text string) string {
	text = strings.TrimSpace(text)
	var b strings.Builder
	b.Grow(len(text))
	wasSpace := false
	for _, r := range text {
		switch {
		case unicode.IsSpace(r):
			if !wasSpace {
				b.WriteRune(' ')
				wasSpace = true
			}
		case unicode.IsControl(r):
		default:
			b.WriteRune(r)
			wasSpace = false
		}
	}
	return b.String()
}
