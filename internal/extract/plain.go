package extract

import (
	"strings"
	"unicode/utf8"
)

// extractPlain returns content as a string; invalid UTF-8 is replaced with U+FFFD and a BOM is dropped.
func extractPlain(content []byte) (string, error) {
	s := string(content)
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, "\uFFFD")
	}
	return strings.TrimPrefix(s, "\uFEFF"), nil
}
