package validators

import (
	"strings"
	"unicode"
)

// CleanText trims s, drops control characters and caps it at maxRunes runes
// (no cap when maxRunes <= 0). Cutting on runes keeps the result valid UTF-8.
func CleanText(s string, maxRunes int) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, strings.TrimSpace(s))
	if maxRunes <= 0 {
		return s
	}
	if runes := []rune(s); len(runes) > maxRunes {
		return strings.TrimSpace(string(runes[:maxRunes]))
	}
	return s
}
