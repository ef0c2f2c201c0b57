package util

import (
	"strings"
	"unicode"
)

// CleanText normalizes text extracted from PDFs: whitespace runs collapse to
// single spaces, control characters are stripped, and typographic quotes and
// dashes become their plain ASCII equivalents.
func CleanText(s string) string {
	if s == "" {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for _, ch := range s {
		switch ch {
		case '‘', '’':
			b.WriteByte('\'')
			continue
		case '“', '”':
			b.WriteByte('"')
			continue
		case '–', '—':
			b.WriteByte('-')
			continue
		}
		if unicode.IsSpace(ch) {
			b.WriteByte(' ')
			continue
		}
		if ch < 0x20 || ch == 0x7f {
			continue
		}
		b.WriteRune(ch)
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// Snippet clips a string to at most maxRunes runes, cleaning it first.
func Snippet(s string, maxRunes int) string {
	if maxRunes <= 0 {
		maxRunes = 420
	}
	s = CleanText(s)
	runes := []rune(s)
	if len(runes) <= maxRunes {
		return s
	}
	return strings.TrimSpace(string(runes[:maxRunes])) + "..."
}

// Truncate clips a string to maxRunes without adding an ellipsis.
func Truncate(s string, maxRunes int) string {
	runes := []rune(s)
	if len(runes) <= maxRunes {
		return s
	}
	return string(runes[:maxRunes])
}
