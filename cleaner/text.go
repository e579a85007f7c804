package cleaner

import (
	"strings"
	"unicode/utf8"
)

// DefaultTruncate is the default maximum length used by Truncate callers.
const DefaultTruncate = 160

const ellipsis = "..."

// markupEscaper backslash-escapes the characters Telegram's Markdown treats
// as formatting.
var markupEscaper = strings.NewReplacer(
	`_`, `\_`,
	`*`, `\*`,
	`[`, `\[`,
	`]`, `\]`,
	"`", "\\`",
)

// NormalizeWhitespace collapses every run of whitespace (including
// non-breaking and other Unicode spaces) into a single space and trims both
// ends.
func NormalizeWhitespace(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// Truncate shortens text to at most maxLen runes. Shortened output keeps the
// first maxLen-3 runes and ends in "...". maxLen below 4 leaves no room for
// the marker, so the text is cut hard.
func Truncate(text string, maxLen int) string {
	if utf8.RuneCountInString(text) <= maxLen {
		return text
	}
	if maxLen <= 0 {
		return ""
	}
	runes := []rune(text)
	if maxLen <= len(ellipsis) {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-len(ellipsis)]) + ellipsis
}

// EscapeMarkup prefixes every Markdown-significant character with a
// backslash. Apply it to every page- or user-supplied string before it is
// placed in a brief line.
func EscapeMarkup(text string) string {
	return markupEscaper.Replace(text)
}
