// Package sanitize cleans user-supplied strings before they are persisted or
// echoed back in progress messages and error details.
package sanitize

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// MaxStringLen caps persisted free-text fields.
const MaxStringLen = 500

// String strips control characters, trims whitespace, and truncates to
// MaxStringLen. Invalid UTF-8 is replaced before filtering.
func String(s string) string {
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, "")
	}
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) && r != '\t' {
			return -1
		}
		return r
	}, s)
	s = strings.TrimSpace(s)
	return Truncate(s, MaxStringLen)
}

// Truncate cuts s to at most n runes, appending an ellipsis marker when it
// had to cut. Limits too small to fit the marker cut hard instead.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	if n <= 3 {
		return string(runes[:n])
	}
	return string(runes[:n-3]) + "..."
}
