// Package speech turns an answer into spoken audio.
package speech

import (
	"strings"
	"unicode"
)

// Dropped outright so that words like "don't" stay one word.
const deleted = "*_`\"'‘’“”«»"

// Sanitize strips markup and symbols that a speech engine would read aloud.
// Letters, digits and sentence punctuation (. ! ?) are kept, whitespace is
// collapsed. Sanitize(Sanitize(s)) == Sanitize(s).
func Sanitize(text string) string {
	var sb strings.Builder
	sb.Grow(len(text))

	for _, r := range text {
		switch {
		case strings.ContainsRune(deleted, r):
		case unicode.IsLetter(r), unicode.IsNumber(r), unicode.IsMark(r):
			sb.WriteRune(r)
		case r == '.', r == '!', r == '?':
			sb.WriteRune(r)
		default:
			sb.WriteByte(' ')
		}
	}

	return strings.Join(strings.Fields(sb.String()), " ")
}
