package chunker

import (
	"strings"
	"unicode"
)

// Preprocess normalizes extracted text before splitting: line endings become "\n",
// runs of other whitespace collapse to one space, trailing spaces are dropped and
// more than one blank line collapses to one. Paragraph breaks survive so the splitter
// can use them.
func Preprocess(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	var b strings.Builder
	b.Grow(len(text))
	newlines := 0
	pendingSpace := false
	for _, r := range strings.TrimSpace(text) {
		switch {
		case r == '\n':
			newlines++
			pendingSpace = false
		case unicode.IsSpace(r):
			pendingSpace = true
		case unicode.IsControl(r):
			// drop
		default:
			if newlines > 0 {
				if newlines > 2 {
					newlines = 2
				}
				b.WriteString(strings.Repeat("\n", newlines))
				newlines = 0
			} else if pendingSpace {
				b.WriteByte(' ')
			}
			pendingSpace = false
			b.WriteRune(r)
		}
	}
	return b.String()
}
