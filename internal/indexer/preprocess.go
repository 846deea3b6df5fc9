package indexer

import (
	"strings"
	"unicode"
)

// Preprocess trims text and collapses whitespace runs to a single space.
// PDF extraction tends to leave ragged line breaks; uploads may opt into this.
func Preprocess(text string) string {
	text = strings.TrimSpace(text)
	var b strings.Builder
	b.Grow(len(text))
	wasSpace := false
	for _, r := range text {
		if unicode.IsSpace(r) {
			if !wasSpace {
				b.WriteRune(' ')
				wasSpace = true
			}
		} else {
			b.WriteRune(r)
			wasSpace = false
		}
	}
	return b.String()
}
