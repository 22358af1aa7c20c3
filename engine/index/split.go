// Package index holds knowledge-base text as embedded chunks and ranks them
// against a query by cosine similarity.
package index

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// MinChunkLength is the exclusive lower bound, in characters, for a kept chunk.
const MinChunkLength = 50

var paragraphBreak = regexp.MustCompile(`\n\s*\n`)

// Split breaks text into paragraphs at blank lines, trims each one, and keeps
// those longer than MinChunkLength characters, in document order.
func Split(text string) []string {
	out := []string{}
	for _, p := range paragraphBreak.Split(text, -1) {
		p = strings.TrimSpace(p)
		if utf8.RuneCountInString(p) > MinChunkLength {
			out = append(out, p)
		}
	}
	return out
}
