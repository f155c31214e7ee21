package indexer

import (
	"strings"
	"unicode"
)

var lineEndings = strings.NewReplacer("\r\n", "\n", "\r", "\n")

// Preprocess normalizes extracted text before chunking: line endings become
// "\n" and control characters other than newline and tab are dropped.
// Paragraph breaks are kept so the chunker can split on them.
func Preprocess(text string) string {
	text = lineEndings.Replace(text)
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) || r == '\uFEFF' {
			return -1
		}
		return r
	}, text)
}
