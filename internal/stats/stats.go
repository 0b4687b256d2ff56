// Package stats computes word, character and paragraph counts for plain text.
package stats

import (
	"strings"
	"unicode"
)

// Result holds the counts for one text. Characters excludes line breaks and
// is measured in runes.
type Result struct {
	Words      int `json:"word_count"`
	Characters int `json:"char_count"`
	Paragraphs int `json:"paragraph_count"`
}

var lineEndings = strings.NewReplacer("\r\n", "\n", "\r", "\n")

// Normalize rewrites every CRLF and lone CR as LF.
func Normalize(text string) string {
	return lineEndings.Replace(text)
}

// isSpace is unicode.IsSpace minus U+0085 (NEL) plus U+FEFF, the set of
// separators a word is split on.
func isSpace(c rune) bool {
	switch c {
	case '\u0085':
		return false
	case '\uFEFF':
		return true
	}
	return unicode.IsSpace(c)
}

// Compute normalizes text and derives all three counts from one pass over it.
//
// A word is a maximal run of non-space runes. A paragraph is a segment
// between runs of line feeds that holds at least one non-space rune.
func Compute(text string) Result {
	var (
		r          Result
		inWord     bool
		paraHasInk bool
	)
	for _, c := range Normalize(text) {
		if c == '\n' {
			if paraHasInk {
				r.Paragraphs++
			}
			paraHasInk = false
			inWord = false
			continue
		}
		r.Characters++
		if isSpace(c) {
			inWord = false
			continue
		}
		if !inWord {
			r.Words++
			inWord = true
		}
		paraHasInk = true
	}
	if paraHasInk {
		r.Paragraphs++
	}
	return r
}
