package docxhost

import (
	"unicode"

	"github.com/dgallion1/docpane/internal/host"
)

// findMatches returns non-overlapping [start, end) rune ranges of term in
// text, scanning left to right. A match may not cross a group boundary.
func findMatches(text []rune, group []int, term []rune, opts host.SearchOptions) [][2]int {
	m := len(term)
	if m == 0 {
		return nil
	}
	var out [][2]int
	for i := 0; i+m <= len(text); {
		if group[i] == group[i+m-1] && matchAt(text, i, term, opts.MatchCase) &&
			(!opts.MatchWholeWord || wholeWord(text, i, i+m)) {
			out = append(out, [2]int{i, i + m})
			i += m
			continue
		}
		i++
	}
	return out
}

func matchAt(text []rune, at int, term []rune, matchCase bool) bool {
	for j, r := range term {
		t := text[at+j]
		if t == r {
			continue
		}
		if matchCase || !equalFold(t, r) {
			return false
		}
	}
	return true
}

func equalFold(a, b rune) bool {
	return unicode.ToLower(a) == unicode.ToLower(b) || unicode.ToUpper(a) == unicode.ToUpper(b)
}

func wholeWord(text []rune, start, end int) bool {
	if start > 0 && isWordRune(text[start-1]) {
		return false
	}
	if end < len(text) && isWordRune(text[end]) {
		return false
	}
	return true
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
