package filter

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Normalize lower-cases s, strips diacritics and collapses whitespace.
func Normalize(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.Join(strings.Fields(strings.ToLower(out)), " ")
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

// ContainsTerm reports whether term occurs in text as a whole word. Both are
// expected to be normalized. Boundaries are only enforced on sides where the
// term itself starts or ends with a letter or digit, so "c#" and "next.js"
// behave as expected.
func ContainsTerm(text, term string) bool {
	return containsBounded(text, term, true)
}

// ContainsPrefix is ContainsTerm without the trailing boundary: "react"
// matches "reactjs" but "go" still does not match "django".
func ContainsPrefix(text, term string) bool {
	return containsBounded(text, term, false)
}

func containsBounded(text, term string, tail bool) bool {
	if term == "" || text == "" {
		return false
	}
	first, _ := utf8.DecodeRuneInString(term)
	last, _ := utf8.DecodeLastRuneInString(term)
	for from := 0; from <= len(text)-len(term); {
		i := strings.Index(text[from:], term)
		if i < 0 {
			return false
		}
		start := from + i
		end := start + len(term)
		ok := true
		if isWordRune(first) {
			if r, size := utf8.DecodeLastRuneInString(text[:start]); size > 0 && isWordRune(r) {
				ok = false
			}
		}
		if ok && tail && isWordRune(last) {
			if r, size := utf8.DecodeRuneInString(text[end:]); size > 0 && isWordRune(r) {
				ok = false
			}
		}
		if ok {
			return true
		}
		_, size := utf8.DecodeRuneInString(text[start:])
		from = start + size
	}
	return false
}
