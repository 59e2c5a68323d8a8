package search

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// tokenSeparators are treated as whitespace when splitting text into tokens.
var tokenSeparators = strings.NewReplacer("-", " ", "/", " ")

// Normalize returns the canonical comparison form of s: compatibility
// decomposed, stripped of combining marks and any character outside printable
// ASCII, lower-cased and trimmed. Normalize is idempotent.
func Normalize(s string) string {
	if s == "" {
		return ""
	}

	decomposed := norm.NFKD.String(s)

	var b strings.Builder
	b.Grow(len(decomposed))
	for _, r := range decomposed {
		// Combining marks are outside ASCII, so this drops them as well.
		if r >= utf8.RuneSelf {
			continue
		}
		if unicode.IsPrint(r) || unicode.IsSpace(r) {
			b.WriteRune(r)
		}
	}

	return strings.TrimSpace(strings.ToLower(b.String()))
}

// Tokenize splits s into normalized word tokens. Hyphens and slashes separate
// words, so "sci-fi/fantasy" yields "sci", "fi" and "fantasy".
func Tokenize(s string) []string {
	return strings.Fields(tokenSeparators.Replace(Normalize(s)))
}

// tokenSet returns the distinct tokens of s.
func tokenSet(s string) map[string]struct{} {
	tokens := Tokenize(s)
	set := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		set[t] = struct{}{}
	}
	return set
}
