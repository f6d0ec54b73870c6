package graph

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

var folder = cases.Fold()

// Normalize canonicalizes a phrase for lookup. It applies NFKC, case-folds,
// drops apostrophes, turns every other punctuation or symbol rune into a
// space, and collapses runs of whitespace. Normalize is idempotent.
//
//	Normalize("  Make the Agents, talk!  ") // "make the agents talk"
//	Normalize("agent's config")            // "agents config"
func Normalize(s string) string {
	s = folder.String(norm.NFKC.String(s))

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r == '\'' || r == '’' || r == '‘':
			// dropped so possessives stay one token
		case unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsMark(r):
			b.WriteRune(r)
		default:
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// Tokens returns the whitespace-separated tokens of a normalized phrase.
func Tokens(normalized string) []string {
	return strings.Fields(normalized)
}

// FrameworkKey canonicalizes a framework name: trimmed and lower-cased.
func FrameworkKey(framework string) string {
	return strings.ToLower(strings.TrimSpace(framework))
}
