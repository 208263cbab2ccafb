// Package normalize folds free-text artist and album strings into
// canonical comparison keys used for cross-collection matching.
package normalize

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// KeySeparator joins the artist and album halves of a match key.
// Normalization strips hyphens and collapses whitespace, so the
// separator can never occur inside either half.
const KeySeparator = " - "

var (
	nonAlnum   = regexp.MustCompile(`[^a-z0-9\s]`)
	multiSpace = regexp.MustCompile(`\s+`)
)

// Text returns the canonical comparison form of s: diacritics folded to
// ASCII, lowercased, punctuation stripped, whitespace collapsed, and
// any leading "the " removed. Idempotent: Text(Text(s)) == Text(s).
func Text(s string) string {
	s = norm.NFKD.String(s)
	s = strings.Map(func(r rune) rune {
		if r > unicode.MaxASCII {
			return -1
		}
		return r
	}, s)
	s = strings.ToLower(s)
	s = nonAlnum.ReplaceAllString(s, "")
	s = multiSpace.ReplaceAllString(s, " ")
	s = strings.TrimSpace(s)
	for strings.HasPrefix(s, "the ") {
		s = s[len("the "):]
	}
	return s
}

// MatchKey derives the deterministic join key for an artist/album pair.
// Two pairs with equal normalized artist and album always produce equal
// keys, regardless of case, punctuation, or diacritics in the input.
func MatchKey(artist, album string) string {
	return Text(artist) + KeySeparator + Text(album)
}

// stopTokens carry no identity and are excluded from overlap scoring.
var stopTokens = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "of": {}, "the": {},
}

// Tokens splits Text(s) into its significant tokens. Single-character
// tokens and bare articles/conjunctions are dropped.
func Tokens(s string) []string {
	var out []string
	for _, tok := range strings.Fields(Text(s)) {
		if len(tok) < 2 {
			continue
		}
		if _, stop := stopTokens[tok]; stop {
			continue
		}
		out = append(out, tok)
	}
	return out
}
