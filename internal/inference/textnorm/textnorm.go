// Package textnorm provides the text normalisation and tokenisation used by
// every similarity computation in the inference pipeline.  All matching tiers
// must agree on one normal form so that hashes, exact comparisons, and token
// overlaps are consistent.
package textnorm

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"unicode"
)

// stopwords is the fixed set of tokens dropped during tokenisation.  The set
// is intentionally small; clinical terms are never stopwords.
var stopwords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "with": {}, "was": {}, "were": {},
	"this": {}, "that": {}, "are": {}, "has": {}, "had": {}, "have": {},
	"not": {}, "but": {}, "his": {}, "her": {}, "from": {}, "into": {},
	"per": {}, "upon": {}, "also": {}, "been": {}, "being": {}, "will": {},
}

// Normalize lowercases text, replaces every non-alphanumeric rune with a
// space, collapses runs of whitespace, and trims the result.
func Normalize(text string) string {
	var sb strings.Builder
	sb.Grow(len(text))

	lastSpace := true
	for _, r := range strings.ToLower(text) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			sb.WriteRune(r)
			lastSpace = false
			continue
		}
		if !lastSpace {
			sb.WriteByte(' ')
			lastSpace = true
		}
	}
	return strings.TrimSpace(sb.String())
}

// Tokenize normalises text, splits on spaces, and drops tokens of length
// two or less as well as stopwords.
func Tokenize(text string) []string {
	normalized := Normalize(text)
	if normalized == "" {
		return nil
	}
	parts := strings.Split(normalized, " ")
	tokens := make([]string, 0, len(parts))
	for _, p := range parts {
		if len(p) <= 2 {
			continue
		}
		if _, stop := stopwords[p]; stop {
			continue
		}
		tokens = append(tokens, p)
	}
	return tokens
}

// TokenSet returns the distinct tokens of text as a set.
func TokenSet(text string) map[string]struct{} {
	tokens := Tokenize(text)
	if len(tokens) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(tokens))
	for _, tok := range tokens {
		set[tok] = struct{}{}
	}
	return set
}

// ContentHash returns the SHA-256 hex digest of the normalised text.  It is
// the canonical cache key for embeddings: two texts that normalise equally
// share one vector.
func ContentHash(text string) string {
	sum := sha256.Sum256([]byte(Normalize(text)))
	return hex.EncodeToString(sum[:])
}
