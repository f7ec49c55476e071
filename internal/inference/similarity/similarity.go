// Package similarity implements the two similarity measures used by the
// learned-rule matcher: Jaccard token overlap for the lexical tier and
// cosine similarity over embedding vectors for the semantic tier.
package similarity

import (
	"math"

	"github.com/nasher721/note-clarity-sub000/internal/inference/textnorm"
)

// Jaccard returns the token-overlap similarity of two texts:
// |tokens(a) ∩ tokens(b)| / |tokens(a) ∪ tokens(b)|.
// It returns 0 when either token set is empty.
func Jaccard(a, b string) float64 {
	setA := textnorm.TokenSet(a)
	setB := textnorm.TokenSet(b)
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}

	intersection := 0
	for tok := range setA {
		if _, ok := setB[tok]; ok {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

// Cosine returns the cosine similarity of two embedding vectors:
// (u · v) / (‖u‖ ‖v‖).  It returns 0 when the vectors differ in length or
// either vector has zero magnitude; callers must not rely on degenerate
// vectors carrying meaning.
func Cosine(u, v []float32) float64 {
	if len(u) == 0 || len(u) != len(v) {
		return 0
	}

	var dot, normU, normV float64
	for i := range u {
		fu := float64(u[i])
		fv := float64(v[i])
		dot += fu * fv
		normU += fu * fu
		normV += fv * fv
	}
	if normU == 0 || normV == 0 {
		return 0
	}
	return dot / (math.Sqrt(normU) * math.Sqrt(normV))
}
