package match

import (
	"github.com/sydlexius/milkcrate/internal/normalize"
)

// Confidence classes for live-show matches, weakest to strongest.
// Manual assignments are made by the user and never overwritten by a
// rebuild.
const (
	ConfidenceNone    = ""
	ConfidenceExact   = "exact"
	ConfidencePartial = "partial"
	ConfidenceManual  = "manual"
)

// ValidConfidence reports whether s is a storable confidence value.
func ValidConfidence(s string) bool {
	switch s {
	case ConfidenceNone, ConfidenceExact, ConfidencePartial, ConfidenceManual:
		return true
	}
	return false
}

// Candidate is one official release a live recording may correspond
// to. Exactly one of DigitalAlbumID or PhysicalRecordID is set.
type Candidate struct {
	DigitalAlbumID   string
	PhysicalRecordID string
	Title            string
}

// Classification is the outcome of scoring a live recording against a
// candidate list.
type Classification struct {
	Candidate  Candidate
	Confidence string
	Overlap    float64
}

// Classifier scores the free-text remainder of a live recording title
// (venue, city, event) against official release titles.
type Classifier struct {
	threshold float64
}

// NewClassifier returns a classifier that accepts partial matches at
// or above threshold. Values outside (0, 1] fall back to 0.6.
func NewClassifier(threshold float64) *Classifier {
	if threshold <= 0 || threshold > 1 {
		threshold = 0.6
	}
	return &Classifier{threshold: threshold}
}

// Classify picks the best candidate for the given remainder text. An
// exact normalized-title match wins immediately; otherwise the
// candidate with the highest token overlap at or above the threshold
// is chosen. Candidates are checked in order, so callers list the
// preferred kind first. The second return is false when nothing
// qualifies.
func (c *Classifier) Classify(remainder string, candidates []Candidate) (Classification, bool) {
	remNorm := normalize.Text(remainder)
	remTokens := normalize.Tokens(remainder)

	var best Classification
	for _, cand := range candidates {
		if remNorm != "" && normalize.Text(cand.Title) == remNorm {
			return Classification{Candidate: cand, Confidence: ConfidenceExact, Overlap: 1}, true
		}
		overlap := TokenOverlap(remTokens, normalize.Tokens(cand.Title))
		if overlap >= c.threshold && overlap > best.Overlap {
			best = Classification{Candidate: cand, Confidence: ConfidencePartial, Overlap: overlap}
		}
	}
	if best.Confidence == ConfidenceNone {
		return Classification{}, false
	}
	return best, true
}

// TokenOverlap returns the fraction of significant tokens shared by a
// and b, scaled by the larger set. Both empty or either empty scores
// zero.
func TokenOverlap(a, b []string) float64 {
	setA := tokenSet(a)
	setB := tokenSet(b)
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}
	shared := 0
	for t := range setA {
		if _, ok := setB[t]; ok {
			shared++
		}
	}
	larger := len(setA)
	if len(setB) > larger {
		larger = len(setB)
	}
	return float64(shared) / float64(larger)
}

func tokenSet(tokens []string) map[string]struct{} {
	set := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		set[t] = struct{}{}
	}
	return set
}
