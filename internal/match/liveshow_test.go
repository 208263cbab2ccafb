package match

import (
	"math"
	"testing"

	"github.com/sydlexius/milkcrate/internal/normalize"
)

func TestClassifyExact(t *testing.T) {
	c := NewClassifier(0.6)
	candidates := []Candidate{
		{PhysicalRecordID: "rec-1", Title: "Providence College"},
	}

	cls, ok := c.Classify("providence  college!", candidates)
	if !ok {
		t.Fatal("expected a match")
	}
	if cls.Confidence != ConfidenceExact {
		t.Errorf("confidence = %q, want %q", cls.Confidence, ConfidenceExact)
	}
	if cls.Candidate.PhysicalRecordID != "rec-1" {
		t.Errorf("candidate = %+v, want rec-1", cls.Candidate)
	}
}

func TestClassifyPartial(t *testing.T) {
	c := NewClassifier(0.6)
	candidates := []Candidate{
		{DigitalAlbumID: "alb-1", Title: "Agora Ballroom, Cleveland 1978"},
	}

	cls, ok := c.Classify("Agora Ballroom Cleveland", candidates)
	if !ok {
		t.Fatal("expected a partial match")
	}
	if cls.Confidence != ConfidencePartial {
		t.Errorf("confidence = %q, want %q", cls.Confidence, ConfidencePartial)
	}
	if cls.Overlap < 0.6 {
		t.Errorf("overlap = %f, want >= 0.6", cls.Overlap)
	}
}

func TestClassifyBelowThreshold(t *testing.T) {
	c := NewClassifier(0.6)
	candidates := []Candidate{
		{PhysicalRecordID: "rec-1", Title: "Live at Providence College"},
	}

	// Shares providence and college but only 2 of 4 tokens.
	if _, ok := c.Classify("Providence College, Rhode Island", candidates); ok {
		t.Error("expected no match below threshold")
	}
}

func TestClassifyPrefersEarlierCandidate(t *testing.T) {
	c := NewClassifier(0.6)
	candidates := []Candidate{
		{PhysicalRecordID: "rec-1", Title: "Roxy Theatre"},
		{DigitalAlbumID: "alb-1", Title: "Roxy Theatre"},
	}

	cls, ok := c.Classify("Roxy Theatre", candidates)
	if !ok {
		t.Fatal("expected a match")
	}
	if cls.Candidate.PhysicalRecordID != "rec-1" {
		t.Errorf("expected the first candidate to win, got %+v", cls.Candidate)
	}
}

func TestClassifyEmptyRemainder(t *testing.T) {
	c := NewClassifier(0.6)
	candidates := []Candidate{
		{PhysicalRecordID: "rec-1", Title: "!!!"},
	}

	if _, ok := c.Classify("", candidates); ok {
		t.Error("empty remainder must not match")
	}
}

func TestTokenOverlap(t *testing.T) {
	tests := []struct {
		name string
		a    string
		b    string
		want float64
	}{
		{"identical", "fillmore east new york", "fillmore east new york", 1},
		{"disjoint", "fillmore east", "budokan tokyo", 0},
		{"subset", "agora ballroom cleveland", "agora ballroom cleveland 1978", 0.75},
		{"empty side", "", "fillmore east", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TokenOverlap(normalize.Tokens(tt.a), normalize.Tokens(tt.b))
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("TokenOverlap = %f, want %f", got, tt.want)
			}
		})
	}
}

func TestTokenOverlapDuplicatesCollapse(t *testing.T) {
	a := normalize.Tokens("live live live rust")
	b := normalize.Tokens("live rust")
	if got := TokenOverlap(a, b); got != 1 {
		t.Errorf("TokenOverlap = %f, want 1", got)
	}
}

func TestValidConfidence(t *testing.T) {
	for _, s := range []string{ConfidenceNone, ConfidenceExact, ConfidencePartial, ConfidenceManual} {
		if !ValidConfidence(s) {
			t.Errorf("ValidConfidence(%q) = false", s)
		}
	}
	if ValidConfidence("fuzzy") {
		t.Error(`ValidConfidence("fuzzy") = true`)
	}
}
