package bootleg

import (
	"testing"
	"time"
)

func TestParseHeader(t *testing.T) {
	h, ok := ParseHeader("1974 06/26 Providence Civic Center")
	if !ok {
		t.Fatal("expected a match")
	}
	want := time.Date(1974, time.June, 26, 0, 0, 0, 0, time.UTC)
	if !h.Date.Equal(want) {
		t.Errorf("date = %v, want %v", h.Date, want)
	}
	if h.Venue != "Providence Civic Center" {
		t.Errorf("venue = %q, want %q", h.Venue, "Providence Civic Center")
	}
	if h.ShowDate() != "1974-06-26" {
		t.Errorf("ShowDate() = %q, want %q", h.ShowDate(), "1974-06-26")
	}
}

func TestParseHeaderNoMatch(t *testing.T) {
	cases := []struct {
		title  string
		reason string
	}{
		{"1977 13/40 Nowhere", "month and day out of range"},
		{"1974 06/31 Somewhere", "June has 30 days"},
		{"1900 02/29 Leap", "1900 is not a leap year"},
		{"Abbey Road", "no date prefix"},
		{"74 06/26 Providence", "two-digit year"},
		{"1974 6/26 Providence", "single-digit month"},
		{"1974 06-26 Providence", "wrong separator"},
		{"1974 06/268 Providence", "trailing digit after day"},
		{"1899 12/31 Too Early", "year below range"},
		{"2100 01/01 Too Late", "year above range"},
		{"", "empty title"},
	}
	for _, c := range cases {
		if _, ok := ParseHeader(c.title); ok {
			t.Errorf("ParseHeader(%q) matched; want no match (%s)", c.title, c.reason)
		}
	}
}

func TestParseHeaderEdges(t *testing.T) {
	// Leap day in a real leap year.
	h, ok := ParseHeader("2000 02/29 Millennium Show")
	if !ok {
		t.Fatal("2000-02-29 is a valid date")
	}
	if h.ShowDate() != "2000-02-29" {
		t.Errorf("ShowDate() = %q", h.ShowDate())
	}

	// Date header with no venue text.
	h, ok = ParseHeader("1975 11/20")
	if !ok {
		t.Fatal("expected a match for a bare date")
	}
	if h.Venue != "" {
		t.Errorf("venue = %q, want empty", h.Venue)
	}

	// Surrounding whitespace in the venue is trimmed.
	h, ok = ParseHeader("1978 05/09   Boston Music Hall  ")
	if !ok {
		t.Fatal("expected a match")
	}
	if h.Venue != "Boston Music Hall" {
		t.Errorf("venue = %q", h.Venue)
	}
}

func TestMatch(t *testing.T) {
	if !Match("1974 06/26 Providence Civic Center") {
		t.Error("expected bootleg title to match")
	}
	if Match("Harvest") {
		t.Error("ordinary title matched")
	}
	if Match("1977 13/40 Nowhere") {
		t.Error("invalid date matched")
	}
}
