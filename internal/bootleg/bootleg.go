// Package bootleg recognizes live-recording album titles that carry a
// leading "YYYY MM/DD" show-date header, e.g.
// "1974 06/26 Providence Civic Center".
package bootleg

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Header is the show metadata extracted from a date-prefixed title.
type Header struct {
	Date  time.Time
	Venue string
}

// ShowDate returns the show date in ISO form (2006-01-02).
func (h Header) ShowDate() string {
	return h.Date.Format("2006-01-02")
}

// headerPattern requires a word boundary after the day so that titles
// like "1974 06/268 ..." are not mistaken for show dates.
var headerPattern = regexp.MustCompile(`^(\d{4}) (\d{2})/(\d{2})\b\s*(.*)$`)

// TitleGlob is a SQLite GLOB pre-filter for date-prefixed titles. It
// is wider than ParseHeader (it accepts impossible dates), so rows it
// matches still need Match before they count as bootlegs.
const TitleGlob = `[0-9][0-9][0-9][0-9] [0-9][0-9]/[0-9][0-9]*`

// Years outside this range are treated as title text, not show dates.
const (
	minYear = 1900
	maxYear = 2099
)

// ParseHeader extracts the show date and venue from a bootleg-style
// title. Titles without the pattern, or whose components do not form a
// real calendar date, report ok=false; that is an expected outcome for
// ordinary album titles, never an error.
func ParseHeader(title string) (Header, bool) {
	m := headerPattern.FindStringSubmatch(title)
	if m == nil {
		return Header{}, false
	}

	year, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	day, _ := strconv.Atoi(m[3])
	if year < minYear || year > maxYear || month < 1 || month > 12 || day < 1 || day > 31 {
		return Header{}, false
	}

	date := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	// time.Date normalizes overflow (June 31 becomes July 1); any shift
	// means the components were not a real date.
	if date.Year() != year || date.Month() != time.Month(month) || date.Day() != day {
		return Header{}, false
	}

	return Header{Date: date, Venue: strings.TrimSpace(m[4])}, true
}

// Match reports whether the title carries a valid show-date header.
func Match(title string) bool {
	_, ok := ParseHeader(title)
	return ok
}
