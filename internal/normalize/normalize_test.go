package normalize

import (
	"reflect"
	"strings"
	"testing"
)

func TestText(t *testing.T) {
	cases := []struct {
		input string
		want  string
	}{
		{"Abbey Road", "abbey road"},
		{"abbey road", "abbey road"},
		{"What's Going On?", "whats going on"},
		{"Björk", "bjork"},
		{"Beyoncé", "beyonce"},
		{"The Beatles", "beatles"},
		{"Rage Against the Machine", "rage against the machine"},
		{"AC/DC", "acdc"},
		{"Guns N' Roses", "guns n roses"},
		{"  extra   spaces  ", "extra spaces"},
		{"...Like Clockwork", "like clockwork"},
		{"1974 06/26 Providence", "1974 0626 providence"},
		{"", ""},
		{"!!!", ""},
		{"The", "the"},
	}
	for _, c := range cases {
		got := Text(c.input)
		if got != c.want {
			t.Errorf("Text(%q) = %q, want %q", c.input, got, c.want)
		}
	}
}

func TestTextIdempotent(t *testing.T) {
	inputs := []string{
		"The Beatles",
		"The The",
		"Sgt. Pepper's Lonely Hearts Club Band",
		"Motörhead",
		"  The   Velvet  Underground & Nico ",
		"the the band",
		"",
	}
	for _, s := range inputs {
		once := Text(s)
		twice := Text(once)
		if once != twice {
			t.Errorf("Text not idempotent for %q: first %q, second %q", s, once, twice)
		}
	}
}

func TestTextCannotProduceSeparator(t *testing.T) {
	inputs := []string{"a - b", "A-B", "x -- y", "dash - heavy - title"}
	for _, s := range inputs {
		if got := Text(s); strings.Contains(got, KeySeparator) {
			t.Errorf("Text(%q) = %q contains the key separator", s, got)
		}
	}
}

func TestMatchKey(t *testing.T) {
	key := MatchKey("Neil Young", "Tonight's the Night")
	if key != "neil young - tonights the night" {
		t.Errorf("unexpected match key %q", key)
	}

	// Case, punctuation, and diacritics must not affect the key.
	variants := []struct {
		artist string
		album  string
	}{
		{"NEIL YOUNG", "Tonight's The Night"},
		{"Neil Young!", "tonights the night"},
		{"Néil Yoüng", "Tonight’s the Night"},
	}
	for _, v := range variants {
		if got := MatchKey(v.artist, v.album); got != key {
			t.Errorf("MatchKey(%q, %q) = %q, want %q", v.artist, v.album, got, key)
		}
	}

	if MatchKey("Neil Young", "Harvest") == key {
		t.Error("distinct albums produced equal match keys")
	}
}

func TestTokens(t *testing.T) {
	cases := []struct {
		input string
		want  []string
	}{
		{"Providence Civic Center", []string{"providence", "civic", "center"}},
		{"The Rise and Fall of Ziggy Stardust", []string{"rise", "fall", "ziggy", "stardust"}},
		{"Kid A", []string{"kid"}},
		{"", nil},
		{"a an of", nil},
	}
	for _, c := range cases {
		got := Tokens(c.input)
		if !reflect.DeepEqual(got, c.want) {
			t.Errorf("Tokens(%q) = %v, want %v", c.input, got, c.want)
		}
	}
}
