package main

import (
	"bytes"
	"strings"
	"testing"
)

func TestRenderTablePlainWhenPiped(t *testing.T) {
	var buf bytes.Buffer
	out := renderTable(&buf, []string{"Source", "Records"}, [][]string{
		{"roon_albums", "42"},
		{"discogs_collection", "7"},
	}, 2)
	if strings.Contains(out, "╭") {
		t.Errorf("expected plain output for a non-terminal writer, got %q", out)
	}
	for _, want := range []string{"Source", "roon_albums", "42", "discogs_collection"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q: %q", want, out)
		}
	}
}

func TestFormatBytes(t *testing.T) {
	cases := []struct {
		in   int64
		want string
	}{
		{512, "512 B"},
		{2048, "2.0 KB"},
		{5 * 1024 * 1024, "5.0 MB"},
	}
	for _, c := range cases {
		if got := formatBytes(c.in); got != c.want {
			t.Errorf("formatBytes(%d) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestFormatDuration(t *testing.T) {
	cases := []struct {
		ms   int64
		want string
	}{
		{250, "250ms"},
		{1500, "1.5s"},
		{61000, "1m1s"},
	}
	for _, c := range cases {
		if got := formatDuration(c.ms); got != c.want {
			t.Errorf("formatDuration(%d) = %q, want %q", c.ms, got, c.want)
		}
	}
}
