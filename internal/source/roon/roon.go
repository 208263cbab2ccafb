// Package roon imports Roon library exports from local files: album,
// tag and track lists as CSV, play history as JSON. Each export is a
// full snapshot, so the sources are file-backed and the coordinator
// skips runs while the file on disk is unchanged.
package roon

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sydlexius/milkcrate/internal/source"
)

// Source names as registered with the sync coordinator.
const (
	SourceAlbums      = "roon_albums"
	SourceTags        = "roon_tags"
	SourceTracks      = "roon_tracks"
	SourcePlayHistory = "roon_play_history"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// fileSource carries the bits every export-file source shares.
type fileSource struct {
	name string
	path string
}

func (f *fileSource) Name() string {
	return f.name
}

// ModTime reports when the export file last changed.
func (f *fileSource) ModTime() (time.Time, error) {
	if f.path == "" {
		return time.Time{}, &source.ConfigError{Source: f.name, Reason: "export path not configured"}
	}
	info, err := os.Stat(f.path)
	if os.IsNotExist(err) {
		return time.Time{}, &source.ConfigError{Source: f.name, Reason: "export file does not exist: " + f.path}
	}
	if err != nil {
		return time.Time{}, &source.TransientError{Source: f.name, Op: "checking export file", Cause: err}
	}
	return info.ModTime(), nil
}

// openCSV opens the export and returns a reader positioned past any
// UTF-8 byte order mark. Roon writes exports with a BOM on some
// platforms.
func (f *fileSource) openCSV() (*csv.Reader, io.Closer, error) {
	if f.path == "" {
		return nil, nil, &source.ConfigError{Source: f.name, Reason: "export path not configured"}
	}
	file, err := os.Open(f.path)
	if os.IsNotExist(err) {
		return nil, nil, &source.ConfigError{Source: f.name, Reason: "export file does not exist: " + f.path}
	}
	if err != nil {
		return nil, nil, &source.TransientError{Source: f.name, Op: "opening export file", Cause: err}
	}

	br := bufio.NewReader(file)
	if head, _ := br.Peek(len(utf8BOM)); bytes.Equal(head, utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
	}

	r := csv.NewReader(br)
	r.FieldsPerRecord = -1
	return r, file, nil
}

// headerIndex maps lowercased, trimmed column names to positions.
func headerIndex(header []string) map[string]int {
	idx := make(map[string]int, len(header))
	for i, col := range header {
		idx[strings.ToLower(strings.TrimSpace(col))] = i
	}
	return idx
}

// field returns the trimmed cell for a named column, or empty when the
// column is absent or the row is short.
func field(row []string, idx map[string]int, name string) string {
	i, ok := idx[name]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// fieldInt parses a numeric cell, tolerating blanks and junk as zero.
func fieldInt(row []string, idx map[string]int, name string) int {
	n, err := strconv.Atoi(field(row, idx, name))
	if err != nil {
		return 0
	}
	return n
}

// fieldFlag parses a yes/no style cell.
func fieldFlag(row []string, idx map[string]int, name string) bool {
	switch strings.ToLower(field(row, idx, name)) {
	case "yes", "true", "1", "y":
		return true
	}
	return false
}

// parsePlayedAt accepts the timestamp shapes seen in Roon exports.
func parsePlayedAt(s string) *time.Time {
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}
