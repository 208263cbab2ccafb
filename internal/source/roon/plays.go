package roon

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/sydlexius/milkcrate/internal/catalog"
	"github.com/sydlexius/milkcrate/internal/source"
)

// PlaysSource imports the Roon play-history export, a JSON array of
// play events. Like the track list it has no stable per-row key, so
// the table is cleared and rebuilt on every run.
type PlaysSource struct {
	fileSource
	digital *catalog.DigitalService
}

type playRow struct {
	AlbumArtist  string `json:"album_artist"`
	Album        string `json:"album"`
	DiscNumber   int    `json:"disc_number"`
	TrackNumber  int    `json:"track_number"`
	Title        string `json:"title"`
	TrackArtists string `json:"track_artists"`
	Composers    string `json:"composers"`
	ExternalID   string `json:"external_id"`
	Source       string `json:"source"`
	PlayedAt     string `json:"played_at"`
}

func NewPlaysSource(path string, digital *catalog.DigitalService) *PlaysSource {
	return &PlaysSource{
		fileSource: fileSource{name: SourcePlayHistory, path: path},
		digital:    digital,
	}
}

func (s *PlaysSource) Fetch(ctx context.Context) ([]source.Record, error) {
	if s.path == "" {
		return nil, &source.ConfigError{Source: s.name, Reason: "export path not configured"}
	}
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, &source.ConfigError{Source: s.name, Reason: "export file does not exist: " + s.path}
	}
	if err != nil {
		return nil, &source.TransientError{Source: s.name, Op: "reading export file", Cause: err}
	}

	data = bytes.TrimPrefix(bytes.TrimSpace(data), utf8BOM)
	if len(data) == 0 {
		return nil, nil
	}

	var rows []playRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("%s: parsing export: %w", s.name, err)
	}

	records := make([]source.Record, 0, len(rows))
	for i := range rows {
		records = append(records, &rows[i])
	}
	return records, nil
}

// Reset clears play history ahead of the rebuild.
func (s *PlaysSource) Reset(ctx context.Context) error {
	if err := s.digital.DeleteAllPlays(ctx); err != nil {
		return &source.TransientError{Source: s.name, Op: "clearing play history", Cause: err}
	}
	return nil
}

func (s *PlaysSource) Apply(ctx context.Context, rec source.Record) error {
	row, ok := rec.(*playRow)
	if !ok {
		return fmt.Errorf("unexpected record type %T", rec)
	}
	if row.Title == "" {
		return &source.ValidationError{Source: s.name, Field: "title", Reason: "missing"}
	}

	play := catalog.PlayEvent{
		AlbumArtist:  row.AlbumArtist,
		Album:        row.Album,
		DiscNumber:   row.DiscNumber,
		TrackNumber:  row.TrackNumber,
		Title:        row.Title,
		TrackArtists: row.TrackArtists,
		Composers:    row.Composers,
		ExternalID:   row.ExternalID,
		Source:       row.Source,
		PlayedAt:     parsePlayedAt(row.PlayedAt),
	}
	if err := s.digital.InsertPlay(ctx, &play); err != nil {
		return &source.TransientError{Source: s.name, Op: "inserting play event", Cause: err}
	}
	return nil
}
