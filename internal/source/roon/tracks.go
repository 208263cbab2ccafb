package roon

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"

	"github.com/sydlexius/milkcrate/internal/catalog"
	"github.com/sydlexius/milkcrate/internal/source"
)

// TracksSource imports the Roon track list export. Track rows have no
// stable key in the export, so the table is cleared and rebuilt on
// every run.
type TracksSource struct {
	fileSource
	digital *catalog.DigitalService
}

type trackRecord struct {
	track catalog.DigitalTrack
	err   error
}

func NewTracksSource(path string, digital *catalog.DigitalService) *TracksSource {
	return &TracksSource{
		fileSource: fileSource{name: SourceTracks, path: path},
		digital:    digital,
	}
}

func (s *TracksSource) Fetch(ctx context.Context) ([]source.Record, error) {
	r, closer, err := s.openCSV()
	if err != nil {
		return nil, err
	}
	defer closer.Close() //nolint:errcheck

	header, err := r.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, &source.ConfigError{Source: s.name, Reason: "malformed export header: " + err.Error()}
	}
	idx := headerIndex(header)
	for _, col := range []string{"album artist", "album", "title"} {
		if _, ok := idx[col]; !ok {
			return nil, &source.ConfigError{Source: s.name, Reason: fmt.Sprintf("missing required column %q", col)}
		}
	}

	var records []source.Record
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		var parseErr *csv.ParseError
		if errors.As(err, &parseErr) {
			records = append(records, &trackRecord{err: err})
			continue
		}
		if err != nil {
			return nil, &source.TransientError{Source: s.name, Op: "reading export", Cause: err}
		}

		rec := &trackRecord{track: catalog.DigitalTrack{
			AlbumArtist:  field(row, idx, "album artist"),
			Album:        field(row, idx, "album"),
			DiscNumber:   fieldInt(row, idx, "disc#"),
			TrackNumber:  fieldInt(row, idx, "track#"),
			Title:        field(row, idx, "title"),
			TrackArtists: field(row, idx, "track artist(s)"),
			Composers:    field(row, idx, "composer(s)"),
			ExternalID:   field(row, idx, "external id"),
			Source:       field(row, idx, "source"),
			IsDuplicate:  fieldFlag(row, idx, "is dup?"),
			IsHidden:     fieldFlag(row, idx, "is hidden?"),
			Tags:         field(row, idx, "tags"),
		}}
		if rec.track.Title == "" && rec.track.Album == "" && rec.track.AlbumArtist == "" {
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

// Reset clears the track table ahead of the rebuild.
func (s *TracksSource) Reset(ctx context.Context) error {
	if err := s.digital.DeleteAllTracks(ctx); err != nil {
		return &source.TransientError{Source: s.name, Op: "clearing tracks", Cause: err}
	}
	return nil
}

func (s *TracksSource) Apply(ctx context.Context, rec source.Record) error {
	row, ok := rec.(*trackRecord)
	if !ok {
		return fmt.Errorf("unexpected record type %T", rec)
	}
	if row.err != nil {
		return &source.ValidationError{Source: s.name, Field: "row", Reason: row.err.Error()}
	}
	if row.track.Title == "" {
		return &source.ValidationError{Source: s.name, Field: "title", Reason: "missing"}
	}

	track := row.track
	if err := s.digital.InsertTrack(ctx, &track); err != nil {
		return &source.TransientError{Source: s.name, Op: "inserting track", Cause: err}
	}
	return nil
}
