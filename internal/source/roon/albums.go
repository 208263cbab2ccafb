package roon

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/sydlexius/milkcrate/internal/catalog"
	"github.com/sydlexius/milkcrate/internal/match"
	"github.com/sydlexius/milkcrate/internal/source"
)

// AlbumsSource imports the Roon album list export. Each run replaces
// the digital album catalog with the snapshot in the file: albums are
// upserted by item key and rows missing from the export are pruned
// after a clean run. When the export carries a Tags column the
// physical-marker policy runs inline per album.
type AlbumsSource struct {
	fileSource
	digital *catalog.DigitalService
	policy  *match.Policy

	keys    []string
	hasTags bool
}

type albumRecord struct {
	itemKey  string
	title    string
	artist   string
	imageKey string
	tags     []string
	err      error
}

func NewAlbumsSource(path string, digital *catalog.DigitalService, policy *match.Policy) *AlbumsSource {
	return &AlbumsSource{
		fileSource: fileSource{name: SourceAlbums, path: path},
		digital:    digital,
		policy:     policy,
	}
}

func (s *AlbumsSource) Fetch(ctx context.Context) ([]source.Record, error) {
	r, closer, err := s.openCSV()
	if err != nil {
		return nil, err
	}
	defer closer.Close() //nolint:errcheck

	s.keys = nil
	s.hasTags = false

	header, err := r.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, &source.ConfigError{Source: s.name, Reason: "malformed export header: " + err.Error()}
	}
	idx := headerIndex(header)
	for _, col := range []string{"item key", "album", "album artist"} {
		if _, ok := idx[col]; !ok {
			return nil, &source.ConfigError{Source: s.name, Reason: fmt.Sprintf("missing required column %q", col)}
		}
	}
	_, s.hasTags = idx["tags"]

	var records []source.Record
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		var parseErr *csv.ParseError
		if errors.As(err, &parseErr) {
			records = append(records, &albumRecord{err: err})
			continue
		}
		if err != nil {
			return nil, &source.TransientError{Source: s.name, Op: "reading export", Cause: err}
		}

		rec := &albumRecord{
			itemKey:  field(row, idx, "item key"),
			title:    field(row, idx, "album"),
			artist:   field(row, idx, "album artist"),
			imageKey: field(row, idx, "image key"),
			tags:     splitTags(field(row, idx, "tags")),
		}
		if rec.itemKey == "" && rec.title == "" && rec.artist == "" {
			continue
		}
		if rec.itemKey != "" {
			s.keys = append(s.keys, rec.itemKey)
		}
		records = append(records, rec)
	}
	return records, nil
}

func (s *AlbumsSource) Apply(ctx context.Context, rec source.Record) error {
	row, ok := rec.(*albumRecord)
	if !ok {
		return fmt.Errorf("unexpected record type %T", rec)
	}
	if row.err != nil {
		return &source.ValidationError{Source: s.name, Field: "row", Reason: row.err.Error()}
	}
	switch {
	case row.itemKey == "":
		return &source.ValidationError{Source: s.name, Field: "item_key", Reason: "missing"}
	case row.title == "":
		return &source.ValidationError{Source: s.name, Field: "album", Reason: "missing"}
	case row.artist == "":
		return &source.ValidationError{Source: s.name, Field: "album_artist", Reason: "missing"}
	}

	err := s.digital.UpsertAlbum(ctx, catalog.AlbumInput{
		ItemKey:  row.itemKey,
		Title:    row.title,
		Artist:   row.artist,
		ImageKey: row.imageKey,
	})
	if err != nil {
		return &source.TransientError{Source: s.name, Op: "upserting album", Cause: err}
	}

	if s.hasTags {
		code, _ := s.policy.Resolve(row.tags)
		if err := s.digital.SetAlbumFlag(ctx, row.itemKey, code); err != nil {
			return &source.TransientError{Source: s.name, Op: "flagging album", Cause: err}
		}
	}
	return nil
}

// Prune removes albums absent from the last fetched snapshot.
func (s *AlbumsSource) Prune(ctx context.Context) (int, error) {
	n, err := s.digital.PruneAlbums(ctx, s.keys)
	if err != nil {
		return 0, &source.TransientError{Source: s.name, Op: "pruning albums", Cause: err}
	}
	return n, nil
}

func splitTags(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ";")
	tags := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			tags = append(tags, p)
		}
	}
	return tags
}
