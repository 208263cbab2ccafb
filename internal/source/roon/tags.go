package roon

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"

	"github.com/sydlexius/milkcrate/internal/catalog"
	"github.com/sydlexius/milkcrate/internal/match"
	"github.com/sydlexius/milkcrate/internal/source"
)

// TagsSource imports the Roon tag export, a flat Tag,Album pairing.
// The run clears every physical marker first and re-derives them from
// the snapshot, so markers removed in Roon disappear here too. Tags
// that are not physical markers are ignored.
type TagsSource struct {
	fileSource
	digital *catalog.DigitalService
	policy  *match.Policy
}

type tagRecord struct {
	tag   string
	album string
	err   error
}

func NewTagsSource(path string, digital *catalog.DigitalService, policy *match.Policy) *TagsSource {
	return &TagsSource{
		fileSource: fileSource{name: SourceTags, path: path},
		digital:    digital,
		policy:     policy,
	}
}

func (s *TagsSource) Fetch(ctx context.Context) ([]source.Record, error) {
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
	for _, col := range []string{"tag", "album"} {
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
			records = append(records, &tagRecord{err: err})
			continue
		}
		if err != nil {
			return nil, &source.TransientError{Source: s.name, Op: "reading export", Cause: err}
		}

		rec := &tagRecord{
			tag:   field(row, idx, "tag"),
			album: field(row, idx, "album"),
		}
		if rec.tag == "" && rec.album == "" {
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

// Reset clears all physical markers before the snapshot is re-applied.
func (s *TagsSource) Reset(ctx context.Context) error {
	if err := s.digital.ClearPhysicalTags(ctx); err != nil {
		return &source.TransientError{Source: s.name, Op: "clearing markers", Cause: err}
	}
	return nil
}

func (s *TagsSource) Apply(ctx context.Context, rec source.Record) error {
	row, ok := rec.(*tagRecord)
	if !ok {
		return fmt.Errorf("unexpected record type %T", rec)
	}
	if row.err != nil {
		return &source.ValidationError{Source: s.name, Field: "row", Reason: row.err.Error()}
	}
	switch {
	case row.tag == "":
		return &source.ValidationError{Source: s.name, Field: "tag", Reason: "missing"}
	case row.album == "":
		return &source.ValidationError{Source: s.name, Field: "album", Reason: "missing"}
	}

	code, ok := s.policy.Code(row.tag)
	if !ok {
		return nil
	}
	if _, err := s.digital.UpgradePhysicalTag(ctx, row.album, code, s.policy); err != nil {
		return &source.TransientError{Source: s.name, Op: "applying marker", Cause: err}
	}
	return nil
}
