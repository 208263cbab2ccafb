package discogs

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sydlexius/milkcrate/internal/catalog"
	"github.com/sydlexius/milkcrate/internal/source"
)

// WantlistSource syncs the user's wantlist. Marketplace stats are
// fetched per want during Fetch so availability and pricing land in
// the same snapshot.
type WantlistSource struct {
	client   *Client
	username string
	physical *catalog.PhysicalService
	logger   *slog.Logger

	keys []int64
}

type wantRecord struct {
	input catalog.WantlistInput
}

func NewWantlistSource(client *Client, username string, physical *catalog.PhysicalService, logger *slog.Logger) *WantlistSource {
	return &WantlistSource{
		client:   client,
		username: username,
		physical: physical,
		logger:   logger.With(slog.String("source", SourceWantlist)),
	}
}

func (s *WantlistSource) Name() string { return SourceWantlist }

func (s *WantlistSource) Fetch(ctx context.Context) ([]source.Record, error) {
	if s.username == "" {
		return nil, &source.ConfigError{Source: SourceWantlist, Reason: "username not configured"}
	}
	wants, err := s.client.Wants(ctx, s.username)
	if err != nil {
		return nil, err
	}

	s.keys = nil
	records := make([]source.Record, 0, len(wants))
	for i := range wants {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		w := &wants[i]
		if w.ID == 0 {
			continue
		}
		s.keys = append(s.keys, w.ID)

		var stats *MarketplaceStats
		got, err := s.client.MarketplaceStats(ctx, w.ID)
		switch {
		case err == nil:
			stats = got
		case source.IsConfig(err):
			return nil, err
		case source.IsNotFound(err):
			s.logger.Debug("no marketplace stats", slog.Int64("release_id", w.ID))
		default:
			s.logger.Warn("marketplace stats unavailable",
				slog.Int64("release_id", w.ID), slog.String("error", err.Error()))
		}

		records = append(records, &wantRecord{input: wantInput(w, stats)})
	}
	return records, nil
}

func (s *WantlistSource) Apply(ctx context.Context, rec source.Record) error {
	row, ok := rec.(*wantRecord)
	if !ok {
		return fmt.Errorf("unexpected record type %T", rec)
	}
	if err := s.physical.UpsertWantlistEntry(ctx, row.input); err != nil {
		return &source.TransientError{Source: SourceWantlist, Op: "upserting wantlist entry", Cause: err}
	}
	return nil
}

// Prune removes wantlist entries absent from the last fetched
// snapshot.
func (s *WantlistSource) Prune(ctx context.Context) (int, error) {
	n, err := s.physical.PruneWantlist(ctx, s.keys)
	if err != nil {
		return 0, &source.TransientError{Source: SourceWantlist, Op: "pruning wantlist", Cause: err}
	}
	return n, nil
}

func wantInput(w *Want, stats *MarketplaceStats) catalog.WantlistInput {
	in := catalog.WantlistInput{
		ReleaseID:      w.ID,
		Artist:         primaryArtist(w.BasicInformation.Artists),
		Title:          releaseTitle(w.BasicInformation.Title),
		Year:           w.BasicInformation.Year,
		DateAdded:      w.DateAdded,
		Notes:          w.Notes,
		MarketplaceURL: fmt.Sprintf("https://www.discogs.com/sell/release/%d", w.ID),
		ThumbURL:       w.BasicInformation.Thumb,
		CoverURL:       w.BasicInformation.CoverImage,
	}
	if len(w.BasicInformation.Labels) > 0 {
		in.Label = w.BasicInformation.Labels[0].Name
	}
	if len(w.BasicInformation.Formats) > 0 {
		in.Format = w.BasicInformation.Formats[0].Name
	}
	if stats != nil {
		in.NumForSale = stats.NumForSale
		in.LowestPrice = stats.LowestPrice
	}
	return in
}
