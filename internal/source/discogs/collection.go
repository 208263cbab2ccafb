package discogs

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sydlexius/milkcrate/internal/catalog"
	"github.com/sydlexius/milkcrate/internal/source"
)

// Source names as registered with the sync coordinator.
const (
	SourceCollection = "discogs_collection"
	SourceWantlist   = "discogs_wantlist"
)

// CollectionSource syncs the user's collection folder. Fetch assembles
// complete records up front, including per-release marketplace stats
// and tracklists, so transient API failures surface during fetch where
// the coordinator's retry policy applies. A missing or failed
// per-release detail downgrades that record rather than failing the
// run.
type CollectionSource struct {
	client   *Client
	username string
	physical *catalog.PhysicalService
	logger   *slog.Logger

	keys []int64
}

type collectionRecord struct {
	input  catalog.RecordInput
	stats  *MarketplaceStats
	tracks []catalog.PhysicalTrack
	// detailOK distinguishes a fetched-but-empty tracklist, which
	// replaces stored tracks, from a skipped fetch, which keeps them.
	detailOK bool
}

func NewCollectionSource(client *Client, username string, physical *catalog.PhysicalService, logger *slog.Logger) *CollectionSource {
	return &CollectionSource{
		client:   client,
		username: username,
		physical: physical,
		logger:   logger.With(slog.String("source", SourceCollection)),
	}
}

func (s *CollectionSource) Name() string { return SourceCollection }

func (s *CollectionSource) Fetch(ctx context.Context) ([]source.Record, error) {
	if s.username == "" {
		return nil, &source.ConfigError{Source: SourceCollection, Reason: "username not configured"}
	}
	releases, err := s.client.CollectionReleases(ctx, s.username)
	if err != nil {
		return nil, err
	}

	s.keys = nil
	records := make([]source.Record, 0, len(releases))
	for i := range releases {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rel := &releases[i]
		if rel.ID == 0 {
			continue
		}
		s.keys = append(s.keys, rel.ID)

		rec := &collectionRecord{input: recordInput(rel)}

		stats, err := s.client.MarketplaceStats(ctx, rel.ID)
		switch {
		case err == nil:
			rec.stats = stats
		case source.IsConfig(err):
			return nil, err
		case source.IsNotFound(err):
			s.logger.Debug("no marketplace stats", slog.Int64("release_id", rel.ID))
		default:
			s.logger.Warn("marketplace stats unavailable",
				slog.Int64("release_id", rel.ID), slog.String("error", err.Error()))
		}

		detail, err := s.client.Release(ctx, rel.ID)
		switch {
		case err == nil:
			rec.tracks = trackRows(rel.ID, detail.Tracklist)
			rec.detailOK = true
		case source.IsConfig(err):
			return nil, err
		case source.IsNotFound(err):
			s.logger.Debug("release detail not found", slog.Int64("release_id", rel.ID))
		default:
			s.logger.Warn("release detail unavailable",
				slog.Int64("release_id", rel.ID), slog.String("error", err.Error()))
		}

		records = append(records, rec)
	}
	return records, nil
}

func (s *CollectionSource) Apply(ctx context.Context, rec source.Record) error {
	row, ok := rec.(*collectionRecord)
	if !ok {
		return fmt.Errorf("unexpected record type %T", rec)
	}

	if err := s.physical.UpsertRecord(ctx, row.input); err != nil {
		return &source.TransientError{Source: SourceCollection, Op: "upserting record", Cause: err}
	}
	if row.stats != nil {
		err := s.physical.UpdateMarketplaceStats(ctx, row.input.ReleaseID, row.stats.NumForSale, row.stats.LowestPrice)
		if err != nil {
			return &source.TransientError{Source: SourceCollection, Op: "updating marketplace stats", Cause: err}
		}
	}
	if row.detailOK {
		stored, err := s.physical.GetRecordByReleaseID(ctx, row.input.ReleaseID)
		if err != nil {
			return &source.TransientError{Source: SourceCollection, Op: "loading record", Cause: err}
		}
		if stored == nil {
			return fmt.Errorf("record for release %d vanished after upsert", row.input.ReleaseID)
		}
		if err := s.physical.ReplaceTracksForRecord(ctx, stored.ID, row.input.ReleaseID, row.tracks); err != nil {
			return &source.TransientError{Source: SourceCollection, Op: "replacing tracks", Cause: err}
		}
	}
	return nil
}

// Prune removes records absent from the last fetched snapshot.
func (s *CollectionSource) Prune(ctx context.Context) (int, error) {
	n, err := s.physical.PruneRecords(ctx, s.keys)
	if err != nil {
		return 0, &source.TransientError{Source: SourceCollection, Op: "pruning records", Cause: err}
	}
	return n, nil
}

func recordInput(rel *CollectionRelease) catalog.RecordInput {
	in := catalog.RecordInput{
		ReleaseID:  rel.ID,
		InstanceID: rel.InstanceID,
		Artist:     primaryArtist(rel.BasicInformation.Artists),
		Title:      releaseTitle(rel.BasicInformation.Title),
		Year:       rel.BasicInformation.Year,
		DateAdded:  rel.DateAdded,
		Rating:     rel.Rating,
		FolderID:   rel.FolderID,
		ThumbURL:   rel.BasicInformation.Thumb,
		CoverURL:   rel.BasicInformation.CoverImage,
	}
	if len(rel.BasicInformation.Labels) > 0 {
		in.Label = rel.BasicInformation.Labels[0].Name
	}
	if len(rel.BasicInformation.Formats) > 0 {
		in.Format = rel.BasicInformation.Formats[0].Name
	}
	for _, note := range rel.Notes {
		switch note.FieldID {
		case 1:
			in.MediaCondition = note.Value
		case 2:
			in.SleeveCondition = note.Value
		}
	}
	return in
}

func trackRows(releaseID int64, entries []TrackEntry) []catalog.PhysicalTrack {
	var tracks []catalog.PhysicalTrack
	for _, e := range entries {
		if e.Title == "" {
			continue
		}
		tracks = append(tracks, catalog.PhysicalTrack{
			ReleaseID:    releaseID,
			Position:     e.Position,
			Title:        e.Title,
			Duration:     e.Duration,
			Artists:      joinArtists(e.Artists),
			ExtraArtists: joinArtists(e.ExtraArtists),
		})
	}
	return tracks
}

func primaryArtist(artists []ArtistRef) string {
	if len(artists) == 0 || artists[0].Name == "" {
		return "Unknown"
	}
	return artists[0].Name
}

func releaseTitle(title string) string {
	if title == "" {
		return "Unknown"
	}
	return title
}

func joinArtists(artists []ArtistRef) string {
	names := make([]string, 0, len(artists))
	for _, a := range artists {
		if a.Name != "" {
			names = append(names, a.Name)
		}
	}
	return strings.Join(names, ", ")
}
