// Package stats serves aggregate collection statistics with a short
// read-side cache so dashboard polling stays cheap.
package stats

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/sydlexius/milkcrate/internal/bootleg"
)

const (
	defaultTTL = time.Minute

	overviewKey = "overview"
)

// Overview is the aggregate snapshot across both collections.
type Overview struct {
	DigitalAlbums      int     `json:"digital_albums"`
	DigitalTracks      int     `json:"digital_tracks"`
	PlayEvents         int     `json:"play_events"`
	PhysicalRecords    int     `json:"physical_records"`
	WantlistEntries    int     `json:"wantlist_entries"`
	WantlistValue      float64 `json:"wantlist_value"`
	ListeningEntries   int     `json:"listening_entries"`
	AlbumsInBoth       int     `json:"albums_in_both"`
	PhysicalDuplicates int     `json:"physical_duplicates"`
	Bootlegs           int     `json:"bootlegs"`
}

// PlayCount is one album's play tally.
type PlayCount struct {
	Artist string `json:"artist"`
	Album  string `json:"album"`
	Plays  int    `json:"plays"`
}

// Service computes aggregates over the catalog.
type Service struct {
	db    *sql.DB
	cache *cache.Cache
}

// NewService creates a stats service.
func NewService(db *sql.DB) *Service {
	return &Service{
		db:    db,
		cache: cache.New(defaultTTL, 2*defaultTTL),
	}
}

// Invalidate drops every cached aggregate. Called after a sync run so
// the next read reflects the fresh import.
func (s *Service) Invalidate() {
	s.cache.Flush()
}

// Overview returns the collection totals, the cross-collection overlap
// and the wantlist value.
func (s *Service) Overview(ctx context.Context) (Overview, error) {
	if cached, found := s.cache.Get(overviewKey); found {
		return cached.(Overview), nil
	}

	var o Overview
	err := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM digital_albums),
			(SELECT COUNT(*) FROM digital_tracks),
			(SELECT COUNT(*) FROM play_history),
			(SELECT COUNT(*) FROM physical_records),
			(SELECT COUNT(*) FROM wantlist_entries),
			(SELECT COALESCE(SUM(lowest_price), 0) FROM wantlist_entries),
			(SELECT COUNT(*) FROM listening_history),
			(SELECT COUNT(*) FROM digital_albums d
				INNER JOIN physical_records p ON d.match_key = p.match_key),
			(SELECT COUNT(*) FROM digital_albums WHERE is_physical_duplicate = 1)`).
		Scan(&o.DigitalAlbums, &o.DigitalTracks, &o.PlayEvents,
			&o.PhysicalRecords, &o.WantlistEntries, &o.WantlistValue,
			&o.ListeningEntries, &o.AlbumsInBoth, &o.PhysicalDuplicates)
	if err != nil {
		return Overview{}, fmt.Errorf("computing overview: %w", err)
	}

	bootlegs, err := s.bootlegCount(ctx)
	if err != nil {
		return Overview{}, err
	}
	o.Bootlegs = bootlegs

	s.cache.Set(overviewKey, o, cache.DefaultExpiration)
	return o, nil
}

// PlayCounts returns the most played albums, highest first. limit is
// clamped to 1..200 with a default of 50.
func (s *Service) PlayCounts(ctx context.Context, limit int) ([]PlayCount, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}

	key := fmt.Sprintf("play_counts:%d", limit)
	if cached, found := s.cache.Get(key); found {
		return cached.([]PlayCount), nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT album_artist, album, COUNT(*) AS plays
		FROM play_history
		GROUP BY album_artist, album
		ORDER BY plays DESC, album_artist, album
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("computing play counts: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var counts []PlayCount
	for rows.Next() {
		var pc PlayCount
		if err := rows.Scan(&pc.Artist, &pc.Album, &pc.Plays); err != nil {
			return nil, fmt.Errorf("scanning play count row: %w", err)
		}
		counts = append(counts, pc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	s.cache.Set(key, counts, cache.DefaultExpiration)
	return counts, nil
}

// bootlegCount counts digital albums whose title carries a valid show
// date. The GLOB narrows the scan; ParseHeader validation happens here
// because GLOB cannot reject impossible dates.
func (s *Service) bootlegCount(ctx context.Context) (int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT title FROM digital_albums WHERE title GLOB ?`, bootleg.TitleGlob)
	if err != nil {
		return 0, fmt.Errorf("counting bootlegs: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	n := 0
	for rows.Next() {
		var title string
		if err := rows.Scan(&title); err != nil {
			return 0, fmt.Errorf("scanning bootleg title: %w", err)
		}
		if bootleg.Match(title) {
			n++
		}
	}
	return n, rows.Err()
}
