package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sydlexius/milkcrate/internal/bootleg"
	"github.com/sydlexius/milkcrate/internal/match"
)

// liveShowColumns is the ordered list of columns for SELECT queries.
const liveShowColumns = `id, digital_album_id, physical_record_id, artist,
	show_date, venue, bootleg_title, matched_title, confidence,
	created_at, updated_at`

// RebuildResult summarizes one pass of live-show matching.
type RebuildResult struct {
	Bootlegs  int `json:"bootlegs"`
	Exact     int `json:"exact"`
	Partial   int `json:"partial"`
	Manual    int `json:"manual"`
	Unmatched int `json:"unmatched"`
}

// LiveShowService links live recordings in the digital library to the
// official releases they correspond to.
type LiveShowService struct {
	db         *sql.DB
	classifier *match.Classifier
}

// NewLiveShowService creates a live-show matching service.
func NewLiveShowService(db *sql.DB, classifier *match.Classifier) *LiveShowService {
	return &LiveShowService{db: db, classifier: classifier}
}

// Rebuild rescans the digital library for live recordings, classifies
// each against same-artist official releases and refreshes the match
// table. Rows the user assigned manually are left exactly as they are.
// Unmatched recordings keep a row with empty confidence so they show
// up for review.
func (s *LiveShowService) Rebuild(ctx context.Context) (RebuildResult, error) {
	var result RebuildResult

	albums, err := s.bootlegAlbums(ctx)
	if err != nil {
		return result, err
	}
	manual, err := s.manualAlbumIDs(ctx)
	if err != nil {
		return result, err
	}

	candidates := make(map[string][]match.Candidate)
	keep := make([]any, 0, len(albums))

	for _, a := range albums {
		header, ok := bootleg.ParseHeader(a.Title)
		if !ok {
			continue
		}
		result.Bootlegs++
		keep = append(keep, a.ID)

		if manual[a.ID] {
			result.Manual++
			continue
		}

		cands, ok := candidates[a.ArtistNorm]
		if !ok {
			cands, err = s.candidatesForArtist(ctx, a.ArtistNorm)
			if err != nil {
				return result, err
			}
			candidates[a.ArtistNorm] = cands
		}

		var physicalID, matchedTitle string
		confidence := match.ConfidenceNone
		if cls, matched := s.classifier.Classify(header.Venue, cands); matched {
			confidence = cls.Confidence
			physicalID = cls.Candidate.PhysicalRecordID
			matchedTitle = cls.Candidate.Title
			switch cls.Confidence {
			case match.ConfidenceExact:
				result.Exact++
			case match.ConfidencePartial:
				result.Partial++
			}
		} else {
			result.Unmatched++
		}

		if err := s.upsertMatch(ctx, a, header, physicalID, matchedTitle, confidence); err != nil {
			return result, err
		}
	}

	// Drop stale automatic rows: orphans from deleted albums and rows
	// whose album title no longer parses as a live recording.
	query := `DELETE FROM live_show_matches WHERE confidence <> ?`
	args := []any{match.ConfidenceManual}
	if len(keep) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(keep)), ",")
		query += ` AND (digital_album_id IS NULL OR digital_album_id NOT IN (` + placeholders + `))` //nolint:gosec // G202: placeholders only
		args = append(args, keep...)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return result, fmt.Errorf("removing stale live-show matches: %w", err)
	}

	return result, nil
}

// List returns live-show matches, newest show first, optionally
// filtered by artist or confidence.
func (s *LiveShowService) List(ctx context.Context, artist, confidence string) ([]LiveShowMatch, error) {
	var conditions []string
	var args []any
	if artist != "" {
		conditions = append(conditions, "artist = ?")
		args = append(args, artist)
	}
	if confidence != "" {
		conditions = append(conditions, "confidence = ?")
		args = append(args, confidence)
	}
	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+liveShowColumns+` FROM live_show_matches`+where+` ORDER BY show_date DESC`, args...)
	if err != nil {
		return nil, fmt.Errorf("listing live-show matches: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var matches []LiveShowMatch
	for rows.Next() {
		m, err := scanLiveShow(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning live-show row: %w", err)
		}
		matches = append(matches, *m)
	}
	return matches, rows.Err()
}

// Get retrieves a live-show match by primary key.
func (s *LiveShowService) Get(ctx context.Context, id string) (*LiveShowMatch, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+liveShowColumns+` FROM live_show_matches WHERE id = ?`, id)
	m, err := scanLiveShow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("live-show match not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("getting live-show match: %w", err)
	}
	return m, nil
}

// SetManual pins a match to a user-chosen release. When a physical
// record is given and no title, the record's title is used. Manual
// matches survive every rebuild until deleted.
func (s *LiveShowService) SetManual(ctx context.Context, id, physicalRecordID, matchedTitle string) error {
	if physicalRecordID == "" && matchedTitle == "" {
		return fmt.Errorf("physical record id or matched title is required")
	}
	if physicalRecordID != "" && matchedTitle == "" {
		err := s.db.QueryRowContext(ctx,
			`SELECT title FROM physical_records WHERE id = ?`, physicalRecordID).Scan(&matchedTitle)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("physical record not found: %s", physicalRecordID)
		}
		if err != nil {
			return fmt.Errorf("resolving matched title: %w", err)
		}
	}

	now := time.Now().UTC().Format(time.RFC3339)
	result, err := s.db.ExecContext(ctx, `
		UPDATE live_show_matches
		SET physical_record_id = ?, matched_title = ?, confidence = ?, updated_at = ?
		WHERE id = ?
	`, nullableString(physicalRecordID), matchedTitle, match.ConfidenceManual, now, id)
	if err != nil {
		return fmt.Errorf("setting manual match: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("live-show match not found: %s", id)
	}
	return nil
}

// Delete removes a match by ID. Deleting a manual row releases the
// recording back to automatic matching on the next rebuild.
func (s *LiveShowService) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM live_show_matches WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting live-show match: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("live-show match not found: %s", id)
	}
	return nil
}

type bootlegAlbum struct {
	ID         string
	Title      string
	Artist     string
	ArtistNorm string
}

func (s *LiveShowService) bootlegAlbums(ctx context.Context) ([]bootlegAlbum, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, artist, artist_norm FROM digital_albums
		WHERE title GLOB ? ORDER BY artist, title
	`, bootlegTitleGlob)
	if err != nil {
		return nil, fmt.Errorf("finding live recordings: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var albums []bootlegAlbum
	for rows.Next() {
		var a bootlegAlbum
		if err := rows.Scan(&a.ID, &a.Title, &a.Artist, &a.ArtistNorm); err != nil {
			return nil, fmt.Errorf("scanning live recording row: %w", err)
		}
		albums = append(albums, a)
	}
	return albums, rows.Err()
}

func (s *LiveShowService) manualAlbumIDs(ctx context.Context) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT digital_album_id FROM live_show_matches
		WHERE confidence = ? AND digital_album_id IS NOT NULL
	`, match.ConfidenceManual)
	if err != nil {
		return nil, fmt.Errorf("loading manual matches: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	manual := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning manual match row: %w", err)
		}
		manual[id] = true
	}
	return manual, rows.Err()
}

// candidatesForArtist returns official releases for one normalized
// artist, physical collection first so it wins ties over digital
// albums.
func (s *LiveShowService) candidatesForArtist(ctx context.Context, artistNorm string) ([]match.Candidate, error) {
	var cands []match.Candidate

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title FROM physical_records WHERE artist_norm = ?`, artistNorm)
	if err != nil {
		return nil, fmt.Errorf("loading physical candidates: %w", err)
	}
	for rows.Next() {
		var c match.Candidate
		if err := rows.Scan(&c.PhysicalRecordID, &c.Title); err != nil {
			rows.Close() //nolint:errcheck
			return nil, fmt.Errorf("scanning physical candidate: %w", err)
		}
		cands = append(cands, c)
	}
	if err := rows.Err(); err != nil {
		rows.Close() //nolint:errcheck
		return nil, err
	}
	rows.Close() //nolint:errcheck

	rows, err = s.db.QueryContext(ctx,
		`SELECT id, title FROM digital_albums WHERE artist_norm = ?`, artistNorm)
	if err != nil {
		return nil, fmt.Errorf("loading digital candidates: %w", err)
	}
	defer rows.Close() //nolint:errcheck
	for rows.Next() {
		var c match.Candidate
		if err := rows.Scan(&c.DigitalAlbumID, &c.Title); err != nil {
			return nil, fmt.Errorf("scanning digital candidate: %w", err)
		}
		if bootleg.Match(c.Title) {
			continue
		}
		cands = append(cands, c)
	}
	return cands, rows.Err()
}

func (s *LiveShowService) upsertMatch(ctx context.Context, a bootlegAlbum, header bootleg.Header, physicalID, matchedTitle, confidence string) error {
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO live_show_matches (
			id, digital_album_id, physical_record_id, artist, show_date, venue,
			bootleg_title, matched_title, confidence, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(digital_album_id) DO UPDATE SET
			physical_record_id = excluded.physical_record_id,
			artist = excluded.artist,
			show_date = excluded.show_date,
			venue = excluded.venue,
			bootleg_title = excluded.bootleg_title,
			matched_title = excluded.matched_title,
			confidence = excluded.confidence,
			updated_at = excluded.updated_at
		WHERE live_show_matches.confidence <> 'manual'
		  AND (live_show_matches.physical_record_id IS NOT excluded.physical_record_id
			OR live_show_matches.matched_title IS NOT excluded.matched_title
			OR live_show_matches.confidence <> excluded.confidence
			OR live_show_matches.artist <> excluded.artist
			OR live_show_matches.show_date <> excluded.show_date
			OR live_show_matches.venue IS NOT excluded.venue
			OR live_show_matches.bootleg_title <> excluded.bootleg_title)
	`,
		uuid.New().String(), a.ID, nullableString(physicalID), a.Artist,
		header.ShowDate(), header.Venue, a.Title, nullableString(matchedTitle),
		confidence, now, now,
	)
	if err != nil {
		return fmt.Errorf("upserting live-show match for %s: %w", a.Title, err)
	}
	return nil
}

// scanLiveShow scans a database row into a LiveShowMatch struct.
func scanLiveShow(row interface{ Scan(...any) error }) (*LiveShowMatch, error) {
	var m LiveShowMatch
	var digitalID, physicalID, venue, matchedTitle sql.NullString
	var createdAt, updatedAt string

	err := row.Scan(
		&m.ID, &digitalID, &physicalID, &m.Artist,
		&m.ShowDate, &venue, &m.BootlegTitle, &matchedTitle, &m.Confidence,
		&createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	m.DigitalAlbumID = digitalID.String
	m.PhysicalRecordID = physicalID.String
	m.Venue = venue.String
	m.MatchedTitle = matchedTitle.String
	m.CreatedAt = parseTime(createdAt)
	m.UpdatedAt = parseTime(updatedAt)
	return &m, nil
}
