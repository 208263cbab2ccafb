package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sydlexius/milkcrate/internal/normalize"
)

// recordColumns is the ordered list of columns for SELECT queries.
const recordColumns = `id, release_id, instance_id, artist, title, label, format,
	year, date_added, rating, folder_id, artist_norm, album_norm, match_key,
	num_for_sale, lowest_price, thumb_url, cover_url,
	media_condition, sleeve_condition, last_listened, notes,
	created_at, updated_at`

// wantlistColumns is the ordered list of columns for SELECT queries.
const wantlistColumns = `id, release_id, artist, title, label, format, year,
	date_added, notes, num_for_sale, lowest_price, available, marketplace_url,
	thumb_url, cover_url, created_at, updated_at`

// RecordInput is the upsert payload for a collection release. Local
// fields (notes, last listened, marketplace stats) are managed through
// their own methods and survive re-imports.
type RecordInput struct {
	ReleaseID       int64
	InstanceID      int64
	Artist          string
	Title           string
	Label           string
	Format          string
	Year            int
	DateAdded       string
	Rating          int
	FolderID        int
	ThumbURL        string
	CoverURL        string
	MediaCondition  string
	SleeveCondition string
}

// WantlistInput is the upsert payload for a wantlist release.
type WantlistInput struct {
	ReleaseID      int64
	Artist         string
	Title          string
	Label          string
	Format         string
	Year           int
	DateAdded      string
	Notes          string
	NumForSale     int
	LowestPrice    *float64
	MarketplaceURL string
	ThumbURL       string
	CoverURL       string
}

// PhysicalService provides physical collection and wantlist data
// operations.
type PhysicalService struct {
	db *sql.DB
}

// NewPhysicalService creates a physical catalog service.
func NewPhysicalService(db *sql.DB) *PhysicalService {
	return &PhysicalService{db: db}
}

// UpsertRecord inserts or updates a release keyed by its Discogs
// release id. Normalized fields are recomputed from the incoming
// artist and title. A row whose content is unchanged is left
// untouched.
func (s *PhysicalService) UpsertRecord(ctx context.Context, in RecordInput) error {
	if in.ReleaseID == 0 {
		return fmt.Errorf("release id is required")
	}
	if in.Title == "" {
		return fmt.Errorf("title is required")
	}
	if in.Artist == "" {
		return fmt.Errorf("artist is required")
	}

	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO physical_records (
			id, release_id, instance_id, artist, title, label, format,
			year, date_added, rating, folder_id,
			artist_norm, album_norm, match_key,
			thumb_url, cover_url, media_condition, sleeve_condition,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(release_id) DO UPDATE SET
			instance_id = excluded.instance_id,
			artist = excluded.artist,
			title = excluded.title,
			label = excluded.label,
			format = excluded.format,
			year = excluded.year,
			date_added = excluded.date_added,
			rating = excluded.rating,
			folder_id = excluded.folder_id,
			artist_norm = excluded.artist_norm,
			album_norm = excluded.album_norm,
			match_key = excluded.match_key,
			thumb_url = excluded.thumb_url,
			cover_url = excluded.cover_url,
			media_condition = excluded.media_condition,
			sleeve_condition = excluded.sleeve_condition,
			updated_at = excluded.updated_at
		WHERE physical_records.artist <> excluded.artist
		   OR physical_records.title <> excluded.title
		   OR physical_records.label IS NOT excluded.label
		   OR physical_records.format IS NOT excluded.format
		   OR physical_records.year IS NOT excluded.year
		   OR physical_records.date_added IS NOT excluded.date_added
		   OR physical_records.rating IS NOT excluded.rating
		   OR physical_records.folder_id IS NOT excluded.folder_id
		   OR physical_records.instance_id IS NOT excluded.instance_id
		   OR physical_records.thumb_url IS NOT excluded.thumb_url
		   OR physical_records.cover_url IS NOT excluded.cover_url
		   OR physical_records.media_condition IS NOT excluded.media_condition
		   OR physical_records.sleeve_condition IS NOT excluded.sleeve_condition
	`,
		uuid.New().String(), in.ReleaseID, nullableInt64(in.InstanceID),
		in.Artist, in.Title, in.Label, in.Format,
		nullableInt(in.Year), in.DateAdded, nullableInt(in.Rating), in.FolderID,
		normalize.Text(in.Artist), normalize.Text(in.Title),
		normalize.MatchKey(in.Artist, in.Title),
		in.ThumbURL, in.CoverURL, in.MediaCondition, in.SleeveCondition,
		now, now,
	)
	if err != nil {
		return fmt.Errorf("upserting physical record: %w", err)
	}
	return nil
}

// PruneRecords deletes releases whose release id is not in the given
// set and returns the number removed. An empty set deletes nothing.
func (s *PhysicalService) PruneRecords(ctx context.Context, keepReleaseIDs []int64) (int, error) {
	if len(keepReleaseIDs) == 0 {
		return 0, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(keepReleaseIDs)), ",")
	args := make([]any, len(keepReleaseIDs))
	for i, id := range keepReleaseIDs {
		args[i] = id
	}
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM physical_records WHERE release_id NOT IN (`+placeholders+`)`, args...) //nolint:gosec // G202: placeholders only
	if err != nil {
		return 0, fmt.Errorf("pruning physical records: %w", err)
	}
	n, _ := result.RowsAffected()
	return int(n), nil
}

// GetRecord retrieves a release by primary key.
func (s *PhysicalService) GetRecord(ctx context.Context, id string) (*PhysicalRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM physical_records WHERE id = ?`, id)
	r, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("physical record not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("getting physical record: %w", err)
	}
	return r, nil
}

// GetRecordByReleaseID retrieves a release by its Discogs release id,
// or nil if it is not in the collection.
func (s *PhysicalService) GetRecordByReleaseID(ctx context.Context, releaseID int64) (*PhysicalRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM physical_records WHERE release_id = ?`, releaseID)
	r, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting physical record by release: %w", err)
	}
	return r, nil
}

// ListRecords returns a paginated list of releases and the total count.
func (s *PhysicalService) ListRecords(ctx context.Context, params RecordListParams) ([]PhysicalRecord, int, error) {
	params.Validate()

	var conditions []string
	var args []any
	if params.Search != "" {
		conditions = append(conditions, "(title LIKE ? OR artist LIKE ? OR label LIKE ?)")
		pattern := "%" + params.Search + "%"
		args = append(args, pattern, pattern, pattern)
	}
	if params.Artist != "" {
		conditions = append(conditions, "artist = ?")
		args = append(args, params.Artist)
	}
	if params.FolderID > 0 {
		conditions = append(conditions, "folder_id = ?")
		args = append(args, params.FolderID)
	}
	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM physical_records"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting physical records: %w", err)
	}

	orderCol := params.Sort
	switch params.Sort {
	case "artist", "title":
		orderCol += " COLLATE NOCASE"
	}
	if params.Order == "desc" {
		orderCol += " DESC"
	}
	offset := (params.Page - 1) * params.PageSize
	query := `SELECT ` + recordColumns + ` FROM physical_records` + where + //nolint:gosec // G202: orderCol is from validated params, not user input
		` ORDER BY ` + orderCol + `, title COLLATE NOCASE LIMIT ? OFFSET ?`
	args = append(args, params.PageSize, offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("listing physical records: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var records []PhysicalRecord
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scanning physical record row: %w", err)
		}
		records = append(records, *r)
	}
	return records, total, rows.Err()
}

// UpdateLastListened moves a release's last-listened timestamp
// forward. Older timestamps are ignored so backfilled log entries do
// not rewind it.
func (s *PhysicalService) UpdateLastListened(ctx context.Context, id string, t time.Time) error {
	ts := t.UTC().Format(time.RFC3339)
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.ExecContext(ctx, `
		UPDATE physical_records SET last_listened = ?, updated_at = ?
		WHERE id = ? AND (last_listened IS NULL OR last_listened < ?)
	`, ts, now, id, ts)
	if err != nil {
		return fmt.Errorf("updating last listened: %w", err)
	}
	return nil
}

// UpdateNotes replaces the local notes on a release.
func (s *PhysicalService) UpdateNotes(ctx context.Context, id, notes string) error {
	now := time.Now().UTC().Format(time.RFC3339)
	result, err := s.db.ExecContext(ctx,
		`UPDATE physical_records SET notes = ?, updated_at = ? WHERE id = ?`, notes, now, id)
	if err != nil {
		return fmt.Errorf("updating notes: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("physical record not found: %s", id)
	}
	return nil
}

// UpdateMarketplaceStats stores the current marketplace listing count
// and lowest asking price for a release.
func (s *PhysicalService) UpdateMarketplaceStats(ctx context.Context, releaseID int64, numForSale int, lowestPrice *float64) error {
	now := time.Now().UTC().Format(time.RFC3339)
	result, err := s.db.ExecContext(ctx, `
		UPDATE physical_records SET num_for_sale = ?, lowest_price = ?, updated_at = ?
		WHERE release_id = ?
	`, numForSale, nullableFloat(lowestPrice), now, releaseID)
	if err != nil {
		return fmt.Errorf("updating marketplace stats: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("physical record not found: release %d", releaseID)
	}
	return nil
}

// ReplaceTracksForRecord replaces the stored tracklist for a release.
func (s *PhysicalService) ReplaceTracksForRecord(ctx context.Context, recordID string, releaseID int64, tracks []PhysicalTrack) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM physical_tracks WHERE record_id = ?`, recordID); err != nil {
		return fmt.Errorf("clearing existing tracks: %w", err)
	}

	now := time.Now().UTC()
	for i := range tracks {
		t := &tracks[i]
		if t.ID == "" {
			t.ID = uuid.New().String()
		}
		t.RecordID = recordID
		t.ReleaseID = releaseID
		t.CreatedAt = now

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO physical_tracks (
				id, record_id, release_id, position, title, duration,
				artists, extra_artists, created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			t.ID, t.RecordID, t.ReleaseID, t.Position, t.Title, t.Duration,
			t.Artists, t.ExtraArtists, now.Format(time.RFC3339),
		); err != nil {
			return fmt.Errorf("inserting track %s: %w", t.Title, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing tracklist: %w", err)
	}
	return nil
}

// ListTracksForRecord returns the stored tracklist for a release, in
// position order.
func (s *PhysicalService) ListTracksForRecord(ctx context.Context, recordID string) ([]PhysicalTrack, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, record_id, release_id, position, title, duration,
			artists, extra_artists, created_at
		FROM physical_tracks WHERE record_id = ? ORDER BY rowid
	`, recordID)
	if err != nil {
		return nil, fmt.Errorf("listing physical tracks: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var tracks []PhysicalTrack
	for rows.Next() {
		var t PhysicalTrack
		var position, duration, artists, extraArtists sql.NullString
		var createdAt string
		if err := rows.Scan(
			&t.ID, &t.RecordID, &t.ReleaseID, &position, &t.Title, &duration,
			&artists, &extraArtists, &createdAt,
		); err != nil {
			return nil, fmt.Errorf("scanning physical track row: %w", err)
		}
		t.Position = position.String
		t.Duration = duration.String
		t.Artists = artists.String
		t.ExtraArtists = extraArtists.String
		t.CreatedAt = parseTime(createdAt)
		tracks = append(tracks, t)
	}
	return tracks, rows.Err()
}

// UpsertWantlistEntry inserts or updates a wantlist release keyed by
// its Discogs release id. Availability is derived from the listing
// count.
func (s *PhysicalService) UpsertWantlistEntry(ctx context.Context, in WantlistInput) error {
	if in.ReleaseID == 0 {
		return fmt.Errorf("release id is required")
	}
	if in.Title == "" {
		return fmt.Errorf("title is required")
	}
	if in.Artist == "" {
		return fmt.Errorf("artist is required")
	}

	now := time.Now().UTC().Format(time.RFC3339)
	available := boolToInt(in.NumForSale > 0)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO wantlist_entries (
			id, release_id, artist, title, label, format, year,
			date_added, notes, num_for_sale, lowest_price, available,
			marketplace_url, thumb_url, cover_url, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(release_id) DO UPDATE SET
			artist = excluded.artist,
			title = excluded.title,
			label = excluded.label,
			format = excluded.format,
			year = excluded.year,
			date_added = excluded.date_added,
			notes = excluded.notes,
			num_for_sale = excluded.num_for_sale,
			lowest_price = excluded.lowest_price,
			available = excluded.available,
			marketplace_url = excluded.marketplace_url,
			thumb_url = excluded.thumb_url,
			cover_url = excluded.cover_url,
			updated_at = excluded.updated_at
		WHERE wantlist_entries.artist <> excluded.artist
		   OR wantlist_entries.title <> excluded.title
		   OR wantlist_entries.label IS NOT excluded.label
		   OR wantlist_entries.format IS NOT excluded.format
		   OR wantlist_entries.year IS NOT excluded.year
		   OR wantlist_entries.date_added IS NOT excluded.date_added
		   OR wantlist_entries.notes IS NOT excluded.notes
		   OR wantlist_entries.num_for_sale <> excluded.num_for_sale
		   OR wantlist_entries.lowest_price IS NOT excluded.lowest_price
		   OR wantlist_entries.available <> excluded.available
		   OR wantlist_entries.marketplace_url IS NOT excluded.marketplace_url
		   OR wantlist_entries.thumb_url IS NOT excluded.thumb_url
		   OR wantlist_entries.cover_url IS NOT excluded.cover_url
	`,
		uuid.New().String(), in.ReleaseID, in.Artist, in.Title, in.Label, in.Format,
		nullableInt(in.Year), in.DateAdded, in.Notes, in.NumForSale,
		nullableFloat(in.LowestPrice), available,
		in.MarketplaceURL, in.ThumbURL, in.CoverURL, now, now,
	)
	if err != nil {
		return fmt.Errorf("upserting wantlist entry: %w", err)
	}
	return nil
}

// PruneWantlist deletes wantlist entries whose release id is not in
// the given set and returns the number removed. An empty set deletes
// nothing.
func (s *PhysicalService) PruneWantlist(ctx context.Context, keepReleaseIDs []int64) (int, error) {
	if len(keepReleaseIDs) == 0 {
		return 0, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(keepReleaseIDs)), ",")
	args := make([]any, len(keepReleaseIDs))
	for i, id := range keepReleaseIDs {
		args[i] = id
	}
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM wantlist_entries WHERE release_id NOT IN (`+placeholders+`)`, args...) //nolint:gosec // G202: placeholders only
	if err != nil {
		return 0, fmt.Errorf("pruning wantlist: %w", err)
	}
	n, _ := result.RowsAffected()
	return int(n), nil
}

// ListWantlist returns a paginated list of wantlist entries and the
// total count.
func (s *PhysicalService) ListWantlist(ctx context.Context, params WantlistParams) ([]WantlistEntry, int, error) {
	params.Validate()

	var conditions []string
	var args []any
	if params.Search != "" {
		conditions = append(conditions, "(title LIKE ? OR artist LIKE ?)")
		pattern := "%" + params.Search + "%"
		args = append(args, pattern, pattern)
	}
	if params.OnlyAvailable {
		conditions = append(conditions, "available = 1")
	}
	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM wantlist_entries"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting wantlist: %w", err)
	}

	orderCol := params.Sort
	switch params.Sort {
	case "artist", "title":
		orderCol += " COLLATE NOCASE"
	}
	if params.Order == "desc" {
		orderCol += " DESC"
	}
	offset := (params.Page - 1) * params.PageSize
	query := `SELECT ` + wantlistColumns + ` FROM wantlist_entries` + where + //nolint:gosec // G202: orderCol is from validated params, not user input
		` ORDER BY ` + orderCol + `, title COLLATE NOCASE LIMIT ? OFFSET ?`
	args = append(args, params.PageSize, offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("listing wantlist: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var entries []WantlistEntry
	for rows.Next() {
		e, err := scanWantlistEntry(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scanning wantlist row: %w", err)
		}
		entries = append(entries, *e)
	}
	return entries, total, rows.Err()
}

// scanRecord scans a database row into a PhysicalRecord struct.
func scanRecord(row interface{ Scan(...any) error }) (*PhysicalRecord, error) {
	var r PhysicalRecord
	var instanceID, year, rating, folderID, numForSale sql.NullInt64
	var lowestPrice sql.NullFloat64
	var label, format, dateAdded, thumbURL, coverURL sql.NullString
	var mediaCondition, sleeveCondition, lastListened, notes sql.NullString
	var createdAt, updatedAt string

	err := row.Scan(
		&r.ID, &r.ReleaseID, &instanceID, &r.Artist, &r.Title, &label, &format,
		&year, &dateAdded, &rating, &folderID,
		&r.ArtistNorm, &r.AlbumNorm, &r.MatchKey,
		&numForSale, &lowestPrice, &thumbURL, &coverURL,
		&mediaCondition, &sleeveCondition, &lastListened, &notes,
		&createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	r.InstanceID = instanceID.Int64
	r.Label = label.String
	r.Format = format.String
	r.Year = int(year.Int64)
	r.DateAdded = dateAdded.String
	r.Rating = int(rating.Int64)
	r.FolderID = int(folderID.Int64)
	r.NumForSale = int(numForSale.Int64)
	r.LowestPrice = lowestPrice.Float64
	r.ThumbURL = thumbURL.String
	r.CoverURL = coverURL.String
	r.MediaCondition = mediaCondition.String
	r.SleeveCondition = sleeveCondition.String
	r.LastListened = scanNullableTime(lastListened)
	r.Notes = notes.String
	r.CreatedAt = parseTime(createdAt)
	r.UpdatedAt = parseTime(updatedAt)
	return &r, nil
}

// scanWantlistEntry scans a database row into a WantlistEntry struct.
func scanWantlistEntry(row interface{ Scan(...any) error }) (*WantlistEntry, error) {
	var e WantlistEntry
	var year, available sql.NullInt64
	var lowestPrice sql.NullFloat64
	var label, format, dateAdded, notes, marketplaceURL, thumbURL, coverURL sql.NullString
	var createdAt, updatedAt string

	err := row.Scan(
		&e.ID, &e.ReleaseID, &e.Artist, &e.Title, &label, &format, &year,
		&dateAdded, &notes, &e.NumForSale, &lowestPrice, &available,
		&marketplaceURL, &thumbURL, &coverURL, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	e.Label = label.String
	e.Format = format.String
	e.Year = int(year.Int64)
	e.DateAdded = dateAdded.String
	e.Notes = notes.String
	e.LowestPrice = lowestPrice.Float64
	e.Available = available.Int64 == 1
	e.MarketplaceURL = marketplaceURL.String
	e.ThumbURL = thumbURL.String
	e.CoverURL = coverURL.String
	e.CreatedAt = parseTime(createdAt)
	e.UpdatedAt = parseTime(updatedAt)
	return &e, nil
}

func nullableInt64(n int64) any {
	if n == 0 {
		return nil
	}
	return n
}

func nullableFloat(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}
