package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sydlexius/milkcrate/internal/bootleg"
	"github.com/sydlexius/milkcrate/internal/normalize"
)

// albumColumns is the ordered list of columns for SELECT queries.
const albumColumns = `id, item_key, title, artist, image_key,
	artist_norm, album_norm, match_key, is_physical_duplicate, physical_tag,
	created_at, updated_at`

// bootlegTitleGlob narrows album queries to titles shaped like a live
// recording header. Matches are confirmed in Go afterwards, since GLOB
// cannot reject impossible dates or trailing digits.
const bootlegTitleGlob = bootleg.TitleGlob

// TagPreferer decides which duplicate code wins when an album carries
// more than one recognized marker.
type TagPreferer interface {
	Prefer(current, incoming string) string
}

// AlbumInput is the upsert payload for a digital album.
type AlbumInput struct {
	ItemKey  string
	Title    string
	Artist   string
	ImageKey string
}

// DigitalService provides digital album, track and play-history data
// operations.
type DigitalService struct {
	db *sql.DB
}

// NewDigitalService creates a digital catalog service.
func NewDigitalService(db *sql.DB) *DigitalService {
	return &DigitalService{db: db}
}

// UpsertAlbum inserts or updates an album keyed by its Roon item key.
// Normalized fields are recomputed from the incoming title and artist.
// A row whose content is unchanged is left untouched, so repeated
// imports of the same export are no-ops.
func (s *DigitalService) UpsertAlbum(ctx context.Context, in AlbumInput) error {
	if in.ItemKey == "" {
		return fmt.Errorf("item key is required")
	}
	if in.Title == "" {
		return fmt.Errorf("title is required")
	}
	if in.Artist == "" {
		return fmt.Errorf("artist is required")
	}

	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO digital_albums (
			id, item_key, title, artist, image_key,
			artist_norm, album_norm, match_key, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(item_key) DO UPDATE SET
			title = excluded.title,
			artist = excluded.artist,
			image_key = excluded.image_key,
			artist_norm = excluded.artist_norm,
			album_norm = excluded.album_norm,
			match_key = excluded.match_key,
			updated_at = excluded.updated_at
		WHERE title <> excluded.title
		   OR artist <> excluded.artist
		   OR image_key IS NOT excluded.image_key
	`,
		uuid.New().String(), in.ItemKey, in.Title, in.Artist, in.ImageKey,
		normalize.Text(in.Artist), normalize.Text(in.Title),
		normalize.MatchKey(in.Artist, in.Title), now, now,
	)
	if err != nil {
		return fmt.Errorf("upserting digital album: %w", err)
	}
	return nil
}

// PruneAlbums deletes albums whose item key is not in the given set
// and returns the number removed. An empty set deletes nothing.
func (s *DigitalService) PruneAlbums(ctx context.Context, keepItemKeys []string) (int, error) {
	if len(keepItemKeys) == 0 {
		return 0, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(keepItemKeys)), ",")
	args := make([]any, len(keepItemKeys))
	for i, k := range keepItemKeys {
		args[i] = k
	}
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM digital_albums WHERE item_key NOT IN (`+placeholders+`)`, args...) //nolint:gosec // G202: placeholders only
	if err != nil {
		return 0, fmt.Errorf("pruning digital albums: %w", err)
	}
	n, _ := result.RowsAffected()
	return int(n), nil
}

// GetAlbum retrieves an album by primary key.
func (s *DigitalService) GetAlbum(ctx context.Context, id string) (*DigitalAlbum, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+albumColumns+` FROM digital_albums WHERE id = ?`, id)
	a, err := scanAlbum(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("digital album not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("getting digital album: %w", err)
	}
	return a, nil
}

// ListAlbums returns a paginated list of albums and the total count.
func (s *DigitalService) ListAlbums(ctx context.Context, params AlbumListParams) ([]DigitalAlbum, int, error) {
	params.Validate()

	var conditions []string
	var args []any
	if params.Search != "" {
		conditions = append(conditions, "(title LIKE ? OR artist LIKE ?)")
		pattern := "%" + params.Search + "%"
		args = append(args, pattern, pattern)
	}
	if params.Artist != "" {
		conditions = append(conditions, "artist = ?")
		args = append(args, params.Artist)
	}
	if params.HideDuplicates {
		conditions = append(conditions, "is_physical_duplicate = 0")
	}
	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM digital_albums"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting digital albums: %w", err)
	}

	orderCol := params.Sort + " COLLATE NOCASE"
	if params.Order == "desc" {
		orderCol += " DESC"
	}
	offset := (params.Page - 1) * params.PageSize
	query := `SELECT ` + albumColumns + ` FROM digital_albums` + where + //nolint:gosec // G202: orderCol is from validated params, not user input
		` ORDER BY ` + orderCol + `, title COLLATE NOCASE LIMIT ? OFFSET ?`
	args = append(args, params.PageSize, offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("listing digital albums: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var albums []DigitalAlbum
	for rows.Next() {
		a, err := scanAlbum(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scanning digital album row: %w", err)
		}
		albums = append(albums, *a)
	}
	return albums, total, rows.Err()
}

// ListBootlegs returns the albums whose title carries a valid live
// recording header, optionally restricted to one artist.
func (s *DigitalService) ListBootlegs(ctx context.Context, artist string) ([]DigitalAlbum, error) {
	query := `SELECT ` + albumColumns + ` FROM digital_albums WHERE title GLOB ?`
	args := []any{bootlegTitleGlob}
	if artist != "" {
		query += ` AND artist = ?`
		args = append(args, artist)
	}
	query += ` ORDER BY artist COLLATE NOCASE, title`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing bootlegs: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var albums []DigitalAlbum
	for rows.Next() {
		a, err := scanAlbum(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning bootleg row: %w", err)
		}
		if !bootleg.Match(a.Title) {
			continue
		}
		albums = append(albums, *a)
	}
	return albums, rows.Err()
}

// BootlegArtist pairs an artist with the number of live recordings
// in the library under that name.
type BootlegArtist struct {
	Artist    string `json:"artist"`
	ShowCount int    `json:"show_count"`
}

// BootlegArtists returns every artist with at least one live
// recording, most shows first.
func (s *DigitalService) BootlegArtists(ctx context.Context) ([]BootlegArtist, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT artist, title FROM digital_albums WHERE title GLOB ?`, bootlegTitleGlob)
	if err != nil {
		return nil, fmt.Errorf("listing bootleg artists: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	counts := make(map[string]int)
	for rows.Next() {
		var artist, title string
		if err := rows.Scan(&artist, &title); err != nil {
			return nil, fmt.Errorf("scanning bootleg artist row: %w", err)
		}
		if !bootleg.Match(title) {
			continue
		}
		counts[artist]++
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	artists := make([]BootlegArtist, 0, len(counts))
	for artist, n := range counts {
		artists = append(artists, BootlegArtist{Artist: artist, ShowCount: n})
	}
	sort.Slice(artists, func(i, j int) bool {
		if artists[i].ShowCount != artists[j].ShowCount {
			return artists[i].ShowCount > artists[j].ShowCount
		}
		return artists[i].Artist < artists[j].Artist
	})
	return artists, nil
}

// ClearPhysicalTags removes the duplicate flag from every album. Runs
// before tag markers are reapplied so stale flags do not survive a tag
// removal upstream. Flag changes never touch updated_at; that field
// tracks source content only.
func (s *DigitalService) ClearPhysicalTags(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE digital_albums SET is_physical_duplicate = 0, physical_tag = NULL
		WHERE is_physical_duplicate = 1 OR physical_tag IS NOT NULL
	`)
	if err != nil {
		return fmt.Errorf("clearing physical tags: %w", err)
	}
	return nil
}

// UpgradePhysicalTag flags every album titled title (case-insensitive)
// with the given duplicate code, unless the code already stored on the
// row outranks it. Returns the number of albums matched.
func (s *DigitalService) UpgradePhysicalTag(ctx context.Context, title, code string, prefer TagPreferer) (int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, COALESCE(physical_tag, '') FROM digital_albums WHERE lower(title) = lower(?)
	`, title)
	if err != nil {
		return 0, fmt.Errorf("finding albums for tag: %w", err)
	}

	type flagged struct {
		id      string
		current string
	}
	var matched []flagged
	for rows.Next() {
		var f flagged
		if err := rows.Scan(&f.id, &f.current); err != nil {
			rows.Close() //nolint:errcheck
			return 0, fmt.Errorf("scanning album for tag: %w", err)
		}
		matched = append(matched, f)
	}
	if err := rows.Err(); err != nil {
		rows.Close() //nolint:errcheck
		return 0, fmt.Errorf("iterating albums for tag: %w", err)
	}
	rows.Close() //nolint:errcheck

	for _, f := range matched {
		winner := prefer.Prefer(f.current, code)
		if winner == f.current {
			continue
		}
		if _, err := s.db.ExecContext(ctx, `
			UPDATE digital_albums SET is_physical_duplicate = 1, physical_tag = ? WHERE id = ?
		`, winner, f.id); err != nil {
			return 0, fmt.Errorf("flagging album %s: %w", f.id, err)
		}
	}
	return len(matched), nil
}

// SetAlbumFlag sets or clears the duplicate flag on the single album
// with the given item key. An empty code clears. Used by imports whose
// export carries tags inline. No-op writes are suppressed so repeated
// imports stay idempotent.
func (s *DigitalService) SetAlbumFlag(ctx context.Context, itemKey, code string) error {
	var err error
	if code == "" {
		_, err = s.db.ExecContext(ctx, `
			UPDATE digital_albums SET is_physical_duplicate = 0, physical_tag = NULL
			WHERE item_key = ? AND (is_physical_duplicate = 1 OR physical_tag IS NOT NULL)
		`, itemKey)
	} else {
		_, err = s.db.ExecContext(ctx, `
			UPDATE digital_albums SET is_physical_duplicate = 1, physical_tag = ?
			WHERE item_key = ? AND (is_physical_duplicate = 0 OR physical_tag IS NOT ?)
		`, code, itemKey, code)
	}
	if err != nil {
		return fmt.Errorf("setting album flag: %w", err)
	}
	return nil
}

// DeleteAllTracks clears the digital track table ahead of a full
// re-import.
func (s *DigitalService) DeleteAllTracks(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM digital_tracks`); err != nil {
		return fmt.Errorf("clearing digital tracks: %w", err)
	}
	return nil
}

// InsertTrack inserts one track row.
func (s *DigitalService) InsertTrack(ctx context.Context, t *DigitalTrack) error {
	if t.Title == "" {
		return fmt.Errorf("title is required")
	}
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	t.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO digital_tracks (
			id, album_artist, album, disc_number, track_number, title,
			track_artists, composers, external_id, source,
			is_duplicate, is_hidden, tags, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		t.ID, t.AlbumArtist, t.Album, nullableInt(t.DiscNumber), nullableInt(t.TrackNumber), t.Title,
		t.TrackArtists, t.Composers, t.ExternalID, t.Source,
		boolToInt(t.IsDuplicate), boolToInt(t.IsHidden), t.Tags,
		t.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting digital track: %w", err)
	}
	return nil
}

// ListTracksForAlbum returns the stored tracks for one album, in disc
// and track order.
func (s *DigitalService) ListTracksForAlbum(ctx context.Context, albumArtist, album string) ([]DigitalTrack, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, album_artist, album, disc_number, track_number, title,
			track_artists, composers, external_id, source,
			is_duplicate, is_hidden, tags, created_at
		FROM digital_tracks
		WHERE album_artist = ? AND album = ?
		ORDER BY disc_number, track_number
	`, albumArtist, album)
	if err != nil {
		return nil, fmt.Errorf("listing tracks: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var tracks []DigitalTrack
	for rows.Next() {
		t, err := scanTrack(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning track row: %w", err)
		}
		tracks = append(tracks, *t)
	}
	return tracks, rows.Err()
}

// DeleteAllPlays clears the play-history table ahead of a full
// re-import.
func (s *DigitalService) DeleteAllPlays(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM play_history`); err != nil {
		return fmt.Errorf("clearing play history: %w", err)
	}
	return nil
}

// InsertPlay inserts one play-history row.
func (s *DigitalService) InsertPlay(ctx context.Context, p *PlayEvent) error {
	if p.Title == "" {
		return fmt.Errorf("title is required")
	}
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	p.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO play_history (
			id, album_artist, album, disc_number, track_number, title,
			track_artists, composers, external_id, source, played_at, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		p.ID, p.AlbumArtist, p.Album, nullableInt(p.DiscNumber), nullableInt(p.TrackNumber), p.Title,
		p.TrackArtists, p.Composers, p.ExternalID, p.Source,
		formatNullableTime(p.PlayedAt), p.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting play event: %w", err)
	}
	return nil
}

// GetPlay retrieves one play-history row by primary key.
func (s *DigitalService) GetPlay(ctx context.Context, id string) (*PlayEvent, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, album_artist, album, disc_number, track_number, title,
			track_artists, composers, external_id, source, played_at, created_at
		FROM play_history WHERE id = ?
	`, id)
	p, err := scanPlay(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("play event not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("getting play event: %w", err)
	}
	return p, nil
}

// UpdatePlayPlayedAt corrects the timestamp on a play-history row.
// Exports sometimes arrive with the play time missing or wrong.
func (s *DigitalService) UpdatePlayPlayedAt(ctx context.Context, id string, playedAt time.Time) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE play_history SET played_at = ? WHERE id = ?`,
		playedAt.UTC().Format(time.RFC3339), id)
	if err != nil {
		return fmt.Errorf("updating played at: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("play event not found: %s", id)
	}
	return nil
}

// scanAlbum scans a database row into a DigitalAlbum struct.
func scanAlbum(row interface{ Scan(...any) error }) (*DigitalAlbum, error) {
	var a DigitalAlbum
	var imageKey, physicalTag sql.NullString
	var isDup int
	var createdAt, updatedAt string

	err := row.Scan(
		&a.ID, &a.ItemKey, &a.Title, &a.Artist, &imageKey,
		&a.ArtistNorm, &a.AlbumNorm, &a.MatchKey, &isDup, &physicalTag,
		&createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	a.ImageKey = imageKey.String
	a.PhysicalTag = physicalTag.String
	a.IsPhysicalDuplicate = isDup == 1
	a.CreatedAt = parseTime(createdAt)
	a.UpdatedAt = parseTime(updatedAt)
	return &a, nil
}

// scanTrack scans a database row into a DigitalTrack struct.
func scanTrack(row interface{ Scan(...any) error }) (*DigitalTrack, error) {
	var t DigitalTrack
	var discNumber, trackNumber sql.NullInt64
	var trackArtists, composers, externalID, source, tags sql.NullString
	var isDup, isHidden int
	var createdAt string

	err := row.Scan(
		&t.ID, &t.AlbumArtist, &t.Album, &discNumber, &trackNumber, &t.Title,
		&trackArtists, &composers, &externalID, &source,
		&isDup, &isHidden, &tags, &createdAt,
	)
	if err != nil {
		return nil, err
	}

	t.DiscNumber = int(discNumber.Int64)
	t.TrackNumber = int(trackNumber.Int64)
	t.TrackArtists = trackArtists.String
	t.Composers = composers.String
	t.ExternalID = externalID.String
	t.Source = source.String
	t.Tags = tags.String
	t.IsDuplicate = isDup == 1
	t.IsHidden = isHidden == 1
	t.CreatedAt = parseTime(createdAt)
	return &t, nil
}

// scanPlay scans a database row into a PlayEvent struct.
func scanPlay(row interface{ Scan(...any) error }) (*PlayEvent, error) {
	var p PlayEvent
	var discNumber, trackNumber sql.NullInt64
	var trackArtists, composers, externalID, source, playedAt sql.NullString
	var createdAt string

	err := row.Scan(
		&p.ID, &p.AlbumArtist, &p.Album, &discNumber, &trackNumber, &p.Title,
		&trackArtists, &composers, &externalID, &source, &playedAt, &createdAt,
	)
	if err != nil {
		return nil, err
	}

	p.DiscNumber = int(discNumber.Int64)
	p.TrackNumber = int(trackNumber.Int64)
	p.TrackArtists = trackArtists.String
	p.Composers = composers.String
	p.ExternalID = externalID.String
	p.Source = source.String
	p.PlayedAt = scanNullableTime(playedAt)
	p.CreatedAt = parseTime(createdAt)
	return &p, nil
}

func nullableInt(n int) any {
	if n == 0 {
		return nil
	}
	return n
}
