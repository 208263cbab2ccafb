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

// listenColumns is the ordered list of columns for SELECT queries.
const listenColumns = `id, artist, album, source, listened_at, format, notes,
	digital_album_id, physical_record_id, created_at`

// ListeningInput is the payload for a new listening-log entry. The
// optional link IDs override the match-key lookup when set.
type ListeningInput struct {
	Artist           string
	Album            string
	Source           string
	ListenedAt       time.Time
	Format           string
	Notes            string
	DigitalAlbumID   string
	PhysicalRecordID string
}

// ListeningService provides listening-log data operations.
type ListeningService struct {
	db *sql.DB
}

// NewListeningService creates a listening-log service.
func NewListeningService(db *sql.DB) *ListeningService {
	return &ListeningService{db: db}
}

// Add records a listening event. The event is linked to the digital
// album and physical record that share its match key, when they exist,
// and a physical link also moves that record's last-listened timestamp
// forward.
func (s *ListeningService) Add(ctx context.Context, in ListeningInput) (*ListeningEvent, error) {
	if in.Artist == "" {
		return nil, fmt.Errorf("artist is required")
	}
	if in.Album == "" {
		return nil, fmt.Errorf("album is required")
	}
	if !ValidListenSource(in.Source) {
		return nil, fmt.Errorf("invalid source: %s", in.Source)
	}
	if in.ListenedAt.IsZero() {
		in.ListenedAt = time.Now().UTC()
	}

	matchKey := normalize.MatchKey(in.Artist, in.Album)
	digitalID, err := s.resolveLink(ctx, "digital_albums", in.DigitalAlbumID, matchKey)
	if err != nil {
		return nil, err
	}
	physicalID, err := s.resolveLink(ctx, "physical_records", in.PhysicalRecordID, matchKey)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	ev := &ListeningEvent{
		ID:               uuid.New().String(),
		Artist:           in.Artist,
		Album:            in.Album,
		Source:           in.Source,
		ListenedAt:       in.ListenedAt.UTC(),
		Format:           in.Format,
		Notes:            in.Notes,
		DigitalAlbumID:   digitalID,
		PhysicalRecordID: physicalID,
		CreatedAt:        now,
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO listening_history (
			id, artist, album, source, listened_at, format, notes,
			digital_album_id, physical_record_id, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		ev.ID, ev.Artist, ev.Album, ev.Source, ev.ListenedAt.Format(time.RFC3339),
		ev.Format, ev.Notes, nullableString(digitalID), nullableString(physicalID),
		now.Format(time.RFC3339),
	)
	if err != nil {
		return nil, fmt.Errorf("inserting listening event: %w", err)
	}

	if physicalID != "" {
		ts := ev.ListenedAt.Format(time.RFC3339)
		if _, err := s.db.ExecContext(ctx, `
			UPDATE physical_records SET last_listened = ?, updated_at = ?
			WHERE id = ? AND (last_listened IS NULL OR last_listened < ?)
		`, ts, now.Format(time.RFC3339), physicalID, ts); err != nil {
			return nil, fmt.Errorf("updating last listened: %w", err)
		}
	}
	return ev, nil
}

// List returns a paginated listening log, newest first, and the total
// count.
func (s *ListeningService) List(ctx context.Context, params ListenListParams) ([]ListeningEvent, int, error) {
	params.Validate()

	var conditions []string
	var args []any
	if params.Source != "" {
		conditions = append(conditions, "source = ?")
		args = append(args, params.Source)
	}
	if params.Artist != "" {
		conditions = append(conditions, "artist = ?")
		args = append(args, params.Artist)
	}
	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM listening_history"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting listening events: %w", err)
	}

	offset := (params.Page - 1) * params.PageSize
	query := `SELECT ` + listenColumns + ` FROM listening_history` + where +
		` ORDER BY listened_at DESC, created_at DESC LIMIT ? OFFSET ?`
	args = append(args, params.PageSize, offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("listing listening events: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var events []ListeningEvent
	for rows.Next() {
		ev, err := scanListen(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scanning listening row: %w", err)
		}
		events = append(events, *ev)
	}
	return events, total, rows.Err()
}

// Delete removes a listening event by ID.
func (s *ListeningService) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM listening_history WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting listening event: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("listening event not found: %s", id)
	}
	return nil
}

// resolveLink picks the album link for a new entry. An explicit ID
// must exist; without one the entry links to whatever row shares the
// match key, if any.
func (s *ListeningService) resolveLink(ctx context.Context, table, explicitID, matchKey string) (string, error) {
	if explicitID != "" {
		var one int
		err := s.db.QueryRowContext(ctx,
			`SELECT 1 FROM `+table+` WHERE id = ?`, explicitID).Scan(&one) //nolint:gosec // G202: table name is a literal at both call sites
		if errors.Is(err, sql.ErrNoRows) {
			return "", fmt.Errorf("%s has no row %s", table, explicitID)
		}
		if err != nil {
			return "", fmt.Errorf("checking %s link: %w", table, err)
		}
		return explicitID, nil
	}
	return s.lookupByMatchKey(ctx, table, matchKey)
}

func (s *ListeningService) lookupByMatchKey(ctx context.Context, table, matchKey string) (string, error) {
	var id string
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM `+table+` WHERE match_key = ? LIMIT 1`, matchKey).Scan(&id) //nolint:gosec // G202: table name is a literal at both call sites
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("looking up %s by match key: %w", table, err)
	}
	return id, nil
}

// scanListen scans a database row into a ListeningEvent struct.
func scanListen(row interface{ Scan(...any) error }) (*ListeningEvent, error) {
	var ev ListeningEvent
	var format, notes, digitalID, physicalID sql.NullString
	var listenedAt, createdAt string

	err := row.Scan(
		&ev.ID, &ev.Artist, &ev.Album, &ev.Source, &listenedAt, &format, &notes,
		&digitalID, &physicalID, &createdAt,
	)
	if err != nil {
		return nil, err
	}

	ev.ListenedAt = parseTime(listenedAt)
	ev.Format = format.String
	ev.Notes = notes.String
	ev.DigitalAlbumID = digitalID.String
	ev.PhysicalRecordID = physicalID.String
	ev.CreatedAt = parseTime(createdAt)
	return &ev, nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
