package sync

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// stateColumns is the ordered list of columns for SELECT queries.
const stateColumns = `id, source_name, last_sync, records_count, error_count,
	sync_status, created_at, updated_at`

// historyColumns is the ordered list of columns for SELECT queries.
const historyColumns = `id, source_name, status, records_count, error_count,
	duration_ms, digital_albums, physical_records, wantlist_entries,
	digital_tracks, play_events, listening_events, created_at`

// State is the persisted sync position for one source. LastSync is nil
// until the source has completed a successful run.
type State struct {
	ID           string     `json:"id"`
	SourceName   string     `json:"source_name"`
	LastSync     *time.Time `json:"last_sync,omitempty"`
	RecordsCount int        `json:"records_count"`
	ErrorCount   int        `json:"error_count"`
	SyncStatus   string     `json:"sync_status"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// Counts holds the catalog row totals snapshotted with each history
// entry.
type Counts struct {
	DigitalAlbums   int `json:"digital_albums"`
	PhysicalRecords int `json:"physical_records"`
	WantlistEntries int `json:"wantlist_entries"`
	DigitalTracks   int `json:"digital_tracks"`
	PlayEvents      int `json:"play_events"`
	ListeningEvents int `json:"listening_events"`
}

// HistoryEntry is one append-only sync run record.
type HistoryEntry struct {
	ID           string `json:"id"`
	SourceName   string `json:"source_name"`
	Status       string `json:"status"`
	RecordsCount int    `json:"records_count"`
	ErrorCount   int    `json:"error_count"`
	DurationMS   int64  `json:"duration_ms"`
	Counts
	CreatedAt time.Time `json:"created_at"`
}

// Store persists sync state and history.
type Store struct {
	db *sql.DB
}

// NewStore creates a sync state store.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// GetState returns the state row for a source, or nil when the source
// has never been synced.
func (s *Store) GetState(ctx context.Context, sourceName string) (*State, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+stateColumns+`
		FROM sync_state
		WHERE source_name = ?`, sourceName)

	st, err := scanState(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting sync state: %w", err)
	}
	return st, nil
}

// ListStates returns all source states ordered by source name.
func (s *Store) ListStates(ctx context.Context) ([]State, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+stateColumns+`
		FROM sync_state
		ORDER BY source_name`)
	if err != nil {
		return nil, fmt.Errorf("listing sync states: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var states []State
	for rows.Next() {
		st, err := scanState(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning sync state row: %w", err)
		}
		states = append(states, *st)
	}
	return states, rows.Err()
}

// SetStatus upserts the status summary for a source without touching
// its counts or last-sync position.
func (s *Store) SetStatus(ctx context.Context, sourceName, status string) error {
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sync_state (id, source_name, sync_status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(source_name) DO UPDATE SET
			sync_status = excluded.sync_status,
			updated_at = excluded.updated_at`,
		uuid.New().String(), sourceName, status, now, now)
	if err != nil {
		return fmt.Errorf("setting sync status: %w", err)
	}
	return nil
}

// Complete records a finished run. lastSync advances the source's sync
// position when non-nil; a nil lastSync leaves the stored position
// alone so a failed run is retried promptly.
func (s *Store) Complete(ctx context.Context, sourceName, status string, records, errs int, lastSync *time.Time) error {
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sync_state (id, source_name, last_sync, records_count,
			error_count, sync_status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(source_name) DO UPDATE SET
			last_sync = COALESCE(excluded.last_sync, sync_state.last_sync),
			records_count = excluded.records_count,
			error_count = excluded.error_count,
			sync_status = excluded.sync_status,
			updated_at = excluded.updated_at`,
		uuid.New().String(), sourceName, formatNullableTime(lastSync),
		records, errs, status, now, now)
	if err != nil {
		return fmt.Errorf("completing sync state: %w", err)
	}
	return nil
}

// AppendHistory inserts a run snapshot. ID and CreatedAt are filled in
// when empty.
func (s *Store) AppendHistory(ctx context.Context, e *HistoryEntry) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sync_history (`+historyColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.SourceName, e.Status, e.RecordsCount, e.ErrorCount,
		e.DurationMS, e.DigitalAlbums, e.PhysicalRecords, e.WantlistEntries,
		e.DigitalTracks, e.PlayEvents, e.ListeningEvents,
		e.CreatedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("appending sync history: %w", err)
	}
	return nil
}

// ListHistory returns the most recent run snapshots, newest first.
func (s *Store) ListHistory(ctx context.Context, limit int) ([]HistoryEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+historyColumns+`
		FROM sync_history
		ORDER BY created_at DESC, id
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing sync history: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var entries []HistoryEntry
	for rows.Next() {
		e, err := scanHistory(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning sync history row: %w", err)
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}

// PruneHistory deletes run snapshots older than keepDays. Returns the
// number of rows removed.
func (s *Store) PruneHistory(ctx context.Context, keepDays int) (int64, error) {
	if keepDays <= 0 {
		return 0, nil
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -keepDays).Format(time.RFC3339)
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM sync_history WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("pruning sync history: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("pruning sync history: %w", err)
	}
	return n, nil
}

// CollectionCounts returns the current row totals across the catalog
// tables.
func (s *Store) CollectionCounts(ctx context.Context) (Counts, error) {
	var c Counts
	err := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM digital_albums),
			(SELECT COUNT(*) FROM physical_records),
			(SELECT COUNT(*) FROM wantlist_entries),
			(SELECT COUNT(*) FROM digital_tracks),
			(SELECT COUNT(*) FROM play_history),
			(SELECT COUNT(*) FROM listening_history)`).
		Scan(&c.DigitalAlbums, &c.PhysicalRecords, &c.WantlistEntries,
			&c.DigitalTracks, &c.PlayEvents, &c.ListeningEvents)
	if err != nil {
		return Counts{}, fmt.Errorf("counting collections: %w", err)
	}
	return c, nil
}

func scanState(row interface{ Scan(...any) error }) (*State, error) {
	var st State
	var lastSync sql.NullString
	var createdAt, updatedAt string

	err := row.Scan(&st.ID, &st.SourceName, &lastSync, &st.RecordsCount,
		&st.ErrorCount, &st.SyncStatus, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	st.LastSync = scanNullableTime(lastSync)
	st.CreatedAt = parseTime(createdAt)
	st.UpdatedAt = parseTime(updatedAt)
	return &st, nil
}

func scanHistory(row interface{ Scan(...any) error }) (*HistoryEntry, error) {
	var e HistoryEntry
	var createdAt string

	err := row.Scan(&e.ID, &e.SourceName, &e.Status, &e.RecordsCount,
		&e.ErrorCount, &e.DurationMS, &e.DigitalAlbums, &e.PhysicalRecords,
		&e.WantlistEntries, &e.DigitalTracks, &e.PlayEvents,
		&e.ListeningEvents, &createdAt)
	if err != nil {
		return nil, err
	}
	e.CreatedAt = parseTime(createdAt)
	return &e, nil
}

func formatNullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}

func scanNullableTime(ns sql.NullString) *time.Time {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	t := parseTime(ns.String)
	if t.IsZero() {
		return nil
	}
	return &t
}

// parseTime parses a time string, handling both RFC3339 and SQLite
// datetime formats.
func parseTime(s string) time.Time {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	if t, err := time.Parse("2006-01-02 15:04:05", s); err == nil {
		return t
	}
	return time.Time{}
}
