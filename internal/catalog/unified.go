package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// UnifiedService merges the digital library and the physical
// collection into one browsable view.
type UnifiedService struct {
	db *sql.DB
}

// NewUnifiedService creates a unified collection service.
func NewUnifiedService(db *sql.DB) *UnifiedService {
	return &UnifiedService{db: db}
}

// unifiedBase is the merged relation both the page and count queries
// select from. Physical rows never carry a duplicate flag; the flag
// marks digital albums also owned physically.
const unifiedBase = ` FROM (
	SELECT 'digital' AS source, id, artist, title, NULL AS year, NULL AS format,
		image_key AS image_ref, is_physical_duplicate, physical_tag
	FROM digital_albums
	UNION ALL
	SELECT 'physical' AS source, id, artist, title, year, format,
		cover_url AS image_ref, 0 AS is_physical_duplicate, NULL AS physical_tag
	FROM physical_records
)`

// UnifiedTotals breaks the merged collection count down by side.
type UnifiedTotals struct {
	Total    int `json:"total"`
	Digital  int `json:"digital"`
	Physical int `json:"physical"`
}

// Collection returns one page of the merged collection and its totals.
// With HideDuplicates set, digital albums flagged as physical
// duplicates are collapsed out so each release appears once.
func (s *UnifiedService) Collection(ctx context.Context, params UnifiedParams) ([]UnifiedEntry, UnifiedTotals, error) {
	params.Validate()

	var conditions []string
	var args []any
	if params.HideDuplicates {
		conditions = append(conditions, "NOT (source = 'digital' AND is_physical_duplicate = 1)")
	}
	if params.Search != "" {
		conditions = append(conditions, "(artist LIKE ? OR title LIKE ?)")
		pattern := "%" + params.Search + "%"
		args = append(args, pattern, pattern)
	}
	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	totals, err := s.countSides(ctx, where, args)
	if err != nil {
		return nil, UnifiedTotals{}, fmt.Errorf("counting unified collection: %w", err)
	}

	offset := (params.Page - 1) * params.PageSize
	query := `SELECT source, id, artist, title, year, format, image_ref, is_physical_duplicate, physical_tag` +
		unifiedBase + where +
		` ORDER BY artist COLLATE NOCASE, title COLLATE NOCASE LIMIT ? OFFSET ?`
	args = append(args, params.PageSize, offset)

	entries, err := s.queryEntries(ctx, query, args)
	if err != nil {
		return nil, UnifiedTotals{}, err
	}
	return entries, totals, nil
}

// Search finds entries whose artist or title contains the query,
// across one or both collections.
func (s *UnifiedService) Search(ctx context.Context, params SearchParams) ([]UnifiedEntry, UnifiedTotals, error) {
	params.Validate()

	conditions := []string{"(artist LIKE ? OR title LIKE ?)"}
	pattern := "%" + params.Query + "%"
	args := []any{pattern, pattern}
	if params.Source != SearchSourceAll {
		conditions = append(conditions, "source = ?")
		args = append(args, params.Source)
	}
	where := " WHERE " + strings.Join(conditions, " AND ")

	totals, err := s.countSides(ctx, where, args)
	if err != nil {
		return nil, UnifiedTotals{}, fmt.Errorf("counting search results: %w", err)
	}

	offset := (params.Page - 1) * params.PageSize
	query := `SELECT source, id, artist, title, year, format, image_ref, is_physical_duplicate, physical_tag` +
		unifiedBase + where +
		` ORDER BY artist COLLATE NOCASE, title COLLATE NOCASE LIMIT ? OFFSET ?`
	args = append(args, params.PageSize, offset)

	entries, err := s.queryEntries(ctx, query, args)
	if err != nil {
		return nil, UnifiedTotals{}, err
	}
	return entries, totals, nil
}

func (s *UnifiedService) countSides(ctx context.Context, where string, args []any) (UnifiedTotals, error) {
	var t UnifiedTotals
	query := `SELECT COUNT(*),
		COALESCE(SUM(CASE WHEN source = 'digital' THEN 1 ELSE 0 END), 0),
		COALESCE(SUM(CASE WHEN source = 'physical' THEN 1 ELSE 0 END), 0)` +
		unifiedBase + where
	err := s.db.QueryRowContext(ctx, query, args...).Scan(&t.Total, &t.Digital, &t.Physical)
	return t, err
}

func (s *UnifiedService) queryEntries(ctx context.Context, query string, args []any) ([]UnifiedEntry, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing unified collection: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var entries []UnifiedEntry
	for rows.Next() {
		var e UnifiedEntry
		var year sql.NullInt64
		var format, imageRef, physicalTag sql.NullString
		var isDup int
		if err := rows.Scan(&e.Source, &e.ID, &e.Artist, &e.Title, &year, &format, &imageRef, &isDup, &physicalTag); err != nil {
			return nil, fmt.Errorf("scanning unified row: %w", err)
		}
		e.Year = int(year.Int64)
		e.Format = format.String
		e.ImageRef = imageRef.String
		e.IsPhysicalDuplicate = isDup == 1
		e.PhysicalTag = physicalTag.String
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
