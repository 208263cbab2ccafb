// Package catalog stores and queries the reconciled music collections:
// digital albums and plays from Roon exports, physical records and the
// wantlist from Discogs, plus the listening log and live-show links
// built on top of them.
package catalog

import (
	"database/sql"
	"time"
)

// DigitalAlbum is a streaming-library album imported from a Roon
// export. Normalized fields and the match key are recomputed on every
// upsert that changes title or artist.
type DigitalAlbum struct {
	ID                  string    `json:"id"`
	ItemKey             string    `json:"item_key"`
	Title               string    `json:"title"`
	Artist              string    `json:"artist"`
	ImageKey            string    `json:"image_key,omitempty"`
	ArtistNorm          string    `json:"-"`
	AlbumNorm           string    `json:"-"`
	MatchKey            string    `json:"match_key"`
	IsPhysicalDuplicate bool      `json:"is_physical_duplicate"`
	PhysicalTag         string    `json:"physical_tag,omitempty"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// DigitalTrack is one track row from a Roon library export. Tracks are
// replaced wholesale on each sync, so they carry no album foreign key.
type DigitalTrack struct {
	ID           string    `json:"id"`
	AlbumArtist  string    `json:"album_artist"`
	Album        string    `json:"album"`
	DiscNumber   int       `json:"disc_number,omitempty"`
	TrackNumber  int       `json:"track_number,omitempty"`
	Title        string    `json:"title"`
	TrackArtists string    `json:"track_artists,omitempty"`
	Composers    string    `json:"composers,omitempty"`
	ExternalID   string    `json:"external_id,omitempty"`
	Source       string    `json:"source,omitempty"`
	IsDuplicate  bool      `json:"is_duplicate"`
	IsHidden     bool      `json:"is_hidden"`
	Tags         string    `json:"tags,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// PlayEvent is one play-history row from a Roon export.
type PlayEvent struct {
	ID           string     `json:"id"`
	AlbumArtist  string     `json:"album_artist"`
	Album        string     `json:"album"`
	DiscNumber   int        `json:"disc_number,omitempty"`
	TrackNumber  int        `json:"track_number,omitempty"`
	Title        string     `json:"title"`
	TrackArtists string     `json:"track_artists,omitempty"`
	Composers    string     `json:"composers,omitempty"`
	ExternalID   string     `json:"external_id,omitempty"`
	Source       string     `json:"source,omitempty"`
	PlayedAt     *time.Time `json:"played_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// PhysicalRecord is one release in the Discogs collection. ReleaseID
// is the natural key; the row id stays stable across syncs so the
// listening log and live-show links survive re-imports.
type PhysicalRecord struct {
	ID              string     `json:"id"`
	ReleaseID       int64      `json:"release_id"`
	InstanceID      int64      `json:"instance_id,omitempty"`
	Artist          string     `json:"artist"`
	Title           string     `json:"title"`
	Label           string     `json:"label,omitempty"`
	Format          string     `json:"format,omitempty"`
	Year            int        `json:"year,omitempty"`
	DateAdded       string     `json:"date_added,omitempty"`
	Rating          int        `json:"rating,omitempty"`
	FolderID        int        `json:"folder_id,omitempty"`
	ArtistNorm      string     `json:"-"`
	AlbumNorm       string     `json:"-"`
	MatchKey        string     `json:"match_key"`
	NumForSale      int        `json:"num_for_sale"`
	LowestPrice     float64    `json:"lowest_price,omitempty"`
	ThumbURL        string     `json:"thumb_url,omitempty"`
	CoverURL        string     `json:"cover_url,omitempty"`
	MediaCondition  string     `json:"media_condition,omitempty"`
	SleeveCondition string     `json:"sleeve_condition,omitempty"`
	LastListened    *time.Time `json:"last_listened,omitempty"`
	Notes           string     `json:"notes,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// PhysicalTrack is one tracklist entry for a collection release,
// fetched from Discogs on demand and cached locally.
type PhysicalTrack struct {
	ID           string    `json:"id"`
	RecordID     string    `json:"record_id"`
	ReleaseID    int64     `json:"release_id"`
	Position     string    `json:"position,omitempty"`
	Title        string    `json:"title"`
	Duration     string    `json:"duration,omitempty"`
	Artists      string    `json:"artists,omitempty"`
	ExtraArtists string    `json:"extra_artists,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// WantlistEntry is one release on the Discogs wantlist, annotated with
// marketplace availability.
type WantlistEntry struct {
	ID             string    `json:"id"`
	ReleaseID      int64     `json:"release_id"`
	Artist         string    `json:"artist"`
	Title          string    `json:"title"`
	Label          string    `json:"label,omitempty"`
	Format         string    `json:"format,omitempty"`
	Year           int       `json:"year,omitempty"`
	DateAdded      string    `json:"date_added,omitempty"`
	Notes          string    `json:"notes,omitempty"`
	NumForSale     int       `json:"num_for_sale"`
	LowestPrice    float64   `json:"lowest_price,omitempty"`
	Available      bool      `json:"available"`
	MarketplaceURL string    `json:"marketplace_url,omitempty"`
	ThumbURL       string    `json:"thumb_url,omitempty"`
	CoverURL       string    `json:"cover_url,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Listening event sources.
const (
	ListenSourceRoon    = "roon"
	ListenSourceDiscogs = "discogs"
	ListenSourceBoth    = "both"
)

// ValidListenSource reports whether s is a storable listening source.
func ValidListenSource(s string) bool {
	switch s {
	case ListenSourceRoon, ListenSourceDiscogs, ListenSourceBoth:
		return true
	}
	return false
}

// ListeningEvent is one entry in the manual listening log. The album
// links are best-effort match-key lookups and go null when the linked
// row is deleted.
type ListeningEvent struct {
	ID               string    `json:"id"`
	Artist           string    `json:"artist"`
	Album            string    `json:"album"`
	Source           string    `json:"source"`
	ListenedAt       time.Time `json:"listened_at"`
	Format           string    `json:"format,omitempty"`
	Notes            string    `json:"notes,omitempty"`
	DigitalAlbumID   string    `json:"digital_album_id,omitempty"`
	PhysicalRecordID string    `json:"physical_record_id,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

// LiveShowMatch links a live recording in the digital library to the
// official release it corresponds to. Confidence "manual" rows are
// user assignments and are never touched by a rebuild.
type LiveShowMatch struct {
	ID               string    `json:"id"`
	DigitalAlbumID   string    `json:"digital_album_id,omitempty"`
	PhysicalRecordID string    `json:"physical_record_id,omitempty"`
	Artist           string    `json:"artist"`
	ShowDate         string    `json:"show_date"`
	Venue            string    `json:"venue,omitempty"`
	BootlegTitle     string    `json:"bootleg_title"`
	MatchedTitle     string    `json:"matched_title,omitempty"`
	Confidence       string    `json:"confidence"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// UnifiedEntry is one row of the merged digital-plus-physical
// collection view.
type UnifiedEntry struct {
	Source              string `json:"source"`
	ID                  string `json:"id"`
	Artist              string `json:"artist"`
	Title               string `json:"title"`
	Year                int    `json:"year,omitempty"`
	Format              string `json:"format,omitempty"`
	ImageRef            string `json:"image_ref,omitempty"`
	IsPhysicalDuplicate bool   `json:"is_physical_duplicate"`
	PhysicalTag         string `json:"physical_tag,omitempty"`
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func formatNullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format(time.RFC3339)
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
