package catalog

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/sydlexius/milkcrate/internal/database"
	"github.com/sydlexius/milkcrate/internal/match"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("running migrations: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// backdate rewrites a row's updated_at so tests can tell a no-op
// upsert from a real one.
func backdate(t *testing.T, db *sql.DB, table, id string) {
	t.Helper()
	if _, err := db.Exec(
		"UPDATE "+table+" SET updated_at = '2020-01-01T00:00:00Z' WHERE id = ?", id); err != nil {
		t.Fatalf("backdating %s: %v", table, err)
	}
}

func updatedAt(t *testing.T, db *sql.DB, table, id string) string {
	t.Helper()
	var ts string
	if err := db.QueryRow(
		"SELECT updated_at FROM "+table+" WHERE id = ?", id).Scan(&ts); err != nil {
		t.Fatalf("reading updated_at from %s: %v", table, err)
	}
	return ts
}

func mustUpsertAlbum(t *testing.T, svc *DigitalService, itemKey, artist, title string) DigitalAlbum {
	t.Helper()
	ctx := context.Background()
	if err := svc.UpsertAlbum(ctx, AlbumInput{ItemKey: itemKey, Title: title, Artist: artist}); err != nil {
		t.Fatalf("UpsertAlbum(%s): %v", itemKey, err)
	}
	albums, _, err := svc.ListAlbums(ctx, AlbumListParams{Search: title})
	if err != nil {
		t.Fatalf("ListAlbums: %v", err)
	}
	for _, a := range albums {
		if a.ItemKey == itemKey {
			return a
		}
	}
	t.Fatalf("album %s not found after upsert", itemKey)
	return DigitalAlbum{}
}

func TestUpsertAlbum(t *testing.T) {
	db := setupTestDB(t)
	svc := NewDigitalService(db)
	ctx := context.Background()

	a := mustUpsertAlbum(t, svc, "item-1", "Neil Young", "Tonight's The Night")
	if a.MatchKey != "neil young - tonights the night" {
		t.Errorf("MatchKey = %q, want %q", a.MatchKey, "neil young - tonights the night")
	}
	if a.ArtistNorm != "neil young" {
		t.Errorf("ArtistNorm = %q", a.ArtistNorm)
	}
	if a.IsPhysicalDuplicate {
		t.Error("new album must not be flagged as duplicate")
	}

	// Re-importing identical content must not rewrite the row.
	backdate(t, db, "digital_albums", a.ID)
	if err := svc.UpsertAlbum(ctx, AlbumInput{ItemKey: "item-1", Title: "Tonight's The Night", Artist: "Neil Young"}); err != nil {
		t.Fatalf("UpsertAlbum repeat: %v", err)
	}
	if got := updatedAt(t, db, "digital_albums", a.ID); got != "2020-01-01T00:00:00Z" {
		t.Errorf("no-op upsert rewrote updated_at to %s", got)
	}

	// A content change keeps the id and recomputes derived fields.
	if err := svc.UpsertAlbum(ctx, AlbumInput{ItemKey: "item-1", Title: "On The Beach", Artist: "Neil Young"}); err != nil {
		t.Fatalf("UpsertAlbum change: %v", err)
	}
	got, err := svc.GetAlbum(ctx, a.ID)
	if err != nil {
		t.Fatalf("GetAlbum: %v", err)
	}
	if got.Title != "On The Beach" {
		t.Errorf("Title = %q, want %q", got.Title, "On The Beach")
	}
	if got.MatchKey != "neil young - on the beach" {
		t.Errorf("MatchKey = %q, want %q", got.MatchKey, "neil young - on the beach")
	}
	if ts := updatedAt(t, db, "digital_albums", a.ID); ts == "2020-01-01T00:00:00Z" {
		t.Error("content change did not refresh updated_at")
	}

	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM digital_albums").Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("album count = %d, want 1", count)
	}
}

func TestUpsertAlbumValidation(t *testing.T) {
	db := setupTestDB(t)
	svc := NewDigitalService(db)
	ctx := context.Background()

	tests := []AlbumInput{
		{Title: "Harvest", Artist: "Neil Young"},
		{ItemKey: "k", Artist: "Neil Young"},
		{ItemKey: "k", Title: "Harvest"},
	}
	for _, in := range tests {
		if err := svc.UpsertAlbum(ctx, in); err == nil {
			t.Errorf("expected validation error for %+v", in)
		}
	}
}

func TestPruneAlbums(t *testing.T) {
	db := setupTestDB(t)
	svc := NewDigitalService(db)
	ctx := context.Background()

	mustUpsertAlbum(t, svc, "item-1", "Neil Young", "Harvest")
	mustUpsertAlbum(t, svc, "item-2", "Neil Young", "Zuma")
	mustUpsertAlbum(t, svc, "item-3", "Neil Young", "Decade")

	n, err := svc.PruneAlbums(ctx, []string{"item-1", "item-3"})
	if err != nil {
		t.Fatalf("PruneAlbums: %v", err)
	}
	if n != 1 {
		t.Errorf("pruned %d, want 1", n)
	}

	albums, total, err := svc.ListAlbums(ctx, AlbumListParams{})
	if err != nil {
		t.Fatalf("ListAlbums: %v", err)
	}
	if total != 2 {
		t.Errorf("total = %d, want 2", total)
	}
	for _, a := range albums {
		if a.ItemKey == "item-2" {
			t.Error("pruned album still present")
		}
	}

	// An empty keep set must not wipe the table.
	n, err = svc.PruneAlbums(ctx, nil)
	if err != nil {
		t.Fatalf("PruneAlbums(nil): %v", err)
	}
	if n != 0 {
		t.Errorf("pruned %d with empty keep set, want 0", n)
	}
}

func TestPhysicalTagFlow(t *testing.T) {
	db := setupTestDB(t)
	svc := NewDigitalService(db)
	ctx := context.Background()
	policy := match.NewPolicy(map[string]string{"myCDs": "CD", "myLPs": "LP"}, []string{"CD", "LP"})

	a := mustUpsertAlbum(t, svc, "item-1", "Neil Young", "Harvest")
	mustUpsertAlbum(t, svc, "item-2", "Neil Young", "Zuma")

	// LP first, CD second: CD outranks and wins.
	if _, err := svc.UpgradePhysicalTag(ctx, "harvest", "LP", policy); err != nil {
		t.Fatalf("UpgradePhysicalTag(LP): %v", err)
	}
	n, err := svc.UpgradePhysicalTag(ctx, "HARVEST", "CD", policy)
	if err != nil {
		t.Fatalf("UpgradePhysicalTag(CD): %v", err)
	}
	if n != 1 {
		t.Errorf("matched %d albums, want 1", n)
	}

	got, err := svc.GetAlbum(ctx, a.ID)
	if err != nil {
		t.Fatalf("GetAlbum: %v", err)
	}
	if !got.IsPhysicalDuplicate || got.PhysicalTag != "CD" {
		t.Errorf("flag = %v/%q, want true/CD", got.IsPhysicalDuplicate, got.PhysicalTag)
	}

	// CD first, LP second: CD must survive.
	if _, err := svc.UpgradePhysicalTag(ctx, "Harvest", "LP", policy); err != nil {
		t.Fatalf("UpgradePhysicalTag(LP again): %v", err)
	}
	got, _ = svc.GetAlbum(ctx, a.ID)
	if got.PhysicalTag != "CD" {
		t.Errorf("PhysicalTag = %q after LP reapply, want CD", got.PhysicalTag)
	}

	if err := svc.ClearPhysicalTags(ctx); err != nil {
		t.Fatalf("ClearPhysicalTags: %v", err)
	}
	got, _ = svc.GetAlbum(ctx, a.ID)
	if got.IsPhysicalDuplicate || got.PhysicalTag != "" {
		t.Errorf("flag = %v/%q after clear, want false/empty", got.IsPhysicalDuplicate, got.PhysicalTag)
	}
}

func TestListAlbumsHideDuplicates(t *testing.T) {
	db := setupTestDB(t)
	svc := NewDigitalService(db)
	ctx := context.Background()
	policy := match.NewPolicy(map[string]string{"myCDs": "CD"}, []string{"CD"})

	mustUpsertAlbum(t, svc, "item-1", "Neil Young", "Harvest")
	mustUpsertAlbum(t, svc, "item-2", "Neil Young", "Zuma")
	if _, err := svc.UpgradePhysicalTag(ctx, "Harvest", "CD", policy); err != nil {
		t.Fatalf("UpgradePhysicalTag: %v", err)
	}

	_, total, err := svc.ListAlbums(ctx, AlbumListParams{})
	if err != nil {
		t.Fatalf("ListAlbums: %v", err)
	}
	if total != 2 {
		t.Errorf("total = %d, want 2", total)
	}

	albums, total, err := svc.ListAlbums(ctx, AlbumListParams{HideDuplicates: true})
	if err != nil {
		t.Fatalf("ListAlbums(hide): %v", err)
	}
	if total != 1 || len(albums) != 1 || albums[0].Title != "Zuma" {
		t.Errorf("hide duplicates returned %d/%d albums", len(albums), total)
	}
}

func TestListBootlegs(t *testing.T) {
	db := setupTestDB(t)
	svc := NewDigitalService(db)
	ctx := context.Background()

	mustUpsertAlbum(t, svc, "item-1", "Neil Young", "1974 06/26 Providence Civic Center")
	// Shaped like a header but not a real date; must be filtered out.
	mustUpsertAlbum(t, svc, "item-2", "Neil Young", "1974 13/40 Nowhere")
	mustUpsertAlbum(t, svc, "item-3", "Neil Young", "Harvest")

	bootlegs, err := svc.ListBootlegs(ctx, "")
	if err != nil {
		t.Fatalf("ListBootlegs: %v", err)
	}
	if len(bootlegs) != 1 {
		t.Fatalf("got %d bootlegs, want 1", len(bootlegs))
	}
	if bootlegs[0].ItemKey != "item-1" {
		t.Errorf("bootleg = %s, want item-1", bootlegs[0].ItemKey)
	}

	bootlegs, err = svc.ListBootlegs(ctx, "Bob Dylan")
	if err != nil {
		t.Fatalf("ListBootlegs(artist): %v", err)
	}
	if len(bootlegs) != 0 {
		t.Errorf("got %d bootlegs for other artist, want 0", len(bootlegs))
	}
}

func TestTracksAndPlays(t *testing.T) {
	db := setupTestDB(t)
	svc := NewDigitalService(db)
	ctx := context.Background()

	for i, title := range []string{"Vampire Blues", "Revolution Blues"} {
		err := svc.InsertTrack(ctx, &DigitalTrack{
			AlbumArtist: "Neil Young",
			Album:       "On The Beach",
			TrackNumber: i + 1,
			Title:       title,
		})
		if err != nil {
			t.Fatalf("InsertTrack: %v", err)
		}
	}

	tracks, err := svc.ListTracksForAlbum(ctx, "Neil Young", "On The Beach")
	if err != nil {
		t.Fatalf("ListTracksForAlbum: %v", err)
	}
	if len(tracks) != 2 {
		t.Fatalf("got %d tracks, want 2", len(tracks))
	}
	if tracks[0].Title != "Vampire Blues" || tracks[0].TrackNumber != 1 {
		t.Errorf("first track = %q #%d", tracks[0].Title, tracks[0].TrackNumber)
	}

	if err := svc.DeleteAllTracks(ctx); err != nil {
		t.Fatalf("DeleteAllTracks: %v", err)
	}
	tracks, err = svc.ListTracksForAlbum(ctx, "Neil Young", "On The Beach")
	if err != nil {
		t.Fatalf("ListTracksForAlbum after clear: %v", err)
	}
	if len(tracks) != 0 {
		t.Errorf("got %d tracks after clear, want 0", len(tracks))
	}

	if err := svc.InsertPlay(ctx, &PlayEvent{AlbumArtist: "Neil Young", Album: "Zuma", Title: "Danger Bird"}); err != nil {
		t.Fatalf("InsertPlay: %v", err)
	}
	var plays int
	if err := db.QueryRow("SELECT COUNT(*) FROM play_history").Scan(&plays); err != nil {
		t.Fatal(err)
	}
	if plays != 1 {
		t.Errorf("play count = %d, want 1", plays)
	}
	if err := svc.DeleteAllPlays(ctx); err != nil {
		t.Fatalf("DeleteAllPlays: %v", err)
	}
}

func TestBootlegArtists(t *testing.T) {
	db := setupTestDB(t)
	svc := NewDigitalService(db)
	ctx := context.Background()

	mustUpsertAlbum(t, svc, "item-1", "Neil Young", "1974 06/26 Providence Civic Center")
	mustUpsertAlbum(t, svc, "item-2", "Neil Young", "1976 11/24 Chicago")
	mustUpsertAlbum(t, svc, "item-3", "Grateful Dead", "1977 05/08 Barton Hall")
	// Impossible date; not a bootleg.
	mustUpsertAlbum(t, svc, "item-4", "Grateful Dead", "1977 13/40 Nowhere")
	mustUpsertAlbum(t, svc, "item-5", "Neil Young", "Harvest")

	artists, err := svc.BootlegArtists(ctx)
	if err != nil {
		t.Fatalf("BootlegArtists: %v", err)
	}
	if len(artists) != 2 {
		t.Fatalf("got %d artists, want 2", len(artists))
	}
	if artists[0].Artist != "Neil Young" || artists[0].ShowCount != 2 {
		t.Errorf("first = %s/%d, want Neil Young/2", artists[0].Artist, artists[0].ShowCount)
	}
	if artists[1].Artist != "Grateful Dead" || artists[1].ShowCount != 1 {
		t.Errorf("second = %s/%d, want Grateful Dead/1", artists[1].Artist, artists[1].ShowCount)
	}
}

func TestUpdatePlayPlayedAt(t *testing.T) {
	db := setupTestDB(t)
	svc := NewDigitalService(db)
	ctx := context.Background()

	p := &PlayEvent{AlbumArtist: "Neil Young", Album: "Zuma", Title: "Danger Bird"}
	if err := svc.InsertPlay(ctx, p); err != nil {
		t.Fatalf("InsertPlay: %v", err)
	}

	got, err := svc.GetPlay(ctx, p.ID)
	if err != nil {
		t.Fatalf("GetPlay: %v", err)
	}
	if got.PlayedAt != nil {
		t.Errorf("played at = %v, want nil", got.PlayedAt)
	}

	when := time.Date(2024, 3, 9, 21, 30, 0, 0, time.UTC)
	if err := svc.UpdatePlayPlayedAt(ctx, p.ID, when); err != nil {
		t.Fatalf("UpdatePlayPlayedAt: %v", err)
	}
	got, err = svc.GetPlay(ctx, p.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.PlayedAt == nil || !got.PlayedAt.Equal(when) {
		t.Errorf("played at = %v, want %v", got.PlayedAt, when)
	}

	if err := svc.UpdatePlayPlayedAt(ctx, "no-such-id", when); err == nil {
		t.Error("expected error for unknown play event")
	}
	if _, err := svc.GetPlay(ctx, "no-such-id"); err == nil {
		t.Error("expected error for unknown play event")
	}
}
