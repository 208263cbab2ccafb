package stats

import (
	"context"
	"database/sql"
	"testing"

	"github.com/sydlexius/milkcrate/internal/catalog"
	"github.com/sydlexius/milkcrate/internal/database"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("opening database: %v", err)
	}
	t.Cleanup(func() {
		db.Close() //nolint:errcheck
	})
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrating database: %v", err)
	}
	return db
}

func seedCollections(t *testing.T, db *sql.DB) {
	t.Helper()
	ctx := context.Background()
	digital := catalog.NewDigitalService(db)
	physical := catalog.NewPhysicalService(db)

	albums := []catalog.AlbumInput{
		{ItemKey: "k1", Title: "Harvest", Artist: "Neil Young"},
		{ItemKey: "k2", Title: "On the Beach", Artist: "Neil Young"},
		{ItemKey: "k3", Title: "1974 06/26 Providence Civic Center", Artist: "Crazy Horse"},
		{ItemKey: "k4", Title: "1977 13/40 Nowhere", Artist: "Crazy Horse"},
	}
	for _, in := range albums {
		if err := digital.UpsertAlbum(ctx, in); err != nil {
			t.Fatalf("UpsertAlbum: %v", err)
		}
	}
	if err := digital.SetAlbumFlag(ctx, "k1", "CD"); err != nil {
		t.Fatalf("SetAlbumFlag: %v", err)
	}

	records := []catalog.RecordInput{
		{ReleaseID: 100, Artist: "Neil Young", Title: "Harvest", Format: "Vinyl"},
		{ReleaseID: 200, Artist: "Miles Davis", Title: "Kind of Blue", Format: "Vinyl"},
	}
	for _, in := range records {
		if err := physical.UpsertRecord(ctx, in); err != nil {
			t.Fatalf("UpsertRecord: %v", err)
		}
	}

	price := 24.99
	wants := []catalog.WantlistInput{
		{ReleaseID: 300, Artist: "Neil Young", Title: "Zuma", LowestPrice: &price, NumForSale: 3},
		{ReleaseID: 400, Artist: "Neil Young", Title: "Time Fades Away"},
	}
	for _, in := range wants {
		if err := physical.UpsertWantlistEntry(ctx, in); err != nil {
			t.Fatalf("UpsertWantlistEntry: %v", err)
		}
	}

	plays := []catalog.PlayEvent{
		{AlbumArtist: "Neil Young", Album: "Harvest", Title: "Heart of Gold"},
		{AlbumArtist: "Neil Young", Album: "Harvest", Title: "Old Man"},
		{AlbumArtist: "Neil Young", Album: "Harvest", Title: "Heart of Gold"},
		{AlbumArtist: "Neil Young", Album: "On the Beach", Title: "Walk On"},
	}
	for i := range plays {
		if err := digital.InsertPlay(ctx, &plays[i]); err != nil {
			t.Fatalf("InsertPlay: %v", err)
		}
	}
}

func TestOverview(t *testing.T) {
	ctx := context.Background()
	db := setupDB(t)
	seedCollections(t, db)
	svc := NewService(db)

	o, err := svc.Overview(ctx)
	if err != nil {
		t.Fatalf("Overview: %v", err)
	}
	if o.DigitalAlbums != 4 {
		t.Errorf("DigitalAlbums = %d, want 4", o.DigitalAlbums)
	}
	if o.PhysicalRecords != 2 {
		t.Errorf("PhysicalRecords = %d, want 2", o.PhysicalRecords)
	}
	if o.WantlistEntries != 2 {
		t.Errorf("WantlistEntries = %d, want 2", o.WantlistEntries)
	}
	if o.WantlistValue != 24.99 {
		t.Errorf("WantlistValue = %v, want 24.99", o.WantlistValue)
	}
	if o.PlayEvents != 4 {
		t.Errorf("PlayEvents = %d, want 4", o.PlayEvents)
	}
	// Harvest exists in both collections under the same match key.
	if o.AlbumsInBoth != 1 {
		t.Errorf("AlbumsInBoth = %d, want 1", o.AlbumsInBoth)
	}
	if o.PhysicalDuplicates != 1 {
		t.Errorf("PhysicalDuplicates = %d, want 1", o.PhysicalDuplicates)
	}
	// The 13/40 title looks date-prefixed but is not a real date.
	if o.Bootlegs != 1 {
		t.Errorf("Bootlegs = %d, want 1", o.Bootlegs)
	}
}

func TestOverviewCaches(t *testing.T) {
	ctx := context.Background()
	db := setupDB(t)
	seedCollections(t, db)
	svc := NewService(db)

	first, err := svc.Overview(ctx)
	if err != nil {
		t.Fatalf("Overview: %v", err)
	}

	digital := catalog.NewDigitalService(db)
	if err := digital.UpsertAlbum(ctx, catalog.AlbumInput{
		ItemKey: "k9", Title: "Tonight's the Night", Artist: "Neil Young",
	}); err != nil {
		t.Fatalf("UpsertAlbum: %v", err)
	}

	cached, err := svc.Overview(ctx)
	if err != nil {
		t.Fatalf("Overview: %v", err)
	}
	if cached.DigitalAlbums != first.DigitalAlbums {
		t.Errorf("DigitalAlbums = %d, want cached %d", cached.DigitalAlbums, first.DigitalAlbums)
	}

	svc.Invalidate()
	fresh, err := svc.Overview(ctx)
	if err != nil {
		t.Fatalf("Overview: %v", err)
	}
	if fresh.DigitalAlbums != first.DigitalAlbums+1 {
		t.Errorf("DigitalAlbums = %d, want %d after invalidation",
			fresh.DigitalAlbums, first.DigitalAlbums+1)
	}
}

func TestPlayCounts(t *testing.T) {
	ctx := context.Background()
	db := setupDB(t)
	seedCollections(t, db)
	svc := NewService(db)

	counts, err := svc.PlayCounts(ctx, 10)
	if err != nil {
		t.Fatalf("PlayCounts: %v", err)
	}
	if len(counts) != 2 {
		t.Fatalf("got %d albums, want 2", len(counts))
	}
	if counts[0].Album != "Harvest" || counts[0].Plays != 3 {
		t.Errorf("top album = %s/%d, want Harvest/3", counts[0].Album, counts[0].Plays)
	}
	if counts[1].Album != "On the Beach" || counts[1].Plays != 1 {
		t.Errorf("second album = %s/%d, want On the Beach/1", counts[1].Album, counts[1].Plays)
	}

	if counts, err = svc.PlayCounts(ctx, 1); err != nil || len(counts) != 1 {
		t.Fatalf("PlayCounts(1) = %d entries, err %v", len(counts), err)
	}
}

func TestPlayCountsEmpty(t *testing.T) {
	svc := NewService(setupDB(t))
	counts, err := svc.PlayCounts(context.Background(), 0)
	if err != nil {
		t.Fatalf("PlayCounts: %v", err)
	}
	if len(counts) != 0 {
		t.Errorf("got %d entries, want 0", len(counts))
	}
}
