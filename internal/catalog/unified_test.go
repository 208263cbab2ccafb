package catalog

import (
	"context"
	"testing"

	"github.com/sydlexius/milkcrate/internal/match"
)

func TestUnifiedCollection(t *testing.T) {
	db := setupTestDB(t)
	digital := NewDigitalService(db)
	physical := NewPhysicalService(db)
	unified := NewUnifiedService(db)
	ctx := context.Background()
	policy := match.NewPolicy(map[string]string{"myLPs": "LP"}, []string{"CD", "LP"})

	mustUpsertAlbum(t, digital, "item-1", "Neil Young", "Harvest")
	mustUpsertAlbum(t, digital, "item-2", "Can", "Tago Mago")
	if err := physical.UpsertRecord(ctx, testRecordInput(101, "Neil Young", "Harvest")); err != nil {
		t.Fatal(err)
	}
	if _, err := digital.UpgradePhysicalTag(ctx, "Harvest", "LP", policy); err != nil {
		t.Fatal(err)
	}

	entries, totals, err := unified.Collection(ctx, UnifiedParams{})
	if err != nil {
		t.Fatalf("Collection: %v", err)
	}
	if totals.Total != 3 || len(entries) != 3 {
		t.Fatalf("got %d/%d entries, want 3", len(entries), totals.Total)
	}
	if totals.Digital != 2 || totals.Physical != 1 {
		t.Errorf("side totals = %d/%d, want 2 digital, 1 physical", totals.Digital, totals.Physical)
	}
	// Sorted by artist: Can before Neil Young.
	if entries[0].Artist != "Can" {
		t.Errorf("first entry = %s, want Can", entries[0].Artist)
	}

	// Hiding duplicates collapses the flagged digital copy, keeping
	// the physical one.
	entries, totals, err = unified.Collection(ctx, UnifiedParams{HideDuplicates: true})
	if err != nil {
		t.Fatal(err)
	}
	if totals.Total != 2 {
		t.Fatalf("hide duplicates total = %d, want 2", totals.Total)
	}
	for _, e := range entries {
		if e.Source == "digital" && e.Title == "Harvest" {
			t.Error("flagged duplicate still visible")
		}
	}

	// Search spans both sides.
	_, totals, err = unified.Collection(ctx, UnifiedParams{Search: "harvest"})
	if err != nil {
		t.Fatal(err)
	}
	if totals.Total != 2 {
		t.Errorf("search total = %d, want 2", totals.Total)
	}
}

func TestUnifiedCollectionPagination(t *testing.T) {
	db := setupTestDB(t)
	digital := NewDigitalService(db)
	unified := NewUnifiedService(db)
	ctx := context.Background()

	titles := []string{"Harvest", "Zuma", "Decade", "On The Beach"}
	for i, title := range titles {
		mustUpsertAlbum(t, digital, string(rune('a'+i)), "Neil Young", title)
	}

	page1, totals, err := unified.Collection(ctx, UnifiedParams{Page: 1, PageSize: 3})
	if err != nil {
		t.Fatal(err)
	}
	if totals.Total != 4 || len(page1) != 3 {
		t.Fatalf("page 1: %d/%d, want 3 of 4", len(page1), totals.Total)
	}
	page2, _, err := unified.Collection(ctx, UnifiedParams{Page: 2, PageSize: 3})
	if err != nil {
		t.Fatal(err)
	}
	if len(page2) != 1 {
		t.Fatalf("page 2: %d entries, want 1", len(page2))
	}
}

func TestUnifiedSearch(t *testing.T) {
	db := setupTestDB(t)
	digital := NewDigitalService(db)
	physical := NewPhysicalService(db)
	unified := NewUnifiedService(db)
	ctx := context.Background()

	mustUpsertAlbum(t, digital, "item-1", "Neil Young", "Harvest")
	mustUpsertAlbum(t, digital, "item-2", "Can", "Tago Mago")
	if err := physical.UpsertRecord(ctx, testRecordInput(101, "Neil Young", "Harvest Moon")); err != nil {
		t.Fatal(err)
	}

	// Both sides match on title.
	entries, totals, err := unified.Search(ctx, SearchParams{Query: "harvest"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if totals.Total != 2 || totals.Digital != 1 || totals.Physical != 1 {
		t.Fatalf("totals = %+v, want 2 split 1/1", totals)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}

	// Restricting to one side drops the other.
	entries, totals, err = unified.Search(ctx, SearchParams{Query: "harvest", Source: SearchSourcePhysical})
	if err != nil {
		t.Fatal(err)
	}
	if totals.Total != 1 || len(entries) != 1 {
		t.Fatalf("physical-only: %d/%d, want 1", len(entries), totals.Total)
	}
	if entries[0].Source != "physical" {
		t.Errorf("source = %s, want physical", entries[0].Source)
	}

	// Artist matches too.
	_, totals, err = unified.Search(ctx, SearchParams{Query: "neil"})
	if err != nil {
		t.Fatal(err)
	}
	if totals.Total != 2 {
		t.Errorf("artist search total = %d, want 2", totals.Total)
	}

	// Unknown source falls back to all.
	_, totals, err = unified.Search(ctx, SearchParams{Query: "tago", Source: "vinyl"})
	if err != nil {
		t.Fatal(err)
	}
	if totals.Total != 1 {
		t.Errorf("fallback search total = %d, want 1", totals.Total)
	}
}
