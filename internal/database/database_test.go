package database

import (
	"path/filepath"
	"testing"
)

func TestOpenAndMigrate(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "data", "milkcrate.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := Migrate(db); err != nil {
		t.Fatalf("Migrate: %v", err)
	}

	for _, table := range []string{
		"digital_albums", "digital_tracks", "play_history",
		"physical_records", "physical_tracks", "wantlist_entries",
		"sync_state", "sync_history", "listening_history", "live_show_matches",
	} {
		var name string
		err := db.QueryRow(
			`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %s missing after migration: %v", table, err)
		}
	}

	version, err := Version(db)
	if err != nil {
		t.Fatalf("Version: %v", err)
	}
	if version < 3 {
		t.Errorf("schema version = %d, want >= 3", version)
	}
}

func TestMigrateIdempotent(t *testing.T) {
	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := Migrate(db); err != nil {
		t.Fatalf("first Migrate: %v", err)
	}
	if err := Migrate(db); err != nil {
		t.Fatalf("second Migrate: %v", err)
	}
}

func TestForeignKeysEnforced(t *testing.T) {
	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := Migrate(db); err != nil {
		t.Fatalf("Migrate: %v", err)
	}

	_, err = db.Exec(`
		INSERT INTO physical_tracks (id, record_id, release_id, title, created_at)
		VALUES ('t1', 'no-such-record', 1, 'Track', '2024-01-01T00:00:00Z')
	`)
	if err == nil {
		t.Fatal("expected a foreign key violation for an orphan track")
	}
}
