package watcher

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// syncRecorder counts watcher-triggered syncs per source.
type syncRecorder struct {
	mu    sync.Mutex
	calls map[string]int
}

func (r *syncRecorder) fn(_ context.Context, source string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.calls == nil {
		r.calls = make(map[string]int)
	}
	r.calls[source]++
	return nil
}

func (r *syncRecorder) count(source string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[source]
}

// testProbeCache returns a ProbeCache with the given dirs marked as
// supported.
func testProbeCache(dirs ...string) *ProbeCache {
	pc := NewProbeCache()
	for _, d := range dirs {
		pc.Set(d, true)
	}
	return pc
}

func writeExport(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
}

func TestExportChangeTriggersSync(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "albums.csv")
	writeExport(t, path, "header\n")

	rec := &syncRecorder{}
	svc := NewService(rec.fn, []Target{{Source: "roon_albums", Path: path}}, testProbeCache(dir), testLogger())
	svc.SetDebounce(50 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go svc.Start(ctx)
	time.Sleep(100 * time.Millisecond) // let watcher initialize

	writeExport(t, path, "header\nrow\n")

	time.Sleep(300 * time.Millisecond)
	cancel()
	time.Sleep(50 * time.Millisecond)

	if got := rec.count("roon_albums"); got != 1 {
		t.Errorf("expected 1 sync, got %d", got)
	}
}

func TestMultipleWritesCoalesce(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "albums.csv")
	writeExport(t, path, "header\n")

	rec := &syncRecorder{}
	svc := NewService(rec.fn, []Target{{Source: "roon_albums", Path: path}}, testProbeCache(dir), testLogger())
	svc.SetDebounce(50 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go svc.Start(ctx)
	time.Sleep(100 * time.Millisecond)

	for i := 0; i < 5; i++ {
		writeExport(t, path, "header\nrow\n")
		time.Sleep(5 * time.Millisecond)
	}

	time.Sleep(300 * time.Millisecond)
	cancel()
	time.Sleep(50 * time.Millisecond)

	if got := rec.count("roon_albums"); got != 1 {
		t.Errorf("expected 1 coalesced sync, got %d", got)
	}
}

func TestUnrelatedFileIgnored(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "albums.csv")
	writeExport(t, path, "header\n")

	rec := &syncRecorder{}
	svc := NewService(rec.fn, []Target{{Source: "roon_albums", Path: path}}, testProbeCache(dir), testLogger())
	svc.SetDebounce(50 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go svc.Start(ctx)
	time.Sleep(100 * time.Millisecond)

	writeExport(t, filepath.Join(dir, "notes.txt"), "unrelated\n")

	time.Sleep(300 * time.Millisecond)
	cancel()
	time.Sleep(50 * time.Millisecond)

	if got := rec.count("roon_albums"); got != 0 {
		t.Errorf("expected 0 syncs for an unrelated file, got %d", got)
	}
}

func TestNewExportFileTriggersSync(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "play_history.json")

	rec := &syncRecorder{}
	svc := NewService(rec.fn, []Target{{Source: "roon_play_history", Path: path}}, testProbeCache(dir), testLogger())
	svc.SetDebounce(50 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go svc.Start(ctx)
	time.Sleep(100 * time.Millisecond)

	// The first export lands after the watcher is already running.
	writeExport(t, path, "[]")

	time.Sleep(300 * time.Millisecond)
	cancel()
	time.Sleep(50 * time.Millisecond)

	if got := rec.count("roon_play_history"); got != 1 {
		t.Errorf("expected 1 sync for the new export, got %d", got)
	}
}

func TestPollDetectsChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "albums.csv")
	writeExport(t, path, "header\n")

	rec := &syncRecorder{}
	svc := NewService(rec.fn, []Target{{Source: "roon_albums", Path: path}}, NewProbeCache(), testLogger())
	svc.initMtimes()

	if svc.pollTargets() {
		t.Fatal("poll reported a change with nothing modified")
	}

	// Directory mtime resolution can swallow a quick rewrite; bump the
	// file's mtime explicitly.
	future := time.Now().Add(2 * time.Second)
	if err := os.Chtimes(path, future, future); err != nil {
		t.Fatal(err)
	}

	if !svc.pollTargets() {
		t.Fatal("poll missed the mtime change")
	}
	svc.runPending(context.Background())

	if got := rec.count("roon_albums"); got != 1 {
		t.Errorf("expected 1 sync from poll, got %d", got)
	}

	// The change was consumed; the next poll is quiet.
	if svc.pollTargets() {
		t.Error("poll re-reported a change already synced")
	}
}

func TestPollDetectsNewFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tracks.csv")

	rec := &syncRecorder{}
	svc := NewService(rec.fn, []Target{{Source: "roon_tracks", Path: path}}, NewProbeCache(), testLogger())
	svc.initMtimes()

	writeExport(t, path, "header\n")

	if !svc.pollTargets() {
		t.Fatal("poll missed the new export file")
	}
	svc.runPending(context.Background())

	if got := rec.count("roon_tracks"); got != 1 {
		t.Errorf("expected 1 sync, got %d", got)
	}
}

func TestUnsupportedDirSkipsWatch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "albums.csv")
	writeExport(t, path, "header\n")

	pc := NewProbeCache()
	pc.Set(dir, false)

	rec := &syncRecorder{}
	svc := NewService(rec.fn, []Target{{Source: "roon_albums", Path: path}}, pc, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go svc.Start(ctx)
	time.Sleep(100 * time.Millisecond)

	svc.mu.Lock()
	watchCount := len(svc.watching)
	svc.mu.Unlock()

	cancel()
	time.Sleep(50 * time.Millisecond)

	if watchCount != 0 {
		t.Errorf("expected 0 watched dirs when probed unsupported, got %d", watchCount)
	}
}

func TestContextCancellation(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "albums.csv")
	writeExport(t, path, "header\n")

	rec := &syncRecorder{}
	svc := NewService(rec.fn, []Target{{Source: "roon_albums", Path: path}}, testProbeCache(dir), testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		svc.Start(ctx)
		close(done)
	}()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case <-done:
		// Start returned cleanly.
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after context cancellation")
	}
}

func TestTargetDirs(t *testing.T) {
	targets := []Target{
		{Source: "roon_albums", Path: "/exports/albums.csv"},
		{Source: "roon_tags", Path: "/exports/tags.csv"},
		{Source: "roon_play_history", Path: "/exports/history/plays.json"},
		{Source: "discogs_collection", Path: ""},
	}
	dirs := TargetDirs(targets)
	if len(dirs) != 2 {
		t.Fatalf("got %d dirs, want 2: %v", len(dirs), dirs)
	}
	if dirs[0] != "/exports" || dirs[1] != "/exports/history" {
		t.Errorf("dirs = %v", dirs)
	}
}
