// Package watcher reruns file-source syncs when a Roon export file
// changes on disk.
package watcher

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Target binds one export file to the source it feeds.
type Target struct {
	Source string
	Path   string
}

// Service watches export files and triggers the owning source's sync
// after a debounce window. Directories where fsnotify does not deliver
// events (see ProbeCache) are covered by the mtime poll alone; the poll
// also backstops missed events everywhere else. A redundant trigger is
// harmless because unchanged files short-circuit inside the sync.
type Service struct {
	syncFn       func(ctx context.Context, source string) error
	targets      []Target
	logger       *slog.Logger
	debounce     time.Duration
	pollInterval time.Duration
	retryPeriod  time.Duration
	probeCache   *ProbeCache

	mu       sync.Mutex
	watcher  *fsnotify.Watcher
	watching map[string]bool      // export dir -> fsnotify active
	byPath   map[string]Target    // cleaned export path -> target
	mtimes   map[string]time.Time // cleaned export path -> last seen mtime
	pending  map[string]struct{}  // sources awaiting the debounce timer
}

// NewService creates an export-file watcher. Targets with an empty path
// are dropped.
func NewService(syncFn func(ctx context.Context, source string) error, targets []Target, probeCache *ProbeCache, logger *slog.Logger) *Service {
	s := &Service{
		syncFn: syncFn,
		logger: logger.With(slog.String("component", "watcher")),
		// Roon rewrites the export in place; wait for the writes to
		// settle before syncing.
		debounce:     2 * time.Second,
		pollInterval: time.Minute,
		retryPeriod:  5 * time.Minute,
		probeCache:   probeCache,
		watching:     make(map[string]bool),
		byPath:       make(map[string]Target),
		mtimes:       make(map[string]time.Time),
		pending:      make(map[string]struct{}),
	}
	for _, t := range targets {
		if t.Path == "" {
			continue
		}
		t.Path = filepath.Clean(t.Path)
		s.targets = append(s.targets, t)
		s.byPath[t.Path] = t
	}
	return s
}

// SetDebounce overrides the default debounce interval (for testing).
func (s *Service) SetDebounce(d time.Duration) {
	s.debounce = d
}

// SetPollInterval overrides the default poll interval (for testing).
func (s *Service) SetPollInterval(d time.Duration) {
	s.pollInterval = d
}

// TargetDirs returns the distinct parent directories of the targets,
// for probing before the watcher starts.
func TargetDirs(targets []Target) []string {
	seen := make(map[string]bool)
	var dirs []string
	for _, t := range targets {
		if t.Path == "" {
			continue
		}
		dir := filepath.Dir(filepath.Clean(t.Path))
		if !seen[dir] {
			seen[dir] = true
			dirs = append(dirs, dir)
		}
	}
	return dirs
}

// Start blocks until ctx is canceled. It creates an fsnotify watcher
// over the export directories and falls back to polling where fsnotify
// is unavailable or unsupported.
func (s *Service) Start(ctx context.Context) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		s.logger.Warn("fsnotify unavailable, running poll-only", "error", err)
	} else {
		defer w.Close() //nolint:errcheck
		s.mu.Lock()
		s.watcher = w
		s.mu.Unlock()
		s.addWatchDirs()
	}

	s.initMtimes()
	s.logger.Info("export watcher starting", "targets", len(s.targets))

	pollTicker := time.NewTicker(s.pollInterval)
	defer pollTicker.Stop()

	// Export directories can appear after startup (first export still
	// pending); retry the missing ones occasionally.
	retryTicker := time.NewTicker(s.retryPeriod)
	defer retryTicker.Stop()

	// Debounce timer for coalescing file events into one sync per
	// source. Starts stopped; reset on each event.
	debounceTimer := time.NewTimer(0)
	if !debounceTimer.Stop() {
		<-debounceTimer.C
	}

	// When fsnotify is unavailable, use nil channels (never receive).
	var eventCh <-chan fsnotify.Event
	var errCh <-chan error
	if w != nil {
		eventCh = w.Events
		errCh = w.Errors
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("export watcher stopping")
			return

		case ev, ok := <-eventCh:
			if !ok {
				return
			}
			s.handleFSEvent(ev, debounceTimer)

		case err, ok := <-errCh:
			if !ok {
				return
			}
			s.logger.Error("fsnotify error", "error", err)

		case <-debounceTimer.C:
			s.runPending(ctx)

		case <-pollTicker.C:
			if s.pollTargets() {
				resetTimer(debounceTimer, s.debounce)
			}

		case <-retryTicker.C:
			if w != nil {
				s.addWatchDirs()
			}
		}
	}
}

// handleFSEvent marks the source backing a changed export file as
// pending. A rename of the file itself means it went away, not that new
// data arrived, so only Create and Write count.
func (s *Service) handleFSEvent(ev fsnotify.Event, debounceTimer *time.Timer) {
	if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
		return
	}

	s.mu.Lock()
	target, ok := s.byPath[filepath.Clean(ev.Name)]
	if ok {
		s.pending[target.Source] = struct{}{}
	}
	s.mu.Unlock()
	if !ok {
		return
	}

	s.logger.Info("export file changed", "source", target.Source, "path", target.Path)
	resetTimer(debounceTimer, s.debounce)
}

// runPending syncs every source marked pending, then refreshes the
// recorded mtimes so the next poll does not re-trigger the same change.
func (s *Service) runPending(ctx context.Context) {
	s.mu.Lock()
	sources := make([]string, 0, len(s.pending))
	for src := range s.pending {
		sources = append(sources, src)
	}
	s.pending = make(map[string]struct{})
	s.mu.Unlock()
	if len(sources) == 0 {
		return
	}
	sort.Strings(sources)

	for _, src := range sources {
		s.logger.Info("debounce elapsed, running sync", "source", src)
		if err := s.syncFn(ctx, src); err != nil {
			s.logger.Error("watcher-triggered sync failed", "source", src, "error", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.targets {
		for _, src := range sources {
			if t.Source != src {
				continue
			}
			if info, err := os.Stat(t.Path); err == nil {
				s.mtimes[t.Path] = info.ModTime()
			}
		}
	}
}

// pollTargets stats every export file and marks sources whose file is
// new or has a fresher mtime than last seen. Returns true when anything
// was marked.
func (s *Service) pollTargets() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	changed := false
	for _, t := range s.targets {
		info, err := os.Stat(t.Path)
		if err != nil {
			continue
		}
		mt := info.ModTime()
		seen, ok := s.mtimes[t.Path]
		if ok && !mt.After(seen) {
			continue
		}
		s.mtimes[t.Path] = mt
		s.pending[t.Source] = struct{}{}
		changed = true
		s.logger.Info("poll: export file changed", "source", t.Source, "path", t.Path)
	}
	return changed
}

// addWatchDirs registers the fsnotify watch on each export directory
// that exists, probed as supported, and is not yet watched.
func (s *Service) addWatchDirs() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, t := range s.targets {
		dir := filepath.Dir(t.Path)
		if s.watching[dir] {
			continue
		}
		if s.probeCache != nil {
			if supported, ok := s.probeCache.Get(dir); ok && !supported {
				continue
			}
		}
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			continue
		}
		if err := s.watcher.Add(dir); err != nil {
			s.logger.Warn("failed to watch export directory", "dir", dir, "error", err)
			continue
		}
		s.watching[dir] = true
		s.logger.Info("watching export directory", "dir", dir)
	}
}

// initMtimes records the mtime of each export file that already exists
// so the first poll tick only reports actual changes.
func (s *Service) initMtimes() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.targets {
		if info, err := os.Stat(t.Path); err == nil {
			s.mtimes[t.Path] = info.ModTime()
		}
	}
}

func resetTimer(t *time.Timer, d time.Duration) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	t.Reset(d)
}
