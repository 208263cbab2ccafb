package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ProbeCache caches the results of fsnotify support probes per export
// directory. Network mounts commonly accept the watch but never deliver
// events; probing catches that before the watcher trusts fsnotify.
type ProbeCache struct {
	mu      sync.RWMutex
	results map[string]bool
}

// NewProbeCache creates an empty probe cache.
func NewProbeCache() *ProbeCache {
	return &ProbeCache{
		results: make(map[string]bool),
	}
}

// Get returns whether fsnotify is supported for the given directory.
// The second return value is false if the directory has not been probed.
func (pc *ProbeCache) Get(dir string) (supported bool, ok bool) {
	pc.mu.RLock()
	defer pc.mu.RUnlock()
	supported, ok = pc.results[dir]
	return
}

// Set stores a probe result for the given directory.
func (pc *ProbeCache) Set(dir string, supported bool) {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	pc.results[dir] = supported
}

// ProbeFSNotify tests whether fsnotify delivers events for files under
// dir. It creates a temporary file, watches for the Create event, and
// returns true if the event arrives within the timeout.
func ProbeFSNotify(dir string, timeout time.Duration) bool {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return false
	}
	defer w.Close() //nolint:errcheck

	if err := w.Add(dir); err != nil {
		return false
	}

	probeName := fmt.Sprintf(".milkcrate_probe_%d", rand.Int63()) //nolint:gosec // G404: not security-sensitive
	probePath := filepath.Join(dir, probeName)

	if err := os.WriteFile(probePath, nil, 0o600); err != nil {
		return false
	}
	defer os.Remove(probePath) //nolint:errcheck

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case ev, ok := <-w.Events:
			if !ok {
				return false
			}
			if ev.Has(fsnotify.Create) && filepath.Base(ev.Name) == probeName {
				return true
			}
		case <-w.Errors:
			return false
		case <-timer.C:
			return false
		}
	}
}

// ProbeDirs probes each directory once and populates the cache. Called
// synchronously at startup before the watcher goroutine starts.
func (pc *ProbeCache) ProbeDirs(ctx context.Context, dirs []string, logger *slog.Logger) {
	for _, dir := range dirs {
		if _, ok := pc.Get(dir); ok {
			continue
		}
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			pc.Set(dir, false)
			logger.Warn("export directory not accessible for probe",
				"dir", dir, "error", err)
			continue
		}

		supported := ProbeFSNotify(dir, 2*time.Second)
		pc.Set(dir, supported)
		logger.Info("fsnotify probe result", "dir", dir, "supported", supported)

		select {
		case <-ctx.Done():
			return
		default:
		}
	}
}
