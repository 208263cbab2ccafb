package sync

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"
)

// ErrAlreadyRunning is returned when a sync is requested for a source
// that is already mid-run, in this process or another.
var ErrAlreadyRunning = errors.New("sync already running")

// Locker serializes sync runs per source. An in-process map guards
// against concurrent runs inside one process; a file lock under dir
// guards against a second process syncing the same source.
type Locker struct {
	dir  string
	mu   sync.Mutex
	busy map[string]bool
}

// NewLocker creates a locker writing lock files under dir.
func NewLocker(dir string) *Locker {
	return &Locker{dir: dir, busy: make(map[string]bool)}
}

// Acquire takes the lock for a source. The returned release function
// must be called when the run finishes.
func (l *Locker) Acquire(name string) (func(), error) {
	l.mu.Lock()
	if l.busy[name] {
		l.mu.Unlock()
		return nil, ErrAlreadyRunning
	}
	l.busy[name] = true
	l.mu.Unlock()

	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		l.clear(name)
		return nil, fmt.Errorf("creating lock directory: %w", err)
	}

	fl := flock.New(filepath.Join(l.dir, name+".lock"))
	locked, err := fl.TryLock()
	if err != nil {
		l.clear(name)
		return nil, fmt.Errorf("locking %s: %w", name, err)
	}
	if !locked {
		l.clear(name)
		return nil, ErrAlreadyRunning
	}

	return func() {
		_ = fl.Unlock() //nolint:errcheck
		l.clear(name)
	}, nil
}

func (l *Locker) clear(name string) {
	l.mu.Lock()
	delete(l.busy, name)
	l.mu.Unlock()
}
