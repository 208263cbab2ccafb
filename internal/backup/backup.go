// Package backup snapshots the SQLite catalog with VACUUM INTO and
// rotates old snapshots.
package backup

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"
)

// snapshotPattern matches snapshot filenames: milkcrate-YYYYMMDD-HHMMSS.db
var snapshotPattern = regexp.MustCompile(`^milkcrate-\d{8}-\d{6}\.db$`)

// Info describes a snapshot file.
type Info struct {
	Filename  string    `json:"filename"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created_at"`
}

// Service writes and rotates database snapshots.
type Service struct {
	db         *sql.DB
	dir        string
	keep       int
	maxAgeDays int
	logger     *slog.Logger
}

// NewService creates a backup service. keep bounds how many snapshots
// survive a prune; maxAgeDays of zero disables age-based pruning.
func NewService(db *sql.DB, dir string, keep, maxAgeDays int, logger *slog.Logger) *Service {
	return &Service{
		db:         db,
		dir:        dir,
		keep:       keep,
		maxAgeDays: maxAgeDays,
		logger:     logger.With(slog.String("component", "backup")),
	}
}

// Create snapshots the database into the backup directory. VACUUM INTO
// produces a compact, consistent copy without blocking readers.
func (s *Service) Create(ctx context.Context) (*Info, error) {
	if err := os.MkdirAll(s.dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating backup directory: %w", err)
	}

	now := time.Now().UTC()
	filename := fmt.Sprintf("milkcrate-%s.db", now.Format("20060102-150405"))
	dest := filepath.Join(s.dir, filename)

	s.logger.Info("starting backup", slog.String("dest", dest))

	if _, err := s.db.ExecContext(ctx, "VACUUM INTO ?", dest); err != nil {
		return nil, fmt.Errorf("VACUUM INTO: %w", err)
	}

	info, err := os.Stat(dest)
	if err != nil {
		return nil, fmt.Errorf("stat snapshot: %w", err)
	}

	s.logger.Info("backup complete",
		slog.String("filename", filename),
		slog.Int64("size", info.Size()))

	return &Info{
		Filename:  filename,
		Size:      info.Size(),
		CreatedAt: now,
	}, nil
}

// List returns the snapshots in the backup directory, newest first.
func (s *Service) List() ([]Info, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading backup directory: %w", err)
	}

	var snaps []Info
	for _, entry := range entries {
		if entry.IsDir() || !snapshotPattern.MatchString(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}

		// The timestamp in the filename is authoritative; fall back to
		// the file mtime if it will not parse.
		name := strings.TrimSuffix(strings.TrimPrefix(entry.Name(), "milkcrate-"), ".db")
		ts, err := time.Parse("20060102-150405", name)
		if err != nil {
			ts = info.ModTime()
		}

		snaps = append(snaps, Info{
			Filename:  entry.Name(),
			Size:      info.Size(),
			CreatedAt: ts,
		})
	}

	sort.Slice(snaps, func(i, j int) bool {
		return snaps[i].CreatedAt.After(snaps[j].CreatedAt)
	})

	return snaps, nil
}

// Delete removes a single snapshot by filename.
func (s *Service) Delete(filename string) error {
	if !ValidFilename(filename) {
		return fmt.Errorf("invalid snapshot filename")
	}
	path := filepath.Join(s.dir, filename)
	if err := os.Remove(path); err != nil { //nolint:gosec // G703: filename validated by ValidFilename above
		return fmt.Errorf("removing snapshot: %w", err)
	}
	s.logger.Info("snapshot deleted", slog.String("filename", filename))
	return nil
}

// Prune deletes snapshots beyond the keep count, then any older than
// the max age. It returns how many files were removed.
func (s *Service) Prune() (int, error) {
	snaps, err := s.List()
	if err != nil {
		return 0, err
	}

	var victims []Info
	if s.keep > 0 && len(snaps) > s.keep {
		victims = append(victims, snaps[s.keep:]...)
		snaps = snaps[:s.keep]
	}
	if s.maxAgeDays > 0 {
		cutoff := time.Now().UTC().AddDate(0, 0, -s.maxAgeDays)
		for _, sn := range snaps {
			if sn.CreatedAt.Before(cutoff) {
				victims = append(victims, sn)
			}
		}
	}

	pruned := 0
	for _, sn := range victims {
		path := filepath.Join(s.dir, sn.Filename)
		if err := os.Remove(path); err != nil {
			s.logger.Warn("failed to remove old snapshot",
				slog.String("filename", sn.Filename),
				slog.Any("error", err))
			continue
		}
		pruned++
		s.logger.Info("pruned snapshot", slog.String("filename", sn.Filename))
	}

	return pruned, nil
}

// Dir returns the backup directory path.
func (s *Service) Dir() string {
	return s.dir
}

// StartScheduler snapshots and prunes on a fixed interval until the
// context is canceled.
func (s *Service) StartScheduler(ctx context.Context, interval time.Duration) {
	s.logger.Info("backup scheduler started",
		slog.String("interval", interval.String()),
		slog.Int("keep", s.keep))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("backup scheduler stopped")
			return
		case <-ticker.C:
			if _, err := s.Create(ctx); err != nil {
				s.logger.Error("scheduled backup failed", slog.Any("error", err))
				continue
			}
			if _, err := s.Prune(); err != nil {
				s.logger.Error("backup prune failed", slog.Any("error", err))
			}
		}
	}
}

// ValidFilename reports whether filename matches the snapshot pattern
// and carries no path traversal characters.
func ValidFilename(filename string) bool {
	if strings.Contains(filename, "/") || strings.Contains(filename, "\\") || strings.Contains(filename, "..") {
		return false
	}
	return snapshotPattern.MatchString(filename)
}
