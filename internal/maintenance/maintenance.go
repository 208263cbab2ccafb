// Package maintenance keeps the SQLite file healthy between syncs:
// planner statistics, WAL truncation, and sync-history retention.
package maintenance

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"time"
)

const defaultHistoryKeepDays = 90

// HistoryPruner deletes sync-history snapshots older than keepDays.
type HistoryPruner interface {
	PruneHistory(ctx context.Context, keepDays int) (int64, error)
}

// Service runs periodic database upkeep.
type Service struct {
	db       *sql.DB
	history  HistoryPruner
	dbPath   string
	keepDays int
	logger   *slog.Logger
}

// NewService creates a maintenance service. dbPath points at the SQLite
// file so db and WAL sizes can be reported after each pass.
func NewService(db *sql.DB, history HistoryPruner, dbPath string, logger *slog.Logger) *Service {
	return &Service{
		db:       db,
		history:  history,
		dbPath:   dbPath,
		keepDays: defaultHistoryKeepDays,
		logger:   logger.With(slog.String("component", "maintenance")),
	}
}

// Optimize refreshes the query-planner statistics and truncates the WAL
// back into the main file.
func (s *Service) Optimize(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "PRAGMA optimize"); err != nil {
		return fmt.Errorf("PRAGMA optimize: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return fmt.Errorf("WAL checkpoint: %w", err)
	}
	return nil
}

// Run performs one maintenance pass: optimize plus history pruning.
func (s *Service) Run(ctx context.Context) error {
	if err := s.Optimize(ctx); err != nil {
		return err
	}
	pruned, err := s.history.PruneHistory(ctx, s.keepDays)
	if err != nil {
		return err
	}
	s.logger.Info("maintenance pass complete",
		"pruned_history", pruned,
		"db_bytes", fileSize(s.dbPath),
		"wal_bytes", fileSize(s.dbPath+"-wal"))
	return nil
}

// StartScheduler runs a maintenance pass on a fixed interval until the
// context is canceled.
func (s *Service) StartScheduler(ctx context.Context, interval time.Duration) {
	s.logger.Info("maintenance scheduler started",
		slog.String("interval", interval.String()))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("maintenance scheduler stopped")
			return
		case <-ticker.C:
			if err := s.Run(ctx); err != nil {
				s.logger.Error("scheduled maintenance failed", slog.Any("error", err))
			}
		}
	}
}

// fileSize returns the file's size in bytes, zero when it cannot be
// read. The WAL file legitimately vanishes after a truncating
// checkpoint.
func fileSize(path string) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return info.Size()
}
