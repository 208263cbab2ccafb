package sync

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sydlexius/milkcrate/internal/event"
	"github.com/sydlexius/milkcrate/internal/source"
)

const (
	maxAttempts        = 3
	defaultSkipDays    = 7
	maxConcurrentSyncs = 3
)

// Coordinator runs source syncs under the per-source locking, skip,
// and retry policy, and persists the outcome of every run.
type Coordinator struct {
	store      *Store
	locker     *Locker
	bus        *event.Bus
	logger     *slog.Logger
	skipWindow time.Duration
	backoff    func(attempt int) time.Duration

	sources map[string]source.Source
	order   []string
}

// NewCoordinator creates a sync coordinator. skipDays controls how
// long a successful API-source sync suppresses the next run; zero or
// negative uses the 7-day default.
func NewCoordinator(store *Store, locker *Locker, bus *event.Bus, logger *slog.Logger, skipDays int) *Coordinator {
	if skipDays <= 0 {
		skipDays = defaultSkipDays
	}
	return &Coordinator{
		store:      store,
		locker:     locker,
		bus:        bus,
		logger:     logger,
		skipWindow: time.Duration(skipDays) * 24 * time.Hour,
		backoff:    defaultBackoff,
		sources:    make(map[string]source.Source),
	}
}

// Register adds a source. Registration order is preserved by RunAll.
func (c *Coordinator) Register(src source.Source) {
	name := src.Name()
	if _, ok := c.sources[name]; !ok {
		c.order = append(c.order, name)
	}
	c.sources[name] = src
}

// Sources returns the registered source names in registration order.
func (c *Coordinator) Sources() []string {
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

// Run syncs a single source. The returned error is non-nil only when
// the run could not start (unknown source, already running); failures
// during the run are carried in the result with status Failed.
func (c *Coordinator) Run(ctx context.Context, name string, force bool) (*RunResult, error) {
	src, ok := c.sources[name]
	if !ok {
		return nil, fmt.Errorf("unknown source %q", name)
	}

	release, err := c.locker.Acquire(name)
	if err != nil {
		return nil, err
	}
	defer release()

	return c.runLocked(ctx, src, name, force)
}

// Start launches a sync in the background. The per-source lock is
// taken before returning, so a concurrent-run conflict surfaces to the
// caller instead of dying inside the detached goroutine.
func (c *Coordinator) Start(ctx context.Context, name string, force bool) error {
	src, ok := c.sources[name]
	if !ok {
		return fmt.Errorf("unknown source %q", name)
	}

	release, err := c.locker.Acquire(name)
	if err != nil {
		return err
	}

	// The run outlives the caller's request.
	dctx := context.WithoutCancel(ctx)
	go func() {
		defer release()
		if _, err := c.runLocked(dctx, src, name, force); err != nil {
			c.logger.Error("background sync", "source", name, "error", err)
		}
	}()
	return nil
}

func (c *Coordinator) runLocked(ctx context.Context, src source.Source, name string, force bool) (*RunResult, error) {
	res := &RunResult{Source: name, StartedAt: time.Now().UTC()}
	log := c.logger.With("source", name)

	state, err := c.store.GetState(ctx, name)
	if err != nil {
		return nil, err
	}

	if detail := c.skipDetail(src, state, force); detail != "" {
		res.Status = StatusSucceeded
		res.Detail = detail
		res.DurationMS = time.Since(res.StartedAt).Milliseconds()
		log.Info("sync skipped", "detail", detail)
		return res, nil
	}

	if err := c.store.SetStatus(ctx, name, string(StatusRunning)); err != nil {
		return nil, err
	}
	log.Info("sync started", "force", force)

	records, attempts, err := c.fetchWithRetry(ctx, src)
	res.Attempts = attempts
	if err != nil {
		return c.finish(ctx, log, res, err), nil
	}

	// Flat-import sources replace their table wholesale, but only when
	// the fetch produced rows. An empty export must not wipe data.
	if len(records) > 0 {
		if r, ok := src.(source.Resetter); ok {
			if err := r.Reset(ctx); err != nil {
				return c.finish(ctx, log, res, err), nil
			}
		}
	}

	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return c.finish(ctx, log, res, err), nil
		}
		if err := c.applyWithRetry(ctx, src, rec); err != nil {
			if source.IsValidation(err) {
				res.Errors++
				log.Warn("skipping invalid record", "error", err)
				continue
			}
			return c.finish(ctx, log, res, err), nil
		}
		res.Records++
	}

	if res.Errors == 0 && res.Records > 0 {
		if p, ok := src.(source.Pruner); ok {
			n, err := p.Prune(ctx)
			if err != nil {
				return c.finish(ctx, log, res, err), nil
			}
			res.Pruned = n
		}
	}

	if res.Records == 0 && res.Errors > 0 {
		return c.finish(ctx, log, res, fmt.Errorf("all %d records invalid", res.Errors)), nil
	}
	return c.finish(ctx, log, res, nil), nil
}

// RunAll syncs every registered source, at most maxConcurrentSyncs at
// a time. Failures are carried in the per-source results, never as a
// group error, so one source cannot cancel its siblings.
func (c *Coordinator) RunAll(ctx context.Context, force bool) []RunResult {
	results := make([]RunResult, len(c.order))
	var g errgroup.Group
	g.SetLimit(maxConcurrentSyncs)
	for i, name := range c.order {
		g.Go(func() error {
			res, err := c.Run(ctx, name, force)
			if err != nil {
				results[i] = RunResult{
					Source:    name,
					Status:    StatusFailed,
					Detail:    failureDetail(err),
					StartedAt: time.Now().UTC(),
					Err:       err,
				}
				return nil
			}
			results[i] = *res
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck
	return results
}

// skipDetail decides whether a run can short-circuit, returning the
// summary detail when it can. File-backed sources skip on an unchanged
// export file; API sources skip inside the recency window. Force
// bypasses both.
func (c *Coordinator) skipDetail(src source.Source, state *State, force bool) string {
	if force || state == nil || state.LastSync == nil {
		return ""
	}
	if fb, ok := src.(source.FileBacked); ok {
		mt, err := fb.ModTime()
		if err == nil && !mt.After(*state.LastSync) {
			return DetailSkippedUnchanged
		}
		return ""
	}
	if time.Since(*state.LastSync) < c.skipWindow {
		return DetailSkippedRecent
	}
	return ""
}

// finish settles the run: status, persisted state, a history snapshot,
// the lifecycle event, and the summary log line. Persistence uses a
// detached context so a canceled run still records its outcome.
func (c *Coordinator) finish(ctx context.Context, log *slog.Logger, res *RunResult, runErr error) *RunResult {
	res.DurationMS = time.Since(res.StartedAt).Milliseconds()

	var lastSync *time.Time
	if runErr == nil {
		res.Status = StatusSucceeded
		now := time.Now().UTC()
		lastSync = &now
	} else {
		res.Status = StatusFailed
		res.Err = runErr
		res.Detail = failureDetail(runErr)
	}

	dctx := context.WithoutCancel(ctx)
	if err := c.store.Complete(dctx, res.Source, res.summary(), res.Records, res.Errors, lastSync); err != nil {
		log.Error("persisting sync state", "error", err)
	}

	counts, err := c.store.CollectionCounts(dctx)
	if err != nil {
		log.Error("counting collections", "error", err)
	}
	entry := &HistoryEntry{
		SourceName:   res.Source,
		Status:       string(res.Status),
		RecordsCount: res.Records,
		ErrorCount:   res.Errors,
		DurationMS:   res.DurationMS,
		Counts:       counts,
	}
	if err := c.store.AppendHistory(dctx, entry); err != nil {
		log.Error("appending sync history", "error", err)
	}

	evt := event.SyncCompleted
	if res.Status == StatusFailed {
		evt = event.SyncFailed
	}
	c.bus.Publish(event.Event{
		Type: evt,
		Data: map[string]any{
			"source":      res.Source,
			"status":      string(res.Status),
			"records":     res.Records,
			"errors":      res.Errors,
			"duration_ms": res.DurationMS,
		},
	})

	if res.Status == StatusFailed {
		log.Error("sync failed", "error", runErr,
			"records", res.Records, "errors", res.Errors, "attempts", res.Attempts)
	} else {
		log.Info("sync finished", "records", res.Records, "errors", res.Errors,
			"pruned", res.Pruned, "duration_ms", res.DurationMS)
	}
	return res
}

// fetchWithRetry calls Fetch up to maxAttempts times, backing off
// between transient failures. Other errors fail immediately.
func (c *Coordinator) fetchWithRetry(ctx context.Context, src source.Source) ([]source.Record, int, error) {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		records, err := src.Fetch(ctx)
		if err == nil {
			return records, attempt, nil
		}
		lastErr = err
		if !source.IsTransient(err) {
			return nil, attempt, err
		}
		if attempt == maxAttempts {
			break
		}
		c.logger.Warn("fetch failed, retrying",
			"source", src.Name(), "attempt", attempt, "error", err)
		if err := sleep(ctx, c.backoff(attempt)); err != nil {
			return nil, attempt, err
		}
	}
	return nil, maxAttempts, fmt.Errorf("fetch failed after %d attempts: %w", maxAttempts, lastErr)
}

// applyWithRetry applies one record, retrying transient storage
// failures. Validation errors pass through untouched for the caller to
// tally.
func (c *Coordinator) applyWithRetry(ctx context.Context, src source.Source, rec source.Record) error {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := src.Apply(ctx, rec)
		if err == nil {
			return nil
		}
		lastErr = err
		if !source.IsTransient(err) {
			return err
		}
		if attempt == maxAttempts {
			break
		}
		if err := sleep(ctx, c.backoff(attempt)); err != nil {
			return err
		}
	}
	return fmt.Errorf("apply failed after %d attempts: %w", maxAttempts, lastErr)
}

// failureDetail renders the persisted failure summary, truncated so
// status strings stay presentable.
func failureDetail(err error) string {
	msg := err.Error()
	if len(msg) > 120 {
		msg = msg[:117] + "..."
	}
	return "failed: " + msg
}

func defaultBackoff(attempt int) time.Duration {
	return time.Duration(1<<uint(attempt-1)) * time.Second
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
