// Package source defines the contract between the sync coordinator and
// the concrete data sources that feed the catalog.
package source

import (
	"context"
	"time"
)

// Record is one raw item produced by a source fetch. Its concrete type
// is private to the source that produced it; the coordinator only
// carries records from Fetch to Apply.
type Record any

// Source fetches raw records from an upstream and applies them to the
// catalog one at a time.
type Source interface {
	// Name returns the unique source identifier (e.g. "roon_albums").
	Name() string

	// Fetch retrieves the full batch of raw records from the upstream.
	Fetch(ctx context.Context) ([]Record, error)

	// Apply upserts a single fetched record into the catalog.
	Apply(ctx context.Context, rec Record) error
}

// FileBacked is implemented by sources that import a local export
// file. The coordinator skips a run when the file has not been
// modified since the last successful sync.
type FileBacked interface {
	ModTime() (time.Time, error)
}

// Resetter is implemented by flat-import sources that replace their
// whole table on each run. Reset is called after a successful fetch,
// before the first Apply.
type Resetter interface {
	Reset(ctx context.Context) error
}

// Pruner is implemented by upsert sources that delete rows absent from
// the fetched batch. Prune runs only when every record applied without
// a run-level failure, and returns the number of rows removed.
type Pruner interface {
	Prune(ctx context.Context) (int, error)
}
