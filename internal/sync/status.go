// Package sync coordinates per-source catalog imports: locking,
// skip-window checks, fetch retries, record application, pruning, and
// the persisted state and history rows that describe each run.
package sync

import "strings"

// Status is the lifecycle state of a source sync.
type Status string

// Sync lifecycle states. A run moves Idle -> Running and settles on
// Succeeded or Failed.
const (
	StatusIdle      Status = "idle"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Human-readable detail strings for runs short-circuited by the skip
// policy. Skipped runs count as Succeeded.
const (
	DetailSkippedRecent    = "skipped (recent)"
	DetailSkippedUnchanged = "skipped (unchanged)"
)

// StatusOf classifies a stored sync_status summary string. Summaries
// are free-form ("skipped (recent)", "failed: fetch timed out"), so
// classification goes by prefix rather than equality.
func StatusOf(summary string) Status {
	s := strings.ToLower(strings.TrimSpace(summary))
	switch {
	case s == "" || s == string(StatusIdle):
		return StatusIdle
	case strings.HasPrefix(s, string(StatusRunning)):
		return StatusRunning
	case strings.HasPrefix(s, string(StatusFailed)):
		return StatusFailed
	default:
		return StatusSucceeded
	}
}
