package sync

import "time"

// RunResult summarizes one source sync run.
type RunResult struct {
	Source     string    `json:"source"`
	Status     Status    `json:"status"`
	Detail     string    `json:"detail,omitempty"`
	Records    int       `json:"records"`
	Errors     int       `json:"errors"`
	Pruned     int       `json:"pruned"`
	Attempts   int       `json:"attempts"`
	StartedAt  time.Time `json:"started_at"`
	DurationMS int64     `json:"duration_ms"`
	Err        error     `json:"-"`
}

// summary returns the string persisted to sync_state.sync_status.
func (r *RunResult) summary() string {
	if r.Detail != "" {
		return r.Detail
	}
	return string(r.Status)
}
