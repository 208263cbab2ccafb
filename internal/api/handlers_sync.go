package api

import (
	"errors"
	"net/http"

	"github.com/sydlexius/milkcrate/internal/sync"
)

// handleSyncStatus returns the per-source sync state table.
// GET /api/sync/status
func (r *Router) handleSyncStatus(w http.ResponseWriter, req *http.Request) {
	states, err := r.syncStore.ListStates(req.Context())
	if err != nil {
		r.logger.Error("listing sync states", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"sources": states,
		"total":   len(states),
	})
}

// handleSyncHistory returns recent sync runs, newest first.
// GET /api/sync/history?limit=
func (r *Router) handleSyncHistory(w http.ResponseWriter, req *http.Request) {
	entries, err := r.syncStore.ListHistory(req.Context(), intQuery(req, "limit", 50))
	if err != nil {
		r.logger.Error("listing sync history", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"runs":  entries,
		"total": len(entries),
	})
}

// handleSyncRun launches a sync for one source in the background.
// POST /api/sync/{source}/run?force=
func (r *Router) handleSyncRun(w http.ResponseWriter, req *http.Request) {
	name := req.PathValue("source")

	registered := false
	for _, s := range r.coordinator.Sources() {
		if s == name {
			registered = true
			break
		}
	}
	if !registered {
		writeError(w, http.StatusNotFound, "unknown source")
		return
	}

	err := r.coordinator.Start(req.Context(), name, boolQuery(req, "force"))
	if errors.Is(err, sync.ErrAlreadyRunning) {
		writeError(w, http.StatusConflict, "sync already running")
		return
	}
	if err != nil {
		r.logger.Error("starting sync", "source", name, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{
		"status": "started",
		"source": name,
	})
}
