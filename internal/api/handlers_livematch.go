package api

import (
	"encoding/json"
	"net/http"
)

// handleListLiveMatches returns live-show matches as JSON.
// GET /api/live-matches?artist=&confidence=
func (r *Router) handleListLiveMatches(w http.ResponseWriter, req *http.Request) {
	matches, err := r.liveShows.List(req.Context(),
		req.URL.Query().Get("artist"), req.URL.Query().Get("confidence"))
	if err != nil {
		r.logger.Error("listing live-show matches", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"matches": matches,
		"total":   len(matches),
	})
}

// handleSetManualMatch pins a recording to a user-chosen release.
// PUT /api/live-matches/{id}
func (r *Router) handleSetManualMatch(w http.ResponseWriter, req *http.Request) {
	id := req.PathValue("id")

	var body struct {
		PhysicalRecordID string `json:"physical_record_id"`
		MatchedTitle     string `json:"matched_title"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if body.PhysicalRecordID == "" && body.MatchedTitle == "" {
		writeError(w, http.StatusBadRequest, "physical_record_id or matched_title is required")
		return
	}

	if _, err := r.liveShows.Get(req.Context(), id); err != nil {
		writeError(w, http.StatusNotFound, "live-show match not found")
		return
	}
	if err := r.liveShows.SetManual(req.Context(), id, body.PhysicalRecordID, body.MatchedTitle); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	m, err := r.liveShows.Get(req.Context(), id)
	if err != nil {
		r.logger.Error("reloading live-show match", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// handleDeleteLiveMatch removes a match, releasing the recording back
// to automatic matching.
// DELETE /api/live-matches/{id}
func (r *Router) handleDeleteLiveMatch(w http.ResponseWriter, req *http.Request) {
	id := req.PathValue("id")
	if err := r.liveShows.Delete(req.Context(), id); err != nil {
		writeError(w, http.StatusNotFound, "live-show match not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleRebuildLiveMatches reruns automatic live-show matching.
// POST /api/live-matches/rebuild
func (r *Router) handleRebuildLiveMatches(w http.ResponseWriter, req *http.Request) {
	result, err := r.liveShows.Rebuild(req.Context())
	if err != nil {
		r.logger.Error("rebuilding live-show matches", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, result)
}
