package api

import (
	"encoding/json"
	"net/http"

	"github.com/sydlexius/milkcrate/internal/catalog"
)

// handleListListening returns a page of the listening log as JSON.
// GET /api/listening-history?source=&artist=&page=&page_size=
func (r *Router) handleListListening(w http.ResponseWriter, req *http.Request) {
	params := catalog.ListenListParams{
		Page:     intQuery(req, "page", 1),
		PageSize: intQuery(req, "page_size", 50),
		Source:   req.URL.Query().Get("source"),
		Artist:   req.URL.Query().Get("artist"),
	}
	events, total, err := r.listening.List(req.Context(), params)
	if err != nil {
		r.logger.Error("listing listening history", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"events":    events,
		"total":     total,
		"page":      params.Page,
		"page_size": params.PageSize,
	})
}

// handleAddListening records a manual listening event.
// POST /api/listening-history
func (r *Router) handleAddListening(w http.ResponseWriter, req *http.Request) {
	var body struct {
		Artist           string `json:"artist"`
		Album            string `json:"album"`
		Source           string `json:"source"`
		ListenedAt       string `json:"listened_at"`
		Format           string `json:"format"`
		Notes            string `json:"notes"`
		DigitalAlbumID   string `json:"digital_album_id"`
		PhysicalRecordID string `json:"physical_record_id"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if body.Artist == "" || body.Album == "" {
		writeError(w, http.StatusBadRequest, "artist and album are required")
		return
	}
	if !catalog.ValidListenSource(body.Source) {
		writeError(w, http.StatusBadRequest, "source must be roon, discogs, or both")
		return
	}

	in := catalog.ListeningInput{
		Artist:           body.Artist,
		Album:            body.Album,
		Source:           body.Source,
		Format:           body.Format,
		Notes:            body.Notes,
		DigitalAlbumID:   body.DigitalAlbumID,
		PhysicalRecordID: body.PhysicalRecordID,
	}
	if body.ListenedAt != "" {
		listened, ok := parseTimestamp(body.ListenedAt)
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid listened_at; use YYYY-MM-DD or YYYY-MM-DD HH:MM:SS")
			return
		}
		in.ListenedAt = listened
	}

	ev, err := r.listening.Add(req.Context(), in)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, ev)
}

// handleDeleteListening removes a listening event.
// DELETE /api/listening-history/{id}
func (r *Router) handleDeleteListening(w http.ResponseWriter, req *http.Request) {
	id := req.PathValue("id")
	if err := r.listening.Delete(req.Context(), id); err != nil {
		writeError(w, http.StatusNotFound, "listening event not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
