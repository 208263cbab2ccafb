package api

import (
	"encoding/json"
	"net/http"

	"github.com/sydlexius/milkcrate/internal/catalog"
)

// handleListRecords returns a page of the physical collection as JSON.
// GET /api/physical/collection?search=&artist=&folder_id=&sort=&order=&page=&page_size=
func (r *Router) handleListRecords(w http.ResponseWriter, req *http.Request) {
	params := catalog.RecordListParams{
		Page:     intQuery(req, "page", 1),
		PageSize: intQuery(req, "page_size", 50),
		Search:   req.URL.Query().Get("search"),
		Artist:   req.URL.Query().Get("artist"),
		FolderID: intQuery(req, "folder_id", 0),
		Sort:     req.URL.Query().Get("sort"),
		Order:    req.URL.Query().Get("order"),
	}
	records, total, err := r.physical.ListRecords(req.Context(), params)
	if err != nil {
		r.logger.Error("listing physical records", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"records":   records,
		"total":     total,
		"page":      params.Page,
		"page_size": params.PageSize,
	})
}

// handleGetRecord returns one release with its cached tracklist.
// GET /api/physical/collection/{id}
func (r *Router) handleGetRecord(w http.ResponseWriter, req *http.Request) {
	id := req.PathValue("id")

	record, err := r.physical.GetRecord(req.Context(), id)
	if err != nil {
		writeError(w, http.StatusNotFound, "physical record not found")
		return
	}
	tracks, err := r.physical.ListTracksForRecord(req.Context(), id)
	if err != nil {
		r.logger.Warn("listing record tracks", "id", id, "error", err)
		tracks = nil
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"record": record,
		"tracks": tracks,
	})
}

// handleUpdateLastListened moves a release's last-listened timestamp.
// PUT /api/physical/collection/{id}/last-listened
func (r *Router) handleUpdateLastListened(w http.ResponseWriter, req *http.Request) {
	id := req.PathValue("id")

	var body struct {
		LastListened string `json:"last_listened"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil || body.LastListened == "" {
		writeError(w, http.StatusBadRequest, "last_listened is required")
		return
	}
	listened, ok := parseTimestamp(body.LastListened)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid last_listened; use YYYY-MM-DD or YYYY-MM-DD HH:MM:SS")
		return
	}

	if _, err := r.physical.GetRecord(req.Context(), id); err != nil {
		writeError(w, http.StatusNotFound, "physical record not found")
		return
	}
	if err := r.physical.UpdateLastListened(req.Context(), id, listened); err != nil {
		r.logger.Error("updating last listened", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleUpdateNotes replaces the local notes on a release.
// PUT /api/physical/collection/{id}/notes
func (r *Router) handleUpdateNotes(w http.ResponseWriter, req *http.Request) {
	id := req.PathValue("id")

	var body struct {
		Notes string `json:"notes"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if _, err := r.physical.GetRecord(req.Context(), id); err != nil {
		writeError(w, http.StatusNotFound, "physical record not found")
		return
	}
	if err := r.physical.UpdateNotes(req.Context(), id, body.Notes); err != nil {
		r.logger.Error("updating notes", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleListWantlist returns a page of the wantlist as JSON.
// GET /api/physical/wantlist?search=&available=&sort=&order=&page=&page_size=
func (r *Router) handleListWantlist(w http.ResponseWriter, req *http.Request) {
	params := catalog.WantlistParams{
		Page:          intQuery(req, "page", 1),
		PageSize:      intQuery(req, "page_size", 50),
		Search:        req.URL.Query().Get("search"),
		OnlyAvailable: boolQuery(req, "available"),
		Sort:          req.URL.Query().Get("sort"),
		Order:         req.URL.Query().Get("order"),
	}
	entries, total, err := r.physical.ListWantlist(req.Context(), params)
	if err != nil {
		r.logger.Error("listing wantlist", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"entries":   entries,
		"total":     total,
		"page":      params.Page,
		"page_size": params.PageSize,
	})
}
