package api

import "net/http"

// handleStatsOverview returns headline collection counts.
// GET /api/stats/overview
func (r *Router) handleStatsOverview(w http.ResponseWriter, req *http.Request) {
	overview, err := r.stats.Overview(req.Context())
	if err != nil {
		r.logger.Error("computing stats overview", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, overview)
}

// handleStatsPlayCounts returns albums ranked by play count.
// GET /api/stats/play-counts?limit=
func (r *Router) handleStatsPlayCounts(w http.ResponseWriter, req *http.Request) {
	counts, err := r.stats.PlayCounts(req.Context(), intQuery(req, "limit", 50))
	if err != nil {
		r.logger.Error("computing play counts", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"play_counts": counts,
		"total":       len(counts),
	})
}

// handleStatsLiveMatches returns the full live-show match table,
// newest show first.
// GET /api/stats/live-matches
func (r *Router) handleStatsLiveMatches(w http.ResponseWriter, req *http.Request) {
	matches, err := r.liveShows.List(req.Context(), "", "")
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
