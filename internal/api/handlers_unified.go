package api

import (
	"net/http"

	"github.com/sydlexius/milkcrate/internal/catalog"
)

// handleSearch finds albums by artist or title across collections.
// GET /api/search?q=&source=&page=&page_size=
func (r *Router) handleSearch(w http.ResponseWriter, req *http.Request) {
	query := req.URL.Query().Get("q")
	if query == "" {
		writeError(w, http.StatusBadRequest, "search query required")
		return
	}

	params := catalog.SearchParams{
		Query:    query,
		Source:   req.URL.Query().Get("source"),
		Page:     intQuery(req, "page", 1),
		PageSize: intQuery(req, "page_size", 50),
	}
	entries, totals, err := r.unified.Search(req.Context(), params)
	if err != nil {
		r.logger.Error("searching collections", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"items":     entries,
		"totals":    totals,
		"page":      params.Page,
		"page_size": params.PageSize,
	})
}

// handleUnifiedCollection returns one page of the merged digital and
// physical collection.
// GET /api/unified/collection?hide_dupes=&search=&page=&page_size=
func (r *Router) handleUnifiedCollection(w http.ResponseWriter, req *http.Request) {
	params := catalog.UnifiedParams{
		Page:           intQuery(req, "page", 1),
		PageSize:       intQuery(req, "page_size", 50),
		Search:         req.URL.Query().Get("search"),
		HideDuplicates: boolQuery(req, "hide_dupes"),
	}
	entries, totals, err := r.unified.Collection(req.Context(), params)
	if err != nil {
		r.logger.Error("listing unified collection", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"items":     entries,
		"totals":    totals,
		"page":      params.Page,
		"page_size": params.PageSize,
	})
}
