package api

import (
	"encoding/json"
	"net/http"

	"github.com/sydlexius/milkcrate/internal/catalog"
)

// handleListAlbums returns a page of digital albums as JSON.
// GET /api/digital/albums?search=&artist=&hide_dupes=&sort=&order=&page=&page_size=
func (r *Router) handleListAlbums(w http.ResponseWriter, req *http.Request) {
	params := catalog.AlbumListParams{
		Page:           intQuery(req, "page", 1),
		PageSize:       intQuery(req, "page_size", 50),
		Search:         req.URL.Query().Get("search"),
		Artist:         req.URL.Query().Get("artist"),
		HideDuplicates: boolQuery(req, "hide_dupes"),
		Sort:           req.URL.Query().Get("sort"),
		Order:          req.URL.Query().Get("order"),
	}
	albums, total, err := r.digital.ListAlbums(req.Context(), params)
	if err != nil {
		r.logger.Error("listing digital albums", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"albums":    albums,
		"total":     total,
		"page":      params.Page,
		"page_size": params.PageSize,
	})
}

// handleListTracks returns the stored tracks for one album.
// GET /api/digital/tracks?album_artist=&album=
func (r *Router) handleListTracks(w http.ResponseWriter, req *http.Request) {
	albumArtist := req.URL.Query().Get("album_artist")
	album := req.URL.Query().Get("album")
	if albumArtist == "" || album == "" {
		writeError(w, http.StatusBadRequest, "album_artist and album are required")
		return
	}

	tracks, err := r.digital.ListTracksForAlbum(req.Context(), albumArtist, album)
	if err != nil {
		r.logger.Error("listing digital tracks", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"tracks": tracks,
		"total":  len(tracks),
	})
}

// handleListBootlegs returns live recordings, optionally for one
// artist. The set is small enough to page in memory after the title
// check.
// GET /api/digital/bootlegs?artist=&page=&page_size=
func (r *Router) handleListBootlegs(w http.ResponseWriter, req *http.Request) {
	bootlegs, err := r.digital.ListBootlegs(req.Context(), req.URL.Query().Get("artist"))
	if err != nil {
		r.logger.Error("listing bootlegs", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	page := intQuery(req, "page", 1)
	pageSize := intQuery(req, "page_size", 200)
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 1000 {
		pageSize = 200
	}
	total := len(bootlegs)
	start := (page - 1) * pageSize
	if start > total {
		start = total
	}
	end := start + pageSize
	if end > total {
		end = total
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"bootlegs":  bootlegs[start:end],
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

// handleBootlegArtists returns artists ranked by live-show count.
// GET /api/digital/bootlegs/artists
func (r *Router) handleBootlegArtists(w http.ResponseWriter, req *http.Request) {
	artists, err := r.digital.BootlegArtists(req.Context())
	if err != nil {
		r.logger.Error("listing bootleg artists", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"artists": artists,
		"total":   len(artists),
	})
}

// handleUpdatePlayedAt corrects the timestamp on a play-history row.
// PUT /api/play-history/{id}/played-at
func (r *Router) handleUpdatePlayedAt(w http.ResponseWriter, req *http.Request) {
	id := req.PathValue("id")

	var body struct {
		PlayedAt string `json:"played_at"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil || body.PlayedAt == "" {
		writeError(w, http.StatusBadRequest, "played_at is required")
		return
	}
	playedAt, ok := parseTimestamp(body.PlayedAt)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid played_at; use YYYY-MM-DD or YYYY-MM-DD HH:MM:SS")
		return
	}

	if _, err := r.digital.GetPlay(req.Context(), id); err != nil {
		writeError(w, http.StatusNotFound, "play event not found")
		return
	}
	if err := r.digital.UpdatePlayPlayedAt(req.Context(), id, playedAt); err != nil {
		r.logger.Error("updating played at", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
