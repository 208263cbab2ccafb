// Package api exposes the catalog over a JSON HTTP API.
package api

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/sydlexius/milkcrate/internal/api/middleware"
	"github.com/sydlexius/milkcrate/internal/catalog"
	"github.com/sydlexius/milkcrate/internal/stats"
	"github.com/sydlexius/milkcrate/internal/sync"
)

// RouterDeps bundles all dependencies needed by the HTTP router.
type RouterDeps struct {
	Digital     *catalog.DigitalService
	Physical    *catalog.PhysicalService
	Unified     *catalog.UnifiedService
	Listening   *catalog.ListeningService
	LiveShows   *catalog.LiveShowService
	Stats       *stats.Service
	SyncStore   *sync.Store
	Coordinator *sync.Coordinator
	DB          *sql.DB
	Logger      *slog.Logger
}

// Router sets up all HTTP routes for the application.
type Router struct {
	digital     *catalog.DigitalService
	physical    *catalog.PhysicalService
	unified     *catalog.UnifiedService
	listening   *catalog.ListeningService
	liveShows   *catalog.LiveShowService
	stats       *stats.Service
	syncStore   *sync.Store
	coordinator *sync.Coordinator
	db          *sql.DB
	logger      *slog.Logger
}

// NewRouter creates a new Router with all routes configured.
func NewRouter(deps RouterDeps) *Router {
	return &Router{
		digital:     deps.Digital,
		physical:    deps.Physical,
		unified:     deps.Unified,
		listening:   deps.Listening,
		liveShows:   deps.LiveShows,
		stats:       deps.Stats,
		syncStore:   deps.SyncStore,
		coordinator: deps.Coordinator,
		db:          deps.DB,
		logger:      deps.Logger,
	}
}

// Handler returns the fully configured HTTP handler with middleware applied.
func (r *Router) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", r.handleHealth)
	mux.HandleFunc("GET /api/search", r.handleSearch)
	mux.HandleFunc("GET /api/unified/collection", r.handleUnifiedCollection)

	// Digital library routes
	mux.HandleFunc("GET /api/digital/albums", r.handleListAlbums)
	mux.HandleFunc("GET /api/digital/tracks", r.handleListTracks)
	mux.HandleFunc("GET /api/digital/bootlegs", r.handleListBootlegs)
	mux.HandleFunc("GET /api/digital/bootlegs/artists", r.handleBootlegArtists)
	mux.HandleFunc("PUT /api/play-history/{id}/played-at", r.handleUpdatePlayedAt)

	// Physical collection routes
	mux.HandleFunc("GET /api/physical/collection", r.handleListRecords)
	mux.HandleFunc("GET /api/physical/collection/{id}", r.handleGetRecord)
	mux.HandleFunc("PUT /api/physical/collection/{id}/last-listened", r.handleUpdateLastListened)
	mux.HandleFunc("PUT /api/physical/collection/{id}/notes", r.handleUpdateNotes)
	mux.HandleFunc("GET /api/physical/wantlist", r.handleListWantlist)

	// Listening log routes
	mux.HandleFunc("GET /api/listening-history", r.handleListListening)
	mux.HandleFunc("POST /api/listening-history", r.handleAddListening)
	mux.HandleFunc("DELETE /api/listening-history/{id}", r.handleDeleteListening)

	// Live-show match routes
	mux.HandleFunc("GET /api/live-matches", r.handleListLiveMatches)
	mux.HandleFunc("PUT /api/live-matches/{id}", r.handleSetManualMatch)
	mux.HandleFunc("DELETE /api/live-matches/{id}", r.handleDeleteLiveMatch)
	mux.HandleFunc("POST /api/live-matches/rebuild", r.handleRebuildLiveMatches)

	// Stats routes
	mux.HandleFunc("GET /api/stats/overview", r.handleStatsOverview)
	mux.HandleFunc("GET /api/stats/play-counts", r.handleStatsPlayCounts)
	mux.HandleFunc("GET /api/stats/live-matches", r.handleStatsLiveMatches)

	// Sync routes
	mux.HandleFunc("GET /api/sync/status", r.handleSyncStatus)
	mux.HandleFunc("GET /api/sync/history", r.handleSyncHistory)
	mux.HandleFunc("POST /api/sync/{source}/run", r.handleSyncRun)

	return middleware.Logging(r.logger)(middleware.SecurityHeaders(mux))
}
