package main

import (
	"database/sql"
	"log/slog"

	"github.com/sydlexius/milkcrate/internal/catalog"
	"github.com/sydlexius/milkcrate/internal/config"
	"github.com/sydlexius/milkcrate/internal/event"
	"github.com/sydlexius/milkcrate/internal/match"
	"github.com/sydlexius/milkcrate/internal/source/discogs"
	"github.com/sydlexius/milkcrate/internal/source/roon"
	"github.com/sydlexius/milkcrate/internal/stats"
	"github.com/sydlexius/milkcrate/internal/sync"
	"github.com/sydlexius/milkcrate/internal/watcher"
)

// services bundles the catalog services and sync machinery shared by
// the serve and sync commands.
type services struct {
	digital     *catalog.DigitalService
	physical    *catalog.PhysicalService
	listening   *catalog.ListeningService
	unified     *catalog.UnifiedService
	liveShows   *catalog.LiveShowService
	stats       *stats.Service
	syncStore   *sync.Store
	coordinator *sync.Coordinator
	bus         *event.Bus
}

func buildServices(cfg *config.Config, db *sql.DB, logger *slog.Logger) *services {
	s := &services{
		digital:   catalog.NewDigitalService(db),
		physical:  catalog.NewPhysicalService(db),
		listening: catalog.NewListeningService(db),
		unified:   catalog.NewUnifiedService(db),
		liveShows: catalog.NewLiveShowService(db, match.NewClassifier(cfg.Match.PartialThreshold)),
		stats:     stats.NewService(db),
		syncStore: sync.NewStore(db),
		bus:       event.NewBus(logger, 256),
	}
	s.coordinator = sync.NewCoordinator(s.syncStore, sync.NewLocker(cfg.Sync.LockDir), s.bus, logger, cfg.Sync.SkipDays)
	registerSources(s.coordinator, cfg, s, logger)
	return s
}

// registerSources wires every configured source into the coordinator.
// Sources missing their configuration stay unregistered, so a sync
// attempt reports an unknown source instead of failing mid-run.
func registerSources(c *sync.Coordinator, cfg *config.Config, svc *services, logger *slog.Logger) {
	policy := match.NewPolicy(cfg.Match.TagCodes, cfg.Match.TagPriority)

	if cfg.Roon.AlbumsCSV != "" {
		c.Register(roon.NewAlbumsSource(cfg.Roon.AlbumsCSV, svc.digital, policy))
	}
	if cfg.Roon.TagsCSV != "" {
		c.Register(roon.NewTagsSource(cfg.Roon.TagsCSV, svc.digital, policy))
	}
	if cfg.Roon.TracksCSV != "" {
		c.Register(roon.NewTracksSource(cfg.Roon.TracksCSV, svc.digital))
	}
	if cfg.Roon.PlayHistoryJSON != "" {
		c.Register(roon.NewPlaysSource(cfg.Roon.PlayHistoryJSON, svc.digital))
	}

	if cfg.Discogs.Token != "" && cfg.Discogs.Username != "" {
		client := discogs.NewClient(discogs.Config{
			Token:   cfg.Discogs.Token,
			BaseURL: cfg.Discogs.BaseURL,
			PerPage: cfg.Discogs.PerPage,
		}, logger)
		c.Register(discogs.NewCollectionSource(client, cfg.Discogs.Username, svc.physical, logger))
		c.Register(discogs.NewWantlistSource(client, cfg.Discogs.Username, svc.physical, logger))
	}
}

// watchTargets maps each Roon export file to its source name. Targets
// with unconfigured paths are dropped by the watcher.
func watchTargets(cfg *config.Config) []watcher.Target {
	return []watcher.Target{
		{Source: roon.SourceAlbums, Path: cfg.Roon.AlbumsCSV},
		{Source: roon.SourceTags, Path: cfg.Roon.TagsCSV},
		{Source: roon.SourceTracks, Path: cfg.Roon.TracksCSV},
		{Source: roon.SourcePlayHistory, Path: cfg.Roon.PlayHistoryJSON},
	}
}
