package main

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"tesslc/internal/archive"
	"tesslc/internal/catalog"
	"tesslc/internal/config"
	"tesslc/internal/coordinator"
	"tesslc/internal/logging"
	"tesslc/internal/metrics"
	"tesslc/internal/pipeline"
	"tesslc/internal/search"
	"tesslc/internal/store"
	"tesslc/internal/timeline"
)

// app holds the wired components shared by the subcommands.
type app struct {
	cfg       config.Config
	store     *store.Store
	coord     *coordinator.Coordinator
	timelines *timeline.Cache
	pipeline  *pipeline.Pipeline
	stats     *metrics.PointStats
	registry  *prometheus.Registry
}

func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func newApp(ctx context.Context, cfg config.Config) (*app, error) {
	a := &app{cfg: cfg, stats: metrics.NewPointStats(), registry: prometheus.NewRegistry()}
	debug := cfg.Logging.Debug

	m, err := metrics.New(a.registry)
	if err != nil {
		return nil, err
	}

	if cfg.Storage.Path != "" {
		a.store, err = store.Open(cfg.Storage.Path, cfg.Storage.MaxBytes)
		if err != nil {
			return nil, err
		}
	}

	client := archive.NewClient(cfg.Archive.Gateway, cfg.Archive.TimeoutDur)

	searches, err := search.New(client, search.Options{
		TTL:      cfg.Search.TTLDur,
		Capacity: cfg.Search.Capacity,
		Store:    a.store,
		Metrics:  m,
		Logger:   logging.New("search", debug),
	})
	if err != nil {
		a.close()
		return nil, err
	}

	stars, err := catalog.New(client, catalog.Options{
		TTL:      cfg.Catalog.TTLDur,
		Capacity: cfg.Catalog.Capacity,
		Radius:   cfg.Catalog.Radius,
		Metrics:  m,
		Logger:   logging.New("catalog", debug),
	})
	if err != nil {
		a.close()
		return nil, err
	}

	a.coord = coordinator.New(stars, coordinator.Options{
		JoinTimeout: cfg.Catalog.JoinTimeoutDur,
		Base:        ctx,
		Metrics:     m,
		Logger:      logging.New("coordinator", debug),
	})

	a.timelines = timeline.NewCache(archive.NewHTTPDumpFeed(cfg.Archive.DumpFeed, cfg.Archive.TimeoutDur), timeline.Options{
		TTL:        cfg.Timeline.TTLDur,
		RetryAfter: cfg.Timeline.RetryAfterDur,
		Store:      a.store,
		Metrics:    m,
		Logger:     logging.New("timeline", debug),
	})

	a.pipeline = pipeline.New(searches, a.coord, a.timelines, client, pipeline.Options{
		PageSize:           cfg.Pages.Size,
		MinExposure:        cfg.Search.MinExposure,
		Concurrency:        cfg.Pages.Concurrency,
		MaterializeTimeout: cfg.Pages.MaterializeTimeoutDur,
		Stats:              a.stats,
		Metrics:            m,
		Logger:             logging.New("pipeline", debug),
	})
	return a, nil
}

func (a *app) newSession() (*coordinator.Session, error) {
	return coordinator.NewSession(a.cfg.Session.TTLDur, a.cfg.Session.Capacity, nil)
}

func (a *app) close() {
	if a.store != nil {
		_ = a.store.Close()
	}
}
