package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"salesplan-dashboard/internal/config"
	"salesplan-dashboard/internal/handlers"
	"salesplan-dashboard/internal/middleware"
	"salesplan-dashboard/internal/narrative"
	"salesplan-dashboard/internal/observability"
	"salesplan-dashboard/internal/pricing"
	"salesplan-dashboard/internal/seed"
	"salesplan-dashboard/internal/server"
	"salesplan-dashboard/internal/services"
	"salesplan-dashboard/internal/settings"
	"salesplan-dashboard/internal/store"
)

const planLoadTimeout = 30 * time.Second

// app holds everything main wires together; tests build it without a listener.
type app struct {
	store    store.RecordStore
	planner  *services.Planner
	exporter *services.Exporter
	settings *settings.Context
	deps     handlers.Deps
}

func loadDataset(path string) (*seed.Dataset, error) {
	if path == "" {
		return seed.Default()
	}
	return seed.LoadFile(path)
}

func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	ds, err := loadDataset(cfg.Plan.SeedFile)
	if err != nil {
		return nil, fmt.Errorf("load seed dataset: %w", err)
	}
	year := cfg.Plan.Year
	if year == 0 {
		year = ds.Year
	}

	storeCtx, cancel := context.WithTimeout(ctx, cfg.Store.Timeout)
	defer cancel()
	st, err := store.Open(storeCtx, store.Config{
		Driver:      cfg.Store.Driver,
		DatabaseURL: cfg.Store.DatabaseURL,
		SQLitePath:  cfg.Store.SQLitePath,
		SchemaPath:  cfg.Store.SchemaPath,
	})
	if err != nil {
		return nil, fmt.Errorf("open record store: %w", err)
	}

	planner := services.NewPlanner(st, ds, logger)
	loadCtx, cancelLoad := context.WithTimeout(ctx, planLoadTimeout)
	defer cancelLoad()
	if err := planner.Load(loadCtx, year); err != nil {
		st.Close()
		return nil, fmt.Errorf("load plan: %w", err)
	}

	prefs, err := settings.Init(settings.Defaults(year))
	if err != nil {
		st.Close()
		return nil, err
	}

	exporter := services.NewExporter(planner, st, narrative.NewSeeded(cfg.Plan.NarrativeSeed), logger, services.ExporterOptions{
		NarrativeWorkers: cfg.Export.NarrativeWorkers,
		PreviewTTL:       cfg.Export.PreviewTTL,
		FilenamePrefix:   cfg.Export.FilenamePrefix,
		Timeout:          cfg.Export.Timeout,
	})

	return &app{
		store:    st,
		planner:  planner,
		exporter: exporter,
		settings: prefs,
		deps: handlers.Deps{
			Planner:  planner,
			Exporter: exporter,
			Catalog:  pricing.NewCatalog(ds.PricingPlans, cfg.Plan.VATRate),
			Settings: prefs,
			Logger:   logger,
		},
	}, nil
}

func (a *app) handler(cfg *config.Config, logger *slog.Logger) http.Handler {
	srv := server.NewServer(a.deps, &server.TemplateHandlers{
		Dashboard: handlers.Dashboard(a.deps),
	})

	rateLimiter := middleware.NewRateLimiter(cfg.Security)

	middlewareChain := middleware.Chain(
		middleware.Recovery(logger),
		middleware.RequestID(),
		middleware.Logger(logger),
		middleware.Tracing(logger),
		middleware.SecurityHeaders(),
		middleware.CORS(cfg.Security),
		middleware.TrustedProxy(cfg.Security),
		middleware.RateLimit(rateLimiter, logger),
	)

	return middlewareChain(srv)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.Logger)
	slog.SetDefault(logger)

	logger.Info("starting application",
		"version", "1.0.0",
		"config", cfg,
	)

	start := time.Now()
	a, err := newApp(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("failed to initialise application", "error", err)
		os.Exit(1)
	}
	logger.Info("plan loaded",
		"duration", time.Since(start),
		"year", a.planner.Year(),
		"source", a.planner.Source(),
		"store", cfg.Store.Driver,
	)

	httpServer := &http.Server{
		Addr:         cfg.Address(),
		Handler:      a.handler(cfg, logger),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Settings streams stay open until the settings context closes, so close it
	// as soon as shutdown begins.
	httpServer.RegisterOnShutdown(a.settings.Close)

	gracefulServer := server.NewGracefulServer(httpServer, logger, cfg)

	gracefulServer.RegisterShutdownHook("record-store", func(ctx context.Context) error {
		if n := len(a.planner.Unsynced()); n > 0 {
			logger.Warn("shutting down with unsaved offers", "count", n, "remaining", a.planner.Resync(ctx))
		}
		return a.store.Close()
	})

	logger.Info("starting graceful server")
	if err := gracefulServer.ListenAndServe(); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}

	logger.Info("application stopped gracefully")
}
