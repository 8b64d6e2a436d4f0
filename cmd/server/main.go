// Transcriptory - Channel Transcript Harvesting Engine
// Copyright 2026 Transcriptory Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/transcriptory/transcriptory

// Package main is the entry point for the Transcriptory server.
//
// Transcriptory harvests subtitle transcripts from video channels. Channels
// are submitted over the HTTP API, their videos are enumerated and queued in
// an embedded DuckDB store, and a worker pool drains the queue by invoking
// yt-dlp per video and persisting the cleaned transcript text.
//
// # Startup Order
//
//  1. Configuration: Koanf v2 layered defaults, YAML file, environment
//  2. Logging: zerolog, JSON or console output
//  3. Store: embedded DuckDB, schema migration, settings seeding
//  4. Recovery: reset interrupted work, reconcile orphaned transcripts
//  5. Engine: extractor, worker pool, ingestion manager
//  6. Supervisor tree: HTTP API and store maintenance under suture
//
// # Configuration
//
// Highest priority wins:
//   - Environment variables (HTTP_PORT, DUCKDB_PATH, WORKERS_MAX, ...)
//   - Config file (config.yaml)
//   - Built-in defaults
//
// The workers.* values seed the persistent settings row on first boot only;
// after that the settings endpoint is authoritative.
//
// # Signal Handling
//
// SIGINT and SIGTERM trigger graceful shutdown: the HTTP server drains
// in-flight requests, the worker pool finishes or releases claimed videos,
// ingestion goroutines are awaited, and the store is checkpointed and closed.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/transcriptory/transcriptory/internal/api"
	"github.com/transcriptory/transcriptory/internal/config"
	"github.com/transcriptory/transcriptory/internal/database"
	"github.com/transcriptory/transcriptory/internal/extractor"
	"github.com/transcriptory/transcriptory/internal/ingest"
	"github.com/transcriptory/transcriptory/internal/joblog"
	"github.com/transcriptory/transcriptory/internal/logging"
	"github.com/transcriptory/transcriptory/internal/models"
	"github.com/transcriptory/transcriptory/internal/supervisor"
	"github.com/transcriptory/transcriptory/internal/supervisor/services"
	"github.com/transcriptory/transcriptory/internal/worker"
)

const shutdownBudget = 30 * time.Second

func main() {
	// Load configuration first to get logging settings.
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("db_path", cfg.Database.Path).
		Str("extractor", cfg.Extractor.BinPath).
		Int("port", cfg.Server.Port).
		Msg("Starting Transcriptory")

	db, err := database.New(&cfg.Database)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing database")
		}
	}()
	logging.Info().Msg("Database initialized successfully")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Config seeds the settings row on first boot only; after that the
	// stored row is authoritative.
	if err := db.SeedSettings(ctx, models.Settings{
		MaxWorkers:    cfg.Workers.MaxWorkers,
		MaxRetries:    cfg.Workers.MaxRetries,
		BackoffFactor: cfg.Workers.BackoffFactor,
		OutputDir:     cfg.Workers.OutputDir,
	}); err != nil {
		logging.Fatal().Err(err).Msg("Failed to seed settings")
	}

	if err := recoverQueue(ctx, db); err != nil {
		logging.Fatal().Err(err).Msg("Startup queue recovery failed")
	}

	ext := extractor.NewYtDlp(&cfg.Extractor)
	jlog := joblog.New(db)
	pool := worker.NewPool(db, ext, jlog)
	mgr := ingest.NewManager(db, ext, jlog)

	server := api.NewServer(db, pool, mgr, jlog, &cfg.Server)
	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      server.Router(),
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
		IdleTimeout:  2 * cfg.Server.Timeout,
	}

	treeCfg := supervisor.DefaultTreeConfig()
	treeCfg.ShutdownTimeout = cfg.Server.ShutdownTimeout
	tree := supervisor.NewTree(logging.NewSlogLogger(), treeCfg)
	tree.AddAPIService(services.NewHTTPServerService(httpServer, cfg.Server.ShutdownTimeout))
	tree.AddEngineService(services.NewMaintenanceService(db, 0))

	errCh := tree.ServeBackground(ctx)
	logging.Info().Str("addr", httpServer.Addr).Msg("Server started")

	select {
	case <-ctx.Done():
		logging.Info().Msg("Received shutdown signal")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree terminated")
		}
	}
	stop()

	shutdown(pool, mgr, tree)
	logging.Info().Msg("Shutdown complete")
}

// recoverQueue repairs state left over from an unclean stop: claimed
// videos go back to pending, their attempt counters reset, and videos
// that already have a stored transcript are marked completed.
func recoverQueue(ctx context.Context, db *database.DB) error {
	reset, err := db.ResetProcessing(ctx)
	if err != nil {
		return fmt.Errorf("reset processing: %w", err)
	}
	if reset > 0 {
		logging.Info().Int64("videos", reset).Msg("Recovered interrupted videos to pending")
	}

	cleared, err := db.ResetAttempts(ctx)
	if err != nil {
		return fmt.Errorf("reset attempts: %w", err)
	}
	if cleared > 0 {
		logging.Info().Int64("videos", cleared).Msg("Cleared attempt counters on queued videos")
	}

	reconciled, err := db.Reconcile(ctx)
	if err != nil {
		return fmt.Errorf("reconcile: %w", err)
	}
	if reconciled > 0 {
		logging.Info().Int64("videos", reconciled).Msg("Reconciled videos with stored transcripts")
	}
	return nil
}

// shutdown stops the engine components after the supervisor tree has
// released the HTTP listener.
func shutdown(pool *worker.Pool, mgr *ingest.Manager, tree *supervisor.Tree) {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownBudget)
	defer cancel()

	if err := pool.Stop(shutdownCtx); err != nil && !errors.Is(err, worker.ErrNotRunning) {
		logging.Error().Err(err).Msg("Worker pool stop failed")
	}
	if err := mgr.Shutdown(shutdownCtx); err != nil {
		logging.Warn().Err(err).Msg("Ingestion shutdown incomplete")
	}

	if report, err := tree.UnstoppedServiceReport(); err == nil && len(report) > 0 {
		for _, svc := range report {
			logging.Warn().Str("service", svc.Name).Msg("Service did not stop within timeout")
		}
	}
}
