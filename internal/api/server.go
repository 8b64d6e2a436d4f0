// Transcriptory - Channel Transcript Harvesting Engine
// Copyright 2026 Transcriptory Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/transcriptory/transcriptory

// Package api exposes the control and inspection HTTP surface: channel
// ingestion, queue inspection, worker control, and transcript retrieval.
//
// Error responses use a single shape everywhere: an HTTP status code
// plus {"detail": "<message>"}.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"

	"github.com/transcriptory/transcriptory/internal/config"
	"github.com/transcriptory/transcriptory/internal/database"
	"github.com/transcriptory/transcriptory/internal/ingest"
	"github.com/transcriptory/transcriptory/internal/joblog"
	"github.com/transcriptory/transcriptory/internal/metrics"
	"github.com/transcriptory/transcriptory/internal/middleware"
	"github.com/transcriptory/transcriptory/internal/worker"
)

// Server wires the HTTP handlers to the store, the worker pool, and the
// ingestion manager.
type Server struct {
	db     *database.DB
	pool   *worker.Pool
	ingest *ingest.Manager
	jlog   *joblog.Logger
	cfg    *config.ServerConfig
}

// NewServer returns a Server ready to produce its router.
func NewServer(db *database.DB, pool *worker.Pool, ingestMgr *ingest.Manager, jlog *joblog.Logger, cfg *config.ServerConfig) *Server {
	return &Server{
		db:     db,
		pool:   pool,
		ingest: ingestMgr,
		jlog:   jlog,
		cfg:    cfg,
	}
}

// Router builds the chi route tree.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.Prometheus)
	r.Use(httprate.LimitByIP(300, time.Minute))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get("/healthz", s.handleHealthz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/channels", func(r chi.Router) {
		r.Post("/", s.handleCreateChannel)
		r.Get("/", s.handleListChannels)
		r.Get("/{id}", s.handleGetChannel)
		r.Get("/{id}/ingestion-status", s.handleIngestionStatus)
		r.Get("/{id}/videos", s.handleChannelVideos)
		r.Get("/{id}/subtitles/download", s.handleDownloadChannelArchive)
		r.Delete("/{id}", s.handleDeleteChannel)
	})

	r.Route("/videos", func(r chi.Router) {
		r.Get("/", s.handleListVideos)
		r.Get("/queue/stats", s.handleQueueStats)
		r.Get("/queue/failed", s.handleFailedVideos)
		r.Get("/{id}", s.handleGetVideo)
		r.Get("/{id}/subtitles", s.handleVideoSubtitles)
		r.Get("/{id}/subtitles/download", s.handleDownloadVideoSubtitles)
		r.Post("/{id}/retry", s.handleRetryVideo)
		r.Delete("/{id}", s.handleDeleteVideo)
	})

	r.Route("/jobs", func(r chi.Router) {
		r.Post("/workers/start", s.handleStartWorkers)
		r.Post("/workers/stop", s.handleStopWorkers)
		r.Post("/workers/restart", s.handleRestartWorkers)
		r.Get("/workers/status", s.handleWorkersStatus)
		r.Post("/start", s.handleStartJob)
		r.Post("/pause", s.handlePauseJob)
		r.Post("/resume", s.handleResumeJob)
		r.Post("/stop", s.handleStopJob)
		r.Get("/status", s.handleJobStatus)
		r.Get("/stats", s.handleQueueStats)
		r.Get("/failed", s.handleFailedVideos)
		r.Post("/reconcile", s.handleReconcile)
		r.Get("/logs", s.handleListLogs)
		r.Post("/logs/cleanup", s.handleCleanupLogs)
		r.Post("/cleanup", s.handleCleanupLogsByQuery)
		r.Get("/settings", s.handleGetSettings)
		r.Post("/settings", s.handleUpdateSettings)
	})

	r.Route("/subtitles", func(r chi.Router) {
		r.Get("/", s.handleListSubtitles)
		r.Get("/{id}", s.handleGetSubtitle)
		r.Get("/{id}/download", s.handleDownloadSubtitle)
	})

	return r
}
