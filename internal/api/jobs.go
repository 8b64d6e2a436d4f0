// Transcriptory - Channel Transcript Harvesting Engine
// Copyright 2026 Transcriptory Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/transcriptory/transcriptory

package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/transcriptory/transcriptory/internal/database"
	"github.com/transcriptory/transcriptory/internal/models"
	"github.com/transcriptory/transcriptory/internal/worker"
)

// WorkerControlRequest is the optional body of the worker control
// endpoints. Zero means "use the stored max_workers setting".
type WorkerControlRequest struct {
	NumWorkers int `json:"num_workers" validate:"omitempty,min=1,max=20"`
}

// JobControlResponse is the body of the worker control endpoints.
type JobControlResponse struct {
	Message    string             `json:"message"`
	Status     models.JobStatus   `json:"status"`
	QueueStats *models.QueueStats `json:"queue_stats"`
}

// JobStatusResponse is the body of GET /jobs/status.
type JobStatusResponse struct {
	Status     models.JobStatus   `json:"status"`
	Job        *models.Job        `json:"job"`
	Workers    []worker.Status    `json:"workers"`
	QueueStats *models.QueueStats `json:"queue_stats"`
}

// FailedVideosResponse is the body of GET /jobs/failed.
type FailedVideosResponse struct {
	Videos []models.FailedVideo `json:"videos"`
	Total  int                  `json:"total"`
}

// ReconcileResponse is the body of POST /jobs/reconcile.
type ReconcileResponse struct {
	Message         string `json:"message"`
	CompletedVideos int64  `json:"completed_videos"`
	ResetVideos     int64  `json:"reset_videos"`
}

// LogListResponse is the body of GET /jobs/logs.
type LogListResponse struct {
	Logs  []models.LogEntry `json:"logs"`
	Total int               `json:"total"`
}

// CleanupLogsRequest is the body of POST /jobs/logs/cleanup.
type CleanupLogsRequest struct {
	Days int `json:"days" validate:"required,min=1,max=365"`
}

// UpdateSettingsRequest is the body of POST /jobs/settings. The ranges
// mirror the config validation for the same knobs.
type UpdateSettingsRequest struct {
	MaxWorkers    int     `json:"max_workers" validate:"required,min=1,max=20"`
	MaxRetries    int     `json:"max_retries" validate:"min=0,max=10"`
	BackoffFactor float64 `json:"backoff_factor" validate:"required,gte=1,lte=10"`
	OutputDir     string  `json:"output_dir" validate:"required"`
}

func (s *Server) handleStartWorkers(w http.ResponseWriter, r *http.Request) {
	var req WorkerControlRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if err := s.pool.Start(r.Context(), req.NumWorkers); err != nil {
		if errors.Is(err, worker.ErrAlreadyRunning) {
			respondError(w, http.StatusConflict, "workers already running")
			return
		}
		respondStoreError(w, err)
		return
	}
	s.respondJobControl(w, r, "workers started")
}

// workerStopBudget bounds how long a stop waits for in-flight videos.
const workerStopBudget = 30 * time.Second

// workerStopContext detaches the stop from the request context so a
// dropped client cannot abort a half-finished shutdown.
func workerStopContext(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(r.Context()), workerStopBudget)
}

func (s *Server) handleStopWorkers(w http.ResponseWriter, r *http.Request) {
	stopCtx, cancel := workerStopContext(r)
	defer cancel()

	if err := s.pool.Stop(stopCtx); err != nil {
		if errors.Is(err, worker.ErrNotRunning) {
			respondError(w, http.StatusConflict, "workers not running")
			return
		}
		respondStoreError(w, err)
		return
	}
	s.respondJobControl(w, r, "workers stopped")
}

func (s *Server) handleRestartWorkers(w http.ResponseWriter, r *http.Request) {
	var req WorkerControlRequest
	if !decodeBody(w, r, &req) {
		return
	}

	stopCtx, cancel := workerStopContext(r)
	defer cancel()

	if err := s.pool.Restart(stopCtx, req.NumWorkers); err != nil {
		respondStoreError(w, err)
		return
	}
	s.respondJobControl(w, r, "workers restarted")
}

// Job lifecycle endpoints flip the advisory job record; workers consult
// it before every claim, so pausing idles them without tearing the pool
// down.

func (s *Server) handleStartJob(w http.ResponseWriter, r *http.Request) {
	if err := s.db.MarkJobRunning(r.Context()); err != nil {
		respondStoreError(w, err)
		return
	}
	s.respondJobControl(w, r, "job processing started")
}

func (s *Server) handlePauseJob(w http.ResponseWriter, r *http.Request) {
	if err := s.db.MarkJobPaused(r.Context()); err != nil {
		respondStoreError(w, err)
		return
	}
	s.respondJobControl(w, r, "job processing paused")
}

func (s *Server) handleResumeJob(w http.ResponseWriter, r *http.Request) {
	if err := s.db.MarkJobRunning(r.Context()); err != nil {
		respondStoreError(w, err)
		return
	}
	s.respondJobControl(w, r, "job processing resumed")
}

// handleStopJob stops processing and immediately releases claimed work
// back to pending.
func (s *Server) handleStopJob(w http.ResponseWriter, r *http.Request) {
	if err := s.db.SetJobStopped(r.Context()); err != nil {
		respondStoreError(w, err)
		return
	}
	reset, err := s.db.ResetProcessing(r.Context())
	if err != nil {
		respondStoreError(w, err)
		return
	}

	msg := "job processing stopped"
	if reset > 0 {
		msg = fmt.Sprintf("job processing stopped, reset %d processing videos to pending", reset)
	}
	s.respondJobControl(w, r, msg)
}

func (s *Server) respondJobControl(w http.ResponseWriter, r *http.Request, message string) {
	job, err := s.db.GetJob(r.Context())
	if err != nil {
		respondStoreError(w, err)
		return
	}
	stats, err := s.db.Stats(r.Context())
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, JobControlResponse{
		Message:    message,
		Status:     job.Status,
		QueueStats: stats,
	})
}

func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	job, err := s.db.GetJob(r.Context())
	if err != nil {
		respondStoreError(w, err)
		return
	}
	stats, err := s.db.Stats(r.Context())
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, JobStatusResponse{
		Status:     job.Status,
		Job:        job,
		Workers:    s.pool.Statuses(),
		QueueStats: stats,
	})
}

// WorkersStatusResponse is the body of GET /jobs/workers/status.
type WorkersStatusResponse struct {
	Running        bool               `json:"running"`
	NumWorkers     int                `json:"num_workers"`
	ActiveWorkers  int                `json:"active_workers"`
	TotalProcessed int64              `json:"total_processed"`
	TotalFailed    int64              `json:"total_failed"`
	Workers        []worker.Status    `json:"workers"`
	Performance    worker.Metrics     `json:"performance"`
	QueueStats     *models.QueueStats `json:"queue_stats"`
}

func (s *Server) handleWorkersStatus(w http.ResponseWriter, r *http.Request) {
	stats, err := s.db.Stats(r.Context())
	if err != nil {
		respondStoreError(w, err)
		return
	}
	job, err := s.db.GetJob(r.Context())
	if err != nil {
		respondStoreError(w, err)
		return
	}

	workers := s.pool.Statuses()
	perf := s.pool.Metrics(stats.Pending)
	respondJSON(w, http.StatusOK, WorkersStatusResponse{
		Running:        s.pool.Running(),
		NumWorkers:     len(workers),
		ActiveWorkers:  job.ActiveWorkers,
		TotalProcessed: perf.TotalProcessed,
		TotalFailed:    perf.TotalFailed,
		Workers:        workers,
		Performance:    perf,
		QueueStats:     stats,
	})
}

func (s *Server) handleQueueStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.db.Stats(r.Context())
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

func (s *Server) handleFailedVideos(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50, 500)
	videos, err := s.db.FailedVideos(r.Context(), limit)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, FailedVideosResponse{Videos: videos, Total: len(videos)})
}

// handleReconcile runs the consistency pass on demand: videos with
// stored subtitles become completed, then orphaned processing rows
// return to pending.
func (s *Server) handleReconcile(w http.ResponseWriter, r *http.Request) {
	completed, err := s.db.Reconcile(r.Context())
	if err != nil {
		respondStoreError(w, err)
		return
	}
	reset, err := s.db.ResetProcessing(r.Context())
	if err != nil {
		respondStoreError(w, err)
		return
	}

	s.jlog.Info(r.Context(), nil, "Reconcile completed: %d videos completed, %d reset", completed, reset)
	respondJSON(w, http.StatusOK, ReconcileResponse{
		Message:         "reconcile completed",
		CompletedVideos: completed,
		ResetVideos:     reset,
	})
}

func (s *Server) handleListLogs(w http.ResponseWriter, r *http.Request) {
	filter := database.LogFilter{Limit: queryInt(r, "limit", 100, 1000)}

	if raw := r.URL.Query().Get("level"); raw != "" {
		level := models.LogLevel(raw)
		if !level.Valid() {
			respondError(w, http.StatusUnprocessableEntity, "invalid level %q", raw)
			return
		}
		filter.Level = &level
	}
	if raw := r.URL.Query().Get("video_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id < 1 {
			respondError(w, http.StatusUnprocessableEntity, "invalid video_id %q", raw)
			return
		}
		filter.VideoID = &id
	}

	logs, err := s.db.ListLogs(r.Context(), filter)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, LogListResponse{Logs: logs, Total: len(logs)})
}

func (s *Server) handleCleanupLogs(w http.ResponseWriter, r *http.Request) {
	var req CleanupLogsRequest
	if !decodeBody(w, r, &req) {
		return
	}
	s.cleanupLogs(w, r, req.Days)
}

// handleCleanupLogsByQuery is the query-parameter form of log cleanup.
func (s *Server) handleCleanupLogsByQuery(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("days")
	days, err := strconv.Atoi(raw)
	if err != nil || days < 1 || days > 365 {
		respondError(w, http.StatusUnprocessableEntity, "invalid days %q", raw)
		return
	}
	s.cleanupLogs(w, r, days)
}

func (s *Server) cleanupLogs(w http.ResponseWriter, r *http.Request, days int) {
	cutoff := time.Now().AddDate(0, 0, -days)
	deleted, err := s.db.CleanupLogs(r.Context(), cutoff)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"message": "log cleanup completed",
		"deleted": deleted,
	})
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := s.db.GetSettings(r.Context())
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, settings)
}

// handleUpdateSettings persists new queue settings. Running workers pick
// up retry and backoff changes on their next release; the worker count
// applies on the next start or restart.
func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req UpdateSettingsRequest
	if !decodeBody(w, r, &req) {
		return
	}

	settings := models.Settings{
		MaxWorkers:    req.MaxWorkers,
		MaxRetries:    req.MaxRetries,
		BackoffFactor: req.BackoffFactor,
		OutputDir:     req.OutputDir,
	}
	if err := s.db.UpdateSettings(r.Context(), settings); err != nil {
		respondStoreError(w, err)
		return
	}

	s.jlog.Info(r.Context(), nil, "Settings updated: workers=%d retries=%d backoff=%.1f",
		settings.MaxWorkers, settings.MaxRetries, settings.BackoffFactor)
	respondJSON(w, http.StatusOK, settings)
}
