// Transcriptory - Channel Transcript Harvesting Engine
// Copyright 2026 Transcriptory Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/transcriptory/transcriptory

package api

import (
	"context"
	"net/http"
	"time"
)

// HealthResponse is the body of GET /healthz.
type HealthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
	Workers  string `json:"workers"`
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	resp := HealthResponse{Status: "ok", Database: "ok", Workers: "idle"}
	status := http.StatusOK

	if err := s.db.Ping(ctx); err != nil {
		resp.Status = "degraded"
		resp.Database = err.Error()
		status = http.StatusServiceUnavailable
	}
	if s.pool.Running() {
		resp.Workers = "running"
	}

	respondJSON(w, status, resp)
}
