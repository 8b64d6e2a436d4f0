// Transcriptory - Channel Transcript Harvesting Engine
// Copyright 2026 Transcriptory Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/transcriptory/transcriptory

package services

import (
	"context"
	"time"

	"github.com/transcriptory/transcriptory/internal/database"
	"github.com/transcriptory/transcriptory/internal/logging"
)

// MaintenanceService periodically checkpoints the store and runs the
// reconcile pass, so a crash window between subtitle upsert and release
// self-heals without waiting for a restart.
type MaintenanceService struct {
	db       *database.DB
	interval time.Duration
}

// NewMaintenanceService returns a service running every interval;
// 5 minutes when interval is zero.
func NewMaintenanceService(db *database.DB, interval time.Duration) *MaintenanceService {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &MaintenanceService{db: db, interval: interval}
}

// Serve implements suture.Service.
func (m *MaintenanceService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			m.runOnce(ctx)
		}
	}
}

func (m *MaintenanceService) runOnce(ctx context.Context) {
	if n, err := m.db.Reconcile(ctx); err != nil {
		logging.Warn().Err(err).Msg("Periodic reconcile failed")
	} else if n > 0 {
		logging.Info().Int64("videos", n).Msg("Periodic reconcile completed orphaned videos")
	}

	checkpointCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := m.db.Checkpoint(checkpointCtx); err != nil {
		logging.Warn().Err(err).Msg("Periodic checkpoint failed")
	}
}

// String identifies the service in supervisor logs.
func (m *MaintenanceService) String() string {
	return "store-maintenance"
}
