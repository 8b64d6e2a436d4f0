// Transcriptory - Channel Transcript Harvesting Engine
// Copyright 2026 Transcriptory Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/transcriptory/transcriptory

package database

import (
	"context"
	"fmt"

	"github.com/transcriptory/transcriptory/internal/models"
)

// GetJob returns the singleton job record. The row is seeded at schema
// creation, so a missing row indicates a corrupted store.
func (db *DB) GetJob(ctx context.Context) (*models.Job, error) {
	ctx, cancel := db.opCtx(ctx)
	defer cancel()

	var j models.Job
	err := db.conn.QueryRowContext(ctx,
		`SELECT id, status, active_workers, started_at, stopped_at
		 FROM jobs WHERE id = 1`).
		Scan(&j.ID, &j.Status, &j.ActiveWorkers, &j.StartedAt, &j.StoppedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to get job record: %w", err)
	}
	return &j, nil
}

// SetJobRunning marks the job record running with the given worker count
// and a fresh start time.
func (db *DB) SetJobRunning(ctx context.Context, activeWorkers int) error {
	ctx, cancel := db.opCtx(ctx)
	defer cancel()

	_, err := db.conn.ExecContext(ctx,
		`UPDATE jobs
		 SET status = 'running', active_workers = ?,
		     started_at = CURRENT_TIMESTAMP, stopped_at = NULL
		 WHERE id = 1`, activeWorkers)
	if err != nil {
		return fmt.Errorf("failed to mark job running: %w", err)
	}
	return nil
}

// SetJobStopped marks the job record idle with a stop time.
func (db *DB) SetJobStopped(ctx context.Context) error {
	ctx, cancel := db.opCtx(ctx)
	defer cancel()

	_, err := db.conn.ExecContext(ctx,
		`UPDATE jobs
		 SET status = 'idle', active_workers = 0, stopped_at = CURRENT_TIMESTAMP
		 WHERE id = 1`)
	if err != nil {
		return fmt.Errorf("failed to mark job stopped: %w", err)
	}
	return nil
}

// MarkJobRunning flips the advisory status to running without touching
// the worker count. Backs the start and resume operations; workers read
// the status before every claim.
func (db *DB) MarkJobRunning(ctx context.Context) error {
	ctx, cancel := db.opCtx(ctx)
	defer cancel()

	_, err := db.conn.ExecContext(ctx,
		`UPDATE jobs
		 SET status = 'running', started_at = CURRENT_TIMESTAMP, stopped_at = NULL
		 WHERE id = 1`)
	if err != nil {
		return fmt.Errorf("failed to mark job running: %w", err)
	}
	return nil
}

// MarkJobPaused flips the advisory status to paused. Workers stay alive
// but stop claiming until the status returns to running.
func (db *DB) MarkJobPaused(ctx context.Context) error {
	ctx, cancel := db.opCtx(ctx)
	defer cancel()

	_, err := db.conn.ExecContext(ctx,
		`UPDATE jobs SET status = 'paused', stopped_at = CURRENT_TIMESTAMP WHERE id = 1`)
	if err != nil {
		return fmt.Errorf("failed to mark job paused: %w", err)
	}
	return nil
}
