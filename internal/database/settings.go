// Transcriptory - Channel Transcript Harvesting Engine
// Copyright 2026 Transcriptory Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/transcriptory/transcriptory

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/transcriptory/transcriptory/internal/models"
)

// SeedSettings inserts the settings row if it does not exist. Called
// once at startup with config-provided values; after that the stored row
// is authoritative and config changes no longer apply.
func (db *DB) SeedSettings(ctx context.Context, s models.Settings) error {
	ctx, cancel := db.opCtx(ctx)
	defer cancel()

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO settings (id, max_workers, max_retries, backoff_factor, output_dir)
		 VALUES (1, ?, ?, ?, ?)
		 ON CONFLICT (id) DO NOTHING`,
		s.MaxWorkers, s.MaxRetries, s.BackoffFactor, s.OutputDir)
	if err != nil {
		return fmt.Errorf("failed to seed settings: %w", err)
	}
	return nil
}

// GetSettings returns the stored settings row, falling back to defaults
// if the row has not been seeded yet.
func (db *DB) GetSettings(ctx context.Context) (*models.Settings, error) {
	ctx, cancel := db.opCtx(ctx)
	defer cancel()

	var s models.Settings
	err := db.conn.QueryRowContext(ctx,
		`SELECT max_workers, max_retries, backoff_factor, output_dir
		 FROM settings WHERE id = 1`).
		Scan(&s.MaxWorkers, &s.MaxRetries, &s.BackoffFactor, &s.OutputDir)
	if errors.Is(err, sql.ErrNoRows) {
		defaults := models.DefaultSettings()
		return &defaults, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get settings: %w", err)
	}
	return &s, nil
}

// UpdateSettings replaces the settings row. Validation of ranges happens
// at the API boundary; the store accepts what it is given.
func (db *DB) UpdateSettings(ctx context.Context, s models.Settings) error {
	ctx, cancel := db.opCtx(ctx)
	defer cancel()

	res, err := db.conn.ExecContext(ctx,
		`UPDATE settings
		 SET max_workers = ?, max_retries = ?, backoff_factor = ?, output_dir = ?
		 WHERE id = 1`,
		s.MaxWorkers, s.MaxRetries, s.BackoffFactor, s.OutputDir)
	if err != nil {
		return fmt.Errorf("failed to update settings: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to count settings update: %w", err)
	}
	if n == 0 {
		// Row was never seeded; insert it instead.
		_, err := db.conn.ExecContext(ctx,
			`INSERT INTO settings (id, max_workers, max_retries, backoff_factor, output_dir)
			 VALUES (1, ?, ?, ?, ?)`,
			s.MaxWorkers, s.MaxRetries, s.BackoffFactor, s.OutputDir)
		if err != nil {
			return fmt.Errorf("failed to insert settings: %w", err)
		}
	}
	return nil
}
