// Transcriptory - Channel Transcript Harvesting Engine
// Copyright 2026 Transcriptory Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/transcriptory/transcriptory

package database

import (
	"fmt"
)

// createTables creates all tables if they do not exist.
//
// DuckDB does not support IDENTITY columns combined with PRIMARY KEY, so
// each table draws its id from an explicit sequence. DuckDB also lacks
// ON DELETE CASCADE and rewrites UPDATEs as delete+insert (which trips
// foreign-key checks on hot rows), so referential integrity is enforced
// in application code: cascade deletes run inside a transaction in
// DeleteChannel, and log rows keep their video_id after video deletion.
func (db *DB) createTables() error {
	statements := []string{
		`CREATE SEQUENCE IF NOT EXISTS seq_channels START 1`,
		`CREATE SEQUENCE IF NOT EXISTS seq_videos START 1`,
		`CREATE SEQUENCE IF NOT EXISTS seq_subtitles START 1`,
		`CREATE SEQUENCE IF NOT EXISTS seq_logs START 1`,

		`CREATE TABLE IF NOT EXISTS channels (
			id BIGINT PRIMARY KEY DEFAULT nextval('seq_channels'),
			url VARCHAR NOT NULL UNIQUE,
			name VARCHAR NOT NULL,
			total_videos INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS videos (
			id BIGINT PRIMARY KEY DEFAULT nextval('seq_videos'),
			channel_id BIGINT NOT NULL,
			url VARCHAR NOT NULL UNIQUE,
			title VARCHAR NOT NULL DEFAULT '',
			status VARCHAR NOT NULL DEFAULT 'pending'
				CHECK (status IN ('pending', 'processing', 'completed', 'failed')),
			attempts INTEGER NOT NULL DEFAULT 0,
			last_error VARCHAR,
			completed_at TIMESTAMP,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS subtitles (
			id BIGINT PRIMARY KEY DEFAULT nextval('seq_subtitles'),
			video_id BIGINT NOT NULL,
			language VARCHAR NOT NULL,
			content VARCHAR NOT NULL,
			downloaded_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (video_id, language)
		)`,

		`CREATE TABLE IF NOT EXISTS jobs (
			id BIGINT PRIMARY KEY,
			status VARCHAR NOT NULL DEFAULT 'idle'
				CHECK (status IN ('idle', 'running', 'paused')),
			active_workers INTEGER NOT NULL DEFAULT 0,
			started_at TIMESTAMP,
			stopped_at TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS logs (
			id BIGINT PRIMARY KEY DEFAULT nextval('seq_logs'),
			video_id BIGINT,
			level VARCHAR NOT NULL CHECK (level IN ('INFO', 'WARN', 'ERROR')),
			message VARCHAR NOT NULL,
			timestamp TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS settings (
			id BIGINT PRIMARY KEY,
			max_workers INTEGER NOT NULL,
			max_retries INTEGER NOT NULL,
			backoff_factor DOUBLE NOT NULL,
			output_dir VARCHAR NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
	}

	for _, stmt := range statements {
		if _, err := db.conn.Exec(stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return nil
}

// createIndexes creates query indexes. idx_videos_pending_order backs the
// claim query (lowest pending id first); the others back the inspection
// endpoints.
func (db *DB) createIndexes() error {
	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_videos_status ON videos (status)`,
		`CREATE INDEX IF NOT EXISTS idx_videos_channel ON videos (channel_id)`,
		`CREATE INDEX IF NOT EXISTS idx_videos_pending_order ON videos (status, id)`,
		`CREATE INDEX IF NOT EXISTS idx_subtitles_video ON subtitles (video_id)`,
		`CREATE INDEX IF NOT EXISTS idx_logs_timestamp ON logs (timestamp)`,
		`CREATE INDEX IF NOT EXISTS idx_logs_video ON logs (video_id)`,
	}

	for _, stmt := range indexes {
		if _, err := db.conn.Exec(stmt); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}
	return nil
}

// seedSingletons inserts the singleton jobs row. The settings row is
// seeded separately via SeedSettings so config-provided values apply on
// first boot only.
func (db *DB) seedSingletons() error {
	_, err := db.conn.Exec(
		`INSERT INTO jobs (id, status, active_workers) VALUES (1, 'idle', 0)
		 ON CONFLICT (id) DO NOTHING`)
	if err != nil {
		return fmt.Errorf("failed to seed jobs row: %w", err)
	}
	return nil
}
