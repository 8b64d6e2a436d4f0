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

// CreateChannel inserts a channel with the given normalized URL and name
// and returns the stored row. The URL must be unique; a duplicate insert
// surfaces the store's constraint error to the caller.
func (db *DB) CreateChannel(ctx context.Context, url, name string) (*models.Channel, error) {
	ctx, cancel := db.opCtx(ctx)
	defer cancel()

	var ch models.Channel
	err := db.conn.QueryRowContext(ctx,
		`INSERT INTO channels (url, name) VALUES (?, ?)
		 RETURNING id, url, name, total_videos, created_at`,
		url, name).Scan(&ch.ID, &ch.URL, &ch.Name, &ch.TotalVideos, &ch.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create channel: %w", err)
	}
	return &ch, nil
}

// GetChannel returns the channel with the given id, or ErrNotFound.
func (db *DB) GetChannel(ctx context.Context, id int64) (*models.Channel, error) {
	ctx, cancel := db.opCtx(ctx)
	defer cancel()

	var ch models.Channel
	err := db.conn.QueryRowContext(ctx,
		`SELECT id, url, name, total_videos, created_at FROM channels WHERE id = ?`,
		id).Scan(&ch.ID, &ch.URL, &ch.Name, &ch.TotalVideos, &ch.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get channel %d: %w", id, err)
	}
	return &ch, nil
}

// GetChannelByURL returns the channel with the given normalized URL, or
// ErrNotFound. Used for duplicate detection before ingestion.
func (db *DB) GetChannelByURL(ctx context.Context, url string) (*models.Channel, error) {
	ctx, cancel := db.opCtx(ctx)
	defer cancel()

	var ch models.Channel
	err := db.conn.QueryRowContext(ctx,
		`SELECT id, url, name, total_videos, created_at FROM channels WHERE url = ?`,
		url).Scan(&ch.ID, &ch.URL, &ch.Name, &ch.TotalVideos, &ch.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get channel by url: %w", err)
	}
	return &ch, nil
}

// ListChannelStats returns every channel with its per-status video
// counts, newest channel first.
func (db *DB) ListChannelStats(ctx context.Context) ([]models.ChannelStats, error) {
	ctx, cancel := db.opCtx(ctx)
	defer cancel()

	rows, err := db.conn.QueryContext(ctx,
		`SELECT c.id, c.url, c.name, c.total_videos, c.created_at,
		        COUNT(CASE WHEN v.status = 'pending' THEN 1 END),
		        COUNT(CASE WHEN v.status = 'processing' THEN 1 END),
		        COUNT(CASE WHEN v.status = 'completed' THEN 1 END),
		        COUNT(CASE WHEN v.status = 'failed' THEN 1 END)
		 FROM channels c
		 LEFT JOIN videos v ON v.channel_id = c.id
		 GROUP BY c.id, c.url, c.name, c.total_videos, c.created_at
		 ORDER BY c.id DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list channels: %w", err)
	}
	defer closeWithLog(rows, "channel stats rows")

	stats := make([]models.ChannelStats, 0)
	for rows.Next() {
		var s models.ChannelStats
		if err := rows.Scan(&s.ID, &s.URL, &s.Name, &s.TotalVideos, &s.CreatedAt,
			&s.Pending, &s.Processing, &s.Completed, &s.Failed); err != nil {
			return nil, fmt.Errorf("failed to scan channel stats: %w", err)
		}
		stats = append(stats, s)
	}
	return stats, rows.Err()
}

// UpdateChannelName replaces a channel's display name. Used to resolve
// the "Loading" sentinel once metadata arrives, or to mark a fatally
// failed ingestion.
func (db *DB) UpdateChannelName(ctx context.Context, id int64, name string) error {
	ctx, cancel := db.opCtx(ctx)
	defer cancel()

	res, err := db.conn.ExecContext(ctx,
		`UPDATE channels SET name = ? WHERE id = ?`, name, id)
	if err != nil {
		return fmt.Errorf("failed to update channel name: %w", err)
	}
	return requireRowAffected(res, id)
}

// RefreshChannelTotal recomputes total_videos from the videos table.
func (db *DB) RefreshChannelTotal(ctx context.Context, id int64) error {
	ctx, cancel := db.opCtx(ctx)
	defer cancel()

	res, err := db.conn.ExecContext(ctx,
		`UPDATE channels
		 SET total_videos = (SELECT COUNT(*) FROM videos WHERE channel_id = ?)
		 WHERE id = ?`, id, id)
	if err != nil {
		return fmt.Errorf("failed to refresh channel total: %w", err)
	}
	return requireRowAffected(res, id)
}

// DeleteChannel removes a channel, its videos, and their subtitles in
// one transaction. Log rows referencing the deleted videos are kept for
// audit history with their video_id cleared. Returns the number of
// videos deleted.
func (db *DB) DeleteChannel(ctx context.Context, id int64) (int64, error) {
	ctx, cancel := db.opCtx(ctx)
	defer cancel()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin delete transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var exists int
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM channels WHERE id = ?`, id).Scan(&exists)
	if err != nil {
		return 0, fmt.Errorf("failed to check channel %d: %w", id, err)
	}
	if exists == 0 {
		return 0, ErrNotFound
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM subtitles
		 WHERE video_id IN (SELECT id FROM videos WHERE channel_id = ?)`, id); err != nil {
		return 0, fmt.Errorf("failed to delete channel subtitles: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE logs SET video_id = NULL
		 WHERE video_id IN (SELECT id FROM videos WHERE channel_id = ?)`, id); err != nil {
		return 0, fmt.Errorf("failed to detach channel logs: %w", err)
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM videos WHERE channel_id = ?`, id)
	if err != nil {
		return 0, fmt.Errorf("failed to delete channel videos: %w", err)
	}
	videosDeleted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted videos: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM channels WHERE id = ?`, id); err != nil {
		return 0, fmt.Errorf("failed to delete channel %d: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit channel delete: %w", err)
	}
	return videosDeleted, nil
}

// requireRowAffected maps a zero-row UPDATE to ErrNotFound.
func requireRowAffected(res sql.Result, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("row %d: %w", id, ErrNotFound)
	}
	return nil
}
