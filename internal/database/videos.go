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
	"strings"

	"github.com/transcriptory/transcriptory/internal/models"
)

// NewVideo is the insert shape for batch video ingestion.
type NewVideo struct {
	URL   string
	Title string
}

// InsertVideos batch-inserts videos for a channel in pending status.
// Videos whose URL already exists anywhere in the store are skipped, so
// a video listed by two channels keeps its first owner. Returns the
// number of rows actually inserted.
func (db *DB) InsertVideos(ctx context.Context, channelID int64, videos []NewVideo) (int64, error) {
	if len(videos) == 0 {
		return 0, nil
	}

	ctx, cancel := db.opCtx(ctx)
	defer cancel()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin insert transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO videos (channel_id, url, title)
		 VALUES (?, ?, ?)
		 ON CONFLICT (url) DO NOTHING`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare video insert: %w", err)
	}
	defer closeWithLog(stmt, "video insert statement")

	var inserted int64
	for _, v := range videos {
		res, err := stmt.ExecContext(ctx, channelID, v.URL, v.Title)
		if err != nil {
			return 0, fmt.Errorf("failed to insert video %s: %w", v.URL, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("failed to count inserted video: %w", err)
		}
		inserted += n
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit video inserts: %w", err)
	}
	return inserted, nil
}

// GetVideo returns the video with the given id, or ErrNotFound.
func (db *DB) GetVideo(ctx context.Context, id int64) (*models.Video, error) {
	ctx, cancel := db.opCtx(ctx)
	defer cancel()

	var v models.Video
	err := db.conn.QueryRowContext(ctx,
		`SELECT id, channel_id, url, title, status, attempts, last_error, completed_at, created_at
		 FROM videos WHERE id = ?`, id).
		Scan(&v.ID, &v.ChannelID, &v.URL, &v.Title, &v.Status,
			&v.Attempts, &v.LastError, &v.CompletedAt, &v.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get video %d: %w", id, err)
	}
	return &v, nil
}

// VideoFilter narrows ListVideos. Nil fields are ignored.
type VideoFilter struct {
	ChannelID *int64
	Status    *models.VideoStatus
	Limit     int
	Offset    int
}

// ListVideos returns videos matching the filter ordered by id descending,
// plus the total count matching the filter before pagination.
func (db *DB) ListVideos(ctx context.Context, f VideoFilter) ([]models.Video, int, error) {
	ctx, cancel := db.opCtx(ctx)
	defer cancel()

	var conds []string
	var args []any
	if f.ChannelID != nil {
		conds = append(conds, "channel_id = ?")
		args = append(args, *f.ChannelID)
	}
	if f.Status != nil {
		conds = append(conds, "status = ?")
		args = append(args, string(*f.Status))
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := db.conn.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM videos"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count videos: %w", err)
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT id, channel_id, url, title, status, attempts, last_error, completed_at, created_at
	 FROM videos` + where + ` ORDER BY id DESC LIMIT ? OFFSET ?`
	rows, err := db.conn.QueryContext(ctx, query, append(args, limit, f.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list videos: %w", err)
	}
	defer closeWithLog(rows, "video rows")

	videos := make([]models.Video, 0, limit)
	for rows.Next() {
		var v models.Video
		if err := rows.Scan(&v.ID, &v.ChannelID, &v.URL, &v.Title, &v.Status,
			&v.Attempts, &v.LastError, &v.CompletedAt, &v.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("failed to scan video: %w", err)
		}
		videos = append(videos, v)
	}
	return videos, total, rows.Err()
}

// DeleteVideo removes a video and its subtitles in one transaction. Log
// rows referencing the video are kept for audit history with their
// video_id cleared.
func (db *DB) DeleteVideo(ctx context.Context, id int64) error {
	ctx, cancel := db.opCtx(ctx)
	defer cancel()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin delete transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM subtitles WHERE video_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete video subtitles: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE logs SET video_id = NULL WHERE video_id = ?`, id); err != nil {
		return fmt.Errorf("failed to detach video logs: %w", err)
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM videos WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete video %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to count deleted video: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}

	return tx.Commit()
}
