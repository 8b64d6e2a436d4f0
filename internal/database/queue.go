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

// Queue Manager: every video status transition in the system goes
// through the methods in this file. Workers, the recovery pass, and the
// control plane never write the status column directly, which keeps the
// retry decision in exactly one place.

const videoColumns = `id, channel_id, url, title, status, attempts, last_error, completed_at, created_at`

// ClaimNext atomically claims the lowest-id pending video, moving it to
// processing. Returns (nil, nil) when the queue is empty. The claim is a
// single conditional UPDATE, so two workers can never claim the same
// video.
func (db *DB) ClaimNext(ctx context.Context) (*models.Video, error) {
	ctx, cancel := db.opCtx(ctx)
	defer cancel()

	// Hottest query in the system: every worker runs it at least once a
	// second, so it goes through the prepared-statement cache.
	stmt, err := db.getStmt(ctx,
		`UPDATE videos SET status = 'processing'
		 WHERE id = (SELECT MIN(id) FROM videos WHERE status = 'pending')
		   AND status = 'pending'
		 RETURNING `+videoColumns)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare claim: %w", err)
	}

	var v models.Video
	err = stmt.QueryRowContext(ctx).
		Scan(&v.ID, &v.ChannelID, &v.URL, &v.Title, &v.Status,
			&v.Attempts, &v.LastError, &v.CompletedAt, &v.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to claim video: %w", err)
	}
	return &v, nil
}

// Complete releases a processing video as completed, recording the
// completion time and clearing any stale error. Returns
// ErrInvalidTransition if the video is not in processing.
func (db *DB) Complete(ctx context.Context, id int64) (*models.Video, error) {
	ctx, cancel := db.opCtx(ctx)
	defer cancel()

	var v models.Video
	err := db.conn.QueryRowContext(ctx,
		`UPDATE videos
		 SET status = 'completed', completed_at = CURRENT_TIMESTAMP, last_error = NULL
		 WHERE id = ? AND status = 'processing'
		 RETURNING `+videoColumns, id).
		Scan(&v.ID, &v.ChannelID, &v.URL, &v.Title, &v.Status,
			&v.Attempts, &v.LastError, &v.CompletedAt, &v.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, db.transitionError(ctx, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to complete video %d: %w", id, err)
	}
	return &v, nil
}

// Fail releases a processing video after a transient failure. Attempts
// is incremented and the error recorded; the video returns to pending
// while attempts remain below the configured retry limit, and lands in
// failed with an ERROR log row once exhausted. Returns the updated row
// so the caller can derive backoff from the new attempt count.
func (db *DB) Fail(ctx context.Context, id int64, errMsg string) (*models.Video, error) {
	return db.fail(ctx, id, errMsg, false)
}

// FailPermanent releases a processing video after a permanent failure.
// The video lands in failed regardless of remaining retries. Attempts is
// still incremented so the row records how many times it was tried.
func (db *DB) FailPermanent(ctx context.Context, id int64, errMsg string) (*models.Video, error) {
	return db.fail(ctx, id, errMsg, true)
}

func (db *DB) fail(ctx context.Context, id int64, errMsg string, permanent bool) (*models.Video, error) {
	ctx, cancel := db.opCtx(ctx)
	defer cancel()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin release transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	maxRetries := models.DefaultSettings().MaxRetries
	err = tx.QueryRowContext(ctx,
		`SELECT max_retries FROM settings WHERE id = 1`).Scan(&maxRetries)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to read retry limit: %w", err)
	}

	errMsg = truncateTail(errMsg, maxMessageBytes)

	query := `UPDATE videos
	 SET attempts = attempts + 1,
	     last_error = ?,
	     status = CASE WHEN attempts + 1 < ? THEN 'pending' ELSE 'failed' END
	 WHERE id = ? AND status = 'processing'
	 RETURNING ` + videoColumns
	args := []any{errMsg, maxRetries, id}
	if permanent {
		query = `UPDATE videos
		 SET attempts = attempts + 1, last_error = ?, status = 'failed'
		 WHERE id = ? AND status = 'processing'
		 RETURNING ` + videoColumns
		args = []any{errMsg, id}
	}

	var v models.Video
	err = tx.QueryRowContext(ctx, query, args...).
		Scan(&v.ID, &v.ChannelID, &v.URL, &v.Title, &v.Status,
			&v.Attempts, &v.LastError, &v.CompletedAt, &v.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, db.transitionError(ctx, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to release video %d: %w", id, err)
	}

	if v.Status == models.VideoFailed {
		msg := truncateTail(fmt.Sprintf("Video permanently failed: %s", errMsg), maxMessageBytes)
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO logs (video_id, level, message) VALUES (?, 'ERROR', ?)`,
			id, msg); err != nil {
			return nil, fmt.Errorf("failed to log permanent failure: %w", err)
		}
	} else {
		msg := truncateTail(fmt.Sprintf("Video failed (attempt %d/%d), will retry: %s",
			v.Attempts, maxRetries, errMsg), maxMessageBytes)
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO logs (video_id, level, message) VALUES (?, 'WARN', ?)`,
			id, msg); err != nil {
			return nil, fmt.Errorf("failed to log retry: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit release: %w", err)
	}
	return &v, nil
}

// ResetProcessing moves every processing video back to pending. Run
// during startup recovery: any video still marked processing belongs to
// a worker that no longer exists.
func (db *DB) ResetProcessing(ctx context.Context) (int64, error) {
	ctx, cancel := db.opCtx(ctx)
	defer cancel()

	res, err := db.conn.ExecContext(ctx,
		`UPDATE videos SET status = 'pending' WHERE status = 'processing'`)
	if err != nil {
		return 0, fmt.Errorf("failed to reset processing videos: %w", err)
	}
	return res.RowsAffected()
}

// ResetAttempts zeroes the attempt counter on all pending and processing
// videos so recovered work starts with a full retry budget.
func (db *DB) ResetAttempts(ctx context.Context) (int64, error) {
	ctx, cancel := db.opCtx(ctx)
	defer cancel()

	res, err := db.conn.ExecContext(ctx,
		`UPDATE videos SET attempts = 0
		 WHERE status IN ('pending', 'processing') AND attempts <> 0`)
	if err != nil {
		return 0, fmt.Errorf("failed to reset attempts: %w", err)
	}
	return res.RowsAffected()
}

// Reconcile marks every video that already has a stored subtitle as
// completed. A crash between subtitle upsert and release leaves such
// rows behind; this makes the pass idempotent and safe to run on every
// startup or on demand.
func (db *DB) Reconcile(ctx context.Context) (int64, error) {
	ctx, cancel := db.opCtx(ctx)
	defer cancel()

	res, err := db.conn.ExecContext(ctx,
		`UPDATE videos
		 SET status = 'completed', completed_at = CURRENT_TIMESTAMP, last_error = NULL
		 WHERE status <> 'completed'
		   AND id IN (SELECT DISTINCT video_id FROM subtitles)`)
	if err != nil {
		return 0, fmt.Errorf("failed to reconcile videos: %w", err)
	}
	return res.RowsAffected()
}

// RetryFailed requeues a failed video with a fresh attempt budget and
// records an INFO log row. Returns ErrInvalidTransition if the video is
// not in failed status.
func (db *DB) RetryFailed(ctx context.Context, id int64) (*models.Video, error) {
	ctx, cancel := db.opCtx(ctx)
	defer cancel()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin retry transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var v models.Video
	err = tx.QueryRowContext(ctx,
		`UPDATE videos
		 SET status = 'pending', attempts = 0, last_error = NULL
		 WHERE id = ? AND status = 'failed'
		 RETURNING `+videoColumns, id).
		Scan(&v.ID, &v.ChannelID, &v.URL, &v.Title, &v.Status,
			&v.Attempts, &v.LastError, &v.CompletedAt, &v.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, db.transitionError(ctx, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to retry video %d: %w", id, err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO logs (video_id, level, message) VALUES (?, 'INFO', ?)`,
		id, fmt.Sprintf("Manual retry initiated for video %d", id)); err != nil {
		return nil, fmt.Errorf("failed to log manual retry: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit retry: %w", err)
	}
	return &v, nil
}

// Stats returns global video counts by status.
func (db *DB) Stats(ctx context.Context) (*models.QueueStats, error) {
	return db.stats(ctx, nil)
}

// ChannelQueueStats returns video counts by status for one channel.
func (db *DB) ChannelQueueStats(ctx context.Context, channelID int64) (*models.QueueStats, error) {
	return db.stats(ctx, &channelID)
}

func (db *DB) stats(ctx context.Context, channelID *int64) (*models.QueueStats, error) {
	ctx, cancel := db.opCtx(ctx)
	defer cancel()

	query := `SELECT
		COUNT(CASE WHEN status = 'pending' THEN 1 END),
		COUNT(CASE WHEN status = 'processing' THEN 1 END),
		COUNT(CASE WHEN status = 'completed' THEN 1 END),
		COUNT(CASE WHEN status = 'failed' THEN 1 END),
		COUNT(*)
	 FROM videos`
	var args []any
	if channelID != nil {
		query += ` WHERE channel_id = ?`
		args = append(args, *channelID)
	}

	var s models.QueueStats
	err := db.conn.QueryRowContext(ctx, query, args...).
		Scan(&s.Pending, &s.Processing, &s.Completed, &s.Failed, &s.Total)
	if err != nil {
		return nil, fmt.Errorf("failed to read queue stats: %w", err)
	}
	return &s, nil
}

// FailedVideos returns the most recent failed videos joined with their
// channel names, newest first.
func (db *DB) FailedVideos(ctx context.Context, limit int) ([]models.FailedVideo, error) {
	ctx, cancel := db.opCtx(ctx)
	defer cancel()

	if limit <= 0 {
		limit = 50
	}
	rows, err := db.conn.QueryContext(ctx,
		`SELECT v.id, v.url, v.title, v.attempts, v.last_error, v.created_at,
		        COALESCE(c.name, '')
		 FROM videos v
		 LEFT JOIN channels c ON c.id = v.channel_id
		 WHERE v.status = 'failed'
		 ORDER BY v.id DESC
		 LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list failed videos: %w", err)
	}
	defer closeWithLog(rows, "failed video rows")

	out := make([]models.FailedVideo, 0)
	for rows.Next() {
		var fv models.FailedVideo
		if err := rows.Scan(&fv.ID, &fv.URL, &fv.Title, &fv.Attempts,
			&fv.LastError, &fv.CreatedAt, &fv.ChannelName); err != nil {
			return nil, fmt.Errorf("failed to scan failed video: %w", err)
		}
		out = append(out, fv)
	}
	return out, rows.Err()
}

// transitionError distinguishes a missing row from a row in the wrong
// status after a conditional update matched nothing.
func (db *DB) transitionError(ctx context.Context, id int64) error {
	var count int
	if err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM videos WHERE id = ?`, id).Scan(&count); err != nil {
		return fmt.Errorf("failed to check video %d: %w", id, err)
	}
	if count == 0 {
		return fmt.Errorf("video %d: %w", id, ErrNotFound)
	}
	return fmt.Errorf("video %d: %w", id, ErrInvalidTransition)
}
