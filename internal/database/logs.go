// Transcriptory - Channel Transcript Harvesting Engine
// Copyright 2026 Transcriptory Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/transcriptory/transcriptory

package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/transcriptory/transcriptory/internal/models"
)

// maxMessageBytes bounds a stored log message or error detail. Longer
// messages keep their tail, since stack traces and extractor output put
// the root cause at the end.
const maxMessageBytes = 4000

// truncateTail returns the last max bytes of s with a marker prefix when
// truncation occurred.
func truncateTail(s string, max int) string {
	if len(s) <= max {
		return s
	}
	const marker = "...[truncated] "
	keep := max - len(marker)
	return marker + s[len(s)-keep:]
}

// InsertLog appends a row to the logs table. videoID may be nil for
// system-wide events.
func (db *DB) InsertLog(ctx context.Context, videoID *int64, level models.LogLevel, message string) error {
	ctx, cancel := db.opCtx(ctx)
	defer cancel()

	if !level.Valid() {
		return fmt.Errorf("invalid log level %q", level)
	}
	stmt, err := db.getStmt(ctx,
		`INSERT INTO logs (video_id, level, message) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare log insert: %w", err)
	}
	if _, err := stmt.ExecContext(ctx,
		videoID, string(level), truncateTail(message, maxMessageBytes)); err != nil {
		return fmt.Errorf("failed to insert log: %w", err)
	}
	return nil
}

// LogFilter narrows ListLogs. Nil fields are ignored.
type LogFilter struct {
	Level   *models.LogLevel
	VideoID *int64
	Limit   int
}

// ListLogs returns log rows newest first, optionally filtered by level
// and video.
func (db *DB) ListLogs(ctx context.Context, f LogFilter) ([]models.LogEntry, error) {
	ctx, cancel := db.opCtx(ctx)
	defer cancel()

	var conds []string
	var args []any
	if f.Level != nil {
		conds = append(conds, "level = ?")
		args = append(args, string(*f.Level))
	}
	if f.VideoID != nil {
		conds = append(conds, "video_id = ?")
		args = append(args, *f.VideoID)
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, video_id, level, message, timestamp FROM logs`+where+
			` ORDER BY id DESC LIMIT ?`, append(args, limit)...)
	if err != nil {
		return nil, fmt.Errorf("failed to list logs: %w", err)
	}
	defer closeWithLog(rows, "log rows")

	entries := make([]models.LogEntry, 0, limit)
	for rows.Next() {
		var e models.LogEntry
		if err := rows.Scan(&e.ID, &e.VideoID, &e.Level, &e.Message, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan log entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// CleanupLogs deletes log rows older than the cutoff and returns the
// number removed.
func (db *DB) CleanupLogs(ctx context.Context, cutoff time.Time) (int64, error) {
	ctx, cancel := db.opCtx(ctx)
	defer cancel()

	res, err := db.conn.ExecContext(ctx,
		`DELETE FROM logs WHERE timestamp < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to clean up logs: %w", err)
	}
	return res.RowsAffected()
}
