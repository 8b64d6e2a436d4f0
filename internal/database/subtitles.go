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

// UpsertSubtitle stores a transcript for (videoID, language), replacing
// any previous content for the pair. Content over MaxSubtitleContentBytes
// is rejected with ErrContentTooLarge rather than truncated.
func (db *DB) UpsertSubtitle(ctx context.Context, videoID int64, language, content string) (*models.Subtitle, error) {
	if len(content) > MaxSubtitleContentBytes {
		return nil, fmt.Errorf("subtitle for video %d (%d bytes): %w",
			videoID, len(content), ErrContentTooLarge)
	}

	ctx, cancel := db.opCtx(ctx)
	defer cancel()

	var s models.Subtitle
	err := db.conn.QueryRowContext(ctx,
		`INSERT INTO subtitles (video_id, language, content)
		 VALUES (?, ?, ?)
		 ON CONFLICT (video_id, language) DO UPDATE
		 SET content = excluded.content, downloaded_at = now()
		 RETURNING id, video_id, language, content, downloaded_at`,
		videoID, language, content).
		Scan(&s.ID, &s.VideoID, &s.Language, &s.Content, &s.DownloadedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert subtitle: %w", err)
	}
	return &s, nil
}

// GetSubtitle returns the transcript with the given id, or ErrNotFound.
func (db *DB) GetSubtitle(ctx context.Context, id int64) (*models.Subtitle, error) {
	ctx, cancel := db.opCtx(ctx)
	defer cancel()

	var s models.Subtitle
	err := db.conn.QueryRowContext(ctx,
		`SELECT id, video_id, language, content, downloaded_at
		 FROM subtitles WHERE id = ?`, id).
		Scan(&s.ID, &s.VideoID, &s.Language, &s.Content, &s.DownloadedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get subtitle %d: %w", id, err)
	}
	return &s, nil
}

// SubtitlesForVideo returns all transcripts stored for a video.
func (db *DB) SubtitlesForVideo(ctx context.Context, videoID int64) ([]models.Subtitle, error) {
	ctx, cancel := db.opCtx(ctx)
	defer cancel()

	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, video_id, language, content, downloaded_at
		 FROM subtitles WHERE video_id = ? ORDER BY language`, videoID)
	if err != nil {
		return nil, fmt.Errorf("failed to list subtitles for video %d: %w", videoID, err)
	}
	defer closeWithLog(rows, "subtitle rows")

	subs := make([]models.Subtitle, 0)
	for rows.Next() {
		var s models.Subtitle
		if err := rows.Scan(&s.ID, &s.VideoID, &s.Language, &s.Content, &s.DownloadedAt); err != nil {
			return nil, fmt.Errorf("failed to scan subtitle: %w", err)
		}
		subs = append(subs, s)
	}
	return subs, rows.Err()
}

// SubtitlesForChannel returns all transcripts for a channel's videos
// joined with their video titles and URLs, for bulk export.
func (db *DB) SubtitlesForChannel(ctx context.Context, channelID int64) ([]SubtitleExport, error) {
	ctx, cancel := db.opCtx(ctx)
	defer cancel()

	rows, err := db.conn.QueryContext(ctx,
		`SELECT s.id, s.video_id, s.language, s.content, s.downloaded_at, v.title, v.url
		 FROM subtitles s
		 JOIN videos v ON v.id = s.video_id
		 WHERE v.channel_id = ?
		 ORDER BY s.video_id, s.language`, channelID)
	if err != nil {
		return nil, fmt.Errorf("failed to list subtitles for channel %d: %w", channelID, err)
	}
	defer closeWithLog(rows, "subtitle export rows")

	subs := make([]SubtitleExport, 0)
	for rows.Next() {
		var s SubtitleExport
		if err := rows.Scan(&s.ID, &s.VideoID, &s.Language, &s.Content,
			&s.DownloadedAt, &s.VideoTitle, &s.VideoURL); err != nil {
			return nil, fmt.Errorf("failed to scan subtitle export: %w", err)
		}
		subs = append(subs, s)
	}
	return subs, rows.Err()
}

// SubtitleExport is a Subtitle joined with its video's title and URL.
type SubtitleExport struct {
	models.Subtitle
	VideoTitle string `json:"video_title"`
	VideoURL   string `json:"video_url"`
}

// SubtitleFilter narrows ListSubtitles.
type SubtitleFilter struct {
	VideoID  *int64
	Language *string
	Limit    int
}

// ListSubtitles returns transcript summaries (content length, not the
// content itself) matching the filter, newest first.
func (db *DB) ListSubtitles(ctx context.Context, filter SubtitleFilter) ([]models.SubtitleSummary, error) {
	ctx, cancel := db.opCtx(ctx)
	defer cancel()

	query := `SELECT id, video_id, language, length(content), downloaded_at
	 FROM subtitles WHERE 1=1`
	var args []any
	if filter.VideoID != nil {
		query += ` AND video_id = ?`
		args = append(args, *filter.VideoID)
	}
	if filter.Language != nil {
		query += ` AND language = ?`
		args = append(args, *filter.Language)
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list subtitles: %w", err)
	}
	defer closeWithLog(rows, "subtitle summary rows")

	subs := make([]models.SubtitleSummary, 0)
	for rows.Next() {
		var s models.SubtitleSummary
		if err := rows.Scan(&s.ID, &s.VideoID, &s.Language, &s.ContentLength, &s.DownloadedAt); err != nil {
			return nil, fmt.Errorf("failed to scan subtitle summary: %w", err)
		}
		subs = append(subs, s)
	}
	return subs, rows.Err()
}
