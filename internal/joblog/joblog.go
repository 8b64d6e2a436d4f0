// Transcriptory - Channel Transcript Harvesting Engine
// Copyright 2026 Transcriptory Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/transcriptory/transcriptory

// Package joblog writes operator-facing job events to two sinks at
// once: the append-only logs table (queryable over the API) and the
// structured process log. A store write failure never fails the calling
// operation; the event still reaches the process log.
package joblog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/transcriptory/transcriptory/internal/database"
	"github.com/transcriptory/transcriptory/internal/logging"
	"github.com/transcriptory/transcriptory/internal/models"
)

// Logger is the dual-sink job event logger.
type Logger struct {
	db *database.DB
}

// New returns a Logger backed by the given store.
func New(db *database.DB) *Logger {
	return &Logger{db: db}
}

// Info records an informational job event. videoID may be nil for
// system-wide events.
func (l *Logger) Info(ctx context.Context, videoID *int64, format string, args ...any) {
	l.write(ctx, videoID, models.LogInfo, fmt.Sprintf(format, args...))
}

// Warn records a warning job event.
func (l *Logger) Warn(ctx context.Context, videoID *int64, format string, args ...any) {
	l.write(ctx, videoID, models.LogWarn, fmt.Sprintf(format, args...))
}

// Error records an error job event.
func (l *Logger) Error(ctx context.Context, videoID *int64, format string, args ...any) {
	l.write(ctx, videoID, models.LogError, fmt.Sprintf(format, args...))
}

// Exception records an error-level job event carrying the full cause
// chain of err, so the persisted row keeps the wrapped detail that a
// bare Error() call would flatten.
func (l *Logger) Exception(ctx context.Context, videoID *int64, err error, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if err != nil {
		msg += ": " + errorChain(err)
	}
	l.write(ctx, videoID, models.LogError, msg)
}

// errorChain renders err followed by each wrapped cause. The outermost
// message usually embeds the causes already; repeating them separately
// keeps the root cause visible even when a layer rewrote the message.
func errorChain(err error) string {
	var b strings.Builder
	b.WriteString(err.Error())
	for cause := errors.Unwrap(err); cause != nil; cause = errors.Unwrap(cause) {
		b.WriteString(" <- ")
		b.WriteString(cause.Error())
	}
	return b.String()
}

func (l *Logger) write(ctx context.Context, videoID *int64, level models.LogLevel, msg string) {
	event := logging.Info()
	switch level {
	case models.LogWarn:
		event = logging.Warn()
	case models.LogError:
		event = logging.Error()
	}
	if videoID != nil {
		event = event.Int64("video_id", *videoID)
	}
	event.Str("component", "joblog").Msg(msg)

	if err := l.db.InsertLog(ctx, videoID, level, msg); err != nil {
		logging.Warn().Err(err).Msg("Failed to persist job log entry")
	}
}
