// Transcriptory - Channel Transcript Harvesting Engine
// Copyright 2026 Transcriptory Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/transcriptory/transcriptory

// Package models defines the persisted entities of the harvesting engine
// and the status domains governing their lifecycles.
//
// All relations are id-based; no entity embeds another. The store is the
// source of truth for every field here, and the Queue Manager is the only
// component allowed to move a Video between statuses.
package models

import "time"

// VideoStatus is the lifecycle state of a video in the work queue.
type VideoStatus string

const (
	VideoPending    VideoStatus = "pending"
	VideoProcessing VideoStatus = "processing"
	VideoCompleted  VideoStatus = "completed"
	VideoFailed     VideoStatus = "failed"
)

// Valid reports whether s is one of the four queue states.
func (s VideoStatus) Valid() bool {
	switch s {
	case VideoPending, VideoProcessing, VideoCompleted, VideoFailed:
		return true
	}
	return false
}

// JobStatus is the advisory state of the singleton job record.
// The worker pool is the source of truth for actual concurrency;
// this record mirrors operator intent.
type JobStatus string

const (
	JobIdle    JobStatus = "idle"
	JobRunning JobStatus = "running"
	JobPaused  JobStatus = "paused"
)

// LogLevel is the severity domain of the append-only logs table.
type LogLevel string

const (
	LogInfo  LogLevel = "INFO"
	LogWarn  LogLevel = "WARN"
	LogError LogLevel = "ERROR"
)

// Valid reports whether l is a known log level.
func (l LogLevel) Valid() bool {
	switch l {
	case LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Channel name sentinels. A channel is created with NameLoading before
// its metadata fetch completes; a fatal ingestion step replaces it with
// NameFailed so the ingestion-status endpoint can distinguish an
// in-flight ingestion from a dead one.
const (
	NameLoading = "Loading"
	NameFailed  = "Failed"
)

// Channel is a user-supplied video-platform channel whose public videos
// are harvested. URL is globally unique after normalization.
type Channel struct {
	ID          int64     `json:"id"`
	URL         string    `json:"url"`
	Name        string    `json:"name"`
	TotalVideos int       `json:"total_videos"`
	CreatedAt   time.Time `json:"created_at"`
}

// ChannelStats is a Channel joined with its per-status video counts.
type ChannelStats struct {
	Channel
	Pending    int `json:"pending"`
	Processing int `json:"processing"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
}

// Video is one unit of work in the queue. URL is globally unique; a
// video listed by two channels keeps its first owner.
type Video struct {
	ID          int64       `json:"id"`
	ChannelID   int64       `json:"channel_id"`
	URL         string      `json:"url"`
	Title       string      `json:"title"`
	Status      VideoStatus `json:"status"`
	Attempts    int         `json:"attempts"`
	LastError   *string     `json:"last_error"`
	CompletedAt *time.Time  `json:"completed_at"`
	CreatedAt   time.Time   `json:"created_at"`
}

// Subtitle is an extracted transcript. (VideoID, Language) is unique via
// upsert; re-extraction overwrites Content.
type Subtitle struct {
	ID           int64     `json:"id"`
	VideoID      int64     `json:"video_id"`
	Language     string    `json:"language"`
	Content      string    `json:"content"`
	DownloadedAt time.Time `json:"downloaded_at"`
}

// SubtitleSummary is a Subtitle without its content, carrying the
// content length instead, for listings.
type SubtitleSummary struct {
	ID            int64     `json:"id"`
	VideoID       int64     `json:"video_id"`
	Language      string    `json:"language"`
	ContentLength int       `json:"content_length"`
	DownloadedAt  time.Time `json:"downloaded_at"`
}

// Job is the singleton lifecycle marker mirroring operator intent.
type Job struct {
	ID            int64      `json:"id"`
	Status        JobStatus  `json:"status"`
	ActiveWorkers int        `json:"active_workers"`
	StartedAt     *time.Time `json:"started_at"`
	StoppedAt     *time.Time `json:"stopped_at"`
}

// Settings is the single-row (id=1) operator configuration consulted on
// worker startup and on every release decision.
type Settings struct {
	MaxWorkers    int     `json:"max_workers"`
	MaxRetries    int     `json:"max_retries"`
	BackoffFactor float64 `json:"backoff_factor"`
	OutputDir     string  `json:"output_dir"`
}

// DefaultSettings returns the values seeded into the settings row on
// first startup.
func DefaultSettings() Settings {
	return Settings{
		MaxWorkers:    5,
		MaxRetries:    3,
		BackoffFactor: 2.0,
		OutputDir:     "./subtitles",
	}
}

// LogEntry is one append-only row of the logs table. VideoID is nil for
// system-wide events and survives video deletion (SET NULL semantics).
type LogEntry struct {
	ID        int64     `json:"id"`
	VideoID   *int64    `json:"video_id"`
	Level     LogLevel  `json:"level"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// QueueStats is the multiset of video counts by status, either global
// or scoped to a channel.
type QueueStats struct {
	Pending    int `json:"pending"`
	Processing int `json:"processing"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
	Total      int `json:"total"`
}

// FailedVideo is a failed queue row joined with its owning channel name,
// as returned by the failed-videos inspection query.
type FailedVideo struct {
	ID          int64     `json:"id"`
	URL         string    `json:"url"`
	Title       string    `json:"title"`
	Attempts    int       `json:"attempts"`
	LastError   *string   `json:"last_error"`
	CreatedAt   time.Time `json:"created_at"`
	ChannelName string    `json:"channel_name"`
}

// IngestionState is the lifecycle of one detached channel ingestion.
type IngestionState string

const (
	IngestionLoading   IngestionState = "loading"
	IngestionCompleted IngestionState = "completed"
	IngestionFailed    IngestionState = "failed"
)

// IngestionStatus describes the progress of a channel's detached
// ingestion task.
type IngestionStatus struct {
	State          IngestionState `json:"status"`
	VideosFound    int            `json:"videos_found"`
	VideosIngested int            `json:"videos_ingested"`
	StartedAt      time.Time      `json:"started_at"`
	CompletedAt    *time.Time     `json:"completed_at,omitempty"`
	ErrorMessage   string         `json:"error_message,omitempty"`
}
