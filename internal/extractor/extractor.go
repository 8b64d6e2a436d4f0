// Transcriptory - Channel Transcript Harvesting Engine
// Copyright 2026 Transcriptory Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/transcriptory/transcriptory

// Package extractor talks to the external video platform through the
// yt-dlp binary. All outbound traffic in the system funnels through this
// package, behind a shared rate limiter and circuit breaker.
package extractor

import (
	"context"
	"errors"
)

// ErrNoTranscript is returned when a video has no subtitles in any of
// the preferred languages. Callers treat it as a permanent failure.
var ErrNoTranscript = errors.New("no subtitles available")

// VideoEntry is one video discovered in a channel listing.
type VideoEntry struct {
	URL   string
	Title string
}

// ChannelInfo is the result of enumerating a channel.
type ChannelInfo struct {
	Name   string
	Videos []VideoEntry
}

// Transcript is one extracted subtitle track, cleaned to plain text.
type Transcript struct {
	Language string
	Content  string
}

// Extractor enumerates channels and extracts transcripts.
type Extractor interface {
	// ChannelInfo lists a channel's name and public videos.
	ChannelInfo(ctx context.Context, channelURL string) (*ChannelInfo, error)

	// Transcript fetches the best available subtitle track for a video.
	// Returns ErrNoTranscript when none of the preferred languages (or
	// auto-generated fallbacks) exist.
	Transcript(ctx context.Context, videoURL string) (*Transcript, error)
}
