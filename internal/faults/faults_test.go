// Transcriptory - Channel Transcript Harvesting Engine
// Copyright 2026 Transcriptory Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/transcriptory/transcriptory

package faults

import (
	"errors"
	"testing"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		msg  string
		want Class
	}{
		{"private video", "ERROR: Private video. Sign in if you've been granted access", Permanent},
		{"unavailable", "Video unavailable", Permanent},
		{"deleted", "This video has been deleted", Permanent},
		{"age restricted", "Sign in to confirm your age. This video may be age restricted", Permanent},
		{"no subtitles", "No subtitles available for this video", Permanent},
		{"no native subtitles", "no native subtitles found", Permanent},
		{"subtitles not available", "requested subtitles not available", Permanent},
		{"invalid url", "invalid URL supplied", Permanent},
		{"unknown id", "Incomplete YouTube ID: unknown video id", Permanent},
		{"not found", "HTTP Error 404: Not Found", Permanent},
		{"forbidden", "HTTP Error 403: Forbidden", Permanent},
		{"http 404", "server returned http 404", Permanent},

		{"timeout", "Read timeout after 120 seconds", Transient},
		{"connection", "Connection reset by peer", Transient},
		{"network", "network is unreachable", Transient},
		{"temporary", "temporary failure in name resolution", Transient},
		{"http 500", "server returned HTTP 500", Transient},
		{"http 503", "server returned http 503", Transient},
		{"rate limit", "rate limit exceeded, slow down", Transient},
		{"too many requests", "HTTP Error 429: Too Many Requests", Transient},
		{"quota", "quota exceeded for this client", Transient},

		{"unknown defaults transient", "something completely unexpected happened", Transient},
		{"empty message", "", Transient},

		// Permanent patterns win when both classes match.
		{"mixed favors permanent", "video unavailable after connection retry", Permanent},
		{"503 with unavailable text", "HTTP 503 Service Unavailable", Permanent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyMessage(tt.msg); got != tt.want {
				t.Errorf("ClassifyMessage(%q) = %s, want %s", tt.msg, got, tt.want)
			}
		})
	}
}

func TestClassifyNilAndError(t *testing.T) {
	if got := Classify(nil); got != Transient {
		t.Errorf("nil error should classify transient, got %s", got)
	}
	if got := Classify(errors.New("Video Unavailable")); got != Permanent {
		t.Errorf("matching should be case-insensitive, got %s", got)
	}
}
