// Transcriptory - Channel Transcript Harvesting Engine
// Copyright 2026 Transcriptory Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/transcriptory/transcriptory

package extractor

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestCleanVTT(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{
			name: "plain cues",
			raw: `WEBVTT
Kind: captions
Language: en

00:00:01.000 --> 00:00:04.000
hello world

00:00:04.000 --> 00:00:07.000
second line
`,
			want: "hello world\nsecond line",
		},
		{
			name: "auto-generated rolling duplicates",
			raw: `WEBVTT

00:00:00.000 --> 00:00:02.000
hello there

00:00:02.000 --> 00:00:04.000
hello there

00:00:04.000 --> 00:00:06.000
general greeting
`,
			want: "hello there\ngeneral greeting",
		},
		{
			name: "inline timing and styling tags",
			raw: `WEBVTT

00:00:00.000 --> 00:00:02.000 align:start position:0%
<c>so</c><00:00:00.719><c> today</c><00:00:01.040><c> we</c>
`,
			want: "so today we",
		},
		{
			name: "numeric cue identifiers",
			raw: `WEBVTT

1
00:00:01.000 --> 00:00:02.000
first

2
00:00:02.000 --> 00:00:03.000
second
`,
			want: "first\nsecond",
		},
		{
			name: "empty document",
			raw:  "WEBVTT\n",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CleanVTT(tt.raw); got != tt.want {
				t.Errorf("CleanVTT() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPickSubtitleFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "media.en.vtt")
	writeFile(t, dir, "media.de.vtt")
	writeFile(t, dir, "media.fr.vtt")

	path, lang, err := pickSubtitleFile(dir, []string{"de", "en"})
	if err != nil {
		t.Fatalf("pickSubtitleFile failed: %v", err)
	}
	if lang != "de" {
		t.Errorf("expected de (first preferred), got %s from %s", lang, path)
	}

	// Region variants match their base language.
	variantDir := t.TempDir()
	writeFile(t, variantDir, "media.en-US.vtt")
	_, lang, err = pickSubtitleFile(variantDir, []string{"en"})
	if err != nil {
		t.Fatalf("pickSubtitleFile failed: %v", err)
	}
	if lang != "en-US" {
		t.Errorf("expected en-US variant match, got %s", lang)
	}

	// No files means no transcript.
	if _, _, err := pickSubtitleFile(t.TempDir(), []string{"en"}); !errors.Is(err, ErrNoTranscript) {
		t.Errorf("expected ErrNoTranscript, got %v", err)
	}
}

func writeFile(t *testing.T, dir, name string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte("WEBVTT\n"), 0o600); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
}
