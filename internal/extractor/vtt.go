// Transcriptory - Channel Transcript Harvesting Engine
// Copyright 2026 Transcriptory Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/transcriptory/transcriptory

package extractor

import (
	"regexp"
	"strings"
)

var (
	// timestampRe matches WebVTT cue timing lines like
	// "00:00:01.000 --> 00:00:04.000 align:start position:0%".
	timestampRe = regexp.MustCompile(`^\d{2}:\d{2}:\d{2}[.,]\d{3}\s+-->\s+\d{2}:\d{2}:\d{2}[.,]\d{3}`)

	// inlineTagRe matches inline cue markup: <c>, </c.colorE5E5E5>, and
	// word-level timing tags like <00:00:01.520>.
	inlineTagRe = regexp.MustCompile(`<[^>]*>`)

	// cueIDRe matches bare numeric cue identifiers.
	cueIDRe = regexp.MustCompile(`^\d+$`)
)

// CleanVTT reduces a WebVTT document to plain transcript text. Header
// lines, cue timings, cue ids, and inline markup are dropped, and
// consecutive duplicate lines are collapsed (auto-generated tracks
// repeat each line as the caption rolls).
func CleanVTT(raw string) string {
	lines := strings.Split(raw, "\n")
	out := make([]string, 0, len(lines))
	prev := ""

	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || line == "WEBVTT" {
			continue
		}
		if strings.HasPrefix(line, "Kind:") || strings.HasPrefix(line, "Language:") ||
			strings.HasPrefix(line, "NOTE") || strings.HasPrefix(line, "STYLE") {
			continue
		}
		if timestampRe.MatchString(line) || cueIDRe.MatchString(line) {
			continue
		}

		line = strings.TrimSpace(inlineTagRe.ReplaceAllString(line, ""))
		if line == "" || line == prev {
			continue
		}
		out = append(out, line)
		prev = line
	}

	return strings.Join(out, "\n")
}
