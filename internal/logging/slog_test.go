// Transcriptory - Channel Transcript Harvesting Engine
// Copyright 2026 Transcriptory Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/transcriptory/transcriptory

package logging

import (
	"bytes"
	"strings"
	"testing"
)

func TestSlogLoggerWritesThroughZerolog(t *testing.T) {
	var buf bytes.Buffer
	prev := Logger()
	SetLogger(NewTestLogger(&buf))
	defer SetLogger(prev)

	slogger := NewSlogLogger()
	slogger.Info("supervisor event", "service", "http-server", "restarts", int64(2))

	out := buf.String()
	if !strings.Contains(out, `"message":"supervisor event"`) {
		t.Errorf("missing message in output: %s", out)
	}
	if !strings.Contains(out, `"service":"http-server"`) {
		t.Errorf("missing string attr in output: %s", out)
	}
	if !strings.Contains(out, `"restarts":2`) {
		t.Errorf("missing int attr in output: %s", out)
	}
}

func TestSlogLoggerGroupsPrefixKeys(t *testing.T) {
	var buf bytes.Buffer
	prev := Logger()
	SetLogger(NewTestLogger(&buf))
	defer SetLogger(prev)

	slogger := NewSlogLogger().WithGroup("tree").With("layer", "engine")
	slogger.Warn("service backoff")

	out := buf.String()
	if !strings.Contains(out, `"tree.layer":"engine"`) {
		t.Errorf("group prefix not applied: %s", out)
	}
}
