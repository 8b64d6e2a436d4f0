// Transcriptory - Channel Transcript Harvesting Engine
// Copyright 2026 Transcriptory Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/transcriptory/transcriptory

package database

import (
	"io"

	"github.com/transcriptory/transcriptory/internal/logging"
)

// closeWithLog closes an io.Closer and logs any error at warn level.
// Used for resources whose close errors are worth surfacing but never
// fatal (statements, result sets).
func closeWithLog(c io.Closer, what string) {
	if err := c.Close(); err != nil {
		logging.Warn().Err(err).Str("resource", what).Msg("Failed to close resource")
	}
}

// closeQuietly closes an io.Closer and discards any error. Used only on
// error paths where a close failure adds no information.
func closeQuietly(c io.Closer) {
	_ = c.Close()
}
