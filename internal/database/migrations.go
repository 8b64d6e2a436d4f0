// Transcriptory - Channel Transcript Harvesting Engine
// Copyright 2026 Transcriptory Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/transcriptory/transcriptory

package database

import (
	"fmt"

	"github.com/transcriptory/transcriptory/internal/logging"
)

// migration is one versioned schema change. Versions are applied in
// ascending order exactly once and recorded in schema_migrations.
type migration struct {
	version     int
	description string
	statements  []string
}

// migrations lists all schema changes beyond the base schema in
// createTables. Append only; never edit an applied migration.
var migrations = []migration{
	// Base schema is version 1; createTables builds it directly so a
	// fresh database and a migrated one converge on the same shape.
	{
		version:     1,
		description: "base schema",
		statements:  nil,
	},
}

// runVersionedMigrations applies any migrations newer than the recorded
// schema version.
func (db *DB) runVersionedMigrations() error {
	current, err := db.schemaVersion()
	if err != nil {
		return err
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}

		tx, err := db.conn.Begin()
		if err != nil {
			return fmt.Errorf("failed to begin migration %d: %w", m.version, err)
		}

		for _, stmt := range m.statements {
			if _, err := tx.Exec(stmt); err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("migration %d (%s) failed: %w", m.version, m.description, err)
			}
		}
		if _, err := tx.Exec(
			`INSERT INTO schema_migrations (version) VALUES (?)`, m.version); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", m.version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", m.version, err)
		}
		logging.Info().
			Int("version", m.version).
			Str("description", m.description).
			Msg("Applied schema migration")
	}
	return nil
}

// schemaVersion returns the highest applied migration version, or 0 for
// a fresh database.
func (db *DB) schemaVersion() (int, error) {
	var version int
	err := db.conn.QueryRow(
		`SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	return version, nil
}
