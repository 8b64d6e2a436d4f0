// Transcriptory - Channel Transcript Harvesting Engine
// Copyright 2026 Transcriptory Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/transcriptory/transcriptory

// Package config loads and validates application configuration.
//
// Configuration Loading Order (Koanf v2):
//  1. Defaults: Built-in sensible defaults for all settings
//  2. Config File: Optional YAML config file for persistent settings
//  3. Environment Variables: Override any setting
//
// Config is immutable after Load() and safe for concurrent reads.
package config

import (
	"fmt"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Database  DatabaseConfig  `koanf:"database"`
	Extractor ExtractorConfig `koanf:"extractor"`
	Workers   WorkersConfig   `koanf:"workers"`
	Logging   LoggingConfig   `koanf:"logging"`
}

// ServerConfig holds HTTP server settings.
//
// Environment Variables:
//   - HTTP_HOST: Bind address (default: 0.0.0.0)
//   - HTTP_PORT: Listen port (default: 8000)
//   - HTTP_TIMEOUT: Read/write timeout (default: 30s)
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	Timeout         time.Duration `koanf:"timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// DatabaseConfig holds embedded DuckDB settings.
//
// Environment Variables:
//   - DUCKDB_PATH: Database file path, or :memory: (default: ./data/app.db)
//   - DUCKDB_MAX_MEMORY: DuckDB memory limit (default: 1GB)
//   - DUCKDB_LOCK_TIMEOUT: Lock-wait budget per operation (default: 20s)
type DatabaseConfig struct {
	Path        string        `koanf:"path"`
	MaxMemory   string        `koanf:"max_memory"`
	Threads     int           `koanf:"threads"` // 0 = use runtime.NumCPU()
	LockTimeout time.Duration `koanf:"lock_timeout"`
}

// ExtractorConfig holds settings for the external transcript extractor.
//
// Environment Variables:
//   - EXTRACTOR_BIN: Path to the yt-dlp binary (default: yt-dlp)
//   - EXTRACTOR_TIMEOUT: Per-invocation timeout (default: 120s)
//   - EXTRACTOR_RATE: Outbound requests per second (default: 1.0)
//   - EXTRACTOR_BURST: Rate limiter burst (default: 2)
//   - EXTRACTOR_MAX_ATTEMPTS: Per-call retry attempts (default: 3)
//   - EXTRACTOR_LANGUAGES: Preferred subtitle languages, comma-separated (default: en)
type ExtractorConfig struct {
	BinPath              string        `koanf:"bin_path"`
	Timeout              time.Duration `koanf:"timeout"`
	RequestsPerSecond    float64       `koanf:"requests_per_second"`
	Burst                int           `koanf:"burst"`
	MaxAttempts          int           `koanf:"max_attempts"`
	PreferredLanguages   []string      `koanf:"preferred_languages"`
	IncludeAutoGenerated bool          `koanf:"include_auto_generated"`
}

// WorkersConfig seeds the settings row on first startup. After seeding,
// the store's settings row is authoritative; these values are not read
// again.
type WorkersConfig struct {
	MaxWorkers    int     `koanf:"max_workers"`
	MaxRetries    int     `koanf:"max_retries"`
	BackoffFactor float64 `koanf:"backoff_factor"`
	OutputDir     string  `koanf:"output_dir"`
}

// LoggingConfig holds log output settings.
//
// Environment Variables:
//   - LOG_LEVEL: debug, info, warn, error (default: info)
//   - LOG_FORMAT: json, console (default: json)
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// Validate checks configuration invariants. Ranges mirror the limits
// enforced on the settings endpoint.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.Timeout <= 0 {
		return fmt.Errorf("server.timeout must be positive, got %s", c.Server.Timeout)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path must not be empty")
	}
	if c.Database.LockTimeout <= 0 {
		return fmt.Errorf("database.lock_timeout must be positive, got %s", c.Database.LockTimeout)
	}
	if c.Workers.MaxWorkers < 1 || c.Workers.MaxWorkers > 20 {
		return fmt.Errorf("workers.max_workers must be between 1 and 20, got %d", c.Workers.MaxWorkers)
	}
	if c.Workers.MaxRetries < 0 || c.Workers.MaxRetries > 10 {
		return fmt.Errorf("workers.max_retries must be between 0 and 10, got %d", c.Workers.MaxRetries)
	}
	if c.Workers.BackoffFactor < 1.0 || c.Workers.BackoffFactor > 10.0 {
		return fmt.Errorf("workers.backoff_factor must be between 1.0 and 10.0, got %g", c.Workers.BackoffFactor)
	}
	if c.Extractor.RequestsPerSecond <= 0 {
		return fmt.Errorf("extractor.requests_per_second must be positive, got %g", c.Extractor.RequestsPerSecond)
	}
	if c.Extractor.MaxAttempts < 1 {
		return fmt.Errorf("extractor.max_attempts must be at least 1, got %d", c.Extractor.MaxAttempts)
	}
	return nil
}
