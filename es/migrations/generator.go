// Package migrations provides SQL migration generation for event sourcing infrastructure.
package migrations

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Config configures migration generation.
type Config struct {
	// OutputFolder is the directory where the migration file will be written
	OutputFolder string

	// OutputFilename is the name of the migration file
	OutputFilename string

	// EventsTable is the name of the events table
	EventsTable string

	// StreamHeadsTable is the name of the stream version tracking table
	StreamHeadsTable string

	// SnapshotsTable is the name of the snapshots table
	SnapshotsTable string

	// CheckpointsTable is the name of the projection checkpoints table
	CheckpointsTable string

	// FeedsTable is the name of the projection feed positions table
	FeedsTable string

	// DLQTable is the name of the quarantine entries table
	DLQTable string
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	timestamp := time.Now().Format("20060102150405")
	return Config{
		OutputFolder:     "migrations",
		OutputFilename:   fmt.Sprintf("%s_init_event_sourcing.sql", timestamp),
		EventsTable:      "events",
		StreamHeadsTable: "stream_heads",
		SnapshotsTable:   "snapshots",
		CheckpointsTable: "projection_checkpoints",
		FeedsTable:       "projection_feeds",
		DLQTable:         "dlq_entries",
	}
}

func write(config *Config, sql string) error {
	if err := os.MkdirAll(config.OutputFolder, 0o755); err != nil {
		return fmt.Errorf("failed to create output folder: %w", err)
	}

	outputPath := filepath.Join(config.OutputFolder, config.OutputFilename)
	if err := os.WriteFile(outputPath, []byte(sql), 0o600); err != nil {
		return fmt.Errorf("failed to write migration file: %w", err)
	}
	return nil
}

// GeneratePostgres generates a PostgreSQL migration file.
func GeneratePostgres(config *Config) error {
	return write(config, generatePostgresSQL(config))
}

// GenerateSQLite generates a SQLite migration file.
func GenerateSQLite(config *Config) error {
	return write(config, generateSQLiteSQL(config))
}

func generatePostgresSQL(config *Config) string {
	return fmt.Sprintf(`-- Event Sourcing Infrastructure Migration
-- Generated: %s

-- Events table stores all domain events in append-only fashion.
-- The unique constraint on (stream_id, version) is the optimistic
-- concurrency arbiter: a conflicting append fails here.
CREATE TABLE IF NOT EXISTS %s (
    global_position BIGSERIAL PRIMARY KEY,
    stream_id TEXT NOT NULL,
    version BIGINT NOT NULL,
    event_id UUID NOT NULL UNIQUE,
    event_type TEXT NOT NULL,
    payload BYTEA NOT NULL,
    correlation_id UUID,
    causation_id UUID,
    occurred_at TIMESTAMPTZ NOT NULL,

    UNIQUE (stream_id, version)
);

-- Index for stream reads
CREATE INDEX IF NOT EXISTS idx_%s_stream
    ON %s (stream_id, version);

-- Index for correlation tracking
CREATE INDEX IF NOT EXISTS idx_%s_correlation
    ON %s (correlation_id) WHERE correlation_id IS NOT NULL;

-- Stream heads table tracks the current version of each stream
-- Provides O(1) version lookup for event append operations
CREATE TABLE IF NOT EXISTS %s (
    stream_id TEXT PRIMARY KEY,
    version BIGINT NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

-- Snapshots table holds at most one current snapshot per stream
CREATE TABLE IF NOT EXISTS %s (
    stream_id TEXT PRIMARY KEY,
    version BIGINT NOT NULL,
    state BYTEA NOT NULL,
    taken_at TIMESTAMPTZ NOT NULL
);

-- Projection checkpoints track the last applied version per (projection, stream).
-- This is the idempotency anchor for at-least-once delivery.
CREATE TABLE IF NOT EXISTS %s (
    projection_name TEXT NOT NULL,
    stream_id TEXT NOT NULL,
    last_applied_version BIGINT NOT NULL DEFAULT 0,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),

    PRIMARY KEY (projection_name, stream_id)
);

-- Projection feeds track each projection's polling position in the global feed
CREATE TABLE IF NOT EXISTS %s (
    projection_name TEXT PRIMARY KEY,
    position BIGINT NOT NULL DEFAULT 0,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

-- Quarantine entries: one open entry per (projection, stream), holding the
-- contiguous version range of deferred events
CREATE TABLE IF NOT EXISTS %s (
    projection_name TEXT NOT NULL,
    stream_id TEXT NOT NULL,
    failed_at_version BIGINT NOT NULL,
    last_queued_version BIGINT NOT NULL,
    reason TEXT NOT NULL DEFAULT '',
    enqueued_at TIMESTAMPTZ NOT NULL,

    PRIMARY KEY (projection_name, stream_id)
);
`,
		time.Now().Format(time.RFC3339),
		config.EventsTable,
		config.EventsTable, config.EventsTable,
		config.EventsTable, config.EventsTable,
		config.StreamHeadsTable,
		config.SnapshotsTable,
		config.CheckpointsTable,
		config.FeedsTable,
		config.DLQTable,
	)
}

func generateSQLiteSQL(config *Config) string {
	return fmt.Sprintf(`-- Event Sourcing Infrastructure Migration for SQLite
-- Generated: %s

-- Events table stores all domain events in append-only fashion.
-- The unique constraint on (stream_id, version) is the optimistic
-- concurrency arbiter: a conflicting append fails here.
CREATE TABLE IF NOT EXISTS %s (
    global_position INTEGER PRIMARY KEY AUTOINCREMENT,
    stream_id TEXT NOT NULL,
    version INTEGER NOT NULL,
    event_id TEXT NOT NULL UNIQUE,
    event_type TEXT NOT NULL,
    payload BLOB NOT NULL,
    correlation_id TEXT,
    causation_id TEXT,
    occurred_at TEXT NOT NULL,

    UNIQUE (stream_id, version)
);

-- Index for stream reads
CREATE INDEX IF NOT EXISTS idx_%s_stream
    ON %s (stream_id, version);

-- Index for correlation tracking
CREATE INDEX IF NOT EXISTS idx_%s_correlation
    ON %s (correlation_id) WHERE correlation_id IS NOT NULL;

-- Stream heads table tracks the current version of each stream
CREATE TABLE IF NOT EXISTS %s (
    stream_id TEXT PRIMARY KEY,
    version INTEGER NOT NULL,
    updated_at TEXT NOT NULL
);

-- Snapshots table holds at most one current snapshot per stream
CREATE TABLE IF NOT EXISTS %s (
    stream_id TEXT PRIMARY KEY,
    version INTEGER NOT NULL,
    state BLOB NOT NULL,
    taken_at TEXT NOT NULL
);

-- Projection checkpoints track the last applied version per (projection, stream)
CREATE TABLE IF NOT EXISTS %s (
    projection_name TEXT NOT NULL,
    stream_id TEXT NOT NULL,
    last_applied_version INTEGER NOT NULL DEFAULT 0,
    updated_at TEXT NOT NULL,

    PRIMARY KEY (projection_name, stream_id)
);

-- Projection feeds track each projection's polling position in the global feed
CREATE TABLE IF NOT EXISTS %s (
    projection_name TEXT PRIMARY KEY,
    position INTEGER NOT NULL DEFAULT 0,
    updated_at TEXT NOT NULL
);

-- Quarantine entries: one open entry per (projection, stream)
CREATE TABLE IF NOT EXISTS %s (
    projection_name TEXT NOT NULL,
    stream_id TEXT NOT NULL,
    failed_at_version INTEGER NOT NULL,
    last_queued_version INTEGER NOT NULL,
    reason TEXT NOT NULL DEFAULT '',
    enqueued_at TEXT NOT NULL,

    PRIMARY KEY (projection_name, stream_id)
);
`,
		time.Now().Format(time.RFC3339),
		config.EventsTable,
		config.EventsTable, config.EventsTable,
		config.EventsTable, config.EventsTable,
		config.StreamHeadsTable,
		config.SnapshotsTable,
		config.CheckpointsTable,
		config.FeedsTable,
		config.DLQTable,
	)
}
