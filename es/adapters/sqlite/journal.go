// Package sqlite provides a SQLite adapter for the event store.
//
// Useful for tests, tooling and single-node deployments. The schema mirrors
// the Postgres adapter; timestamps are stored as formatted text because
// SQLite has no native timestamp type.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/getpup/seqsourcing/es"
	"github.com/getpup/seqsourcing/es/journal"
)

const (
	// sqliteDateTimeFormat is the format used for timestamp storage/parsing in SQLite
	sqliteDateTimeFormat = "2006-01-02 15:04:05.999999"
)

// Config contains table names for the SQLite adapter.
// Configuration is immutable after construction.
type Config struct {
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

// DefaultConfig returns the default table names.
func DefaultConfig() Config {
	return Config{
		EventsTable:      "events",
		StreamHeadsTable: "stream_heads",
		SnapshotsTable:   "snapshots",
		CheckpointsTable: "projection_checkpoints",
		FeedsTable:       "projection_feeds",
		DLQTable:         "dlq_entries",
	}
}

// IsUniqueViolation checks if an error is a SQLite unique constraint violation.
// Exported for testing.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// Journal is a SQLite-backed journal.Journal.
type Journal struct {
	config Config
}

// NewJournal creates a SQLite journal with the given configuration.
func NewJournal(config Config) *Journal {
	return &Journal{config: config}
}

// Append implements journal.Journal.
// Same protocol as the Postgres adapter: fast-path head check, unique
// constraint on (stream_id, version) as the arbiter for races.
func (j *Journal) Append(ctx context.Context, tx es.DBTX, streamID string, expected es.ExpectedVersion, events []es.Event) (int64, error) {
	if err := journal.ValidateBatch(streamID, events); err != nil {
		return 0, err
	}

	current, err := j.CurrentVersion(ctx, tx, streamID)
	if err != nil {
		return 0, err
	}
	if err := journal.CheckExpected(current, expected); err != nil {
		return 0, err
	}

	insertQuery := fmt.Sprintf(`
		INSERT INTO %s (
			stream_id, version, event_id, event_type,
			payload, correlation_id, causation_id, occurred_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING global_position
	`, j.config.EventsTable)

	for i := range events {
		event := &events[i]
		version := current + int64(i) + 1

		var globalPos int64
		err := tx.QueryRowContext(ctx, insertQuery,
			streamID,
			version,
			event.EventID.String(),
			event.EventType,
			event.Payload,
			nullUUIDString(event.CorrelationID),
			nullUUIDString(event.CausationID),
			event.OccurredAt.UTC().Format(sqliteDateTimeFormat),
		).Scan(&globalPos)
		if err != nil {
			if IsUniqueViolation(err) {
				return 0, journal.ErrVersionConflict
			}
			return 0, fmt.Errorf("failed to insert event %d: %w", i, err)
		}

		event.Version = version
		event.GlobalPosition = globalPos
	}

	committed := current + int64(len(events))
	upsertQuery := fmt.Sprintf(`
		INSERT INTO %s (stream_id, version, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT (stream_id)
		DO UPDATE SET version = excluded.version, updated_at = excluded.updated_at
		WHERE %s.version < excluded.version
	`, j.config.StreamHeadsTable, j.config.StreamHeadsTable)

	now := time.Now().UTC().Format(sqliteDateTimeFormat)
	if _, err := tx.ExecContext(ctx, upsertQuery, streamID, committed, now); err != nil {
		return 0, fmt.Errorf("failed to update stream head: %w", err)
	}

	return committed, nil
}

// Read implements journal.Journal.
func (j *Journal) Read(ctx context.Context, tx es.DBTX, streamID string, fromVersion int64, limit int) ([]es.Event, error) {
	query := fmt.Sprintf(`
		SELECT global_position, stream_id, version, event_id, event_type,
			payload, correlation_id, causation_id, occurred_at
		FROM %s
		WHERE stream_id = ? AND version >= ?
		ORDER BY version ASC
		LIMIT ?
	`, j.config.EventsTable)

	rows, err := tx.QueryContext(ctx, query, streamID, fromVersion, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query stream %s: %w", streamID, err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// ReadAll implements journal.Journal.
func (j *Journal) ReadAll(ctx context.Context, tx es.DBTX, fromPosition int64, limit int) ([]es.Event, error) {
	query := fmt.Sprintf(`
		SELECT global_position, stream_id, version, event_id, event_type,
			payload, correlation_id, causation_id, occurred_at
		FROM %s
		WHERE global_position > ?
		ORDER BY global_position ASC
		LIMIT ?
	`, j.config.EventsTable)

	rows, err := tx.QueryContext(ctx, query, fromPosition, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query feed: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// CurrentVersion implements journal.Journal.
func (j *Journal) CurrentVersion(ctx context.Context, tx es.DBTX, streamID string) (int64, error) {
	query := fmt.Sprintf(`SELECT version FROM %s WHERE stream_id = ?`, j.config.StreamHeadsTable)

	var version int64
	err := tx.QueryRowContext(ctx, query, streamID).Scan(&version)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read stream head: %w", err)
	}
	return version, nil
}

var _ journal.Journal = (*Journal)(nil)
