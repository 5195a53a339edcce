// Package postgres provides a PostgreSQL adapter for the event store.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/getpup/seqsourcing/es"
	"github.com/getpup/seqsourcing/es/journal"
)

// Config contains table names for the Postgres adapter.
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

// Journal is a PostgreSQL-backed journal.Journal.
type Journal struct {
	config Config
}

// NewJournal creates a Postgres journal with the given configuration.
func NewJournal(config Config) *Journal {
	return &Journal{config: config}
}

// Append implements journal.Journal.
//
// The stream_heads table gives an O(1) current-version lookup for the fast
// path; the unique constraint on (stream_id, version) is the arbiter for
// races. If another transaction commits between our version check and the
// insert, the insert fails with a unique violation and the append surfaces
// journal.ErrVersionConflict.
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
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING global_position
	`, j.config.EventsTable)

	for i := range events {
		event := &events[i]
		version := current + int64(i) + 1

		var globalPos int64
		err := tx.QueryRowContext(ctx, insertQuery,
			streamID,
			version,
			event.EventID,
			event.EventType,
			event.Payload,
			event.CorrelationID,
			event.CausationID,
			event.OccurredAt,
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
		VALUES ($1, $2, NOW())
		ON CONFLICT (stream_id)
		DO UPDATE SET version = EXCLUDED.version, updated_at = EXCLUDED.updated_at
		WHERE %s.version < EXCLUDED.version
	`, j.config.StreamHeadsTable, j.config.StreamHeadsTable)

	if _, err := tx.ExecContext(ctx, upsertQuery, streamID, committed); err != nil {
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
		WHERE stream_id = $1 AND version >= $2
		ORDER BY version ASC
		LIMIT $3
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
		WHERE global_position > $1
		ORDER BY global_position ASC
		LIMIT $2
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
	query := fmt.Sprintf(`
		SELECT version FROM %s WHERE stream_id = $1
	`, j.config.StreamHeadsTable)

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

func scanEvents(rows *sql.Rows) ([]es.Event, error) {
	var events []es.Event
	for rows.Next() {
		var e es.Event
		err := rows.Scan(
			&e.GlobalPosition,
			&e.StreamID,
			&e.Version,
			&e.EventID,
			&e.EventType,
			&e.Payload,
			&e.CorrelationID,
			&e.CausationID,
			&e.OccurredAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return events, nil
}

var _ journal.Journal = (*Journal)(nil)
