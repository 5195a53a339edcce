package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/getpup/seqsourcing/es"
	"github.com/getpup/seqsourcing/es/dlq"
)

// DLQStore is a PostgreSQL-backed dlq.Store.
// The primary key on (projection_name, stream_id) makes "at most one open
// entry per stream" a schema invariant, not a code-path promise.
type DLQStore struct {
	config Config
}

// NewDLQStore creates a Postgres DLQ store.
func NewDLQStore(config Config) *DLQStore {
	return &DLQStore{config: config}
}

// Get implements dlq.Store.
func (s *DLQStore) Get(ctx context.Context, tx es.DBTX, projection, streamID string) (dlq.Entry, bool, error) {
	query := fmt.Sprintf(`
		SELECT projection_name, stream_id, failed_at_version, last_queued_version, reason, enqueued_at
		FROM %s
		WHERE projection_name = $1 AND stream_id = $2
	`, s.config.DLQTable)

	var entry dlq.Entry
	err := tx.QueryRowContext(ctx, query, projection, streamID).Scan(
		&entry.ProjectionName,
		&entry.StreamID,
		&entry.FailedAtVersion,
		&entry.LastQueuedVersion,
		&entry.Reason,
		&entry.EnqueuedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return dlq.Entry{}, false, nil
		}
		return dlq.Entry{}, false, fmt.Errorf("failed to read quarantine entry: %w", err)
	}
	return entry, true, nil
}

// Upsert implements dlq.Store.
func (s *DLQStore) Upsert(ctx context.Context, tx es.DBTX, entry dlq.Entry) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (projection_name, stream_id, failed_at_version, last_queued_version, reason, enqueued_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (projection_name, stream_id)
		DO UPDATE SET
			failed_at_version = EXCLUDED.failed_at_version,
			last_queued_version = EXCLUDED.last_queued_version,
			reason = EXCLUDED.reason
	`, s.config.DLQTable)

	_, err := tx.ExecContext(ctx, query,
		entry.ProjectionName,
		entry.StreamID,
		entry.FailedAtVersion,
		entry.LastQueuedVersion,
		entry.Reason,
		entry.EnqueuedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert quarantine entry: %w", err)
	}
	return nil
}

// Delete implements dlq.Store.
func (s *DLQStore) Delete(ctx context.Context, tx es.DBTX, projection, streamID string) error {
	query := fmt.Sprintf(`
		DELETE FROM %s WHERE projection_name = $1 AND stream_id = $2
	`, s.config.DLQTable)

	if _, err := tx.ExecContext(ctx, query, projection, streamID); err != nil {
		return fmt.Errorf("failed to delete quarantine entry: %w", err)
	}
	return nil
}

// List implements dlq.Store.
func (s *DLQStore) List(ctx context.Context, tx es.DBTX) ([]dlq.Entry, error) {
	query := fmt.Sprintf(`
		SELECT projection_name, stream_id, failed_at_version, last_queued_version, reason, enqueued_at
		FROM %s
		ORDER BY projection_name, stream_id
	`, s.config.DLQTable)

	rows, err := tx.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list quarantine entries: %w", err)
	}
	defer rows.Close()

	var entries []dlq.Entry
	for rows.Next() {
		var entry dlq.Entry
		err := rows.Scan(
			&entry.ProjectionName,
			&entry.StreamID,
			&entry.FailedAtVersion,
			&entry.LastQueuedVersion,
			&entry.Reason,
			&entry.EnqueuedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan quarantine entry: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return entries, nil
}

var _ dlq.Store = (*DLQStore)(nil)
