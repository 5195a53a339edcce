package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/getpup/seqsourcing/es"
	"github.com/getpup/seqsourcing/es/dlq"
	"github.com/getpup/seqsourcing/es/projection"
	"github.com/getpup/seqsourcing/es/snapshot"
)

// SnapshotStore is a SQLite-backed snapshot.Store.
type SnapshotStore struct {
	config Config
}

// NewSnapshotStore creates a SQLite snapshot store.
func NewSnapshotStore(config Config) *SnapshotStore {
	return &SnapshotStore{config: config}
}

// Save implements snapshot.Store.
func (s *SnapshotStore) Save(ctx context.Context, tx es.DBTX, snap snapshot.Snapshot) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (stream_id, version, state, taken_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (stream_id)
		DO UPDATE SET
			version = excluded.version,
			state = excluded.state,
			taken_at = excluded.taken_at
		WHERE %s.version < excluded.version
	`, s.config.SnapshotsTable, s.config.SnapshotsTable)

	_, err := tx.ExecContext(ctx, query,
		snap.StreamID, snap.Version, snap.State, snap.TakenAt.UTC().Format(sqliteDateTimeFormat))
	if err != nil {
		return fmt.Errorf("failed to upsert snapshot: %w", err)
	}
	return nil
}

// LoadLatest implements snapshot.Store.
func (s *SnapshotStore) LoadLatest(ctx context.Context, tx es.DBTX, streamID string) (snapshot.Snapshot, bool, error) {
	query := fmt.Sprintf(`
		SELECT stream_id, version, state, taken_at FROM %s WHERE stream_id = ?
	`, s.config.SnapshotsTable)

	var snap snapshot.Snapshot
	var takenAt string
	err := tx.QueryRowContext(ctx, query, streamID).Scan(&snap.StreamID, &snap.Version, &snap.State, &takenAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return snapshot.Snapshot{}, false, nil
		}
		return snapshot.Snapshot{}, false, fmt.Errorf("failed to load snapshot: %w", err)
	}
	if snap.TakenAt, err = parseTimestamp(takenAt); err != nil {
		return snapshot.Snapshot{}, false, err
	}
	return snap, true, nil
}

var _ snapshot.Store = (*SnapshotStore)(nil)

// CheckpointStore is a SQLite-backed projection.CheckpointStore and
// projection.FeedStore.
type CheckpointStore struct {
	config Config
}

// NewCheckpointStore creates a SQLite checkpoint store.
func NewCheckpointStore(config Config) *CheckpointStore {
	return &CheckpointStore{config: config}
}

// Get implements projection.CheckpointStore.
func (s *CheckpointStore) Get(ctx context.Context, tx es.DBTX, proj, streamID string) (int64, error) {
	query := fmt.Sprintf(`
		SELECT last_applied_version FROM %s WHERE projection_name = ? AND stream_id = ?
	`, s.config.CheckpointsTable)

	var version int64
	err := tx.QueryRowContext(ctx, query, proj, streamID).Scan(&version)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read checkpoint: %w", err)
	}
	return version, nil
}

// Save implements projection.CheckpointStore.
func (s *CheckpointStore) Save(ctx context.Context, tx es.DBTX, proj, streamID string, version int64) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (projection_name, stream_id, last_applied_version, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (projection_name, stream_id)
		DO UPDATE SET
			last_applied_version = excluded.last_applied_version,
			updated_at = excluded.updated_at
	`, s.config.CheckpointsTable)

	now := time.Now().UTC().Format(sqliteDateTimeFormat)
	if _, err := tx.ExecContext(ctx, query, proj, streamID, version, now); err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}
	return nil
}

// Reset implements projection.CheckpointStore.
func (s *CheckpointStore) Reset(ctx context.Context, tx es.DBTX, proj string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE projection_name = ?`, s.config.CheckpointsTable)
	if _, err := tx.ExecContext(ctx, query, proj); err != nil {
		return fmt.Errorf("failed to reset checkpoints: %w", err)
	}
	return nil
}

// GetPosition implements projection.FeedStore.
func (s *CheckpointStore) GetPosition(ctx context.Context, tx es.DBTX, proj string) (int64, error) {
	query := fmt.Sprintf(`SELECT position FROM %s WHERE projection_name = ?`, s.config.FeedsTable)

	var position int64
	err := tx.QueryRowContext(ctx, query, proj).Scan(&position)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to read feed position: %w", err)
	}
	return position, nil
}

// SavePosition implements projection.FeedStore.
func (s *CheckpointStore) SavePosition(ctx context.Context, tx es.DBTX, proj string, position int64) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (projection_name, position, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT (projection_name)
		DO UPDATE SET position = excluded.position, updated_at = excluded.updated_at
	`, s.config.FeedsTable)

	now := time.Now().UTC().Format(sqliteDateTimeFormat)
	if _, err := tx.ExecContext(ctx, query, proj, position, now); err != nil {
		return fmt.Errorf("failed to save feed position: %w", err)
	}
	return nil
}

var (
	_ projection.CheckpointStore = (*CheckpointStore)(nil)
	_ projection.FeedStore       = (*CheckpointStore)(nil)
)

// DLQStore is a SQLite-backed dlq.Store.
type DLQStore struct {
	config Config
}

// NewDLQStore creates a SQLite DLQ store.
func NewDLQStore(config Config) *DLQStore {
	return &DLQStore{config: config}
}

// Get implements dlq.Store.
func (s *DLQStore) Get(ctx context.Context, tx es.DBTX, projection, streamID string) (dlq.Entry, bool, error) {
	query := fmt.Sprintf(`
		SELECT projection_name, stream_id, failed_at_version, last_queued_version, reason, enqueued_at
		FROM %s
		WHERE projection_name = ? AND stream_id = ?
	`, s.config.DLQTable)

	var entry dlq.Entry
	var enqueuedAt string
	err := tx.QueryRowContext(ctx, query, projection, streamID).Scan(
		&entry.ProjectionName,
		&entry.StreamID,
		&entry.FailedAtVersion,
		&entry.LastQueuedVersion,
		&entry.Reason,
		&enqueuedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return dlq.Entry{}, false, nil
		}
		return dlq.Entry{}, false, fmt.Errorf("failed to read quarantine entry: %w", err)
	}
	if entry.EnqueuedAt, err = parseTimestamp(enqueuedAt); err != nil {
		return dlq.Entry{}, false, err
	}
	return entry, true, nil
}

// Upsert implements dlq.Store.
func (s *DLQStore) Upsert(ctx context.Context, tx es.DBTX, entry dlq.Entry) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (projection_name, stream_id, failed_at_version, last_queued_version, reason, enqueued_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (projection_name, stream_id)
		DO UPDATE SET
			failed_at_version = excluded.failed_at_version,
			last_queued_version = excluded.last_queued_version,
			reason = excluded.reason
	`, s.config.DLQTable)

	_, err := tx.ExecContext(ctx, query,
		entry.ProjectionName,
		entry.StreamID,
		entry.FailedAtVersion,
		entry.LastQueuedVersion,
		entry.Reason,
		entry.EnqueuedAt.UTC().Format(sqliteDateTimeFormat),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert quarantine entry: %w", err)
	}
	return nil
}

// Delete implements dlq.Store.
func (s *DLQStore) Delete(ctx context.Context, tx es.DBTX, projection, streamID string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE projection_name = ? AND stream_id = ?`, s.config.DLQTable)
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
		var enqueuedAt string
		err := rows.Scan(
			&entry.ProjectionName,
			&entry.StreamID,
			&entry.FailedAtVersion,
			&entry.LastQueuedVersion,
			&entry.Reason,
			&enqueuedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan quarantine entry: %w", err)
		}
		if entry.EnqueuedAt, err = parseTimestamp(enqueuedAt); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return entries, nil
}

var _ dlq.Store = (*DLQStore)(nil)

// Transactor implements es.Transactor with SQL transactions.
// SQLite allows one writer at a time; keep transactions short.
type Transactor struct {
	db *sql.DB
}

// NewTransactor creates a Transactor over db.
func NewTransactor(db *sql.DB) *Transactor {
	return &Transactor{db: db}
}

// WithinTx implements es.Transactor.
func (t *Transactor) WithinTx(ctx context.Context, fn func(tx es.DBTX) error) error {
	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		//nolint:errcheck // Rollback error ignored: expected to fail if commit succeeds
		tx.Rollback()
	}()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

var _ es.Transactor = (*Transactor)(nil)
