package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/getpup/seqsourcing/es"
	"github.com/getpup/seqsourcing/es/projection"
)

// CheckpointStore is a PostgreSQL-backed projection.CheckpointStore and
// projection.FeedStore. Checkpoints are per (projection, stream); the feed
// position is per projection.
type CheckpointStore struct {
	config Config
}

// NewCheckpointStore creates a Postgres checkpoint store.
func NewCheckpointStore(config Config) *CheckpointStore {
	return &CheckpointStore{config: config}
}

// Get implements projection.CheckpointStore.
func (s *CheckpointStore) Get(ctx context.Context, tx es.DBTX, proj, streamID string) (int64, error) {
	query := fmt.Sprintf(`
		SELECT last_applied_version
		FROM %s
		WHERE projection_name = $1 AND stream_id = $2
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
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (projection_name, stream_id)
		DO UPDATE SET
			last_applied_version = EXCLUDED.last_applied_version,
			updated_at = EXCLUDED.updated_at
	`, s.config.CheckpointsTable)

	if _, err := tx.ExecContext(ctx, query, proj, streamID, version); err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}
	return nil
}

// Reset implements projection.CheckpointStore.
func (s *CheckpointStore) Reset(ctx context.Context, tx es.DBTX, proj string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE projection_name = $1`, s.config.CheckpointsTable)
	if _, err := tx.ExecContext(ctx, query, proj); err != nil {
		return fmt.Errorf("failed to reset checkpoints: %w", err)
	}
	return nil
}

// GetPosition implements projection.FeedStore.
func (s *CheckpointStore) GetPosition(ctx context.Context, tx es.DBTX, proj string) (int64, error) {
	query := fmt.Sprintf(`
		SELECT position FROM %s WHERE projection_name = $1
	`, s.config.FeedsTable)

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
		VALUES ($1, $2, NOW())
		ON CONFLICT (projection_name)
		DO UPDATE SET position = EXCLUDED.position, updated_at = EXCLUDED.updated_at
	`, s.config.FeedsTable)

	if _, err := tx.ExecContext(ctx, query, proj, position); err != nil {
		return fmt.Errorf("failed to save feed position: %w", err)
	}
	return nil
}

var (
	_ projection.CheckpointStore = (*CheckpointStore)(nil)
	_ projection.FeedStore       = (*CheckpointStore)(nil)
)
