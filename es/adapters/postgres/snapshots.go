package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/getpup/seqsourcing/es"
	"github.com/getpup/seqsourcing/es/snapshot"
)

// SnapshotStore is a PostgreSQL-backed snapshot.Store.
// One row per stream; newer snapshots supersede older ones via a
// version-guarded upsert, so concurrent rehydrators cannot regress a stream.
type SnapshotStore struct {
	config Config
}

// NewSnapshotStore creates a Postgres snapshot store.
func NewSnapshotStore(config Config) *SnapshotStore {
	return &SnapshotStore{config: config}
}

// Save implements snapshot.Store.
func (s *SnapshotStore) Save(ctx context.Context, tx es.DBTX, snap snapshot.Snapshot) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (stream_id, version, state, taken_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (stream_id)
		DO UPDATE SET
			version = EXCLUDED.version,
			state = EXCLUDED.state,
			taken_at = EXCLUDED.taken_at
		WHERE %s.version < EXCLUDED.version
	`, s.config.SnapshotsTable, s.config.SnapshotsTable)

	_, err := tx.ExecContext(ctx, query, snap.StreamID, snap.Version, snap.State, snap.TakenAt)
	if err != nil {
		return fmt.Errorf("failed to upsert snapshot: %w", err)
	}
	return nil
}

// LoadLatest implements snapshot.Store.
func (s *SnapshotStore) LoadLatest(ctx context.Context, tx es.DBTX, streamID string) (snapshot.Snapshot, bool, error) {
	query := fmt.Sprintf(`
		SELECT stream_id, version, state, taken_at
		FROM %s
		WHERE stream_id = $1
	`, s.config.SnapshotsTable)

	var snap snapshot.Snapshot
	err := tx.QueryRowContext(ctx, query, streamID).Scan(&snap.StreamID, &snap.Version, &snap.State, &snap.TakenAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return snapshot.Snapshot{}, false, nil
		}
		return snapshot.Snapshot{}, false, fmt.Errorf("failed to load snapshot: %w", err)
	}
	return snap, true, nil
}

var _ snapshot.Store = (*SnapshotStore)(nil)
