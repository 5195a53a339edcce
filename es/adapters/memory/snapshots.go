package memory

import (
	"context"
	"sync"

	"github.com/getpup/seqsourcing/es"
	"github.com/getpup/seqsourcing/es/snapshot"
)

// SnapshotStore is an in-memory snapshot.Store.
// At most one current snapshot is kept per stream.
type SnapshotStore struct {
	mu    sync.RWMutex
	snaps map[string]snapshot.Snapshot
}

// NewSnapshotStore creates an empty SnapshotStore.
func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{
		snaps: make(map[string]snapshot.Snapshot),
	}
}

// Save implements snapshot.Store. Older snapshots never overwrite newer ones.
func (s *SnapshotStore) Save(_ context.Context, _ es.DBTX, snap snapshot.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if current, ok := s.snaps[snap.StreamID]; ok && current.Version >= snap.Version {
		return nil
	}

	state := make([]byte, len(snap.State))
	copy(state, snap.State)
	snap.State = state
	s.snaps[snap.StreamID] = snap
	return nil
}

// LoadLatest implements snapshot.Store.
func (s *SnapshotStore) LoadLatest(_ context.Context, _ es.DBTX, streamID string) (snapshot.Snapshot, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap, ok := s.snaps[streamID]
	if !ok {
		return snapshot.Snapshot{}, false, nil
	}

	state := make([]byte, len(snap.State))
	copy(state, snap.State)
	snap.State = state
	return snap, true, nil
}

var _ snapshot.Store = (*SnapshotStore)(nil)
