package memory

import (
	"context"
	"sync"

	"github.com/getpup/seqsourcing/es"
	"github.com/getpup/seqsourcing/es/projection"
)

type checkpointKey struct {
	projection string
	stream     string
}

// CheckpointStore is an in-memory projection.CheckpointStore.
type CheckpointStore struct {
	mu          sync.RWMutex
	checkpoints map[checkpointKey]int64
}

// NewCheckpointStore creates an empty CheckpointStore.
func NewCheckpointStore() *CheckpointStore {
	return &CheckpointStore{
		checkpoints: make(map[checkpointKey]int64),
	}
}

// Get implements projection.CheckpointStore.
func (s *CheckpointStore) Get(_ context.Context, _ es.DBTX, proj, streamID string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.checkpoints[checkpointKey{projection: proj, stream: streamID}], nil
}

// Save implements projection.CheckpointStore.
func (s *CheckpointStore) Save(_ context.Context, _ es.DBTX, proj, streamID string, version int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkpoints[checkpointKey{projection: proj, stream: streamID}] = version
	return nil
}

// Reset implements projection.CheckpointStore.
func (s *CheckpointStore) Reset(_ context.Context, _ es.DBTX, proj string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key := range s.checkpoints {
		if key.projection == proj {
			delete(s.checkpoints, key)
		}
	}
	return nil
}

var _ projection.CheckpointStore = (*CheckpointStore)(nil)

// FeedStore is an in-memory projection.FeedStore.
type FeedStore struct {
	mu        sync.RWMutex
	positions map[string]int64
}

// NewFeedStore creates an empty FeedStore.
func NewFeedStore() *FeedStore {
	return &FeedStore{
		positions: make(map[string]int64),
	}
}

// GetPosition implements projection.FeedStore.
func (s *FeedStore) GetPosition(_ context.Context, _ es.DBTX, proj string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.positions[proj], nil
}

// SavePosition implements projection.FeedStore.
func (s *FeedStore) SavePosition(_ context.Context, _ es.DBTX, proj string, position int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.positions[proj] = position
	return nil
}

var _ projection.FeedStore = (*FeedStore)(nil)
