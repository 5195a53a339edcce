package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/getpup/seqsourcing/es"
	"github.com/getpup/seqsourcing/es/dlq"
)

type entryKey struct {
	projection string
	stream     string
}

// DLQStore is an in-memory dlq.Store.
type DLQStore struct {
	mu      sync.RWMutex
	entries map[entryKey]dlq.Entry
}

// NewDLQStore creates an empty DLQStore.
func NewDLQStore() *DLQStore {
	return &DLQStore{
		entries: make(map[entryKey]dlq.Entry),
	}
}

// Get implements dlq.Store.
func (s *DLQStore) Get(_ context.Context, _ es.DBTX, projection, streamID string) (dlq.Entry, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.entries[entryKey{projection: projection, stream: streamID}]
	return entry, ok, nil
}

// Upsert implements dlq.Store.
func (s *DLQStore) Upsert(_ context.Context, _ es.DBTX, entry dlq.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[entryKey{projection: entry.ProjectionName, stream: entry.StreamID}] = entry
	return nil
}

// Delete implements dlq.Store.
func (s *DLQStore) Delete(_ context.Context, _ es.DBTX, projection, streamID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, entryKey{projection: projection, stream: streamID})
	return nil
}

// List implements dlq.Store. Entries come back in a stable order.
func (s *DLQStore) List(_ context.Context, _ es.DBTX) ([]dlq.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := make([]dlq.Entry, 0, len(s.entries))
	for _, entry := range s.entries {
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].ProjectionName != entries[j].ProjectionName {
			return entries[i].ProjectionName < entries[j].ProjectionName
		}
		return entries[i].StreamID < entries[j].StreamID
	})
	return entries, nil
}

var _ dlq.Store = (*DLQStore)(nil)
