package memory

import (
	"context"
	"sync"

	"github.com/getpup/seqsourcing/es"
	"github.com/getpup/seqsourcing/es/journal"
)

// Journal is an in-memory journal.Journal.
//
// Optimistic concurrency is enforced by the explicit version check under the
// journal's lock; there is no unique constraint to fall back on.
type Journal struct {
	mu      sync.RWMutex
	streams map[string][]es.Event
	feed    []es.Event
}

// NewJournal creates an empty in-memory journal.
func NewJournal() *Journal {
	return &Journal{
		streams: make(map[string][]es.Event),
	}
}

// Append implements journal.Journal.
func (j *Journal) Append(_ context.Context, _ es.DBTX, streamID string, expected es.ExpectedVersion, events []es.Event) (int64, error) {
	if err := journal.ValidateBatch(streamID, events); err != nil {
		return 0, err
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	current := int64(len(j.streams[streamID]))
	if err := journal.CheckExpected(current, expected); err != nil {
		return 0, err
	}

	for i := range events {
		e := events[i]
		e.Version = current + int64(i) + 1
		e.GlobalPosition = int64(len(j.feed)) + 1
		j.streams[streamID] = append(j.streams[streamID], e)
		j.feed = append(j.feed, e)
	}

	return current + int64(len(events)), nil
}

// Read implements journal.Journal.
func (j *Journal) Read(_ context.Context, _ es.DBTX, streamID string, fromVersion int64, limit int) ([]es.Event, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	stream := j.streams[streamID]
	if fromVersion < 1 {
		fromVersion = 1
	}
	if fromVersion > int64(len(stream)) {
		return nil, nil
	}

	// Versions are contiguous from 1, so version v sits at index v-1.
	out := stream[fromVersion-1:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}

	events := make([]es.Event, len(out))
	copy(events, out)
	return events, nil
}

// ReadAll implements journal.Journal.
func (j *Journal) ReadAll(_ context.Context, _ es.DBTX, fromPosition int64, limit int) ([]es.Event, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	if fromPosition < 0 {
		fromPosition = 0
	}
	if fromPosition >= int64(len(j.feed)) {
		return nil, nil
	}

	out := j.feed[fromPosition:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}

	events := make([]es.Event, len(out))
	copy(events, out)
	return events, nil
}

// CurrentVersion implements journal.Journal.
func (j *Journal) CurrentVersion(_ context.Context, _ es.DBTX, streamID string) (int64, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return int64(len(j.streams[streamID])), nil
}

var _ journal.Journal = (*Journal)(nil)
