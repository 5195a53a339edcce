package dlq

import "sync"

// streamKey identifies one quarantined stream for one projection.
type streamKey struct {
	projection string
	stream     string
}

// QuarantineSet is the in-memory membership index for quarantined streams.
//
// It exists so the runner can answer "is this stream quarantined" in O(1) on
// every incoming event without scanning the entry store. It is the only
// shared mutable structure on the hot path: read per event, written only on
// quarantine and redrive transitions. It is owned by the Queue and passed by
// reference to runners at construction, never a package-level singleton.
type QuarantineSet struct {
	mu      sync.RWMutex
	members map[streamKey]struct{}
}

// NewQuarantineSet creates an empty set.
func NewQuarantineSet() *QuarantineSet {
	return &QuarantineSet{
		members: make(map[streamKey]struct{}),
	}
}

// Contains reports whether the stream is quarantined for the projection.
func (s *QuarantineSet) Contains(projection, streamID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.members[streamKey{projection: projection, stream: streamID}]
	return ok
}

// Add marks the stream quarantined. Returns false if it already was.
func (s *QuarantineSet) Add(projection, streamID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := streamKey{projection: projection, stream: streamID}
	if _, ok := s.members[key]; ok {
		return false
	}
	s.members[key] = struct{}{}
	return true
}

// Remove clears the stream's quarantine. Returns false if it was not present.
func (s *QuarantineSet) Remove(projection, streamID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := streamKey{projection: projection, stream: streamID}
	if _, ok := s.members[key]; !ok {
		return false
	}
	delete(s.members, key)
	return true
}

// Len returns the number of quarantined streams across all projections.
func (s *QuarantineSet) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.members)
}
