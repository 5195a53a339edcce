package aggregate

import (
	"context"
	"sync"
)

// StreamGate serializes command execution per stream within one process.
//
// Optimistic locking alone degrades into a retry storm when many concurrent
// commands target one hot stream (a flash-sale aggregate, say). Gating keeps
// at most one append in flight per stream while leaving other streams fully
// parallel. It is an opt-in mitigation, not part of the core contract, and
// only helps within a single process; across processes the version check
// still decides.
type StreamGate struct {
	mu    sync.Mutex
	gates map[string]*gateEntry
}

type gateEntry struct {
	ch   chan struct{}
	refs int
}

// NewStreamGate creates a StreamGate.
func NewStreamGate() *StreamGate {
	return &StreamGate{
		gates: make(map[string]*gateEntry),
	}
}

// Do runs fn holding the stream's slot.
// Waiting is cancellable: if ctx ends first, fn never runs.
func (g *StreamGate) Do(ctx context.Context, streamID string, fn func() (int64, error)) (int64, error) {
	entry := g.acquireEntry(streamID)
	defer g.releaseEntry(streamID)

	select {
	case entry.ch <- struct{}{}:
	case <-ctx.Done():
		return 0, ctx.Err()
	}
	defer func() { <-entry.ch }()

	return fn()
}

func (g *StreamGate) acquireEntry(streamID string) *gateEntry {
	g.mu.Lock()
	defer g.mu.Unlock()

	entry, ok := g.gates[streamID]
	if !ok {
		entry = &gateEntry{ch: make(chan struct{}, 1)}
		g.gates[streamID] = entry
	}
	entry.refs++
	return entry
}

// releaseEntry drops the caller's reference and forgets idle streams so the
// map does not grow with every stream ID ever touched.
func (g *StreamGate) releaseEntry(streamID string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	entry := g.gates[streamID]
	entry.refs--
	if entry.refs == 0 {
		delete(g.gates, streamID)
	}
}
