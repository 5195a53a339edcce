// Package snapshot provides checkpointed aggregate state to bound replay cost.
package snapshot

import (
	"context"
	"time"

	"github.com/getpup/seqsourcing/es"
)

// Snapshot is a cached fold result for one stream.
// A newer snapshot supersedes an older one; at most one current snapshot per
// stream is retained for fast-path reads.
type Snapshot struct {
	// TakenAt is when the snapshot was taken
	TakenAt time.Time

	// StreamID identifies the stream this snapshot belongs to
	StreamID string

	// State is the serialized aggregate state at Version
	State []byte

	// Version is the stream version this snapshot represents
	Version int64
}

// Store persists snapshots.
type Store interface {
	// Save stores a snapshot, superseding any older snapshot for the stream.
	// Saving a snapshot older than the current one is a no-op, so concurrent
	// rehydrators cannot move a stream's snapshot backwards.
	Save(ctx context.Context, tx es.DBTX, snap Snapshot) error

	// LoadLatest returns the current snapshot for the stream.
	// The second return value is false when no snapshot exists.
	LoadLatest(ctx context.Context, tx es.DBTX, streamID string) (Snapshot, bool, error)
}

// Policy decides when a fresh snapshot is worth its write cost.
// A snapshot is taken when either threshold is crossed, whichever first:
// bounding rehydration to O(events since snapshot) while keeping storage
// overhead predictable.
type Policy struct {
	// EveryNEvents triggers a snapshot once the stream is this many events
	// ahead of the last snapshot.
	EveryNEvents int64

	// MaxAge triggers a snapshot once the last one is this old.
	MaxAge time.Duration
}

// DefaultPolicy returns the default snapshot cadence.
func DefaultPolicy() Policy {
	return Policy{
		EveryNEvents: 1000,
		MaxAge:       10 * time.Minute,
	}
}

// ShouldTake reports whether a new snapshot is due.
// lastVersion and lastTakenAt describe the current snapshot; pass zero values
// when no snapshot exists yet.
func (p Policy) ShouldTake(lastVersion int64, lastTakenAt time.Time, currentVersion int64, now time.Time) bool {
	if currentVersion <= lastVersion {
		return false
	}
	if p.EveryNEvents > 0 && currentVersion-lastVersion >= p.EveryNEvents {
		return true
	}
	if p.MaxAge > 0 && !lastTakenAt.IsZero() && now.Sub(lastTakenAt) >= p.MaxAge {
		return true
	}
	return false
}
