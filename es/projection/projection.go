// Package projection provides ordered, idempotent read-model maintenance.
package projection

import (
	"context"

	"github.com/getpup/seqsourcing/es"
)

// Projection defines the interface for read-model maintainers.
//
// Apply is called once per event, in version order per stream, across
// possibly-parallel streams. Delivery is at-least-once, so Apply must be
// idempotent: the new read-model value must be a pure function of the event
// content (and already-committed rows), never an unsafe `current += delta`.
// The runner additionally skips versions at or below the stream checkpoint,
// so a correct projection sees each event's effect exactly once.
//
// Returning an error quarantines the event's stream: the event and every
// later event of that stream are routed to the dead-letter queue, in order,
// until redriven. Errors are never retried inline.
type Projection interface {
	// Name returns the unique name of this projection.
	// It keys checkpoints, the feed position, and quarantine entries, so a
	// new projection version under a new name replays independently.
	Name() string

	// Apply processes a single event within the runner's transaction.
	// Read-model writes through tx commit atomically with the checkpoint.
	Apply(ctx context.Context, tx es.DBTX, event es.Event) error
}

// Checkpoint records the last event a projection has durably applied for one
// stream. It is the idempotency anchor: a crash mid-update cannot
// double-apply because the checkpoint commits in the same transaction as the
// read-model write.
type Checkpoint struct {
	ProjectionName     string
	StreamID           string
	LastAppliedVersion int64
}

// CheckpointStore persists per-(projection, stream) checkpoints.
type CheckpointStore interface {
	// Get returns the last applied version for (projection, stream),
	// 0 if the projection has not applied anything for the stream.
	Get(ctx context.Context, tx es.DBTX, projection, streamID string) (int64, error)

	// Save upserts the last applied version for (projection, stream).
	Save(ctx context.Context, tx es.DBTX, projection, streamID string, version int64) error

	// Reset deletes all checkpoints of a projection, for replays.
	Reset(ctx context.Context, tx es.DBTX, projection string) error
}

// FeedStore persists each projection's polling position in the global feed.
// The position is a cursor over journal.ReadAll, not an ordering statement.
type FeedStore interface {
	// GetPosition returns the projection's feed position, 0 if never run.
	GetPosition(ctx context.Context, tx es.DBTX, projection string) (int64, error)

	// SavePosition upserts the projection's feed position.
	SavePosition(ctx context.Context, tx es.DBTX, projection string, position int64) error
}
