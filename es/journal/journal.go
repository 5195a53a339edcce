// Package journal provides the durable, ordered, append-only event log.
package journal

import (
	"context"
	"errors"

	"github.com/getpup/seqsourcing/es"
)

var (
	// ErrVersionConflict indicates the stream's current version did not match
	// the caller's ExpectedVersion. The caller must rehydrate and retry.
	ErrVersionConflict = errors.New("version conflict")

	// ErrNoEvents indicates an attempt to append zero events.
	ErrNoEvents = errors.New("no events to append")

	// ErrStreamMismatch indicates a batch containing events for more than one stream.
	ErrStreamMismatch = errors.New("events in a batch must belong to one stream")
)

// Journal defines durable, ordered, append-only event storage.
//
// Per-stream ordering is the contract: committed versions for a stream are
// exactly 1..N with no gaps or repeats. Appends for one stream are serialized
// by the optimistic version check; across streams everything is parallel.
type Journal interface {
	// Append atomically commits events to a single stream within the provided
	// transaction. Versions current+1 .. current+len(events) are assigned
	// contiguously and the committed (last) version is returned.
	//
	// Returns ErrVersionConflict if the stream's current version does not
	// satisfy expected; the batch is not committed (all-or-nothing).
	// Returns ErrNoEvents if events is empty, ErrStreamMismatch if the batch
	// spans streams.
	//
	// Append performs no external calls beyond the durable write; replay
	// stays deterministic.
	Append(ctx context.Context, tx es.DBTX, streamID string, expected es.ExpectedVersion, events []es.Event) (int64, error)

	// Read returns up to limit events of one stream with version >= fromVersion,
	// ordered by version ascending. Use a Cursor for lazy, restartable traversal.
	Read(ctx context.Context, tx es.DBTX, streamID string, fromVersion int64, limit int) ([]es.Event, error)

	// ReadAll returns up to limit events across all streams with
	// GlobalPosition > fromPosition, ordered by GlobalPosition ascending.
	// This is the polling feed for projections; it guarantees that events of
	// any single stream appear in version order, nothing more.
	ReadAll(ctx context.Context, tx es.DBTX, fromPosition int64, limit int) ([]es.Event, error)

	// CurrentVersion returns the stream's last committed version, 0 if the
	// stream does not exist.
	CurrentVersion(ctx context.Context, tx es.DBTX, streamID string) (int64, error)
}

// ValidateBatch checks that events form an appendable single-stream batch.
// Adapters call this before touching storage so the error surface is uniform.
func ValidateBatch(streamID string, events []es.Event) error {
	if len(events) == 0 {
		return ErrNoEvents
	}
	for i := range events {
		e := &events[i]
		if e.StreamID != streamID {
			return ErrStreamMismatch
		}
		if err := e.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// CheckExpected compares a stream's current version against an expectation.
// Adapters without a uniqueness constraint (memory) enforce optimistic
// concurrency through this check; SQL adapters use it as the fast path and
// fall back to the unique constraint for races.
func CheckExpected(current int64, expected es.ExpectedVersion) error {
	switch {
	case expected.IsAny():
		return nil
	case expected.IsNoStream():
		if current != 0 {
			return ErrVersionConflict
		}
		return nil
	default:
		if current != expected.Value() {
			return ErrVersionConflict
		}
		return nil
	}
}
