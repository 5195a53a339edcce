package dlq

import (
	"context"
	"fmt"

	"github.com/getpup/seqsourcing/es"
)

// Redrive replays a quarantined stream's queued events through applier, in
// ascending version order, one transaction per event (apply + checkpoint).
//
// On full success the entry is closed and the stream returns to normal flow.
// If an event fails, the entry is truncated to start at that version and the
// stream stays quarantined; events applied earlier in the batch keep their
// checkpoints (partial progress is retained, not rolled back) and a
// *PartialError is returned. Cancelling the context stops between events,
// never mid-event; progress made so far is recorded on the entry and the
// stream stays quarantined.
//
// Events deferred concurrently while the redrive runs extend the tail; the
// closing step re-checks the entry so they are drained before it is deleted.
func (q *Queue) Redrive(ctx context.Context, applier Applier, streamID string) error {
	projection := applier.Name()

	entry, ok, err := q.getEntry(ctx, projection, streamID)
	if err != nil {
		return err
	}
	if !ok {
		// No durable entry: clear any stale set membership.
		q.set.Remove(projection, streamID)
		return fmt.Errorf("%w: %s", ErrNotQuarantined, streamID)
	}

	if q.config.Logger != nil {
		q.config.Logger.Info(ctx, "redrive started",
			"projection", projection,
			"stream_id", streamID,
			"failed_at_version", entry.FailedAtVersion,
			"queued", entry.QueuedCount())
	}

	version := entry.FailedAtVersion
	for {
		if err := ctx.Err(); err != nil {
			q.recordProgress(context.WithoutCancel(ctx), projection, streamID, version)
			return err
		}

		if version > entry.LastQueuedVersion {
			closed, refreshed, err := q.tryClose(ctx, projection, streamID, version)
			if err != nil {
				return err
			}
			if closed {
				break
			}
			// Tail grew while redriving; keep draining.
			entry = refreshed
			continue
		}

		if err := q.redriveOne(ctx, applier, streamID, version); err != nil {
			if failErr := q.recordFailure(ctx, projection, streamID, version, err); failErr != nil {
				return failErr
			}
			if q.config.Metrics != nil {
				q.config.Metrics.RedrivenEvents.WithLabelValues(projection, "failed").Inc()
			}
			return &PartialError{StreamID: streamID, FailedAtVersion: version, Err: err}
		}

		if q.config.Metrics != nil {
			q.config.Metrics.RedrivenEvents.WithLabelValues(projection, "applied").Inc()
		}
		version++
	}

	if q.set.Remove(projection, streamID) && q.config.Metrics != nil {
		q.config.Metrics.QuarantinedStreams.WithLabelValues(projection).Dec()
	}
	if q.config.Logger != nil {
		q.config.Logger.Info(ctx, "redrive completed",
			"projection", projection, "stream_id", streamID, "last_version", version-1)
	}
	return nil
}

func (q *Queue) getEntry(ctx context.Context, projection, streamID string) (Entry, bool, error) {
	var entry Entry
	var ok bool
	err := q.transactor.WithinTx(ctx, func(tx es.DBTX) error {
		var err error
		entry, ok, err = q.store.Get(ctx, tx, projection, streamID)
		return err
	})
	if err != nil {
		return Entry{}, false, fmt.Errorf("failed to load quarantine entry: %w", err)
	}
	return entry, ok, nil
}

// redriveOne applies the queued event at version in a single transaction
// together with its checkpoint, the same atomic pairing used in normal flow.
// Versions at or below the stream's checkpoint were already applied through
// another path and are skipped; the checkpoint never moves backwards.
func (q *Queue) redriveOne(ctx context.Context, applier Applier, streamID string, version int64) error {
	return q.transactor.WithinTx(ctx, func(tx es.DBTX) error {
		lastApplied, err := q.checkpoints.Get(ctx, tx, applier.Name(), streamID)
		if err != nil {
			return fmt.Errorf("failed to get checkpoint: %w", err)
		}
		if version <= lastApplied {
			return nil
		}

		events, err := q.journal.Read(ctx, tx, streamID, version, 1)
		if err != nil {
			return fmt.Errorf("failed to read queued event: %w", err)
		}
		if len(events) == 0 || events[0].Version != version {
			return fmt.Errorf("%w: stream %s version %d", ErrQueuedEventMissing, streamID, version)
		}

		if err := applier.Apply(ctx, tx, events[0]); err != nil {
			return err
		}
		return q.checkpoints.Save(ctx, tx, applier.Name(), streamID, version)
	})
}

// recordProgress truncates the entry after a cancelled redrive so the next
// attempt does not replay events that were already applied and checkpointed.
// Best effort: on error the entry keeps its old range and the next redrive
// re-applies through the idempotent apply path.
func (q *Queue) recordProgress(ctx context.Context, projection, streamID string, version int64) {
	err := q.transactor.WithinTx(ctx, func(tx es.DBTX) error {
		entry, ok, err := q.store.Get(ctx, tx, projection, streamID)
		if err != nil {
			return err
		}
		if !ok || entry.FailedAtVersion >= version {
			return nil
		}
		entry.FailedAtVersion = version
		return q.store.Upsert(ctx, tx, entry)
	})
	if err != nil && q.config.Logger != nil {
		q.config.Logger.Error(ctx, "failed to record redrive progress",
			"projection", projection, "stream_id", streamID, "version", version, "error", err)
	}
}

// recordFailure truncates the entry to start at the failed version.
// Queued events are never silently dropped.
func (q *Queue) recordFailure(ctx context.Context, projection, streamID string, version int64, cause error) error {
	err := q.transactor.WithinTx(ctx, func(tx es.DBTX) error {
		entry, ok, err := q.store.Get(ctx, tx, projection, streamID)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: entry vanished during redrive", ErrNotQuarantined)
		}
		entry.FailedAtVersion = version
		entry.Reason = cause.Error()
		return q.store.Upsert(ctx, tx, entry)
	})
	if err != nil {
		return fmt.Errorf("failed to record redrive failure at version %d: %w", version, err)
	}

	if q.config.Logger != nil {
		q.config.Logger.Error(ctx, "redrive failed",
			"projection", projection, "stream_id", streamID,
			"failed_at_version", version, "error", cause)
	}
	return nil
}

// tryClose deletes the entry if no events were queued behind nextVersion
// while the batch was being redriven. Returns the refreshed entry otherwise.
func (q *Queue) tryClose(ctx context.Context, projection, streamID string, nextVersion int64) (bool, Entry, error) {
	var closed bool
	var refreshed Entry
	err := q.transactor.WithinTx(ctx, func(tx es.DBTX) error {
		entry, ok, err := q.store.Get(ctx, tx, projection, streamID)
		if err != nil {
			return err
		}
		if !ok {
			closed = true
			return nil
		}
		if entry.LastQueuedVersion >= nextVersion {
			refreshed = entry
			return nil
		}
		closed = true
		return q.store.Delete(ctx, tx, projection, streamID)
	})
	if err != nil {
		return false, Entry{}, fmt.Errorf("failed to close quarantine entry: %w", err)
	}
	return closed, refreshed, nil
}
