package aggregate

import (
	"context"
	"fmt"
	"time"

	"github.com/getpup/seqsourcing/es"
	"github.com/getpup/seqsourcing/es/journal"
	"github.com/getpup/seqsourcing/es/metrics"
	"github.com/getpup/seqsourcing/es/snapshot"
)

// RehydratorConfig configures a Rehydrator.
type RehydratorConfig struct {
	// Logger is an optional logger for observability.
	// If nil, logging is disabled (zero overhead).
	Logger es.Logger

	// Metrics is an optional metrics sink. If nil, nothing is recorded.
	Metrics *metrics.Metrics

	// Policy controls snapshot cadence. Zero values disable snapshotting.
	Policy snapshot.Policy

	// ReadBatchSize is the journal read batch size during the fold.
	ReadBatchSize int
}

// DefaultRehydratorConfig returns the default configuration.
func DefaultRehydratorConfig() RehydratorConfig {
	return RehydratorConfig{
		Policy:        snapshot.DefaultPolicy(),
		ReadBatchSize: journal.DefaultCursorBatchSize,
	}
}

// Rehydrator reconstructs aggregate state from the latest snapshot plus
// subsequent journal events. Rehydration is deterministic: the same journal
// contents always produce the same state, with or without a snapshot.
type Rehydrator struct {
	journal   journal.Journal
	snapshots snapshot.Store
	def       Definition
	codec     Codec
	config    RehydratorConfig
	now       func() time.Time
}

// NewRehydrator creates a Rehydrator for one aggregate definition.
// The definition is validated here; an incomplete dispatch table is a
// construction error, not something discovered mid-replay.
// snapshots may be nil to disable snapshotting entirely.
func NewRehydrator(j journal.Journal, snapshots snapshot.Store, def Definition, codec Codec, config RehydratorConfig) (*Rehydrator, error) {
	if err := def.Validate(); err != nil {
		return nil, fmt.Errorf("invalid aggregate definition: %w", err)
	}
	if codec == nil {
		codec = JSONCodec{New: def.NewState}
	}
	if config.ReadBatchSize <= 0 {
		config.ReadBatchSize = journal.DefaultCursorBatchSize
	}
	return &Rehydrator{
		journal:   j,
		snapshots: snapshots,
		def:       def,
		codec:     codec,
		config:    config,
		now:       time.Now,
	}, nil
}

// Rehydrate returns the aggregate's current state and version.
//
// It loads the latest snapshot (or the zero state at version 0), folds journal
// events from snapshot.Version+1 via the definition's dispatch table, and
// writes a fresh snapshot before returning when the snapshot policy fires.
// A failed snapshot write is logged and swallowed: snapshots are an
// optimization, never a correctness requirement.
func (r *Rehydrator) Rehydrate(ctx context.Context, tx es.DBTX, streamID string) (State, int64, error) {
	state := r.def.NewState()
	var version int64

	var snapVersion int64
	var snapTakenAt time.Time
	if r.snapshots != nil {
		snap, ok, err := r.snapshots.LoadLatest(ctx, tx, streamID)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to load snapshot for stream %s: %w", streamID, err)
		}
		if ok {
			state, err = r.codec.Unmarshal(snap.State)
			if err != nil {
				return nil, 0, fmt.Errorf("failed to restore snapshot for stream %s at version %d: %w",
					streamID, snap.Version, err)
			}
			version = snap.Version
			snapVersion = snap.Version
			snapTakenAt = snap.TakenAt
		}
	}

	cursor := journal.NewCursor(r.journal, tx, streamID, version+1, r.config.ReadBatchSize)
	for {
		event, ok, err := cursor.Next(ctx)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to read stream %s from version %d: %w", streamID, version+1, err)
		}
		if !ok {
			break
		}
		state, err = r.def.Fold(state, event)
		if err != nil {
			return nil, 0, err
		}
		version = event.Version
	}

	if r.snapshots != nil && r.config.Policy.ShouldTake(snapVersion, snapTakenAt, version, r.now()) {
		r.takeSnapshot(ctx, tx, streamID, state, version)
	}

	return state, version, nil
}

func (r *Rehydrator) takeSnapshot(ctx context.Context, tx es.DBTX, streamID string, state State, version int64) {
	data, err := r.codec.Marshal(state)
	if err != nil {
		if r.config.Logger != nil {
			r.config.Logger.Error(ctx, "failed to encode snapshot state",
				"stream_id", streamID, "version", version, "error", err)
		}
		return
	}

	err = r.snapshots.Save(ctx, tx, snapshot.Snapshot{
		StreamID: streamID,
		Version:  version,
		State:    data,
		TakenAt:  r.now(),
	})
	if err != nil {
		if r.config.Logger != nil {
			r.config.Logger.Error(ctx, "failed to save snapshot",
				"stream_id", streamID, "version", version, "error", err)
		}
		return
	}

	if r.config.Metrics != nil {
		r.config.Metrics.SnapshotsTaken.Inc()
	}
	if r.config.Logger != nil {
		r.config.Logger.Debug(ctx, "snapshot taken", "stream_id", streamID, "version", version)
	}
}
