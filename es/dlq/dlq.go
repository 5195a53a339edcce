// Package dlq provides a sequence-aware dead-letter queue for projections.
//
// A plain per-message DLQ corrupts order-dependent read models: retrying
// event N after N+1 was applied silently reorders a stream's effects. This
// queue instead quarantines the whole ordered tail of the failing stream.
// Once event E of stream S fails to apply, E and every later event of S are
// deferred in version order, without blocking any other stream, until an
// operator or scheduler redrives them through the same apply path.
//
// Redrive is deliberately not retried automatically by this package. The
// failure that quarantined a stream usually needs a fix (bad payload,
// read-model schema, downstream outage) before replay can succeed; callers
// that want periodic redrive wire the Redrive method to their own scheduler.
package dlq

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/getpup/seqsourcing/es"
	"github.com/getpup/seqsourcing/es/journal"
	"github.com/getpup/seqsourcing/es/metrics"
)

var (
	// ErrNotQuarantined indicates a redrive for a stream with no open entry.
	ErrNotQuarantined = errors.New("stream is not quarantined")

	// ErrQueuedEventMissing indicates a queued version that no longer exists
	// in the journal. Queued events are a contiguous journal tail, so this
	// only happens if the journal was tampered with out-of-band.
	ErrQueuedEventMissing = errors.New("queued event missing from journal")
)

// Entry is one stream's open quarantine record for one projection.
//
// The queued events are the contiguous, version-ordered journal tail
// [FailedAtVersion, LastQueuedVersion]. The entry stores only the range: the
// journal already holds the events, immutably and in order, so the tail
// invariant holds by construction and a stream can never have more than one
// open entry per projection (new failures extend or truncate the range).
type Entry struct {
	// EnqueuedAt is when the stream was first quarantined
	EnqueuedAt time.Time

	// ProjectionName is the projection that failed to apply
	ProjectionName string

	// StreamID is the quarantined stream
	StreamID string

	// Reason describes the most recent apply failure
	Reason string

	// FailedAtVersion is the first queued (not yet applied) version
	FailedAtVersion int64

	// LastQueuedVersion is the newest deferred version
	LastQueuedVersion int64
}

// QueuedCount returns the number of queued events.
func (e Entry) QueuedCount() int64 {
	return e.LastQueuedVersion - e.FailedAtVersion + 1
}

// Summary is the operator-facing view of an open entry, as returned by List.
type Summary struct {
	ProjectionName  string
	StreamID        string
	Reason          string
	FailedAtVersion int64
	QueuedCount     int64
}

// Store persists quarantine entries.
type Store interface {
	// Get returns the open entry for (projection, stream).
	// The second return value is false when none exists.
	Get(ctx context.Context, tx es.DBTX, projection, streamID string) (Entry, bool, error)

	// Upsert creates or replaces the open entry for (projection, stream).
	Upsert(ctx context.Context, tx es.DBTX, entry Entry) error

	// Delete closes the entry for (projection, stream).
	Delete(ctx context.Context, tx es.DBTX, projection, streamID string) error

	// List returns all open entries.
	List(ctx context.Context, tx es.DBTX) ([]Entry, error)
}

// Applier applies one event to a read model. The projection package's
// Projection satisfies this, so redrive runs the exact apply path used in
// normal flow.
type Applier interface {
	Name() string
	Apply(ctx context.Context, tx es.DBTX, event es.Event) error
}

// Checkpointer reads and advances a projection's per-stream checkpoint.
type Checkpointer interface {
	Get(ctx context.Context, tx es.DBTX, projection, streamID string) (int64, error)
	Save(ctx context.Context, tx es.DBTX, projection, streamID string, version int64) error
}

// PartialError reports a redrive that made partial progress: queued events
// before FailedAtVersion were applied and checkpointed; the rest remain
// queued and the stream remains quarantined.
type PartialError struct {
	Err             error
	StreamID        string
	FailedAtVersion int64
}

// Error implements error.
func (e *PartialError) Error() string {
	return fmt.Sprintf("redrive of stream %s failed at version %d: %v", e.StreamID, e.FailedAtVersion, e.Err)
}

// Unwrap returns the underlying apply failure.
func (e *PartialError) Unwrap() error {
	return e.Err
}

// QueueConfig configures a Queue.
type QueueConfig struct {
	// Logger is an optional logger for observability.
	Logger es.Logger

	// Metrics is an optional metrics sink.
	Metrics *metrics.Metrics
}

// Queue is the sequence-aware dead-letter queue.
//
// The entry store is the durable source of truth; the QuarantineSet is its
// in-memory index for the hot path. Store writes happen inside the caller's
// transaction, set transitions happen after commit (MarkQuarantined /
// redrive), and WarmUp rebuilds the set from the store after a restart.
type Queue struct {
	store       Store
	journal     journal.Journal
	checkpoints Checkpointer
	transactor  es.Transactor
	set         *QuarantineSet
	config      QueueConfig
	now         func() time.Time
}

// NewQueue creates a Queue. The set may be shared with runners; if nil a
// fresh one is created.
func NewQueue(store Store, j journal.Journal, checkpoints Checkpointer, transactor es.Transactor, set *QuarantineSet, config QueueConfig) *Queue {
	if set == nil {
		set = NewQuarantineSet()
	}
	return &Queue{
		store:       store,
		journal:     j,
		checkpoints: checkpoints,
		transactor:  transactor,
		set:         set,
		config:      config,
		now:         time.Now,
	}
}

// Set returns the quarantine set for sharing with runners.
func (q *Queue) Set() *QuarantineSet {
	return q.set
}

// WarmUp rebuilds the quarantine set from the entry store.
// Call once on startup before consuming events.
func (q *Queue) WarmUp(ctx context.Context) error {
	var entries []Entry
	err := q.transactor.WithinTx(ctx, func(tx es.DBTX) error {
		var err error
		entries, err = q.store.List(ctx, tx)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to list quarantine entries: %w", err)
	}

	for _, entry := range entries {
		if q.set.Add(entry.ProjectionName, entry.StreamID) && q.config.Metrics != nil {
			q.config.Metrics.QuarantinedStreams.WithLabelValues(entry.ProjectionName).Inc()
		}
	}
	return nil
}

// IsQuarantined is the O(1) hot-path check consulted on every incoming event.
func (q *Queue) IsQuarantined(projection, streamID string) bool {
	return q.set.Contains(projection, streamID)
}

// Quarantine opens (or truncates) the entry for a stream whose event failed
// to apply. It writes within the caller's transaction so the transition
// commits atomically with the feed progress that skipped the event; call
// MarkQuarantined after the transaction commits.
func (q *Queue) Quarantine(ctx context.Context, tx es.DBTX, projection string, event es.Event, reason string) error {
	entry, ok, err := q.store.Get(ctx, tx, projection, event.StreamID)
	if err != nil {
		return fmt.Errorf("failed to load quarantine entry: %w", err)
	}
	if !ok {
		entry = Entry{
			ProjectionName:    projection,
			StreamID:          event.StreamID,
			FailedAtVersion:   event.Version,
			LastQueuedVersion: event.Version,
			EnqueuedAt:        q.now(),
		}
	}
	if event.Version < entry.FailedAtVersion {
		entry.FailedAtVersion = event.Version
	}
	if event.Version > entry.LastQueuedVersion {
		entry.LastQueuedVersion = event.Version
	}
	entry.Reason = reason

	if err := q.store.Upsert(ctx, tx, entry); err != nil {
		return fmt.Errorf("failed to upsert quarantine entry: %w", err)
	}
	return nil
}

// MarkQuarantined publishes a committed quarantine transition to the set.
func (q *Queue) MarkQuarantined(ctx context.Context, projection, streamID string) {
	if q.set.Add(projection, streamID) {
		if q.config.Metrics != nil {
			q.config.Metrics.QuarantinedStreams.WithLabelValues(projection).Inc()
		}
		if q.config.Logger != nil {
			q.config.Logger.Info(ctx, "stream quarantined",
				"projection", projection, "stream_id", streamID)
		}
	}
}

// Defer appends an arriving event to a quarantined stream's tail without
// attempting to apply it. Ordering for the stream is preserved by deferral,
// not by blocking other streams. Writes within the caller's transaction.
//
// The rebuilt return is true when no open entry existed and one was created
// from this event. That happens when a redrive closed the entry after the
// caller consulted the set: the caller must republish the transition with
// MarkQuarantined after its transaction commits, or the set keeps reporting
// the stream as flowing while the new entry queues this event.
func (q *Queue) Defer(ctx context.Context, tx es.DBTX, projection string, event es.Event) (rebuilt bool, err error) {
	entry, ok, err := q.store.Get(ctx, tx, projection, event.StreamID)
	if err != nil {
		return false, fmt.Errorf("failed to load quarantine entry: %w", err)
	}
	if !ok {
		// Set and store disagree; rebuild the entry from this event so the
		// tail stays contiguous and the next redrive picks it up.
		rebuilt = true
		entry = Entry{
			ProjectionName:    projection,
			StreamID:          event.StreamID,
			FailedAtVersion:   event.Version,
			LastQueuedVersion: event.Version,
			Reason:            "deferred while quarantined",
			EnqueuedAt:        q.now(),
		}
	}
	if event.Version > entry.LastQueuedVersion {
		entry.LastQueuedVersion = event.Version
	}

	if err := q.store.Upsert(ctx, tx, entry); err != nil {
		return false, fmt.Errorf("failed to extend quarantine tail: %w", err)
	}

	if q.config.Metrics != nil {
		q.config.Metrics.EventsDeferred.WithLabelValues(projection).Inc()
	}
	return rebuilt, nil
}

// List returns the operator view of all open entries.
// It is the single source of truth for what needs attention: a quarantined
// stream's read model is stale but never wrong.
func (q *Queue) List(ctx context.Context) ([]Summary, error) {
	var entries []Entry
	err := q.transactor.WithinTx(ctx, func(tx es.DBTX) error {
		var err error
		entries, err = q.store.List(ctx, tx)
		return err
	})
	if err != nil {
		return nil, err
	}

	summaries := make([]Summary, 0, len(entries))
	for _, entry := range entries {
		summaries = append(summaries, Summary{
			ProjectionName:  entry.ProjectionName,
			StreamID:        entry.StreamID,
			Reason:          entry.Reason,
			FailedAtVersion: entry.FailedAtVersion,
			QueuedCount:     entry.QueuedCount(),
		})
	}
	return summaries, nil
}
