package projection

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/getpup/seqsourcing/es"
	"github.com/getpup/seqsourcing/es/dlq"
	"github.com/getpup/seqsourcing/es/journal"
	"github.com/getpup/seqsourcing/es/metrics"
)

// ErrProjectionStopped indicates the runner stopped due to an error.
var ErrProjectionStopped = errors.New("projection stopped")

// RunnerConfig configures a Runner.
type RunnerConfig struct {
	// Logger is an optional logger for observability.
	Logger es.Logger

	// Metrics is an optional metrics sink.
	Metrics *metrics.Metrics

	// BatchSize is the number of events to read per feed poll.
	BatchSize int

	// PollInterval is how long to sleep when the feed is caught up.
	PollInterval time.Duration

	// Retry bounds backoff on transient storage failures.
	Retry journal.RetryPolicy
}

// DefaultRunnerConfig returns the default configuration.
func DefaultRunnerConfig() RunnerConfig {
	return RunnerConfig{
		BatchSize:    100,
		PollInterval: 200 * time.Millisecond,
		Retry:        journal.DefaultRetryPolicy(),
	}
}

// Runner consumes the journal feed and applies events to one projection.
//
// For every event it performs:
//   - an O(1) quarantine check: events of a quarantined stream are deferred
//     to the dead-letter tail, never applied, while every other stream keeps
//     flowing at full speed;
//   - a checkpoint skip: versions at or below the stream's checkpoint were
//     already applied (delivery is at-least-once) and are dropped;
//   - the apply, checkpoint and feed-position writes in one transaction, so
//     a crash mid-update can never double-apply on restart.
//
// An apply failure quarantines the event's stream instead of advancing its
// checkpoint; the failure is never retried inline.
type Runner struct {
	journal     journal.Journal
	transactor  es.Transactor
	checkpoints CheckpointStore
	feed        FeedStore
	queue       *dlq.Queue
	config      RunnerConfig
}

// NewRunner creates a Runner. The queue is required: failure routing is part
// of the consume contract, not an optional add-on.
func NewRunner(j journal.Journal, transactor es.Transactor, checkpoints CheckpointStore, feed FeedStore, queue *dlq.Queue, config RunnerConfig) *Runner {
	if config.BatchSize <= 0 {
		config.BatchSize = 100
	}
	if config.PollInterval <= 0 {
		config.PollInterval = 200 * time.Millisecond
	}
	return &Runner{
		journal:     j,
		transactor:  transactor,
		checkpoints: checkpoints,
		feed:        feed,
		queue:       queue,
		config:      config,
	}
}

// Run processes events for proj until the context is cancelled.
// It polls the feed, sleeping PollInterval when caught up.
func (r *Runner) Run(ctx context.Context, proj Projection) error {
	if r.config.Logger != nil {
		r.config.Logger.Info(ctx, "projection runner starting",
			"projection", proj.Name(), "batch_size", r.config.BatchSize)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		consumed, err := r.runBatch(ctx, proj)
		if err != nil {
			if r.config.Logger != nil {
				r.config.Logger.Error(ctx, "projection runner error",
					"projection", proj.Name(), "error", err)
			}
			return fmt.Errorf("%w: %v", ErrProjectionStopped, err)
		}

		if consumed == 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(r.config.PollInterval):
			}
		}
	}
}

// RunToTail processes events until the feed is caught up with the journal
// tail as of the final poll, then returns. This is the catch-up half of a
// blue-green replay: run the new projection to the tail, then cut traffic
// over and keep it live with Run.
func (r *Runner) RunToTail(ctx context.Context, proj Projection) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		consumed, err := r.runBatch(ctx, proj)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrProjectionStopped, err)
		}
		if consumed == 0 {
			return nil
		}
	}
}

// Replay resets proj's checkpoints and feed position to zero and feeds it the
// entire historical journal, returning once it reaches the current tail.
// Intended for brand-new projection versions registered under a new name;
// replaying a live projection's name discards its progress.
func (r *Runner) Replay(ctx context.Context, proj Projection) error {
	err := r.transactor.WithinTx(ctx, func(tx es.DBTX) error {
		if err := r.checkpoints.Reset(ctx, tx, proj.Name()); err != nil {
			return fmt.Errorf("failed to reset checkpoints: %w", err)
		}
		return r.feed.SavePosition(ctx, tx, proj.Name(), 0)
	})
	if err != nil {
		return err
	}

	if r.config.Logger != nil {
		r.config.Logger.Info(ctx, "replay starting", "projection", proj.Name())
	}
	return r.RunToTail(ctx, proj)
}

// applyError marks a projection apply failure so it can be told apart from
// storage failures: the former quarantines the stream, the latter is retried.
type applyError struct {
	err error
}

func (e *applyError) Error() string { return e.err.Error() }
func (e *applyError) Unwrap() error { return e.err }

// runBatch polls one feed batch and consumes it event by event.
// Returns the number of feed events consumed; zero means caught up.
//
// Each event is consumed in its own transaction. A failed SQL statement
// aborts the surrounding transaction on most engines, so the failed apply's
// partial writes must not share a transaction with the quarantine record or
// with other streams' applies.
func (r *Runner) runBatch(ctx context.Context, proj Projection) (int, error) {
	var events []es.Event
	err := r.config.Retry.Do(ctx, func() error {
		return r.transactor.WithinTx(ctx, func(tx es.DBTX) error {
			position, err := r.feed.GetPosition(ctx, tx, proj.Name())
			if err != nil {
				return fmt.Errorf("failed to get feed position: %w", err)
			}
			events, err = r.journal.ReadAll(ctx, tx, position, r.config.BatchSize)
			if err != nil {
				return fmt.Errorf("failed to read feed: %w", err)
			}
			return nil
		})
	})
	if err != nil {
		return 0, err
	}

	// Streams quarantined within this batch: a failed event's successors
	// must be deferred even before the set reflects the transition.
	batchQuarantined := make(map[string]bool)

	for i := range events {
		event := events[i]

		if err := ctx.Err(); err != nil {
			return i, err
		}

		if batchQuarantined[event.StreamID] || r.queue.IsQuarantined(proj.Name(), event.StreamID) {
			if err := r.deferOne(ctx, proj, event); err != nil {
				return i, err
			}
			continue
		}

		applied, err := r.applyOne(ctx, proj, event)
		if err != nil {
			return i, err
		}
		if !applied {
			batchQuarantined[event.StreamID] = true
		}
	}

	return len(events), nil
}

// deferOne appends an event to its quarantined stream's tail and advances the
// feed position past it, atomically.
//
// If a concurrent redrive closed the entry between the quarantine check and
// this transaction, Defer rebuilds it and reports so; the rebuilt entry is
// republished to the set after commit, the same post-commit protocol as
// Quarantine, so the stream's later events keep being deferred in order.
func (r *Runner) deferOne(ctx context.Context, proj Projection, event es.Event) error {
	var rebuilt bool
	err := r.config.Retry.Do(ctx, func() error {
		return r.transactor.WithinTx(ctx, func(tx es.DBTX) error {
			var err error
			rebuilt, err = r.queue.Defer(ctx, tx, proj.Name(), event)
			if err != nil {
				return err
			}
			return r.feed.SavePosition(ctx, tx, proj.Name(), event.GlobalPosition)
		})
	})
	if err != nil {
		return err
	}

	if rebuilt {
		r.queue.MarkQuarantined(ctx, proj.Name(), event.StreamID)
	}
	return nil
}

// applyOne applies a single event in one transaction together with its
// checkpoint and feed-position writes. On apply failure the transaction is
// rolled back and the stream is quarantined in a follow-up transaction.
// Returns false when the stream was quarantined.
func (r *Runner) applyOne(ctx context.Context, proj Projection, event es.Event) (bool, error) {
	err := r.config.Retry.Do(ctx, func() error {
		return r.transactor.WithinTx(ctx, func(tx es.DBTX) error {
			lastApplied, err := r.checkpoints.Get(ctx, tx, proj.Name(), event.StreamID)
			if err != nil {
				return fmt.Errorf("failed to get checkpoint: %w", err)
			}

			if event.Version > lastApplied {
				if applyErr := proj.Apply(ctx, tx, event); applyErr != nil {
					// Never retried inline; quarantine is the only route.
					return journal.Permanent(&applyError{err: applyErr})
				}
				if err := r.checkpoints.Save(ctx, tx, proj.Name(), event.StreamID, event.Version); err != nil {
					return fmt.Errorf("failed to save checkpoint: %w", err)
				}
				if r.config.Metrics != nil {
					r.config.Metrics.EventsApplied.WithLabelValues(proj.Name()).Inc()
				}
			}

			return r.feed.SavePosition(ctx, tx, proj.Name(), event.GlobalPosition)
		})
	})
	if err == nil {
		return true, nil
	}

	var failure *applyError
	if !errors.As(err, &failure) {
		return false, err
	}

	if r.config.Logger != nil {
		r.config.Logger.Error(ctx, "projection apply failed, quarantining stream",
			"projection", proj.Name(),
			"stream_id", event.StreamID,
			"version", event.Version,
			"event_type", event.EventType,
			"error", failure.err)
	}

	err = r.config.Retry.Do(ctx, func() error {
		return r.transactor.WithinTx(ctx, func(tx es.DBTX) error {
			if err := r.queue.Quarantine(ctx, tx, proj.Name(), event, failure.err.Error()); err != nil {
				return err
			}
			return r.feed.SavePosition(ctx, tx, proj.Name(), event.GlobalPosition)
		})
	})
	if err != nil {
		return false, err
	}

	r.queue.MarkQuarantined(ctx, proj.Name(), event.StreamID)
	return false, nil
}
