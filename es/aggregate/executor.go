package aggregate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/getpup/seqsourcing/es"
	"github.com/getpup/seqsourcing/es/journal"
	"github.com/getpup/seqsourcing/es/metrics"
)

// ErrConcurrencyExhausted indicates the optimistic retry budget ran out.
// Under heavy single-stream contention, see StreamGate.
var ErrConcurrencyExhausted = errors.New("optimistic concurrency retries exhausted")

// Decide computes the events a command produces from current state.
// It must validate the command against state and return the new events, or an
// error to reject the command. Like fold handlers, Decide must not perform I/O.
type Decide func(state State, version int64) ([]es.Event, error)

// ExecutorConfig configures an Executor.
type ExecutorConfig struct {
	// Logger is an optional logger for observability.
	Logger es.Logger

	// Metrics is an optional metrics sink. If nil, nothing is recorded.
	Metrics *metrics.Metrics

	// MaxRetries is how many times a conflicting command is re-run
	// (rehydrate, decide, append) before ErrConcurrencyExhausted.
	MaxRetries int

	// Retry bounds backoff on transient storage failures per attempt.
	Retry journal.RetryPolicy

	// Gate optionally serializes command execution per stream in-process,
	// the hot-stream mitigation for retry storms. Nil disables gating.
	Gate *StreamGate
}

// DefaultExecutorConfig returns the default configuration.
func DefaultExecutorConfig() ExecutorConfig {
	return ExecutorConfig{
		MaxRetries: 3,
		Retry:      journal.DefaultRetryPolicy(),
	}
}

// Executor runs commands against aggregates with optimistic concurrency.
//
// It is the single mechanism enforcing one logical writer at a time per
// stream, without holding a lock: the expected version captured at
// command-start is validated by the journal on append, and a conflict means
// another writer got there first, so the command is re-run against fresh
// state. Correctness over liveness under contention.
type Executor struct {
	journal    journal.Journal
	rehydrator *Rehydrator
	transactor es.Transactor
	config     ExecutorConfig
}

// NewExecutor creates an Executor.
func NewExecutor(j journal.Journal, r *Rehydrator, transactor es.Transactor, config ExecutorConfig) *Executor {
	if config.MaxRetries <= 0 {
		config.MaxRetries = 3
	}
	return &Executor{
		journal:    j,
		rehydrator: r,
		transactor: transactor,
		config:     config,
	}
}

// Execute runs one command against the stream and returns the committed version.
//
// Each attempt rehydrates, decides, and appends with Exact(version) in a
// single transaction. On ErrVersionConflict the whole attempt is re-run
// against fresh state, up to MaxRetries times, then ErrConcurrencyExhausted
// is returned with the conflict wrapped.
func (e *Executor) Execute(ctx context.Context, streamID string, decide Decide) (int64, error) {
	if e.config.Gate != nil {
		return e.config.Gate.Do(ctx, streamID, func() (int64, error) {
			return e.execute(ctx, streamID, decide)
		})
	}
	return e.execute(ctx, streamID, decide)
}

func (e *Executor) execute(ctx context.Context, streamID string, decide Decide) (int64, error) {
	var lastConflict error

	for attempt := 0; attempt <= e.config.MaxRetries; attempt++ {
		committed, err := e.attempt(ctx, streamID, decide)
		if err == nil {
			return committed, nil
		}
		if !errors.Is(err, journal.ErrVersionConflict) {
			return 0, err
		}

		lastConflict = err
		if e.config.Metrics != nil {
			e.config.Metrics.VersionConflicts.Inc()
		}
		if e.config.Logger != nil {
			e.config.Logger.Debug(ctx, "append conflicted, re-running command",
				"stream_id", streamID, "attempt", attempt+1)
		}
	}

	return 0, fmt.Errorf("%w for stream %s: %w", ErrConcurrencyExhausted, streamID, lastConflict)
}

// attempt runs one rehydrate-decide-append cycle in its own transaction.
// Transient storage failures are retried with backoff around the whole
// transaction, so every retry starts from a clean slate.
func (e *Executor) attempt(ctx context.Context, streamID string, decide Decide) (int64, error) {
	var committed int64

	err := e.config.Retry.Do(ctx, func() error {
		return e.transactor.WithinTx(ctx, func(tx es.DBTX) error {
			state, version, err := e.rehydrator.Rehydrate(ctx, tx, streamID)
			if err != nil {
				return err
			}

			events, err := decide(state, version)
			if err != nil {
				return err
			}
			if len(events) == 0 {
				committed = version
				return nil
			}
			stampEvents(streamID, events)

			committed, err = e.journal.Append(ctx, tx, streamID, es.Exact(version), events)
			if err != nil {
				return err
			}
			if e.config.Metrics != nil {
				e.config.Metrics.EventsAppended.Add(float64(len(events)))
			}
			return nil
		})
	})
	if err != nil {
		return 0, err
	}
	return committed, nil
}

// stampEvents fills journal-independent metadata a Decide is allowed to omit.
func stampEvents(streamID string, events []es.Event) {
	now := time.Now().UTC()
	for i := range events {
		e := &events[i]
		if e.StreamID == "" {
			e.StreamID = streamID
		}
		if e.EventID == uuid.Nil {
			e.EventID = uuid.New()
		}
		if e.OccurredAt.IsZero() {
			e.OccurredAt = now
		}
	}
}
