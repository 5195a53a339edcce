package aggregate_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getpup/seqsourcing/es"
	"github.com/getpup/seqsourcing/es/adapters/memory"
	"github.com/getpup/seqsourcing/es/aggregate"
	"github.com/getpup/seqsourcing/es/journal"
)

func fastExecutorConfig() aggregate.ExecutorConfig {
	config := aggregate.DefaultExecutorConfig()
	config.Retry = journal.RetryPolicy{
		InitialInterval: time.Millisecond,
		MaxInterval:     2 * time.Millisecond,
		MaxRetries:      2,
	}
	return config
}

func newExecutor(t *testing.T, j journal.Journal, config aggregate.ExecutorConfig) *aggregate.Executor {
	t.Helper()

	r, err := aggregate.NewRehydrator(j, nil, accountDefinition(), nil, aggregate.DefaultRehydratorConfig())
	require.NoError(t, err)
	return aggregate.NewExecutor(j, r, memory.NewTransactor(), config)
}

func TestExecute_AppendsDecidedEvents(t *testing.T) {
	ctx := context.Background()
	j := memory.NewJournal()
	executor := newExecutor(t, j, fastExecutorConfig())

	version, err := executor.Execute(ctx, "acct-42", func(state aggregate.State, version int64) ([]es.Event, error) {
		require.Equal(t, int64(0), version)
		return []es.Event{depositEvent("acct-42", 100)}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), version)

	version, err = executor.Execute(ctx, "acct-42", func(state aggregate.State, version int64) ([]es.Event, error) {
		require.Equal(t, int64(100), state.(*account).Balance)
		return []es.Event{withdrawEvent("acct-42", 40)}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), version)
}

func TestExecute_StampsEventMetadata(t *testing.T) {
	ctx := context.Background()
	j := memory.NewJournal()
	executor := newExecutor(t, j, fastExecutorConfig())

	// A decide that returns a bare event: stream ID, event ID and timestamp
	// are filled in before append.
	_, err := executor.Execute(ctx, "acct-42", func(state aggregate.State, version int64) ([]es.Event, error) {
		return []es.Event{{EventType: "Deposited", Payload: []byte(`{"amount":1}`)}}, nil
	})
	require.NoError(t, err)

	events, err := j.Read(ctx, nil, "acct-42", 1, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "acct-42", events[0].StreamID)
	assert.NotZero(t, events[0].EventID)
	assert.False(t, events[0].OccurredAt.IsZero())
}

func TestExecute_NoEventsIsNoOp(t *testing.T) {
	ctx := context.Background()
	j := memory.NewJournal()
	executor := newExecutor(t, j, fastExecutorConfig())

	version, err := executor.Execute(ctx, "acct-42", func(state aggregate.State, version int64) ([]es.Event, error) {
		return nil, nil
	})
	require.NoError(t, err)
	assert.Equal(t, int64(0), version)

	current, err := j.CurrentVersion(ctx, nil, "acct-42")
	require.NoError(t, err)
	assert.Equal(t, int64(0), current)
}

func TestExecute_DecideErrorRejectsCommand(t *testing.T) {
	ctx := context.Background()
	j := memory.NewJournal()
	executor := newExecutor(t, j, fastExecutorConfig())

	errInsufficient := errors.New("insufficient funds")
	_, err := executor.Execute(ctx, "acct-42", func(state aggregate.State, version int64) ([]es.Event, error) {
		return nil, errInsufficient
	})
	require.ErrorIs(t, err, errInsufficient)

	current, err := j.CurrentVersion(ctx, nil, "acct-42")
	require.NoError(t, err)
	assert.Equal(t, int64(0), current)
}

// conflictingJournal forces ErrVersionConflict on the first n appends.
type conflictingJournal struct {
	journal.Journal

	mu        sync.Mutex
	conflicts int
	attempts  int
}

func (c *conflictingJournal) Append(ctx context.Context, tx es.DBTX, streamID string, expected es.ExpectedVersion, events []es.Event) (int64, error) {
	c.mu.Lock()
	c.attempts++
	fail := c.attempts <= c.conflicts
	c.mu.Unlock()

	if fail {
		return 0, journal.ErrVersionConflict
	}
	return c.Journal.Append(ctx, tx, streamID, expected, events)
}

func TestExecute_ConflictRerunsCommand(t *testing.T) {
	ctx := context.Background()
	j := &conflictingJournal{Journal: memory.NewJournal(), conflicts: 2}
	executor := newExecutor(t, j, fastExecutorConfig())

	decides := 0
	version, err := executor.Execute(ctx, "acct-42", func(state aggregate.State, version int64) ([]es.Event, error) {
		decides++
		return []es.Event{depositEvent("acct-42", 10)}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), version)
	assert.Equal(t, 3, decides, "each conflict re-runs rehydrate and decide")
}

func TestExecute_ConcurrencyExhausted(t *testing.T) {
	ctx := context.Background()
	j := &conflictingJournal{Journal: memory.NewJournal(), conflicts: 1 << 30}

	config := fastExecutorConfig()
	config.MaxRetries = 2
	executor := newExecutor(t, j, config)

	_, err := executor.Execute(ctx, "acct-42", func(state aggregate.State, version int64) ([]es.Event, error) {
		return []es.Event{depositEvent("acct-42", 10)}, nil
	})
	require.ErrorIs(t, err, aggregate.ErrConcurrencyExhausted)
	require.ErrorIs(t, err, journal.ErrVersionConflict)
	assert.Contains(t, err.Error(), "acct-42")
}

func TestExecute_ConcurrentCommandsSerialize(t *testing.T) {
	ctx := context.Background()
	j := memory.NewJournal()

	config := fastExecutorConfig()
	config.MaxRetries = 50
	config.Gate = aggregate.NewStreamGate()
	executor := newExecutor(t, j, config)

	const writers = 8
	var wg sync.WaitGroup
	errs := make([]error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = executor.Execute(ctx, "acct-42", func(state aggregate.State, version int64) ([]es.Event, error) {
				return []es.Event{depositEvent("acct-42", 1)}, nil
			})
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		require.NoError(t, err, "writer %d", i)
	}

	current, err := j.CurrentVersion(ctx, nil, "acct-42")
	require.NoError(t, err)
	assert.Equal(t, int64(writers), current)
}
