package projection_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getpup/seqsourcing/es/projection"
)

func TestOrchestrator_NoProjections(t *testing.T) {
	err := projection.NewOrchestrator().Run(context.Background(), nil)
	require.ErrorIs(t, err, projection.ErrNoProjections)
}

func TestOrchestrator_NilRegistration(t *testing.T) {
	f := newRunnerFixture()

	err := projection.NewOrchestrator().Run(context.Background(), []projection.Registration{
		{Projection: nil, Runner: f.runner},
	})
	require.Error(t, err)

	err = projection.NewOrchestrator().Run(context.Background(), []projection.Registration{
		{Projection: newBalanceProjection("balances"), Runner: nil},
	})
	require.Error(t, err)
}

func TestOrchestrator_RunsProjectionsConcurrently(t *testing.T) {
	f := newRunnerFixture()
	first := newBalanceProjection("balances")
	second := newBalanceProjection("audit")

	f.append(t, "acct-1", "Deposited", 100)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- projection.NewOrchestrator().Run(ctx, []projection.Registration{
			{Projection: first, Runner: f.runner},
			{Projection: second, Runner: f.runner},
		})
	}()

	require.Eventually(t, func() bool {
		return first.balance("acct-1") == 100 && second.balance("acct-1") == 100
	}, time.Second, time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("orchestrator did not stop on cancel")
	}
}
