package projection

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrNoProjections indicates that no projections were provided to run.
	ErrNoProjections = errors.New("no projections provided")
)

// Registration pairs a projection with the runner that feeds it.
// Each projection keeps its own runner so batch sizes, poll intervals and
// quarantine queues can differ per read model.
type Registration struct {
	Projection Projection
	Runner     *Runner
}

// Orchestrator runs multiple projections concurrently.
//
// Each projection runs in its own goroutine with its runner; streams progress
// independently, so one projection's quarantined streams never slow another
// projection down. If any projection fails, all others are cancelled and the
// error is returned (fail-fast).
type Orchestrator struct{}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator() *Orchestrator {
	return &Orchestrator{}
}

// Run runs all registrations until the context is cancelled or one fails.
func (o *Orchestrator) Run(ctx context.Context, registrations []Registration) error {
	if len(registrations) == 0 {
		return ErrNoProjections
	}

	for i, reg := range registrations {
		if reg.Projection == nil {
			return fmt.Errorf("projection at index %d is nil", i)
		}
		if reg.Runner == nil {
			return fmt.Errorf("runner at index %d is nil", i)
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	errChan := make(chan error, len(registrations))

	for _, reg := range registrations {
		wg.Add(1)
		go func(reg Registration) {
			defer wg.Done()

			err := reg.Runner.Run(ctx, reg.Projection)
			if err != nil && !errors.Is(err, context.Canceled) {
				errChan <- fmt.Errorf("projection %q failed: %w", reg.Projection.Name(), err)
			}
		}(reg)
	}

	go func() {
		wg.Wait()
		close(errChan)
	}()

	select {
	case err := <-errChan:
		if err != nil {
			cancel()
			return err
		}
		return ctx.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}
