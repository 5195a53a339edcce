package journal

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryPolicy bounds retries of transient storage failures at the journal
// boundary with exponential backoff. Each attempt must be its own transaction:
// a failed attempt is rolled back in full, so exhausted retries are fatal for
// the in-flight operation but never corrupt committed state.
//
// Version conflicts are never retried here; they belong to the optimistic
// concurrency loop in the aggregate package, which must rehydrate first.
type RetryPolicy struct {
	// InitialInterval is the first backoff delay.
	InitialInterval time.Duration

	// MaxInterval caps the backoff delay.
	MaxInterval time.Duration

	// MaxRetries is the number of retries after the first attempt.
	MaxRetries uint64
}

// DefaultRetryPolicy returns the default storage retry policy.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		InitialInterval: 50 * time.Millisecond,
		MaxInterval:     2 * time.Second,
		MaxRetries:      5,
	}
}

// Do runs op, retrying transient failures per the policy.
// ErrVersionConflict, ErrNoEvents, ErrStreamMismatch and context errors are
// permanent and returned immediately.
func (p RetryPolicy) Do(ctx context.Context, op func() error) error {
	wrapped := func() error {
		err := op()
		if err == nil {
			return nil
		}
		if isPermanent(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.InitialInterval
	b.MaxInterval = p.MaxInterval

	return backoff.Retry(wrapped, backoff.WithContext(backoff.WithMaxRetries(b, p.MaxRetries), ctx))
}

// Permanent marks err as non-retryable for Do, for failures the caller knows
// must not be retried (a projection apply failure, for example).
func Permanent(err error) error {
	return backoff.Permanent(err)
}

func isPermanent(err error) bool {
	return errors.Is(err, ErrVersionConflict) ||
		errors.Is(err, ErrNoEvents) ||
		errors.Is(err, ErrStreamMismatch) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}
