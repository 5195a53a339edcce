// Package memory provides in-memory adapters for tests, examples, and
// single-process embedding. Stores are safe for concurrent use.
package memory

import (
	"context"
	"sync"

	"github.com/getpup/seqsourcing/es"
)

// Transactor serializes units of work with a mutex.
//
// It provides the mutual exclusion of a transaction but not rollback: an
// in-memory write cannot be undone by returning an error from fn. The
// stores themselves keep their invariants (the journal validates before
// mutating), so this only matters for callers that interleave their own
// writes with failures inside one unit of work.
type Transactor struct {
	mu sync.Mutex
}

// NewTransactor creates a Transactor.
func NewTransactor() *Transactor {
	return &Transactor{}
}

// WithinTx implements es.Transactor.
func (t *Transactor) WithinTx(ctx context.Context, fn func(tx es.DBTX) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return fn(nil)
}

var _ es.Transactor = (*Transactor)(nil)
