package es

import (
	"context"
	"database/sql"
)

// DBTX is a minimal interface for database operations.
// It is implemented by both *sql.DB and *sql.Tx, allowing
// the library to be transaction-agnostic.
//
// This design gives callers full control over transaction boundaries
// while keeping the library focused on event sourcing concerns.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Ensure standard library types implement DBTX
var (
	_ DBTX = (*sql.DB)(nil)
	_ DBTX = (*sql.Tx)(nil)
)

// Transactor runs a function within a single atomic unit of work.
// SQL adapters implement it with BEGIN/COMMIT/ROLLBACK; the in-memory
// adapter serializes callers instead. Components that must pair several
// writes atomically (projection apply + checkpoint, redrive steps) take
// a Transactor rather than opening transactions themselves.
type Transactor interface {
	// WithinTx calls fn with a transaction-scoped DBTX.
	// If fn returns an error the work is rolled back and the error returned.
	WithinTx(ctx context.Context, fn func(tx DBTX) error) error
}
