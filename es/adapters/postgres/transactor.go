package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/getpup/seqsourcing/es"
)

// Transactor implements es.Transactor with SQL transactions.
type Transactor struct {
	db *sql.DB
}

// NewTransactor creates a Transactor over db.
func NewTransactor(db *sql.DB) *Transactor {
	return &Transactor{db: db}
}

// WithinTx implements es.Transactor.
func (t *Transactor) WithinTx(ctx context.Context, fn func(tx es.DBTX) error) error {
	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		//nolint:errcheck // Rollback error ignored: expected to fail if commit succeeds
		tx.Rollback()
	}()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

var _ es.Transactor = (*Transactor)(nil)
