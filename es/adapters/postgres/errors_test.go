package postgres

import (
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
)

func TestIsUniqueViolation(t *testing.T) {
	assert.False(t, IsUniqueViolation(nil))
	assert.False(t, IsUniqueViolation(errors.New("connection refused")))

	assert.True(t, IsUniqueViolation(&pq.Error{Code: "23505"}))
	assert.False(t, IsUniqueViolation(&pq.Error{Code: "23503"}), "foreign key violation is not a conflict")

	wrapped := fmt.Errorf("append failed: %w", &pq.Error{Code: "23505"})
	assert.True(t, IsUniqueViolation(wrapped))

	// Flattened driver errors are matched by message.
	assert.True(t, IsUniqueViolation(errors.New(`pq: duplicate key value violates unique constraint "events_stream_id_version_key"`)))
}
