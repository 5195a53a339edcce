package postgres

import (
	"errors"
	"strings"

	"github.com/lib/pq"
)

// IsUniqueViolation checks if an error is a PostgreSQL unique constraint violation.
// Exported for testing.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505" // unique_violation
	}

	// Fallback for drivers that flatten the error.
	msg := err.Error()
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "unique constraint")
}
