package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/getpup/seqsourcing/es"
)

// nullUUIDString converts a NullUUID to a driver-friendly value.
func nullUUIDString(id uuid.NullUUID) interface{} {
	if !id.Valid {
		return nil
	}
	return id.UUID.String()
}

func parseNullUUID(s sql.NullString) (uuid.NullUUID, error) {
	if !s.Valid || s.String == "" {
		return uuid.NullUUID{}, nil
	}
	id, err := uuid.Parse(s.String)
	if err != nil {
		return uuid.NullUUID{}, err
	}
	return uuid.NullUUID{UUID: id, Valid: true}, nil
}

func parseTimestamp(s string) (time.Time, error) {
	t, err := time.Parse(sqliteDateTimeFormat, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse timestamp %q: %w", s, err)
	}
	return t.UTC(), nil
}

func scanEvents(rows *sql.Rows) ([]es.Event, error) {
	var events []es.Event
	for rows.Next() {
		var e es.Event
		var eventID, occurredAt string
		var correlationID, causationID sql.NullString

		err := rows.Scan(
			&e.GlobalPosition,
			&e.StreamID,
			&e.Version,
			&eventID,
			&e.EventType,
			&e.Payload,
			&correlationID,
			&causationID,
			&occurredAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}

		if e.EventID, err = uuid.Parse(eventID); err != nil {
			return nil, fmt.Errorf("failed to parse event ID: %w", err)
		}
		if e.CorrelationID, err = parseNullUUID(correlationID); err != nil {
			return nil, fmt.Errorf("failed to parse correlation ID: %w", err)
		}
		if e.CausationID, err = parseNullUUID(causationID); err != nil {
			return nil, fmt.Errorf("failed to parse causation ID: %w", err)
		}
		if e.OccurredAt, err = parseTimestamp(occurredAt); err != nil {
			return nil, err
		}

		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return events, nil
}
