// Package es provides core event sourcing interfaces and types.
package es

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Event represents an immutable domain event.
// Events are value objects without identity until persisted;
// the journal assigns Version and GlobalPosition on append.
type Event struct {
	// OccurredAt is when the event was created by its producer
	OccurredAt time.Time `json:"occurredAt"`

	// StreamID identifies the stream (aggregate instance) this event belongs to
	StreamID string `json:"streamId"`

	// EventType identifies the type of event
	EventType string `json:"type"`

	// Payload contains the event data.
	// Stored as opaque bytes so any serialization format can be used.
	Payload []byte `json:"payload"`

	// Version is the stream version after this event is applied.
	// Assigned by the journal on append; defines per-stream ordering
	// and anchors optimistic concurrency checks.
	Version int64 `json:"version"`

	// GlobalPosition is assigned by the journal upon persistence.
	// It is a feed cursor only: projections poll from it, but no
	// cross-stream ordering guarantee is attached to it.
	GlobalPosition int64 `json:"-"`

	// CausationID identifies the event/command that caused this event (optional)
	CausationID uuid.NullUUID `json:"causationId"`

	// CorrelationID links related events across streams (optional)
	CorrelationID uuid.NullUUID `json:"correlationId"`

	// EventID is a unique identifier for this event
	EventID uuid.UUID `json:"eventId"`
}

// ErrInvalidEvent indicates an event that cannot be appended as-is.
var ErrInvalidEvent = errors.New("invalid event")

// Validate checks the fields a producer must fill before append.
// Version is journal-assigned and must be zero at this point.
func (e *Event) Validate() error {
	if e.StreamID == "" {
		return fmt.Errorf("%w: stream ID is empty", ErrInvalidEvent)
	}
	if e.EventType == "" {
		return fmt.Errorf("%w: event type is empty", ErrInvalidEvent)
	}
	if e.EventID == uuid.Nil {
		return fmt.Errorf("%w: event ID is nil", ErrInvalidEvent)
	}
	if e.Version != 0 {
		return fmt.Errorf("%w: version must be unset before append, got %d", ErrInvalidEvent, e.Version)
	}
	return nil
}
