// Package aggregate provides deterministic rehydration and optimistic command execution.
package aggregate

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/getpup/seqsourcing/es"
)

// State is the rehydrated state of one aggregate instance.
// Concrete aggregates supply their own type via Definition.NewState.
type State interface{}

// Handler folds one event into aggregate state.
//
// Handlers must be pure and deterministic: no I/O, no clocks, no randomness.
// Anything else breaks replay equivalence between a snapshot-assisted
// rehydration and a fold from scratch. Purity is not checked at runtime.
type Handler func(state State, event es.Event) (State, error)

var (
	// ErrNoHandlers indicates a definition with an empty dispatch table.
	ErrNoHandlers = errors.New("aggregate definition has no event handlers")

	// ErrNilHandler indicates a dispatch table entry with a nil handler.
	ErrNilHandler = errors.New("aggregate definition has a nil handler")

	// ErrUnknownEventType indicates an event in the journal with no handler.
	// Hitting this during rehydration means the dispatch table is incomplete
	// for events that were already committed.
	ErrUnknownEventType = errors.New("no handler for event type")
)

// Definition describes how one aggregate type folds its events.
//
// Dispatch is an explicit event-type table rather than reflection: the table
// is validated once at construction, and an event type missing from it fails
// loudly instead of being silently skipped.
type Definition struct {
	// NewState returns the zero state, the fold seed at version 0.
	NewState func() State

	// Handlers maps event type to its fold function.
	Handlers map[string]Handler
}

// Validate rejects incomplete definitions.
// Called by NewRehydrator; exposed so aggregate packages can assert their
// tables in tests.
func (d Definition) Validate() error {
	if d.NewState == nil {
		return errors.New("aggregate definition needs a NewState function")
	}
	if len(d.Handlers) == 0 {
		return ErrNoHandlers
	}
	for eventType, h := range d.Handlers {
		if h == nil {
			return fmt.Errorf("%w: %q", ErrNilHandler, eventType)
		}
	}
	return nil
}

// Fold applies one event to state via the dispatch table.
func (d Definition) Fold(state State, event es.Event) (State, error) {
	h, ok := d.Handlers[event.EventType]
	if !ok {
		return nil, fmt.Errorf("%w: %q (stream %s version %d)",
			ErrUnknownEventType, event.EventType, event.StreamID, event.Version)
	}
	next, err := h(state, event)
	if err != nil {
		return nil, fmt.Errorf("handler for %q failed at version %d: %w",
			event.EventType, event.Version, err)
	}
	return next, nil
}

// Codec serializes aggregate state for snapshots.
type Codec interface {
	Marshal(state State) ([]byte, error)
	Unmarshal(data []byte) (State, error)
}

// JSONCodec is the default snapshot codec.
// New must return a pointer to the concrete state type so Unmarshal has a
// target to decode into.
type JSONCodec struct {
	New func() State
}

// Marshal implements Codec.
func (c JSONCodec) Marshal(state State) ([]byte, error) {
	return json.Marshal(state)
}

// Unmarshal implements Codec.
func (c JSONCodec) Unmarshal(data []byte) (State, error) {
	state := c.New()
	if err := json.Unmarshal(data, state); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot state: %w", err)
	}
	return state, nil
}
