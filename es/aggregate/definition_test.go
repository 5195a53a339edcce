package aggregate

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getpup/seqsourcing/es"
)

type counter struct {
	Total int64 `json:"total"`
}

func counterDefinition() Definition {
	return Definition{
		NewState: func() State { return &counter{} },
		Handlers: map[string]Handler{
			"Incremented": func(state State, event es.Event) (State, error) {
				c := state.(*counter)
				c.Total++
				return c, nil
			},
			"Reset": func(state State, event es.Event) (State, error) {
				return &counter{}, nil
			},
		},
	}
}

func TestDefinitionValidate(t *testing.T) {
	require.NoError(t, counterDefinition().Validate())
}

func TestDefinitionValidate_Invalid(t *testing.T) {
	def := counterDefinition()
	def.NewState = nil
	require.Error(t, def.Validate())

	def = counterDefinition()
	def.Handlers = nil
	require.ErrorIs(t, def.Validate(), ErrNoHandlers)

	def = counterDefinition()
	def.Handlers["Broken"] = nil
	require.ErrorIs(t, def.Validate(), ErrNilHandler)
}

func TestDefinitionFold(t *testing.T) {
	def := counterDefinition()
	state := def.NewState()

	var err error
	for i := 0; i < 3; i++ {
		state, err = def.Fold(state, es.Event{EventType: "Incremented", Version: int64(i + 1)})
		require.NoError(t, err)
	}
	assert.Equal(t, int64(3), state.(*counter).Total)

	state, err = def.Fold(state, es.Event{EventType: "Reset", Version: 4})
	require.NoError(t, err)
	assert.Equal(t, int64(0), state.(*counter).Total)
}

func TestDefinitionFold_UnknownEventType(t *testing.T) {
	def := counterDefinition()

	_, err := def.Fold(def.NewState(), es.Event{EventType: "Vanished", StreamID: "s1", Version: 9})
	require.ErrorIs(t, err, ErrUnknownEventType)
	assert.Contains(t, err.Error(), "Vanished")
	assert.Contains(t, err.Error(), "version 9")
}

func TestDefinitionFold_HandlerError(t *testing.T) {
	errBoom := errors.New("boom")
	def := Definition{
		NewState: func() State { return &counter{} },
		Handlers: map[string]Handler{
			"Bad": func(state State, event es.Event) (State, error) {
				return nil, errBoom
			},
		},
	}

	_, err := def.Fold(def.NewState(), es.Event{EventType: "Bad", Version: 1})
	require.ErrorIs(t, err, errBoom)
}

func TestJSONCodecRoundTrip(t *testing.T) {
	codec := JSONCodec{New: func() State { return &counter{} }}

	data, err := codec.Marshal(&counter{Total: 12})
	require.NoError(t, err)

	state, err := codec.Unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, int64(12), state.(*counter).Total)
}

func TestJSONCodecUnmarshal_Garbage(t *testing.T) {
	codec := JSONCodec{New: func() State { return &counter{} }}

	_, err := codec.Unmarshal([]byte("not json"))
	require.Error(t, err)
}
