package memory

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getpup/seqsourcing/es"
	"github.com/getpup/seqsourcing/es/journal"
)

func newEvent(streamID, eventType string) es.Event {
	return es.Event{
		EventID:    uuid.New(),
		StreamID:   streamID,
		EventType:  eventType,
		Payload:    []byte(`{}`),
		OccurredAt: time.Now().UTC(),
	}
}

func TestJournalAppend_VersionMonotonicity(t *testing.T) {
	ctx := context.Background()
	j := NewJournal()

	// Append several batches and verify versions are exactly 1..N.
	var committed int64
	for batch := 0; batch < 5; batch++ {
		events := []es.Event{
			newEvent("s1", "E"),
			newEvent("s1", "E"),
		}
		v, err := j.Append(ctx, nil, "s1", es.Exact(committed), events)
		require.NoError(t, err)
		committed = v
	}
	require.Equal(t, int64(10), committed)

	events, err := j.Read(ctx, nil, "s1", 1, 100)
	require.NoError(t, err)
	require.Len(t, events, 10)
	for i, e := range events {
		assert.Equal(t, int64(i+1), e.Version, "no gaps or repeats")
	}
}

func TestJournalAppend_OptimisticIsolation(t *testing.T) {
	ctx := context.Background()
	j := NewJournal()

	// Two appends with the same expected version: exactly one wins.
	_, err := j.Append(ctx, nil, "s1", es.Exact(0), []es.Event{newEvent("s1", "E")})
	require.NoError(t, err)

	_, err = j.Append(ctx, nil, "s1", es.Exact(0), []es.Event{newEvent("s1", "E")})
	require.ErrorIs(t, err, journal.ErrVersionConflict)

	current, err := j.CurrentVersion(ctx, nil, "s1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), current)
}

func TestJournalAppend_NoStream(t *testing.T) {
	ctx := context.Background()
	j := NewJournal()

	_, err := j.Append(ctx, nil, "s1", es.NoStream(), []es.Event{newEvent("s1", "E")})
	require.NoError(t, err)

	_, err = j.Append(ctx, nil, "s1", es.NoStream(), []es.Event{newEvent("s1", "E")})
	require.ErrorIs(t, err, journal.ErrVersionConflict)
}

func TestJournalAppend_Any(t *testing.T) {
	ctx := context.Background()
	j := NewJournal()

	for i := 0; i < 3; i++ {
		_, err := j.Append(ctx, nil, "s1", es.Any(), []es.Event{newEvent("s1", "E")})
		require.NoError(t, err)
	}

	current, err := j.CurrentVersion(ctx, nil, "s1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), current)
}

func TestJournalAppend_Validation(t *testing.T) {
	ctx := context.Background()
	j := NewJournal()

	_, err := j.Append(ctx, nil, "s1", es.Exact(0), nil)
	require.ErrorIs(t, err, journal.ErrNoEvents)

	_, err = j.Append(ctx, nil, "s1", es.Exact(0), []es.Event{newEvent("other", "E")})
	require.ErrorIs(t, err, journal.ErrStreamMismatch)
}

func TestJournalAppend_AllOrNothing(t *testing.T) {
	ctx := context.Background()
	j := NewJournal()

	// A batch with an invalid member commits nothing.
	bad := newEvent("s1", "E")
	bad.EventID = uuid.Nil
	_, err := j.Append(ctx, nil, "s1", es.Exact(0), []es.Event{newEvent("s1", "E"), bad})
	require.Error(t, err)

	current, err := j.CurrentVersion(ctx, nil, "s1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), current)
}

func TestJournalRead_FromVersion(t *testing.T) {
	ctx := context.Background()
	j := NewJournal()

	var events []es.Event
	for i := 0; i < 5; i++ {
		events = append(events, newEvent("s1", fmt.Sprintf("E%d", i+1)))
	}
	_, err := j.Append(ctx, nil, "s1", es.Exact(0), events)
	require.NoError(t, err)

	got, err := j.Read(ctx, nil, "s1", 3, 100)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, int64(3), got[0].Version)
	assert.Equal(t, "E3", got[0].EventType)

	got, err = j.Read(ctx, nil, "s1", 2, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, int64(2), got[0].Version)
	assert.Equal(t, int64(3), got[1].Version)

	got, err = j.Read(ctx, nil, "s1", 6, 100)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestJournalReadAll_FeedOrder(t *testing.T) {
	ctx := context.Background()
	j := NewJournal()

	_, err := j.Append(ctx, nil, "a", es.Exact(0), []es.Event{newEvent("a", "E")})
	require.NoError(t, err)
	_, err = j.Append(ctx, nil, "b", es.Exact(0), []es.Event{newEvent("b", "E")})
	require.NoError(t, err)
	_, err = j.Append(ctx, nil, "a", es.Exact(1), []es.Event{newEvent("a", "E")})
	require.NoError(t, err)

	feed, err := j.ReadAll(ctx, nil, 0, 100)
	require.NoError(t, err)
	require.Len(t, feed, 3)

	// Per-stream version order is preserved within the feed.
	assert.Equal(t, int64(1), feed[0].GlobalPosition)
	assert.Equal(t, "a", feed[0].StreamID)
	assert.Equal(t, int64(1), feed[0].Version)
	assert.Equal(t, "a", feed[2].StreamID)
	assert.Equal(t, int64(2), feed[2].Version)

	// Resume past a position.
	feed, err = j.ReadAll(ctx, nil, 2, 100)
	require.NoError(t, err)
	require.Len(t, feed, 1)
	assert.Equal(t, int64(3), feed[0].GlobalPosition)
}
