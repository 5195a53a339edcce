package journal_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getpup/seqsourcing/es"
	"github.com/getpup/seqsourcing/es/adapters/memory"
	"github.com/getpup/seqsourcing/es/journal"
)

func appendN(t *testing.T, j journal.Journal, streamID string, from, count int) {
	t.Helper()

	events := make([]es.Event, count)
	for i := range events {
		events[i] = es.Event{
			EventID:    uuid.New(),
			StreamID:   streamID,
			EventType:  "Happened",
			Payload:    []byte(`{}`),
			OccurredAt: time.Now().UTC(),
		}
	}
	_, err := j.Append(context.Background(), nil, streamID, es.Exact(int64(from)), events)
	require.NoError(t, err)
}

func drain(t *testing.T, c *journal.Cursor) []es.Event {
	t.Helper()

	var out []es.Event
	for {
		e, ok, err := c.Next(context.Background())
		require.NoError(t, err)
		if !ok {
			return out
		}
		out = append(out, e)
	}
}

func TestCursor_VersionOrder(t *testing.T) {
	j := memory.NewJournal()
	appendN(t, j, "s1", 0, 25)

	c := journal.NewCursor(j, nil, "s1", 1, 10)
	events := drain(t, c)

	require.Len(t, events, 25)
	for i, e := range events {
		assert.Equal(t, int64(i+1), e.Version)
	}
}

func TestCursor_FromVersion(t *testing.T) {
	j := memory.NewJournal()
	appendN(t, j, "s1", 0, 10)

	c := journal.NewCursor(j, nil, "s1", 7, 3)
	events := drain(t, c)

	require.Len(t, events, 4)
	assert.Equal(t, int64(7), events[0].Version)
	assert.Equal(t, int64(10), events[3].Version)
}

func TestCursor_EmptyStream(t *testing.T) {
	j := memory.NewJournal()

	c := journal.NewCursor(j, nil, "missing", 1, 10)
	_, ok, err := c.Next(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCursor_FiniteAsOfFirstNext(t *testing.T) {
	j := memory.NewJournal()
	appendN(t, j, "s1", 0, 3)

	c := journal.NewCursor(j, nil, "s1", 1, 2)

	// Head is captured on the first pull.
	_, ok, err := c.Next(context.Background())
	require.NoError(t, err)
	require.True(t, ok)

	// Events appended afterwards are not chased.
	appendN(t, j, "s1", 3, 5)

	rest := drain(t, c)
	require.Len(t, rest, 2)
	assert.Equal(t, int64(3), rest[1].Version)
}

func TestCursor_Restartable(t *testing.T) {
	j := memory.NewJournal()
	appendN(t, j, "s1", 0, 6)

	first := journal.NewCursor(j, nil, "s1", 1, 10)
	e, ok, err := first.Next(context.Background())
	require.NoError(t, err)
	require.True(t, ok)

	// A consumer that stopped mid-stream resumes from where it left off.
	resumed := journal.NewCursor(j, nil, "s1", e.Version+1, 10)
	events := drain(t, resumed)

	require.Len(t, events, 5)
	assert.Equal(t, int64(2), events[0].Version)
}

func TestCursor_DefaultBatchSize(t *testing.T) {
	j := memory.NewJournal()
	appendN(t, j, "s1", 0, 3)

	c := journal.NewCursor(j, nil, "s1", 0, 0)
	events := drain(t, c)
	require.Len(t, events, 3)
	assert.Equal(t, int64(1), events[0].Version)
}
