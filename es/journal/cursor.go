package journal

import (
	"context"

	"github.com/getpup/seqsourcing/es"
)

// DefaultCursorBatchSize is the read batch size used when none is configured.
const DefaultCursorBatchSize = 100

// Cursor is a lazy, restartable, pull-based iterator over one stream.
//
// The sequence is finite as of the first Next call: the cursor captures the
// stream's head version then and does not chase events appended concurrently.
// Rehydration and redrive share this traversal so replay has exactly one
// deterministic code path.
type Cursor struct {
	journal   Journal
	tx        es.DBTX
	streamID  string
	next      int64
	head      int64
	headSet   bool
	batch     []es.Event
	batchIdx  int
	batchSize int
}

// NewCursor creates a cursor over streamID starting at fromVersion (inclusive).
// batchSize <= 0 selects DefaultCursorBatchSize.
func NewCursor(j Journal, tx es.DBTX, streamID string, fromVersion int64, batchSize int) *Cursor {
	if batchSize <= 0 {
		batchSize = DefaultCursorBatchSize
	}
	if fromVersion < 1 {
		fromVersion = 1
	}
	return &Cursor{
		journal:   j,
		tx:        tx,
		streamID:  streamID,
		next:      fromVersion,
		batchSize: batchSize,
	}
}

// Next returns the next event in version order.
// The second return value is false when the sequence is exhausted.
func (c *Cursor) Next(ctx context.Context) (es.Event, bool, error) {
	if !c.headSet {
		head, err := c.journal.CurrentVersion(ctx, c.tx, c.streamID)
		if err != nil {
			return es.Event{}, false, err
		}
		c.head = head
		c.headSet = true
	}

	if c.next > c.head {
		return es.Event{}, false, nil
	}

	if c.batchIdx >= len(c.batch) {
		limit := c.batchSize
		if remaining := c.head - c.next + 1; remaining < int64(limit) {
			limit = int(remaining)
		}
		batch, err := c.journal.Read(ctx, c.tx, c.streamID, c.next, limit)
		if err != nil {
			return es.Event{}, false, err
		}
		if len(batch) == 0 {
			// Head was captured but the events are gone; treat as exhausted.
			return es.Event{}, false, nil
		}
		c.batch = batch
		c.batchIdx = 0
	}

	e := c.batch[c.batchIdx]
	c.batchIdx++
	c.next = e.Version + 1
	return e, true, nil
}
