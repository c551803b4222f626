package sync_queue

import (
	"context"
	"math"

	"syncmerge-stream/pkg/commtypes"
	"syncmerge-stream/pkg/wait_strategy"

	"github.com/rs/zerolog/log"
)

// OrderedSyncQueue buffers entries from a source that emits in business time
// order. Nothing is staged: every accepted entry is ready.
type OrderedSyncQueue[M any] struct {
	ready    fifo[commtypes.Entry[M]]
	capacity int
	wait     wait_strategy.Strategy
	lastTs   int64
}

var _ = SyncQueue[int](&OrderedSyncQueue[int]{})

func NewOrderedSyncQueue[M any](capacity int) *OrderedSyncQueue[M] {
	return &OrderedSyncQueue[M]{
		ready:    newSpscRing[commtypes.Entry[M]](capacity),
		capacity: capacity,
		wait:     producerWait(capacity),
	}
}

func newLinkedOrderedSyncQueue[M any]() *OrderedSyncQueue[M] {
	return &OrderedSyncQueue[M]{
		ready:    newSpscLinked[commtypes.Entry[M]](),
		capacity: math.MaxInt,
		wait:     wait_strategy.Fixed(0),
	}
}

func (q *OrderedSyncQueue[M]) verifyTimestamp(e commtypes.Entry[M]) {
	ts := e.BusinessTs()
	if ts < q.lastTs {
		log.Warn().Int64("last", q.lastTs).Int64("now", ts).
			Msg("business timestamp went backwards on an ordered source, breaks sorting contract")
	}
	q.lastTs = ts
}

func (q *OrderedSyncQueue[M]) Offer(e commtypes.Entry[M]) bool {
	q.verifyTimestamp(e)
	return q.ready.offer(e)
}

func (q *OrderedSyncQueue[M]) Put(ctx context.Context, e commtypes.Entry[M]) (bool, error) {
	q.verifyTimestamp(e)
	err := putLoop(ctx, q.wait, func() bool { return q.ready.offer(e) })
	return err == nil, err
}

func (q *OrderedSyncQueue[M]) UpdateSystemTs(ts int64) {}

func (q *OrderedSyncQueue[M]) Poll() (commtypes.Entry[M], bool) { return q.ready.poll() }
func (q *OrderedSyncQueue[M]) Peek() (commtypes.Entry[M], bool) { return q.ready.peek() }
func (q *OrderedSyncQueue[M]) Size() int                        { return q.ready.size() }
func (q *OrderedSyncQueue[M]) ReadySize() int                   { return q.ready.size() }

func (q *OrderedSyncQueue[M]) RemainingCapacity() int {
	r := q.capacity - q.ready.size()
	if r < 0 {
		return 0
	}
	return r
}
