package sync_queue

import (
	"context"
	"math"

	"syncmerge-stream/pkg/commtypes"
)

// capacity is checked on every checkMask+1-th insert only
const checkMask = 127

// UnboundedSyncQueue never rejects. Every 128th insert reports whether the
// ready size is still within the desired capacity; the inserts in between
// report true.
type UnboundedSyncQueue[M any] struct {
	delegate        SyncQueue[M]
	desiredCapacity int
	counter         uint64
}

var _ = SyncQueue[int](&UnboundedSyncQueue[int]{})

func NewUnboundedOrderedSyncQueue[M any](capacity int) *UnboundedSyncQueue[M] {
	return &UnboundedSyncQueue[M]{
		delegate:        newLinkedOrderedSyncQueue[M](),
		desiredCapacity: capacity,
	}
}

func NewUnboundedUnorderedSyncQueue[M any](businessDelay int64, systemDelay int64, capacity int,
	cmp commtypes.Comparator[M],
) *UnboundedSyncQueue[M] {
	return &UnboundedSyncQueue[M]{
		delegate:        NewUnorderedSyncQueue(businessDelay, systemDelay, math.MaxInt, cmp),
		desiredCapacity: capacity,
	}
}

func (q *UnboundedSyncQueue[M]) Offer(e commtypes.Entry[M]) bool {
	if !q.delegate.Offer(e) {
		panic("unbounded delegate rejected an entry")
	}
	return q.checkCapacity()
}

func (q *UnboundedSyncQueue[M]) Put(ctx context.Context, e commtypes.Entry[M]) (bool, error) {
	if _, err := q.delegate.Put(ctx, e); err != nil {
		return false, err
	}
	return q.checkCapacity(), nil
}

func (q *UnboundedSyncQueue[M]) checkCapacity() bool {
	c := q.counter
	q.counter++
	if c&checkMask == 0 {
		return q.delegate.ReadySize() <= q.desiredCapacity
	}
	return true
}

func (q *UnboundedSyncQueue[M]) UpdateSystemTs(ts int64)          { q.delegate.UpdateSystemTs(ts) }
func (q *UnboundedSyncQueue[M]) Poll() (commtypes.Entry[M], bool) { return q.delegate.Poll() }
func (q *UnboundedSyncQueue[M]) Peek() (commtypes.Entry[M], bool) { return q.delegate.Peek() }
func (q *UnboundedSyncQueue[M]) Size() int                        { return q.delegate.Size() }
func (q *UnboundedSyncQueue[M]) ReadySize() int                   { return q.delegate.ReadySize() }

func (q *UnboundedSyncQueue[M]) RemainingCapacity() int {
	r := q.desiredCapacity - q.delegate.ReadySize()
	if r < 0 {
		return 0
	}
	return r
}
