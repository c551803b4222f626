package sync_queue

import (
	"context"
	"math"
	"sync/atomic"

	"syncmerge-stream/pkg/commtypes"
	"syncmerge-stream/pkg/wait_strategy"

	"github.com/google/btree"
	"github.com/rs/zerolog/log"
)

const stagingDegree = 16

type stagedEntry[M any] struct {
	entry commtypes.Entry[M]
	seq   uint64
}

// UnorderedSyncQueue accepts entries that may arrive up to businessDelay late.
// Entries wait in a staging area sorted by business time until either enough
// business time or enough system time has passed, then move to the ready
// queue the engine reads from. Only ready entries count against the soft
// capacity.
type UnorderedSyncQueue[M any] struct {
	staging *btree.BTreeG[stagedEntry[M]]
	ready   *spscLinked[commtypes.Entry[M]]
	staged  atomic.Int64

	businessDelay int64
	systemDelay   int64
	softCapacity  int
	wait          wait_strategy.Strategy

	// producer goroutine only
	maxBusinessTs int64
	maxSystemTs   int64
	seq           uint64
	// lower bound of softCapacity-ReadySize; the engine only ever shrinks
	// the ready queue so the estimate can only be pessimistic
	room int
}

var _ = SyncQueue[int](&UnorderedSyncQueue[int]{})

func NewUnorderedSyncQueue[M any](businessDelay int64, systemDelay int64, softCapacity int,
	cmp commtypes.Comparator[M],
) *UnorderedSyncQueue[M] {
	less := func(a, b stagedEntry[M]) bool {
		if a.entry.BusinessTs() != b.entry.BusinessTs() {
			return a.entry.BusinessTs() < b.entry.BusinessTs()
		}
		if cmp != nil {
			if r := cmp(a.entry.Message(), b.entry.Message()); r != 0 {
				return r < 0
			}
		}
		return a.seq < b.seq
	}
	return &UnorderedSyncQueue[M]{
		staging:       btree.NewG(stagingDegree, btree.LessFunc[stagedEntry[M]](less)),
		ready:         newSpscLinked[commtypes.Entry[M]](),
		businessDelay: businessDelay,
		systemDelay:   systemDelay,
		softCapacity:  softCapacity,
		wait:          producerWait(softCapacity),
		room:          softCapacity,
	}
}

func (q *UnorderedSyncQueue[M]) verifyTimestamps(businessTs int64, systemTs int64) {
	if commtypes.Lag(q.maxBusinessTs, businessTs) > uint64(q.businessDelay) {
		log.Warn().Int64("max", q.maxBusinessTs).Int64("now", businessTs).
			Msg("entry arrived too late (business timestamp), breaks sorting contract")
	}
	if systemTs < q.maxSystemTs {
		log.Warn().Int64("max", q.maxSystemTs).Int64("now", systemTs).
			Msg("system timestamp updated in non-increasing order, breaks sorting contract")
	}
}

func (q *UnorderedSyncQueue[M]) Offer(e commtypes.Entry[M]) bool {
	q.verifyTimestamps(e.BusinessTs(), e.SystemTs())
	return q.enqueue(e)
}

func (q *UnorderedSyncQueue[M]) Put(ctx context.Context, e commtypes.Entry[M]) (bool, error) {
	q.verifyTimestamps(e.BusinessTs(), e.SystemTs())
	err := putLoop(ctx, q.wait, func() bool { return q.enqueue(e) })
	return err == nil, err
}

func (q *UnorderedSyncQueue[M]) UpdateSystemTs(ts int64) {
	q.verifyTimestamps(math.MaxInt64, ts)
	if ts > q.maxSystemTs {
		q.maxSystemTs = ts
	}
	q.promote()
}

// enqueue advances the watermarks even when the entry is rejected.
func (q *UnorderedSyncQueue[M]) enqueue(e commtypes.Entry[M]) bool {
	if e.BusinessTs() > q.maxBusinessTs {
		q.maxBusinessTs = e.BusinessTs()
	}
	if e.SystemTs() > q.maxSystemTs {
		q.maxSystemTs = e.SystemTs()
	}
	q.promote()
	if q.room <= 0 {
		q.room = q.softCapacity - q.ready.size()
		if q.room <= 0 {
			return false
		}
	}
	q.seq++
	q.staging.ReplaceOrInsert(stagedEntry[M]{entry: e, seq: q.seq})
	q.staged.Add(1)
	return true
}

func (q *UnorderedSyncQueue[M]) releasable(e commtypes.Entry[M]) bool {
	return commtypes.Lag(q.maxBusinessTs, e.BusinessTs()) >= uint64(q.businessDelay) ||
		commtypes.Lag(q.maxSystemTs, e.SystemTs()) > uint64(q.systemDelay)
}

func (q *UnorderedSyncQueue[M]) promote() {
	for {
		head, ok := q.staging.Min()
		if !ok || !q.releasable(head.entry) {
			return
		}
		q.staging.DeleteMin()
		q.staged.Add(-1)
		q.ready.offer(head.entry)
		q.room--
	}
}

func (q *UnorderedSyncQueue[M]) Poll() (commtypes.Entry[M], bool) { return q.ready.poll() }
func (q *UnorderedSyncQueue[M]) Peek() (commtypes.Entry[M], bool) { return q.ready.peek() }
func (q *UnorderedSyncQueue[M]) ReadySize() int                   { return q.ready.size() }

func (q *UnorderedSyncQueue[M]) Size() int {
	return int(q.staged.Load()) + q.ready.size()
}

func (q *UnorderedSyncQueue[M]) RemainingCapacity() int {
	r := q.softCapacity - q.ready.size()
	if r < 0 {
		return 0
	}
	return r
}
