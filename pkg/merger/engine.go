package merger

import (
	"context"
	"sync/atomic"

	"syncmerge-stream/pkg/common_errors"
	"syncmerge-stream/pkg/commtypes"
	"syncmerge-stream/pkg/debug"
	"syncmerge-stream/pkg/stats"
	"syncmerge-stream/pkg/sync_queue"
	"syncmerge-stream/pkg/utils/syncutils"
	"syncmerge-stream/pkg/wait_strategy"

	"github.com/google/btree"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/zhangyunhao116/skipmap"
	"golang.org/x/xerrors"
)

const headsDegree = 8

type pollResult uint8

const (
	nothingReady pollResult = iota
	released
	outOfSync
)

// Engine merges the registered sources into a single stream ordered by
// business time. Take, Poll and Stream form the consumer side and must not
// be used from more than one goroutine at a time; registration is safe from
// any goroutine.
type Engine[M any] struct {
	systemDelay int64
	cmp         commtypes.Comparator[M]
	entryCmp    func(a, b commtypes.Entry[M]) int
	wait        wait_strategy.Strategy

	pending   *mpscQueue[*FlowConsumer[M]]
	nextToken atomic.Uint64
	directory *skipmap.Int64Map[*FlowConsumer[M]]

	dirtyQueues   syncutils.AtomicBool
	dirtySystemTs syncutils.AtomicBool
	complete      syncutils.AtomicBool
	busy          syncutils.AtomicBool

	// consumer goroutine only
	active   []*FlowConsumer[M]
	byToken  map[uint64]*FlowConsumer[M]
	heads    *btree.BTreeG[commtypes.Entry[M]]
	systemTs int64
	lastTs   int64
	delay    DelayStats
}

// DelayStats counts how entries left the engine: with every source holding
// a head, or pushed out by system time progress.
type DelayStats struct {
	Released             stats.Counter
	ReleasedBySystemTime stats.Counter
}

type EngineOption[M any] func(e *Engine[M])

// WithWaitStrategy replaces the backoff Take uses while nothing is ready.
func WithWaitStrategy[M any](w wait_strategy.Strategy) EngineOption[M] {
	return func(e *Engine[M]) {
		e.wait = w
	}
}

// NewEngine creates an engine. systemDelay is how far the slowest source's
// system time must have passed an entry before that entry can be released
// without every source having a head; 0 disables such releases. cmp orders
// entries sharing a business timestamp and may be nil.
func NewEngine[M any](systemDelay int64, cmp commtypes.Comparator[M], opts ...EngineOption[M]) (*Engine[M], error) {
	if systemDelay < 0 {
		return nil, xerrors.Errorf("systemDelay must be non-negative, got %d: %w",
			systemDelay, common_errors.ErrInvalidArgument)
	}
	entryCmp := commtypes.EntryComparator(cmp)
	less := func(a, b commtypes.Entry[M]) bool {
		if r := entryCmp(a, b); r != 0 {
			return r < 0
		}
		return a.SourceToken() < b.SourceToken()
	}
	e := &Engine[M]{
		systemDelay: systemDelay,
		cmp:         cmp,
		entryCmp:    entryCmp,
		wait:        wait_strategy.NewBackOff(),
		pending:     newMpscQueue[*FlowConsumer[M]](),
		directory:   skipmap.NewInt64[*FlowConsumer[M]](),
		byToken:     make(map[uint64]*FlowConsumer[M]),
		heads:       btree.NewG(headsDegree, btree.LessFunc[commtypes.Entry[M]](less)),
		delay: DelayStats{
			Released:             stats.NewCounter("released"),
			ReleasedBySystemTime: stats.NewCounter("released_by_system_time"),
		},
	}
	e.dirtyQueues.Set(true)
	e.dirtySystemTs.Set(true)
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

func strategyCapacityType(strategy commtypes.BackPressureStrategy) sync_queue.CapacityType {
	if strategy == commtypes.UNBOUNDED {
		return sync_queue.UNBOUNDED
	}
	return sync_queue.BOUNDED
}

// RegisterOrdered adds a source whose business timestamps never decrease.
func (e *Engine[M]) RegisterOrdered(capacity int, strategy commtypes.BackPressureStrategy, name string) (*FlowConsumer[M], error) {
	if !strategy.Valid() {
		return nil, xerrors.Errorf("strategy %v: %w", strategy, common_errors.ErrInvalidArgument)
	}
	q, err := sync_queue.CreateOrdered[M](capacity, strategyCapacityType(strategy))
	if err != nil {
		return nil, err
	}
	return e.register(q, true, strategy, name), nil
}

// RegisterUnordered adds a source whose entries may arrive up to
// businessDelay late. Ties are ordered by the engine comparator first and cmp
// second.
func (e *Engine[M]) RegisterUnordered(businessDelay int64, softCapacity int,
	strategy commtypes.BackPressureStrategy, name string, cmp commtypes.Comparator[M],
) (*FlowConsumer[M], error) {
	if !strategy.Valid() {
		return nil, xerrors.Errorf("strategy %v: %w", strategy, common_errors.ErrInvalidArgument)
	}
	q, err := sync_queue.CreateUnordered(businessDelay, e.systemDelay, softCapacity,
		strategyCapacityType(strategy), e.cmp.Then(cmp))
	if err != nil {
		return nil, err
	}
	return e.register(q, false, strategy, name), nil
}

// RegisterDataset adds a finished, business time ordered data set as a
// source. The source is complete as soon as this returns.
func (e *Engine[M]) RegisterDataset(entries []commtypes.Entry[M], name string) error {
	capacity := len(entries)
	if capacity == 0 {
		capacity = 1
	}
	c, err := e.RegisterOrdered(capacity, commtypes.UNBOUNDED, name)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if _, err := c.OnEventAt(context.Background(), entry.Message(), entry.BusinessTs(), entry.SystemTs()); err != nil {
			return err
		}
	}
	c.Complete()
	return nil
}

func (e *Engine[M]) register(q sync_queue.SyncQueue[M], ordered bool,
	strategy commtypes.BackPressureStrategy, name string,
) *FlowConsumer[M] {
	token := e.nextToken.Add(1)
	c := newFlowConsumer(q, token, e.systemDelay, strategy, e.signalDirtySystemTs, name)
	log.Info().Str("id", c.ID()).Bool("ordered", ordered).Str("strategy", strategy.String()).
		Msg("Registering input source")
	e.directory.Store(int64(token), c)
	e.pending.push(c)
	// dirtyQueues before complete: deregisterCompleted reads them in the
	// opposite order
	e.dirtyQueues.Set(true)
	e.complete.Set(false)
	return c
}

func (e *Engine[M]) signalDirtySystemTs() {
	e.dirtySystemTs.Set(true)
}

// Take returns the next entry in order, waiting until one is releasable.
// Once every source has completed and been drained it returns
// common_errors.ErrEndOfStream, on this and every later call.
func (e *Engine[M]) Take(ctx context.Context) (commtypes.Entry[M], error) {
	for attempt := 1; ; attempt++ {
		if entry, ok := e.dequeue(); ok {
			return entry, nil
		}
		if e.complete.Get() {
			return commtypes.Entry[M]{}, common_errors.ErrEndOfStream
		}
		if err := e.wait.Wait(ctx, attempt); err != nil {
			return commtypes.Entry[M]{}, err
		}
	}
}

// Poll is the non-blocking Take. It returns common_errors.ErrStreamEmpty
// when nothing is releasable yet.
func (e *Engine[M]) Poll() (commtypes.Entry[M], error) {
	if entry, ok := e.dequeue(); ok {
		return entry, nil
	}
	if e.complete.Get() {
		return commtypes.Entry[M]{}, common_errors.ErrEndOfStream
	}
	return commtypes.Entry[M]{}, common_errors.ErrStreamEmpty
}

// Comparator is the order entries leave the engine in.
func (e *Engine[M]) Comparator() func(a, b commtypes.Entry[M]) int {
	return e.entryCmp
}

// DelayStats may only be read from the consumer goroutine.
func (e *Engine[M]) DelayStats() *DelayStats {
	return &e.delay
}

func (e *Engine[M]) dequeue() (commtypes.Entry[M], bool) {
	debug.Assert(!e.busy.Swap(true), "engine consumed from more than one goroutine")
	defer e.busy.Set(false)
	for {
		e.absorbRegistrations()
		e.refillHeads()
		entry, res := e.pollReady()
		switch res {
		case outOfSync:
			continue
		case released:
			if c, ok := e.byToken[entry.SourceToken()]; ok {
				c.inHeads = false
			}
			if zerolog.GlobalLevel() <= zerolog.DebugLevel {
				e.debugMessageOrder(entry)
			}
			return entry, true
		default:
			return commtypes.Entry[M]{}, false
		}
	}
}

func (e *Engine[M]) debugMessageOrder(next commtypes.Entry[M]) {
	ts := next.BusinessTs()
	if ts < e.lastTs {
		log.Debug().Int64("last", e.lastTs).Int64("now", ts).Interface("msg", next.Message()).
			Msg("Entry dispatched out-of-sequence")
	} else {
		e.lastTs = ts
	}
}

func (e *Engine[M]) absorbRegistrations() {
	if !e.dirtyQueues.Get() {
		return
	}
	// cleared before draining so that a concurrent registration is seen on
	// the next pass
	e.dirtyQueues.Set(false)
	for {
		c, ok := e.pending.pop()
		if !ok {
			break
		}
		e.active = append(e.active, c)
		e.byToken[c.token] = c
	}
	if len(e.active) > 0 {
		e.complete.Set(false)
	}
	e.dirtySystemTs.Set(true)
}

func (e *Engine[M]) refillHeads() {
	deregister := 0
	for _, c := range e.active {
		c.setCheckpoint()
		if c.inHeads {
			continue
		}
		if entry, ok := c.queue.Poll(); ok {
			e.heads.ReplaceOrInsert(entry)
			c.inHeads = true
		} else if c.completed.Get() {
			deregister++
		}
	}
	if deregister > 0 {
		e.deregisterCompleted()
	}
	debug.Assert(e.heads.Len() <= len(e.active), "more heads than active sources")
}

func (e *Engine[M]) deregisterCompleted() {
	kept := e.active[:0]
	for _, c := range e.active {
		// completion is published after the final insert, so an empty queue
		// observed after it stays empty
		if !c.inHeads && c.completed.Get() && c.queue.Size() == 0 {
			log.Info().Str("id", c.ID()).Msg("De-registering completed consumer")
			delete(e.byToken, c.token)
			e.directory.Delete(int64(c.token))
			continue
		}
		kept = append(kept, c)
	}
	for i := len(kept); i < len(e.active); i++ {
		e.active[i] = nil
	}
	e.active = kept
	// a registration still waiting in pending keeps the engine open
	if len(e.active) == 0 && !e.dirtyQueues.Get() && e.complete.SetIfUnset() {
		if e.dirtyQueues.Get() {
			e.complete.Set(false)
		} else {
			log.Info().Msg("All consumers de-registered")
		}
	}
}

func (e *Engine[M]) pollReady() (commtypes.Entry[M], pollResult) {
	if e.heads.Len() == len(e.active) {
		if head, ok := e.heads.DeleteMin(); ok {
			e.delay.Released.Tick(1)
			return head, released
		}
		return commtypes.Entry[M]{}, nothingReady
	}
	head, ok := e.heads.Min()
	if !ok || e.systemDelay == 0 {
		return commtypes.Entry[M]{}, nothingReady
	}
	if e.dirtySystemTs.Get() {
		if !e.updateLatestSystemTs() {
			return commtypes.Entry[M]{}, outOfSync
		}
		e.dirtySystemTs.Set(false)
	}
	if commtypes.Lag(e.systemTs, head.SystemTs()) > uint64(e.systemDelay) {
		log.Debug().Int64("global_system_ts", e.systemTs).Int64("entry_system_ts", head.SystemTs()).
			Msg("Entry dequeued based on system timestamp progress")
		e.heads.DeleteMin()
		e.delay.ReleasedBySystemTime.Tick(1)
		return head, released
	}
	return commtypes.Entry[M]{}, nothingReady
}

// updateLatestSystemTs returns false if any source published a new system
// time since its checkpoint, in which case the refill has to be redone.
func (e *Engine[M]) updateLatestSystemTs() bool {
	ts := commtypes.MaxTs
	for _, c := range e.active {
		if s := c.system.Load(); s < ts {
			ts = s
		}
		if !c.verifyCheckpoint() {
			return false
		}
	}
	e.systemTs = ts
	return true
}

// SourceInfo is a point in time view of a registered source.
type SourceInfo struct {
	ID                string
	Strategy          commtypes.BackPressureStrategy
	SystemTs          int64
	Completed         bool
	Size              int
	RemainingCapacity int
}

// Sources lists the sources that have not been de-registered yet. Safe from
// any goroutine.
func (e *Engine[M]) Sources() []SourceInfo {
	infos := make([]SourceInfo, 0, e.directory.Len())
	e.directory.Range(func(_ int64, c *FlowConsumer[M]) bool {
		infos = append(infos, SourceInfo{
			ID:                c.ID(),
			Strategy:          c.Strategy(),
			SystemTs:          c.SystemTs(),
			Completed:         c.IsCompleted(),
			Size:              c.queue.Size(),
			RemainingCapacity: c.RemainingCapacity(),
		})
		return true
	})
	return infos
}
