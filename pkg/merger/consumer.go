package merger

import (
	"context"
	"fmt"
	"sync/atomic"

	"syncmerge-stream/pkg/common_errors"
	"syncmerge-stream/pkg/commtypes"
	"syncmerge-stream/pkg/sync_queue"
	"syncmerge-stream/pkg/utils/syncutils"
)

const idPrefix = "SyncQueue-"

var idGen atomic.Uint64

// FlowConsumer is the producer-facing handle of one registered source. All of
// its methods except the read-only accessors must be called from a single
// producer goroutine.
type FlowConsumer[M any] struct {
	queue       sync_queue.SyncQueue[M]
	id          string
	token       uint64
	strategy    commtypes.BackPressureStrategy
	systemDelay int64
	signal      func()

	completed  syncutils.AtomicBool
	hasChanged syncutils.AtomicBool
	system     atomic.Int64

	// producer goroutine only
	lastSystemTs int64
	graceExpiry  int64

	// engine goroutine only
	inHeads bool
}

func newFlowConsumer[M any](queue sync_queue.SyncQueue[M], token uint64, systemDelay int64,
	strategy commtypes.BackPressureStrategy, signal func(), name string,
) *FlowConsumer[M] {
	return &FlowConsumer[M]{
		queue:       queue,
		id:          fmt.Sprintf("%s%d-%s", idPrefix, idGen.Add(1), name),
		token:       token,
		strategy:    strategy,
		systemDelay: systemDelay,
		signal:      signal,
	}
}

// OnEvent submits a message stamped with the last system time this handle
// has seen.
func (c *FlowConsumer[M]) OnEvent(ctx context.Context, msg M, businessTs int64) (bool, error) {
	return c.OnEventAt(ctx, msg, businessTs, c.lastSystemTs)
}

// OnEventAt submits a message. The returned bool reports whether the entry
// was accepted (DROP), or whether the desired capacity still holds
// (UNBOUNDED). BLOCK submissions wait for room and fail only when ctx is done.
func (c *FlowConsumer[M]) OnEventAt(ctx context.Context, msg M, businessTs int64, systemTs int64) (bool, error) {
	if c.completed.Get() {
		return false, common_errors.ErrConsumerCompleted
	}
	e := commtypes.NewEntry(msg, businessTs, systemTs).WithSource(c.token)
	var accepted bool
	if c.strategy == commtypes.BLOCK {
		var err error
		accepted, err = c.queue.Put(ctx, e)
		if err != nil {
			return false, err
		}
	} else {
		accepted = c.queue.Offer(e)
	}
	if systemTs-c.lastSystemTs > c.systemDelay {
		// sudden jump in system time: hold the watermark back until the
		// producer has stayed there for a full systemDelay
		c.graceExpiry = systemTs + c.systemDelay
	}
	c.advance(systemTs)
	return accepted, nil
}

// UpdateSystemTime is a heartbeat: the source is alive and has nothing older
// than ts left to submit.
func (c *FlowConsumer[M]) UpdateSystemTime(ts int64) error {
	if c.completed.Get() {
		return common_errors.ErrConsumerCompleted
	}
	c.queue.UpdateSystemTs(ts)
	if c.graceExpiry > ts {
		c.graceExpiry = ts
	}
	c.advance(ts)
	return nil
}

// Complete marks the source finished and flushes everything it staged.
func (c *FlowConsumer[M]) Complete() {
	c.queue.UpdateSystemTs(commtypes.MaxTs)
	c.completed.Set(true)
	c.advance(commtypes.MaxTs)
}

func (c *FlowConsumer[M]) advance(ts int64) {
	if ts > c.system.Load() && ts >= c.graceExpiry {
		// the flag has to be visible before the new watermark
		c.hasChanged.Set(true)
		c.system.Store(ts)
		c.signal()
	}
	c.lastSystemTs = ts
}

func (c *FlowConsumer[M]) RemainingCapacity() int                   { return c.queue.RemainingCapacity() }
func (c *FlowConsumer[M]) Strategy() commtypes.BackPressureStrategy { return c.strategy }
func (c *FlowConsumer[M]) ID() string                               { return c.id }
func (c *FlowConsumer[M]) IsCompleted() bool                        { return c.completed.Get() }
func (c *FlowConsumer[M]) SystemTs() int64                          { return c.system.Load() }

func (c *FlowConsumer[M]) setCheckpoint() {
	c.hasChanged.Set(false)
}

func (c *FlowConsumer[M]) verifyCheckpoint() bool {
	return !c.hasChanged.Get()
}
