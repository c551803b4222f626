// Package sync_queue implements the per-source buffers that sit between a
// producer and the merge engine. Every queue is single-producer
// single-consumer: the insert side and UpdateSystemTs belong to the producer,
// Poll and Peek to the engine.
package sync_queue

import (
	"context"
	"math"

	"syncmerge-stream/pkg/common_errors"
	"syncmerge-stream/pkg/commtypes"
	"syncmerge-stream/pkg/env_config"
	"syncmerge-stream/pkg/wait_strategy"

	"golang.org/x/xerrors"
)

type SyncQueue[M any] interface {
	// Offer inserts without blocking and reports whether the entry was taken.
	Offer(e commtypes.Entry[M]) bool
	// Put waits for room. The returned bool only carries meaning for
	// unbounded queues, where it tells whether the desired capacity still
	// holds.
	Put(ctx context.Context, e commtypes.Entry[M]) (bool, error)
	UpdateSystemTs(ts int64)
	Poll() (commtypes.Entry[M], bool)
	Peek() (commtypes.Entry[M], bool)
	Size() int
	ReadySize() int
	RemainingCapacity() int
}

type CapacityType uint8

const (
	// BOUNDED rejects entries beyond the capacity.
	BOUNDED CapacityType = iota
	// UNBOUNDED accepts everything and signals when the capacity is passed.
	UNBOUNDED
)

func (c CapacityType) String() string {
	if c == BOUNDED {
		return "BOUNDED"
	} else if c == UNBOUNDED {
		return "UNBOUNDED"
	}
	return "CapacityType(unknown)"
}

// CreateOrdered returns a buffer for a source whose business timestamps never
// decrease.
func CreateOrdered[M any](capacity int, capacityType CapacityType) (SyncQueue[M], error) {
	if capacity < 1 {
		return nil, xerrors.Errorf("capacity must be at least 1, got %d: %w", capacity, common_errors.ErrInvalidArgument)
	}
	switch capacityType {
	case BOUNDED:
		return NewOrderedSyncQueue[M](capacity), nil
	case UNBOUNDED:
		return NewUnboundedOrderedSyncQueue[M](capacity), nil
	default:
		return nil, xerrors.Errorf("capacity type %v: %w", capacityType, common_errors.ErrInvalidArgument)
	}
}

// CreateUnordered returns a buffer for a source whose entries may arrive up to
// businessDelay late. cmp orders entries sharing a business timestamp and may
// be nil.
func CreateUnordered[M any](businessDelay int64, systemDelay int64, softCapacity int,
	capacityType CapacityType, cmp commtypes.Comparator[M],
) (SyncQueue[M], error) {
	if err := ValidateDelays(businessDelay, systemDelay); err != nil {
		return nil, err
	}
	if softCapacity < 1 {
		return nil, xerrors.Errorf("capacity must be at least 1, got %d: %w", softCapacity, common_errors.ErrInvalidArgument)
	}
	switch capacityType {
	case BOUNDED:
		return NewUnorderedSyncQueue(businessDelay, systemDelay, softCapacity, cmp), nil
	case UNBOUNDED:
		return NewUnboundedUnorderedSyncQueue(businessDelay, systemDelay, softCapacity, cmp), nil
	default:
		return nil, xerrors.Errorf("capacity type %v: %w", capacityType, common_errors.ErrInvalidArgument)
	}
}

func ValidateDelays(businessDelay int64, systemDelay int64) error {
	if systemDelay < 0 {
		return xerrors.Errorf("systemDelay must be non-negative, got %d: %w", systemDelay, common_errors.ErrInvalidArgument)
	}
	if businessDelay < 0 {
		return xerrors.Errorf("businessDelay must be non-negative, got %d: %w", businessDelay, common_errors.ErrInvalidArgument)
	}
	if businessDelay > systemDelay {
		return xerrors.Errorf("businessDelay %d exceeds systemDelay %d: %w",
			businessDelay, systemDelay, common_errors.ErrInvalidArgument)
	}
	return nil
}

// producerWait is how long a blocked Put parks between attempts.
func producerWait(capacity int) wait_strategy.Strategy {
	if capacity >= math.MaxInt32 {
		capacity = math.MaxInt32
	}
	return wait_strategy.Fixed(int64(capacity) * env_config.PUT_WAIT_NS_PER_SLOT)
}

func putLoop(ctx context.Context, w wait_strategy.Strategy, offer func() bool) error {
	for attempt := 1; ; attempt++ {
		if offer() {
			return nil
		}
		if err := w.Wait(ctx, attempt); err != nil {
			return err
		}
	}
}
