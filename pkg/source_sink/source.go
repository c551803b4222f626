package source_sink

import (
	"time"

	"syncmerge-stream/pkg/common_errors"
	"syncmerge-stream/pkg/commtypes"
)

// Source is a pull based producer. Emit returns common_errors.ErrStreamEmpty
// when the source is idle but alive and common_errors.ErrEndOfStream once it
// is exhausted. Emit must not block for long: it is called from the
// scheduler's shared workers.
type Source[M any] interface {
	Emit() (commtypes.Entry[M], error)
}

// FlowSource also knows the system time it has reached, so a silent source
// can keep its consumer's system time moving.
type FlowSource[M any] interface {
	Source[M]
	CurrentSystemTime() int64
}

// Clock returns the current system time.
type Clock func() int64

func WallClockMillis() int64 {
	return time.Now().UnixMilli()
}

// SliceSource replays an in memory sequence.
type SliceSource[M any] struct {
	entries []commtypes.Entry[M]
	next    int
	sysTs   int64
}

var _ = FlowSource[int](&SliceSource[int]{})

func NewSliceSource[M any](entries []commtypes.Entry[M]) *SliceSource[M] {
	return &SliceSource[M]{entries: entries}
}

func (s *SliceSource[M]) Emit() (commtypes.Entry[M], error) {
	if s.next >= len(s.entries) {
		return commtypes.Entry[M]{}, common_errors.ErrEndOfStream
	}
	e := s.entries[s.next]
	s.next++
	if e.SystemTs() > s.sysTs {
		s.sysTs = e.SystemTs()
	}
	return e, nil
}

func (s *SliceSource[M]) CurrentSystemTime() int64 {
	return s.sysTs
}

// ChanSource polls a channel without blocking. A closed channel is the end
// of the stream.
type ChanSource[M any] struct {
	ch    <-chan commtypes.Entry[M]
	clock Clock
}

var _ = FlowSource[int](&ChanSource[int]{})

func NewChanSource[M any](ch <-chan commtypes.Entry[M], clock Clock) *ChanSource[M] {
	if clock == nil {
		clock = WallClockMillis
	}
	return &ChanSource[M]{ch: ch, clock: clock}
}

func (s *ChanSource[M]) Emit() (commtypes.Entry[M], error) {
	select {
	case e, ok := <-s.ch:
		if !ok {
			return commtypes.Entry[M]{}, common_errors.ErrEndOfStream
		}
		return e, nil
	default:
		return commtypes.Entry[M]{}, common_errors.ErrStreamEmpty
	}
}

func (s *ChanSource[M]) CurrentSystemTime() int64 {
	return s.clock()
}
