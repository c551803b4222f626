// Package scheduler drives many pull based sources into their consumers
// from a small pool of worker goroutines.
package scheduler

import (
	"context"
	"fmt"

	"syncmerge-stream/pkg/common_errors"
	"syncmerge-stream/pkg/commtypes"
	"syncmerge-stream/pkg/source_sink"

	"github.com/rs/zerolog/log"
	"golang.org/x/xerrors"
)

type State uint8

const (
	// READY: the job made progress and can be invoked again right away.
	READY State = iota
	// WAITING: the source had nothing to emit.
	WAITING
	// BLOCKED: the consumer rejected the entry; it is kept for the next try.
	BLOCKED
	COMPLETED
)

func (s State) String() string {
	switch s {
	case READY:
		return "READY"
	case WAITING:
		return "WAITING"
	case BLOCKED:
		return "BLOCKED"
	case COMPLETED:
		return "COMPLETED"
	default:
		return fmt.Sprintf("State(%d)", uint8(s))
	}
}

// Consumer is the submitting side of a registered source, as implemented by
// merger.FlowConsumer.
type Consumer[M any] interface {
	OnEvent(ctx context.Context, msg M, businessTs int64) (bool, error)
	OnEventAt(ctx context.Context, msg M, businessTs int64, systemTs int64) (bool, error)
	UpdateSystemTime(ts int64) error
	Complete()
	Strategy() commtypes.BackPressureStrategy
	ID() string
}

// Job pairs one source with its consumer. A job is invoked by one worker at
// a time.
type Job struct {
	name string
	step func() (State, error)
}

type pending[M any] struct {
	entry  commtypes.Entry[M]
	staged bool
}

// NewJob wraps src and c. The consumer has to drop instead of block so that a
// full buffer never stalls a shared worker. When src is a
// source_sink.FlowSource its system time is forwarded, both with each entry
// and while it is idle.
func NewJob[M any](src source_sink.Source[M], c Consumer[M]) (*Job, error) {
	if c.Strategy() != commtypes.DROP {
		return nil, xerrors.Errorf("scheduled consumer %s uses %v, needs DROP: %w",
			c.ID(), c.Strategy(), common_errors.ErrInvalidArgument)
	}
	cur := &pending[M]{}
	step := func() (State, error) { return invocation(src, c, cur) }
	if fs, ok := src.(source_sink.FlowSource[M]); ok {
		step = func() (State, error) { return flowInvocation(fs, c, cur) }
	}
	return &Job{name: c.ID(), step: step}, nil
}

func (j *Job) Name() string {
	return j.name
}

// next stages the following entry unless one is still waiting to be accepted.
func next[M any](src source_sink.Source[M], cur *pending[M]) error {
	if cur.staged {
		return nil
	}
	e, err := src.Emit()
	if err != nil {
		return err
	}
	cur.entry = e
	cur.staged = true
	return nil
}

func invocation[M any](src source_sink.Source[M], c Consumer[M], cur *pending[M]) (State, error) {
	err := next(src, cur)
	if common_errors.IsStreamEmptyError(err) {
		return WAITING, nil
	} else if common_errors.IsEndOfStreamError(err) {
		c.Complete()
		return COMPLETED, nil
	} else if err != nil {
		return READY, err
	}
	accepted, err := c.OnEvent(context.Background(), cur.entry.Message(), cur.entry.BusinessTs())
	return submitted(cur, accepted, err)
}

func flowInvocation[M any](src source_sink.FlowSource[M], c Consumer[M], cur *pending[M]) (State, error) {
	err := next[M](src, cur)
	if common_errors.IsStreamEmptyError(err) {
		if err := c.UpdateSystemTime(src.CurrentSystemTime()); err != nil {
			return READY, err
		}
		return WAITING, nil
	} else if common_errors.IsEndOfStreamError(err) {
		c.Complete()
		return COMPLETED, nil
	} else if err != nil {
		return READY, err
	}
	e := cur.entry
	accepted, err := c.OnEventAt(context.Background(), e.Message(), e.BusinessTs(), e.SystemTs())
	return submitted(cur, accepted, err)
}

func submitted[M any](cur *pending[M], accepted bool, err error) (State, error) {
	if err != nil {
		return READY, err
	}
	if !accepted {
		return BLOCKED, nil
	}
	cur.entry = commtypes.Entry[M]{}
	cur.staged = false
	return READY, nil
}

// Invoke runs one transition. A failing source or consumer does not take
// the worker down: the failure is logged and the job reported READY.
func (j *Job) Invoke() State {
	s, _ := j.run()
	return s
}

// run is Invoke that also reports whether the transition failed, so that the
// scheduler does not count a failure as progress.
func (j *Job) run() (s State, failed bool) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("job", j.name).Interface("panic", r).Msg("job invocation panicked")
			s, failed = READY, true
		}
	}()
	s, err := j.step()
	if err != nil {
		log.Error().Err(err).Str("job", j.name).Msg("job invocation failed")
		return READY, true
	}
	return s, false
}
