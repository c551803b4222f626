// Package wait_strategy holds the backoff policies used wherever a goroutine
// has to wait for another one without a condition variable.
package wait_strategy

import (
	"context"
	"runtime"
	"time"

	"syncmerge-stream/pkg/common_errors"
)

// Strategy decides how long to back off on the attempt-th consecutive
// unsuccessful try. Wait returns an interruption error when ctx is done.
type Strategy interface {
	Wait(ctx context.Context, attempt int) error
}

type StrategyFunc func(ctx context.Context, attempt int) error

func (f StrategyFunc) Wait(ctx context.Context, attempt int) error {
	return f(ctx, attempt)
}

const (
	DEFAULT_SPIN_ATTEMPTS = 50
	DEFAULT_MAX_PARK      = time.Millisecond
)

// BackOff yields the processor for the first SpinAttempts tries, then parks
// for 1ns, 10ns, 100ns, ... growing tenfold per try until MaxPark.
type BackOff struct {
	SpinAttempts int
	MaxPark      time.Duration
}

var _ = Strategy(BackOff{})

func NewBackOff() BackOff {
	return BackOff{
		SpinAttempts: DEFAULT_SPIN_ATTEMPTS,
		MaxPark:      DEFAULT_MAX_PARK,
	}
}

func (b BackOff) Park(attempt int) time.Duration {
	if attempt <= b.SpinAttempts {
		return 0
	}
	d := time.Nanosecond
	for i := b.SpinAttempts + 1; i < attempt && d < b.MaxPark; i++ {
		d *= 10
	}
	if d > b.MaxPark {
		d = b.MaxPark
	}
	return d
}

func (b BackOff) Wait(ctx context.Context, attempt int) error {
	if err := ctx.Err(); err != nil {
		return common_errors.Interrupted(err)
	}
	if d := b.Park(attempt); d == 0 {
		runtime.Gosched()
	} else {
		time.Sleep(d)
	}
	return nil
}

// Fixed yields the processor and then parks for the same duration on every
// attempt. Parks shorter than the timer resolution return almost at once, so
// without the yield a waiter could keep the only P away from the goroutine
// it waits for.
type Fixed time.Duration

var _ = Strategy(Fixed(0))

func (f Fixed) Wait(ctx context.Context, attempt int) error {
	if err := ctx.Err(); err != nil {
		return common_errors.Interrupted(err)
	}
	runtime.Gosched()
	if f > 0 {
		time.Sleep(time.Duration(f))
	}
	return nil
}

// Sleeper backs off by sleeping 10^attempt ns, capped at max. It is what the
// scheduler workers use while the ready queue is empty.
func Sleeper(max time.Duration) Strategy {
	return StrategyFunc(func(ctx context.Context, attempt int) error {
		if err := ctx.Err(); err != nil {
			return common_errors.Interrupted(err)
		}
		d := time.Nanosecond
		for i := 0; i < attempt && d < max; i++ {
			d *= 10
		}
		if d > max {
			d = max
		}
		time.Sleep(d)
		return nil
	})
}
