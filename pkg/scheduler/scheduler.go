package scheduler

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"syncmerge-stream/pkg/common_errors"
	"syncmerge-stream/pkg/env_config"
	"syncmerge-stream/pkg/stats"
	"syncmerge-stream/pkg/wait_strategy"

	"github.com/rs/zerolog/log"
	"github.com/zhangyunhao116/skipset"
	"golang.org/x/sync/errgroup"
	"golang.org/x/xerrors"
)

var instances atomic.Uint32

// upper bounds of the batch size buckets
var batchBounds = []int{1, 2, 11, 101, 1001, 10001, 30001}

// a batch checks for cancellation every batchCtxCheck+1 invocations
const batchCtxCheck = 63

type jobContext struct {
	job       *Job
	idx       uint32
	attempts  int
	cycles    uint64
	delay     *stats.Histogram[int]
	processed *stats.Histogram[int]
}

// JobScheduler runs jobs on min(threads, len(jobs)) workers. A worker keeps
// invoking the job it picked up for as long as the job stays READY. Jobs
// that keep failing to make progress are parked in a cooldown set that a
// ticker empties back into the ready queue.
type JobScheduler struct {
	instance uint32
	jobs     []*jobContext
	workers  int
	retries  int
	tick     time.Duration
	idle     wait_strategy.Strategy

	ready    chan *jobContext
	cooldown *skipset.Uint32Set

	completed   atomic.Int32
	totalCycles atomic.Uint64
	allDone     chan struct{}

	eg *errgroup.Group
}

func NewJobScheduler(threads int, jobs []*Job) (*JobScheduler, error) {
	if threads < 1 {
		return nil, xerrors.Errorf("scheduler needs at least one thread, got %d: %w",
			threads, common_errors.ErrInvalidArgument)
	}
	workers := threads
	if len(jobs) < workers {
		workers = len(jobs)
	}
	s := &JobScheduler{
		instance: instances.Add(1),
		workers:  workers,
		retries:  env_config.SCHED_RETRIES,
		tick:     env_config.SCHED_COOLDOWN_TICK,
		idle:     wait_strategy.Sleeper(time.Millisecond),
		ready:    make(chan *jobContext, len(jobs)),
		cooldown: skipset.NewUint32(),
		allDone:  make(chan struct{}),
	}
	for i, job := range jobs {
		jc := &jobContext{
			job:       job,
			idx:       uint32(i),
			delay:     stats.NewHistogram("delay", s.retries),
			processed: stats.NewHistogram("processed", batchBounds...),
		}
		s.jobs = append(s.jobs, jc)
		s.enqueue(jc)
	}
	log.Debug().Uint32("scheduler", s.instance).Int("retries", s.retries).Int("workers", workers).
		Msg("Job scheduler config")
	return s, nil
}

func (s *JobScheduler) enqueue(jc *jobContext) {
	select {
	case s.ready <- jc:
	default:
		panic(fmt.Errorf("%w: %s", common_errors.ErrJobDropped, jc.job.Name()))
	}
}

// Start launches the workers and the cooldown ticker. Cancelling ctx stops
// them; Wait then reports the interruption.
func (s *JobScheduler) Start(ctx context.Context) {
	eg, ctx := errgroup.WithContext(ctx)
	s.eg = eg
	if len(s.jobs) == 0 {
		close(s.allDone)
		return
	}
	for i := 0; i < s.workers; i++ {
		eg.Go(func() error {
			return s.process(ctx)
		})
	}
	eg.Go(func() error {
		return s.resetLoop(ctx)
	})
}

// Wait blocks until every job completed or the scheduler was interrupted.
func (s *JobScheduler) Wait() error {
	if s.eg == nil {
		return nil
	}
	return s.eg.Wait()
}

func (s *JobScheduler) Completed() int {
	return int(s.completed.Load())
}

func (s *JobScheduler) TotalCycles() uint64 {
	return s.totalCycles.Load()
}

func (s *JobScheduler) pop(ctx context.Context) (*jobContext, error) {
	for attempt := 0; ; attempt++ {
		select {
		case jc := <-s.ready:
			return jc, nil
		default:
		}
		if err := s.idle.Wait(ctx, attempt); err != nil {
			return nil, err
		}
	}
}

func (s *JobScheduler) process(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return common_errors.Interrupted(err)
		}
		jc, err := s.pop(ctx)
		if err != nil {
			return err
		}
		// dynamic batching: stay on this job while it makes progress
		state, failed := jc.job.run()
		processed := 0
		for state == READY && !failed {
			jc.attempts = 0
			processed++
			if processed&batchCtxCheck == 0 {
				if err := ctx.Err(); err != nil {
					jc.processed.Observe(processed)
					return common_errors.Interrupted(err)
				}
			}
			state, failed = jc.job.run()
		}
		jc.processed.Observe(processed)

		switch {
		case failed, state == WAITING, state == BLOCKED:
			// a failure counts toward the retry streak like an idle source
			attempt := jc.attempts
			jc.attempts++
			jc.delay.Observe(attempt)
			jc.cycles++
			if attempt > s.retries {
				s.cooldown.Add(jc.idx)
			} else {
				s.enqueue(jc)
			}
		case state == COMPLETED:
			log.Info().Str("job", jc.job.Name()).Uint64("cycles", jc.cycles).
				Str("delay", jc.delay.String()).Str("processed", jc.processed.String()).
				Msg("Job completed")
			s.totalCycles.Add(jc.cycles)
			total := int(s.completed.Add(1))
			if total > len(s.jobs)-s.workers {
				// fewer jobs left than workers
				if total == len(s.jobs) {
					log.Info().Uint32("scheduler", s.instance).Uint64("cycles", s.totalCycles.Load()).
						Msg("All jobs completed")
					close(s.allDone)
				}
				return nil
			}
		default:
			panic(fmt.Sprintf("unknown job state: %v", state))
		}
	}
}

func (s *JobScheduler) resetLoop(ctx context.Context) error {
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()
	for {
		select {
		case <-s.allDone:
			return nil
		case <-ctx.Done():
			return common_errors.Interrupted(ctx.Err())
		case <-ticker.C:
			s.reset()
		}
	}
}

func (s *JobScheduler) reset() {
	s.cooldown.Range(func(idx uint32) bool {
		if s.cooldown.Remove(idx) {
			s.enqueue(s.jobs[idx])
		}
		return true
	})
}
