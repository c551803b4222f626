// Package managed wires pull based sources, their consumers, an engine and a
// job scheduler together, so that callers only pull the merged output.
package managed

import (
	"context"
	"runtime"

	"syncmerge-stream/pkg/common_errors"
	"syncmerge-stream/pkg/commtypes"
	"syncmerge-stream/pkg/merger"
	"syncmerge-stream/pkg/scheduler"
	"syncmerge-stream/pkg/source_sink"

	"golang.org/x/xerrors"
)

type ManagedBuilder[M any] struct {
	engine  *merger.Engine[M]
	jobs    []*scheduler.Job
	threads int
	errs    []error
}

func NewManagedBuilder[M any](systemDelay int64, cmp commtypes.Comparator[M], opts ...merger.EngineOption[M]) *ManagedBuilder[M] {
	b := &ManagedBuilder[M]{threads: runtime.GOMAXPROCS(0)}
	e, err := merger.NewEngine(systemDelay, cmp, opts...)
	if err != nil {
		b.errs = append(b.errs, err)
	}
	b.engine = e
	return b
}

func (b *ManagedBuilder[M]) PoolSize(threads int) *ManagedBuilder[M] {
	if threads < 1 {
		b.errs = append(b.errs, xerrors.Errorf("pool size must be positive, got %d: %w",
			threads, common_errors.ErrInvalidArgument))
	}
	b.threads = threads
	return b
}

func (b *ManagedBuilder[M]) RegisterOrdered(src source_sink.Source[M], capacity int, name string) *ManagedBuilder[M] {
	if b.engine == nil {
		return b
	}
	c, err := b.engine.RegisterOrdered(capacity, commtypes.DROP, name)
	return b.addJob(src, c, err)
}

func (b *ManagedBuilder[M]) RegisterUnordered(src source_sink.Source[M], businessDelay int64, softCapacity int,
	name string, cmp commtypes.Comparator[M],
) *ManagedBuilder[M] {
	if b.engine == nil {
		return b
	}
	c, err := b.engine.RegisterUnordered(businessDelay, softCapacity, commtypes.DROP, name, cmp)
	return b.addJob(src, c, err)
}

func (b *ManagedBuilder[M]) addJob(src source_sink.Source[M], c *merger.FlowConsumer[M], err error) *ManagedBuilder[M] {
	if err != nil {
		b.errs = append(b.errs, err)
		return b
	}
	job, err := scheduler.NewJob[M](src, c)
	if err != nil {
		b.errs = append(b.errs, err)
		return b
	}
	b.jobs = append(b.jobs, job)
	return b
}

// Build returns the first configuration error, if any.
func (b *ManagedBuilder[M]) Build() (*Managed[M], error) {
	if len(b.errs) > 0 {
		return nil, b.errs[0]
	}
	s, err := scheduler.NewJobScheduler(b.threads, b.jobs)
	if err != nil {
		return nil, err
	}
	return &Managed[M]{
		engine:    b.engine,
		scheduler: s,
	}, nil
}

// Managed merges sources that are pulled by a scheduler. Take, Poll and
// Stream have the engine's single consumer restriction.
type Managed[M any] struct {
	engine    *merger.Engine[M]
	scheduler *scheduler.JobScheduler
}

// Start launches the scheduler. The sources are pulled until they end or
// ctx is done.
func (m *Managed[M]) Start(ctx context.Context) {
	m.scheduler.Start(ctx)
}

// Wait blocks until every source has been drained into the engine.
func (m *Managed[M]) Wait() error {
	return m.scheduler.Wait()
}

func (m *Managed[M]) Take(ctx context.Context) (commtypes.Entry[M], error) {
	return m.engine.Take(ctx)
}

func (m *Managed[M]) Poll() (commtypes.Entry[M], error) {
	return m.engine.Poll()
}

func (m *Managed[M]) Stream(ctx context.Context) *merger.Stream[M] {
	return m.engine.Stream(ctx)
}

func (m *Managed[M]) Comparator() func(a, b commtypes.Entry[M]) int {
	return m.engine.Comparator()
}

func (m *Managed[M]) Sources() []merger.SourceInfo {
	return m.engine.Sources()
}

// DelayStats may only be read from the consuming goroutine.
func (m *Managed[M]) DelayStats() *merger.DelayStats {
	return m.engine.DelayStats()
}
