package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"syncmerge-stream/pkg/common_errors"
	"syncmerge-stream/pkg/commtypes"
	"syncmerge-stream/pkg/merger"
	"syncmerge-stream/pkg/source_sink"
	"syncmerge-stream/pkg/stats"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type submission struct {
	msg        string
	businessTs int64
	systemTs   int64
	flow       bool
}

type fakeConsumer struct {
	strategy  commtypes.BackPressureStrategy
	accept    func() bool
	err       error
	got       []submission
	systemTs  []int64
	completed bool
}

func newFakeConsumer() *fakeConsumer {
	return &fakeConsumer{strategy: commtypes.DROP, accept: func() bool { return true }}
}

func (c *fakeConsumer) OnEvent(_ context.Context, msg string, businessTs int64) (bool, error) {
	if c.err != nil {
		return false, c.err
	}
	if !c.accept() {
		return false, nil
	}
	c.got = append(c.got, submission{msg: msg, businessTs: businessTs})
	return true, nil
}

func (c *fakeConsumer) OnEventAt(_ context.Context, msg string, businessTs int64, systemTs int64) (bool, error) {
	if c.err != nil {
		return false, c.err
	}
	if !c.accept() {
		return false, nil
	}
	c.got = append(c.got, submission{msg: msg, businessTs: businessTs, systemTs: systemTs, flow: true})
	return true, nil
}

func (c *fakeConsumer) UpdateSystemTime(ts int64) error {
	c.systemTs = append(c.systemTs, ts)
	return nil
}

func (c *fakeConsumer) Complete()                                { c.completed = true }
func (c *fakeConsumer) Strategy() commtypes.BackPressureStrategy { return c.strategy }
func (c *fakeConsumer) ID() string                               { return "fake" }

// scriptedSource replays a fixed list of Emit results.
type scriptedSource struct {
	steps []func() (commtypes.Entry[string], error)
}

func (s *scriptedSource) Emit() (commtypes.Entry[string], error) {
	if len(s.steps) == 0 {
		return commtypes.Entry[string]{}, common_errors.ErrEndOfStream
	}
	step := s.steps[0]
	s.steps = s.steps[1:]
	return step()
}

func emitEntry(msg string, bts int64) func() (commtypes.Entry[string], error) {
	return func() (commtypes.Entry[string], error) { return commtypes.NewEntry(msg, bts, bts*10), nil }
}

func emitErr(err error) func() (commtypes.Entry[string], error) {
	return func() (commtypes.Entry[string], error) { return commtypes.Entry[string]{}, err }
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "READY", READY.String())
	assert.Equal(t, "COMPLETED", COMPLETED.String())
	assert.Equal(t, "State(9)", State(9).String())
}

func TestNewJobRequiresDrop(t *testing.T) {
	c := newFakeConsumer()
	c.strategy = commtypes.BLOCK
	_, err := NewJob[string](&scriptedSource{}, c)
	assert.ErrorIs(t, err, common_errors.ErrInvalidArgument)
}

func TestJobTransitions(t *testing.T) {
	c := newFakeConsumer()
	accept := []bool{true, false, true}
	c.accept = func() bool {
		a := accept[0]
		accept = accept[1:]
		return a
	}
	src := &scriptedSource{steps: []func() (commtypes.Entry[string], error){
		emitEntry("a", 1),
		emitErr(common_errors.ErrStreamEmpty),
		emitEntry("b", 2),
	}}
	job, err := NewJob[string](src, c)
	require.NoError(t, err)
	assert.Equal(t, "fake", job.Name())

	assert.Equal(t, READY, job.Invoke())
	assert.Equal(t, WAITING, job.Invoke())
	// rejected, b stays staged
	assert.Equal(t, BLOCKED, job.Invoke())
	assert.Equal(t, READY, job.Invoke())
	assert.False(t, c.completed)
	assert.Equal(t, COMPLETED, job.Invoke())
	assert.True(t, c.completed)
	assert.Equal(t, []submission{{msg: "a", businessTs: 1}, {msg: "b", businessTs: 2}}, c.got)
	// plain sources never report system time
	assert.Empty(t, c.systemTs)
}

func TestFlowJobForwardsSystemTime(t *testing.T) {
	c := newFakeConsumer()
	ch := make(chan commtypes.Entry[string], 1)
	now := int64(500)
	src := source_sink.NewChanSource(ch, func() int64 { return now })
	job, err := NewJob[string](src, c)
	require.NoError(t, err)

	assert.Equal(t, WAITING, job.Invoke())
	ch <- commtypes.NewEntry("a", 3, 400)
	assert.Equal(t, READY, job.Invoke())
	now = 600
	assert.Equal(t, WAITING, job.Invoke())
	close(ch)
	assert.Equal(t, COMPLETED, job.Invoke())

	assert.Equal(t, []int64{500, 600}, c.systemTs)
	assert.Equal(t, []submission{{msg: "a", businessTs: 3, systemTs: 400, flow: true}}, c.got)
}

func TestJobFailuresAreReady(t *testing.T) {
	c := newFakeConsumer()
	src := &scriptedSource{steps: []func() (commtypes.Entry[string], error){
		emitErr(errors.New("broken source")),
		func() (commtypes.Entry[string], error) { panic("boom") },
		emitEntry("a", 1),
		emitEntry("b", 2),
	}}
	job, err := NewJob[string](src, c)
	require.NoError(t, err)
	assert.Equal(t, READY, job.Invoke())
	assert.Equal(t, READY, job.Invoke())
	c.err = errors.New("broken consumer")
	assert.Equal(t, READY, job.Invoke())
	c.err = nil
	// the entry from the failed submission is still staged
	assert.Equal(t, READY, job.Invoke())
	assert.Equal(t, READY, job.Invoke())
	assert.Equal(t, COMPLETED, job.Invoke())
	assert.Equal(t, []submission{{msg: "a", businessTs: 1}, {msg: "b", businessTs: 2}}, c.got)
}

func orderedEntries(n int, offset int64) []commtypes.Entry[string] {
	entries := make([]commtypes.Entry[string], 0, n)
	for i := 0; i < n; i++ {
		ts := int64(i)*3 + offset
		entries = append(entries, commtypes.NewEntry("m", ts, 0))
	}
	return entries
}

func TestSchedulerMergesSources(t *testing.T) {
	e, err := merger.NewEngine[string](0, nil)
	require.NoError(t, err)
	sources := 7
	perSource := 2000
	var jobs []*Job
	for i := 0; i < sources; i++ {
		c, err := e.RegisterOrdered(4, commtypes.DROP, "sliced")
		require.NoError(t, err)
		job, err := NewJob[string](source_sink.NewSliceSource(orderedEntries(perSource, int64(i%3))), c)
		require.NoError(t, err)
		jobs = append(jobs, job)
	}
	s, err := NewJobScheduler(3, jobs)
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	s.Start(ctx)

	stream := e.Stream(ctx)
	last := int64(-1)
	total := 0
	for entry := range stream.All() {
		require.GreaterOrEqual(t, entry.BusinessTs(), last)
		last = entry.BusinessTs()
		total++
	}
	require.NoError(t, stream.Err())
	require.NoError(t, s.Wait())
	assert.Equal(t, sources*perSource, total)
	assert.Equal(t, sources, s.Completed())
}

func TestSchedulerInterrupted(t *testing.T) {
	c := newFakeConsumer()
	ch := make(chan commtypes.Entry[string])
	job, err := NewJob[string](source_sink.NewChanSource(ch, nil), c)
	require.NoError(t, err)
	s, err := NewJobScheduler(4, []*Job{job})
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)
	time.Sleep(20 * time.Millisecond)
	cancel()
	err = s.Wait()
	assert.True(t, common_errors.IsInterruptedError(err))
	assert.Zero(t, s.Completed())
}

func TestSchedulerWithoutJobs(t *testing.T) {
	s, err := NewJobScheduler(4, nil)
	require.NoError(t, err)
	s.Start(context.Background())
	assert.NoError(t, s.Wait())
}

func TestNewJobSchedulerNeedsThreads(t *testing.T) {
	job, err := NewJob[string](&scriptedSource{}, newFakeConsumer())
	require.NoError(t, err)
	for _, threads := range []int{0, -1} {
		_, err := NewJobScheduler(threads, []*Job{job})
		assert.ErrorIs(t, err, common_errors.ErrInvalidArgument)
	}
}

// brokenSource fails on every Emit.
type brokenSource struct{}

func (brokenSource) Emit() (commtypes.Entry[string], error) {
	return commtypes.Entry[string]{}, errors.New("broker unreachable")
}

func waitReturns(t *testing.T, s *JobScheduler, timeout time.Duration) error {
	t.Helper()
	done := make(chan error, 1)
	go func() { done <- s.Wait() }()
	select {
	case err := <-done:
		return err
	case <-time.After(timeout):
		t.Fatalf("scheduler did not stop within %v", timeout)
		return nil
	}
}

func TestCancelStopsFailingJob(t *testing.T) {
	job, err := NewJob[string](brokenSource{}, newFakeConsumer())
	require.NoError(t, err)
	s, err := NewJobScheduler(1, []*Job{job})
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)
	time.Sleep(50 * time.Millisecond)
	cancel()
	err = waitReturns(t, s, 3*time.Second)
	assert.True(t, common_errors.IsInterruptedError(err))
	assert.Zero(t, s.Completed())
}

func TestFailingJobDoesNotStarveOthers(t *testing.T) {
	broken, err := NewJob[string](brokenSource{}, newFakeConsumer())
	require.NoError(t, err)
	c := newFakeConsumer()
	healthy, err := NewJob[string](source_sink.NewSliceSource(orderedEntries(100, 0)), c)
	require.NoError(t, err)
	s, err := NewJobScheduler(1, []*Job{broken, healthy})
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)
	deadline := time.Now().Add(5 * time.Second)
	for s.Completed() < 1 {
		require.True(t, time.Now().Before(deadline), "healthy job never completed")
		time.Sleep(time.Millisecond)
	}
	cancel()
	err = waitReturns(t, s, 3*time.Second)
	assert.True(t, common_errors.IsInterruptedError(err))
	assert.True(t, c.completed)
	assert.Len(t, c.got, 100)
}

func TestCooldownJobComesBack(t *testing.T) {
	empty := emitErr(common_errors.ErrStreamEmpty)
	src := &scriptedSource{steps: []func() (commtypes.Entry[string], error){
		empty, empty, empty, empty, empty,
		emitEntry("late", 7),
	}}
	c := newFakeConsumer()
	job, err := NewJob[string](src, c)
	require.NoError(t, err)
	s, err := NewJobScheduler(1, []*Job{job})
	require.NoError(t, err)
	s.retries = 2
	s.tick = time.Millisecond
	s.jobs[0].delay = stats.NewHistogram("delay", s.retries)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.Start(ctx)
	require.NoError(t, waitReturns(t, s, 5*time.Second))
	// attempts 3 and 4 went to cooldown and were brought back by the ticker
	assert.Equal(t, []uint64{2, 3}, s.jobs[0].delay.Counts())
	assert.Equal(t, uint64(5), s.TotalCycles())
	assert.Equal(t, []submission{{msg: "late", businessTs: 7}}, c.got)
	assert.True(t, c.completed)
}

func TestMoreJobsThanWorkers(t *testing.T) {
	jobs := 6
	consumers := make([]*fakeConsumer, 0, jobs)
	var all []*Job
	for i := 0; i < jobs; i++ {
		c := newFakeConsumer()
		consumers = append(consumers, c)
		job, err := NewJob[string](source_sink.NewSliceSource(orderedEntries(50+i, int64(i))), c)
		require.NoError(t, err)
		all = append(all, job)
	}
	s, err := NewJobScheduler(2, all)
	require.NoError(t, err)
	assert.Equal(t, 2, s.workers)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.Start(ctx)
	require.NoError(t, waitReturns(t, s, 10*time.Second))
	assert.Equal(t, jobs, s.Completed())
	for i, c := range consumers {
		assert.True(t, c.completed)
		assert.Len(t, c.got, 50+i)
	}
}
