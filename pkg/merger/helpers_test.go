package merger

import (
	"cmp"
	"context"
	"testing"
	"time"

	"syncmerge-stream/pkg/common_errors"
	"syncmerge-stream/pkg/commtypes"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type msgObject int

const (
	object1 msgObject = iota + 1
	object2
	object3
	object4
	object5
	object6
)

const (
	zero int64 = 0
	ts1  int64 = 1
)

var objectOrder = commtypes.Comparator[msgObject](cmp.Compare[msgObject])

type testEntry struct {
	msg        msgObject
	businessTs int64
	systemTs   int64
	accepted   bool
}

func consume(t *testing.T, c *FlowConsumer[msgObject], msg msgObject, businessTs int64, systemTs int64) testEntry {
	t.Helper()
	accepted, err := c.OnEventAt(context.Background(), msg, businessTs, systemTs)
	require.NoError(t, err)
	return testEntry{msg: msg, businessTs: businessTs, systemTs: systemTs, accepted: accepted}
}

func verify(t *testing.T, expected testEntry, actual commtypes.Entry[msgObject], err error) {
	t.Helper()
	require.NoError(t, err)
	assert.Equal(t, expected.msg, actual.Message())
	assert.Equal(t, expected.businessTs, actual.BusinessTs())
	assert.Equal(t, expected.systemTs, actual.SystemTs())
}

func assertNothingReady[M any](t *testing.T, e *Engine[M]) {
	t.Helper()
	entry, err := e.Poll()
	require.ErrorIsf(t, err, common_errors.ErrStreamEmpty, "expected nothing ready, got %v", entry)
}

func addToQueue(c *FlowConsumer[msgObject], messages int) error {
	now := int64(100)
	for i := 0; i < messages; i++ {
		if i%100 == 0 {
			now += 100
		}
		now++
		if _, err := c.OnEventAt(context.Background(), object1, now, zero); err != nil {
			return err
		}
	}
	c.Complete()
	return nil
}

func addToQueueUnordered(c *FlowConsumer[msgObject], messages int) error {
	now := int64(100)
	for i := 0; i < messages; i++ {
		if i%100 == 0 {
			now += 100
		}
		now++
		ts := now - 2
		if i%2 == 0 {
			ts = now + 2
		}
		if _, err := c.OnEventAt(context.Background(), object1, ts, zero); err != nil {
			return err
		}
	}
	c.Complete()
	return nil
}

// asyncTask runs f on its own goroutine.
type asyncTask struct {
	done chan error
}

func runAsync(f func() error) *asyncTask {
	a := &asyncTask{done: make(chan error, 1)}
	go func() {
		a.done <- f()
	}()
	return a
}

// verifyBlocking checks that the task is still running after giving it time
// to finish.
func (a *asyncTask) verifyBlocking(t *testing.T) {
	t.Helper()
	select {
	case err := <-a.done:
		t.Fatalf("task completed (err: %v), expected it to block", err)
	case <-time.After(100 * time.Millisecond):
	}
}

func (a *asyncTask) join(t *testing.T) {
	t.Helper()
	select {
	case err := <-a.done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("task did not complete in time")
	}
}

type sequenceChecker struct {
	ts    int64
	total int
}

func (s *sequenceChecker) verify(t *testing.T, e commtypes.Entry[msgObject], err error) {
	t.Helper()
	require.NoError(t, err)
	if e.BusinessTs() < s.ts {
		t.Fatalf("entries out of sequence: %d after %d", e.BusinessTs(), s.ts)
	}
	s.ts = e.BusinessTs()
	s.total++
}

// testCtx ends shortly before the test binary's own deadline, so slow hosts
// fail with an interruption instead of a goroutine dump.
func testCtx(t *testing.T) context.Context {
	timeout := 5 * time.Minute
	if deadline, ok := t.Deadline(); ok {
		if left := time.Until(deadline) - 5*time.Second; left > 0 {
			timeout = left
		}
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	t.Cleanup(cancel)
	return ctx
}
