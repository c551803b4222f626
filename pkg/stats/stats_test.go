package stats

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestHistogramBuckets(t *testing.T) {
	h := NewHistogram[int]("batch", 11, 1, 2)
	for _, v := range []int{0, 1, 2, 10, 11, 500} {
		h.Observe(v)
	}
	assert.Equal(t, []uint64{1, 1, 2, 2}, h.Counts())
	assert.Equal(t, uint64(6), h.Total())
	assert.Equal(t, "<1: 1, <2: 1, <11: 2, rest: 2", h.String())
}

func TestCounters(t *testing.T) {
	c := NewCounter("c")
	c.Tick(2)
	c.Tick(3)
	assert.Equal(t, uint64(5), c.GetCount())
	assert.Equal(t, "c", c.Tag())
	ac := NewAtomicCounter("ac")
	ac.Tick(4)
	assert.Equal(t, uint64(4), ac.GetCount())
}

func TestReportTimer(t *testing.T) {
	r := NewReportTimer(time.Hour)
	assert.False(t, r.Check())
	r = NewReportTimer(0)
	assert.True(t, r.Check())
	assert.GreaterOrEqual(t, r.Mark(), time.Duration(0))
}

func TestReportTimerInterval(t *testing.T) {
	now := time.Unix(100, 0)
	r := NewReportTimer(10 * time.Second)
	r.now = func() time.Time { return now }
	assert.False(t, r.Check())
	now = now.Add(9 * time.Second)
	assert.False(t, r.Check())
	now = now.Add(time.Second)
	assert.True(t, r.Check())
	assert.Equal(t, 10*time.Second, r.Mark())
	assert.False(t, r.Check())
}

func TestStatsCollectorPercentiles(t *testing.T) {
	c := NewStatsCollector[int64]("lat", time.Hour)
	_, _, _, ok := c.Percentiles()
	assert.False(t, ok)
	for i := int64(100); i >= 1; i-- {
		c.AddSample(i)
	}
	p50, p90, p99, ok := c.Percentiles()
	assert.True(t, ok)
	assert.Equal(t, int64(50), p50)
	assert.Equal(t, int64(90), p90)
	assert.Equal(t, int64(99), p99)
	assert.Equal(t, uint64(100), c.Samples())
	c.PrintRemainingStats()
	_, _, _, ok = c.Percentiles()
	assert.False(t, ok)
	assert.Equal(t, uint64(100), c.Samples())
}

func TestPOfSingle(t *testing.T) {
	assert.Equal(t, 7, POf([]int{7}, 0.01))
}

func TestWarmup(t *testing.T) {
	w := NewWarmupChecker(0)
	assert.True(t, w.Check())
	w = NewWarmupChecker(time.Hour)
	w.Start()
	assert.False(t, w.Check())
}
