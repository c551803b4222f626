package stats

import (
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/exp/constraints"
	"golang.org/x/exp/slices"

	"syncmerge-stream/pkg/utils/syncutils"
)

const (
	DEFAULT_MIN_REPORT_SAMPLES = 200
	DEFAULT_COLLECT_DURATION   = time.Duration(10) * time.Second
)

// POf returns the percent-th percentile of a sorted slice.
func POf[E constraints.Ordered](t []E, percent float64) E {
	idx := int(float64(len(t))*percent+0.5) - 1
	if idx < 0 {
		idx = 0
	}
	return t[idx]
}

// StatsCollector keeps samples and logs p50/p90/p99 once enough samples
// have arrived and the report interval has passed.
type StatsCollector[E constraints.Ordered] struct {
	tag                string
	data               []E
	report_timer       ReportTimer
	min_report_samples uint32
	reported           uint64
}

func NewStatsCollector[E constraints.Ordered](tag string, reportInterval time.Duration) StatsCollector[E] {
	return StatsCollector[E]{
		data:               make([]E, 0, 128),
		report_timer:       NewReportTimer(reportInterval),
		tag:                tag,
		min_report_samples: DEFAULT_MIN_REPORT_SAMPLES,
	}
}

func (c *StatsCollector[E]) AddSample(sample E) {
	c.data = append(c.data, sample)
	if uint32(len(c.data)) >= c.min_report_samples && c.report_timer.Check() {
		c.flush(c.report_timer.Mark())
	}
}

func (c *StatsCollector[E]) flush(dur time.Duration) {
	slices.Sort(c.data)
	logReport(c.tag, dur, c.data)
	c.reported += uint64(len(c.data))
	c.data = make([]E, 0, c.min_report_samples)
}

// Percentiles returns p50, p90 and p99 over the pending samples.
func (c *StatsCollector[E]) Percentiles() (p50, p90, p99 E, ok bool) {
	if len(c.data) == 0 {
		return p50, p90, p99, false
	}
	sorted := slices.Clone(c.data)
	slices.Sort(sorted)
	return POf(sorted, 0.5), POf(sorted, 0.9), POf(sorted, 0.99), true
}

// Samples is the number of samples seen, reported or pending.
func (c *StatsCollector[E]) Samples() uint64 {
	return c.reported + uint64(len(c.data))
}

func (c *StatsCollector[E]) PrintRemainingStats() {
	if len(c.data) > 0 {
		c.flush(c.report_timer.Mark())
	}
}

func logReport[E constraints.Ordered](tag string, dur time.Duration, sorted []E) {
	log.Info().
		Str("tag", tag).
		Int("samples", len(sorted)).
		Dur("dur", dur).
		Interface("p50", POf(sorted, 0.5)).
		Interface("p90", POf(sorted, 0.9)).
		Interface("p99", POf(sorted, 0.99)).
		Msg("stats")
}

type ConcurrentStatsCollector[E constraints.Ordered] struct {
	mu syncutils.Mutex
	StatsCollector[E]
}

func NewConcurrentStatsCollector[E constraints.Ordered](tag string, duration time.Duration) *ConcurrentStatsCollector[E] {
	return &ConcurrentStatsCollector[E]{
		StatsCollector: NewStatsCollector[E](tag, duration),
	}
}

func (c *ConcurrentStatsCollector[E]) AddSample(sample E) {
	c.mu.Lock()
	c.StatsCollector.AddSample(sample)
	c.mu.Unlock()
}

func (c *ConcurrentStatsCollector[E]) Percentiles() (p50, p90, p99 E, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.StatsCollector.Percentiles()
}

func (c *ConcurrentStatsCollector[E]) PrintRemainingStats() {
	c.mu.Lock()
	c.StatsCollector.PrintRemainingStats()
	c.mu.Unlock()
}

// Warmup tells whether the warmup period since Start has passed.
type Warmup struct {
	initial     time.Time
	warmupTime  time.Duration
	afterWarmup bool
}

func NewWarmupChecker(warmupTime time.Duration) Warmup {
	return Warmup{
		warmupTime:  warmupTime,
		afterWarmup: warmupTime == 0,
	}
}

func (w *Warmup) Start() {
	w.initial = time.Now()
}

func (w *Warmup) Check() bool {
	if !w.afterWarmup && !w.initial.IsZero() && time.Since(w.initial) >= w.warmupTime {
		w.afterWarmup = true
	}
	return w.afterWarmup
}
