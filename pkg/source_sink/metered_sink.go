package source_sink

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"syncmerge-stream/pkg/commtypes"
	"syncmerge-stream/pkg/stats"
	"syncmerge-stream/pkg/utils/syncutils"
)

// MeteredSink records how long each Produce takes and, once the warmup has
// passed, how far behind the wall clock an entry's system time is when it
// reaches the sink.
type MeteredSink[M any] struct {
	Sink[M]

	clock     Clock
	produced  *stats.AtomicCounter
	lat       *stats.ConcurrentStatsCollector[int64]
	staleness *stats.ConcurrentStatsCollector[int64]

	mu     syncutils.Mutex
	warmup stats.Warmup
}

var _ = Sink[int](&MeteredSink[int]{})

func NewMeteredSink[M any](sink Sink[M], name string, warmup time.Duration, clock Clock) *MeteredSink[M] {
	if clock == nil {
		clock = WallClockMillis
	}
	s := &MeteredSink[M]{
		Sink:      sink,
		clock:     clock,
		produced:  stats.NewAtomicCounter("produced"),
		lat:       stats.NewConcurrentStatsCollector[int64](name+"_produce_us", stats.DEFAULT_COLLECT_DURATION),
		staleness: stats.NewConcurrentStatsCollector[int64](name+"_staleness_ms", stats.DEFAULT_COLLECT_DURATION),
		warmup:    stats.NewWarmupChecker(warmup),
	}
	s.warmup.Start()
	return s
}

func (s *MeteredSink[M]) Produce(ctx context.Context, e commtypes.Entry[M]) error {
	s.mu.Lock()
	measure := s.warmup.Check()
	s.mu.Unlock()
	if measure && e.SystemTs() != 0 {
		s.staleness.AddSample(s.clock() - e.SystemTs())
	}
	procStart := time.Now()
	err := s.Sink.Produce(ctx, e)
	s.lat.AddSample(time.Since(procStart).Microseconds())
	if err == nil {
		s.produced.Tick(1)
	}
	return err
}

func (s *MeteredSink[M]) GetCount() uint64 {
	return s.produced.GetCount()
}

// Staleness returns p50, p90 and p99 of the samples not yet logged.
func (s *MeteredSink[M]) Staleness() (p50, p90, p99 int64, ok bool) {
	return s.staleness.Percentiles()
}

func (s *MeteredSink[M]) Report(e *zerolog.Event) *zerolog.Event {
	s.lat.PrintRemainingStats()
	s.staleness.PrintRemainingStats()
	return s.produced.Report(e)
}
