package source_sink

import (
	"time"

	"syncmerge-stream/pkg/common_errors"
	"syncmerge-stream/pkg/commtypes"
	"syncmerge-stream/pkg/stats"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const DEFAULT_REPORT_INTERVAL = 10 * time.Second

// MeteredSource counts what a source hands out. Emit may be called from
// different scheduler workers over time, so the counters are atomic.
type MeteredSource[M any] struct {
	FlowSource[M]
	name    string
	emitted *stats.AtomicCounter
	idle    *stats.AtomicCounter
	timer   stats.ReportTimer
}

func NewMeteredSource[M any](src FlowSource[M], name string) *MeteredSource[M] {
	return &MeteredSource[M]{
		FlowSource: src,
		name:       name,
		emitted:    stats.NewAtomicCounter("emitted"),
		idle:       stats.NewAtomicCounter("idle"),
		timer:      stats.NewReportTimer(DEFAULT_REPORT_INTERVAL),
	}
}

func (s *MeteredSource[M]) Emit() (commtypes.Entry[M], error) {
	e, err := s.FlowSource.Emit()
	if err == nil {
		s.emitted.Tick(1)
	} else if common_errors.IsStreamEmptyError(err) {
		s.idle.Tick(1)
	}
	if s.timer.Check() {
		elapsed := s.timer.Mark()
		s.Report(log.Debug()).Dur("since_last", elapsed).Msg("source progress")
	}
	return e, err
}

func (s *MeteredSource[M]) GetCount() uint64 {
	return s.emitted.GetCount()
}

func (s *MeteredSource[M]) Name() string {
	return s.name
}

func (s *MeteredSource[M]) Report(e *zerolog.Event) *zerolog.Event {
	return s.idle.Report(s.emitted.Report(e.Str("source", s.name)))
}
