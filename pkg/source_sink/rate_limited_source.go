package source_sink

import (
	"syncmerge-stream/pkg/common_errors"
	"syncmerge-stream/pkg/commtypes"

	"golang.org/x/time/rate"
)

// RateLimitedSource caps how fast an inner source is drained, e.g. to replay
// a recorded data set at roughly its original pace. While the limiter has no
// token the source reports itself idle.
type RateLimitedSource[M any] struct {
	inner   Source[M]
	limiter *rate.Limiter
	clock   Clock
}

var _ = FlowSource[int](&RateLimitedSource[int]{})

func NewRateLimitedSource[M any](inner Source[M], perSecond float64, burst int) *RateLimitedSource[M] {
	if burst < 1 {
		burst = 1
	}
	return &RateLimitedSource[M]{
		inner:   inner,
		limiter: rate.NewLimiter(rate.Limit(perSecond), burst),
		clock:   WallClockMillis,
	}
}

func (s *RateLimitedSource[M]) Emit() (commtypes.Entry[M], error) {
	if !s.limiter.Allow() {
		return commtypes.Entry[M]{}, common_errors.ErrStreamEmpty
	}
	return s.inner.Emit()
}

func (s *RateLimitedSource[M]) CurrentSystemTime() int64 {
	if fs, ok := s.inner.(FlowSource[M]); ok {
		return fs.CurrentSystemTime()
	}
	return s.clock()
}
