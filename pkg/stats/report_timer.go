package stats

import (
	"time"
)

// ReportTimer starts on its first Check and fires every duration after that.
type ReportTimer struct {
	now      func() time.Time
	lastTs   time.Time
	duration time.Duration
}

func NewReportTimer(duration time.Duration) ReportTimer {
	return ReportTimer{
		now:      time.Now,
		duration: duration,
	}
}

func (r *ReportTimer) Check() bool {
	now := r.now()
	if r.lastTs.IsZero() {
		r.lastTs = now
	}
	return now.Sub(r.lastTs) >= r.duration
}

// Mark returns the time since the previous mark and restarts the interval.
func (r *ReportTimer) Mark() time.Duration {
	now := r.now()
	if r.lastTs.IsZero() {
		r.lastTs = now
	}
	duration := now.Sub(r.lastTs)
	r.lastTs = now
	return duration
}
