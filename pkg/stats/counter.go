package stats

import (
	"sync/atomic"

	"github.com/rs/zerolog"
)

// Counter is not safe for concurrent use.
type Counter struct {
	tag   string
	count uint64
}

func NewCounter(tag string) Counter {
	return Counter{
		tag:   tag,
		count: 0,
	}
}

func (c *Counter) Tick(count uint32) {
	c.count += uint64(count)
}

func (c *Counter) GetCount() uint64 {
	return c.count
}

func (c *Counter) Tag() string {
	return c.tag
}

func (c *Counter) Report(e *zerolog.Event) *zerolog.Event {
	return e.Uint64(c.tag, c.count)
}

type AtomicCounter struct {
	tag   string
	count atomic.Uint64
}

func NewAtomicCounter(tag string) *AtomicCounter {
	return &AtomicCounter{
		tag: tag,
	}
}

func (c *AtomicCounter) Tick(count uint32) {
	c.count.Add(uint64(count))
}

func (c *AtomicCounter) GetCount() uint64 {
	return c.count.Load()
}

func (c *AtomicCounter) Report(e *zerolog.Event) *zerolog.Event {
	return e.Uint64(c.tag, c.count.Load())
}
