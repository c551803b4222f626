package commtypes

import (
	"fmt"
	"math"
)

const (
	// MaxTs marks a source that will never produce again.
	MaxTs int64 = math.MaxInt64
)

// Lag returns later-earlier, or 0 when later is not after earlier, without
// overflowing for any pair of timestamps.
func Lag(later, earlier int64) uint64 {
	if later <= earlier {
		return 0
	}
	return uint64(later) - uint64(earlier)
}

// Entry is an immutable timestamped message. The source token is assigned by
// the consumer handle the entry was submitted through and is only meaningful
// to the engine that owns that handle.
type Entry[M any] struct {
	message     M
	businessTs  int64
	systemTs    int64
	sourceToken uint64
}

func NewEntry[M any](msg M, businessTs int64, systemTs int64) Entry[M] {
	return Entry[M]{
		message:    msg,
		businessTs: businessTs,
		systemTs:   systemTs,
	}
}

func (e Entry[M]) WithSource(token uint64) Entry[M] {
	e.sourceToken = token
	return e
}

func (e Entry[M]) Message() M          { return e.message }
func (e Entry[M]) BusinessTs() int64   { return e.businessTs }
func (e Entry[M]) SystemTs() int64     { return e.systemTs }
func (e Entry[M]) SourceToken() uint64 { return e.sourceToken }

func (e Entry[M]) String() string {
	return fmt.Sprintf("Entry: {Msg: %v, BusinessTs: %d, SystemTs: %d, Source: %d}",
		e.message, e.businessTs, e.systemTs, e.sourceToken)
}

// Comparator orders messages that share a business timestamp. It returns a
// negative number, zero or a positive number like cmp.Compare.
type Comparator[M any] func(a, b M) int

// NoOrder treats every pair of messages as equal.
func NoOrder[M any]() Comparator[M] {
	return func(a, b M) int { return 0 }
}

// Then chains c2 after c. A nil receiver or argument is skipped.
func (c Comparator[M]) Then(c2 Comparator[M]) Comparator[M] {
	if c == nil {
		return c2
	}
	if c2 == nil {
		return c
	}
	return func(a, b M) int {
		if r := c(a, b); r != 0 {
			return r
		}
		return c2(a, b)
	}
}

// EntryComparator orders entries by business timestamp and falls back to c
// on ties.
func EntryComparator[M any](c Comparator[M]) func(a, b Entry[M]) int {
	return func(a, b Entry[M]) int {
		if a.businessTs < b.businessTs {
			return -1
		} else if a.businessTs > b.businessTs {
			return 1
		}
		if c == nil {
			return 0
		}
		return c(a.message, b.message)
	}
}
