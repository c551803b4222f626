package sync_queue

import (
	"sync/atomic"
)

// cache line padding between the producer and consumer cursors
type pad [56]byte

// fifo is a single-producer single-consumer queue. offer is called from the
// producer goroutine only, poll and peek from the consumer goroutine only;
// size may be called from anywhere.
type fifo[T any] interface {
	offer(v T) bool
	poll() (T, bool)
	peek() (T, bool)
	size() int
}

// spscRing is a bounded lock-free ring holding exactly capacity items.
type spscRing[T any] struct {
	buf      []T
	capacity uint64
	_        pad
	head     atomic.Uint64
	_        pad
	tail     atomic.Uint64
	_        pad
}

var _ = fifo[int](&spscRing[int]{})

func newSpscRing[T any](capacity int) *spscRing[T] {
	return &spscRing[T]{
		buf:      make([]T, capacity),
		capacity: uint64(capacity),
	}
}

func (r *spscRing[T]) offer(v T) bool {
	t := r.tail.Load()
	if t-r.head.Load() >= r.capacity {
		return false
	}
	r.buf[t%r.capacity] = v
	r.tail.Store(t + 1)
	return true
}

func (r *spscRing[T]) poll() (T, bool) {
	var zero T
	h := r.head.Load()
	if h == r.tail.Load() {
		return zero, false
	}
	idx := h % r.capacity
	v := r.buf[idx]
	r.buf[idx] = zero
	r.head.Store(h + 1)
	return v, true
}

func (r *spscRing[T]) peek() (T, bool) {
	h := r.head.Load()
	if h == r.tail.Load() {
		var zero T
		return zero, false
	}
	return r.buf[h%r.capacity], true
}

func (r *spscRing[T]) size() int {
	// head first: the tail read afterwards can only be larger
	h := r.head.Load()
	return int(r.tail.Load() - h)
}

const chunkSize = 1024

type chunk[T any] struct {
	items [chunkSize]T
	next  atomic.Pointer[chunk[T]]
}

// spscLinked is an unbounded lock-free queue made of fixed size chunks.
// A chunk is linked before any item in it is published, so a consumer that
// observes the tail has also observed the link.
type spscLinked[T any] struct {
	// producer side
	tailChunk *chunk[T]
	tailIdx   int
	_         pad
	tail      atomic.Uint64
	_         pad
	// consumer side
	headChunk *chunk[T]
	headIdx   int
	_         pad
	head      atomic.Uint64
	_         pad
}

var _ = fifo[int](&spscLinked[int]{})

func newSpscLinked[T any]() *spscLinked[T] {
	c := &chunk[T]{}
	return &spscLinked[T]{
		tailChunk: c,
		headChunk: c,
	}
}

func (q *spscLinked[T]) offer(v T) bool {
	if q.tailIdx == chunkSize {
		n := &chunk[T]{}
		q.tailChunk.next.Store(n)
		q.tailChunk = n
		q.tailIdx = 0
	}
	q.tailChunk.items[q.tailIdx] = v
	q.tailIdx++
	q.tail.Add(1)
	return true
}

func (q *spscLinked[T]) advanceHead() {
	if q.headIdx == chunkSize {
		q.headChunk = q.headChunk.next.Load()
		q.headIdx = 0
	}
}

func (q *spscLinked[T]) poll() (T, bool) {
	var zero T
	h := q.head.Load()
	if h == q.tail.Load() {
		return zero, false
	}
	q.advanceHead()
	v := q.headChunk.items[q.headIdx]
	q.headChunk.items[q.headIdx] = zero
	q.headIdx++
	q.head.Store(h + 1)
	return v, true
}

func (q *spscLinked[T]) peek() (T, bool) {
	if q.head.Load() == q.tail.Load() {
		var zero T
		return zero, false
	}
	q.advanceHead()
	return q.headChunk.items[q.headIdx], true
}

func (q *spscLinked[T]) size() int {
	h := q.head.Load()
	return int(q.tail.Load() - h)
}
