package merger

import "sync/atomic"

type mpscNode[T any] struct {
	next  atomic.Pointer[mpscNode[T]]
	value T
}

// mpscQueue is an unbounded multi-producer single-consumer queue. push is a
// single atomic swap and never waits on other producers. A push that has
// swapped the tail but not yet linked its node is invisible to pop until the
// link lands.
type mpscQueue[T any] struct {
	head *mpscNode[T]
	tail atomic.Pointer[mpscNode[T]]
}

func newMpscQueue[T any]() *mpscQueue[T] {
	stub := &mpscNode[T]{}
	q := &mpscQueue[T]{head: stub}
	q.tail.Store(stub)
	return q
}

func (q *mpscQueue[T]) push(v T) {
	n := &mpscNode[T]{value: v}
	prev := q.tail.Swap(n)
	prev.next.Store(n)
}

// pop must only be called by the consumer.
func (q *mpscQueue[T]) pop() (T, bool) {
	var zero T
	next := q.head.next.Load()
	if next == nil {
		return zero, false
	}
	q.head = next
	v := next.value
	next.value = zero
	return v, true
}
