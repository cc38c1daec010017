// Package queue provides an unbounded lock-free MPSC queue (multiple
// producers, single consumer).
//
// Push is safe from any number of goroutines. Pop, Item and Len-based
// emptiness checks are meant for the one goroutine that currently owns the
// consuming side.
package queue

import (
	"sync/atomic"
)

// MPSC is an intrusive linked-list queue. The zero value is not usable,
// call NewMPSC.
type MPSC[T any] struct {
	head   atomic.Pointer[node[T]]
	tail   atomic.Pointer[node[T]]
	length atomic.Int64
}

type node[T any] struct {
	value T
	next  atomic.Pointer[node[T]]
}

// NewMPSC creates an empty queue.
func NewMPSC[T any]() *MPSC[T] {
	q := &MPSC[T]{}
	stub := &node[T]{}
	q.head.Store(stub)
	q.tail.Store(stub)
	return q
}

// Push appends value. It never blocks.
func (q *MPSC[T]) Push(value T) {
	n := &node[T]{value: value}
	q.length.Add(1)
	prev := q.head.Swap(n)
	prev.next.Store(n)
}

// Pop removes the oldest value. ok is false when the queue is empty or a
// producer is between its swap and link steps.
func (q *MPSC[T]) Pop() (value T, ok bool) {
	tail := q.tail.Load()
	next := tail.next.Load()
	if next == nil {
		return value, false
	}

	value = next.value
	var zero T
	next.value = zero // let the GC reclaim the payload

	q.tail.Store(next)
	q.length.Add(-1)
	return value, true
}

// Empty reports whether there is no linked item. It is exact for the
// consumer and a best-effort snapshot for anybody else.
func (q *MPSC[T]) Empty() bool {
	return q.tail.Load().next.Load() == nil
}

// Len returns the number of pushed but not yet popped values. A value may
// be counted slightly before Pop can observe it.
func (q *MPSC[T]) Len() int64 {
	return q.length.Load()
}
