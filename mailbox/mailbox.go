// Package mailbox implements the per-actor message queue.
//
// A Mailbox has two unbounded FIFO lanes: a system lane for runtime control
// messages and a user lane for application messages. The system lane is
// always drained first. Producers never block. Consumption happens from a
// single goroutine at a time, which is enforced by the scheduled flag: only
// the caller that wins TrySchedule may hand the mailbox to a worker.
package mailbox

import (
	"sync/atomic"

	"github.com/najoast/troupe/queue"
)

// Lane identifies the queue a message came from.
type Lane uint8

const (
	LaneUser Lane = iota
	LaneSystem
)

// Mailbox is safe for concurrent producers.
type Mailbox[T any] struct {
	system *queue.MPSC[T]
	user   *queue.MPSC[T]

	scheduled atomic.Bool
	closed    atomic.Bool
}

// New creates an empty mailbox.
func New[T any]() *Mailbox[T] {
	return &Mailbox[T]{
		system: queue.NewMPSC[T](),
		user:   queue.NewMPSC[T](),
	}
}

// Push appends a user message.
func (m *Mailbox[T]) Push(v T) {
	m.user.Push(v)
}

// PushSystem appends a system message.
func (m *Mailbox[T]) PushSystem(v T) {
	m.system.Push(v)
}

// Pop returns the next message, system lane first. Consumer only.
func (m *Mailbox[T]) Pop() (v T, lane Lane, ok bool) {
	if v, ok = m.system.Pop(); ok {
		return v, LaneSystem, true
	}
	if v, ok = m.user.Pop(); ok {
		return v, LaneUser, true
	}
	return v, LaneUser, false
}

// PopSystem returns the next system message only. Consumer only.
func (m *Mailbox[T]) PopSystem() (T, bool) {
	return m.system.Pop()
}

// HasMessages reports whether either lane holds a linked message.
func (m *Mailbox[T]) HasMessages() bool {
	return !m.system.Empty() || !m.user.Empty()
}

// Len returns the number of queued messages across both lanes.
func (m *Mailbox[T]) Len() int {
	return int(m.system.Len() + m.user.Len())
}

// TrySchedule marks the mailbox as handed to a worker. It returns false if
// it already was, in which case the caller must not dispatch it again.
func (m *Mailbox[T]) TrySchedule() bool {
	return m.scheduled.CompareAndSwap(false, true)
}

// Unschedule clears the scheduled mark. Only the goroutine that currently
// owns the mailbox may call it.
func (m *Mailbox[T]) Unschedule() {
	m.scheduled.Store(false)
}

// Scheduled reports the current mark.
func (m *Mailbox[T]) Scheduled() bool {
	return m.scheduled.Load()
}

// Close marks the mailbox as belonging to a stopped owner. Pushes are still
// accepted so that late messages can be drained to dead letters.
func (m *Mailbox[T]) Close() {
	m.closed.Store(true)
}

// Closed reports whether Close was called.
func (m *Mailbox[T]) Closed() bool {
	return m.closed.Load()
}
