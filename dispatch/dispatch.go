// Package dispatch provides the execution contexts that drive actor
// mailboxes.
//
// An Executor receives Runnables (in practice actor cells) and runs them in
// bounded batches. Coalescing happens through the Runnable's own scheduled
// flag: Execute only hands a Runnable to a worker when TrySchedule wins, so
// at most one goroutine runs a given Runnable at any time.
package dispatch

import (
	"context"
	"errors"
	"fmt"
)

// ErrStopped is returned by Execute after Shutdown.
var ErrStopped = errors.New("executor stopped")

// Kind names an executor implementation.
type Kind string

const (
	KindPool   Kind = "pool"
	KindPinned Kind = "pinned"
)

// DefaultThroughput bounds how many messages a Runnable handles per turn.
const DefaultThroughput = 10

// Runnable is a unit of work with its own scheduling flag.
type Runnable interface {
	// TrySchedule marks the runnable as owned by a worker. Only the caller
	// that gets true may run it.
	TrySchedule() bool

	// Unschedule releases ownership.
	Unschedule()

	// HasMessages reports whether there is pending work.
	HasMessages() bool

	// Run processes at most throughput items and reports whether work
	// remains. It must not panic.
	Run(throughput int) bool
}

// Executor runs Runnables.
type Executor interface {
	// Name returns the registry key of the executor.
	Name() string

	// Kind returns the implementation kind.
	Kind() Kind

	// Attach binds a runnable to the executor before its first Execute.
	Attach(r Runnable)

	// Detach releases whatever Attach allocated.
	Detach(r Runnable)

	// Execute schedules r unless it is already scheduled.
	Execute(r Runnable) error

	// Shutdown stops accepting work and waits for the workers to exit.
	Shutdown(ctx context.Context) error
}

// Spec describes one execution context to build.
type Spec struct {
	Name       string
	Kind       Kind
	Workers    int
	Throughput int
}

func (s Spec) String() string {
	return fmt.Sprintf("%s(%s, workers=%d, throughput=%d)", s.Name, s.Kind, s.Workers, s.Throughput)
}

// drain runs r until it has no more work or another goroutine takes over.
// It returns true when r was handed back still scheduled and must be queued
// again by the caller.
func drain(r Runnable, throughput int, yield bool) bool {
	for {
		if r.Run(throughput) {
			if yield {
				return true
			}
			continue
		}
		r.Unschedule()
		if !r.HasMessages() || !r.TrySchedule() {
			return false
		}
		if yield {
			return true
		}
	}
}
