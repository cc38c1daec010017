package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"runtime/debug"
	"sync"
)

// Pinned gives every attached runnable its own goroutine locked to an OS
// thread. Runnables that are not attached, or arrive after their thread was
// detached, run on the fallback pool.
type Pinned struct {
	name       string
	throughput int
	fallback   *Pool
	log        *slog.Logger

	mu      sync.Mutex
	threads map[Runnable]*thread
	stopped bool

	wg sync.WaitGroup
}

type thread struct {
	wake chan struct{}
	quit chan struct{}
}

// NewPinned creates a pinned executor backed by fallback.
func NewPinned(name string, throughput int, fallback *Pool, log *slog.Logger) *Pinned {
	if throughput <= 0 {
		throughput = DefaultThroughput
	}
	if log == nil {
		log = slog.Default()
	}
	return &Pinned{
		name:       name,
		throughput: throughput,
		fallback:   fallback,
		log:        log.With("executor", name),
		threads:    make(map[Runnable]*thread),
	}
}

// Name implements Executor.
func (e *Pinned) Name() string { return e.name }

// Kind implements Executor.
func (e *Pinned) Kind() Kind { return KindPinned }

// Threads returns the number of live dedicated goroutines.
func (e *Pinned) Threads() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.threads)
}

// Attach starts the dedicated goroutine for r.
func (e *Pinned) Attach(r Runnable) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.stopped {
		return
	}
	if _, ok := e.threads[r]; ok {
		return
	}

	t := &thread{
		wake: make(chan struct{}, 1),
		quit: make(chan struct{}),
	}
	e.threads[r] = t

	e.wg.Add(1)
	go e.loop(r, t)
}

// Detach stops the dedicated goroutine once its current batch is over.
func (e *Pinned) Detach(r Runnable) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if t, ok := e.threads[r]; ok {
		delete(e.threads, r)
		close(t.quit)
	}
}

// Execute implements Executor.
func (e *Pinned) Execute(r Runnable) error {
	if !r.TrySchedule() {
		return nil
	}

	e.mu.Lock()
	t, ok := e.threads[r]
	if ok {
		// sent under the lock so Detach cannot close quit in between
		select {
		case t.wake <- struct{}{}:
		default:
		}
	}
	e.mu.Unlock()

	if ok {
		return nil
	}
	if err := e.fallback.enqueue(r); err != nil {
		r.Unschedule()
		return err
	}
	return nil
}

// Shutdown implements Executor. The fallback pool is shut down by its own
// owner.
func (e *Pinned) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	e.stopped = true
	for _, t := range e.threads {
		close(t.quit)
	}
	e.threads = make(map[Runnable]*thread)
	e.mu.Unlock()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("executor %s: %w", e.name, ctx.Err())
	}
}

func (e *Pinned) loop(r Runnable, t *thread) {
	defer e.wg.Done()

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	for {
		select {
		case <-t.wake:
			e.turn(r)
		case <-t.quit:
			// a wake that raced with Detach still owns the flag
			select {
			case <-t.wake:
				e.turn(r)
			default:
			}
			return
		}
	}
}

func (e *Pinned) turn(r Runnable) {
	defer func() {
		if rec := recover(); rec != nil {
			e.log.Error("runnable panicked",
				"panic", fmt.Sprint(rec),
				"stack", string(debug.Stack()))
			r.Unschedule()
			if r.HasMessages() && r.TrySchedule() {
				_ = e.fallback.enqueue(r)
			}
		}
	}()
	drain(r, e.throughput, false)
}
