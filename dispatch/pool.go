package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"runtime/debug"
	"sync"
)

// Pool is a fixed set of worker goroutines sharing one unbounded run queue.
type Pool struct {
	name       string
	workers    int
	throughput int
	log        *slog.Logger

	mu      sync.Mutex
	cond    *sync.Cond
	queue   []Runnable
	head    int
	stopped bool

	wg sync.WaitGroup
}

// NewPool starts a pool. Non-positive workers means GOMAXPROCS, non-positive
// throughput means DefaultThroughput.
func NewPool(name string, workers, throughput int, log *slog.Logger) *Pool {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if throughput <= 0 {
		throughput = DefaultThroughput
	}
	if log == nil {
		log = slog.Default()
	}

	p := &Pool{
		name:       name,
		workers:    workers,
		throughput: throughput,
		log:        log.With("executor", name),
	}
	p.cond = sync.NewCond(&p.mu)

	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.worker()
	}
	return p
}

// Name implements Executor.
func (p *Pool) Name() string { return p.name }

// Kind implements Executor.
func (p *Pool) Kind() Kind { return KindPool }

// Workers returns the number of worker goroutines.
func (p *Pool) Workers() int { return p.workers }

// Attach implements Executor. Pool workers are shared so there is nothing to
// allocate.
func (p *Pool) Attach(Runnable) {}

// Detach implements Executor.
func (p *Pool) Detach(Runnable) {}

// Execute implements Executor.
func (p *Pool) Execute(r Runnable) error {
	if !r.TrySchedule() {
		return nil
	}
	if err := p.enqueue(r); err != nil {
		r.Unschedule()
		return err
	}
	return nil
}

// Pending returns the run-queue length.
func (p *Pool) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue) - p.head
}

// Shutdown implements Executor. Runnables already queued are still run
// before the workers exit.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	p.stopped = true
	p.cond.Broadcast()
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("executor %s: %w", p.name, ctx.Err())
	}
}

// enqueue pushes an already scheduled runnable.
func (p *Pool) enqueue(r Runnable) error {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return ErrStopped
	}
	p.queue = append(p.queue, r)
	p.mu.Unlock()
	p.cond.Signal()
	return nil
}

func (p *Pool) next() (Runnable, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for p.head == len(p.queue) {
		if p.stopped {
			return nil, false
		}
		p.cond.Wait()
	}

	r := p.queue[p.head]
	p.queue[p.head] = nil
	p.head++
	if p.head == len(p.queue) {
		p.queue = p.queue[:0]
		p.head = 0
	}
	return r, true
}

func (p *Pool) worker() {
	defer p.wg.Done()

	for {
		r, ok := p.next()
		if !ok {
			return
		}
		if p.turn(r) {
			p.requeue(r)
		}
	}
}

// turn runs one batch and reports whether r must go back on the queue.
func (p *Pool) turn(r Runnable) (again bool) {
	defer func() {
		if rec := recover(); rec != nil {
			p.log.Error("runnable panicked",
				"panic", fmt.Sprint(rec),
				"stack", string(debug.Stack()))
			r.Unschedule()
			again = r.HasMessages() && r.TrySchedule()
		}
	}()
	return drain(r, p.throughput, true)
}

// requeue puts r back even after Shutdown so that a runnable that still owns
// its scheduled flag is never lost.
func (p *Pool) requeue(r Runnable) {
	p.mu.Lock()
	p.queue = append(p.queue, r)
	p.mu.Unlock()
	p.cond.Signal()
}
