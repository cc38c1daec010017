// Package scheduler runs deferred tasks on a single timer goroutine.
//
// Tasks are kept in a min-heap ordered by fire time; tasks with the same fire
// time run in the order they were scheduled. Tasks execute on the scheduler
// goroutine itself, so they must be short or hand their work off elsewhere.
//
// Stop joins the timer goroutine. Tasks still pending at that point are
// dropped: they never run, their Done channel is closed and Cancelled
// reports true.
package scheduler

import (
	"container/heap"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"
)

// ErrStopped is returned when scheduling on a stopped Scheduler.
var ErrStopped = errors.New("scheduler stopped")

const (
	taskPending int32 = iota
	taskRunning
	taskDone
	taskCancelled
)

// Task is a handle on a scheduled action.
type Task struct {
	at     time.Time
	seq    uint64
	index  int
	action func()
	state  atomic.Int32
	done   chan struct{}
	sched  *Scheduler
}

// At returns the fire time.
func (t *Task) At() time.Time {
	return t.at
}

// Cancel prevents a pending task from running and takes it out of the heap.
// It returns false if the task already started, finished or was cancelled.
func (t *Task) Cancel() bool {
	if !t.state.CompareAndSwap(taskPending, taskCancelled) {
		return false
	}
	close(t.done)
	if t.sched != nil {
		t.sched.remove(t)
	}
	return true
}

// Cancelled reports whether the task was cancelled or dropped.
func (t *Task) Cancelled() bool {
	return t.state.Load() == taskCancelled
}

// Done is closed once the task ran, was cancelled or was dropped.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Scheduler owns the timer goroutine.
type Scheduler struct {
	mu      sync.Mutex
	tasks   taskHeap
	seq     uint64
	stopped bool

	wake chan struct{}
	quit chan struct{}
	wg   sync.WaitGroup

	now func() time.Time
	log *slog.Logger
}

// New starts a Scheduler. A nil logger discards panics raised by tasks
// after recovering them.
func New(log *slog.Logger) *Scheduler {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	s := &Scheduler{
		wake: make(chan struct{}, 1),
		quit: make(chan struct{}),
		now:  time.Now,
		log:  log,
	}
	s.wg.Add(1)
	go s.loop()
	return s
}

// Schedule registers action to run at the given time.
func (s *Scheduler) Schedule(at time.Time, action func()) (*Task, error) {
	if action == nil {
		return nil, errors.New("scheduler: nil action")
	}

	t := &Task{at: at, action: action, done: make(chan struct{}), sched: s}

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		t.state.Store(taskCancelled)
		close(t.done)
		return t, ErrStopped
	}
	s.seq++
	t.seq = s.seq
	heap.Push(&s.tasks, t)
	earliest := s.tasks[0] == t
	s.mu.Unlock()

	if earliest {
		s.signal()
	}
	return t, nil
}

// After registers action to run once d has elapsed.
func (s *Scheduler) After(d time.Duration, action func()) (*Task, error) {
	return s.Schedule(s.now().Add(d), action)
}

// Len returns the number of tasks waiting to fire.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

func (s *Scheduler) remove(t *Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.index >= 0 && t.index < len(s.tasks) && s.tasks[t.index] == t {
		heap.Remove(&s.tasks, t.index)
	}
}

// Stop terminates the timer goroutine and drops pending tasks. It is safe to
// call more than once.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		s.wg.Wait()
		return
	}
	s.stopped = true
	pending := s.tasks
	s.tasks = nil
	s.mu.Unlock()

	close(s.quit)
	s.wg.Wait()

	for _, t := range pending {
		t.Cancel()
	}
}

func (s *Scheduler) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Scheduler) loop() {
	defer s.wg.Done()

	timer := time.NewTimer(time.Hour)
	defer timer.Stop()

	for {
		wait, ok := s.runDue()
		if !ok {
			return
		}

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(wait)

		select {
		case <-s.quit:
			return
		case <-s.wake:
		case <-timer.C:
		}
	}
}

// runDue executes every task whose fire time has passed and returns how
// long to sleep until the next one.
func (s *Scheduler) runDue() (time.Duration, bool) {
	for {
		s.mu.Lock()
		if s.stopped {
			s.mu.Unlock()
			return 0, false
		}
		if len(s.tasks) == 0 {
			s.mu.Unlock()
			return time.Hour, true
		}
		next := s.tasks[0]
		if wait := next.at.Sub(s.now()); wait > 0 {
			s.mu.Unlock()
			return wait, true
		}
		heap.Pop(&s.tasks)
		s.mu.Unlock()

		s.run(next)
	}
}

func (s *Scheduler) run(t *Task) {
	if !t.state.CompareAndSwap(taskPending, taskRunning) {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("scheduled task panicked",
				"panic", fmt.Sprint(r),
				"stack", string(debug.Stack()))
		}
		t.state.Store(taskDone)
		close(t.done)
	}()
	t.action()
}

type taskHeap []*Task

func (h taskHeap) Len() int { return len(h) }

func (h taskHeap) Less(i, j int) bool {
	if h[i].at.Equal(h[j].at) {
		return h[i].seq < h[j].seq
	}
	return h[i].at.Before(h[j].at)
}

func (h taskHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *taskHeap) Push(x any) {
	t := x.(*Task)
	t.index = len(*h)
	*h = append(*h, t)
}

func (h *taskHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.index = -1
	*h = old[:n-1]
	return t
}
