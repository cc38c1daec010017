package scheduler

import (
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFiresInDeadlineOrder(t *testing.T) {
	s := New(nil)
	defer s.Stop()

	var mu sync.Mutex
	var order []int
	record := func(v int) func() {
		return func() {
			mu.Lock()
			order = append(order, v)
			mu.Unlock()
		}
	}

	start := time.Now()
	t30, err := s.Schedule(start.Add(30*time.Millisecond), record(30))
	require.NoError(t, err)
	t20, err := s.Schedule(start.Add(20*time.Millisecond), record(20))
	require.NoError(t, err)
	t10, err := s.Schedule(start.Add(10*time.Millisecond), record(10))
	require.NoError(t, err)

	for _, task := range []*Task{t10, t20, t30} {
		select {
		case <-task.Done():
		case <-time.After(2 * time.Second):
			t.Fatal("task did not fire")
		}
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{10, 20, 30}, order)
}

func TestRandomDeadlinesNonDecreasing(t *testing.T) {
	if testing.Short() {
		t.Skip("takes over a second")
	}

	s := New(nil)
	defer s.Stop()

	const n = 100
	var mu sync.Mutex
	var fired []time.Time
	var wg sync.WaitGroup
	wg.Add(n)

	base := time.Now()
	for i := 0; i < n; i++ {
		at := base.Add(time.Duration(1000+rand.Intn(101)) * time.Millisecond)
		_, err := s.Schedule(at, func() {
			mu.Lock()
			fired = append(fired, at)
			mu.Unlock()
			wg.Done()
		})
		require.NoError(t, err)
	}

	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, fired, n)
	for i := 1; i < n; i++ {
		assert.False(t, fired[i].Before(fired[i-1]), "task %d fired before its predecessor", i)
	}
}

func TestSameInstantKeepsInsertionOrder(t *testing.T) {
	s := New(nil)
	defer s.Stop()

	at := time.Now().Add(5 * time.Millisecond)
	var mu sync.Mutex
	var order []int
	var last *Task
	for i := 0; i < 20; i++ {
		i := i
		task, err := s.Schedule(at, func() {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
		})
		require.NoError(t, err)
		last = task
	}

	<-last.Done()
	mu.Lock()
	defer mu.Unlock()
	for i, v := range order {
		assert.Equal(t, i, v)
	}
}

func TestCancel(t *testing.T) {
	s := New(nil)
	defer s.Stop()

	var ran atomic.Bool
	task, err := s.After(20*time.Millisecond, func() { ran.Store(true) })
	require.NoError(t, err)

	assert.True(t, task.Cancel())
	assert.False(t, task.Cancel())
	assert.True(t, task.Cancelled())

	later, err := s.After(40*time.Millisecond, func() {})
	require.NoError(t, err)
	<-later.Done()

	assert.False(t, ran.Load())
}

func TestCancelRemovesFromHeap(t *testing.T) {
	s := New(nil)
	defer s.Stop()

	var tasks []*Task
	for i := 0; i < 50; i++ {
		task, err := s.After(time.Hour+time.Duration(i)*time.Millisecond, func() {})
		require.NoError(t, err)
		tasks = append(tasks, task)
	}
	require.Equal(t, 50, s.Len())

	for i := 0; i < len(tasks); i += 2 {
		require.True(t, tasks[i].Cancel())
	}
	assert.Equal(t, 25, s.Len())

	for _, task := range tasks {
		task.Cancel()
	}
	assert.Zero(t, s.Len())
}

func TestStopDropsPending(t *testing.T) {
	s := New(nil)

	var ran atomic.Bool
	task, err := s.After(time.Hour, func() { ran.Store(true) })
	require.NoError(t, err)

	s.Stop()
	s.Stop()

	select {
	case <-task.Done():
	default:
		t.Fatal("pending task was not released")
	}
	assert.True(t, task.Cancelled())
	assert.False(t, ran.Load())

	_, err = s.After(time.Millisecond, func() {})
	assert.ErrorIs(t, err, ErrStopped)
}

func TestPanicDoesNotKillLoop(t *testing.T) {
	s := New(nil)
	defer s.Stop()

	boom, err := s.After(time.Millisecond, func() { panic("boom") })
	require.NoError(t, err)
	<-boom.Done()
	assert.False(t, boom.Cancelled())

	var ran atomic.Bool
	next, err := s.After(time.Millisecond, func() { ran.Store(true) })
	require.NoError(t, err)
	<-next.Done()
	assert.True(t, ran.Load())
}
