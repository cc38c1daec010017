package dispatch

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/najoast/troupe/mailbox"
)

// counter is a Runnable over a real mailbox that records overlap and order.
type counter struct {
	box     *mailbox.Mailbox[int]
	active  atomic.Int32
	overlap atomic.Bool

	mu   sync.Mutex
	seen []int
	done chan struct{}
	want int
}

func newCounter(want int) *counter {
	return &counter{box: mailbox.New[int](), want: want, done: make(chan struct{})}
}

func (c *counter) TrySchedule() bool { return c.box.TrySchedule() }
func (c *counter) Unschedule()       { c.box.Unschedule() }
func (c *counter) HasMessages() bool { return c.box.HasMessages() }

func (c *counter) Run(throughput int) bool {
	if c.active.Add(1) != 1 {
		c.overlap.Store(true)
	}
	defer c.active.Add(-1)

	for i := 0; i < throughput; i++ {
		v, _, ok := c.box.Pop()
		if !ok {
			return false
		}
		c.mu.Lock()
		c.seen = append(c.seen, v)
		if len(c.seen) == c.want {
			close(c.done)
		}
		c.mu.Unlock()
	}
	return c.box.HasMessages()
}

func (c *counter) send(e Executor, v int) error {
	c.box.Push(v)
	return e.Execute(c)
}

func waitDone(t *testing.T, c *counter) {
	t.Helper()
	select {
	case <-c.done:
	case <-time.After(5 * time.Second):
		c.mu.Lock()
		n := len(c.seen)
		c.mu.Unlock()
		t.Fatalf("only %d of %d messages processed", n, c.want)
	}
}

func TestPoolFIFO(t *testing.T) {
	p := NewPool("test", 4, 3, nil)
	defer p.Shutdown(context.Background())

	c := newCounter(1000)
	for i := 0; i < 1000; i++ {
		require.NoError(t, c.send(p, i))
	}
	waitDone(t, c)

	for i, v := range c.seen {
		require.Equal(t, i, v)
	}
	assert.False(t, c.overlap.Load())
}

func TestPoolAtMostOneUnderConcurrentProducers(t *testing.T) {
	p := NewPool("test", 8, 5, nil)
	defer p.Shutdown(context.Background())

	const producers, per = 16, 500
	c := newCounter(producers * per)

	var wg sync.WaitGroup
	for g := 0; g < producers; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < per; i++ {
				_ = c.send(p, g*per+i)
			}
		}(g)
	}
	wg.Wait()
	waitDone(t, c)

	assert.False(t, c.overlap.Load())

	// per-producer order is preserved
	last := make(map[int]int)
	for _, v := range c.seen {
		g := v / per
		if prev, ok := last[g]; ok {
			assert.Greater(t, v, prev)
		}
		last[g] = v
	}
}

func TestPoolManyRunnablesInParallel(t *testing.T) {
	p := NewPool("test", 4, DefaultThroughput, nil)
	defer p.Shutdown(context.Background())

	cs := make([]*counter, 50)
	for i := range cs {
		cs[i] = newCounter(100)
	}
	for n := 0; n < 100; n++ {
		for _, c := range cs {
			require.NoError(t, c.send(p, n))
		}
	}
	for _, c := range cs {
		waitDone(t, c)
		assert.False(t, c.overlap.Load())
	}
}

func TestExecuteCoalesces(t *testing.T) {
	p := NewPool("test", 1, 1, nil)
	c := newCounter(1)

	require.True(t, c.TrySchedule())
	c.box.Push(1)
	require.NoError(t, p.Execute(c))
	assert.Equal(t, 0, p.Pending(), "already scheduled runnables are not queued twice")

	require.NoError(t, p.Shutdown(context.Background()))
	assert.ErrorIs(t, p.Execute(newCounter(1)), ErrStopped)
}

func TestPinnedRunsOnDedicatedThread(t *testing.T) {
	fallback := NewPool("default", 2, DefaultThroughput, nil)
	defer fallback.Shutdown(context.Background())

	e := NewPinned("pinned", 4, fallback, nil)
	c := newCounter(200)
	e.Attach(c)
	assert.Equal(t, 1, e.Threads())

	for i := 0; i < 200; i++ {
		require.NoError(t, c.send(e, i))
	}
	waitDone(t, c)
	for i, v := range c.seen {
		require.Equal(t, i, v)
	}

	e.Detach(c)
	assert.Equal(t, 0, e.Threads())
	require.NoError(t, e.Shutdown(context.Background()))
}

func TestPinnedFallsBackWhenDetached(t *testing.T) {
	fallback := NewPool("default", 2, DefaultThroughput, nil)
	defer fallback.Shutdown(context.Background())

	e := NewPinned("pinned", 4, fallback, nil)
	defer e.Shutdown(context.Background())

	c := newCounter(3)
	for i := 0; i < 3; i++ {
		require.NoError(t, c.send(e, i))
	}
	waitDone(t, c)
	assert.Equal(t, []int{0, 1, 2}, c.seen)
}

func TestRegistry(t *testing.T) {
	r, err := NewRegistry([]Spec{
		{Name: "default", Kind: KindPool, Workers: 2},
		{Name: "io", Kind: KindPool, Workers: 1},
		{Name: "pinned", Kind: KindPinned},
	}, "", nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"default", "io", "pinned"}, r.Names())
	assert.Equal(t, 2, r.Default().Workers())

	e, ok := r.Get("pinned")
	require.True(t, ok)
	assert.Equal(t, KindPinned, e.Kind())

	_, ok = r.Get("missing")
	assert.False(t, ok)

	dup := NewPool("io", 1, 1, nil)
	assert.Error(t, r.Register(dup))
	require.NoError(t, dup.Shutdown(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, r.Shutdown(ctx))
}

func TestRegistryRejectsBadSpecs(t *testing.T) {
	_, err := NewRegistry([]Spec{{Name: "default", Kind: KindPinned}}, "default", nil)
	assert.Error(t, err)

	_, err = NewRegistry([]Spec{{Name: "x", Kind: "fibers"}}, "default", nil)
	assert.Error(t, err)
}
