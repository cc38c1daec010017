package queue

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMPSCOrder(t *testing.T) {
	q := NewMPSC[int]()
	assert.True(t, q.Empty())

	for i := 0; i < 10; i++ {
		q.Push(i)
	}
	assert.Equal(t, int64(10), q.Len())

	for i := 0; i < 10; i++ {
		v, ok := q.Pop()
		require.True(t, ok)
		assert.Equal(t, i, v)
	}

	_, ok := q.Pop()
	assert.False(t, ok)
	assert.True(t, q.Empty())
	assert.Equal(t, int64(0), q.Len())
}

func TestMPSCConcurrentProducers(t *testing.T) {
	const producers = 8
	const perProducer = 5000

	q := NewMPSC[[2]int]()
	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				q.Push([2]int{p, i})
			}
		}(p)
	}

	last := make([]int, producers)
	for i := range last {
		last[i] = -1
	}

	received := 0
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	for received < producers*perProducer {
		v, ok := q.Pop()
		if !ok {
			select {
			case <-done:
			default:
			}
			continue
		}
		// per-producer FIFO
		require.Equal(t, last[v[0]]+1, v[1])
		last[v[0]] = v[1]
		received++
	}

	<-done
	assert.True(t, q.Empty())
}
