package future

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompleteOnce(t *testing.T) {
	f := New[int]()

	_, _, ok := f.Result()
	assert.False(t, ok)

	assert.True(t, f.Complete(1))
	assert.False(t, f.Complete(2))
	assert.False(t, f.Fail(errors.New("late")))

	v, err := f.Get()
	require.NoError(t, err)
	assert.Equal(t, 1, v)
	assert.True(t, f.Settled())
}

func TestFirstSettlorWins(t *testing.T) {
	for i := 0; i < 100; i++ {
		f := New[int]()
		var wins atomic.Int32
		var wg sync.WaitGroup
		for n := 0; n < 8; n++ {
			wg.Add(1)
			go func(n int) {
				defer wg.Done()
				var won bool
				if n%2 == 0 {
					won = f.Complete(n)
				} else {
					won = f.Fail(errors.New("timeout"))
				}
				if won {
					wins.Add(1)
				}
			}(n)
		}
		wg.Wait()
		require.Equal(t, int32(1), wins.Load())
	}
}

func TestFailNilUsesCancelled(t *testing.T) {
	f := New[string]()
	f.Fail(nil)
	_, err := f.Get()
	assert.ErrorIs(t, err, ErrCancelled)
}

func TestAwaitContext(t *testing.T) {
	f := New[int]()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := f.Await(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, f.Settled())

	go func() {
		time.Sleep(10 * time.Millisecond)
		f.Complete(7)
	}()
	v, err := f.Wait(time.Second)
	require.NoError(t, err)
	assert.Equal(t, 7, v)
}

func TestCompleted(t *testing.T) {
	f := Completed("x")
	v, err, ok := f.Result()
	require.True(t, ok)
	require.NoError(t, err)
	assert.Equal(t, "x", v)
}
