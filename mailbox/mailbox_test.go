package mailbox

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSystemLaneFirst(t *testing.T) {
	m := New[string]()
	m.Push("u1")
	m.PushSystem("s1")
	m.Push("u2")
	m.PushSystem("s2")

	var got []string
	var lanes []Lane
	for {
		v, lane, ok := m.Pop()
		if !ok {
			break
		}
		got = append(got, v)
		lanes = append(lanes, lane)
	}

	assert.Equal(t, []string{"s1", "s2", "u1", "u2"}, got)
	assert.Equal(t, []Lane{LaneSystem, LaneSystem, LaneUser, LaneUser}, lanes)
	assert.False(t, m.HasMessages())
}

func TestPopSystemLeavesUserLane(t *testing.T) {
	m := New[int]()
	m.Push(1)
	m.PushSystem(2)

	v, ok := m.PopSystem()
	require.True(t, ok)
	assert.Equal(t, 2, v)

	_, ok = m.PopSystem()
	assert.False(t, ok)
	assert.True(t, m.HasMessages())
	assert.Equal(t, 1, m.Len())
}

func TestScheduleCoalescing(t *testing.T) {
	m := New[int]()
	var winners atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.Push(1)
			if m.TrySchedule() {
				winners.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), winners.Load())
	assert.True(t, m.Scheduled())
	assert.Equal(t, 32, m.Len())

	m.Unschedule()
	assert.True(t, m.TrySchedule())
}

func TestClose(t *testing.T) {
	m := New[int]()
	assert.False(t, m.Closed())
	m.Close()
	assert.True(t, m.Closed())

	m.Push(3)
	v, _, ok := m.Pop()
	require.True(t, ok)
	assert.Equal(t, 3, v)
}
