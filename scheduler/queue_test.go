package scheduler

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestQueueFIFO(t *testing.T) {
	q := NewTaskQueue(0)

	require.NoError(t, q.Enqueue(Task{ID: 1, Name: "a"}))
	require.NoError(t, q.Enqueue(Task{ID: 2, Name: "b"}))
	require.NoError(t, q.Enqueue(Task{ID: 3, Name: "c"}))
	require.Equal(t, 3, q.Len())

	for _, want := range []uint64{1, 2, 3} {
		task, ok := q.Dequeue()
		require.True(t, ok)
		require.Equal(t, want, task.ID)
	}
	require.True(t, q.Empty())
}

func TestQueueDequeueEmpty(t *testing.T) {
	q := NewTaskQueue(0)

	_, ok := q.Dequeue()
	require.False(t, ok)
	_, ok = q.DequeueByPriority()
	require.False(t, ok)
}

func TestQueueDequeueByPriority(t *testing.T) {
	q := NewTaskQueue(0)

	require.NoError(t, q.Enqueue(Task{ID: 1, Priority: Low}))
	require.NoError(t, q.Enqueue(Task{ID: 2, Priority: Critical}))
	require.NoError(t, q.Enqueue(Task{ID: 3, Priority: Normal}))
	require.NoError(t, q.Enqueue(Task{ID: 4, Priority: Critical}))

	// Highest priority first; equal priorities come out in insertion order.
	var got []uint64
	for {
		task, ok := q.DequeueByPriority()
		if !ok {
			break
		}
		got = append(got, task.ID)
	}
	require.Equal(t, []uint64{2, 4, 3, 1}, got)
}

func TestQueueBounded(t *testing.T) {
	q := NewTaskQueue(2)

	require.NoError(t, q.Enqueue(Task{ID: 1}))
	require.NoError(t, q.Enqueue(Task{ID: 2}))
	require.ErrorIs(t, q.Enqueue(Task{ID: 3}), ErrQueueFull)

	// Draining one frees one slot.
	_, ok := q.Dequeue()
	require.True(t, ok)
	require.NoError(t, q.Enqueue(Task{ID: 3}))
	require.ErrorIs(t, q.Enqueue(Task{ID: 4}), ErrQueueFull)
}

func TestQueueMixedDequeueModes(t *testing.T) {
	q := NewTaskQueue(0)

	require.NoError(t, q.Enqueue(Task{ID: 1, Priority: Low}))
	require.NoError(t, q.Enqueue(Task{ID: 2, Priority: High}))
	require.NoError(t, q.Enqueue(Task{ID: 3, Priority: Normal}))

	task, ok := q.DequeueByPriority()
	require.True(t, ok)
	require.Equal(t, uint64(2), task.ID)

	// Plain Dequeue still sees the remaining tasks in insertion order.
	task, ok = q.Dequeue()
	require.True(t, ok)
	require.Equal(t, uint64(1), task.ID)
}
