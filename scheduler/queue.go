package scheduler

import (
	"context"
	"errors"
	"sync"

	"github.com/odalton/resourcekit/telemetry"
)

// ErrQueueFull is returned by Enqueue when a bounded queue is at capacity.
var ErrQueueFull = errors.New("scheduler: task queue is full")

// TaskQueue is an ordered buffer of task records with an optional capacity.
// It is independent of the Scheduler: the scheduler runs work, the queue
// just holds records for a consumer to drain.
type TaskQueue struct {
	mu      sync.Mutex
	tasks   []Task
	maxSize int // 0 means unbounded
}

// NewTaskQueue creates a queue. maxSize bounds the queue; 0 means unbounded.
func NewTaskQueue(maxSize int) *TaskQueue {
	return &TaskQueue{maxSize: maxSize}
}

// Enqueue appends a task to the back of the queue.
// Returns ErrQueueFull when a bounded queue is at capacity.
func (q *TaskQueue) Enqueue(t Task) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.maxSize > 0 && len(q.tasks) >= q.maxSize {
		return ErrQueueFull
	}

	q.tasks = append(q.tasks, t)
	telemetry.UpdateQueueDepth(context.Background(), len(q.tasks))
	return nil
}

// Dequeue removes and returns the task at the front of the queue (FIFO).
func (q *TaskQueue) Dequeue() (Task, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.tasks) == 0 {
		return Task{}, false
	}

	t := q.tasks[0]
	q.tasks = append(q.tasks[:0], q.tasks[1:]...)
	telemetry.UpdateQueueDepth(context.Background(), len(q.tasks))
	return t, true
}

// DequeueByPriority removes and returns the highest-priority task.
// Ties are broken by insertion order: among tasks of equal priority the
// oldest is returned first.
func (q *TaskQueue) DequeueByPriority() (Task, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.tasks) == 0 {
		return Task{}, false
	}

	best := 0
	for i, t := range q.tasks {
		// Strictly greater keeps the earliest of equal priorities.
		if t.Priority > q.tasks[best].Priority {
			best = i
		}
	}

	t := q.tasks[best]
	q.tasks = append(q.tasks[:best], q.tasks[best+1:]...)
	telemetry.UpdateQueueDepth(context.Background(), len(q.tasks))
	return t, true
}

// Len returns the number of buffered tasks.
func (q *TaskQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

// Empty reports whether the queue has no buffered tasks.
func (q *TaskQueue) Empty() bool {
	return q.Len() == 0
}
