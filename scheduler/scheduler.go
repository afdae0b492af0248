package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	resourcekit "github.com/odalton/resourcekit"
	"github.com/odalton/resourcekit/telemetry"
)

// WorkFunc is a unit of work. The context is the task's own context; it is
// cancelled by Cancel and Stop, and work that blocks should honor it.
// The scheduler guarantees only when work is invoked, not what it does.
type WorkFunc func(ctx context.Context) error

// Config holds scheduler configuration.
type Config struct {
	// Logger for task lifecycle events.
	Logger *slog.Logger
}

// Scheduler registers tasks and runs each in its own goroutine. Work funcs
// run concurrently with all other scheduled work and with the request path;
// there is no implicit mutual exclusion between tasks.
type Scheduler struct {
	logger *slog.Logger
	now    func() time.Time

	nextID atomic.Uint64

	// tasks is the task registry. Records are mutated only through
	// Registry.Update and read out as copies.
	tasks   *resourcekit.Registry[uint64, Task]
	cancels *resourcekit.Registry[uint64, context.CancelFunc]

	baseCtx    context.Context
	baseCancel context.CancelFunc
	wg         sync.WaitGroup
}

// New creates a scheduler.
func New(cfg Config) *Scheduler {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		logger:     cfg.Logger,
		now:        time.Now,
		tasks:      resourcekit.NewRegistry[uint64, Task](),
		cancels:    resourcekit.NewRegistry[uint64, context.CancelFunc](),
		baseCtx:    ctx,
		baseCancel: cancel,
	}
}

// SchedulePeriodic registers a task whose work runs once per interval until
// it is cancelled. The returned id is available immediately; the task
// transitions to Running when its first tick fires. A periodic task never
// completes on its own; stopping it takes Cancel or Stop.
//
// Work errors are logged and the task keeps running; a periodic task's
// health is observed through logs and metrics, not its status.
func (s *Scheduler) SchedulePeriodic(name string, interval time.Duration, priority Priority, work WorkFunc) uint64 {
	id, taskCtx := s.register(name, priority)
	telemetry.RecordTaskScheduled(taskCtx, "periodic", priority.String())

	s.wg.Add(1)
	go s.runPeriodic(taskCtx, id, name, interval, work)

	return id
}

// ScheduleOnce registers a task whose work runs once after delay. The task
// moves to Completed on normal return, Failed (with Err recorded) when work
// returns an error, and Cancelled when cancelled before or during the run.
func (s *Scheduler) ScheduleOnce(name string, delay time.Duration, priority Priority, work WorkFunc) uint64 {
	id, taskCtx := s.register(name, priority)
	telemetry.RecordTaskScheduled(taskCtx, "once", priority.String())

	s.wg.Add(1)
	go s.runOnce(taskCtx, id, name, delay, work)

	return id
}

func (s *Scheduler) register(name string, priority Priority) (uint64, context.Context) {
	id := s.nextID.Add(1)
	taskCtx, cancel := context.WithCancel(s.baseCtx)

	s.tasks.Put(id, Task{
		ID:        id,
		Name:      name,
		Priority:  priority,
		Status:    Pending,
		CreatedAt: s.now(),
	})
	s.cancels.Put(id, cancel)

	return id, taskCtx
}

func (s *Scheduler) runPeriodic(ctx context.Context, id uint64, name string, interval time.Duration, work WorkFunc) {
	defer s.wg.Done()
	defer s.finishCancel(id)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	started := false
	for {
		select {
		case <-ctx.Done():
			s.transition(id, func(t *Task) {
				t.Status = Cancelled
				t.CompletedAt = s.now()
			})
			s.logger.Debug("periodic task cancelled", "id", id, "name", name)
			return
		case <-ticker.C:
			if !started {
				started = true
				s.transition(id, func(t *Task) {
					t.Status = Running
					t.StartedAt = s.now()
				})
			}

			start := time.Now()
			err := work(ctx)
			if err != nil {
				// Log-and-continue: one failed tick does not stop
				// the task.
				s.logger.Warn("periodic task tick failed", "id", id, "name", name, "error", err)
				telemetry.RecordTaskRun(ctx, "error", time.Since(start))
				continue
			}
			telemetry.RecordTaskRun(ctx, "ok", time.Since(start))
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context, id uint64, name string, delay time.Duration, work WorkFunc) {
	defer s.wg.Done()
	defer s.finishCancel(id)

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		s.transition(id, func(t *Task) {
			t.Status = Cancelled
			t.CompletedAt = s.now()
		})
		s.logger.Debug("one-shot task cancelled before running", "id", id, "name", name)
		return
	case <-timer.C:
	}

	s.transition(id, func(t *Task) {
		t.Status = Running
		t.StartedAt = s.now()
	})

	start := time.Now()
	err := work(ctx)
	duration := time.Since(start)

	switch {
	case err == nil:
		s.transition(id, func(t *Task) {
			t.Status = Completed
			t.CompletedAt = s.now()
		})
		telemetry.RecordTaskRun(ctx, "ok", duration)
		s.logger.Debug("one-shot task completed", "id", id, "name", name, "duration", duration)
	case errors.Is(err, context.Canceled) && ctx.Err() != nil:
		s.transition(id, func(t *Task) {
			t.Status = Cancelled
			t.CompletedAt = s.now()
		})
		telemetry.RecordTaskRun(ctx, "error", duration)
		s.logger.Debug("one-shot task cancelled while running", "id", id, "name", name)
	default:
		s.transition(id, func(t *Task) {
			t.Status = Failed
			t.CompletedAt = s.now()
			t.Err = err
		})
		telemetry.RecordTaskRun(ctx, "error", duration)
		s.logger.Warn("one-shot task failed", "id", id, "name", name, "error", err)
	}
}

func (s *Scheduler) transition(id uint64, mutate func(*Task)) {
	s.tasks.Update(id, func(t Task) Task {
		mutate(&t)
		return t
	})
}

func (s *Scheduler) finishCancel(id uint64) {
	if cancel, ok := s.cancels.Get(id); ok {
		cancel()
		s.cancels.Delete(id)
	}
}

// Cancel cancels the task's context. A pending one-shot is cancelled
// without running; a periodic task stops ticking and moves to Cancelled.
// Returns false when the task is unknown or already terminal.
func (s *Scheduler) Cancel(id uint64) bool {
	cancel, ok := s.cancels.Get(id)
	if !ok {
		return false
	}
	cancel()
	return true
}

// Get returns a copy of the task record.
func (s *Scheduler) Get(id uint64) (Task, bool) {
	return s.tasks.Get(id)
}

// List returns copies of all task records ordered by id.
func (s *Scheduler) List() []Task {
	tasks := s.tasks.Values()
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].ID < tasks[j].ID })
	return tasks
}

// ListByPriority returns copies of all task records with the given
// priority, ordered by id.
func (s *Scheduler) ListByPriority(p Priority) []Task {
	all := s.List()
	tasks := all[:0]
	for _, t := range all {
		if t.Priority == p {
			tasks = append(tasks, t)
		}
	}
	return tasks
}

// RunningCount returns the number of tasks currently in Running.
func (s *Scheduler) RunningCount() int {
	n := 0
	s.tasks.Range(func(_ uint64, t Task) bool {
		if t.Status == Running {
			n++
		}
		return true
	})
	return n
}

// Wait blocks until every tracked task goroutine has finished. Periodic
// tasks run until cancelled, so a caller must Cancel them (or call Stop)
// first or Wait will not return.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

// Stop cancels every non-terminal task and waits for all task goroutines to
// exit, or for ctx to expire. Task records stay queryable after Stop.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.baseCancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
