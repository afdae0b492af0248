// Package scheduler registers periodic and one-shot units of work, tracks
// their lifecycle, and runs them concurrently with the rest of the system.
package scheduler

import "time"

// Priority orders tasks from least to most urgent.
type Priority int

const (
	Low Priority = iota + 1
	Normal
	High
	Critical
)

// String returns the priority name.
func (p Priority) String() string {
	switch p {
	case Low:
		return "low"
	case Normal:
		return "normal"
	case High:
		return "high"
	case Critical:
		return "critical"
	default:
		return "unknown"
	}
}

// Status is the lifecycle state of a task.
// Transitions: Pending → Running → {Completed | Failed | Cancelled}.
type Status int

const (
	Pending Status = iota
	Running
	Completed
	Failed
	Cancelled
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case Pending:
		return "pending"
	case Running:
		return "running"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Terminal reports whether the status is a terminal state.
func (s Status) Terminal() bool {
	return s == Completed || s == Failed || s == Cancelled
}

// Task is the record kept for every registered unit of work. Records are
// retained after completion for inspection; the scheduler never garbage
// collects them. Query methods return copies, so a Task held by a caller is
// a snapshot, not a live view.
type Task struct {
	// ID is unique and strictly increasing for the lifetime of one
	// scheduler instance.
	ID uint64

	Name     string
	Priority Priority
	Status   Status

	CreatedAt time.Time
	// StartedAt is zero until the task first transitions to Running.
	StartedAt time.Time
	// CompletedAt is zero until the task reaches a terminal state.
	CompletedAt time.Time

	// Err is the error that moved a one-shot task to Failed, nil otherwise.
	Err error
}
