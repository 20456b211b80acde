package invocation

import (
	"time"

	"github.com/xraph/tasker/id"
)

// State represents the lifecycle state of an invocation.
type State string

const (
	// StatePending means the invocation is waiting for a worker.
	StatePending State = "pending"
	// StateRunning means a worker is executing the invocation.
	StateRunning State = "running"
	// StateSucceeded means the behavior returned without error.
	StateSucceeded State = "succeeded"
	// StateFailed means the behavior returned an error or panicked, or the
	// task name could not be resolved.
	StateFailed State = "failed"
)

// Terminal reports whether no further transitions are possible.
func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateFailed
}

// CanTransition reports whether moving from s to next is allowed.
func (s State) CanTransition(next State) bool {
	switch s {
	case StatePending:
		return next == StateRunning
	case StateRunning:
		return next == StateSucceeded || next == StateFailed
	default:
		return false
	}
}

// Invocation is a single request to run a registered task.
type Invocation struct {
	ID         id.InvocationID `json:"id"`
	TaskName   string          `json:"task_name"`
	Queue      string          `json:"queue"`
	Codec      string          `json:"codec"`
	Payload    []byte          `json:"payload"`
	State      State           `json:"state"`
	Result     []byte          `json:"result,omitempty"`
	Error      string          `json:"error,omitempty"`
	GroupID    id.GroupID      `json:"group_id,omitempty"`
	GroupIndex int             `json:"group_index"`
	WorkerID   id.WorkerID     `json:"worker_id,omitempty"`
	Timeout    time.Duration   `json:"timeout,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}
