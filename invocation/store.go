package invocation

import (
	"context"

	"github.com/xraph/tasker/id"
)

// ListOpts controls pagination and filtering for list queries.
type ListOpts struct {
	// Limit is the maximum number of invocations to return. Zero means no limit.
	Limit int
	// Offset is the number of invocations to skip.
	Offset int
	// Queue filters by queue name. Empty means all queues.
	Queue string
}

// CountOpts controls filtering for count queries.
type CountOpts struct {
	// Queue filters by queue name. Empty means all queues.
	Queue string
	// State filters by state. Empty means all states.
	State State
}

// Store defines the persistence contract for invocations. It doubles as
// the work queue (Enqueue/Dequeue) and the result backend (Get/Complete).
type Store interface {
	// Enqueue persists a new invocation in pending state.
	Enqueue(ctx context.Context, inv *Invocation) error

	// Dequeue atomically claims up to limit pending invocations from the
	// given queues, marks them running for workerID, and returns them
	// oldest first. An empty queue list means every queue and a limit of
	// zero or less means no limit.
	Dequeue(ctx context.Context, queues []string, workerID id.WorkerID, limit int) ([]*Invocation, error)

	// Get retrieves an invocation by ID.
	Get(ctx context.Context, invID id.InvocationID) (*Invocation, error)

	// Complete records the terminal state, result and error of a running
	// invocation.
	Complete(ctx context.Context, inv *Invocation) error

	// Delete removes an invocation by ID.
	Delete(ctx context.Context, invID id.InvocationID) error

	// ListByState returns invocations in the given state, oldest first.
	ListByState(ctx context.Context, state State, opts ListOpts) ([]*Invocation, error)

	// ListGroup returns the members of a group ordered by GroupIndex.
	ListGroup(ctx context.Context, groupID id.GroupID) ([]*Invocation, error)

	// Count returns the number of invocations matching the options.
	Count(ctx context.Context, opts CountOpts) (int64, error)

	// Ping checks backend connectivity.
	Ping(ctx context.Context) error

	// Close releases backend resources owned by the store.
	Close() error
}
