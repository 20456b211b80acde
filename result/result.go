// Package result provides completion handles for submitted invocations.
//
// An [AsyncResult] is an opaque token for one in-flight or completed
// invocation; a [GroupResult] joins the members of a distributed map in
// submission order. Handles poll a [Backend] and never cancel remote work:
// when the caller's context ends, waiting stops and the invocation keeps
// running wherever it was.
package result

import (
	"context"
	"fmt"
	"time"

	"github.com/xraph/tasker/codec"
	"github.com/xraph/tasker/id"
	"github.com/xraph/tasker/invocation"
)

// DefaultPollInterval is how often handles poll the backend by default.
const DefaultPollInterval = 50 * time.Millisecond

// Backend is the status and result lookup contract handles rely on.
type Backend interface {
	// IsSuccessful reports whether the invocation finished successfully.
	IsSuccessful(ctx context.Context, invID id.InvocationID) (bool, error)

	// Invocation returns the current record of an invocation.
	Invocation(ctx context.Context, invID id.InvocationID) (*invocation.Invocation, error)
}

// StoreBackend adapts an invocation.Store to Backend.
type StoreBackend struct {
	store invocation.Store
}

var _ Backend = (*StoreBackend)(nil)

// NewStoreBackend wraps a store.
func NewStoreBackend(s invocation.Store) *StoreBackend {
	return &StoreBackend{store: s}
}

// IsSuccessful implements Backend. Store errors are returned unchanged.
func (b *StoreBackend) IsSuccessful(ctx context.Context, invID id.InvocationID) (bool, error) {
	inv, err := b.store.Get(ctx, invID)
	if err != nil {
		return false, err
	}
	return inv.State == invocation.StateSucceeded, nil
}

// Invocation implements Backend.
func (b *StoreBackend) Invocation(ctx context.Context, invID id.InvocationID) (*invocation.Invocation, error) {
	return b.store.Get(ctx, invID)
}

// TaskError reports a failed invocation.
type TaskError struct {
	InvocationID id.InvocationID
	TaskName     string
	Message      string
}

func (e *TaskError) Error() string {
	return fmt.Sprintf("task %s (%s) failed: %s", e.TaskName, e.InvocationID, e.Message)
}

// Option configures a handle.
type Option func(*AsyncResult)

// WithPollInterval sets how often the handle polls the backend.
func WithPollInterval(d time.Duration) Option {
	return func(r *AsyncResult) {
		if d > 0 {
			r.poll = d
		}
	}
}

// AsyncResult is the completion handle for one invocation.
type AsyncResult struct {
	id      id.InvocationID
	backend Backend
	poll    time.Duration
}

// New returns a handle for invID.
func New(invID id.InvocationID, backend Backend, opts ...Option) *AsyncResult {
	r := &AsyncResult{id: invID, backend: backend, poll: DefaultPollInterval}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ID returns the invocation ID.
func (r *AsyncResult) ID() id.InvocationID { return r.id }

// Status returns the current state of the invocation.
func (r *AsyncResult) Status(ctx context.Context) (invocation.State, error) {
	inv, err := r.backend.Invocation(ctx, r.id)
	if err != nil {
		return "", err
	}
	return inv.State, nil
}

// Ready reports whether the invocation reached a terminal state.
func (r *AsyncResult) Ready(ctx context.Context) (bool, error) {
	s, err := r.Status(ctx)
	if err != nil {
		return false, err
	}
	return s.Terminal(), nil
}

// Successful reports whether the invocation succeeded.
func (r *AsyncResult) Successful(ctx context.Context) (bool, error) {
	return r.backend.IsSuccessful(ctx, r.id)
}

// Wait blocks until the invocation is terminal or ctx ends, and returns
// the decoded result. A failed invocation yields a *TaskError.
func (r *AsyncResult) Wait(ctx context.Context) (any, error) {
	var v any
	if err := r.Decode(ctx, &v); err != nil {
		return nil, err
	}
	return v, nil
}

// Decode waits like Wait and decodes the result into out.
func (r *AsyncResult) Decode(ctx context.Context, out any) error {
	inv, err := r.await(ctx)
	if err != nil {
		return err
	}
	if inv.State == invocation.StateFailed {
		return &TaskError{InvocationID: inv.ID, TaskName: inv.TaskName, Message: inv.Error}
	}
	if len(inv.Result) == 0 {
		return nil
	}
	c, err := codec.Get(inv.Codec)
	if err != nil {
		return err
	}
	if err := c.Unmarshal(inv.Result, out); err != nil {
		return fmt.Errorf("decode result of %s: %w", inv.ID, err)
	}
	return nil
}

func (r *AsyncResult) await(ctx context.Context) (*invocation.Invocation, error) {
	ticker := time.NewTicker(r.poll)
	defer ticker.Stop()

	for {
		inv, err := r.backend.Invocation(ctx, r.id)
		if err != nil {
			return nil, err
		}
		if inv.State.Terminal() {
			return inv, nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("wait for %s: %w", r.id, ctx.Err())
		case <-ticker.C:
		}
	}
}
