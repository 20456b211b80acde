package dispatch

import (
	"context"
	"time"

	"github.com/xraph/tasker/result"
	"github.com/xraph/tasker/task"
)

// Resolver resolves task names into definitions.
type Resolver interface {
	Get(name string) (*task.Definition, error)
}

// Submitter is the execution layer's submission contract.
type Submitter interface {
	// Submit enqueues one invocation of the named task.
	Submit(ctx context.Context, name string, args task.Args, opts ...SubmitOption) (*result.AsyncResult, error)

	// SubmitGroup enqueues one invocation per argument group. The members
	// of the returned group are in input order.
	SubmitGroup(ctx context.Context, name string, groups []task.Args, opts ...SubmitOption) (*result.GroupResult, error)
}

// SubmitOptions overrides per-submission settings. Zero values fall back
// to the task definition's options.
type SubmitOptions struct {
	Queue   string
	Timeout time.Duration
}

// SubmitOption configures a submission.
type SubmitOption func(*SubmitOptions)

// WithQueue submits to q instead of the task's queue.
func WithQueue(q string) SubmitOption {
	return func(o *SubmitOptions) { o.Queue = q }
}

// WithTimeout overrides the task's execution deadline.
func WithTimeout(d time.Duration) SubmitOption {
	return func(o *SubmitOptions) { o.Timeout = d }
}

// ApplySubmitOptions folds opts into a SubmitOptions value.
func ApplySubmitOptions(opts []SubmitOption) SubmitOptions {
	var o SubmitOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
