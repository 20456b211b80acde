// Package worker provides the invocation execution layer: an Executor that
// runs registered task behaviors through middleware and stores their
// outcome, and a Pool that manages concurrent worker goroutines polling
// the invocation store.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xraph/tasker"
	"github.com/xraph/tasker/codec"
	"github.com/xraph/tasker/ext"
	"github.com/xraph/tasker/invocation"
	"github.com/xraph/tasker/middleware"
	"github.com/xraph/tasker/task"
)

// Resolver resolves task names for execution.
type Resolver interface {
	Lookup(name string) (*task.Definition, bool)
}

// Executor runs a single invocation through middleware and the registered
// behavior, then records the terminal state and emits lifecycle events.
// There are no retries: the first outcome is final.
type Executor struct {
	registry   Resolver
	extensions *ext.Registry
	store      invocation.Store
	mw         middleware.Middleware
	logger     *slog.Logger
}

// NewExecutor creates an Executor with the given dependencies.
func NewExecutor(
	registry Resolver,
	extensions *ext.Registry,
	store invocation.Store,
	logger *slog.Logger,
	mws ...middleware.Middleware,
) *Executor {
	return &Executor{
		registry:   registry,
		extensions: extensions,
		store:      store,
		mw:         middleware.Chain(mws...),
		logger:     logger,
	}
}

// Execute runs a claimed invocation and stores its outcome. It returns the
// behavior's error, or the store error if the outcome could not be saved.
// An unknown task name fails the invocation with tasker.ErrNotRegistered.
func (e *Executor) Execute(ctx context.Context, inv *invocation.Invocation) error {
	def, ok := e.registry.Lookup(inv.TaskName)
	if !ok {
		return e.fail(ctx, inv, fmt.Errorf("task %q: %w", inv.TaskName, tasker.ErrNotRegistered))
	}

	c, err := codec.Get(inv.Codec)
	if err != nil {
		return e.fail(ctx, inv, err)
	}

	var args task.Args
	if len(inv.Payload) > 0 {
		if err := c.Unmarshal(inv.Payload, &args); err != nil {
			return e.fail(ctx, inv, fmt.Errorf("decode arguments: %w", err))
		}
	}

	start := time.Now()

	var out any
	terminal := func(ctx context.Context) error {
		v, err := def.Invoke(ctx, args)
		out = v
		return err
	}

	if err := e.mw(ctx, inv, terminal); err != nil {
		return e.fail(ctx, inv, err)
	}

	if out != nil {
		data, err := c.Marshal(out)
		if err != nil {
			return e.fail(ctx, inv, fmt.Errorf("encode result: %w", err))
		}
		inv.Result = data
	}

	return e.succeed(ctx, inv, time.Since(start))
}

func (e *Executor) succeed(ctx context.Context, inv *invocation.Invocation, elapsed time.Duration) error {
	now := time.Now().UTC()
	inv.State = invocation.StateSucceeded
	inv.CompletedAt = &now

	if err := e.store.Complete(context.WithoutCancel(ctx), inv); err != nil {
		e.logger.Error("failed to store invocation result",
			slog.String("invocation_id", inv.ID.String()),
			slog.String("task", inv.TaskName),
			slog.String("error", err.Error()),
		)
		return err
	}

	e.extensions.EmitInvocationSucceeded(ctx, inv, elapsed)
	return nil
}

// fail records cause as the terminal error. The outcome is stored even
// when ctx was cancelled by a shutdown.
func (e *Executor) fail(ctx context.Context, inv *invocation.Invocation, cause error) error {
	now := time.Now().UTC()
	inv.State = invocation.StateFailed
	inv.Error = cause.Error()
	inv.Result = nil
	inv.CompletedAt = &now

	if err := e.store.Complete(context.WithoutCancel(ctx), inv); err != nil {
		e.logger.Error("failed to store invocation failure",
			slog.String("invocation_id", inv.ID.String()),
			slog.String("task", inv.TaskName),
			slog.String("error", err.Error()),
		)
		return err
	}

	e.extensions.EmitInvocationFailed(ctx, inv, cause)
	return cause
}
