package task

import (
	"context"
	"fmt"
)

// Behavior is the single capability every registered task satisfies.
type Behavior interface {
	Invoke(ctx context.Context, args Args) (any, error)
}

// Func is a plain function behavior. Functions are always registered as
// Regular tasks.
type Func func(ctx context.Context, args Args) (any, error)

// Invoke implements Behavior.
func (f Func) Invoke(ctx context.Context, args Args) (any, error) {
	return f(ctx, args)
}

// Task is a stateful executable object. Types opt in by embedding Base or
// PeriodicBase, which supply Kind and the unexported marker; a type that
// merely has a Run method is not a Task.
type Task interface {
	// Name returns the task's declared name.
	Name() string
	// Kind returns the task's classification.
	Kind() Kind
	// Run performs the task's work.
	Run(ctx context.Context, args Args) (any, error)

	taskMarker()
}

// Scheduled is implemented by periodic tasks.
type Scheduled interface {
	// Schedule returns a cron expression ("*/5 * * * *", "@every 30s").
	Schedule() string
}

// Base marks a type as a regular Task when embedded.
type Base struct{}

// Kind implements Task.
func (Base) Kind() Kind { return Regular }

func (Base) taskMarker() {}

// PeriodicBase marks a type as a periodic Task when embedded. Cron holds
// the schedule expression; it may be overridden with WithSchedule.
type PeriodicBase struct {
	Cron string
}

// Kind implements Task.
func (PeriodicBase) Kind() Kind { return Periodic }

// Schedule implements Scheduled.
func (p PeriodicBase) Schedule() string { return p.Cron }

func (PeriodicBase) taskMarker() {}

// taskBehavior adapts a Task instance to Behavior.
type taskBehavior struct {
	t Task
}

func (b taskBehavior) Invoke(ctx context.Context, args Args) (any, error) {
	return b.t.Run(ctx, args)
}

// Typed wraps a function taking a single typed input. The first positional
// argument is bound into In; with no arguments the handler receives In's
// zero value.
func Typed[In, Out any](fn func(ctx context.Context, in In) (Out, error)) Func {
	return func(ctx context.Context, args Args) (any, error) {
		var in In
		if args.Len() > 0 {
			if err := args.Bind(0, &in); err != nil {
				return nil, fmt.Errorf("bind input: %w", err)
			}
		}
		return fn(ctx, in)
	}
}
