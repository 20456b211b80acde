package task

import (
	"context"
	"time"

	cronlib "github.com/robfig/cron/v3"
)

// Definition is the registry's descriptor for a registered task. It is
// immutable once stored.
type Definition struct {
	name     string
	kind     Kind
	behavior Behavior
	instance Task
	schedule string
	sched    cronlib.Schedule
	opts     Options
}

// Name returns the name the task is registered under.
func (d *Definition) Name() string { return d.name }

// Kind returns the task's classification.
func (d *Definition) Kind() Kind { return d.kind }

// Behavior returns the invocable unit.
func (d *Definition) Behavior() Behavior { return d.behavior }

// Instance returns the shared instance backing a stateful task, or nil for
// plain functions.
func (d *Definition) Instance() Task { return d.instance }

// Options returns the registration options.
func (d *Definition) Options() Options { return d.opts }

// Schedule returns the cron expression of a periodic task.
func (d *Definition) Schedule() string { return d.schedule }

// Next returns the next activation time after t. It returns the zero time
// for regular tasks.
func (d *Definition) Next(t time.Time) time.Time {
	if d.sched == nil {
		return time.Time{}
	}
	return d.sched.Next(t)
}

// Invoke runs the task's behavior.
func (d *Definition) Invoke(ctx context.Context, args Args) (any, error) {
	return d.behavior.Invoke(ctx, args)
}
