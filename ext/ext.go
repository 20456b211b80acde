// Package ext defines the extension system for tasker.
// Extensions are notified of lifecycle events (task registered, invocation
// submitted, succeeded, failed, etc.) and can react to them.
//
// Each lifecycle hook is a separate interface so extensions opt in only
// to the events they care about.
package ext

import (
	"context"
	"time"

	"github.com/xraph/tasker/id"
	"github.com/xraph/tasker/invocation"
	"github.com/xraph/tasker/task"
)

// Extension is the base interface all extensions must implement.
type Extension interface {
	// Name returns a unique human-readable name for the extension.
	Name() string
}

// ──────────────────────────────────────────────────
// Registry lifecycle hooks
// ──────────────────────────────────────────────────

// TaskRegistered is called after a definition is added to the task registry.
type TaskRegistered interface {
	OnTaskRegistered(ctx context.Context, d *task.Definition) error
}

// TaskUnregistered is called after a definition is removed from the task registry.
type TaskUnregistered interface {
	OnTaskUnregistered(ctx context.Context, d *task.Definition) error
}

// ──────────────────────────────────────────────────
// Invocation lifecycle hooks
// ──────────────────────────────────────────────────

// InvocationSubmitted is called after an invocation is persisted.
type InvocationSubmitted interface {
	OnInvocationSubmitted(ctx context.Context, inv *invocation.Invocation) error
}

// GroupSubmitted is called after every member of a group is persisted.
type GroupSubmitted interface {
	OnGroupSubmitted(ctx context.Context, groupID id.GroupID, taskName string, size int) error
}

// InvocationStarted is called when a worker begins executing an invocation.
type InvocationStarted interface {
	OnInvocationStarted(ctx context.Context, inv *invocation.Invocation) error
}

// InvocationSucceeded is called after an invocation's result is stored.
type InvocationSucceeded interface {
	OnInvocationSucceeded(ctx context.Context, inv *invocation.Invocation, elapsed time.Duration) error
}

// InvocationFailed is called after an invocation's failure is stored.
type InvocationFailed interface {
	OnInvocationFailed(ctx context.Context, inv *invocation.Invocation, err error) error
}

// ──────────────────────────────────────────────────
// Other lifecycle hooks
// ──────────────────────────────────────────────────

// Shutdown is called during graceful shutdown.
type Shutdown interface {
	OnShutdown(ctx context.Context) error
}
