package ext

import (
	"context"
	"log/slog"
	"time"

	"github.com/xraph/tasker/id"
	"github.com/xraph/tasker/invocation"
	"github.com/xraph/tasker/task"
)

// Named entry types pair a hook implementation with the extension name
// captured at registration time.
type taskRegisteredEntry struct {
	name string
	hook TaskRegistered
}

type taskUnregisteredEntry struct {
	name string
	hook TaskUnregistered
}

type invocationSubmittedEntry struct {
	name string
	hook InvocationSubmitted
}

type groupSubmittedEntry struct {
	name string
	hook GroupSubmitted
}

type invocationStartedEntry struct {
	name string
	hook InvocationStarted
}

type invocationSucceededEntry struct {
	name string
	hook InvocationSucceeded
}

type invocationFailedEntry struct {
	name string
	hook InvocationFailed
}

type shutdownEntry struct {
	name string
	hook Shutdown
}

// Registry holds registered extensions and dispatches lifecycle events
// to them. Extensions are registered while the engine is being built;
// emitting is safe from any goroutine afterwards.
type Registry struct {
	extensions []Extension
	logger     *slog.Logger

	taskRegistered      []taskRegisteredEntry
	taskUnregistered    []taskUnregisteredEntry
	invocationSubmitted []invocationSubmittedEntry
	groupSubmitted      []groupSubmittedEntry
	invocationStarted   []invocationStartedEntry
	invocationSucceeded []invocationSucceededEntry
	invocationFailed    []invocationFailedEntry
	shutdown            []shutdownEntry
}

var _ task.Observer = (*Registry)(nil)

// NewRegistry creates an extension registry with the given logger.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{logger: logger}
}

// SetLogger replaces the logger used for hook errors. Call it before
// events are emitted.
func (r *Registry) SetLogger(l *slog.Logger) { r.logger = l }

// Register adds an extension and caches it under every hook it
// implements. Extensions are notified in registration order.
func (r *Registry) Register(e Extension) {
	r.extensions = append(r.extensions, e)
	name := e.Name()

	if h, ok := e.(TaskRegistered); ok {
		r.taskRegistered = append(r.taskRegistered, taskRegisteredEntry{name, h})
	}
	if h, ok := e.(TaskUnregistered); ok {
		r.taskUnregistered = append(r.taskUnregistered, taskUnregisteredEntry{name, h})
	}
	if h, ok := e.(InvocationSubmitted); ok {
		r.invocationSubmitted = append(r.invocationSubmitted, invocationSubmittedEntry{name, h})
	}
	if h, ok := e.(GroupSubmitted); ok {
		r.groupSubmitted = append(r.groupSubmitted, groupSubmittedEntry{name, h})
	}
	if h, ok := e.(InvocationStarted); ok {
		r.invocationStarted = append(r.invocationStarted, invocationStartedEntry{name, h})
	}
	if h, ok := e.(InvocationSucceeded); ok {
		r.invocationSucceeded = append(r.invocationSucceeded, invocationSucceededEntry{name, h})
	}
	if h, ok := e.(InvocationFailed); ok {
		r.invocationFailed = append(r.invocationFailed, invocationFailedEntry{name, h})
	}
	if h, ok := e.(Shutdown); ok {
		r.shutdown = append(r.shutdown, shutdownEntry{name, h})
	}
}

// Extensions returns all registered extensions.
func (r *Registry) Extensions() []Extension { return r.extensions }

// ──────────────────────────────────────────────────
// task.Observer
// ──────────────────────────────────────────────────

// TaskRegistered implements task.Observer so the extension registry can
// be attached to a task registry directly.
func (r *Registry) TaskRegistered(d *task.Definition) {
	r.EmitTaskRegistered(context.Background(), d)
}

// TaskUnregistered implements task.Observer.
func (r *Registry) TaskUnregistered(d *task.Definition) {
	r.EmitTaskUnregistered(context.Background(), d)
}

// ──────────────────────────────────────────────────
// Event emitters
// ──────────────────────────────────────────────────

// EmitTaskRegistered notifies all extensions that implement TaskRegistered.
func (r *Registry) EmitTaskRegistered(ctx context.Context, d *task.Definition) {
	for _, e := range r.taskRegistered {
		if err := e.hook.OnTaskRegistered(ctx, d); err != nil {
			r.logHookError("OnTaskRegistered", e.name, err)
		}
	}
}

// EmitTaskUnregistered notifies all extensions that implement TaskUnregistered.
func (r *Registry) EmitTaskUnregistered(ctx context.Context, d *task.Definition) {
	for _, e := range r.taskUnregistered {
		if err := e.hook.OnTaskUnregistered(ctx, d); err != nil {
			r.logHookError("OnTaskUnregistered", e.name, err)
		}
	}
}

// EmitInvocationSubmitted notifies all extensions that implement InvocationSubmitted.
func (r *Registry) EmitInvocationSubmitted(ctx context.Context, inv *invocation.Invocation) {
	for _, e := range r.invocationSubmitted {
		if err := e.hook.OnInvocationSubmitted(ctx, inv); err != nil {
			r.logHookError("OnInvocationSubmitted", e.name, err)
		}
	}
}

// EmitGroupSubmitted notifies all extensions that implement GroupSubmitted.
func (r *Registry) EmitGroupSubmitted(ctx context.Context, groupID id.GroupID, taskName string, size int) {
	for _, e := range r.groupSubmitted {
		if err := e.hook.OnGroupSubmitted(ctx, groupID, taskName, size); err != nil {
			r.logHookError("OnGroupSubmitted", e.name, err)
		}
	}
}

// EmitInvocationStarted notifies all extensions that implement InvocationStarted.
func (r *Registry) EmitInvocationStarted(ctx context.Context, inv *invocation.Invocation) {
	for _, e := range r.invocationStarted {
		if err := e.hook.OnInvocationStarted(ctx, inv); err != nil {
			r.logHookError("OnInvocationStarted", e.name, err)
		}
	}
}

// EmitInvocationSucceeded notifies all extensions that implement InvocationSucceeded.
func (r *Registry) EmitInvocationSucceeded(ctx context.Context, inv *invocation.Invocation, elapsed time.Duration) {
	for _, e := range r.invocationSucceeded {
		if err := e.hook.OnInvocationSucceeded(ctx, inv, elapsed); err != nil {
			r.logHookError("OnInvocationSucceeded", e.name, err)
		}
	}
}

// EmitInvocationFailed notifies all extensions that implement InvocationFailed.
func (r *Registry) EmitInvocationFailed(ctx context.Context, inv *invocation.Invocation, invErr error) {
	for _, e := range r.invocationFailed {
		if err := e.hook.OnInvocationFailed(ctx, inv, invErr); err != nil {
			r.logHookError("OnInvocationFailed", e.name, err)
		}
	}
}

// EmitShutdown notifies all extensions that implement Shutdown.
func (r *Registry) EmitShutdown(ctx context.Context) {
	for _, e := range r.shutdown {
		if err := e.hook.OnShutdown(ctx); err != nil {
			r.logHookError("OnShutdown", e.name, err)
		}
	}
}

// logHookError logs a warning when a lifecycle hook returns an error.
// Hook errors are never propagated.
func (r *Registry) logHookError(hook, extName string, err error) {
	r.logger.Warn("extension hook error",
		slog.String("hook", hook),
		slog.String("extension", extName),
		slog.String("error", err.Error()),
	)
}
