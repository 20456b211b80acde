// Package ext defines the extension system for tasker.
//
// Extensions are notified of lifecycle events and can react to them by
// recording metrics, writing audit logs or forwarding events elsewhere.
// Each lifecycle hook is a separate interface so extensions opt in only
// to the events they care about.
//
// # Implementing an Extension
//
//	type MyExtension struct{}
//
//	func (e *MyExtension) Name() string { return "my-extension" }
//
//	func (e *MyExtension) OnInvocationSucceeded(ctx context.Context, inv *invocation.Invocation, elapsed time.Duration) error {
//	    log.Printf("%s (%s) succeeded in %s", inv.TaskName, inv.ID, elapsed)
//	    return nil
//	}
//
// # Registry Hooks
//
//   - [TaskRegistered]: a definition was added to the task registry
//   - [TaskUnregistered]: a definition was removed
//
// # Invocation Hooks
//
//   - [InvocationSubmitted]: an invocation was persisted
//   - [GroupSubmitted]: all members of a group were persisted
//   - [InvocationStarted]: a worker began executing
//   - [InvocationSucceeded]: the result was stored
//   - [InvocationFailed]: the failure was stored
//
// # Other Hooks
//
//   - [Shutdown]: the engine is shutting down gracefully
//
// The [Registry] fans out each event to all registered extensions that
// implement the corresponding hook interface. It also satisfies
// task.Observer, so registry events reach extensions without glue code.
package ext
