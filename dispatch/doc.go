// Package dispatch is the convenience surface over the task registry and
// the execution layer.
//
// A [Facade] holds references to its collaborators and no state of its
// own. Every operation is a composition of a registry lookup and calls
// into the [Submitter] and [result.Backend]; failures from those
// collaborators reach the caller unchanged, and nothing is retried.
//
//	f := dispatch.New(registry, engine, backend, catalog)
//
//	squares, err := f.Map(ctx, "square", []task.Args{task.A(1), task.A(2), task.A(3)}, 5*time.Second)
//	pong, err := f.Ping(ctx)
//
// Two task names are reserved: [TaskPing] for the liveness probe and
// [TaskExecuteRemote] for allow-listed remote function calls.
// [RegisterBuiltins] installs both.
package dispatch
