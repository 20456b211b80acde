// Package tasker is the task-identity layer of a distributed task
// execution framework. It maps human-readable task names to executable
// task definitions, enforces name uniqueness, classifies tasks as regular
// or periodic, and exposes the lookup and dispatch primitives the
// execution layer builds on.
//
// Tasker is a library. Construct a registry at the composition root,
// register tasks as ordinary Go functions or stateful task types, and hand
// the registry to the engine:
//
//	reg := task.NewRegistry()
//	_ = reg.Register("math.add_one", addOne)
//
//	eng, err := engine.New(memory.New(),
//	    engine.WithRegistry(reg),
//	    engine.WithConfig(cfg),
//	)
//	pong, err := eng.Dispatch().Ping(ctx)
//
// # Architecture
//
// The [task] package owns names and definitions. The [dispatch] package is
// a stateless façade over the registry and the execution collaborators
// (submission, result backend, reference serializer). The execution layer
// itself (engine, worker, store) is replaceable; the bundled
// implementations exist so the whole pipeline can run in one process.
//
// Invocation and worker IDs use TypeID: type-prefixed, K-sortable,
// UUIDv7-based identifiers.
package tasker
