// Package task defines task definitions, their behaviors, and the registry
// that maps task names to definitions.
//
// # Definitions
//
// A [Definition] is a descriptor record owned by the [Registry]: a unique
// name, a [Kind] ([Regular] or [Periodic]), and the [Behavior] that does
// the work. Definitions never change after registration; removing a name
// from the registry is the only way to retire one.
//
// # Registering Tasks
//
// Plain functions are registered under an explicit name and are always
// regular:
//
//	reg := task.NewRegistry()
//	err := reg.Register("math.add", task.Func(add))
//
// Stateful task types opt in by embedding [Base] (regular) or
// [PeriodicBase] (periodic). The registry instantiates a type exactly
// once; every lookup shares that instance:
//
//	type Cleanup struct {
//	    task.PeriodicBase
//	    db *sql.DB
//	}
//
//	func (c *Cleanup) Name() string { return "maintenance.cleanup" }
//	func (c *Cleanup) Run(ctx context.Context, _ task.Args) (any, error) { ... }
//
//	err := reg.RegisterType(func() task.Task {
//	    return &Cleanup{PeriodicBase: task.PeriodicBase{Cron: "@hourly"}, db: db}
//	})
//
// Registering a name twice fails with tasker.ErrAlreadyRegistered and
// leaves the registry unchanged.
//
// # Filtering
//
// [Registry.Regular] and [Registry.Periodic] partition [Registry.All]. The
// periodic view is what an external scheduler enumerates; this package
// validates periodic schedules but never fires them.
package task
