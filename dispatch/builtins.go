package dispatch

import (
	"context"
	"fmt"

	"github.com/xraph/tasker"
	"github.com/xraph/tasker/remote"
	"github.com/xraph/tasker/task"
)

// RegisterBuiltins installs the reserved tasks into r. The remote task
// resolves functions through c, so only allow-listed functions ever run.
// Either both tasks are installed or r is left as it was.
func RegisterBuiltins(r *task.Registry, c *remote.Catalog) error {
	for _, name := range []string{TaskPing, TaskExecuteRemote} {
		if _, ok := r.Lookup(name); ok {
			return fmt.Errorf("reserved task %q: %w", name, tasker.ErrAlreadyRegistered)
		}
	}
	if err := r.Register(TaskPing, ping); err != nil {
		return err
	}
	if err := r.Register(TaskExecuteRemote, executeRemote(c)); err != nil {
		_ = r.Unregister(TaskPing) //nolint:errcheck // rollback of the insert above
		return err
	}
	return nil
}

func ping(context.Context, task.Args) (any, error) {
	return Pong, nil
}

func executeRemote(c *remote.Catalog) task.Func {
	return func(ctx context.Context, args task.Args) (any, error) {
		if c == nil {
			return nil, fmt.Errorf("no remote catalog: %w", remote.ErrNotAllowed)
		}
		var call remote.Call
		if err := args.Bind(0, &call); err != nil {
			return nil, fmt.Errorf("decode remote call: %w", err)
		}
		fn, err := c.Resolve(call.Func)
		if err != nil {
			return nil, err
		}
		return fn(ctx, call.Args)
	}
}
