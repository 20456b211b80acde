package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/xraph/tasker/invocation"
)

// Recover returns middleware that recovers from panics in the handler chain.
// Panics are converted to errors and logged with a stack trace.
func Recover(logger *slog.Logger) Middleware {
	return func(ctx context.Context, inv *invocation.Invocation, next Handler) (retErr error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("task behavior panicked",
					slog.String("task", inv.TaskName),
					slog.String("invocation_id", inv.ID.String()),
					slog.Any("panic", r),
					slog.String("stack", string(debug.Stack())),
				)
				retErr = fmt.Errorf("panic in task %s: %v", inv.TaskName, r)
			}
		}()
		return next(ctx)
	}
}
