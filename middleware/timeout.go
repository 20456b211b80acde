package middleware

import (
	"context"
	"log/slog"

	"github.com/xraph/tasker/invocation"
)

// Timeout returns middleware that enforces the invocation's execution
// deadline. Behaviors are expected to honor ctx; one that ignores it runs
// to completion.
func Timeout(logger *slog.Logger) Middleware {
	return func(ctx context.Context, inv *invocation.Invocation, next Handler) error {
		if inv.Timeout > 0 {
			logger.Debug("invocation timeout set",
				slog.String("invocation_id", inv.ID.String()),
				slog.Duration("timeout", inv.Timeout),
			)
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, inv.Timeout)
			defer cancel()
		}
		return next(ctx)
	}
}
