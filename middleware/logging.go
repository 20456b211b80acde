package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/xraph/tasker/invocation"
)

// Logging returns middleware that logs invocation start and completion.
func Logging(logger *slog.Logger) Middleware {
	return func(ctx context.Context, inv *invocation.Invocation, next Handler) error {
		attrs := []any{
			slog.String("task", inv.TaskName),
			slog.String("invocation_id", inv.ID.String()),
			slog.String("queue", inv.Queue),
		}
		if !inv.GroupID.IsNil() {
			attrs = append(attrs,
				slog.String("group_id", inv.GroupID.String()),
				slog.Int("group_index", inv.GroupIndex),
			)
		}

		logger.Info("invocation started", attrs...)

		start := time.Now()
		err := next(ctx)
		attrs = append(attrs, slog.Duration("elapsed", time.Since(start)))

		if err != nil {
			logger.Error("invocation failed", append(attrs, slog.String("error", err.Error()))...)
		} else {
			logger.Info("invocation succeeded", attrs...)
		}

		return err
	}
}
