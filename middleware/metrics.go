package middleware

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/xraph/tasker/invocation"
)

// meterName is the instrumentation scope name for tasker metrics.
const meterName = "github.com/xraph/tasker"

// Metrics returns middleware that records per-invocation metrics using the
// global MeterProvider.
//
// Instruments:
//   - tasker.invocation.duration (Float64Histogram): execution time in
//     seconds, with attributes task, queue, status ("ok" or "error")
//   - tasker.invocation.executions (Int64Counter): total executions with
//     the same attributes
func Metrics() Middleware {
	return MetricsWithMeter(otel.Meter(meterName))
}

// MetricsWithMeter returns metrics middleware using the provided meter.
func MetricsWithMeter(meter metric.Meter) Middleware {
	// On error the API returns noop instruments.
	duration, _ := meter.Float64Histogram(
		"tasker.invocation.duration",
		metric.WithDescription("Duration of invocation execution in seconds"),
		metric.WithUnit("s"),
	)
	executions, _ := meter.Int64Counter(
		"tasker.invocation.executions",
		metric.WithDescription("Total number of invocation executions"),
		metric.WithUnit("{execution}"),
	)

	return func(ctx context.Context, inv *invocation.Invocation, next Handler) error {
		start := time.Now()
		err := next(ctx)
		elapsed := time.Since(start).Seconds()

		status := "ok"
		if err != nil {
			status = "error"
		}

		attrs := metric.WithAttributes(
			attribute.String("task", inv.TaskName),
			attribute.String("queue", inv.Queue),
			attribute.String("status", status),
		)
		duration.Record(ctx, elapsed, attrs)
		executions.Add(ctx, 1, attrs)

		return err
	}
}
