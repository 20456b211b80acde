package middleware

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/xraph/tasker/invocation"
)

// tracerName is the instrumentation scope name for tasker tracing.
const tracerName = "github.com/xraph/tasker"

// Tracing returns middleware that wraps execution in an OpenTelemetry span
// using the global TracerProvider.
//
// Span attributes: tasker.invocation.id, tasker.task.name, tasker.queue,
// tasker.group.id and tasker.group.index for group members.
func Tracing() Middleware {
	return TracingWithTracer(otel.Tracer(tracerName))
}

// TracingWithTracer returns tracing middleware using the provided tracer.
func TracingWithTracer(tracer trace.Tracer) Middleware {
	return func(ctx context.Context, inv *invocation.Invocation, next Handler) error {
		attrs := []attribute.KeyValue{
			attribute.String("tasker.invocation.id", inv.ID.String()),
			attribute.String("tasker.task.name", inv.TaskName),
			attribute.String("tasker.queue", inv.Queue),
		}
		if !inv.GroupID.IsNil() {
			attrs = append(attrs,
				attribute.String("tasker.group.id", inv.GroupID.String()),
				attribute.Int("tasker.group.index", inv.GroupIndex),
			)
		}

		ctx, span := tracer.Start(ctx, "tasker.invocation.execute",
			trace.WithAttributes(attrs...),
			trace.WithSpanKind(trace.SpanKindInternal),
		)
		defer span.End()

		err := next(ctx)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}

		return err
	}
}
