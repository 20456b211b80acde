package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/xraph/tasker/ext"
	"github.com/xraph/tasker/id"
	"github.com/xraph/tasker/invocation"
	"github.com/xraph/tasker/task"
)

// Compile-time interface checks.
var (
	_ ext.Extension           = (*MetricsExtension)(nil)
	_ ext.TaskRegistered      = (*MetricsExtension)(nil)
	_ ext.TaskUnregistered    = (*MetricsExtension)(nil)
	_ ext.InvocationSubmitted = (*MetricsExtension)(nil)
	_ ext.GroupSubmitted      = (*MetricsExtension)(nil)
	_ ext.InvocationSucceeded = (*MetricsExtension)(nil)
	_ ext.InvocationFailed    = (*MetricsExtension)(nil)
)

const meterName = "github.com/xraph/tasker/observability"

// MetricsExtension records system-wide lifecycle counters through the
// OpenTelemetry metric API.
type MetricsExtension struct {
	TaskRegistered      metric.Int64Counter
	TaskUnregistered    metric.Int64Counter
	InvocationSubmitted metric.Int64Counter
	GroupSubmitted      metric.Int64Counter
	InvocationSucceeded metric.Int64Counter
	InvocationFailed    metric.Int64Counter
}

// NewMetricsExtension creates a MetricsExtension using the global MeterProvider.
func NewMetricsExtension() *MetricsExtension {
	return NewMetricsExtensionWithMeter(otel.Meter(meterName))
}

// NewMetricsExtensionWithMeter creates a MetricsExtension with the provided meter.
func NewMetricsExtensionWithMeter(meter metric.Meter) *MetricsExtension {
	counter := func(name, desc string) metric.Int64Counter {
		// On error the API returns a noop instrument.
		c, _ := meter.Int64Counter(name, metric.WithDescription(desc))
		return c
	}
	return &MetricsExtension{
		TaskRegistered:      counter("tasker.task.registered", "Tasks added to the registry"),
		TaskUnregistered:    counter("tasker.task.unregistered", "Tasks removed from the registry"),
		InvocationSubmitted: counter("tasker.invocation.submitted", "Invocations persisted"),
		GroupSubmitted:      counter("tasker.group.submitted", "Invocation groups persisted"),
		InvocationSucceeded: counter("tasker.invocation.succeeded", "Invocations that stored a result"),
		InvocationFailed:    counter("tasker.invocation.failed", "Invocations that stored a failure"),
	}
}

// Name implements ext.Extension.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// ── Registry hooks ──────────────────────────────────

// OnTaskRegistered implements ext.TaskRegistered.
func (m *MetricsExtension) OnTaskRegistered(ctx context.Context, d *task.Definition) error {
	m.TaskRegistered.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", d.Kind().String())))
	return nil
}

// OnTaskUnregistered implements ext.TaskUnregistered.
func (m *MetricsExtension) OnTaskUnregistered(ctx context.Context, d *task.Definition) error {
	m.TaskUnregistered.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", d.Kind().String())))
	return nil
}

// ── Invocation hooks ────────────────────────────────

// OnInvocationSubmitted implements ext.InvocationSubmitted.
func (m *MetricsExtension) OnInvocationSubmitted(ctx context.Context, inv *invocation.Invocation) error {
	m.InvocationSubmitted.Add(ctx, 1, invocationAttrs(inv))
	return nil
}

// OnGroupSubmitted implements ext.GroupSubmitted.
func (m *MetricsExtension) OnGroupSubmitted(ctx context.Context, _ id.GroupID, taskName string, _ int) error {
	m.GroupSubmitted.Add(ctx, 1, metric.WithAttributes(attribute.String("task", taskName)))
	return nil
}

// OnInvocationSucceeded implements ext.InvocationSucceeded.
func (m *MetricsExtension) OnInvocationSucceeded(ctx context.Context, inv *invocation.Invocation, _ time.Duration) error {
	m.InvocationSucceeded.Add(ctx, 1, invocationAttrs(inv))
	return nil
}

// OnInvocationFailed implements ext.InvocationFailed.
func (m *MetricsExtension) OnInvocationFailed(ctx context.Context, inv *invocation.Invocation, _ error) error {
	m.InvocationFailed.Add(ctx, 1, invocationAttrs(inv))
	return nil
}

func invocationAttrs(inv *invocation.Invocation) metric.MeasurementOption {
	return metric.WithAttributes(
		attribute.String("task", inv.TaskName),
		attribute.String("queue", inv.Queue),
	)
}
