package middleware_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	"github.com/xraph/tasker/id"
	"github.com/xraph/tasker/invocation"
	mw "github.com/xraph/tasker/middleware"
)

func newTestInvocation() *invocation.Invocation {
	return &invocation.Invocation{
		ID:         id.NewInvocationID(),
		TaskName:   "square",
		Queue:      "default",
		GroupID:    id.NewGroupID(),
		GroupIndex: 2,
	}
}

// traceOne runs inv through the tracing middleware and returns the single
// span it ended, plus the span context the handler saw.
func traceOne(t *testing.T, inv *invocation.Invocation, handlerErr error) (sdktrace.ReadOnlySpan, trace.SpanContext) {
	t.Helper()

	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	m := mw.TracingWithTracer(tp.Tracer("test"))

	var seen trace.SpanContext
	err := m(context.Background(), inv, func(ctx context.Context) error {
		seen = trace.SpanFromContext(ctx).SpanContext()
		return handlerErr
	})
	if !errors.Is(err, handlerErr) {
		t.Fatalf("middleware returned %v, want %v", err, handlerErr)
	}

	spans := sr.Ended()
	if len(spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(spans))
	}
	return spans[0], seen
}

func spanAttrs(s sdktrace.ReadOnlySpan) map[string]any {
	out := make(map[string]any)
	for _, a := range s.Attributes() {
		switch a.Value.Type() {
		case attribute.STRING:
			out[string(a.Key)] = a.Value.AsString()
		case attribute.INT64:
			out[string(a.Key)] = a.Value.AsInt64()
		}
	}
	return out
}

func TestTracing_GroupMember(t *testing.T) {
	inv := newTestInvocation()
	span, handlerCtx := traceOne(t, inv, nil)

	if span.Name() != "tasker.invocation.execute" {
		t.Errorf("span name = %q", span.Name())
	}
	if span.Status().Code != codes.Ok {
		t.Errorf("status = %v, want Ok", span.Status().Code)
	}
	if !handlerCtx.IsValid() || handlerCtx.TraceID() != span.SpanContext().TraceID() {
		t.Error("handler did not receive the middleware span context")
	}

	want := map[string]any{
		"tasker.invocation.id": inv.ID.String(),
		"tasker.task.name":     "square",
		"tasker.queue":         "default",
		"tasker.group.id":      inv.GroupID.String(),
		"tasker.group.index":   int64(2),
	}
	if diff := cmp.Diff(want, spanAttrs(span)); diff != "" {
		t.Errorf("attributes (-want +got):\n%s", diff)
	}
}

func TestTracing_SingleInvocationHasNoGroupAttributes(t *testing.T) {
	inv := &invocation.Invocation{ID: id.NewInvocationID(), TaskName: "tasker.ping", Queue: "default"}
	span, _ := traceOne(t, inv, nil)

	attrs := spanAttrs(span)
	for _, k := range []string{"tasker.group.id", "tasker.group.index"} {
		if _, ok := attrs[k]; ok {
			t.Errorf("unexpected attribute %q", k)
		}
	}
}

func TestTracing_ErrorStatus(t *testing.T) {
	span, _ := traceOne(t, newTestInvocation(), errors.New("handler failed"))

	if span.Status().Code != codes.Error || span.Status().Description != "handler failed" {
		t.Errorf("status = %v %q, want Error %q", span.Status().Code, span.Status().Description, "handler failed")
	}

	recorded := false
	for _, ev := range span.Events() {
		if ev.Name == "exception" {
			recorded = true
		}
	}
	if !recorded {
		t.Error("error was not recorded as an exception event")
	}
}

func TestTracing_GlobalProviderIsSafe(t *testing.T) {
	called := false
	err := mw.Tracing()(context.Background(), newTestInvocation(), func(context.Context) error {
		called = true
		return nil
	})
	if err != nil || !called {
		t.Fatalf("err = %v, called = %v", err, called)
	}
}
