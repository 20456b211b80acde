package ext_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/xraph/tasker/ext"
	"github.com/xraph/tasker/id"
	"github.com/xraph/tasker/invocation"
	"github.com/xraph/tasker/task"
)

// ──────────────────────────────────────────────────
// Test extensions
// ──────────────────────────────────────────────────

// allHooksExt implements every lifecycle hook for testing.
type allHooksExt struct {
	calls []string
}

func (e *allHooksExt) Name() string { return "all-hooks" }

func (e *allHooksExt) OnTaskRegistered(_ context.Context, _ *task.Definition) error {
	e.calls = append(e.calls, "OnTaskRegistered")
	return nil
}

func (e *allHooksExt) OnTaskUnregistered(_ context.Context, _ *task.Definition) error {
	e.calls = append(e.calls, "OnTaskUnregistered")
	return nil
}

func (e *allHooksExt) OnInvocationSubmitted(_ context.Context, _ *invocation.Invocation) error {
	e.calls = append(e.calls, "OnInvocationSubmitted")
	return nil
}

func (e *allHooksExt) OnGroupSubmitted(_ context.Context, _ id.GroupID, _ string, _ int) error {
	e.calls = append(e.calls, "OnGroupSubmitted")
	return nil
}

func (e *allHooksExt) OnInvocationStarted(_ context.Context, _ *invocation.Invocation) error {
	e.calls = append(e.calls, "OnInvocationStarted")
	return nil
}

func (e *allHooksExt) OnInvocationSucceeded(_ context.Context, _ *invocation.Invocation, _ time.Duration) error {
	e.calls = append(e.calls, "OnInvocationSucceeded")
	return nil
}

func (e *allHooksExt) OnInvocationFailed(_ context.Context, _ *invocation.Invocation, _ error) error {
	e.calls = append(e.calls, "OnInvocationFailed")
	return nil
}

func (e *allHooksExt) OnShutdown(_ context.Context) error {
	e.calls = append(e.calls, "OnShutdown")
	return nil
}

// submitOnlyExt implements a subset of hooks.
type submitOnlyExt struct {
	calls []string
}

func (e *submitOnlyExt) Name() string { return "submit-only" }

func (e *submitOnlyExt) OnInvocationSubmitted(_ context.Context, _ *invocation.Invocation) error {
	e.calls = append(e.calls, "OnInvocationSubmitted")
	return nil
}

// failingExt returns errors from its hooks.
type failingExt struct{}

func (e *failingExt) Name() string { return "failing" }

func (e *failingExt) OnInvocationSubmitted(_ context.Context, _ *invocation.Invocation) error {
	return errors.New("submit hook failed")
}

func (e *failingExt) OnShutdown(_ context.Context) error {
	return errors.New("shutdown hook failed")
}

// ──────────────────────────────────────────────────
// Tests
// ──────────────────────────────────────────────────

func TestRegistry_RegisterDiscoversInterfaces(t *testing.T) {
	r := ext.NewRegistry(slog.Default())
	r.Register(&allHooksExt{})

	if got := len(r.Extensions()); got != 1 {
		t.Fatalf("expected 1 extension, got %d", got)
	}
	if got := r.Extensions()[0].Name(); got != "all-hooks" {
		t.Fatalf("expected name 'all-hooks', got %q", got)
	}
}

func TestRegistry_EmitFiresOnlyImplementors(t *testing.T) {
	r := ext.NewRegistry(slog.Default())
	all := &allHooksExt{}
	so := &submitOnlyExt{}
	r.Register(all)
	r.Register(so)

	ctx := context.Background()
	inv := &invocation.Invocation{TaskName: "add"}

	r.EmitInvocationSubmitted(ctx, inv)
	if len(all.calls) != 1 || len(so.calls) != 1 {
		t.Fatalf("expected one call each, got all=%v so=%v", all.calls, so.calls)
	}

	r.EmitInvocationStarted(ctx, inv)
	if len(all.calls) != 2 || all.calls[1] != "OnInvocationStarted" {
		t.Fatalf("all: expected OnInvocationStarted as 2nd, got %v", all.calls)
	}
	if len(so.calls) != 1 {
		t.Fatalf("so: should still have 1 call, got %v", so.calls)
	}
}

func TestRegistry_AllHooksFire(t *testing.T) {
	r := ext.NewRegistry(slog.Default())
	all := &allHooksExt{}
	r.Register(all)

	reg := task.NewRegistry()
	if err := reg.Register("add", func(context.Context, task.Args) (any, error) { return nil, nil }); err != nil {
		t.Fatalf("Register: %v", err)
	}
	def, err := reg.Get("add")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}

	ctx := context.Background()
	inv := &invocation.Invocation{TaskName: "add"}

	r.EmitTaskRegistered(ctx, def)
	r.EmitInvocationSubmitted(ctx, inv)
	r.EmitGroupSubmitted(ctx, id.NewGroupID(), "add", 3)
	r.EmitInvocationStarted(ctx, inv)
	r.EmitInvocationSucceeded(ctx, inv, time.Second)
	r.EmitInvocationFailed(ctx, inv, errors.New("fail"))
	r.EmitTaskUnregistered(ctx, def)
	r.EmitShutdown(ctx)

	expected := []string{
		"OnTaskRegistered", "OnInvocationSubmitted", "OnGroupSubmitted",
		"OnInvocationStarted", "OnInvocationSucceeded", "OnInvocationFailed",
		"OnTaskUnregistered", "OnShutdown",
	}
	if len(all.calls) != len(expected) {
		t.Fatalf("expected %d calls, got %d: %v", len(expected), len(all.calls), all.calls)
	}
	for i, want := range expected {
		if all.calls[i] != want {
			t.Errorf("call[%d] = %q, want %q", i, all.calls[i], want)
		}
	}
}

func TestRegistry_ObservesTaskRegistry(t *testing.T) {
	r := ext.NewRegistry(slog.Default())
	all := &allHooksExt{}
	r.Register(all)

	reg := task.NewRegistry(task.WithObserver(r))
	fn := func(context.Context, task.Args) (any, error) { return nil, nil }

	if err := reg.Register("add", fn); err != nil {
		t.Fatalf("Register: %v", err)
	}
	// A rejected duplicate must not notify.
	if err := reg.Register("add", fn); err == nil {
		t.Fatal("expected duplicate registration to fail")
	}
	if err := reg.Unregister("add"); err != nil {
		t.Fatalf("Unregister: %v", err)
	}

	expected := []string{"OnTaskRegistered", "OnTaskUnregistered"}
	if len(all.calls) != len(expected) {
		t.Fatalf("expected %v, got %v", expected, all.calls)
	}
	for i, want := range expected {
		if all.calls[i] != want {
			t.Errorf("call[%d] = %q, want %q", i, all.calls[i], want)
		}
	}
}

func TestRegistry_HookErrorsLoggedNotPropagated(t *testing.T) {
	r := ext.NewRegistry(slog.Default())
	all := &allHooksExt{}

	// Register failing first, then all-hooks. Both should be called.
	r.Register(&failingExt{})
	r.Register(all)

	ctx := context.Background()
	r.EmitInvocationSubmitted(ctx, &invocation.Invocation{})
	r.EmitShutdown(ctx)

	if len(all.calls) != 2 {
		t.Fatalf("all: expected 2 calls despite failing ext, got %v", all.calls)
	}
}

func TestRegistry_EmptyRegistryNoOp(_ *testing.T) {
	r := ext.NewRegistry(slog.Default())
	ctx := context.Background()

	// None of these should panic.
	r.EmitTaskRegistered(ctx, nil)
	r.EmitTaskUnregistered(ctx, nil)
	r.EmitInvocationSubmitted(ctx, &invocation.Invocation{})
	r.EmitGroupSubmitted(ctx, id.NewGroupID(), "x", 0)
	r.EmitInvocationStarted(ctx, &invocation.Invocation{})
	r.EmitInvocationSucceeded(ctx, &invocation.Invocation{}, time.Second)
	r.EmitInvocationFailed(ctx, &invocation.Invocation{}, errors.New("x"))
	r.EmitShutdown(ctx)
}

func TestRegistry_MultipleExtensionsOrderPreserved(t *testing.T) {
	r := ext.NewRegistry(slog.Default())
	var order []string
	r.Register(&orderedExt{name: "first", order: &order})
	r.Register(&orderedExt{name: "second", order: &order})

	r.EmitShutdown(context.Background())

	if len(order) != 2 || order[0] != "first" || order[1] != "second" {
		t.Fatalf("expected [first second], got %v", order)
	}
}

type orderedExt struct {
	name  string
	order *[]string
}

func (e *orderedExt) Name() string { return e.name }

func (e *orderedExt) OnShutdown(_ context.Context) error {
	*e.order = append(*e.order, e.name)
	return nil
}
