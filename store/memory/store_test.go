package memory

import (
	"context"
	"testing"
	"time"

	"github.com/xraph/tasker/id"
	"github.com/xraph/tasker/invocation"
	"github.com/xraph/tasker/store/storetest"
)

// ──────────────────────────────────────────────────
// Lifecycle tests
// ──────────────────────────────────────────────────

func TestLifecycle(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()

	tests := []struct {
		name string
		fn   func() error
	}{
		{"Migrate", func() error { return s.Migrate(ctx) }},
		{"Ping", func() error { return s.Ping(ctx) }},
		{"Close", func() error { return s.Close() }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.fn(); err != nil {
				t.Fatalf("%s returned error: %v", tt.name, err)
			}
		})
	}
}

// ──────────────────────────────────────────────────
// Invocation tests
// ──────────────────────────────────────────────────

func TestConformance(t *testing.T) {
	storetest.Run(t, func(*testing.T) invocation.Store { return New() })
}

func TestGetReturnsCopy(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()

	inv := newInvocation("add", "default", time.Now().UTC())
	if err := s.Enqueue(ctx, inv); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	got, err := s.Get(ctx, inv.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}

	// Mutating the returned copy must not leak into the store.
	got.Payload[0] = 'X'
	again, _ := s.Get(ctx, inv.ID)
	if again.Payload[0] != '{' {
		t.Fatal("Get returned a shared payload buffer")
	}
}

func TestDequeue_SameTimestampKeepsSubmissionOrder(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()

	now := time.Now().UTC()
	want := []string{"a", "b", "c", "d"}
	for _, n := range want {
		if err := s.Enqueue(ctx, newInvocation(n, "default", now)); err != nil {
			t.Fatalf("Enqueue: %v", err)
		}
	}

	got, err := s.Dequeue(ctx, []string{"default"}, id.NewWorkerID(), 0)
	if err != nil {
		t.Fatalf("Dequeue: %v", err)
	}
	for i, n := range storetest.Names(got) {
		if n != want[i] {
			t.Fatalf("order = %v, want %v", storetest.Names(got), want)
		}
	}
}

func newInvocation(name, queue string, created time.Time) *invocation.Invocation {
	return storetest.NewInvocation(name, queue, created)
}
