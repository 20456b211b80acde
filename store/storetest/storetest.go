// Package storetest holds behavior checks shared by every invocation.Store
// backend. Backend test files call Run with a factory that returns an
// empty store.
package storetest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/xraph/tasker"
	"github.com/xraph/tasker/id"
	"github.com/xraph/tasker/invocation"
)

// Factory returns an empty store. It is called once per check.
type Factory func(t *testing.T) invocation.Store

// Run executes every check against stores produced by newStore. Checks run
// sequentially so backends sharing one server can reset between them.
func Run(t *testing.T, newStore Factory) {
	t.Helper()

	checks := []struct {
		name string
		fn   func(t *testing.T, s invocation.Store)
	}{
		{"EnqueueAndGet", testEnqueueAndGet},
		{"Dequeue", testDequeue},
		{"DequeueSkipsDeleted", testDequeueSkipsDeleted},
		{"DequeueConcurrentClaims", testDequeueConcurrentClaims},
		{"Complete", testComplete},
		{"Delete", testDelete},
		{"ListByStateAndCount", testListByStateAndCount},
		{"ListGroup", testListGroup},
		{"Ping", testPing},
	}

	for _, c := range checks {
		t.Run(c.name, func(t *testing.T) {
			c.fn(t, newStore(t))
		})
	}
}

// NewInvocation returns a pending invocation with a fresh ID.
func NewInvocation(name, queue string, created time.Time) *invocation.Invocation {
	return &invocation.Invocation{
		ID:        id.NewInvocationID(),
		TaskName:  name,
		Queue:     queue,
		Codec:     "json",
		Payload:   []byte(`{"args":[1]}`),
		State:     invocation.StatePending,
		CreatedAt: created,
	}
}

// Names returns the task names of invs in order.
func Names(invs []*invocation.Invocation) []string {
	out := make([]string, len(invs))
	for i, inv := range invs {
		out[i] = inv.TaskName
	}
	return out
}

func testEnqueueAndGet(t *testing.T, s invocation.Store) {
	ctx := context.Background()

	inv := NewInvocation("add", "default", time.Now().UTC())
	inv.Timeout = 3 * time.Second

	if err := s.Enqueue(ctx, inv); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if err := s.Enqueue(ctx, inv); !errors.Is(err, tasker.ErrInvocationExists) {
		t.Fatalf("duplicate Enqueue = %v, want ErrInvocationExists", err)
	}

	got, err := s.Get(ctx, inv.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.ID.String() != inv.ID.String() {
		t.Fatalf("ID = %s, want %s", got.ID, inv.ID)
	}
	if got.TaskName != "add" || got.Queue != "default" || got.Codec != "json" {
		t.Fatalf("got %q/%q/%q, want add/default/json", got.TaskName, got.Queue, got.Codec)
	}
	if got.State != invocation.StatePending {
		t.Fatalf("State = %s, want pending", got.State)
	}
	if string(got.Payload) != string(inv.Payload) {
		t.Fatalf("Payload = %q, want %q", got.Payload, inv.Payload)
	}
	if got.Timeout != inv.Timeout {
		t.Fatalf("Timeout = %v, want %v", got.Timeout, inv.Timeout)
	}
	if !got.GroupID.IsNil() {
		t.Fatalf("GroupID = %s, want nil", got.GroupID)
	}

	if _, err := s.Get(ctx, id.NewInvocationID()); !errors.Is(err, tasker.ErrInvocationNotFound) {
		t.Fatalf("Get missing = %v, want ErrInvocationNotFound", err)
	}
}

func testDequeueSkipsDeleted(t *testing.T, s invocation.Store) {
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Minute)
	kept := NewInvocation("kept", "default", base)
	gone := NewInvocation("gone", "default", base.Add(time.Second))
	for _, inv := range []*invocation.Invocation{kept, gone} {
		if err := s.Enqueue(ctx, inv); err != nil {
			t.Fatalf("Enqueue: %v", err)
		}
	}
	if err := s.Delete(ctx, gone.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	got, err := s.Dequeue(ctx, []string{"default"}, id.NewWorkerID(), 2)
	if err != nil {
		t.Fatalf("Dequeue: %v", err)
	}
	if len(got) != 1 || got[0].TaskName != "kept" {
		t.Fatalf("got %v, want [kept]", Names(got))
	}

	stored, err := s.Get(ctx, kept.ID)
	if err != nil {
		t.Fatalf("Get kept: %v", err)
	}
	if stored.State != invocation.StateRunning {
		t.Fatalf("kept State = %s, want running", stored.State)
	}
	if _, err := s.Get(ctx, gone.ID); !errors.Is(err, tasker.ErrInvocationNotFound) {
		t.Fatalf("Get deleted = %v, want ErrInvocationNotFound", err)
	}
}

func testDequeue(t *testing.T, s invocation.Store) {
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Minute)
	first := NewInvocation("first", "default", base)
	second := NewInvocation("second", "default", base.Add(time.Second))
	other := NewInvocation("other", "critical", base)

	for _, inv := range []*invocation.Invocation{second, other, first} {
		if err := s.Enqueue(ctx, inv); err != nil {
			t.Fatalf("Enqueue: %v", err)
		}
	}

	workerID := id.NewWorkerID()
	got, err := s.Dequeue(ctx, []string{"default"}, workerID, 1)
	if err != nil {
		t.Fatalf("Dequeue: %v", err)
	}
	if len(got) != 1 || got[0].TaskName != "first" {
		t.Fatalf("got %v, want [first]", Names(got))
	}
	if got[0].State != invocation.StateRunning {
		t.Fatalf("State = %s, want running", got[0].State)
	}
	if got[0].WorkerID.String() != workerID.String() {
		t.Fatalf("WorkerID = %s, want %s", got[0].WorkerID, workerID)
	}
	if got[0].StartedAt == nil {
		t.Fatal("StartedAt not set")
	}

	got, err = s.Dequeue(ctx, nil, workerID, 0)
	if err != nil {
		t.Fatalf("Dequeue: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %v, want the two remaining invocations", Names(got))
	}

	got, err = s.Dequeue(ctx, nil, workerID, 10)
	if err != nil {
		t.Fatalf("Dequeue: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("got %v, want nothing left", Names(got))
	}
}

func testDequeueConcurrentClaims(t *testing.T, s invocation.Store) {
	ctx := context.Background()

	const total = 50
	base := time.Now().UTC().Add(-time.Minute)
	for i := range total {
		inv := NewInvocation("n", "default", base.Add(time.Duration(i)*time.Millisecond))
		if err := s.Enqueue(ctx, inv); err != nil {
			t.Fatalf("Enqueue: %v", err)
		}
	}

	var (
		mu   sync.Mutex
		seen = make(map[string]int)
		wg   sync.WaitGroup
	)
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			wid := id.NewWorkerID()
			for {
				got, err := s.Dequeue(ctx, []string{"default"}, wid, 3)
				if err != nil || len(got) == 0 {
					return
				}
				mu.Lock()
				for _, inv := range got {
					seen[inv.ID.String()]++
				}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if len(seen) != total {
		t.Fatalf("claimed %d distinct invocations, want %d", len(seen), total)
	}
	for k, n := range seen {
		if n != 1 {
			t.Fatalf("invocation %s claimed %d times", k, n)
		}
	}
}

func testComplete(t *testing.T, s invocation.Store) {
	ctx := context.Background()

	inv := NewInvocation("add", "default", time.Now().UTC())
	if err := s.Enqueue(ctx, inv); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	inv.State = invocation.StateSucceeded
	if err := s.Complete(ctx, inv); !errors.Is(err, tasker.ErrInvalidState) {
		t.Fatalf("Complete pending = %v, want ErrInvalidState", err)
	}

	if _, err := s.Dequeue(ctx, nil, id.NewWorkerID(), 1); err != nil {
		t.Fatalf("Dequeue: %v", err)
	}

	inv.Result = []byte("3")
	if err := s.Complete(ctx, inv); err != nil {
		t.Fatalf("Complete: %v", err)
	}

	got, err := s.Get(ctx, inv.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.State != invocation.StateSucceeded || string(got.Result) != "3" {
		t.Fatalf("got %s/%q, want succeeded/3", got.State, got.Result)
	}
	if got.CompletedAt == nil {
		t.Fatal("CompletedAt not set")
	}

	inv.State = invocation.StateFailed
	if err := s.Complete(ctx, inv); !errors.Is(err, tasker.ErrInvalidState) {
		t.Fatalf("Complete terminal = %v, want ErrInvalidState", err)
	}

	missing := NewInvocation("x", "default", time.Now().UTC())
	missing.State = invocation.StateFailed
	if err := s.Complete(ctx, missing); !errors.Is(err, tasker.ErrInvocationNotFound) {
		t.Fatalf("Complete missing = %v, want ErrInvocationNotFound", err)
	}
}

func testDelete(t *testing.T, s invocation.Store) {
	ctx := context.Background()

	inv := NewInvocation("add", "default", time.Now().UTC())
	if err := s.Enqueue(ctx, inv); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if err := s.Delete(ctx, inv.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Get(ctx, inv.ID); !errors.Is(err, tasker.ErrInvocationNotFound) {
		t.Fatalf("Get deleted = %v, want ErrInvocationNotFound", err)
	}
	if err := s.Delete(ctx, inv.ID); !errors.Is(err, tasker.ErrInvocationNotFound) {
		t.Fatalf("second Delete = %v, want ErrInvocationNotFound", err)
	}

	got, err := s.Dequeue(ctx, nil, id.NewWorkerID(), 0)
	if err != nil {
		t.Fatalf("Dequeue: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("deleted invocation was dequeued: %v", Names(got))
	}
}

func testListByStateAndCount(t *testing.T, s invocation.Store) {
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Hour)
	for i := range 5 {
		q := "default"
		if i%2 == 1 {
			q = "low"
		}
		if err := s.Enqueue(ctx, NewInvocation("n", q, base.Add(time.Duration(i)*time.Second))); err != nil {
			t.Fatalf("Enqueue: %v", err)
		}
	}

	tests := []struct {
		name string
		opts invocation.ListOpts
		want int
	}{
		{"all", invocation.ListOpts{}, 5},
		{"queue filter", invocation.ListOpts{Queue: "low"}, 2},
		{"limit", invocation.ListOpts{Limit: 2}, 2},
		{"offset", invocation.ListOpts{Offset: 4}, 1},
		{"offset past end", invocation.ListOpts{Offset: 10}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.ListByState(ctx, invocation.StatePending, tt.opts)
			if err != nil {
				t.Fatalf("ListByState: %v", err)
			}
			if len(got) != tt.want {
				t.Fatalf("got %d, want %d", len(got), tt.want)
			}
		})
	}

	counts := []struct {
		name string
		opts invocation.CountOpts
		want int64
	}{
		{"everything", invocation.CountOpts{}, 5},
		{"queue and state", invocation.CountOpts{Queue: "default", State: invocation.StatePending}, 3},
		{"no running", invocation.CountOpts{State: invocation.StateRunning}, 0},
	}
	for _, tt := range counts {
		t.Run("Count/"+tt.name, func(t *testing.T) {
			n, err := s.Count(ctx, tt.opts)
			if err != nil {
				t.Fatalf("Count: %v", err)
			}
			if n != tt.want {
				t.Fatalf("Count = %d, want %d", n, tt.want)
			}
		})
	}
}

func testListGroup(t *testing.T, s invocation.Store) {
	ctx := context.Background()

	gid := id.NewGroupID()
	for _, idx := range []int{2, 0, 1} {
		inv := NewInvocation("sq", "default", time.Now().UTC())
		inv.GroupID = gid
		inv.GroupIndex = idx
		if err := s.Enqueue(ctx, inv); err != nil {
			t.Fatalf("Enqueue: %v", err)
		}
	}
	if err := s.Enqueue(ctx, NewInvocation("solo", "default", time.Now().UTC())); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	got, err := s.ListGroup(ctx, gid)
	if err != nil {
		t.Fatalf("ListGroup: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d members, want 3", len(got))
	}
	for i, inv := range got {
		if inv.GroupIndex != i {
			t.Fatalf("member %d has index %d", i, inv.GroupIndex)
		}
		if inv.GroupID.String() != gid.String() {
			t.Fatalf("member %d has group %s", i, inv.GroupID)
		}
	}

	empty, err := s.ListGroup(ctx, id.NewGroupID())
	if err != nil {
		t.Fatalf("ListGroup unknown: %v", err)
	}
	if len(empty) != 0 {
		t.Fatalf("unknown group has %d members", len(empty))
	}
}

func testPing(t *testing.T, s invocation.Store) {
	if err := s.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
}
