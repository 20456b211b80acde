package result_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/xraph/tasker"
	"github.com/xraph/tasker/id"
	"github.com/xraph/tasker/invocation"
	"github.com/xraph/tasker/result"
	"github.com/xraph/tasker/store/memory"
)

const poll = 5 * time.Millisecond

func enqueue(t *testing.T, s *memory.Store, gid id.GroupID, idx int) *invocation.Invocation {
	t.Helper()
	inv := &invocation.Invocation{
		ID:         id.NewInvocationID(),
		TaskName:   "square",
		Queue:      "default",
		Codec:      "json",
		State:      invocation.StatePending,
		GroupID:    gid,
		GroupIndex: idx,
	}
	if err := s.Enqueue(context.Background(), inv); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	return inv
}

// complete claims inv and records its outcome, the way a worker would.
func complete(s *memory.Store, inv *invocation.Invocation, state invocation.State, res, msg string) error {
	ctx := context.Background()
	if _, err := s.Dequeue(ctx, []string{inv.Queue}, id.NewWorkerID(), 1); err != nil {
		return err
	}
	inv.State = state
	if res != "" {
		inv.Result = []byte(res)
	}
	inv.Error = msg
	return s.Complete(ctx, inv)
}

func finish(t *testing.T, s *memory.Store, inv *invocation.Invocation, state invocation.State, res, msg string) {
	t.Helper()
	if err := complete(s, inv, state, res, msg); err != nil {
		t.Fatalf("complete: %v", err)
	}
}

func TestAsyncResult_WaitSuccess(t *testing.T) {
	s := memory.New()
	inv := enqueue(t, s, id.Nil, 0)
	r := result.New(inv.ID, result.NewStoreBackend(s), result.WithPollInterval(poll))

	ready, err := r.Ready(context.Background())
	if err != nil || ready {
		t.Fatalf("Ready = %v, %v; want false, nil", ready, err)
	}

	go func() {
		time.Sleep(2 * poll)
		if err := complete(s, inv, invocation.StateSucceeded, `"done"`, ""); err != nil {
			t.Errorf("complete: %v", err)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	got, err := r.Wait(ctx)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if got != "done" {
		t.Fatalf("Wait = %v, want done", got)
	}

	ok, err := r.Successful(ctx)
	if err != nil || !ok {
		t.Fatalf("Successful = %v, %v; want true, nil", ok, err)
	}
}

func TestAsyncResult_WaitFailure(t *testing.T) {
	s := memory.New()
	inv := enqueue(t, s, id.Nil, 0)
	finish(t, s, inv, invocation.StateFailed, "", "boom")

	r := result.New(inv.ID, result.NewStoreBackend(s), result.WithPollInterval(poll))
	_, err := r.Wait(context.Background())

	var te *result.TaskError
	if !errors.As(err, &te) {
		t.Fatalf("Wait error = %v, want *TaskError", err)
	}
	if te.Message != "boom" || te.TaskName != "square" {
		t.Fatalf("TaskError = %+v", te)
	}

	ok, err := r.Successful(context.Background())
	if err != nil || ok {
		t.Fatalf("Successful = %v, %v; want false, nil", ok, err)
	}
}

func TestAsyncResult_WaitContextDeadline(t *testing.T) {
	s := memory.New()
	inv := enqueue(t, s, id.Nil, 0)
	r := result.New(inv.ID, result.NewStoreBackend(s), result.WithPollInterval(poll))

	ctx, cancel := context.WithTimeout(context.Background(), 3*poll)
	defer cancel()

	if _, err := r.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Wait = %v, want DeadlineExceeded", err)
	}

	// The invocation is untouched by the abandoned wait.
	got, err := s.Get(context.Background(), inv.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.State != invocation.StatePending {
		t.Fatalf("state = %s, want pending", got.State)
	}
}

func TestAsyncResult_Decode(t *testing.T) {
	s := memory.New()
	inv := enqueue(t, s, id.Nil, 0)
	finish(t, s, inv, invocation.StateSucceeded, `{"sum":7}`, "")

	var out struct {
		Sum int `json:"sum"`
	}
	r := result.New(inv.ID, result.NewStoreBackend(s))
	if err := r.Decode(context.Background(), &out); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if out.Sum != 7 {
		t.Fatalf("Sum = %d, want 7", out.Sum)
	}
}

func TestStoreBackend_UnknownInvocation(t *testing.T) {
	b := result.NewStoreBackend(memory.New())
	if _, err := b.IsSuccessful(context.Background(), id.NewInvocationID()); !errors.Is(err, tasker.ErrInvocationNotFound) {
		t.Fatalf("IsSuccessful = %v, want ErrInvocationNotFound", err)
	}
}

func TestGroupResult_JoinKeepsSubmissionOrder(t *testing.T) {
	s := memory.New()
	b := result.NewStoreBackend(s)
	gid := id.NewGroupID()

	invs := make([]*invocation.Invocation, 3)
	members := make([]*result.AsyncResult, 3)
	for i := range invs {
		invs[i] = enqueue(t, s, gid, i)
		members[i] = result.New(invs[i].ID, b, result.WithPollInterval(poll))
	}

	// Complete in reverse order.
	go func() {
		for i := len(invs) - 1; i >= 0; i-- {
			time.Sleep(poll)
			if err := complete(s, invs[i], invocation.StateSucceeded, []string{"0", "1", "4"}[i], ""); err != nil {
				t.Errorf("complete: %v", err)
			}
		}
	}()

	g := result.NewGroup(gid, members)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	got, err := g.Join(ctx)
	if err != nil {
		t.Fatalf("Join: %v", err)
	}

	want := []any{json.Number("0"), json.Number("1"), json.Number("4")}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("Join mismatch (-want +got):\n%s", diff)
	}
	if g.Len() != 3 || g.ID().String() != gid.String() {
		t.Fatalf("group metadata mismatch")
	}
}

func TestGroupResult_JoinFirstFailure(t *testing.T) {
	s := memory.New()
	b := result.NewStoreBackend(s)
	gid := id.NewGroupID()

	ok := enqueue(t, s, gid, 0)
	bad := enqueue(t, s, gid, 1)
	finish(t, s, ok, invocation.StateSucceeded, "1", "")
	finish(t, s, bad, invocation.StateFailed, "", "negative input")

	g := result.NewGroup(gid, []*result.AsyncResult{
		result.New(ok.ID, b, result.WithPollInterval(poll)),
		result.New(bad.ID, b, result.WithPollInterval(poll)),
	})

	_, err := g.Join(context.Background())
	var te *result.TaskError
	if !errors.As(err, &te) || te.Message != "negative input" {
		t.Fatalf("Join error = %v, want TaskError(negative input)", err)
	}
}

func TestGroupResult_Empty(t *testing.T) {
	g := result.NewGroup(id.NewGroupID(), nil)
	got, err := g.Join(context.Background())
	if err != nil {
		t.Fatalf("Join: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("Join = %v, want empty", got)
	}
}
