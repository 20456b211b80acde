// Package memory provides an in-memory invocation store.
//
// Safe for concurrent access. Intended for unit testing, development and
// single-process deployments where results need not survive a restart.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/xraph/tasker"
	"github.com/xraph/tasker/id"
	"github.com/xraph/tasker/invocation"
	"github.com/xraph/tasker/store"
)

var _ store.Store = (*Store)(nil)

type entry struct {
	inv *invocation.Invocation
	seq uint64
}

// Store is a fully in-memory implementation of invocation.Store.
type Store struct {
	mu sync.RWMutex

	invocations map[string]*entry
	// seq orders invocations created within the same clock tick.
	seq uint64
}

// New returns a new empty Store.
func New() *Store {
	return &Store{invocations: make(map[string]*entry)}
}

// ──────────────────────────────────────────────────
// Lifecycle: Migrate / Ping / Close
// ──────────────────────────────────────────────────

// Migrate is a no-op for the memory store.
func (m *Store) Migrate(_ context.Context) error { return nil }

// Ping always succeeds for the memory store.
func (m *Store) Ping(_ context.Context) error { return nil }

// Close is a no-op for the memory store.
func (m *Store) Close() error { return nil }

// ──────────────────────────────────────────────────
// Queue side
// ──────────────────────────────────────────────────

// Enqueue persists a new invocation in pending state.
func (m *Store) Enqueue(_ context.Context, inv *invocation.Invocation) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := inv.ID.String()
	if _, exists := m.invocations[key]; exists {
		return fmt.Errorf("invocation %s: %w", key, tasker.ErrInvocationExists)
	}

	cp := clone(inv)
	now := time.Now().UTC()
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = now
	}
	cp.UpdatedAt = now
	if cp.State == "" {
		cp.State = invocation.StatePending
	}

	m.seq++
	m.invocations[key] = &entry{inv: cp, seq: m.seq}
	return nil
}

// Dequeue atomically claims up to limit pending invocations from the given
// queues, marks them running for workerID, and returns them oldest first.
func (m *Store) Dequeue(_ context.Context, queues []string, workerID id.WorkerID, limit int) ([]*invocation.Invocation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	queueSet := make(map[string]struct{}, len(queues))
	for _, q := range queues {
		queueSet[q] = struct{}{}
	}

	candidates := make([]*entry, 0, len(m.invocations))
	for _, e := range m.invocations {
		if e.inv.State != invocation.StatePending {
			continue
		}
		if len(queueSet) > 0 {
			if _, ok := queueSet[e.inv.Queue]; !ok {
				continue
			}
		}
		candidates = append(candidates, e)
	}
	sortEntries(candidates)

	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}

	now := time.Now().UTC()
	out := make([]*invocation.Invocation, len(candidates))
	for i, e := range candidates {
		started := now
		e.inv.State = invocation.StateRunning
		e.inv.WorkerID = workerID
		e.inv.StartedAt = &started
		e.inv.UpdatedAt = now
		out[i] = clone(e.inv)
	}
	return out, nil
}

// ──────────────────────────────────────────────────
// Result side
// ──────────────────────────────────────────────────

// Get retrieves an invocation by ID.
func (m *Store) Get(_ context.Context, invID id.InvocationID) (*invocation.Invocation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.invocations[invID.String()]
	if !ok {
		return nil, fmt.Errorf("invocation %s: %w", invID, tasker.ErrInvocationNotFound)
	}
	return clone(e.inv), nil
}

// Complete records the terminal state of a running invocation.
func (m *Store) Complete(_ context.Context, inv *invocation.Invocation) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := inv.ID.String()
	e, ok := m.invocations[key]
	if !ok {
		return fmt.Errorf("invocation %s: %w", key, tasker.ErrInvocationNotFound)
	}
	if !inv.State.Terminal() || !e.inv.State.CanTransition(inv.State) {
		return fmt.Errorf("invocation %s: %s -> %s: %w", key, e.inv.State, inv.State, tasker.ErrInvalidState)
	}

	now := time.Now().UTC()
	e.inv.State = inv.State
	e.inv.Result = cloneBytes(inv.Result)
	e.inv.Error = inv.Error
	e.inv.UpdatedAt = now
	if inv.CompletedAt != nil {
		c := *inv.CompletedAt
		e.inv.CompletedAt = &c
	} else {
		e.inv.CompletedAt = &now
	}
	return nil
}

// Delete removes an invocation by ID.
func (m *Store) Delete(_ context.Context, invID id.InvocationID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := invID.String()
	if _, ok := m.invocations[key]; !ok {
		return fmt.Errorf("invocation %s: %w", key, tasker.ErrInvocationNotFound)
	}
	delete(m.invocations, key)
	return nil
}

// ListByState returns invocations in the given state, oldest first.
func (m *Store) ListByState(_ context.Context, state invocation.State, opts invocation.ListOpts) ([]*invocation.Invocation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	matched := make([]*entry, 0, len(m.invocations))
	for _, e := range m.invocations {
		if e.inv.State != state {
			continue
		}
		if opts.Queue != "" && e.inv.Queue != opts.Queue {
			continue
		}
		matched = append(matched, e)
	}
	sortEntries(matched)

	if opts.Offset > 0 {
		if opts.Offset >= len(matched) {
			return nil, nil
		}
		matched = matched[opts.Offset:]
	}
	if opts.Limit > 0 && len(matched) > opts.Limit {
		matched = matched[:opts.Limit]
	}

	out := make([]*invocation.Invocation, len(matched))
	for i, e := range matched {
		out[i] = clone(e.inv)
	}
	return out, nil
}

// ListGroup returns the members of a group ordered by GroupIndex.
func (m *Store) ListGroup(_ context.Context, groupID id.GroupID) ([]*invocation.Invocation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	key := groupID.String()
	var out []*invocation.Invocation
	for _, e := range m.invocations {
		if e.inv.GroupID.IsNil() || e.inv.GroupID.String() != key {
			continue
		}
		out = append(out, clone(e.inv))
	}
	sort.Slice(out, func(i, k int) bool { return out[i].GroupIndex < out[k].GroupIndex })
	return out, nil
}

// Count returns the number of invocations matching the options.
func (m *Store) Count(_ context.Context, opts invocation.CountOpts) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var n int64
	for _, e := range m.invocations {
		if opts.Queue != "" && e.inv.Queue != opts.Queue {
			continue
		}
		if opts.State != "" && e.inv.State != opts.State {
			continue
		}
		n++
	}
	return n, nil
}

func sortEntries(es []*entry) {
	sort.Slice(es, func(i, k int) bool {
		if !es[i].inv.CreatedAt.Equal(es[k].inv.CreatedAt) {
			return es[i].inv.CreatedAt.Before(es[k].inv.CreatedAt)
		}
		return es[i].seq < es[k].seq
	})
}

// clone returns a deep copy so callers can mutate without racing the store.
func clone(inv *invocation.Invocation) *invocation.Invocation {
	cp := *inv
	cp.Payload = cloneBytes(inv.Payload)
	cp.Result = cloneBytes(inv.Result)
	if inv.StartedAt != nil {
		t := *inv.StartedAt
		cp.StartedAt = &t
	}
	if inv.CompletedAt != nil {
		t := *inv.CompletedAt
		cp.CompletedAt = &t
	}
	return &cp
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	return append([]byte(nil), b...)
}
