package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/xraph/tasker"
	"github.com/xraph/tasker/id"
	"github.com/xraph/tasker/invocation"
)

// completeScript moves a running invocation to a terminal state in one
// step. It returns -1 when the hash is missing and 0 when the invocation
// is not running.
var completeScript = goredis.NewScript(`
local state = redis.call('HGET', KEYS[1], 'state')
if not state then
	return -1
end
if state ~= 'running' then
	return 0
end
redis.call('HSET', KEYS[1],
	'state', ARGV[1],
	'result', ARGV[2],
	'error', ARGV[3],
	'completed_at', ARGV[4],
	'updated_at', ARGV[4])
return 1
`)

// claimScript pops up to ARGV[1] members from the queue in KEYS[1] and
// marks each one running in the same step. Members whose hash is gone or
// no longer pending are dropped from the queue without being recreated.
// It returns the HGETALL reply of every claimed invocation.
var claimScript = goredis.NewScript(`
local out = {}
local limit = tonumber(ARGV[1])
while #out < limit do
	local popped = redis.call('ZPOPMIN', KEYS[1])
	if #popped == 0 then
		break
	end
	local key = ARGV[4] .. popped[1]
	if redis.call('HGET', key, 'state') == 'pending' then
		redis.call('HSET', key,
			'state', 'running',
			'worker_id', ARGV[2],
			'started_at', ARGV[3],
			'updated_at', ARGV[3])
		out[#out + 1] = redis.call('HGETALL', key)
	end
end
return out
`)

// Enqueue stores the invocation as a Hash and adds it to its queue's
// Sorted Set.
func (s *Store) Enqueue(ctx context.Context, inv *invocation.Invocation) error {
	invID := inv.ID.String()
	key := invKey(invID)

	exists, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("tasker/redis: enqueue check exists: %w", err)
	}
	if exists > 0 {
		return fmt.Errorf("invocation %s: %w", invID, tasker.ErrInvocationExists)
	}

	now := time.Now().UTC()
	cp := *inv
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = now
	}
	cp.UpdatedAt = now
	if cp.State == "" {
		cp.State = invocation.StatePending
	}

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key, invocationToMap(&cp))
	pipe.SAdd(ctx, invIDsKey, invID)
	pipe.SAdd(ctx, queuesKey, cp.Queue)
	pipe.ZAdd(ctx, queueKey(cp.Queue), goredis.Z{Score: score(cp.CreatedAt), Member: invID})
	if !cp.GroupID.IsNil() {
		pipe.ZAdd(ctx, groupKey(cp.GroupID.String()), goredis.Z{Score: float64(cp.GroupIndex), Member: invID})
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("tasker/redis: enqueue invocation: %w", err)
	}
	return nil
}

// Dequeue claims up to limit invocations from the given queues in queue
// order, oldest first within each queue. Each queue is popped and marked
// running atomically by claimScript, so a failure never strands a popped
// invocation.
func (s *Store) Dequeue(ctx context.Context, queues []string, workerID id.WorkerID, limit int) ([]*invocation.Invocation, error) {
	if len(queues) == 0 {
		known, err := s.client.SMembers(ctx, queuesKey).Result()
		if err != nil {
			return nil, fmt.Errorf("tasker/redis: dequeue list queues: %w", err)
		}
		sort.Strings(known)
		queues = known
	}
	if limit <= 0 {
		limit = math.MaxInt32
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	var out []*invocation.Invocation

	for _, q := range queues {
		if len(out) >= limit {
			break
		}
		remaining := limit - len(out)

		claimed, err := claimScript.Run(ctx, s.client,
			[]string{queueKey(q)},
			remaining, workerID.String(), now, invKey(""),
		).Slice()
		if err != nil {
			return nil, fmt.Errorf("tasker/redis: dequeue claim: %w", err)
		}

		for _, raw := range claimed {
			inv, err := claimedInvocation(raw)
			if err != nil {
				// Already marked running; leave it for ListByState to surface.
				s.logger.Error("redis dequeue: unreadable claimed invocation",
					slog.String("queue", q),
					slog.String("error", err.Error()),
				)
				continue
			}
			out = append(out, inv)
		}
	}
	return out, nil
}

// claimedInvocation converts one HGETALL reply returned by claimScript.
func claimedInvocation(raw any) (*invocation.Invocation, error) {
	fields, ok := raw.([]any)
	if !ok || len(fields)%2 != 0 {
		return nil, fmt.Errorf("tasker/redis: unexpected claim reply %T", raw)
	}
	m := make(map[string]string, len(fields)/2)
	for i := 0; i < len(fields); i += 2 {
		k, _ := fields[i].(string)   //nolint:errcheck // HGETALL replies are strings
		v, _ := fields[i+1].(string) //nolint:errcheck // HGETALL replies are strings
		m[k] = v
	}
	return mapToInvocation(m)
}

// Get retrieves an invocation by ID.
func (s *Store) Get(ctx context.Context, invID id.InvocationID) (*invocation.Invocation, error) {
	return s.getByKey(ctx, invKey(invID.String()))
}

// Complete records the terminal state of a running invocation.
func (s *Store) Complete(ctx context.Context, inv *invocation.Invocation) error {
	invID := inv.ID.String()
	if !inv.State.Terminal() {
		return fmt.Errorf("invocation %s: -> %s: %w", invID, inv.State, tasker.ErrInvalidState)
	}

	completed := time.Now().UTC()
	if inv.CompletedAt != nil {
		completed = *inv.CompletedAt
	}

	res, err := completeScript.Run(ctx, s.client,
		[]string{invKey(invID)},
		string(inv.State), string(inv.Result), inv.Error, completed.Format(time.RFC3339Nano),
	).Int()
	if err != nil {
		return fmt.Errorf("tasker/redis: complete invocation: %w", err)
	}

	switch res {
	case -1:
		return fmt.Errorf("invocation %s: %w", invID, tasker.ErrInvocationNotFound)
	case 0:
		return fmt.Errorf("invocation %s: -> %s: %w", invID, inv.State, tasker.ErrInvalidState)
	}
	return nil
}

// Delete removes an invocation by ID.
func (s *Store) Delete(ctx context.Context, invID id.InvocationID) error {
	key := invKey(invID.String())

	vals, err := s.client.HMGet(ctx, key, "queue", "group_id").Result()
	if err != nil {
		return fmt.Errorf("tasker/redis: delete get queue: %w", err)
	}
	q, ok := vals[0].(string)
	if !ok {
		return fmt.Errorf("invocation %s: %w", invID, tasker.ErrInvocationNotFound)
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, key)
	pipe.SRem(ctx, invIDsKey, invID.String())
	pipe.ZRem(ctx, queueKey(q), invID.String())
	if g, ok := vals[1].(string); ok && g != "" {
		pipe.ZRem(ctx, groupKey(g), invID.String())
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("tasker/redis: delete invocation: %w", err)
	}
	return nil
}

// ListByState returns invocations in the given state, oldest first.
func (s *Store) ListByState(ctx context.Context, state invocation.State, opts invocation.ListOpts) ([]*invocation.Invocation, error) {
	all, err := s.scan(ctx)
	if err != nil {
		return nil, err
	}

	invs := make([]*invocation.Invocation, 0, len(all))
	for _, inv := range all {
		if inv.State != state {
			continue
		}
		if opts.Queue != "" && inv.Queue != opts.Queue {
			continue
		}
		invs = append(invs, inv)
	}
	sort.SliceStable(invs, func(i, k int) bool { return invs[i].CreatedAt.Before(invs[k].CreatedAt) })

	if opts.Offset > 0 {
		if opts.Offset >= len(invs) {
			return nil, nil
		}
		invs = invs[opts.Offset:]
	}
	if opts.Limit > 0 && opts.Limit < len(invs) {
		invs = invs[:opts.Limit]
	}
	return invs, nil
}

// ListGroup returns the members of a group ordered by GroupIndex.
func (s *Store) ListGroup(ctx context.Context, groupID id.GroupID) ([]*invocation.Invocation, error) {
	ids, err := s.client.ZRange(ctx, groupKey(groupID.String()), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("tasker/redis: list group zrange: %w", err)
	}

	out := make([]*invocation.Invocation, 0, len(ids))
	for _, invID := range ids {
		inv, err := s.getByKey(ctx, invKey(invID))
		if err != nil {
			if errors.Is(err, tasker.ErrInvocationNotFound) {
				continue
			}
			return nil, err
		}
		out = append(out, inv)
	}
	return out, nil
}

// Count returns the number of invocations matching the options.
func (s *Store) Count(ctx context.Context, opts invocation.CountOpts) (int64, error) {
	all, err := s.scan(ctx)
	if err != nil {
		return 0, err
	}

	var n int64
	for _, inv := range all {
		if opts.State != "" && inv.State != opts.State {
			continue
		}
		if opts.Queue != "" && inv.Queue != opts.Queue {
			continue
		}
		n++
	}
	return n, nil
}

// ── helpers ──

// scan loads every tracked invocation, skipping IDs whose hash is gone.
func (s *Store) scan(ctx context.Context) ([]*invocation.Invocation, error) {
	ids, err := s.client.SMembers(ctx, invIDsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("tasker/redis: scan smembers: %w", err)
	}

	out := make([]*invocation.Invocation, 0, len(ids))
	for _, invID := range ids {
		inv, err := s.getByKey(ctx, invKey(invID))
		if err != nil {
			if errors.Is(err, tasker.ErrInvocationNotFound) {
				continue
			}
			return nil, err
		}
		out = append(out, inv)
	}
	return out, nil
}

// score orders a queue's Sorted Set by creation time.
func score(t time.Time) float64 {
	return float64(t.UnixMicro())
}

func invocationToMap(inv *invocation.Invocation) map[string]any {
	m := map[string]any{
		"id":          inv.ID.String(),
		"task_name":   inv.TaskName,
		"queue":       inv.Queue,
		"codec":       inv.Codec,
		"payload":     string(inv.Payload),
		"state":       string(inv.State),
		"result":      string(inv.Result),
		"error":       inv.Error,
		"group_id":    inv.GroupID.String(),
		"group_index": strconv.Itoa(inv.GroupIndex),
		"worker_id":   inv.WorkerID.String(),
		"timeout":     strconv.FormatInt(int64(inv.Timeout), 10),
		"created_at":  inv.CreatedAt.Format(time.RFC3339Nano),
		"updated_at":  inv.UpdatedAt.Format(time.RFC3339Nano),
	}
	if inv.StartedAt != nil {
		m["started_at"] = inv.StartedAt.Format(time.RFC3339Nano)
	}
	if inv.CompletedAt != nil {
		m["completed_at"] = inv.CompletedAt.Format(time.RFC3339Nano)
	}
	return m
}

func (s *Store) getByKey(ctx context.Context, key string) (*invocation.Invocation, error) {
	vals, err := s.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("tasker/redis: get invocation: %w", err)
	}
	if len(vals) == 0 {
		return nil, fmt.Errorf("%s: %w", key, tasker.ErrInvocationNotFound)
	}
	return mapToInvocation(vals)
}

func mapToInvocation(m map[string]string) (*invocation.Invocation, error) {
	invID, err := id.ParseInvocationID(m["id"])
	if err != nil {
		return nil, fmt.Errorf("tasker/redis: parse invocation id: %w", err)
	}

	groupIndex, _ := strconv.Atoi(m["group_index"])     //nolint:errcheck // best-effort parse from trusted Redis data
	timeout, _ := strconv.ParseInt(m["timeout"], 10, 64) //nolint:errcheck // best-effort parse from trusted Redis data

	createdAt, _ := time.Parse(time.RFC3339Nano, m["created_at"]) //nolint:errcheck // best-effort parse from trusted Redis data
	updatedAt, _ := time.Parse(time.RFC3339Nano, m["updated_at"]) //nolint:errcheck // best-effort parse from trusted Redis data

	inv := &invocation.Invocation{
		ID:         invID,
		TaskName:   m["task_name"],
		Queue:      m["queue"],
		Codec:      m["codec"],
		Payload:    bytesOrNil(m["payload"]),
		State:      invocation.State(m["state"]),
		Result:     bytesOrNil(m["result"]),
		Error:      m["error"],
		GroupIndex: groupIndex,
		Timeout:    time.Duration(timeout),
		CreatedAt:  createdAt,
		UpdatedAt:  updatedAt,
	}

	if gid := m["group_id"]; gid != "" {
		inv.GroupID, _ = id.ParseGroupID(gid) //nolint:errcheck // best-effort parse from trusted Redis data
	}
	if wid := m["worker_id"]; wid != "" {
		inv.WorkerID, _ = id.ParseWorkerID(wid) //nolint:errcheck // best-effort parse from trusted Redis data
	}
	if v := m["started_at"]; v != "" {
		t, _ := time.Parse(time.RFC3339Nano, v) //nolint:errcheck // best-effort parse from trusted Redis data
		inv.StartedAt = &t
	}
	if v := m["completed_at"]; v != "" {
		t, _ := time.Parse(time.RFC3339Nano, v) //nolint:errcheck // best-effort parse from trusted Redis data
		inv.CompletedAt = &t
	}

	return inv, nil
}

func bytesOrNil(s string) []byte {
	if s == "" {
		return nil
	}
	return []byte(s)
}
