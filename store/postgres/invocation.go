package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/xraph/tasker"
	"github.com/xraph/tasker/id"
	"github.com/xraph/tasker/invocation"
)

const invocationColumns = `
	id, task_name, queue, codec, payload, state, result, error,
	group_id, group_index, worker_id, timeout,
	started_at, completed_at, created_at, updated_at`

// Enqueue persists a new invocation in pending state.
func (s *Store) Enqueue(ctx context.Context, inv *invocation.Invocation) error {
	now := time.Now().UTC()
	created := inv.CreatedAt
	if created.IsZero() {
		created = now
	}
	state := inv.State
	if state == "" {
		state = invocation.StatePending
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO tasker_invocations (`+invocationColumns+`
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8,
			$9, $10, $11, $12,
			$13, $14, $15, $16
		)`,
		inv.ID.String(), inv.TaskName, inv.Queue, inv.Codec, inv.Payload, string(state), inv.Result, inv.Error,
		inv.GroupID.String(), inv.GroupIndex, inv.WorkerID.String(), inv.Timeout.Nanoseconds(),
		inv.StartedAt, inv.CompletedAt, created, now,
	)
	if err != nil {
		if isDuplicateKey(err) {
			return fmt.Errorf("invocation %s: %w", inv.ID, tasker.ErrInvocationExists)
		}
		return fmt.Errorf("tasker/postgres: enqueue invocation: %w", err)
	}
	return nil
}

// Dequeue atomically claims up to limit pending invocations from the given
// queues, marks them running for workerID, and returns them oldest first.
// Uses SELECT FOR UPDATE SKIP LOCKED for concurrent-safe dequeue.
func (s *Store) Dequeue(ctx context.Context, queues []string, workerID id.WorkerID, limit int) ([]*invocation.Invocation, error) {
	if queues == nil {
		queues = []string{}
	}
	// LIMIT NULL is LIMIT ALL.
	var lim *int
	if limit > 0 {
		lim = &limit
	}

	rows, err := s.pool.Query(ctx, `
		WITH claimed AS (
			UPDATE tasker_invocations
			SET state = 'running', worker_id = $3, started_at = NOW(), updated_at = NOW()
			WHERE id IN (
				SELECT id FROM tasker_invocations
				WHERE state = 'pending'
				  AND (cardinality($1::text[]) = 0 OR queue = ANY($1::text[]))
				ORDER BY created_at ASC
				FOR UPDATE SKIP LOCKED
				LIMIT $2
			)
			RETURNING `+invocationColumns+`
		)
		SELECT * FROM claimed ORDER BY created_at ASC`,
		queues, lim, workerID.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("tasker/postgres: dequeue invocations: %w", err)
	}
	defer rows.Close()

	return collectInvocations(rows)
}

// Get retrieves an invocation by ID.
func (s *Store) Get(ctx context.Context, invID id.InvocationID) (*invocation.Invocation, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+invocationColumns+`
		FROM tasker_invocations
		WHERE id = $1`,
		invID.String(),
	)

	inv, err := scanInvocation(row)
	if err != nil {
		if isNoRows(err) {
			return nil, fmt.Errorf("invocation %s: %w", invID, tasker.ErrInvocationNotFound)
		}
		return nil, fmt.Errorf("tasker/postgres: get invocation: %w", err)
	}
	return inv, nil
}

// Complete records the terminal state of a running invocation. The update
// only applies while the row is still running.
func (s *Store) Complete(ctx context.Context, inv *invocation.Invocation) error {
	if !inv.State.Terminal() {
		return fmt.Errorf("invocation %s: -> %s: %w", inv.ID, inv.State, tasker.ErrInvalidState)
	}

	completed := time.Now().UTC()
	if inv.CompletedAt != nil {
		completed = *inv.CompletedAt
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE tasker_invocations SET
			state = $2, result = $3, error = $4,
			completed_at = $5, updated_at = NOW()
		WHERE id = $1 AND state = 'running'`,
		inv.ID.String(), string(inv.State), inv.Result, inv.Error, completed,
	)
	if err != nil {
		return fmt.Errorf("tasker/postgres: complete invocation: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	var exists bool
	err = s.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM tasker_invocations WHERE id = $1)`,
		inv.ID.String(),
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("tasker/postgres: complete invocation: %w", err)
	}
	if !exists {
		return fmt.Errorf("invocation %s: %w", inv.ID, tasker.ErrInvocationNotFound)
	}
	return fmt.Errorf("invocation %s: -> %s: %w", inv.ID, inv.State, tasker.ErrInvalidState)
}

// Delete removes an invocation by ID.
func (s *Store) Delete(ctx context.Context, invID id.InvocationID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM tasker_invocations WHERE id = $1`, invID.String())
	if err != nil {
		return fmt.Errorf("tasker/postgres: delete invocation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("invocation %s: %w", invID, tasker.ErrInvocationNotFound)
	}
	return nil
}

// ListByState returns invocations in the given state, oldest first.
func (s *Store) ListByState(ctx context.Context, state invocation.State, opts invocation.ListOpts) ([]*invocation.Invocation, error) {
	query := `
		SELECT ` + invocationColumns + `
		FROM tasker_invocations
		WHERE state = $1`
	args := []any{string(state)}
	argIdx := 2

	if opts.Queue != "" {
		query += fmt.Sprintf(" AND queue = $%d", argIdx)
		args = append(args, opts.Queue)
		argIdx++
	}

	query += " ORDER BY created_at ASC"

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("tasker/postgres: list invocations by state: %w", err)
	}
	defer rows.Close()

	return collectInvocations(rows)
}

// ListGroup returns the members of a group ordered by GroupIndex.
func (s *Store) ListGroup(ctx context.Context, groupID id.GroupID) ([]*invocation.Invocation, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+invocationColumns+`
		FROM tasker_invocations
		WHERE group_id = $1
		ORDER BY group_index ASC`,
		groupID.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("tasker/postgres: list group: %w", err)
	}
	defer rows.Close()

	return collectInvocations(rows)
}

// Count returns the number of invocations matching the given options.
func (s *Store) Count(ctx context.Context, opts invocation.CountOpts) (int64, error) {
	query := `SELECT COUNT(*) FROM tasker_invocations WHERE 1=1`
	args := []any{}
	argIdx := 1

	if opts.Queue != "" {
		query += fmt.Sprintf(" AND queue = $%d", argIdx)
		args = append(args, opts.Queue)
		argIdx++
	}
	if opts.State != "" {
		query += fmt.Sprintf(" AND state = $%d", argIdx)
		args = append(args, string(opts.State))
	}

	var count int64
	if err := s.pool.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("tasker/postgres: count invocations: %w", err)
	}
	return count, nil
}

// scanInvocation scans a single invocation row.
func scanInvocation(row pgx.Row) (*invocation.Invocation, error) {
	var (
		inv       invocation.Invocation
		idStr     string
		stateStr  string
		groupStr  string
		workerStr string
		timeoutNs int64
	)
	err := row.Scan(
		&idStr, &inv.TaskName, &inv.Queue, &inv.Codec, &inv.Payload, &stateStr, &inv.Result, &inv.Error,
		&groupStr, &inv.GroupIndex, &workerStr, &timeoutNs,
		&inv.StartedAt, &inv.CompletedAt, &inv.CreatedAt, &inv.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	inv.State = invocation.State(stateStr)
	inv.Timeout = time.Duration(timeoutNs)

	parsedID, parseErr := id.ParseInvocationID(idStr)
	if parseErr != nil {
		return nil, fmt.Errorf("tasker/postgres: parse invocation id %q: %w", idStr, parseErr)
	}
	inv.ID = parsedID

	if groupStr != "" {
		if parsed, err := id.ParseGroupID(groupStr); err == nil {
			inv.GroupID = parsed
		}
	}
	if workerStr != "" {
		if parsed, err := id.ParseWorkerID(workerStr); err == nil {
			inv.WorkerID = parsed
		}
	}

	return &inv, nil
}

// collectInvocations collects all invocations from query rows.
func collectInvocations(rows pgx.Rows) ([]*invocation.Invocation, error) {
	var invs []*invocation.Invocation
	for rows.Next() {
		inv, err := scanInvocation(rows)
		if err != nil {
			return nil, fmt.Errorf("tasker/postgres: scan invocation row: %w", err)
		}
		invs = append(invs, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("tasker/postgres: iterate invocation rows: %w", err)
	}
	return invs, nil
}
