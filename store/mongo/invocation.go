package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	mongod "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/tasker"
	"github.com/xraph/tasker/id"
	"github.com/xraph/tasker/invocation"
)

// Enqueue persists a new invocation in pending state.
func (s *Store) Enqueue(ctx context.Context, inv *invocation.Invocation) error {
	m := toInvocationModel(inv)
	t := now()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = t
	}
	m.UpdatedAt = t
	if m.State == "" {
		m.State = string(invocation.StatePending)
	}

	if _, err := s.collection().InsertOne(ctx, m); err != nil {
		if mongod.IsDuplicateKeyError(err) {
			return fmt.Errorf("invocation %s: %w", inv.ID, tasker.ErrInvocationExists)
		}
		return fmt.Errorf("tasker/mongo: enqueue invocation: %w", err)
	}
	return nil
}

// Dequeue claims pending invocations one document at a time with
// FindOneAndUpdate, so concurrent workers never receive the same one.
func (s *Store) Dequeue(ctx context.Context, queues []string, workerID id.WorkerID, limit int) ([]*invocation.Invocation, error) {
	filter := bson.M{"state": string(invocation.StatePending)}
	if len(queues) > 0 {
		filter["queue"] = bson.M{"$in": queues}
	}

	opts := options.FindOneAndUpdate().
		SetReturnDocument(options.After).
		SetSort(bson.D{
			{Key: "created_at", Value: 1},
			{Key: "_id", Value: 1},
		})

	var out []*invocation.Invocation
	for limit <= 0 || len(out) < limit {
		t := now()
		update := bson.M{"$set": bson.M{
			"state":      string(invocation.StateRunning),
			"worker_id":  workerID.String(),
			"started_at": t,
			"updated_at": t,
		}}

		var m invocationModel
		err := s.collection().FindOneAndUpdate(ctx, filter, update, opts).Decode(&m)
		if err != nil {
			if isNoDocuments(err) {
				break
			}
			return nil, fmt.Errorf("tasker/mongo: dequeue invocations: %w", err)
		}

		inv, convErr := fromInvocationModel(&m)
		if convErr != nil {
			return nil, fmt.Errorf("tasker/mongo: dequeue convert: %w", convErr)
		}
		out = append(out, inv)
	}
	return out, nil
}

// Get retrieves an invocation by ID.
func (s *Store) Get(ctx context.Context, invID id.InvocationID) (*invocation.Invocation, error) {
	var m invocationModel
	err := s.collection().FindOne(ctx, bson.M{"_id": invID.String()}).Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return nil, fmt.Errorf("invocation %s: %w", invID, tasker.ErrInvocationNotFound)
		}
		return nil, fmt.Errorf("tasker/mongo: get invocation: %w", err)
	}
	inv, err := fromInvocationModel(&m)
	if err != nil {
		return nil, fmt.Errorf("tasker/mongo: get convert: %w", err)
	}
	return inv, nil
}

// Complete records the terminal state of a running invocation. The update
// filter includes the running state, so a late or duplicate completion
// never overwrites a terminal record.
func (s *Store) Complete(ctx context.Context, inv *invocation.Invocation) error {
	if !inv.State.Terminal() {
		return fmt.Errorf("invocation %s: -> %s: %w", inv.ID, inv.State, tasker.ErrInvalidState)
	}

	t := now()
	completed := t
	if inv.CompletedAt != nil {
		completed = *inv.CompletedAt
	}

	res, err := s.collection().UpdateOne(ctx,
		bson.M{"_id": inv.ID.String(), "state": string(invocation.StateRunning)},
		bson.M{"$set": bson.M{
			"state":        string(inv.State),
			"result":       inv.Result,
			"error":        inv.Error,
			"completed_at": completed,
			"updated_at":   t,
		}},
	)
	if err != nil {
		return fmt.Errorf("tasker/mongo: complete invocation: %w", err)
	}
	if res.MatchedCount > 0 {
		return nil
	}

	n, err := s.collection().CountDocuments(ctx, bson.M{"_id": inv.ID.String()})
	if err != nil {
		return fmt.Errorf("tasker/mongo: complete invocation: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("invocation %s: %w", inv.ID, tasker.ErrInvocationNotFound)
	}
	return fmt.Errorf("invocation %s: -> %s: %w", inv.ID, inv.State, tasker.ErrInvalidState)
}

// Delete removes an invocation by ID.
func (s *Store) Delete(ctx context.Context, invID id.InvocationID) error {
	res, err := s.collection().DeleteOne(ctx, bson.M{"_id": invID.String()})
	if err != nil {
		return fmt.Errorf("tasker/mongo: delete invocation: %w", err)
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("invocation %s: %w", invID, tasker.ErrInvocationNotFound)
	}
	return nil
}

// ListByState returns invocations in the given state, oldest first.
func (s *Store) ListByState(ctx context.Context, state invocation.State, opts invocation.ListOpts) ([]*invocation.Invocation, error) {
	filter := bson.M{"state": string(state)}
	if opts.Queue != "" {
		filter["queue"] = opts.Queue
	}

	findOpts := options.Find().SetSort(bson.D{
		{Key: "created_at", Value: 1},
		{Key: "_id", Value: 1},
	})
	if opts.Limit > 0 {
		findOpts.SetLimit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		findOpts.SetSkip(int64(opts.Offset))
	}

	return s.find(ctx, filter, findOpts)
}

// ListGroup returns the members of a group ordered by GroupIndex.
func (s *Store) ListGroup(ctx context.Context, groupID id.GroupID) ([]*invocation.Invocation, error) {
	findOpts := options.Find().SetSort(bson.D{{Key: "group_index", Value: 1}})
	return s.find(ctx, bson.M{"group_id": groupID.String()}, findOpts)
}

// Count returns the number of invocations matching the given options.
func (s *Store) Count(ctx context.Context, opts invocation.CountOpts) (int64, error) {
	filter := bson.M{}
	if opts.Queue != "" {
		filter["queue"] = opts.Queue
	}
	if opts.State != "" {
		filter["state"] = string(opts.State)
	}

	n, err := s.collection().CountDocuments(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("tasker/mongo: count invocations: %w", err)
	}
	return n, nil
}

func (s *Store) find(ctx context.Context, filter bson.M, opts *options.FindOptionsBuilder) ([]*invocation.Invocation, error) {
	cursor, err := s.collection().Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("tasker/mongo: find invocations: %w", err)
	}
	defer cursor.Close(ctx)

	var models []invocationModel
	if err := cursor.All(ctx, &models); err != nil {
		return nil, fmt.Errorf("tasker/mongo: decode invocations: %w", err)
	}

	invs := make([]*invocation.Invocation, 0, len(models))
	for i := range models {
		inv, convErr := fromInvocationModel(&models[i])
		if convErr != nil {
			return nil, fmt.Errorf("tasker/mongo: convert invocation: %w", convErr)
		}
		invs = append(invs, inv)
	}
	return invs, nil
}
