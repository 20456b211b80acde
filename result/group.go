package result

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/xraph/tasker/id"
)

// GroupResult is the completion handle for a group of invocations.
type GroupResult struct {
	id      id.GroupID
	members []*AsyncResult
}

// NewGroup returns a group handle. Members must be in submission order.
func NewGroup(groupID id.GroupID, members []*AsyncResult) *GroupResult {
	return &GroupResult{id: groupID, members: members}
}

// ID returns the group ID.
func (g *GroupResult) ID() id.GroupID { return g.id }

// Len returns the number of members.
func (g *GroupResult) Len() int { return len(g.members) }

// Members returns the member handles in submission order.
func (g *GroupResult) Members() []*AsyncResult {
	return append([]*AsyncResult(nil), g.members...)
}

// Ready reports whether every member reached a terminal state.
func (g *GroupResult) Ready(ctx context.Context) (bool, error) {
	for _, m := range g.members {
		ok, err := m.Ready(ctx)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

// Join waits for all members and returns their results in submission
// order, regardless of completion order. The first failure is returned
// and stops the remaining waits.
func (g *GroupResult) Join(ctx context.Context) ([]any, error) {
	results := make([]any, len(g.members))

	eg, egCtx := errgroup.WithContext(ctx)
	for i, m := range g.members {
		eg.Go(func() error {
			v, err := m.Wait(egCtx)
			if err != nil {
				return err
			}
			results[i] = v
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
