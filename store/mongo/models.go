package mongo

import (
	"fmt"
	"time"

	"github.com/xraph/tasker/id"
	"github.com/xraph/tasker/invocation"
)

// invocationModel is the document shape of tasker_invocations.
type invocationModel struct {
	ID          string     `bson:"_id"`
	TaskName    string     `bson:"task_name"`
	Queue       string     `bson:"queue"`
	Codec       string     `bson:"codec"`
	Payload     []byte     `bson:"payload"`
	State       string     `bson:"state"`
	Result      []byte     `bson:"result,omitempty"`
	Error       string     `bson:"error,omitempty"`
	GroupID     string     `bson:"group_id,omitempty"`
	GroupIndex  int        `bson:"group_index"`
	WorkerID    string     `bson:"worker_id,omitempty"`
	Timeout     int64      `bson:"timeout"`
	StartedAt   *time.Time `bson:"started_at,omitempty"`
	CompletedAt *time.Time `bson:"completed_at,omitempty"`
	CreatedAt   time.Time  `bson:"created_at"`
	UpdatedAt   time.Time  `bson:"updated_at"`
}

func toInvocationModel(inv *invocation.Invocation) *invocationModel {
	return &invocationModel{
		ID:          inv.ID.String(),
		TaskName:    inv.TaskName,
		Queue:       inv.Queue,
		Codec:       inv.Codec,
		Payload:     inv.Payload,
		State:       string(inv.State),
		Result:      inv.Result,
		Error:       inv.Error,
		GroupID:     inv.GroupID.String(),
		GroupIndex:  inv.GroupIndex,
		WorkerID:    inv.WorkerID.String(),
		Timeout:     int64(inv.Timeout),
		StartedAt:   inv.StartedAt,
		CompletedAt: inv.CompletedAt,
		CreatedAt:   inv.CreatedAt,
		UpdatedAt:   inv.UpdatedAt,
	}
}

func fromInvocationModel(m *invocationModel) (*invocation.Invocation, error) {
	invID, err := id.ParseInvocationID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse invocation id %q: %w", m.ID, err)
	}

	inv := &invocation.Invocation{
		ID:          invID,
		TaskName:    m.TaskName,
		Queue:       m.Queue,
		Codec:       m.Codec,
		Payload:     m.Payload,
		State:       invocation.State(m.State),
		Result:      m.Result,
		Error:       m.Error,
		GroupIndex:  m.GroupIndex,
		Timeout:     time.Duration(m.Timeout),
		StartedAt:   m.StartedAt,
		CompletedAt: m.CompletedAt,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
	if m.GroupID != "" {
		if inv.GroupID, err = id.ParseGroupID(m.GroupID); err != nil {
			return nil, fmt.Errorf("parse group id %q: %w", m.GroupID, err)
		}
	}
	if m.WorkerID != "" {
		if inv.WorkerID, err = id.ParseWorkerID(m.WorkerID); err != nil {
			return nil, fmt.Errorf("parse worker id %q: %w", m.WorkerID, err)
		}
	}
	return inv, nil
}
