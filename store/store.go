package store

import (
	"context"

	"github.com/xraph/tasker/invocation"
)

// Store is an invocation store that also owns its schema. A single
// backend serves as both the work queue and the result backend.
type Store interface {
	invocation.Store

	// Migrate creates or updates the backend schema.
	Migrate(ctx context.Context) error
}
