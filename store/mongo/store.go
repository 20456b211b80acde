package mongo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	mongod "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/tasker/store"
)

const colInvocations = "tasker_invocations"

// Compile-time interface check.
var _ store.Store = (*Store)(nil)

// Store is a MongoDB implementation of store.Store.
type Store struct {
	db     *mongod.Database
	logger *slog.Logger
}

// Option configures the Store.
type Option func(*Store)

// WithLogger sets the logger for the store.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// New creates a store over db. The caller owns the client behind db.
func New(db *mongod.Database, opts ...Option) *Store {
	s := &Store{
		db:     db,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open connects to uri and returns a store over the named database. The
// returned close function disconnects the client.
func Open(uri, database string, opts ...Option) (*Store, func() error, error) {
	client, err := mongod.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, nil, fmt.Errorf("tasker/mongo: connect: %w", err)
	}
	closeFn := func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return client.Disconnect(ctx)
	}
	return New(client.Database(database), opts...), closeFn, nil
}

// Database returns the underlying database handle.
func (s *Store) Database() *mongod.Database {
	return s.db
}

// Migrate creates the invocation indexes. Creating an existing index is a
// no-op, so Migrate is safe to run on every start.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.collection().Indexes().CreateMany(ctx, migrationIndexes())
	if err != nil {
		return fmt.Errorf("tasker/mongo: migrate %s indexes: %w", colInvocations, err)
	}
	s.logger.Debug("mongo indexes ensured", slog.String("collection", colInvocations))
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Client().Ping(ctx, nil)
}

// Close is a no-op because the caller owns the client.
func (s *Store) Close() error {
	return nil
}

func (s *Store) collection() *mongod.Collection {
	return s.db.Collection(colInvocations)
}

// ── helpers ──────────────────────────────────────────────────────

// now returns the current UTC time truncated to the millisecond precision
// BSON dates keep.
func now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

// isNoDocuments reports whether err means no document matched.
func isNoDocuments(err error) bool {
	return errors.Is(err, mongod.ErrNoDocuments)
}

func migrationIndexes() []mongod.IndexModel {
	return []mongod.IndexModel{
		// Dequeue: oldest pending first per queue.
		{Keys: bson.D{
			{Key: "state", Value: 1},
			{Key: "queue", Value: 1},
			{Key: "created_at", Value: 1},
		}},
		{Keys: bson.D{
			{Key: "group_id", Value: 1},
			{Key: "group_index", Value: 1},
		}},
	}
}
