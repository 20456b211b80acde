package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xraph/tasker/id"
	"github.com/xraph/tasker/remote"
	"github.com/xraph/tasker/result"
	"github.com/xraph/tasker/task"
)

// Reserved task names. Applications must not register these themselves.
const (
	TaskPing          = "tasker.ping"
	TaskExecuteRemote = "tasker.execute_remote"
)

// Pong is the value returned by a healthy liveness probe.
const Pong = "pong"

// Option configures a Facade.
type Option func(*Facade)

// WithLogger sets the façade logger.
func WithLogger(l *slog.Logger) Option {
	return func(f *Facade) { f.logger = l }
}

// Facade exposes the convenience operations over the registry and the
// execution layer.
type Facade struct {
	resolver  Resolver
	submitter Submitter
	backend   result.Backend
	catalog   *remote.Catalog
	logger    *slog.Logger
}

// New creates a façade. catalog may be nil, in which case ExecuteRemote
// rejects every function.
func New(resolver Resolver, submitter Submitter, backend result.Backend, catalog *remote.Catalog, opts ...Option) *Facade {
	f := &Facade{
		resolver:  resolver,
		submitter: submitter,
		backend:   backend,
		catalog:   catalog,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// IsSuccessful reports whether a previously submitted invocation
// succeeded, as told by the result backend.
func (f *Facade) IsSuccessful(ctx context.Context, invID id.InvocationID) (bool, error) {
	return f.backend.IsSuccessful(ctx, invID)
}

// Map applies the named task to every argument group and blocks until all
// complete. Results are in input order regardless of completion order.
// A positive timeout bounds the wait in addition to ctx; expiry abandons
// the wait but leaves the invocations running.
func (f *Facade) Map(ctx context.Context, name string, groups []task.Args, timeout time.Duration) ([]any, error) {
	g, err := f.MapAsync(ctx, name, groups)
	if err != nil {
		return nil, err
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return g.Join(ctx)
}

// MapAsync submits the named task for every argument group and returns
// without waiting.
func (f *Facade) MapAsync(ctx context.Context, name string, groups []task.Args) (*result.GroupResult, error) {
	if _, err := f.resolver.Get(name); err != nil {
		return nil, err
	}
	f.logger.Debug("map submitted",
		slog.String("task", name),
		slog.Int("groups", len(groups)),
	)
	return f.submitter.SubmitGroup(ctx, name, groups)
}

// ExecuteRemote submits fn with args under TaskExecuteRemote. fn travels
// by reference, so it must be a package-level function on the catalog's
// allow-list; anything else fails here with the serializer's error.
func (f *Facade) ExecuteRemote(ctx context.Context, fn task.Func, args task.Args) (*result.AsyncResult, error) {
	if f.catalog == nil {
		return nil, fmt.Errorf("no remote catalog: %w", remote.ErrNotAllowed)
	}
	ref, err := f.catalog.Encode(fn)
	if err != nil {
		return nil, err
	}
	call := remote.Call{Func: ref, Args: args}
	return f.submitter.Submit(ctx, TaskExecuteRemote, task.A(call))
}

// Ping runs the liveness task end to end and returns its result, which is
// Pong when submission, execution and result retrieval all work.
func (f *Facade) Ping(ctx context.Context) (string, error) {
	r, err := f.submitter.Submit(ctx, TaskPing, task.Args{})
	if err != nil {
		return "", err
	}
	v, err := r.Wait(ctx)
	if err != nil {
		return "", err
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("ping: unexpected result %T", v)
	}
	return s, nil
}
