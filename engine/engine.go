// Package engine is the composition root of Tasker. It builds the task
// registry, extension registry, middleware chain, worker pool and
// dispatch façade around a single invocation store, and implements the
// submission side of the execution layer.
//
// The root tasker package holds sentinel errors and configuration and so
// cannot import the subsystems back. The engine package sits above all
// subsystem packages and below the application layer.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/xraph/tasker"
	"github.com/xraph/tasker/codec"
	"github.com/xraph/tasker/discovery"
	"github.com/xraph/tasker/dispatch"
	"github.com/xraph/tasker/ext"
	"github.com/xraph/tasker/id"
	"github.com/xraph/tasker/invocation"
	mw "github.com/xraph/tasker/middleware"
	"github.com/xraph/tasker/observability"
	"github.com/xraph/tasker/queue"
	"github.com/xraph/tasker/remote"
	"github.com/xraph/tasker/result"
	"github.com/xraph/tasker/task"
	"github.com/xraph/tasker/worker"
)

const instrumentationName = "github.com/xraph/tasker"

var _ dispatch.Submitter = (*Engine)(nil)

// Engine owns one process's registry and execution pipeline.
type Engine struct {
	config     tasker.Config
	store      invocation.Store
	registry   *task.Registry
	extensions *ext.Registry
	catalog    *remote.Catalog
	codec      codec.Codec
	backend    *result.StoreBackend
	facade     *dispatch.Facade
	pool       *worker.Pool
	mws        []mw.Middleware
	logger     *slog.Logger

	discoverers []task.Discoverer

	// Queue subsystem.
	queueConfigs []queue.Config
	queueManager *queue.Manager

	// OpenTelemetry providers (optional; nil means use global).
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
}

// Option configures an Engine.
type Option func(*Engine)

// WithConfig replaces the default configuration.
func WithConfig(cfg tasker.Config) Option {
	return func(eng *Engine) { eng.config = cfg }
}

// WithLogger sets the logger shared by every subsystem.
func WithLogger(l *slog.Logger) Option {
	return func(eng *Engine) { eng.logger = l }
}

// WithRegistry uses an existing task registry instead of a fresh one.
// Tasks already registered in it stay registered.
func WithRegistry(r *task.Registry) Option {
	return func(eng *Engine) { eng.registry = r }
}

// WithCatalog sets the allow-list for remote execution. Without one,
// ExecuteRemote rejects every function.
func WithCatalog(c *remote.Catalog) Option {
	return func(eng *Engine) { eng.catalog = c }
}

// WithDiscoverer adds a discovery source run by Autodiscover, in addition
// to the default discovery catalog.
func WithDiscoverer(d task.Discoverer) Option {
	return func(eng *Engine) { eng.discoverers = append(eng.discoverers, d) }
}

// WithExtension registers an extension with the engine.
func WithExtension(e ext.Extension) Option {
	return func(eng *Engine) { eng.extensions.Register(e) }
}

// WithMiddleware adds middleware to the engine's chain. Added middleware
// runs inside the default stack.
func WithMiddleware(m mw.Middleware) Option {
	return func(eng *Engine) { eng.mws = append(eng.mws, m) }
}

// WithQueueConfig registers queue-level rate limiting and concurrency
// configurations on top of Config.QueueLimits.
func WithQueueConfig(configs ...queue.Config) Option {
	return func(eng *Engine) { eng.queueConfigs = append(eng.queueConfigs, configs...) }
}

// WithTracerProvider sets a custom OTel TracerProvider for the tracing
// middleware. If not set, the global provider is used.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(eng *Engine) { eng.tracerProvider = tp }
}

// WithMeterProvider sets a custom OTel MeterProvider for the metrics
// middleware and the observability extension. If not set, the global
// provider is used.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(eng *Engine) { eng.meterProvider = mp }
}

// New builds an Engine over store. It installs the reserved ping and
// remote-execution tasks into the registry, so a registry that already
// holds either name is rejected.
func New(store invocation.Store, opts ...Option) (*Engine, error) {
	if store == nil {
		return nil, tasker.ErrNoStore
	}

	eng := &Engine{
		config: tasker.DefaultConfig(),
		store:  store,
		logger: slog.Default(),
	}
	// Extensions may be registered by options, so the registry comes first
	// and picks up the final logger afterwards.
	eng.extensions = ext.NewRegistry(eng.logger)
	for _, opt := range opts {
		opt(eng)
	}
	eng.extensions.SetLogger(eng.logger)

	if err := eng.config.Validate(); err != nil {
		return nil, err
	}

	c, err := codec.Get(eng.config.Codec)
	if err != nil {
		return nil, fmt.Errorf("tasker: %w", err)
	}
	eng.codec = c

	if eng.registry == nil {
		eng.registry = task.NewRegistry(task.WithLogger(eng.logger))
	}
	eng.registry.AddObserver(eng.extensions)

	if err := dispatch.RegisterBuiltins(eng.registry, eng.catalog); err != nil {
		return nil, fmt.Errorf("tasker: install builtin tasks: %w", err)
	}

	eng.backend = result.NewStoreBackend(store)
	eng.facade = dispatch.New(eng.registry, eng, eng.backend, eng.catalog, dispatch.WithLogger(eng.logger))

	eng.buildPool()
	return eng, nil
}

func (eng *Engine) buildPool() {
	var (
		tracingMw mw.Middleware
		metricsMw mw.Middleware
		obsExt    *observability.MetricsExtension
	)
	if eng.tracerProvider != nil {
		tracingMw = mw.TracingWithTracer(eng.tracerProvider.Tracer(instrumentationName))
	} else {
		tracingMw = mw.Tracing()
	}
	if eng.meterProvider != nil {
		metricsMw = mw.MetricsWithMeter(eng.meterProvider.Meter(instrumentationName))
		obsExt = observability.NewMetricsExtensionWithMeter(eng.meterProvider.Meter(instrumentationName + "/observability"))
	} else {
		metricsMw = mw.Metrics()
		obsExt = observability.NewMetricsExtension()
	}
	eng.extensions.Register(obsExt)

	// recover → tracing → metrics → logging → timeout → user middleware.
	defaultMws := []mw.Middleware{
		mw.Recover(eng.logger),
		tracingMw,
		metricsMw,
		mw.Logging(eng.logger),
		mw.Timeout(eng.logger),
	}
	allMws := make([]mw.Middleware, 0, len(defaultMws)+len(eng.mws))
	allMws = append(allMws, defaultMws...)
	allMws = append(allMws, eng.mws...)

	executor := worker.NewExecutor(eng.registry, eng.extensions, eng.store, eng.logger, allMws...)

	poolOpts := []worker.PoolOption{
		worker.WithPoolConcurrency(eng.config.Concurrency),
		worker.WithPoolQueues(eng.config.Queues),
		worker.WithPollInterval(eng.config.PollInterval),
	}

	configs := make([]queue.Config, 0, len(eng.config.QueueLimits)+len(eng.queueConfigs))
	for _, ql := range eng.config.QueueLimits {
		configs = append(configs, queue.Config{
			Name:           ql.Name,
			MaxConcurrency: ql.MaxConcurrency,
			RateLimit:      ql.RateLimit,
			RateBurst:      ql.RateBurst,
		})
	}
	configs = append(configs, eng.queueConfigs...)
	if len(configs) > 0 {
		eng.queueManager = queue.NewManager(configs...)
		poolOpts = append(poolOpts, worker.WithQueueManager(eng.queueManager))
	}

	eng.pool = worker.NewPool(eng.store, executor, eng.extensions, eng.logger, poolOpts...)
}

// Autodiscover fills the registry from the default discovery catalog
// (restricted to Config.Discovery when set) and any WithDiscoverer
// sources.
func (eng *Engine) Autodiscover(ctx context.Context) error {
	var base task.Discoverer = discovery.Default()
	if len(eng.config.Discovery) > 0 {
		base = discovery.Default().Only(eng.config.Discovery...)
	}
	sources := append([]task.Discoverer{base}, eng.discoverers...)
	return eng.registry.Autodiscover(ctx, sources...)
}

// Submit enqueues one invocation of the named task and returns its
// completion handle. Store errors are returned unchanged.
func (eng *Engine) Submit(ctx context.Context, name string, args task.Args, opts ...dispatch.SubmitOption) (*result.AsyncResult, error) {
	def, err := eng.registry.Get(name)
	if err != nil {
		return nil, err
	}

	inv, err := eng.newInvocation(def, args, dispatch.ApplySubmitOptions(opts))
	if err != nil {
		return nil, err
	}
	if err := eng.store.Enqueue(ctx, inv); err != nil {
		return nil, err
	}

	eng.extensions.EmitInvocationSubmitted(ctx, inv)
	return eng.handle(inv.ID), nil
}

// SubmitGroup enqueues one invocation per argument group under a shared
// group ID. Member i of the returned handle corresponds to groups[i].
func (eng *Engine) SubmitGroup(ctx context.Context, name string, groups []task.Args, opts ...dispatch.SubmitOption) (*result.GroupResult, error) {
	def, err := eng.registry.Get(name)
	if err != nil {
		return nil, err
	}

	so := dispatch.ApplySubmitOptions(opts)
	groupID := id.NewGroupID()

	invs := make([]*invocation.Invocation, len(groups))
	for i, args := range groups {
		inv, err := eng.newInvocation(def, args, so)
		if err != nil {
			return nil, fmt.Errorf("group member %d: %w", i, err)
		}
		inv.GroupID = groupID
		inv.GroupIndex = i
		invs[i] = inv
	}

	members := make([]*result.AsyncResult, len(invs))
	for i, inv := range invs {
		if err := eng.store.Enqueue(ctx, inv); err != nil {
			return nil, err
		}
		eng.extensions.EmitInvocationSubmitted(ctx, inv)
		members[i] = eng.handle(inv.ID)
	}

	eng.extensions.EmitGroupSubmitted(ctx, groupID, name, len(invs))
	return result.NewGroup(groupID, members), nil
}

func (eng *Engine) newInvocation(def *task.Definition, args task.Args, so dispatch.SubmitOptions) (*invocation.Invocation, error) {
	payload, err := eng.codec.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("encode arguments for %q: %w", def.Name(), err)
	}

	o := def.Options()
	q := o.Queue
	if so.Queue != "" {
		q = so.Queue
	}
	timeout := o.Timeout
	if so.Timeout > 0 {
		timeout = so.Timeout
	}

	now := time.Now().UTC()
	return &invocation.Invocation{
		ID:        id.NewInvocationID(),
		TaskName:  def.Name(),
		Queue:     q,
		Codec:     eng.codec.Name(),
		Payload:   payload,
		State:     invocation.StatePending,
		Timeout:   timeout,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (eng *Engine) handle(invID id.InvocationID) *result.AsyncResult {
	return result.New(invID, eng.backend, result.WithPollInterval(eng.config.ResultPollInterval))
}

// Start begins processing by starting the worker pool.
func (eng *Engine) Start(ctx context.Context) error {
	eng.logger.Info("tasker engine starting",
		slog.Int("tasks", eng.registry.Len()),
		slog.Int("periodic", len(eng.registry.Periodic())),
	)
	return eng.pool.Start(ctx)
}

// Stop notifies extensions and stops the pool. Active invocations get
// Config.ShutdownTimeout (or until ctx ends, if sooner) to finish.
func (eng *Engine) Stop(ctx context.Context) error {
	eng.extensions.EmitShutdown(ctx)

	if eng.config.ShutdownTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, eng.config.ShutdownTimeout)
		defer cancel()
	}
	return eng.pool.Stop(ctx)
}

// Dispatch returns the dispatch façade bound to this engine.
func (eng *Engine) Dispatch() *dispatch.Facade { return eng.facade }

// Registry returns the task registry.
func (eng *Engine) Registry() *task.Registry { return eng.registry }

// Extensions returns the extension registry.
func (eng *Engine) Extensions() *ext.Registry { return eng.extensions }

// Store returns the invocation store.
func (eng *Engine) Store() invocation.Store { return eng.store }

// Backend returns the result backend handles poll.
func (eng *Engine) Backend() result.Backend { return eng.backend }

// Catalog returns the remote-execution allow-list, or nil.
func (eng *Engine) Catalog() *remote.Catalog { return eng.catalog }

// Pool returns the worker pool.
func (eng *Engine) Pool() *worker.Pool { return eng.pool }

// Config returns the effective configuration.
func (eng *Engine) Config() tasker.Config { return eng.config }

// QueueManager returns the queue manager, or nil if no queue limits were
// configured.
func (eng *Engine) QueueManager() *queue.Manager { return eng.queueManager }
