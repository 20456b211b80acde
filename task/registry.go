package task

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sort"
	"sync"

	"github.com/xraph/tasker"
)

// Observer is notified after a definition is added to or removed from a
// Registry. Calls happen outside the registry lock.
type Observer interface {
	TaskRegistered(d *Definition)
	TaskUnregistered(d *Definition)
}

// Discoverer finds task definitions and registers them. The registry holds
// no scanning logic of its own.
type Discoverer interface {
	Discover(ctx context.Context, r *Registry) error
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithLogger sets the registry logger.
func WithLogger(l *slog.Logger) RegistryOption {
	return func(r *Registry) { r.logger = l }
}

// WithObserver adds an observer for registration events.
func WithObserver(o Observer) RegistryOption {
	return func(r *Registry) { r.observers = append(r.observers, o) }
}

// Registry maps task names to definitions. It is safe for concurrent use;
// every operation is atomic in isolation and a reader never observes a
// partially inserted or removed entry.
type Registry struct {
	mu    sync.RWMutex
	tasks map[string]*Definition

	observers []Observer
	logger    *slog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		tasks:  make(map[string]*Definition),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// AddObserver attaches o to a registry that was built without it. Only
// events after the call are delivered.
func (r *Registry) AddObserver(o Observer) {
	r.mu.Lock()
	r.observers = append(r.observers, o)
	r.mu.Unlock()
}

// Register registers a plain function under name as a Regular task.
func (r *Registry) Register(name string, fn Func, opts ...Option) error {
	if fn == nil {
		return fmt.Errorf("task %q: nil function: %w", name, tasker.ErrInvalidTask)
	}

	o := applyOptions(opts)
	if o.Name != "" {
		name = o.Name
	}
	if name == "" {
		return fmt.Errorf("function task has no name: %w", tasker.ErrInvalidTask)
	}
	if o.Schedule != "" {
		return fmt.Errorf("task %q: schedule set on a regular task: %w", name, tasker.ErrInvalidTask)
	}

	return r.insert(&Definition{
		name:     name,
		kind:     Regular,
		behavior: fn,
		opts:     o,
	})
}

// RegisterTask registers a stateful task instance. The instance's declared
// name is used unless WithName overrides it.
func (r *Registry) RegisterTask(t Task, opts ...Option) error {
	if isNilTask(t) {
		return fmt.Errorf("nil task %T: %w", t, tasker.ErrInvalidTask)
	}

	o := applyOptions(opts)
	name := o.Name
	if name == "" {
		name = t.Name()
	}
	if name == "" {
		return fmt.Errorf("task %T has no name: %w", t, tasker.ErrInvalidTask)
	}

	def := &Definition{
		name:     name,
		kind:     t.Kind(),
		behavior: taskBehavior{t: t},
		instance: t,
		opts:     o,
	}
	if !def.kind.Valid() {
		return fmt.Errorf("task %q: unknown kind %q: %w", name, def.kind, tasker.ErrInvalidTask)
	}

	if err := def.resolveSchedule(t); err != nil {
		return err
	}

	return r.insert(def)
}

// RegisterType instantiates a task type once and registers the instance.
// All later invocations under the resolved name share that instance. If
// registration fails the instance is discarded.
func (r *Registry) RegisterType(factory func() Task, opts ...Option) error {
	if factory == nil {
		return fmt.Errorf("nil task factory: %w", tasker.ErrInvalidTask)
	}
	return r.RegisterTask(factory(), opts...)
}

// Unregister removes the task registered under name. The name becomes
// available for future registration.
func (r *Registry) Unregister(name string) error {
	r.mu.Lock()
	def, ok := r.tasks[name]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("task %q: %w", name, tasker.ErrNotRegistered)
	}
	delete(r.tasks, name)
	observers := r.observers
	r.mu.Unlock()

	r.logger.Debug("task unregistered", slog.String("task", name))
	for _, o := range observers {
		o.TaskUnregistered(def)
	}
	return nil
}

// UnregisterTask removes a task by its declared name.
func (r *Registry) UnregisterTask(t Task) error {
	if isNilTask(t) {
		return fmt.Errorf("nil task %T: %w", t, tasker.ErrInvalidTask)
	}
	return r.Unregister(t.Name())
}

// Get returns the definition registered under name.
func (r *Registry) Get(name string) (*Definition, error) {
	def, ok := r.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("task %q: %w", name, tasker.ErrTaskNotFound)
	}
	return def, nil
}

// Lookup returns the definition registered under name and whether it exists.
func (r *Registry) Lookup(name string) (*Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.tasks[name]
	return def, ok
}

// All returns a snapshot of every registered definition keyed by name.
// The returned map is the caller's; changing it does not affect the
// registry.
func (r *Registry) All() map[string]*Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]*Definition, len(r.tasks))
	for name, def := range r.tasks {
		out[name] = def
	}
	return out
}

// FilterByKind returns a snapshot of the definitions of the given kind.
func (r *Registry) FilterByKind(k Kind) map[string]*Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]*Definition)
	for name, def := range r.tasks {
		if def.kind == k {
			out[name] = def
		}
	}
	return out
}

// Regular returns all regular definitions.
func (r *Registry) Regular() map[string]*Definition { return r.FilterByKind(Regular) }

// Periodic returns all periodic definitions.
func (r *Registry) Periodic() map[string]*Definition { return r.FilterByKind(Periodic) }

// Names returns all registered names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.tasks))
	for name := range r.tasks {
		names = append(names, name)
	}
	r.mu.RUnlock()
	sort.Strings(names)
	return names
}

// Len returns the number of registered tasks.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tasks)
}

// Autodiscover runs each discoverer against the registry and returns the
// first error. Discoverers register tasks through the normal API, so a
// duplicate name discovered twice fails like any other registration.
func (r *Registry) Autodiscover(ctx context.Context, sources ...Discoverer) error {
	for _, src := range sources {
		if err := src.Discover(ctx, r); err != nil {
			return fmt.Errorf("autodiscover: %w", err)
		}
	}
	return nil
}

// insert stores def unless its name is taken. No mutation occurs on failure.
func (r *Registry) insert(def *Definition) error {
	r.mu.Lock()
	if _, exists := r.tasks[def.name]; exists {
		r.mu.Unlock()
		return fmt.Errorf("task %q: %w", def.name, tasker.ErrAlreadyRegistered)
	}
	r.tasks[def.name] = def
	observers := r.observers
	r.mu.Unlock()

	r.logger.Debug("task registered",
		slog.String("task", def.name),
		slog.String("kind", def.kind.String()),
	)
	for _, o := range observers {
		o.TaskRegistered(def)
	}
	return nil
}

// isNilTask reports whether t is nil or a typed nil such as (*T)(nil).
func isNilTask(t Task) bool {
	if t == nil {
		return true
	}
	switch v := reflect.ValueOf(t); v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan, reflect.Interface:
		return v.IsNil()
	}
	return false
}

func applyOptions(opts []Option) Options {
	o := DefaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
