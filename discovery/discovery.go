// Package discovery collects task setup functions contributed by other
// packages and replays them against a registry.
//
// Packages that own tasks provide a setup at init time:
//
//	func init() {
//	    discovery.Provide("billing", func(r *task.Registry) error {
//	        return r.Register("billing.invoice", task.Func(invoice))
//	    })
//	}
//
// A blank import of the package is then enough for
// registry.Autodiscover(ctx, discovery.Default()) to find its tasks.
package discovery

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/xraph/tasker/task"
)

// Setup registers one package's tasks.
type Setup func(r *task.Registry) error

// Catalog is a named set of setups. It satisfies task.Discoverer.
type Catalog struct {
	mu     sync.RWMutex
	setups map[string]Setup
	logger *slog.Logger
}

var _ task.Discoverer = (*Catalog)(nil)

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{setups: make(map[string]Setup), logger: slog.Default()}
}

// SetLogger sets the logger used when discovering.
func (c *Catalog) SetLogger(l *slog.Logger) { c.logger = l }

// Provide adds a named setup. It panics on an empty name, a nil setup, or
// a name that was already provided, since those are init-time programming
// errors.
func (c *Catalog) Provide(name string, setup Setup) {
	if name == "" || setup == nil {
		panic("discovery: Provide requires a name and a setup")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, dup := c.setups[name]; dup {
		panic(fmt.Sprintf("discovery: setup %q provided twice", name))
	}
	c.setups[name] = setup
}

// Names returns the provided setup names in sorted order.
func (c *Catalog) Names() []string {
	c.mu.RLock()
	names := make([]string, 0, len(c.setups))
	for name := range c.setups {
		names = append(names, name)
	}
	c.mu.RUnlock()
	sort.Strings(names)
	return names
}

// Discover runs every setup in name order and stops at the first error.
func (c *Catalog) Discover(ctx context.Context, r *task.Registry) error {
	return c.run(ctx, r, c.Names())
}

// Only returns a discoverer restricted to the named setups. Names that
// were never provided fail discovery.
func (c *Catalog) Only(names ...string) task.Discoverer {
	return restricted{c: c, names: names}
}

func (c *Catalog) run(ctx context.Context, r *task.Registry, names []string) error {
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return err
		}
		c.mu.RLock()
		setup, ok := c.setups[name]
		c.mu.RUnlock()
		if !ok {
			return fmt.Errorf("discovery: setup %q not provided", name)
		}

		before := r.Len()
		if err := setup(r); err != nil {
			return fmt.Errorf("discovery: setup %q: %w", name, err)
		}
		c.logger.Debug("tasks discovered",
			slog.String("setup", name),
			slog.Int("registered", r.Len()-before),
		)
	}
	return nil
}

type restricted struct {
	c     *Catalog
	names []string
}

func (d restricted) Discover(ctx context.Context, r *task.Registry) error {
	names := append([]string(nil), d.names...)
	sort.Strings(names)
	return d.c.run(ctx, r, names)
}

var defaultCatalog = NewCatalog()

// Default returns the process-wide catalog fed by Provide.
func Default() *Catalog { return defaultCatalog }

// Provide adds a named setup to the default catalog.
func Provide(name string, setup Setup) { defaultCatalog.Provide(name, setup) }
