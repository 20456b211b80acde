// Package remote is the reference serializer for remote-execution
// payloads. A function travels as its fully qualified symbol name, never
// as code, and a worker will only run functions on its allow-list.
//
// Only package-level functions have a stable symbol name. Closures,
// function literals, method values and generic instantiations are
// rejected when encoded.
package remote

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"runtime"
	"sort"
	"strings"
	"sync"

	"github.com/xraph/tasker/task"
)

var (
	// ErrNotSerializable is returned for functions that cannot be
	// referenced by symbol name.
	ErrNotSerializable = errors.New("remote: function is not serializable by reference")

	// ErrNotAllowed is returned for functions missing from the allow-list.
	ErrNotAllowed = errors.New("remote: function is not allow-listed")
)

// anonymous matches runtime symbol names of closures, package-level
// function literals and method values.
var anonymous = regexp.MustCompile(`(\.func\d+(\.\d+)*$)|(-fm$)|(\.glob\.)`)

// Call is the wire form of a remote execution request.
type Call struct {
	Func string    `json:"func"           msgpack:"func"`
	Args task.Args `json:"args,omitempty" msgpack:"args,omitempty"`
}

// Catalog is an allow-list of functions that may be executed remotely.
// It is safe for concurrent use.
type Catalog struct {
	mu    sync.RWMutex
	funcs map[string]task.Func
}

// NewCatalog creates a catalog allowing the given functions. It panics if
// any function cannot be referenced by name (programming error).
func NewCatalog(fns ...task.Func) *Catalog {
	c := &Catalog{funcs: make(map[string]task.Func)}
	if err := c.Allow(fns...); err != nil {
		panic(err)
	}
	return c
}

// Allow adds functions to the allow-list.
func (c *Catalog) Allow(fns ...task.Func) error {
	for _, fn := range fns {
		name, err := FuncName(fn)
		if err != nil {
			return err
		}
		c.mu.Lock()
		c.funcs[name] = fn
		c.mu.Unlock()
	}
	return nil
}

// Encode returns the reference name of an allow-listed function.
func (c *Catalog) Encode(fn task.Func) (string, error) {
	name, err := FuncName(fn)
	if err != nil {
		return "", err
	}
	c.mu.RLock()
	_, ok := c.funcs[name]
	c.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("%s: %w", name, ErrNotAllowed)
	}
	return name, nil
}

// Resolve returns the function referenced by name.
func (c *Catalog) Resolve(name string) (task.Func, error) {
	c.mu.RLock()
	fn, ok := c.funcs[name]
	c.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, ErrNotAllowed)
	}
	return fn, nil
}

// Names returns the allow-listed function names in sorted order.
func (c *Catalog) Names() []string {
	c.mu.RLock()
	names := make([]string, 0, len(c.funcs))
	for name := range c.funcs {
		names = append(names, name)
	}
	c.mu.RUnlock()
	sort.Strings(names)
	return names
}

// FuncName returns the fully qualified symbol name of a package-level
// function.
func FuncName(fn task.Func) (string, error) {
	if fn == nil {
		return "", fmt.Errorf("nil function: %w", ErrNotSerializable)
	}
	rf := runtime.FuncForPC(reflect.ValueOf(fn).Pointer())
	if rf == nil {
		return "", fmt.Errorf("unknown function: %w", ErrNotSerializable)
	}
	name := rf.Name()
	if anonymous.MatchString(name) {
		return "", fmt.Errorf("%s is not a package-level function: %w", name, ErrNotSerializable)
	}
	// Every instantiation of a generic function reports the same
	// pkg.fn[...] symbol, so the name cannot pick one of them.
	if strings.Contains(name, "[...]") {
		return "", fmt.Errorf("%s is a generic instantiation: %w", name, ErrNotSerializable)
	}
	return name, nil
}
