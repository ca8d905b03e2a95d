// Package global provides the append-only service-constructor registry used
// to wire pluggable backends by config-selected name. Storage providers are
// its only user; persistence and job-queue drivers are selected directly in
// cmd/octopusd/runtime.
package global

import "fmt"

// NewFunc constructs a T from a raw config map. It is the shape every
// pluggable driver constructor in this codebase implements.
type NewFunc[T any] func(m map[string]interface{}) (T, error)

// Registry is a name -> constructor map. Not safe for concurrent
// registration; registration happens at init/wiring time only.
type Registry[T any] struct {
	funcs map[string]NewFunc[T]
}

// NewRegistry returns an empty registry.
func NewRegistry[T any]() *Registry[T] {
	return &Registry[T]{funcs: map[string]NewFunc[T]{}}
}

// Register adds a constructor under name. Safe for use from package init.
func (r *Registry[T]) Register(name string, f NewFunc[T]) {
	r.funcs[name] = f
}

// New looks up the constructor registered under name and invokes it.
func (r *Registry[T]) New(name string, m map[string]interface{}) (T, error) {
	var zero T
	f, ok := r.funcs[name]
	if !ok {
		return zero, fmt.Errorf("driver not found: %s", name)
	}
	return f(m)
}

// Names returns the registered driver names.
func (r *Registry[T]) Names() []string {
	names := make([]string, 0, len(r.funcs))
	for n := range r.funcs {
		names = append(names, n)
	}
	return names
}
