// Package source keeps the named tip sources a run can select from.
package source

import (
	"fmt"
	"sort"

	"TipsPipeline/internal/ports"
)

// Registry keeps a mapping from source names to their implementations.
type Registry struct {
	sources map[string]ports.TipSource
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{sources: map[string]ports.TipSource{}}
}

// Register adds or replaces a source under name.
func (r *Registry) Register(name string, src ports.TipSource) {
	if r.sources == nil {
		r.sources = map[string]ports.TipSource{}
	}
	r.sources[name] = src
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.sources[name]
	return ok
}

// Resolve returns a source by name or an error if it is absent.
func (r *Registry) Resolve(name string) (ports.TipSource, error) {
	if src, ok := r.sources[name]; ok {
		return src, nil
	}
	return nil, fmt.Errorf("source %s is not registered", name)
}

// Names lists registered sources alphabetically.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.sources))
	for name := range r.sources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
