// Package registry holds the process-wide mapping from index name to
// live index instance. Instances are shared by reference; destroying a
// name drops the registry's reference while live borrowers keep the
// instance alive until they release it.
package registry

import (
	"sort"
	"sync"

	"github.com/vecindex/internal/index"
	"github.com/vecindex/pkg/errors"
)

// Instance is the surface the registry manages: the common read side of
// the in-memory and disk-backed indexes plus the mutation entry points,
// which a disk-backed instance refuses.
type Instance interface {
	Dimension() int
	Metric() index.Metric
	MaxDegree() int
	BuildComplexity() int
	Alpha() float32
	Count() int
	ReadOnly() bool
	EntryPoints() []uint32
	Add(vec []float32) (uint32, error)
	Search(query []float32, k, beam int) ([]index.Neighbor, error)
	GetVector(label uint32) ([]float32, error)
}

// Registry is a concurrency-safe name -> instance map.
type Registry struct {
	mu      sync.RWMutex
	indexes map[string]Instance
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{indexes: make(map[string]Instance)}
}

// Create binds name to inst. Fails with ALREADY_EXISTS on collision.
func (r *Registry) Create(name string, inst Instance) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.indexes[name]; ok {
		return errors.Newf(errors.CodeAlreadyExists, "index %q already exists", name)
	}
	r.indexes[name] = inst
	return nil
}

// Destroy removes the binding for name.
func (r *Registry) Destroy(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.indexes[name]; !ok {
		return errors.Newf(errors.CodeNotFound, "index %q not found", name)
	}
	delete(r.indexes, name)
	return nil
}

// Replace rebinds name to inst. Fails with NOT_FOUND when name is not
// bound; the previous instance stays alive for existing borrowers.
func (r *Registry) Replace(name string, inst Instance) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.indexes[name]; !ok {
		return errors.Newf(errors.CodeNotFound, "index %q not found", name)
	}
	r.indexes[name] = inst
	return nil
}

// Get returns the instance bound to name.
func (r *Registry) Get(name string) (Instance, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	inst, ok := r.indexes[name]
	if !ok {
		return nil, errors.Newf(errors.CodeNotFound, "index %q not found", name)
	}
	return inst, nil
}

// Exists reports whether name is bound.
func (r *Registry) Exists(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.indexes[name]
	return ok
}

// Names returns all bound names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.indexes))
	for name := range r.indexes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of bound indexes.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.indexes)
}
