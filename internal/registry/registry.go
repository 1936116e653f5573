package registry

import (
	"fmt"
	"sort"
	"sync"

	"github.com/floodlib/ripple-engine/internal/stageerr"
)

// Registry is the lookup table of processes the job runner entrypoint may
// execute. It is built once at startup from the compiled-in descriptor set
// (see internal/pipeline.Descriptors) and never mutated at request time,
// satisfying the no-global-mutable-state design rule: every HTTP handler
// and worker goroutine holds the same immutable *Registry built at boot.
type Registry struct {
	mu          sync.RWMutex
	descriptors map[string]Descriptor
}

// New constructs an empty Registry.
func New() *Registry {
	return &Registry{descriptors: make(map[string]Descriptor)}
}

// Register adds one descriptor. Registering the same name twice panics at
// startup rather than silently shadowing an entry.
func (r *Registry) Register(d Descriptor) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.descriptors[d.Name]; exists {
		panic(fmt.Sprintf("registry: process %q registered twice", d.Name))
	}

	r.descriptors[d.Name] = d
}

// RegisterAll registers every descriptor in ds.
func (r *Registry) RegisterAll(ds []Descriptor) {
	for _, d := range ds {
		r.Register(d)
	}
}

// Get looks up a process descriptor by name.
func (r *Registry) Get(name string) (Descriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.descriptors[name]
	if !ok {
		return Descriptor{}, stageerr.New(stageerr.KindUnknownProcess, "unknown process %q", name)
	}

	return d, nil
}

// Names returns every registered process name, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.descriptors))
	for name := range r.descriptors {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}
