package registry

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/bft-labs/mulecore/pkg/lifecycle"
)

var (
	ErrDuplicateName   = errors.New("registry: object already registered")
	ErrNotFound        = errors.New("registry: object not found")
	ErrDependencyCycle = errors.New("registry: dependency cycle")
	ErrEmptyName       = errors.New("registry: empty object name")
)

type entry struct {
	name      string
	object    any
	dependsOn []string
	seq       uint64
}

// Registry holds named objects and their dependencies. It is safe for
// concurrent use, including registration from inside a lifecycle pass.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*entry
	seq     uint64
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{entries: make(map[string]*entry)}
}

// Register adds obj under name. Dependencies need not be registered yet;
// unknown names are ignored when ordering.
func (r *Registry) Register(name string, obj any, dependsOn ...string) error {
	if name == "" {
		return ErrEmptyName
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[name]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateName, name)
	}
	r.seq++
	r.entries[name] = &entry{
		name:      name,
		object:    obj,
		dependsOn: append([]string(nil), dependsOn...),
		seq:       r.seq,
	}
	return nil
}

// Unregister removes name and returns the object it held.
func (r *Registry) Unregister(name string) (any, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	delete(r.entries, name)
	return e.object, nil
}

// Lookup returns the object registered under name.
func (r *Registry) Lookup(name string) (any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	if !ok {
		return nil, false
	}
	return e.object, true
}

// Len returns the number of registered objects.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// LookupObjectsForLifecycle returns the objects selected by match,
// dependencies first. Ordering considers the whole registry, so an
// unmatched object still orders the matched objects around it.
func (r *Registry) LookupObjectsForLifecycle(match lifecycle.Matcher) ([]lifecycle.Target, error) {
	ordered, err := r.sorted()
	if err != nil {
		return nil, err
	}
	out := make([]lifecycle.Target, 0, len(ordered))
	for _, e := range ordered {
		if match == nil || match(e.object) {
			out = append(out, lifecycle.Target{Name: e.name, Object: e.object})
		}
	}
	return out, nil
}

// sorted snapshots the entries and orders them depth first, visiting
// roots and dependencies in registration order.
func (r *Registry) sorted() ([]*entry, error) {
	r.mu.RLock()
	entries := make([]*entry, 0, len(r.entries))
	byName := make(map[string]*entry, len(r.entries))
	for _, e := range r.entries {
		entries = append(entries, e)
		byName[e.name] = e
	}
	r.mu.RUnlock()

	sortBySeq(entries)

	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[string]int, len(entries))
	out := make([]*entry, 0, len(entries))

	var visit func(e *entry, path []string) error
	visit = func(e *entry, path []string) error {
		switch state[e.name] {
		case done:
			return nil
		case visiting:
			return fmt.Errorf("%w: %v", ErrDependencyCycle, append(path, e.name))
		}
		state[e.name] = visiting
		deps := make([]*entry, 0, len(e.dependsOn))
		for _, d := range e.dependsOn {
			if dep, ok := byName[d]; ok {
				deps = append(deps, dep)
			}
		}
		sortBySeq(deps)
		for _, dep := range deps {
			if err := visit(dep, append(path, e.name)); err != nil {
				return err
			}
		}
		state[e.name] = done
		out = append(out, e)
		return nil
	}

	for _, e := range entries {
		if err := visit(e, nil); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func sortBySeq(entries []*entry) {
	sort.Slice(entries, func(i, j int) bool { return entries[i].seq < entries[j].seq })
}
