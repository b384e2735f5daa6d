package modules

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"
)

// Registry is a lookup table of module definitions. Registration order is
// recorded and used to break stack-order ties, so every caller sorts tied
// modules identically.
type Registry struct {
	mu    sync.RWMutex
	mods  map[string]*Module
	seq   map[string]int
	order []*Module
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		mods: make(map[string]*Module),
		seq:  make(map[string]int),
	}
}

// Register adds m. It fails with *DuplicateModuleError if the id exists.
func (r *Registry) Register(m *Module) error {
	if m == nil || m.ID == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidModule)
	}
	if m.HTML == nil {
		return fmt.Errorf("%w: %q has no HTML function", ErrInvalidModule, m.ID)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.mods[m.ID]; ok {
		return &DuplicateModuleError{ID: m.ID}
	}
	r.mods[m.ID] = m
	r.seq[m.ID] = len(r.order)
	r.order = append(r.order, m)
	return nil
}

// MustRegister registers every module and panics on the first error.
func (r *Registry) MustRegister(ms ...*Module) {
	for _, m := range ms {
		if err := r.Register(m); err != nil {
			panic(err)
		}
	}
}

// Get returns the definition for id. A missing id is not an error: slides
// may reference modules that have since been removed.
func (r *Registry) Get(id string) (*Module, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.mods[id]
	return m, ok
}

// Definitions returns all modules in registration order.
func (r *Registry) Definitions() []*Module {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.order)
}

// Check verifies that every declared dependency and conflict names a
// registered module.
func (r *Registry) Check() error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var errs []error
	for _, m := range r.order {
		for _, dep := range m.Dependencies {
			if _, ok := r.mods[dep]; !ok {
				errs = append(errs, &DependencyError{Module: m.ID, Relation: "dependency", Target: dep})
			}
		}
		for _, c := range m.Conflicts {
			if _, ok := r.mods[c]; !ok {
				errs = append(errs, &DependencyError{Module: m.ID, Relation: "conflict", Target: c})
			}
		}
	}
	return errors.Join(errs...)
}

// ValidateCombination checks that every requested module is registered,
// has its dependencies present and none of its conflicts. It returns one
// message per violation; an empty slice means the combination is valid.
func (r *Registry) ValidateCombination(ids []string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	present := make(map[string]bool, len(ids))
	var violations []string
	for _, id := range ids {
		if present[id] {
			violations = append(violations, fmt.Sprintf("module %q listed more than once", id))
		}
		present[id] = true
	}

	for _, id := range ids {
		m, ok := r.mods[id]
		if !ok {
			violations = append(violations, fmt.Sprintf("module %q is not registered", id))
			continue
		}
		for _, dep := range m.Dependencies {
			if !present[dep] {
				violations = append(violations, fmt.Sprintf("module %q requires %q", id, dep))
			}
		}
		for _, c := range m.Conflicts {
			if present[c] {
				violations = append(violations, fmt.Sprintf("module %q conflicts with %q", id, c))
			}
		}
	}
	return violations
}

// SortByStackOrder returns a new slice ordered by ascending StackOrder.
// Ties keep registration order; modules unknown to this registry sort after
// known ones with the same stack order, in input order.
func (r *Registry) SortByStackOrder(mods []*Module) []*Module {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := slices.Clone(mods)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].StackOrder != out[j].StackOrder {
			return out[i].StackOrder < out[j].StackOrder
		}
		return r.rank(out[i].ID) < r.rank(out[j].ID)
	})
	return out
}

func (r *Registry) rank(id string) int {
	if s, ok := r.seq[id]; ok {
		return s
	}
	return len(r.order)
}
