package evaluator

import (
	"fmt"
	"sync"

	"rescore/internal/domain"
)

// Constructor builds a fresh evaluator instance. Instances are resolved once
// at configuration time, so constructors run outside any hot path.
type Constructor func() Evaluator

// Registry maps evaluator names to constructors. Lookup is by string name but
// resolution happens once per run configuration, yielding a fixed ordered
// collection; no reflection is involved.
type Registry struct {
	mu           sync.RWMutex
	constructors map[string]Constructor
	order        []string // registration order, used by Names
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{constructors: make(map[string]Constructor)}
}

// Register adds a named constructor. Registering a duplicate name is a
// programmer error and is rejected.
func (r *Registry) Register(name string, ctor Constructor) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.constructors[name]; exists {
		return fmt.Errorf("evaluator %q already registered", name)
	}
	r.constructors[name] = ctor
	r.order = append(r.order, name)
	return nil
}

// Names returns all registered names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}

// Resolve instantiates the named evaluators, preserving the requested order.
// Unknown names fail the whole resolution: configuration errors are fatal
// before any evaluator executes.
func (r *Registry) Resolve(names []string) ([]Evaluator, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	evals := make([]Evaluator, 0, len(names))
	for _, name := range names {
		ctor, ok := r.constructors[name]
		if !ok {
			return nil, fmt.Errorf("%w: %q", domain.ErrUnknownEvaluator, name)
		}
		evals = append(evals, ctor())
	}
	return evals, nil
}

// DefaultRegistry returns a registry with all built-in evaluators registered.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	// Registration of built-ins cannot collide.
	_ = r.Register(NameKeywordCoverage, func() Evaluator { return NewKeywordCoverage() })
	_ = r.Register(NameContentSimilarity, func() Evaluator { return NewContentSimilarity() })
	_ = r.Register(NameReadability, func() Evaluator { return NewReadability() })
	_ = r.Register(NameStructure, func() Evaluator { return NewStructure() })
	return r
}
