package scheduler

import (
	"fmt"
	"log/slog"
	"sort"
)

const (
	PolicyRoundRobin = "round-robin"
	PolicyFIFO       = "fifo"
)

// Factory builds a fresh policy instance for the given quantum.
type Factory func(quantum int) Scheduler

// Registry maps policy names to their constructors.
// Registration happens at startup before concurrent access, so no mutex is needed.
type Registry struct {
	factories map[string]Factory
	logger    *slog.Logger
}

// NewRegistry creates a Registry with the built-in policies registered.
func NewRegistry(logger *slog.Logger) *Registry {
	r := &Registry{
		factories: make(map[string]Factory),
		logger:    logger.With("component", "scheduler-registry"),
	}
	r.Register(PolicyRoundRobin, func(q int) Scheduler { return NewRoundRobin(q) })
	r.Register(PolicyFIFO, func(int) Scheduler { return NewFIFO() })
	return r
}

// Register adds a policy constructor under name, replacing any previous one.
func (r *Registry) Register(name string, f Factory) {
	r.factories[name] = f
	r.logger.Debug("scheduler policy registered", "policy", name)
}

// New returns a new policy instance or an error if name is unknown.
func (r *Registry) New(name string, quantum int) (Scheduler, error) {
	f, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("no scheduler policy registered for %q", name)
	}
	return f(quantum), nil
}

// Names returns the registered policy names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.factories))
	for n := range r.factories {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Has reports whether a policy is registered under name.
func (r *Registry) Has(name string) bool {
	_, ok := r.factories[name]
	return ok
}
