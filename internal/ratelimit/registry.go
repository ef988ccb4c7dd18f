package ratelimit

import (
	"fmt"
	"sort"
	"sync"
)

// Factory builds the limiter of a named guard. A Registry calls it at most
// once per name.
type Factory func(name string, q Quota) (Limiter, error)

// MemoryFactory builds in-process Windows sharing opts.
func MemoryFactory(opts ...Option) Factory {
	base := buildOptions(opts)
	return func(name string, q Quota) (Limiter, error) {
		if err := q.Validate(); err != nil {
			return nil, err
		}
		o := base
		o.name = name
		return newWindow(q, o), nil
	}
}

type entry struct {
	quota   Quota
	limiter Limiter
}

// Registry hands out exactly one limiter per guarded operation, created on
// first use and kept for the lifetime of the process.
type Registry struct {
	mu      sync.RWMutex
	factory Factory
	entries map[string]*entry
}

// NewRegistry returns a Registry of in-process Windows.
func NewRegistry(opts ...Option) *Registry {
	return NewRegistryWithFactory(MemoryFactory(opts...))
}

func NewRegistryWithFactory(f Factory) *Registry {
	return &Registry{
		factory: f,
		entries: make(map[string]*entry),
	}
}

// Get returns the limiter for name, creating it with q if it does not exist.
// Concurrent first calls construct a single limiter and all observe it.
func (r *Registry) Get(name string, q Quota) (Limiter, error) {
	if err := q.Validate(); err != nil {
		return nil, fmt.Errorf("guard %q: %w", name, err)
	}

	r.mu.RLock()
	e, ok := r.entries[name]
	r.mu.RUnlock()

	if !ok {
		var err error
		if e, err = r.create(name, q); err != nil {
			return nil, err
		}
	}

	if e.quota != q {
		return nil, fmt.Errorf("guard %q has quota %s, requested %s: %w", name, e.quota, q, ErrQuotaMismatch)
	}
	return e.limiter, nil
}

func (r *Registry) create(name string, q Quota) (*entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	// another caller may have won the race between the two locks
	if e, ok := r.entries[name]; ok {
		return e, nil
	}
	lim, err := r.factory(name, q)
	if err != nil {
		return nil, fmt.Errorf("guard %q: %w", name, err)
	}
	e := &entry{quota: q, limiter: lim}
	r.entries[name] = e
	return e, nil
}

// MustGet is like Get but panics on error. Intended for package-level guards
// whose quota is a constant.
func (r *Registry) MustGet(name string, q Quota) Limiter {
	lim, err := r.Get(name, q)
	if err != nil {
		panic(err)
	}
	return lim
}

// Register declares a guard up front, typically from configuration.
func (r *Registry) Register(name string, q Quota) error {
	_, err := r.Get(name, q)
	return err
}

// Lookup returns a guard previously created by Get or Register.
func (r *Registry) Lookup(name string) (Limiter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownGuard, name)
	}
	return e.limiter, nil
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Stats returns a snapshot for every guard whose limiter reports stats,
// ordered by name.
func (r *Registry) Stats() []Stats {
	names := r.Names()
	out := make([]Stats, 0, len(names))

	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, name := range names {
		e := r.entries[name]
		if s, ok := e.limiter.(interface{ Stats() Stats }); ok {
			out = append(out, s.Stats())
			continue
		}
		out = append(out, Stats{Name: name, Quota: e.quota.String()})
	}
	return out
}

// Lazy returns a single static slot for one guarded operation. The quota is
// checked immediately; the Window is built on the first call and every later
// call, from any goroutine, returns the same one.
func Lazy(q Quota, opts ...Option) func() *Window {
	if err := q.Validate(); err != nil {
		panic(fmt.Sprintf("ratelimit: Lazy(%s): %v", q, err))
	}
	o := buildOptions(opts)
	return sync.OnceValue(func() *Window {
		return newWindow(q, o)
	})
}
