package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"
)

// DefaultName is the key of the shared pool every system has.
const DefaultName = "default"

// Registry holds executors by name.
type Registry struct {
	mu        sync.RWMutex
	executors map[string]Executor
	def       *Pool
}

// NewRegistry builds the executors described by specs. The default pool is
// created from the spec named defaultName, or with GOMAXPROCS workers when
// no such spec exists. Pinned executors fall back to the default pool.
func NewRegistry(specs []Spec, defaultName string, log *slog.Logger) (*Registry, error) {
	if defaultName == "" {
		defaultName = DefaultName
	}

	defSpec := Spec{Name: defaultName, Kind: KindPool}
	for _, s := range specs {
		if s.Name == defaultName {
			if s.Kind != "" && s.Kind != KindPool {
				return nil, fmt.Errorf("default executor %q must be a pool, got %s", defaultName, s.Kind)
			}
			defSpec = s
		}
	}

	r := &Registry{
		executors: make(map[string]Executor),
		def:       NewPool(defaultName, defSpec.Workers, defSpec.Throughput, log),
	}
	r.executors[defaultName] = r.def

	for _, s := range specs {
		if s.Name == defaultName {
			continue
		}
		var e Executor
		switch s.Kind {
		case KindPool, "":
			e = NewPool(s.Name, s.Workers, s.Throughput, log)
		case KindPinned:
			e = NewPinned(s.Name, s.Throughput, r.def, log)
		default:
			_ = r.Shutdown(context.Background())
			return nil, fmt.Errorf("executor %q: unknown kind %q", s.Name, s.Kind)
		}
		if err := r.Register(e); err != nil {
			_ = e.Shutdown(context.Background())
			_ = r.Shutdown(context.Background())
			return nil, err
		}
	}

	return r, nil
}

// Register adds an executor under its name.
func (r *Registry) Register(e Executor) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.executors[e.Name()]; exists {
		return fmt.Errorf("executor %q already registered", e.Name())
	}
	r.executors[e.Name()] = e
	return nil
}

// Get returns the executor registered under name.
func (r *Registry) Get(name string) (Executor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.executors[name]
	return e, ok
}

// Default returns the shared pool.
func (r *Registry) Default() *Pool {
	return r.def
}

// Names lists the registered executors, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.executors))
	for name := range r.executors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Shutdown stops every executor. Pinned executors and secondary pools are
// stopped in parallel first, the default pool last since it is their
// fallback.
func (r *Registry) Shutdown(ctx context.Context) error {
	r.mu.RLock()
	others := make([]Executor, 0, len(r.executors))
	for _, e := range r.executors {
		if e != Executor(r.def) {
			others = append(others, e)
		}
	}
	r.mu.RUnlock()

	g, gctx := errgroup.WithContext(ctx)
	for _, e := range others {
		e := e
		g.Go(func() error {
			return e.Shutdown(gctx)
		})
	}
	err := g.Wait()

	if derr := r.def.Shutdown(ctx); err == nil {
		err = derr
	}
	return err
}
