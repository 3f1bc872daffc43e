package tts

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// Constructor builds a backend instance. Constructors must not perform I/O;
// anything expensive belongs behind the backend's first Synthesize call.
type Constructor func() (Backend, error)

// Registration binds a backend name to its constructor and static priority.
// Higher priority wins when multiple backends are simultaneously available.
type Registration struct {
	Name     string
	Priority int
	New      Constructor
}

// Registry maps backend names to lazily constructed, cached instances and
// resolves "best available" and "preferred with fallback" queries.
type Registry struct {
	mu     sync.Mutex
	regs   map[string]Registration
	cache  map[string]Backend
	logger *slog.Logger
}

// NewRegistry creates an empty backend registry.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		regs:   make(map[string]Registration),
		cache:  make(map[string]Backend),
		logger: logger,
	}
}

// Register adds a backend registration.
func (r *Registry) Register(reg Registration) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.regs[reg.Name]; exists {
		return fmt.Errorf("%w: %s", ErrBackendExists, reg.Name)
	}

	r.regs[reg.Name] = reg
	return nil
}

// Create returns the cached instance for name, constructing it on first use.
func (r *Registry) Create(name string) (Backend, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if backend, ok := r.cache[name]; ok {
		return backend, nil
	}

	reg, ok := r.regs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownBackend, name)
	}

	backend, err := reg.New()
	if err != nil {
		return nil, fmt.Errorf("constructing backend %s: %w", name, err)
	}

	r.cache[name] = backend
	return backend, nil
}

// List returns all registered backend names sorted by descending priority.
// Names break priority ties so the order is stable across calls.
func (r *Registry) List() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, 0, len(r.regs))
	for name := range r.regs {
		names = append(names, name)
	}

	sort.Slice(names, func(i, j int) bool {
		pi, pj := r.regs[names[i]].Priority, r.regs[names[j]].Priority
		if pi != pj {
			return pi > pj
		}
		return names[i] < names[j]
	})

	return names
}

// Available returns the highest-priority backend whose probe succeeds.
// Probes run sequentially in priority order so a higher-priority backend is
// never skipped because a lower-priority probe answered faster.
func (r *Registry) Available(ctx context.Context) (Backend, error) {
	for _, name := range r.List() {
		backend, err := r.Create(name)
		if err != nil {
			r.logger.Debug("backend construction failed during probe",
				"backend", name, "error", err)
			continue
		}
		if backend.IsAvailable(ctx) {
			return backend, nil
		}
	}
	return nil, ErrNoBackendAvailable
}

// WithFallback probes the preferred backend first and falls through to
// Available when it is unset, unknown, or not usable.
func (r *Registry) WithFallback(ctx context.Context, preferred string) (Backend, error) {
	if preferred != "" {
		backend, err := r.Create(preferred)
		if err != nil {
			r.logger.Warn("preferred backend not usable, falling back",
				"backend", preferred, "error", err)
		} else if backend.IsAvailable(ctx) {
			return backend, nil
		} else {
			r.logger.Warn("preferred backend not available, falling back",
				"backend", preferred)
		}
	}
	return r.Available(ctx)
}
