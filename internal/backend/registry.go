package backend

import (
	"context"
	"log/slog"

	"golang.org/x/sync/singleflight"
)

// primaryOrder is the backend preference for primary selection. GraphQL
// first because it carries richer package-relationship data; the index
// backend is the broad-coverage fallback.
var primaryOrder = []Type{TypeGraphQL, TypeElasticsearch}

// Registry owns the set of backend instances and the primary-selection
// policy. It is the only cross-request mutable state in the engine; one
// registry is constructed per composed engine and injected, never held
// as a process global.
type Registry struct {
	backends map[Type]SearchBackend
	probes   singleflight.Group
	logger   *slog.Logger
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithRegistryLogger sets the registry's logger.
func WithRegistryLogger(logger *slog.Logger) RegistryOption {
	return func(r *Registry) {
		r.logger = logger
	}
}

// NewRegistry creates a registry over the given backends. Later backends
// of the same type replace earlier ones.
func NewRegistry(backends []SearchBackend, opts ...RegistryOption) *Registry {
	r := &Registry{
		backends: make(map[Type]SearchBackend, len(backends)),
		logger:   slog.Default(),
	}
	for _, b := range backends {
		r.backends[b.Type()] = b
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// EnsureInitialized probes every backend that has not been probed yet.
// Concurrent callers share one in-flight probe per backend; probes are
// idempotent reads of external availability, so first caller wins.
func (r *Registry) EnsureInitialized(ctx context.Context) {
	for t, b := range r.backends {
		_, _, _ = r.probes.Do(string(t), func() (any, error) {
			b.EnsureInitialized(ctx)
			return nil, nil
		})
	}
}

// SelectPrimary ensures all backends are initialized and returns the
// first backend in preference order whose status is Available, or nil
// when no backend can serve.
func (r *Registry) SelectPrimary(ctx context.Context) SearchBackend {
	r.EnsureInitialized(ctx)

	for _, t := range primaryOrder {
		b, ok := r.backends[t]
		if !ok {
			continue
		}
		if b.Status() == StatusAvailable {
			r.logger.Debug("primary_backend_selected",
				slog.String("backend", string(t)))
			return b
		}
	}

	r.logger.Warn("no_backend_available")
	return nil
}

// Get returns the backend registered under the given name, or nil.
func (r *Registry) Get(name Type) SearchBackend {
	return r.backends[name]
}

// Types returns the registered backend types in preference order.
func (r *Registry) Types() []Type {
	var types []Type
	for _, t := range primaryOrder {
		if _, ok := r.backends[t]; ok {
			types = append(types, t)
		}
	}
	return types
}

// Statuses returns the current status of every registered backend
// without probing.
func (r *Registry) Statuses() map[Type]Status {
	statuses := make(map[Type]Status, len(r.backends))
	for t, b := range r.backends {
		statuses[t] = b.Status()
	}
	return statuses
}

// HealthCheck force-probes every backend and reports reachability.
func (r *Registry) HealthCheck(ctx context.Context) map[Type]bool {
	healthy := make(map[Type]bool, len(r.backends))
	for t, b := range r.backends {
		healthy[t] = b.HealthCheck(ctx)
	}
	return healthy
}
