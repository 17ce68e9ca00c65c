package provider

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"sync"

	"subseek/internal/cache"
	"subseek/internal/config"
	"subseek/internal/logging"
)

// Deps are the shared collaborators handed to every provider factory.
type Deps struct {
	Config *config.Config
	Cache  *cache.Cache
	Logger *slog.Logger
	// HTTPClient is optional; providers build their own when nil.
	HTTPClient *http.Client
}

// ProviderLogger returns a component logger for the named provider.
func (d Deps) ProviderLogger(name string) *slog.Logger {
	logger := d.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	return logging.NewComponentLogger(logger, name).With(logging.String(logging.FieldProvider, name))
}

// Factory constructs a provider from shared dependencies.
type Factory func(Deps) (Provider, error)

// Registry maps provider names to factories. Providers are added by
// registration at startup.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a factory. Names are case-insensitive and may only be
// registered once.
func (r *Registry) Register(name string, factory Factory) error {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return errors.New("provider: empty name")
	}
	if factory == nil {
		return fmt.Errorf("provider: nil factory for %q", key)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[key]; exists {
		return fmt.Errorf("provider: %q already registered", key)
	}
	r.factories[key] = factory
	return nil
}

// MustRegister is Register for static setup code; it panics on error.
func (r *Registry) MustRegister(name string, factory Factory) {
	if err := r.Register(name, factory); err != nil {
		panic(err)
	}
}

// Names returns the registered names sorted alphabetically.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[strings.ToLower(strings.TrimSpace(name))]
	return ok
}

// Build constructs the named providers in order. Providers that fail to
// build are left out and their errors joined into the returned error, so
// callers can continue with the rest.
func (r *Registry) Build(names []string, deps Deps) ([]Provider, error) {
	providers := make([]Provider, 0, len(names))
	var errs []error
	seen := make(map[string]struct{}, len(names))
	for _, name := range names {
		key := strings.ToLower(strings.TrimSpace(name))
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		r.mu.RLock()
		factory, ok := r.factories[key]
		r.mu.RUnlock()
		if !ok {
			errs = append(errs, Wrap(ErrConfiguration, key, "build", "unknown provider", nil))
			continue
		}
		p, err := factory(deps)
		if err != nil {
			if Classify(err) != ErrConfiguration {
				err = Wrap(ErrConfiguration, key, "build", "construct provider", err)
			}
			errs = append(errs, err)
			continue
		}
		providers = append(providers, p)
	}
	return providers, errors.Join(errs...)
}
