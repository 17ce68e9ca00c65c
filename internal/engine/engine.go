// Package engine wires configuration, cache, providers, refiners and the
// selection policy into the scan, list and download operations used by the
// command line.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"subseek/internal/cache"
	"subseek/internal/config"
	"subseek/internal/logging"
	"subseek/internal/pool"
	"subseek/internal/provider"
	"subseek/internal/provider/localdir"
	"subseek/internal/provider/napiprojekt"
	"subseek/internal/provider/opensubtitles"
	"subseek/internal/refine"
	"subseek/internal/selection"
	"subseek/internal/subtitle"
)

// Registry returns a registry holding every built-in provider.
func Registry() *provider.Registry {
	r := provider.NewRegistry()
	r.MustRegister("opensubtitles", opensubtitles.Factory)
	r.MustRegister("napiprojekt", napiprojekt.Factory)
	r.MustRegister("localdir", localdir.Factory)
	return r
}

// Option configures optional Engine collaborators.
type Option func(*options)

type options struct {
	cache      *cache.Cache
	registry   *provider.Registry
	providers  []provider.Provider
	httpClient *http.Client
	refiners   []refine.Refiner
	setRefiner bool
}

// WithCache uses c instead of opening the configured cache. The caller
// keeps ownership and closes it.
func WithCache(c *cache.Cache) Option {
	return func(o *options) { o.cache = c }
}

// WithRegistry builds the enabled providers from r instead of Registry().
func WithRegistry(r *provider.Registry) Option {
	return func(o *options) { o.registry = r }
}

// WithProviders bypasses the registry and uses providers as given.
func WithProviders(providers ...provider.Provider) Option {
	return func(o *options) { o.providers = providers }
}

// WithHTTPClient is handed to providers that make HTTP calls.
func WithHTTPClient(client *http.Client) Option {
	return func(o *options) { o.httpClient = client }
}

// WithRefiners replaces the configured refiners.
func WithRefiners(refiners ...refine.Refiner) Option {
	return func(o *options) {
		o.refiners = refiners
		o.setRefiner = true
	}
}

// Engine is one configured subtitle search session. Close releases the
// providers and, when the engine opened it, the cache.
type Engine struct {
	cfg       *config.Config
	cache     *cache.Cache
	ownsCache bool
	providers []provider.Provider
	pool      *pool.Pool
	refiners  []refine.Refiner
	selection selection.Options
	save      subtitle.SaveOptions
	maxAge    time.Duration
	logger    *slog.Logger

	// buildErr holds providers that could not be constructed.
	buildErr error
}

// New builds an engine from cfg. Providers that fail to build are logged
// and left out; New fails only when none is left.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) (*Engine, error) {
	if cfg == nil {
		return nil, errors.New("engine: config is nil")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	sel, err := selection.FromConfig(cfg.Download)
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}
	sel.Logger = logger
	maxAge, err := cfg.MaxAge()
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}

	e := &Engine{
		cfg:       cfg,
		cache:     o.cache,
		selection: sel,
		maxAge:    maxAge,
		logger:    logging.NewComponentLogger(logger, "engine"),
		save: subtitle.SaveOptions{
			Single:             cfg.Download.Single,
			Directory:          cfg.Download.Directory,
			Encoding:           cfg.Download.Encoding,
			LanguageTypeSuffix: cfg.Download.LanguageTypeSuffix,
			LanguageFormat:     cfg.Download.LanguageFormat,
			RemoveAds:          cfg.Download.RemoveAds,
			Logger:             logging.NewComponentLogger(logger, "save"),
		},
	}
	if e.cache == nil {
		c, err := cache.Open(cfg, logger)
		if err != nil {
			return nil, fmt.Errorf("engine: %w", err)
		}
		e.cache = c
		e.ownsCache = true
	}

	e.providers = o.providers
	if e.providers == nil {
		registry := o.registry
		if registry == nil {
			registry = Registry()
		}
		deps := provider.Deps{Config: cfg, Cache: e.cache, Logger: logger, HTTPClient: o.httpClient}
		e.providers, e.buildErr = registry.Build(cfg.Providers.Enabled, deps)
		if e.buildErr != nil {
			logging.WarnWithContext(e.logger, "some providers could not be built", "provider_build_failed",
				logging.Error(e.buildErr),
				logging.Int("built", len(e.providers)),
				logging.String(logging.FieldImpact, "searches run without the failed providers"),
				logging.String(logging.FieldErrorHint, "check the [providers] section of the config"),
			)
		}
	}
	if len(e.providers) == 0 {
		e.closeCache()
		if e.buildErr != nil {
			return nil, fmt.Errorf("engine: no usable provider: %w", e.buildErr)
		}
		return nil, errors.New("engine: no provider enabled")
	}

	e.pool = pool.New(e.providers, pool.Options{
		Timeout:    cfg.PoolTimeout(),
		MaxWorkers: cfg.Pool.MaxWorkers,
		Cooldown:   cfg.Cooldown(),
		Cache:      e.cache,
		Logger:     logger,
	})

	e.refiners = o.refiners
	if !o.setRefiner {
		e.refiners = e.configuredRefiners()
	}
	return e, nil
}

func (e *Engine) configuredRefiners() []refine.Refiner {
	var refiners []refine.Refiner
	for _, name := range e.cfg.Refiners.Enabled {
		switch name {
		case refine.HashName:
			refiners = append(refiners, &refine.Hash{
				Providers: e.providers,
				MinSize:   int64(e.cfg.Refiners.HashMinSizeMB) * 1024 * 1024,
				Logger:    e.logger,
			})
		case refine.MediaName:
			refiners = append(refiners, &refine.Media{
				Binary: e.cfg.FFprobeBinary(),
				Cache:  e.cache,
			})
		}
	}
	return refiners
}

// Cache returns the engine's cache.
func (e *Engine) Cache() *cache.Cache { return e.cache }

// Providers reports the state of every pooled provider.
func (e *Engine) Providers(ctx context.Context) []pool.ProviderStatus {
	return e.pool.Status(ctx)
}

// BuildError returns the joined errors of providers left out at startup.
func (e *Engine) BuildError() error { return e.buildErr }

// ClearCooldown lets a provider in cooldown be queried again.
func (e *Engine) ClearCooldown(ctx context.Context, name string) error {
	return e.pool.ClearCooldown(ctx, name)
}

// Close terminates the providers and closes an engine-owned cache.
func (e *Engine) Close(ctx context.Context) error {
	err := e.pool.Terminate(ctx)
	if cerr := e.closeCache(); cerr != nil {
		err = errors.Join(err, cerr)
	}
	return err
}

func (e *Engine) closeCache() error {
	if !e.ownsCache || e.cache == nil {
		return nil
	}
	err := e.cache.Close()
	e.cache = nil
	return err
}
