package cache

import (
	"fmt"
	"log/slog"

	"subseek/internal/config"
	"subseek/internal/logging"
)

// Open builds the cache selected by cfg.Cache. Callers own the result and
// must Close it at shutdown.
func Open(cfg *config.Config, logger *slog.Logger) (*Cache, error) {
	if cfg == nil {
		return nil, fmt.Errorf("cache: config is nil")
	}
	var (
		backend Backend
		err     error
	)
	switch cfg.Cache.Backend {
	case config.CacheBackendMemory:
		backend = NewMemory()
	case config.CacheBackendSQLite:
		backend, err = OpenSQLite(cfg.CachePath())
	case config.CacheBackendBolt:
		backend, err = OpenBolt(cfg.CachePath())
	default:
		return nil, fmt.Errorf("cache: unknown backend %q", cfg.Cache.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("cache: open %s backend: %w", cfg.Cache.Backend, err)
	}
	if logger != nil {
		logger.Debug("cache opened",
			logging.String("backend", backend.Name()),
			logging.String("path", cfg.CachePath()),
		)
	}
	return New(backend, WithLogger(logger)), nil
}
