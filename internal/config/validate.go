package config

import (
	"errors"
	"fmt"
	"slices"

	"golang.org/x/text/language"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateLogging(); err != nil {
		return err
	}
	if err := c.validateCache(); err != nil {
		return err
	}
	if err := c.validateDownload(); err != nil {
		return err
	}
	if err := c.validatePool(); err != nil {
		return err
	}
	if err := c.validateProviders(); err != nil {
		return err
	}
	if err := c.validateRefiners(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateLogging() error {
	for component, level := range c.Logging.ComponentOverrides {
		switch level {
		case "debug", "info", "warn", "warning", "error":
		default:
			return fmt.Errorf("logging.component_overrides.%s: unknown level %q", component, level)
		}
	}
	return nil
}

func (c *Config) validateCache() error {
	switch c.Cache.Backend {
	case CacheBackendMemory, CacheBackendSQLite, CacheBackendBolt:
		return nil
	default:
		return fmt.Errorf("cache.backend must be one of memory, sqlite, bolt (got %q)", c.Cache.Backend)
	}
}

func (c *Config) validateDownload() error {
	for _, code := range c.Download.Languages {
		if _, err := language.Parse(code); err != nil {
			return fmt.Errorf("download.languages: invalid language %q", code)
		}
	}
	if c.Download.MinScore < 0 {
		return errors.New("download.min_score must be >= 0")
	}
	for key, value := range map[string]string{
		"download.hearing_impaired": c.Download.HearingImpaired,
		"download.foreign_only":     c.Download.ForeignOnly,
	} {
		switch value {
		case PreferencePrefer, PreferenceAvoid, PreferenceNeutral:
		default:
			return fmt.Errorf("%s must be prefer, avoid or neutral (got %q)", key, value)
		}
	}
	switch c.Download.LanguageFormat {
	case LanguageFormatAlpha2, LanguageFormatAlpha3, LanguageFormatIETF:
	default:
		return fmt.Errorf("download.language_format must be alpha2, alpha3 or ietf (got %q)", c.Download.LanguageFormat)
	}
	if _, err := ParseAge(c.Download.Age); err != nil {
		return fmt.Errorf("download.age: %w", err)
	}
	return nil
}

func (c *Config) validatePool() error {
	if err := ensurePositiveMap(map[string]int{
		"pool.timeout_seconds": c.Pool.TimeoutSeconds,
		"pool.max_workers":     c.Pool.MaxWorkers,
	}); err != nil {
		return err
	}
	if c.Pool.CooldownMinutes < 0 {
		return errors.New("pool.cooldown_minutes must be >= 0")
	}
	return nil
}

func (c *Config) validateProviders() error {
	if len(c.Providers.Enabled) == 0 {
		return errors.New("providers.enabled must include at least one provider")
	}
	for _, name := range c.Providers.Enabled {
		if !slices.Contains(KnownProviders, name) {
			return fmt.Errorf("providers.enabled: unknown provider %q", name)
		}
	}
	if slices.Contains(c.Providers.Enabled, "localdir") && c.Providers.LocalDir.Root == "" {
		return errors.New("providers.localdir.root must be set when localdir is enabled")
	}
	return nil
}

func (c *Config) validateRefiners() error {
	for _, name := range c.Refiners.Enabled {
		if !slices.Contains(KnownRefiners, name) {
			return fmt.Errorf("refiners.enabled: unknown refiner %q", name)
		}
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
