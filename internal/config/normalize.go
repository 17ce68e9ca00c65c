package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeLogging()
	if err := c.normalizeCache(); err != nil {
		return err
	}
	if err := c.normalizeDownload(); err != nil {
		return err
	}
	c.normalizePool()
	if err := c.normalizeProviders(); err != nil {
		return err
	}
	c.normalizeRefiners()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.CacheDir) == "" {
		c.Paths.CacheDir = defaultCacheDir()
	}
	if c.Paths.CacheDir, err = expandPath(c.Paths.CacheDir); err != nil {
		return fmt.Errorf("paths.cache_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if len(c.Logging.ComponentOverrides) > 0 {
		normalized := make(map[string]string, len(c.Logging.ComponentOverrides))
		for component, level := range c.Logging.ComponentOverrides {
			component = strings.ToLower(strings.TrimSpace(component))
			if component == "" {
				continue
			}
			normalized[component] = strings.ToLower(strings.TrimSpace(level))
		}
		c.Logging.ComponentOverrides = normalized
	}
}

func (c *Config) normalizeCache() error {
	if value, ok := os.LookupEnv("SUBSEEK_CACHE_BACKEND"); ok && strings.TrimSpace(value) != "" {
		c.Cache.Backend = value
	}
	c.Cache.Backend = strings.ToLower(strings.TrimSpace(c.Cache.Backend))
	switch c.Cache.Backend {
	case "":
		c.Cache.Backend = defaultCacheBackend
	case "bbolt", "boltdb":
		c.Cache.Backend = CacheBackendBolt
	case "sqlite3":
		c.Cache.Backend = CacheBackendSQLite
	}
	var err error
	if c.Cache.Path, err = expandPath(strings.TrimSpace(c.Cache.Path)); err != nil {
		return fmt.Errorf("cache.path: %w", err)
	}
	return nil
}

func (c *Config) normalizeDownload() error {
	c.Download.Languages = normalizeList(c.Download.Languages, true)
	if len(c.Download.Languages) == 0 {
		c.Download.Languages = []string{"en"}
	}
	c.Download.HearingImpaired = normalizePreference(c.Download.HearingImpaired)
	c.Download.ForeignOnly = normalizePreference(c.Download.ForeignOnly)
	c.Download.Age = strings.TrimSpace(c.Download.Age)
	c.Download.Encoding = strings.ToLower(strings.TrimSpace(c.Download.Encoding))
	c.Download.LanguageFormat = strings.ToLower(strings.TrimSpace(c.Download.LanguageFormat))
	if c.Download.LanguageFormat == "" {
		c.Download.LanguageFormat = defaultLanguageFormat
	}
	c.Download.IgnoreSubtitles = normalizeList(c.Download.IgnoreSubtitles, false)
	if strings.TrimSpace(c.Download.Directory) != "" {
		dir, err := expandPath(strings.TrimSpace(c.Download.Directory))
		if err != nil {
			return fmt.Errorf("download.directory: %w", err)
		}
		c.Download.Directory = dir
	}
	return nil
}

func (c *Config) normalizePool() {
	if c.Pool.TimeoutSeconds == 0 {
		c.Pool.TimeoutSeconds = defaultPoolTimeout
	}
	if c.Pool.MaxWorkers == 0 {
		c.Pool.MaxWorkers = defaultPoolMaxWorkers
	}
}

func (c *Config) normalizeProviders() error {
	c.Providers.Enabled = normalizeList(c.Providers.Enabled, true)

	osub := &c.Providers.OpenSubtitles
	osub.APIKey = envFallback(osub.APIKey, "OPENSUBTITLES_API_KEY")
	osub.Username = envFallback(osub.Username, "OPENSUBTITLES_USERNAME")
	osub.Password = envFallback(osub.Password, "OPENSUBTITLES_PASSWORD")
	osub.UserToken = envFallback(osub.UserToken, "OPENSUBTITLES_USER_TOKEN")
	osub.UserAgent = strings.TrimSpace(osub.UserAgent)
	if osub.UserAgent == "" {
		osub.UserAgent = defaultUserAgent
	}
	osub.BaseURL = strings.TrimSpace(osub.BaseURL)

	napi := &c.Providers.NapiProjekt
	napi.Username = strings.TrimSpace(napi.Username)
	napi.Password = strings.TrimSpace(napi.Password)
	napi.BaseURL = strings.TrimSpace(napi.BaseURL)

	if root := strings.TrimSpace(c.Providers.LocalDir.Root); root != "" {
		expanded, err := expandPath(root)
		if err != nil {
			return fmt.Errorf("providers.localdir.root: %w", err)
		}
		c.Providers.LocalDir.Root = expanded
	}
	return nil
}

func (c *Config) normalizeRefiners() {
	c.Refiners.Enabled = normalizeList(c.Refiners.Enabled, true)
	c.Refiners.FFprobeBinary = strings.TrimSpace(c.Refiners.FFprobeBinary)
	if c.Refiners.FFprobeBinary == "" {
		c.Refiners.FFprobeBinary = defaultFFprobeBinary
	}
	if c.Refiners.HashMinSizeMB < 0 {
		c.Refiners.HashMinSizeMB = 0
	}
}

// envFallback returns the trimmed value, or the named environment variable
// when the value is empty.
func envFallback(value, env string) string {
	value = strings.TrimSpace(value)
	if value != "" {
		return value
	}
	if fromEnv, ok := os.LookupEnv(env); ok {
		return strings.TrimSpace(fromEnv)
	}
	return ""
}

func normalizePreference(value string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return defaultPreferenceValue
	}
	return value
}

func normalizeList(values []string, lower bool) []string {
	if len(values) == 0 {
		return nil
	}
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, value := range values {
		value = strings.TrimSpace(value)
		if lower {
			value = strings.ToLower(value)
		}
		if value == "" {
			continue
		}
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		out = append(out, value)
	}
	return out
}
