package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	CacheDir string `toml:"cache_dir"`
	LogDir   string `toml:"log_dir"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format             string            `toml:"format"`
	Level              string            `toml:"level"`
	ComponentOverrides map[string]string `toml:"component_overrides"`
}

// Cache selects the persistent store used for provider and refiner results.
type Cache struct {
	// Backend is one of memory, sqlite or bolt.
	Backend string `toml:"backend"`
	// Path is the database file; empty derives it from paths.cache_dir.
	Path string `toml:"path"`
}

// Download contains the selection and saving preferences.
type Download struct {
	Languages []string `toml:"languages"`
	MinScore  int      `toml:"min_score"`
	// HearingImpaired and ForeignOnly are prefer, avoid or neutral.
	HearingImpaired    string   `toml:"hearing_impaired"`
	ForeignOnly        string   `toml:"foreign_only"`
	Single             bool     `toml:"single"`
	Force              bool     `toml:"force"`
	SkipWrongFPS       bool     `toml:"skip_wrong_fps"`
	Age                string   `toml:"age"`
	Directory          string   `toml:"directory"`
	Encoding           string   `toml:"encoding"`
	LanguageTypeSuffix bool     `toml:"language_type_suffix"`
	LanguageFormat     string   `toml:"language_format"`
	IgnoreSubtitles    []string `toml:"ignore_subtitles"`
	Undefined          bool     `toml:"undefined"`
	// RemoveAds strips advertisement cues from SRT files before saving.
	RemoveAds bool `toml:"remove_ads"`
}

// Pool contains provider fan-out settings.
type Pool struct {
	TimeoutSeconds  int `toml:"timeout_seconds"`
	MaxWorkers      int `toml:"max_workers"`
	CooldownMinutes int `toml:"cooldown_minutes"`
}

// OpenSubtitles configures the opensubtitles.com REST provider.
type OpenSubtitles struct {
	APIKey    string `toml:"api_key"`
	Username  string `toml:"username"`
	Password  string `toml:"password"`
	UserToken string `toml:"user_token"`
	UserAgent string `toml:"user_agent"`
	BaseURL   string `toml:"base_url"`
	// DownloadCache keeps fetched payloads under <cache_dir>/opensubtitles so
	// repeat runs do not spend download quota.
	DownloadCache bool `toml:"download_cache"`
}

// NapiProjekt configures the napiprojekt.pl provider.
type NapiProjekt struct {
	Username string `toml:"username"`
	Password string `toml:"password"`
	BaseURL  string `toml:"base_url"`
}

// LocalDir configures the local subtitle archive provider.
type LocalDir struct {
	Root string `toml:"root"`
}

// Providers lists enabled providers in priority order plus per-provider settings.
type Providers struct {
	Enabled       []string      `toml:"enabled"`
	OpenSubtitles OpenSubtitles `toml:"opensubtitles"`
	NapiProjekt   NapiProjekt   `toml:"napiprojekt"`
	LocalDir      LocalDir      `toml:"localdir"`
}

// Refiners controls the video enrichment steps run before listing.
type Refiners struct {
	Enabled       []string `toml:"enabled"`
	FFprobeBinary string   `toml:"ffprobe_binary"`
	HashMinSizeMB int      `toml:"hash_min_size_mb"`
}

// Config encapsulates all configuration values for subseek.
//
// Configuration sections:
//   - Paths: cache and log directories
//   - Logging: log format, level, and per-component overrides
//   - Cache: persistent cache backend
//   - Download: languages, thresholds, and saving preferences
//   - Pool: provider timeouts, concurrency, and cooldowns
//   - Providers: enabled providers and their credentials
//   - Refiners: hash and media enrichment
type Config struct {
	Paths     Paths     `toml:"paths"`
	Logging   Logging   `toml:"logging"`
	Cache     Cache     `toml:"cache"`
	Download  Download  `toml:"download"`
	Pool      Pool      `toml:"pool"`
	Providers Providers `toml:"providers"`
	Refiners  Refiners  `toml:"refiners"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/subseek/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("subseek.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the cache and log directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.CacheDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// CachePath returns the database path for the configured cache backend.
func (c *Config) CachePath() string {
	if c.Cache.Path != "" {
		return c.Cache.Path
	}
	switch c.Cache.Backend {
	case CacheBackendBolt:
		return filepath.Join(c.Paths.CacheDir, "cache.bolt")
	case CacheBackendSQLite:
		return filepath.Join(c.Paths.CacheDir, "cache.db")
	default:
		return ""
	}
}

// OpenSubtitlesCacheDir is where downloaded opensubtitles payloads are kept.
func (c *Config) OpenSubtitlesCacheDir() string {
	return filepath.Join(c.Paths.CacheDir, "opensubtitles")
}

// PoolTimeout returns the per-provider call timeout.
func (c *Config) PoolTimeout() time.Duration {
	return time.Duration(c.Pool.TimeoutSeconds) * time.Second
}

// Cooldown returns how long a provider stays unavailable after an
// authentication, quota or outage failure.
func (c *Config) Cooldown() time.Duration {
	return time.Duration(c.Pool.CooldownMinutes) * time.Minute
}

// MaxAge parses download.age. Zero means no age limit.
func (c *Config) MaxAge() (time.Duration, error) {
	return ParseAge(c.Download.Age)
}

// ParseAge accepts Go durations plus d (day) and w (week) units, e.g. "2w",
// "10d", "36h". Units may be combined: "1w3d12h".
func ParseAge(value string) (time.Duration, error) {
	value = strings.TrimSpace(strings.ToLower(value))
	if value == "" || value == "0" {
		return 0, nil
	}
	var total time.Duration
	rest := value
	for rest != "" {
		i := 0
		for i < len(rest) && (rest[i] >= '0' && rest[i] <= '9') {
			i++
		}
		if i == 0 || i == len(rest) {
			return 0, fmt.Errorf("invalid age %q", value)
		}
		var n int64
		for _, ch := range rest[:i] {
			n = n*10 + int64(ch-'0')
		}
		unit := rest[i]
		switch unit {
		case 'w':
			total += time.Duration(n) * 7 * 24 * time.Hour
		case 'd':
			total += time.Duration(n) * 24 * time.Hour
		case 'h':
			total += time.Duration(n) * time.Hour
		case 'm':
			total += time.Duration(n) * time.Minute
		case 's':
			total += time.Duration(n) * time.Second
		default:
			return 0, fmt.Errorf("invalid age unit %q in %q", string(unit), value)
		}
		rest = rest[i+1:]
	}
	return total, nil
}

// FFprobeBinary returns the ffprobe executable used by the media refiner.
func (c *Config) FFprobeBinary() string {
	if bin := strings.TrimSpace(c.Refiners.FFprobeBinary); bin != "" {
		return bin
	}
	return defaultFFprobeBinary
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

func defaultCacheDir() string {
	if base, ok := os.LookupEnv("XDG_CACHE_HOME"); ok && strings.TrimSpace(base) != "" {
		return filepath.Join(base, "subseek")
	}
	return "~/.cache/subseek"
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
