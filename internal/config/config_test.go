package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"subseek/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("XDG_CACHE_HOME", "")
	t.Setenv("OPENSUBTITLES_API_KEY", "env-key")
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	if want := filepath.Join(tempHome, ".cache", "subseek"); cfg.Paths.CacheDir != want {
		t.Fatalf("unexpected cache dir: got %q want %q", cfg.Paths.CacheDir, want)
	}
	if want := filepath.Join(tempHome, ".local", "share", "subseek", "logs"); cfg.Paths.LogDir != want {
		t.Fatalf("unexpected log dir: got %q want %q", cfg.Paths.LogDir, want)
	}
	if cfg.Providers.OpenSubtitles.APIKey != "env-key" {
		t.Fatalf("expected api key from env, got %q", cfg.Providers.OpenSubtitles.APIKey)
	}
	if cfg.Cache.Backend != config.CacheBackendSQLite {
		t.Fatalf("unexpected cache backend %q", cfg.Cache.Backend)
	}
	if got := cfg.CachePath(); got != filepath.Join(cfg.Paths.CacheDir, "cache.db") {
		t.Fatalf("unexpected cache path %q", got)
	}
	if cfg.PoolTimeout() != 20*time.Second {
		t.Fatalf("unexpected pool timeout %s", cfg.PoolTimeout())
	}
	if len(cfg.Download.Languages) != 1 || cfg.Download.Languages[0] != "en" {
		t.Fatalf("unexpected default languages %v", cfg.Download.Languages)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.Paths.CacheDir, cfg.Paths.LogDir} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("expected directory %q to exist: %v", dir, err)
		}
		if !info.IsDir() {
			t.Fatalf("expected %q to be directory", dir)
		}
	}
}

func TestLoadCustomPath(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "subseek.toml")

	type payload struct {
		Download struct {
			Languages       []string `toml:"languages"`
			MinScore        int      `toml:"min_score"`
			HearingImpaired string   `toml:"hearing_impaired"`
		} `toml:"download"`
		Cache struct {
			Backend string `toml:"backend"`
		} `toml:"cache"`
		Providers struct {
			Enabled []string `toml:"enabled"`
		} `toml:"providers"`
	}
	custom := payload{}
	custom.Download.Languages = []string{"FR", "pt-BR", "fr"}
	custom.Download.MinScore = 300
	custom.Download.HearingImpaired = "Prefer"
	custom.Cache.Backend = "bbolt"
	custom.Providers.Enabled = []string{"napiprojekt"}
	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal custom config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write custom config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected exists to be true")
	}
	if resolved != configPath {
		t.Fatalf("unexpected resolved path: got %q want %q", resolved, configPath)
	}
	if strings.Join(cfg.Download.Languages, ",") != "fr,pt-br" {
		t.Fatalf("unexpected languages %v", cfg.Download.Languages)
	}
	if cfg.Download.MinScore != 300 {
		t.Fatalf("expected min score 300, got %d", cfg.Download.MinScore)
	}
	if cfg.Download.HearingImpaired != config.PreferencePrefer {
		t.Fatalf("expected prefer, got %q", cfg.Download.HearingImpaired)
	}
	if cfg.Cache.Backend != config.CacheBackendBolt {
		t.Fatalf("expected bolt backend, got %q", cfg.Cache.Backend)
	}
	if cfg.Download.ForeignOnly != config.PreferenceNeutral {
		t.Fatalf("expected untouched default for foreign_only, got %q", cfg.Download.ForeignOnly)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "subseek.toml")
	if err := os.WriteFile(configPath, []byte("[download]\nlanguage = [\"en\"]\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, _, _, err := config.Load(configPath); err == nil {
		t.Fatal("expected error for unknown key")
	}
}

func TestEnvFallbackDoesNotOverrideFile(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "subseek.toml")
	contents := "[providers.opensubtitles]\napi_key = \"file-key\"\n"
	if err := os.WriteFile(configPath, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("OPENSUBTITLES_API_KEY", "env-key")
	t.Setenv("OPENSUBTITLES_USERNAME", "env-user")
	t.Setenv("SUBSEEK_CACHE_BACKEND", "memory")

	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Providers.OpenSubtitles.APIKey != "file-key" {
		t.Errorf("expected file api key, got %q", cfg.Providers.OpenSubtitles.APIKey)
	}
	if cfg.Providers.OpenSubtitles.Username != "env-user" {
		t.Errorf("expected env username, got %q", cfg.Providers.OpenSubtitles.Username)
	}
	if cfg.Cache.Backend != config.CacheBackendMemory {
		t.Errorf("expected env cache backend, got %q", cfg.Cache.Backend)
	}
	if cfg.CachePath() != "" {
		t.Errorf("expected no cache path for memory backend, got %q", cfg.CachePath())
	}
}

func TestCreateSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(contents), "[providers.opensubtitles]") {
		t.Fatalf("sample config missing opensubtitles section: %s", contents)
	}

	var cfg config.Config
	if err := toml.Unmarshal(contents, &cfg); err != nil {
		t.Fatalf("unmarshal sample: %v", err)
	}
	if !strings.Contains(cfg.Paths.CacheDir, "subseek") {
		t.Fatalf("expected cache dir to contain subseek, got %q", cfg.Paths.CacheDir)
	}

	loaded, _, _, err := config.Load(path)
	if err != nil {
		t.Fatalf("sample config does not load: %v", err)
	}
	if loaded.Refiners.HashMinSizeMB != 10 {
		t.Fatalf("unexpected hash_min_size_mb %d", loaded.Refiners.HashMinSizeMB)
	}
}

func TestValidateDetectsInvalidValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"negative min score", func(c *config.Config) { c.Download.MinScore = -1 }},
		{"bad preference", func(c *config.Config) { c.Download.HearingImpaired = "always" }},
		{"bad language", func(c *config.Config) { c.Download.Languages = []string{"not a language"} }},
		{"bad language format", func(c *config.Config) { c.Download.LanguageFormat = "name" }},
		{"bad age", func(c *config.Config) { c.Download.Age = "2 fortnights" }},
		{"zero workers", func(c *config.Config) { c.Pool.MaxWorkers = 0 }},
		{"zero timeout", func(c *config.Config) { c.Pool.TimeoutSeconds = 0 }},
		{"negative cooldown", func(c *config.Config) { c.Pool.CooldownMinutes = -5 }},
		{"no providers", func(c *config.Config) { c.Providers.Enabled = nil }},
		{"unknown provider", func(c *config.Config) { c.Providers.Enabled = []string{"addic7ed"} }},
		{"localdir without root", func(c *config.Config) { c.Providers.Enabled = []string{"localdir"} }},
		{"unknown refiner", func(c *config.Config) { c.Refiners.Enabled = []string{"omdb"} }},
		{"unknown backend", func(c *config.Config) { c.Cache.Backend = "redis" }},
		{"bad override level", func(c *config.Config) {
			c.Logging.ComponentOverrides = map[string]string{"pool": "trace"}
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}

	cfg := config.Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestParseAge(t *testing.T) {
	cases := map[string]time.Duration{
		"":        0,
		"2w":      14 * 24 * time.Hour,
		"10d":     240 * time.Hour,
		"36h":     36 * time.Hour,
		"1w3d12h": (7+3)*24*time.Hour + 12*time.Hour,
	}
	for input, want := range cases {
		got, err := config.ParseAge(input)
		if err != nil {
			t.Fatalf("ParseAge(%q) error: %v", input, err)
		}
		if got != want {
			t.Fatalf("ParseAge(%q) = %s, want %s", input, got, want)
		}
	}
	for _, bad := range []string{"w", "12", "3y"} {
		if _, err := config.ParseAge(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}
