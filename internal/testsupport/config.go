package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"subseek/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// The cache backend defaults to memory so tests never touch a shared database.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.CacheDir = filepath.Join(base, "cache")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Cache.Backend = config.CacheBackendMemory
	cfgVal.Pool.TimeoutSeconds = 5
	cfgVal.Providers.OpenSubtitles.DownloadCache = false

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithProviders replaces the enabled provider list.
func WithProviders(names ...string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Providers.Enabled = append([]string(nil), names...)
	}
}

// WithLanguages replaces the requested download languages.
func WithLanguages(codes ...string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Download.Languages = append([]string(nil), codes...)
	}
}

// WithCacheBackend switches the cache backend; file backends live under the
// temp cache dir.
func WithCacheBackend(backend string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Cache.Backend = backend
	}
}

// WithRefiners replaces the enabled refiner list.
func WithRefiners(names ...string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Refiners.Enabled = append([]string(nil), names...)
	}
}

// WithStubbedBinaries writes stub executables that print script to stdout and
// prepends their directory to PATH. Names default to ffprobe.
func WithStubbedBinaries(script string, names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			names = []string{"ffprobe"}
		}
		binDir := filepath.Join(b.baseDir, "bin")
		if err := os.MkdirAll(binDir, 0o755); err != nil {
			b.t.Fatalf("mkdir bin dir: %v", err)
		}
		body := []byte("#!/bin/sh\ncat <<'JSON'\n" + script + "\nJSON\n")
		for _, name := range names {
			target := filepath.Join(binDir, name)
			if err := os.WriteFile(target, body, 0o755); err != nil {
				b.t.Fatalf("write stub %s: %v", name, err)
			}
		}

		oldPath := os.Getenv("PATH")
		if err := os.Setenv("PATH", binDir+string(os.PathListSeparator)+oldPath); err != nil {
			b.t.Fatalf("set PATH: %v", err)
		}
		b.t.Cleanup(func() {
			_ = os.Setenv("PATH", oldPath)
		})
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.CacheDir)
}
