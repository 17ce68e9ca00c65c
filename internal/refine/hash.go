package refine

import (
	"context"
	"fmt"
	"log/slog"

	"subseek/internal/fingerprint"
	"subseek/internal/logging"
	"subseek/internal/provider"
	"subseek/internal/video"
)

// HashName identifies the hash refiner in configuration.
const HashName = "hash"

// DefaultHashMinSize skips small files, which are usually samples.
const DefaultHashMinSize = 10 * 1024 * 1024

// Hash computes the fingerprints the given providers search with.
type Hash struct {
	Providers []provider.Provider
	// MinSize is the smallest file hashed; zero uses DefaultHashMinSize.
	MinSize int64
	Logger  *slog.Logger
}

func (h *Hash) Name() string { return HashName }

// Refine records one fingerprint per algorithm in use. Missing or small
// files are left alone.
func (h *Hash) Refine(_ context.Context, v *video.Video) error {
	minSize := h.MinSize
	if minSize <= 0 {
		minSize = DefaultHashMinSize
	}
	if !v.Exists() {
		return nil
	}
	if v.Size > 0 && v.Size <= minSize {
		h.logger().Debug("video too small to hash",
			logging.String("video", v.Name()),
			logging.Int64("size", v.Size),
		)
		return nil
	}

	computed := make(map[string]string)
	for _, p := range h.Providers {
		alg, fn := hasherFor(p)
		if fn == nil {
			continue
		}
		if _, done := computed[alg]; done {
			continue
		}
		if _, ok := v.Hash(alg); ok {
			continue
		}
		value, ok, err := fn(v.Name())
		if err != nil {
			return fmt.Errorf("%w: %s for %s: %w", ErrFingerprint, alg, p.Name(), err)
		}
		if !ok {
			continue
		}
		computed[alg] = value
	}
	for alg, value := range computed {
		if err := v.SetHash(alg, value); err != nil {
			return err
		}
	}
	return nil
}

func (h *Hash) logger() *slog.Logger {
	return logging.NewComponentLogger(h.Logger, "refine")
}

func hasherFor(p provider.Provider) (string, fingerprint.Func) {
	if hp, ok := p.(provider.Hasher); ok {
		return hp.HashAlgorithm(), hp.HashVideo
	}
	alg := p.Capabilities().RequiredHash
	if alg == "" {
		return "", nil
	}
	fn, ok := fingerprint.ByName(alg)
	if !ok {
		return "", nil
	}
	return alg, fn
}
