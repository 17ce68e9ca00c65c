// Package refine enriches videos in place before providers are queried.
//
// Refiners only add attributes. A refiner that fails leaves the video as it
// found it; Apply logs the failure and moves on, except for fingerprint I/O
// errors which are returned to the caller.
package refine

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"subseek/internal/logging"
	"subseek/internal/video"
)

// ErrFingerprint marks an I/O failure while hashing a video file.
var ErrFingerprint = errors.New("fingerprint failed")

// Refiner adds attributes to a video.
type Refiner interface {
	Name() string
	Refine(ctx context.Context, v *video.Video) error
}

// Apply runs refiners in order. Failures are logged and skipped; the
// fingerprint failures among them are joined and returned once every
// refiner has run.
func Apply(ctx context.Context, v *video.Video, refiners []Refiner, logger *slog.Logger) error {
	logger = logging.NewComponentLogger(logger, "refine")
	var fatal []error
	for _, r := range refiners {
		if err := ctx.Err(); err != nil {
			return err
		}
		start := time.Now()
		err := r.Refine(ctx, v)
		if err == nil {
			logger.Debug("video refined",
				logging.String("refiner", r.Name()),
				logging.String("video", v.Name()),
				logging.Duration("elapsed", time.Since(start)),
			)
			continue
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		if errors.Is(err, ErrFingerprint) {
			fatal = append(fatal, err)
		}
		logging.WarnWithContext(logger, "refiner failed", "refiner_failed",
			logging.String("refiner", r.Name()),
			logging.String("video", v.Name()),
			logging.Error(err),
			logging.String(logging.FieldImpact, "video attributes left as guessed from the name"),
			logging.String(logging.FieldErrorHint, hintFor(r.Name())),
		)
	}
	return errors.Join(fatal...)
}

func hintFor(name string) string {
	switch name {
	case MediaName:
		return "check that ffprobe is installed or set refiners.ffprobe_binary"
	case HashName:
		return "check that the video file is readable"
	default:
		return "rerun with --log-level debug for details"
	}
}
