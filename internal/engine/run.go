package engine

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/google/uuid"

	"subseek/internal/language"
	"subseek/internal/logging"
	"subseek/internal/pool"
	"subseek/internal/selection"
	"subseek/internal/services"
	"subseek/internal/subtitle"
	"subseek/internal/video"
)

// ListCandidates queries every provider for v in langs (the configured
// languages when nil) and ranks all results, including languages v already
// has and scores under the download threshold.
func (e *Engine) ListCandidates(ctx context.Context, v *video.Video, langs language.Set) ([]selection.Candidate, *pool.Results, error) {
	if langs == nil {
		langs = e.selection.Languages
	}
	listed, err := e.pool.ListSubtitles(ctx, v, langs)
	if err != nil {
		return nil, nil, err
	}
	opts := e.selection
	opts.Languages = langs
	opts.Force = true
	opts.MinScore = 0
	return selection.Rank(v, listed.All(), opts), listed, nil
}

// DownloadBest lists the languages v still needs and downloads the best
// valid subtitle for each. Content is not saved.
func (e *Engine) DownloadBest(ctx context.Context, v *video.Video) (*selection.Result, error) {
	wanted := e.selection.Wanted(v)
	if wanted.Len() == 0 {
		return &selection.Result{}, nil
	}
	listed, err := e.pool.ListSubtitles(ctx, v, wanted)
	if err != nil {
		return nil, err
	}
	if listed.Failed() {
		logging.WarnWithContext(logging.WithContext(ctx, e.logger), "every provider failed", "providers_failed",
			logging.Int("providers", len(listed.Providers)),
			logging.String(logging.FieldImpact, "no subtitles can be found for this video"),
			logging.String(logging.FieldErrorHint, "check network access and provider credentials"),
		)
	}
	return selection.DownloadBest(ctx, e.pool, v, listed.All(), e.selection)
}

// Save writes downloaded subtitles next to v, or to the configured
// directory.
func (e *Engine) Save(v *video.Video, subs []*subtitle.Subtitle) ([]SavedSubtitle, error) {
	written, err := subtitle.Save(v, subs, e.save)
	saved := make([]SavedSubtitle, 0, len(written))
	for _, s := range written {
		saved = append(saved, SavedSubtitle{
			Key:      s.Key(),
			Language: s.Language,
			Path:     subtitle.Path(v, s, e.save),
			Score:    s.Score(v),
		})
	}
	return saved, err
}

// Process scans paths, then downloads and saves subtitles for every video
// that needs them. Per-video failures are recorded in the report; only
// cancellation stops the run early.
func (e *Engine) Process(ctx context.Context, paths []string) (*Report, error) {
	report := &Report{RequestID: uuid.NewString(), Started: time.Now()}
	ctx = services.WithRequestID(ctx, report.RequestID)
	logger := logging.WithContext(ctx, e.logger)
	logger.Info("download run started",
		logging.String(logging.FieldEventType, "run_start"),
		logging.Int("paths", len(paths)),
		logging.String("languages", e.selection.Languages.String()),
	)

	for _, path := range paths {
		targets, err := e.expand(path)
		if err != nil {
			report.add(Entry{Video: path, Status: StatusFailed, Err: err})
			continue
		}
		for _, target := range targets {
			if err := ctx.Err(); err != nil {
				return report.finish(), err
			}
			entry, err := e.processOne(ctx, target)
			report.add(entry)
			if err != nil {
				return report.finish(), err
			}
		}
	}

	report.finish()
	counts := report.Counts()
	logger.Info("download run finished",
		logging.String(logging.FieldEventType, "run_complete"),
		logging.Int("downloaded", counts[StatusDownloaded]),
		logging.Int("not_found", counts[StatusNotFound]),
		logging.Int("skipped", counts[StatusSkipped]),
		logging.Int("failed", counts[StatusFailed]),
		logging.Duration("elapsed", report.Elapsed()),
	)
	return report, nil
}

func (e *Engine) expand(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return []string{path}, nil
	}
	return video.CollectPaths(path, e.maxAge, e.logger)
}

// processOne returns an error only when ctx is done.
func (e *Engine) processOne(ctx context.Context, path string) (Entry, error) {
	entry := Entry{Video: path}
	v, err := e.ScanVideo(ctx, path)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return entry, ctxErr
		}
		entry.Status, entry.Err = StatusFailed, err
		return entry, nil
	}
	ctx = services.WithVideo(ctx, v.Name())

	checkLangs := e.selection.Languages
	if e.selection.Force {
		checkLangs = nil
	}
	if !video.Check(v, checkLangs, e.maxAge, e.cfg.Download.Undefined) {
		entry.Status, entry.Reason = StatusSkipped, skipReason(v, checkLangs, e.maxAge)
		logging.WithContext(ctx, e.logger).Debug("video skipped",
			logging.Args(logging.DecisionAttrs("video_check", "skipped", entry.Reason)...)...,
		)
		return entry, nil
	}

	res, err := e.DownloadBest(ctx, v)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return entry, err
		}
		entry.Status, entry.Err = StatusFailed, err
		return entry, nil
	}
	entry.Attempts = len(res.Attempts)
	entry.Missing = res.Missing
	if !res.Found() {
		entry.Status, entry.Reason = StatusNotFound, "no valid subtitle"
		return entry, nil
	}

	saved, err := e.Save(v, res.Subtitles)
	entry.Saved = saved
	switch {
	case err != nil:
		entry.Status, entry.Err = StatusFailed, err
	case len(saved) == 0:
		entry.Status, entry.Reason = StatusNotFound, "nothing saved"
	default:
		entry.Status = StatusDownloaded
	}
	return entry, nil
}

func skipReason(v *video.Video, langs language.Set, maxAge time.Duration) string {
	switch {
	case langs.Len() > 0 && langs.Difference(v.SubtitleLanguages).Len() == 0:
		return "languages already present"
	case maxAge > 0 && v.Age() > maxAge:
		return "older than the age limit"
	default:
		return "undetermined subtitle present"
	}
}
