package selection

import (
	"context"
	"errors"

	"subseek/internal/language"
	"subseek/internal/logging"
	"subseek/internal/subtitle"
	"subseek/internal/video"
)

// Downloader fills a subtitle's content. *pool.Pool satisfies it.
type Downloader interface {
	DownloadSubtitle(ctx context.Context, s *subtitle.Subtitle) error
}

// Attempt records one candidate tried by DownloadBest.
type Attempt struct {
	Candidate Candidate
	// Err is nil for the accepted candidate.
	Err error
}

// Result is the outcome of DownloadBest for one video.
type Result struct {
	Subtitles []*subtitle.Subtitle
	Attempts  []Attempt
	// Missing lists wanted languages left without a valid subtitle.
	Missing []language.Language
}

// Found reports whether at least one subtitle was accepted.
func (r *Result) Found() bool { return len(r.Subtitles) > 0 }

// DownloadBest walks the ranked candidates, downloading at most one valid
// subtitle per wanted language. A candidate whose download fails or whose
// content does not validate is dropped and the next one in its language is
// tried. Only context errors are returned.
func DownloadBest(ctx context.Context, d Downloader, v *video.Video, subs []*subtitle.Subtitle, opts Options) (*Result, error) {
	logger := logging.NewComponentLogger(opts.Logger, "selection")
	wanted := opts.Wanted(v)
	res := &Result{}
	if wanted.Len() == 0 {
		logger.Debug("no language left to download",
			logging.Args(logging.DecisionAttrs("subtitle_selection", "skipped", "languages already present")...)...,
		)
		return res, nil
	}

	ranked := Rank(v, subs, opts)
	done := language.NewSet()
	for _, c := range ranked {
		if done.Len() == wanted.Len() || (opts.Single && done.Len() > 0) {
			break
		}
		lang := c.Subtitle.Language
		if done.Has(lang) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return res, err
		}

		err := fetch(ctx, d, c.Subtitle)
		res.Attempts = append(res.Attempts, Attempt{Candidate: c, Err: err})
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return res, ctxErr
			}
			logger.Info("subtitle candidate rejected",
				logging.String("subtitle", c.Subtitle.Key()),
				logging.String("language", lang.String()),
				logging.Int("score", c.Score),
				logging.Error(err),
				logging.Args(logging.DecisionAttrs("subtitle_selection", "rejected", reason(err))...),
			)
			continue
		}
		logger.Info("subtitle selected",
			logging.String("subtitle", c.Subtitle.Key()),
			logging.String("language", lang.String()),
			logging.Int("score", c.Score),
			logging.String("matches", c.Matches.String()),
			logging.Args(logging.DecisionAttrs("subtitle_selection", "selected", "best_valid_candidate")...),
		)
		res.Subtitles = append(res.Subtitles, c.Subtitle)
		done.Add(lang)
	}

	if !opts.Single || done.Len() == 0 {
		for _, lang := range wanted.Sorted() {
			if !done.Has(lang) {
				res.Missing = append(res.Missing, lang)
			}
		}
	}
	if len(res.Missing) > 0 {
		logger.Info("no valid subtitle found",
			logging.String("video", v.Name()),
			logging.String("languages", language.NewSet(res.Missing...).String()),
			logging.Int("candidates", len(ranked)),
		)
	}
	return res, nil
}

func fetch(ctx context.Context, d Downloader, s *subtitle.Subtitle) error {
	if !s.HasContent() {
		if err := d.DownloadSubtitle(ctx, s); err != nil {
			return err
		}
	}
	if err := s.Validate(); err != nil {
		s.SetContent(nil)
		return err
	}
	return nil
}

func reason(err error) string {
	if errors.Is(err, subtitle.ErrInvalid) {
		return "invalid_content"
	}
	return "download_failed"
}
