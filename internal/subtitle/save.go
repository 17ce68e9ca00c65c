package subtitle

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sys/unix"

	"subseek/internal/fileutil"
	"subseek/internal/language"
	"subseek/internal/logging"
	"subseek/internal/services"
	"subseek/internal/video"
)

// SaveOptions controls where and how subtitles are written.
type SaveOptions struct {
	// Single writes one subtitle named after the video with no language
	// suffix.
	Single bool
	// Directory overrides the video's directory.
	Directory string
	// Encoding re-encodes the text before writing; empty keeps the original
	// bytes.
	Encoding string
	// LanguageTypeSuffix adds .[hi] or .[fo] before the language code.
	LanguageTypeSuffix bool
	// LanguageFormat is alpha2, alpha3 or ietf.
	LanguageFormat string
	// RemoveAds strips advertisement cues from SRT subtitles.
	RemoveAds bool
	Logger    *slog.Logger
}

// Suffix builds the ".[hi].pt-BR" style part placed between the video root
// and the extension. Undefined languages contribute no language part.
func Suffix(lang language.Language, langType LanguageType, format string, typeSuffix bool) string {
	var b strings.Builder
	if typeSuffix {
		switch langType {
		case HearingImpaired:
			b.WriteString(".[hi]")
		case ForeignOnly:
			b.WriteString(".[fo]")
		}
	}
	if !lang.IsUndefined() {
		b.WriteString(".")
		b.WriteString(lang.Format(format))
	}
	return b.String()
}

// Path returns the file s would be saved to for v.
func Path(v *video.Video, s *Subtitle, opts SaveOptions) string {
	suffix := ""
	if !opts.Single {
		suffix = Suffix(s.Language, s.LanguageType, opts.LanguageFormat, opts.LanguageTypeSuffix)
	}
	name := v.Name()
	root := strings.TrimSuffix(name, filepath.Ext(name))
	path := root + suffix + Extension(s.Format)
	if opts.Directory != "" {
		path = filepath.Join(opts.Directory, filepath.Base(path))
	}
	return path
}

// Save writes subtitles in order, at most one per language and only one in
// single mode. Subtitles without content are skipped. It returns the
// subtitles actually written.
func Save(v *video.Video, subtitles []*Subtitle, opts SaveOptions) ([]*Subtitle, error) {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}

	var saved []*Subtitle
	written := language.NewSet()
	for _, s := range subtitles {
		if !s.HasContent() {
			logger.Warn("skipping subtitle without content",
				logging.String("subtitle", s.Key()),
			)
			continue
		}
		if written.Has(s.Language) {
			logger.Debug("subtitle save decision",
				logging.String(logging.FieldDecisionType, "subtitle_save"),
				logging.String("decision_result", "skipped"),
				logging.String("decision_reason", "language_already_saved"),
				logging.String("subtitle", s.Key()),
			)
			continue
		}

		path := Path(v, s, opts)
		if err := checkWritable(filepath.Dir(path)); err != nil {
			return saved, err
		}
		data, err := payload(s, opts, logger)
		if err != nil {
			return saved, services.Wrap(services.ErrValidation, "subtitle", "save", s.Key(), err)
		}
		if err := fileutil.WriteFileAtomic(path, data, 0o644); err != nil {
			return saved, services.Wrap(services.ErrTransient, "subtitle", "save", path, err)
		}
		logger.Info("subtitle saved",
			logging.String("subtitle", s.Key()),
			logging.String("language", s.Language.String()),
			logging.String("encoding", s.Encoding),
			logging.String("path", path),
		)

		saved = append(saved, s)
		written.Add(s.Language)
		if opts.Single {
			break
		}
	}
	return saved, nil
}

func payload(s *Subtitle, opts SaveOptions, logger *slog.Logger) ([]byte, error) {
	if opts.Encoding != "" {
		want, ok := CanonicalEncoding(opts.Encoding)
		if !ok {
			return nil, fmt.Errorf("unsupported encoding %q", opts.Encoding)
		}
		if have, _ := CanonicalEncoding(s.Encoding); have != want {
			if err := s.Reencode(want); err != nil {
				return nil, err
			}
		}
	}
	if !opts.RemoveAds || s.Format != FormatSRT {
		return s.Content(), nil
	}
	cleaned, stats := CleanSRT(s.Text())
	if stats.RemovedCues == 0 {
		return s.Content(), nil
	}
	logger.Info("removed advertisement cues",
		logging.String("subtitle", s.Key()),
		logging.Int("removed_cues", stats.RemovedCues),
	)
	return Encode(cleaned, s.Encoding)
}

func checkWritable(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return services.Wrap(services.ErrConfiguration, "subtitle", "save", "output directory", err)
	}
	if !info.IsDir() {
		return services.Wrap(services.ErrConfiguration, "subtitle", "save", dir+" is not a directory", nil)
	}
	if err := unix.Access(dir, unix.W_OK|unix.X_OK); err != nil {
		return services.Wrap(services.ErrConfiguration, "subtitle", "save", dir+" is not writable", err)
	}
	return nil
}
