package selection

import (
	"fmt"
	"log/slog"

	"subseek/internal/config"
	"subseek/internal/language"
	"subseek/internal/video"
)

// Options holds the download preferences applied to ranked candidates.
type Options struct {
	Languages       language.Set
	MinScore        int
	HearingImpaired Preference
	ForeignOnly     Preference
	// Force downloads languages the video already has.
	Force bool
	// Single stops after the first downloaded subtitle, whatever its
	// language.
	Single       bool
	SkipWrongFPS bool
	// Ignore lists subtitle ids or provider:id keys never to download.
	Ignore []string
	Logger *slog.Logger
}

// FromConfig builds Options from the [download] section.
func FromConfig(cfg config.Download) (Options, error) {
	langs, err := language.ParseSet(cfg.Languages...)
	if err != nil {
		return Options{}, fmt.Errorf("download languages: %w", err)
	}
	hi, err := ParsePreference(cfg.HearingImpaired)
	if err != nil {
		return Options{}, fmt.Errorf("hearing_impaired: %w", err)
	}
	fo, err := ParsePreference(cfg.ForeignOnly)
	if err != nil {
		return Options{}, fmt.Errorf("foreign_only: %w", err)
	}
	return Options{
		Languages:       langs,
		MinScore:        cfg.MinScore,
		HearingImpaired: hi,
		ForeignOnly:     fo,
		Force:           cfg.Force,
		Single:          cfg.Single,
		SkipWrongFPS:    cfg.SkipWrongFPS,
		Ignore:          cfg.IgnoreSubtitles,
	}, nil
}

// Wanted returns the requested languages v still needs.
func (o Options) Wanted(v *video.Video) language.Set {
	if o.Force {
		return o.Languages.Clone()
	}
	return o.Languages.Difference(v.SubtitleLanguages)
}

func (o Options) wants(v *video.Video, lang language.Language) bool {
	if !o.Languages.Has(lang) {
		return false
	}
	return o.Force || !v.SubtitleLanguages.Has(lang)
}
