package video

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"subseek/internal/language"
	"subseek/internal/textutil"
)

// Kind distinguishes episodes from movies. It is fixed at construction.
type Kind int

const (
	Episode Kind = iota + 1
	Movie
)

func (k Kind) String() string {
	switch k {
	case Episode:
		return "episode"
	case Movie:
		return "movie"
	default:
		return "unknown"
	}
}

// ErrHashConflict is returned when a fingerprint is set twice with different values.
var ErrHashConflict = errors.New("fingerprint already set")

// Video is one media asset, existing on disk or hypothetical.
//
// Refiners add attributes in place before scoring; scoring and the provider
// pool only read it.
type Video struct {
	kind Kind
	name string

	Source           string
	ReleaseGroup     string
	StreamingService string
	Resolution       string
	VideoCodec       string
	AudioCodec       string
	FPS              float64
	// Duration is in seconds.
	Duration float64
	Size     int64

	Title   string
	Year    int
	Country string
	IMDbID  string
	TMDbID  int

	// Movie only.
	AlternativeTitles []string

	// Episode only.
	Series            string
	Season            int
	Episodes          []int
	AlternativeSeries []string
	OriginalSeries    bool
	TVDbID            int
	SeriesIMDbID      string
	SeriesTMDbID      int
	SeriesTVDbID      int

	SubtitleLanguages language.Set

	ModTime    time.Time
	ChangeTime time.Time
	// UseCtime makes Age use the later of ModTime and ChangeTime.
	UseCtime bool

	hashes map[string]string
}

// NewEpisode returns an episode named name.
func NewEpisode(name, series string, season int, episodes ...int) *Video {
	return &Video{
		kind:              Episode,
		name:              name,
		Series:            series,
		Season:            season,
		Episodes:          slices.Clone(episodes),
		OriginalSeries:    true,
		SubtitleLanguages: language.NewSet(),
	}
}

// NewMovie returns a movie named name.
func NewMovie(name, title string) *Video {
	return &Video{
		kind:              Movie,
		name:              name,
		Title:             title,
		SubtitleLanguages: language.NewSet(),
	}
}

// Kind reports whether v is an episode or a movie.
func (v *Video) Kind() Kind { return v.kind }

// Name returns the path or release name v was built from.
func (v *Video) Name() string { return v.name }

// Episode returns the lowest episode number, or 0 when none is known.
func (v *Video) Episode() int {
	if len(v.Episodes) == 0 {
		return 0
	}
	return slices.Min(v.Episodes)
}

// Hash returns the fingerprint computed with the named algorithm.
func (v *Video) Hash(algorithm string) (string, bool) {
	h, ok := v.hashes[algorithm]
	return h, ok && h != ""
}

// SetHash records a fingerprint. Setting the same value again is a no-op;
// a different value for an algorithm already set returns ErrHashConflict.
func (v *Video) SetHash(algorithm, value string) error {
	if value == "" {
		return nil
	}
	if existing, ok := v.hashes[algorithm]; ok {
		if existing == value {
			return nil
		}
		return fmt.Errorf("%w: %s", ErrHashConflict, algorithm)
	}
	if v.hashes == nil {
		v.hashes = make(map[string]string)
	}
	v.hashes[algorithm] = value
	return nil
}

// Hashes returns a copy of all recorded fingerprints.
func (v *Video) Hashes() map[string]string {
	out := make(map[string]string, len(v.hashes))
	for k, h := range v.hashes {
		out[k] = h
	}
	return out
}

// AddSubtitleLanguage records a language already available for v.
func (v *Video) AddSubtitleLanguage(lang language.Language) {
	if v.SubtitleLanguages == nil {
		v.SubtitleLanguages = language.NewSet()
	}
	v.SubtitleLanguages.Add(lang)
}

// Exists reports whether the video file is present on disk.
func (v *Video) Exists() bool {
	info, err := os.Stat(v.name)
	return err == nil && info.Mode().IsRegular()
}

// Age returns how long ago the file was last modified. Hypothetical videos
// have age zero.
func (v *Video) Age() time.Duration {
	return v.ageAt(time.Now())
}

func (v *Video) ageAt(now time.Time) time.Duration {
	ref := v.ModTime
	if v.UseCtime && v.ChangeTime.After(ref) {
		ref = v.ChangeTime
	}
	if ref.IsZero() {
		return 0
	}
	if age := now.Sub(ref); age > 0 {
		return age
	}
	return 0
}

// MatchesSeries compares name against the series and its alternative names.
func (v *Video) MatchesSeries(name string) bool {
	return matchesTitle(name, v.Series, v.AlternativeSeries)
}

// MatchesTitle compares name against the title and alternative titles.
func (v *Video) MatchesTitle(name string) bool {
	return matchesTitle(name, v.Title, v.AlternativeTitles)
}

func matchesTitle(actual, title string, alternatives []string) bool {
	if actual == "" || title == "" {
		return false
	}
	want := textutil.Sanitize(actual)
	if want == textutil.Sanitize(title) {
		return true
	}
	for _, alt := range alternatives {
		if alt != "" && textutil.Sanitize(alt) == want {
			return true
		}
	}
	return false
}

// String renders a short description used in logs and tables.
func (v *Video) String() string {
	if v.kind == Episode {
		parts := make([]string, 0, len(v.Episodes))
		for _, ep := range v.Episodes {
			parts = append(parts, fmt.Sprintf("%02d", ep))
		}
		extra := ""
		if !v.OriginalSeries && v.Country != "" {
			extra += " (" + v.Country + ")"
		}
		if !v.OriginalSeries && v.Year > 0 {
			extra += fmt.Sprintf(" (%d)", v.Year)
		}
		return fmt.Sprintf("%s%s s%02de%s", v.Series, extra, v.Season, strings.Join(parts, "-"))
	}
	out := v.Title
	if v.Country != "" {
		out += " (" + v.Country + ")"
	}
	if v.Year > 0 {
		out += fmt.Sprintf(" (%d)", v.Year)
	}
	return out
}
