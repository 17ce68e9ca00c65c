package score

import (
	"math"
	"slices"
	"strings"

	"subseek/internal/textutil"
	"subseek/internal/video"
)

// fpsTolerance is the relative frame-rate difference still treated as equal.
const fpsTolerance = 0.0011

// Guess holds the attributes a provider knows about a subtitle's release.
// Title is the series name for episodes and the movie title otherwise.
type Guess struct {
	Title            string
	EpisodeTitle     string
	Season           int
	Episodes         []int
	Year             int
	Country          string
	FPS              float64
	ReleaseGroup     string
	StreamingService string
	Resolution       string
	Source           string
	VideoCodec       string
	AudioCodec       string
}

// GuessFromProperties converts name-parsing output into a Guess.
func GuessFromProperties(p video.Properties) Guess {
	return Guess{
		Title:            p.Title,
		Season:           p.Season,
		Episodes:         slices.Clone(p.Episodes),
		Year:             p.Year,
		Country:          p.Country,
		ReleaseGroup:     p.ReleaseGroup,
		StreamingService: p.StreamingService,
		Resolution:       p.Resolution,
		Source:           p.Source,
		VideoCodec:       p.VideoCodec,
		AudioCodec:       p.AudioCodec,
	}
}

// GuessMatches compares v against g. When partial is set, missing year or
// country information in g is not counted as agreement. When strict is
// set, a missing frame rate on either side is a non-match.
func GuessMatches(v *video.Video, g Guess, partial, strict bool) Set {
	matches := NewSet()
	episode := v.Kind() == video.Episode

	if episode {
		if g.Title != "" && v.MatchesSeries(g.Title) {
			matches.Add(Series)
		}
		if v.Title != "" && g.EpisodeTitle != "" && textutil.Sanitize(g.EpisodeTitle) == textutil.Sanitize(v.Title) {
			matches.Add(Title)
		}
		if v.Season > 0 && g.Season == v.Season {
			matches.Add(Season)
		}
		if len(v.Episodes) > 0 && slices.Equal(g.Episodes, v.Episodes) {
			matches.Add(Episode)
		}
	} else if v.Title != "" && g.Title != "" && textutil.Sanitize(g.Title) == textutil.Sanitize(v.Title) {
		matches.Add(Title)
	}

	if yearMatches(v, g.Year, partial) {
		matches.Add(Year)
	}
	if countryMatches(v, g.Country, partial) {
		matches.Add(Country)
	}
	if FPSMatches(v.FPS, g.FPS, strict) {
		matches.Add(FPS)
	}
	if releaseGroupMatches(v.ReleaseGroup, g.ReleaseGroup) {
		matches.Add(ReleaseGroup)
	}
	if v.StreamingService != "" && g.StreamingService == v.StreamingService {
		matches.Add(StreamingService)
	}
	if v.Resolution != "" && strings.EqualFold(g.Resolution, v.Resolution) {
		matches.Add(Resolution)
	}
	if v.Source != "" && g.Source == v.Source {
		matches.Add(Source)
	}
	if v.VideoCodec != "" && g.VideoCodec == v.VideoCodec {
		matches.Add(VideoCodec)
	}
	if v.AudioCodec != "" && g.AudioCodec == v.AudioCodec {
		matches.Add(AudioCodec)
	}
	return matches
}

// FPSMatches compares frame rates with a 0.11% relative tolerance. When
// either rate is unknown the result is !strict.
func FPSMatches(videoFPS, subtitleFPS float64, strict bool) bool {
	if videoFPS > 0 && subtitleFPS > 0 {
		return math.Abs(videoFPS-subtitleFPS)/videoFPS < fpsTolerance
	}
	return !strict
}

func yearMatches(v *video.Video, year int, partial bool) bool {
	if v.Year > 0 && year == v.Year {
		return true
	}
	// An original series has no year, so a guess without one agrees.
	if v.Kind() == video.Episode {
		return !partial && v.OriginalSeries && year == 0
	}
	return false
}

func countryMatches(v *video.Video, country string, partial bool) bool {
	if v.Country != "" && strings.EqualFold(country, v.Country) {
		return true
	}
	switch v.Kind() {
	case video.Episode:
		return !partial && v.OriginalSeries && country == ""
	case video.Movie:
		return v.Country == "" && country == ""
	}
	return false
}

func releaseGroupMatches(videoGroup, subtitleGroup string) bool {
	if videoGroup == "" || subtitleGroup == "" {
		return false
	}
	sanitized := textutil.SanitizeReleaseGroup(subtitleGroup)
	for _, candidate := range textutil.EquivalentReleaseGroups(videoGroup) {
		if strings.Contains(sanitized, candidate) {
			return true
		}
	}
	return false
}
