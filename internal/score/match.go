package score

import (
	"slices"
	"strings"

	"subseek/internal/video"
)

// Match names one attribute on which a subtitle agrees with a video.
type Match string

const (
	Hash             Match = "hash"
	Title            Match = "title"
	Series           Match = "series"
	Season           Match = "season"
	Episode          Match = "episode"
	Year             Match = "year"
	Country          Match = "country"
	ReleaseGroup     Match = "release_group"
	StreamingService Match = "streaming_service"
	FPS              Match = "fps"
	Source           Match = "source"
	AudioCodec       Match = "audio_codec"
	Resolution       Match = "resolution"
	VideoCodec       Match = "video_codec"

	// Identity matches carry no weight of their own; they expand into the
	// attributes they imply.
	IMDbID       Match = "imdb_id"
	TMDbID       Match = "tmdb_id"
	TVDbID       Match = "tvdb_id"
	SeriesIMDbID Match = "series_imdb_id"
	SeriesTMDbID Match = "series_tmdb_id"
	SeriesTVDbID Match = "series_tvdb_id"
)

var (
	episodeVocabulary = []Match{
		Hash, Series, Year, Country, Season, Episode, Title,
		ReleaseGroup, StreamingService, FPS, Source, AudioCodec, Resolution, VideoCodec,
		IMDbID, TMDbID, TVDbID, SeriesIMDbID, SeriesTMDbID, SeriesTVDbID,
	}
	movieVocabulary = []Match{
		Hash, Title, Year, Country,
		ReleaseGroup, StreamingService, FPS, Source, AudioCodec, Resolution, VideoCodec,
		IMDbID, TMDbID,
	}
)

// Vocabulary lists the matches meaningful for kind.
func Vocabulary(kind video.Kind) []Match {
	switch kind {
	case video.Episode:
		return slices.Clone(episodeVocabulary)
	case video.Movie:
		return slices.Clone(movieVocabulary)
	default:
		return nil
	}
}

// Set is an unordered collection of matches.
type Set map[Match]struct{}

// NewSet returns a set holding matches.
func NewSet(matches ...Match) Set {
	s := make(Set, len(matches))
	for _, m := range matches {
		s[m] = struct{}{}
	}
	return s
}

// Add inserts m.
func (s Set) Add(m Match) { s[m] = struct{}{} }

// Has reports whether m is present.
func (s Set) Has(m Match) bool {
	_, ok := s[m]
	return ok
}

// Len returns the number of matches.
func (s Set) Len() int { return len(s) }

// Clone returns an independent copy.
func (s Set) Clone() Set {
	out := make(Set, len(s))
	for m := range s {
		out[m] = struct{}{}
	}
	return out
}

// Restrict drops matches outside kind's vocabulary.
func (s Set) Restrict(kind video.Kind) Set {
	vocab := Vocabulary(kind)
	out := make(Set, len(s))
	for m := range s {
		if slices.Contains(vocab, m) {
			out[m] = struct{}{}
		}
	}
	return out
}

// Sorted returns the matches in name order.
func (s Set) Sorted() []Match {
	out := make([]Match, 0, len(s))
	for m := range s {
		out = append(out, m)
	}
	slices.Sort(out)
	return out
}

func (s Set) String() string {
	names := make([]string, 0, len(s))
	for _, m := range s.Sorted() {
		names = append(names, string(m))
	}
	return "{" + strings.Join(names, ", ") + "}"
}
