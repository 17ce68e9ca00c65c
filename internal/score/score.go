package score

import (
	"maps"
	"slices"

	"subseek/internal/video"
)

// EpisodeWeights are the per-match points for episodes. Each tier is worth
// more than every lower tier combined; hash equals the sum of all others.
var EpisodeWeights = map[Match]int{
	Hash:             971,
	Series:           486,
	Country:          162,
	Year:             162,
	Episode:          54,
	Season:           54,
	ReleaseGroup:     18,
	StreamingService: 18,
	FPS:              9,
	Source:           4,
	AudioCodec:       2,
	Resolution:       1,
	VideoCodec:       1,
}

// MovieWeights are the per-match points for movies.
var MovieWeights = map[Match]int{
	Hash:             323,
	Title:            162,
	Country:          54,
	Year:             54,
	ReleaseGroup:     18,
	StreamingService: 18,
	FPS:              9,
	Source:           4,
	AudioCodec:       2,
	Resolution:       1,
	VideoCodec:       1,
}

// Weights returns a copy of the weight table for kind.
func Weights(kind video.Kind) map[Match]int {
	return maps.Clone(weights(kind))
}

func weights(kind video.Kind) map[Match]int {
	switch kind {
	case video.Episode:
		return EpisodeWeights
	case video.Movie:
		return MovieWeights
	default:
		return nil
	}
}

// MaxScore is the best achievable score for kind, a hash match.
func MaxScore(kind video.Kind) int {
	return weights(kind)[Hash]
}

// Resolve applies the match equivalences: a hash match discards every other
// match, and identity matches add the attributes they imply. An episode
// title carries no weight of its own and only implies the episode match, so
// {title, episode} scores the same as {episode}. Matches outside kind's
// vocabulary are dropped. The input set is not modified.
func Resolve(set Set, kind video.Kind) Set {
	out := set.Restrict(kind)
	if out.Has(Hash) {
		return NewSet(Hash)
	}
	addAll := func(ms ...Match) {
		for _, m := range ms {
			out.Add(m)
		}
	}
	switch kind {
	case video.Episode:
		if out.Has(Title) {
			out.Add(Episode)
		}
		for _, id := range []Match{SeriesIMDbID, SeriesTMDbID, SeriesTVDbID} {
			if out.Has(id) {
				addAll(Series, Year, Country)
			}
		}
		for _, id := range []Match{IMDbID, TMDbID, TVDbID} {
			if out.Has(id) {
				addAll(Series, Year, Country, Season, Episode)
			}
		}
	case video.Movie:
		if out.Has(IMDbID) || out.Has(TMDbID) {
			addAll(Title, Year, Country)
		}
	}
	return out
}

// Compute returns the score of set for kind, clipped to [0, MaxScore(kind)].
// An empty set scores zero.
func Compute(set Set, kind video.Kind) int {
	table := weights(kind)
	total := 0
	for m := range Resolve(set, kind) {
		total += table[m]
	}
	return min(max(total, 0), table[Hash])
}

// Contribution is one line of a score explanation.
type Contribution struct {
	Match  Match
	Weight int
}

// Breakdown explains Compute: the resolved matches with their weights,
// heaviest first, ties in name order. Zero-weight identity matches are
// listed so the reason for implied matches stays visible.
func Breakdown(set Set, kind video.Kind) []Contribution {
	table := weights(kind)
	resolved := Resolve(set, kind)
	out := make([]Contribution, 0, resolved.Len())
	for _, m := range resolved.Sorted() {
		out = append(out, Contribution{Match: m, Weight: table[m]})
	}
	slices.SortStableFunc(out, func(a, b Contribution) int {
		return b.Weight - a.Weight
	})
	return out
}
