package selection

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"subseek/internal/score"
	"subseek/internal/subtitle"
	"subseek/internal/video"
)

// Preference orders hearing-impaired or foreign-only candidates against
// normal ones of the same score.
type Preference int

const (
	Neutral Preference = iota
	Prefer
	Avoid
)

func (p Preference) String() string {
	switch p {
	case Prefer:
		return "prefer"
	case Avoid:
		return "avoid"
	default:
		return "neutral"
	}
}

// ParsePreference accepts prefer, avoid or neutral; empty is neutral.
func ParsePreference(value string) (Preference, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "neutral":
		return Neutral, nil
	case "prefer":
		return Prefer, nil
	case "avoid":
		return Avoid, nil
	default:
		return Neutral, fmt.Errorf("unknown preference %q (want prefer, avoid or neutral)", value)
	}
}

// rank is the tie-break key for a flag: 0 sorts first.
func (p Preference) rank(flagged bool) int {
	switch {
	case p == Prefer && !flagged, p == Avoid && flagged:
		return 1
	default:
		return 0
	}
}

// Candidate is a subtitle with its matches and score against one video.
type Candidate struct {
	Subtitle *subtitle.Subtitle
	Matches  score.Set
	Score    int
	// Index is the position in the merged provider order.
	Index int
}

func (c Candidate) String() string {
	return fmt.Sprintf("%s score=%d matches=%s", c.Subtitle, c.Score, c.Matches)
}

// Rank scores subs against v and orders them: score descending, then the
// hearing-impaired preference, then the foreign-only preference, then the
// merged provider order. Candidates outside the requested languages,
// ignored, below the minimum score or with a wrong frame rate (when asked)
// are dropped, as are later copies of a subtitle or of a payload.
func Rank(v *video.Video, subs []*subtitle.Subtitle, opts Options) []Candidate {
	ignored := make(map[string]struct{}, len(opts.Ignore))
	for _, id := range opts.Ignore {
		ignored[strings.ToLower(strings.TrimSpace(id))] = struct{}{}
	}

	candidates := make([]Candidate, 0, len(subs))
	for i, s := range subs {
		if s == nil || !opts.wants(v, s.Language) {
			continue
		}
		if isIgnored(ignored, s) {
			continue
		}
		if opts.SkipWrongFPS && !score.FPSMatches(v.FPS, s.FPS, false) {
			continue
		}
		matches := s.Matches(v)
		c := Candidate{Subtitle: s, Matches: matches, Score: score.Compute(matches, v.Kind()), Index: i}
		if c.Score < opts.MinScore {
			continue
		}
		candidates = append(candidates, c)
	}

	slices.SortStableFunc(candidates, func(a, b Candidate) int {
		return compare(a, b, opts)
	})
	return dedupe(candidates)
}

func compare(a, b Candidate, opts Options) int {
	if c := cmp.Compare(b.Score, a.Score); c != 0 {
		return c
	}
	if c := cmp.Compare(
		opts.HearingImpaired.rank(a.Subtitle.HearingImpaired()),
		opts.HearingImpaired.rank(b.Subtitle.HearingImpaired()),
	); c != 0 {
		return c
	}
	if c := cmp.Compare(
		opts.ForeignOnly.rank(a.Subtitle.ForeignOnly()),
		opts.ForeignOnly.rank(b.Subtitle.ForeignOnly()),
	); c != 0 {
		return c
	}
	return cmp.Compare(a.Index, b.Index)
}

func isIgnored(ignored map[string]struct{}, s *subtitle.Subtitle) bool {
	if len(ignored) == 0 {
		return false
	}
	if _, ok := ignored[strings.ToLower(s.Key())]; ok {
		return true
	}
	_, ok := ignored[strings.ToLower(s.ID)]
	return ok
}

// dedupe keeps the best-ranked copy of each provider/id pair and of each
// content id shared between mirrors.
func dedupe(ranked []Candidate) []Candidate {
	keys := make(map[string]struct{}, len(ranked))
	contents := make(map[string]struct{})
	out := ranked[:0]
	for _, c := range ranked {
		key := c.Subtitle.Key()
		if _, dup := keys[key]; dup {
			continue
		}
		keys[key] = struct{}{}
		if id := c.Subtitle.ContentID; id != "" {
			if _, dup := contents[id]; dup {
				continue
			}
			contents[id] = struct{}{}
		}
		out = append(out, c)
	}
	return out
}
