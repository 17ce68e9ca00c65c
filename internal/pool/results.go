package pool

import "subseek/internal/subtitle"

// Results is the merged answer of one listing.
type Results struct {
	// Providers lists the providers that were queried, in pool order.
	Providers []string
	// Subtitles holds each provider's list in its own order; a failed
	// provider maps to an empty list.
	Subtitles map[string][]*subtitle.Subtitle
	// Errors holds the failure of each provider that failed.
	Errors map[string]error
	// Skipped maps providers that were not queried to the reason.
	Skipped map[string]string
}

func newResults() *Results {
	return &Results{
		Subtitles: make(map[string][]*subtitle.Subtitle),
		Errors:    make(map[string]error),
		Skipped:   make(map[string]string),
	}
}

func (r *Results) enlist(name string) {
	r.Providers = append(r.Providers, name)
}

func (r *Results) skip(name, reason string) {
	r.Skipped[name] = reason
}

func (r *Results) record(name string, subs []*subtitle.Subtitle, err error) {
	if err != nil {
		r.Errors[name] = err
		r.Subtitles[name] = nil
		return
	}
	r.Subtitles[name] = subs
}

// All concatenates the provider lists in pool order.
func (r *Results) All() []*subtitle.Subtitle {
	var out []*subtitle.Subtitle
	for _, name := range r.Providers {
		out = append(out, r.Subtitles[name]...)
	}
	return out
}

// Failed reports whether every queried provider failed.
func (r *Results) Failed() bool {
	return len(r.Providers) > 0 && len(r.Errors) == len(r.Providers)
}
