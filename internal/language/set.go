package language

import (
	"slices"
	"strings"
)

// Set is an unordered collection of languages.
type Set map[Language]struct{}

// NewSet returns a set holding langs.
func NewSet(langs ...Language) Set {
	s := make(Set, len(langs))
	for _, l := range langs {
		s.Add(l)
	}
	return s
}

// ParseSet parses each code and returns the resulting set.
func ParseSet(codes ...string) (Set, error) {
	s := make(Set, len(codes))
	for _, code := range codes {
		lang, err := Parse(code)
		if err != nil {
			return nil, err
		}
		s.Add(lang)
	}
	return s, nil
}

// Add inserts l; the zero Language is ignored.
func (s Set) Add(l Language) {
	if l.IsZero() {
		return
	}
	s[l] = struct{}{}
}

// Has reports whether l is a member.
func (s Set) Has(l Language) bool {
	_, ok := s[l]
	return ok
}

// Len returns the number of members.
func (s Set) Len() int { return len(s) }

// Intersect returns the members present in both sets.
func (s Set) Intersect(other Set) Set {
	out := make(Set)
	for l := range s {
		if other.Has(l) {
			out[l] = struct{}{}
		}
	}
	return out
}

// Difference returns the members of s that are not in other.
func (s Set) Difference(other Set) Set {
	out := make(Set)
	for l := range s {
		if !other.Has(l) {
			out[l] = struct{}{}
		}
	}
	return out
}

// Clone returns an independent copy.
func (s Set) Clone() Set {
	out := make(Set, len(s))
	for l := range s {
		out[l] = struct{}{}
	}
	return out
}

// Sorted returns the members ordered by their String form.
func (s Set) Sorted() []Language {
	out := make([]Language, 0, len(s))
	for l := range s {
		out = append(out, l)
	}
	slices.SortFunc(out, func(a, b Language) int {
		return strings.Compare(a.String(), b.String())
	})
	return out
}

// String joins the sorted members with commas.
func (s Set) String() string {
	parts := make([]string, 0, len(s))
	for _, l := range s.Sorted() {
		parts = append(parts, l.String())
	}
	return strings.Join(parts, ",")
}
