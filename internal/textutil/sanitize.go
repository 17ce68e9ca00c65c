package textutil

import (
	"regexp"
	"strings"
)

var (
	titleSeparators = strings.NewReplacer("-", " ", ":", " ", "(", " ", ")", " ", ".", " ", ",", " ")
	titleDropped    = strings.NewReplacer("'", "")
	// Bracketed tags such as [rarbg] around a group name.
	bracketedTag = regexp.MustCompile(`\[\w+\]`)
)

// Sanitize folds a title for comparison: separators become spaces, quotes
// are removed, whitespace collapses, and the result is lowercased.
func Sanitize(value string) string {
	if value == "" {
		return ""
	}
	value = titleSeparators.Replace(value)
	value = titleDropped.Replace(value)
	return strings.ToLower(strings.Join(strings.Fields(value), " "))
}

// SanitizeReleaseGroup strips bracketed tags and uppercases the group.
func SanitizeReleaseGroup(value string) string {
	if value == "" {
		return ""
	}
	value = bracketedTag.ReplaceAllString(value, "")
	return strings.ToUpper(strings.TrimSpace(value))
}

// Groups known to publish the same releases under different names.
var releaseGroupEquivalents = [][]string{
	{"LOL", "DIMENSION"},
	{"ASAP", "IMMERSE", "FLEET"},
	{"AVS", "SVA"},
}

// EquivalentReleaseGroups returns the sanitized group plus the groups known to
// be interchangeable with it.
func EquivalentReleaseGroups(group string) []string {
	group = SanitizeReleaseGroup(group)
	if group == "" {
		return nil
	}
	for _, set := range releaseGroupEquivalents {
		for _, member := range set {
			if member == group {
				out := make([]string, len(set))
				copy(out, set)
				return out
			}
		}
	}
	return []string{group}
}

// SameReleaseGroup reports whether two group names refer to the same release
// group after sanitization and equivalence expansion.
func SameReleaseGroup(a, b string) bool {
	b = SanitizeReleaseGroup(b)
	if b == "" {
		return false
	}
	for _, candidate := range EquivalentReleaseGroups(a) {
		if candidate == b {
			return true
		}
	}
	return false
}
