package provider

import (
	"context"

	"subseek/internal/language"
	"subseek/internal/subtitle"
	"subseek/internal/video"
)

// Provider is a subtitle source. The pool calls Initialize once before the
// first listing or download and Terminate once at shutdown; every network
// call happens between the two.
type Provider interface {
	Name() string
	Capabilities() Capabilities
	// Check is a local suitability test for v. It must not touch the network.
	Check(v *video.Video) bool
	Initialize(ctx context.Context) error
	Terminate(ctx context.Context) error
	// ListSubtitles returns candidates for v in langs. Failures are returned
	// as errors tagged with one of the kinds in this package, never as a
	// partial list.
	ListSubtitles(ctx context.Context, v *video.Video, langs language.Set) ([]*subtitle.Subtitle, error)
	// DownloadSubtitle fills the content of s.
	DownloadSubtitle(ctx context.Context, s *subtitle.Subtitle) error
}

// Hasher is implemented by providers that use a fingerprint without
// requiring one, or that compute it themselves. Without a Hasher the
// fingerprint named by Capabilities().RequiredHash is computed with
// fingerprint.ByName.
type Hasher interface {
	HashAlgorithm() string
	HashVideo(path string) (string, bool, error)
}

// Capabilities are the static attributes a provider declares.
type Capabilities struct {
	// Languages is the supported set; nil means any language.
	Languages language.Set
	Episodes  bool
	Movies    bool
	// RequiredHash names the fingerprint algorithm the provider cannot
	// search without. Empty when no fingerprint is needed.
	RequiredHash string
}

// SupportsKind reports whether videos of kind are served.
func (c Capabilities) SupportsKind(kind video.Kind) bool {
	switch kind {
	case video.Episode:
		return c.Episodes
	case video.Movie:
		return c.Movies
	default:
		return false
	}
}

// CheckLanguages narrows langs to the supported ones.
func (c Capabilities) CheckLanguages(langs language.Set) language.Set {
	if c.Languages == nil {
		return langs.Clone()
	}
	return c.Languages.Intersect(langs)
}

// Check is the default suitability test: the kind is served and the
// required fingerprint, if any, is known.
func (c Capabilities) Check(v *video.Video) bool {
	if v == nil || !c.SupportsKind(v.Kind()) {
		return false
	}
	if c.RequiredHash != "" {
		if _, ok := v.Hash(c.RequiredHash); !ok {
			return false
		}
	}
	return true
}
