package subtitle

import (
	"bytes"
	"errors"
	"fmt"

	"subseek/internal/language"
	"subseek/internal/score"
	"subseek/internal/video"
)

// ErrInvalid marks downloaded content that is not a usable subtitle.
var ErrInvalid = errors.New("invalid subtitle content")

// LanguageType tells regular subtitles apart from hearing-impaired and
// foreign-only (forced) ones.
type LanguageType int

const (
	LanguageTypeUnknown LanguageType = iota
	ForeignOnly
	Normal
	HearingImpaired
)

func (t LanguageType) String() string {
	switch t {
	case ForeignOnly:
		return "foreign_only"
	case Normal:
		return "normal"
	case HearingImpaired:
		return "hearing_impaired"
	default:
		return "unknown"
	}
}

// FromFlags converts provider flags. Hearing impaired wins when both are set.
func FromFlags(hearingImpaired, foreignOnly bool) LanguageType {
	switch {
	case hearingImpaired:
		return HearingImpaired
	case foreignOnly:
		return ForeignOnly
	default:
		return Normal
	}
}

// Matcher is the provider-specific metadata attached to a subtitle. Only
// the owning provider knows how to compare it with a video.
type Matcher interface {
	Matches(v *video.Video) score.Set
}

// MatcherFunc adapts a function to Matcher.
type MatcherFunc func(v *video.Video) score.Set

func (f MatcherFunc) Matches(v *video.Video) score.Set { return f(v) }

// Subtitle is one candidate offered by one provider. Content stays empty
// until the pool downloads it.
type Subtitle struct {
	Provider     string
	ID           string
	Language     language.Language
	LanguageType LanguageType
	PageLink     string
	ReleaseName  string
	// Format is srt, vtt, ass, ssa, microdvd, mpl2, tmp or sami; empty
	// until known.
	Format string
	// FPS is the frame rate frame-based formats were authored for.
	FPS float64
	// ContentID identifies the payload across mirrors (for example a
	// provider-side file hash) so duplicates can be dropped.
	ContentID string
	Metadata  Matcher
	Encoding  string

	content  []byte
	text     string
	decoded  bool
	checked  bool
	checkErr error
}

// New returns a subtitle with a normal language type.
func New(provider, id string, lang language.Language) *Subtitle {
	return &Subtitle{Provider: provider, ID: id, Language: lang, LanguageType: Normal}
}

// Key is the globally unique provider/id pair.
func (s *Subtitle) Key() string { return s.Provider + ":" + s.ID }

func (s *Subtitle) String() string {
	return fmt.Sprintf("%s [%s]", s.Key(), s.Language)
}

// HearingImpaired reports the hearing-impaired flag.
func (s *Subtitle) HearingImpaired() bool { return s.LanguageType == HearingImpaired }

// ForeignOnly reports the foreign-only flag.
func (s *Subtitle) ForeignOnly() bool { return s.LanguageType == ForeignOnly }

// Matches returns the attributes s shares with v, limited to v's vocabulary.
func (s *Subtitle) Matches(v *video.Video) score.Set {
	if s.Metadata == nil {
		return score.NewSet()
	}
	set := s.Metadata.Matches(v)
	if set == nil {
		return score.NewSet()
	}
	return set.Restrict(v.Kind())
}

// Score is score.Compute over Matches.
func (s *Subtitle) Score(v *video.Video) int {
	return score.Compute(s.Matches(v), v.Kind())
}

// SetContent stores raw bytes, normalising CRLF line endings, and guesses
// the encoding when none is set.
func (s *Subtitle) SetContent(content []byte) {
	s.ClearContent()
	if len(content) > 0 {
		content = bytes.ReplaceAll(content, []byte("\r\n"), []byte("\n"))
	}
	s.content = content
	if s.Encoding == "" && len(content) > 0 {
		s.Encoding = GuessEncoding(content, s.Language)
	}
}

// ClearContent forgets decoded text and validation state.
func (s *Subtitle) ClearContent() {
	s.text = ""
	s.decoded = false
	s.checked = false
	s.checkErr = nil
}

// Content returns the raw bytes, nil before download.
func (s *Subtitle) Content() []byte { return s.content }

// HasContent reports whether the subtitle has been downloaded.
func (s *Subtitle) HasContent() bool { return len(s.content) > 0 }

// Text decodes the content with Encoding. Undecodable bytes become U+FFFD.
func (s *Subtitle) Text() string {
	if !s.decoded {
		s.decoded = true
		s.text = ""
		if len(s.content) > 0 && s.Encoding != "" {
			if text, err := Decode(s.content, s.Encoding); err == nil {
				s.text = text
			}
		}
	}
	return s.text
}

// Validate checks that the decoded text is a subtitle in a supported
// format and holds at least one cue. The format sniffed from the text
// overrides a declared one that disagrees. Failures wrap ErrInvalid.
func (s *Subtitle) Validate() error {
	if !s.checked {
		s.checkErr = s.validate()
		s.checked = true
	}
	return s.checkErr
}

// IsValid is Validate as a boolean.
func (s *Subtitle) IsValid() bool { return s.Validate() == nil }

func (s *Subtitle) validate() error {
	text := s.Text()
	if text == "" {
		return fmt.Errorf("%w: %s: empty or undecodable content", ErrInvalid, s.Key())
	}
	// The content decides: a declared format is only kept when the text
	// does not sniff as something else.
	detected := DetectFormat(text)
	switch {
	case detected != "" && !sameFormatFamily(detected, s.Format):
		s.Format = detected
	case s.Format == "" && detected == "":
		return fmt.Errorf("%w: %s: unrecognised format", ErrInvalid, s.Key())
	}
	if err := CheckStructure(s.Format, text); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInvalid, s.Key(), err)
	}
	return nil
}

func sameFormatFamily(a, b string) bool {
	if a == b {
		return true
	}
	ssa := func(f string) bool { return f == FormatASS || f == FormatSSA }
	return ssa(a) && ssa(b)
}

// Reencode replaces the content with the text encoded as encoding.
func (s *Subtitle) Reencode(encoding string) error {
	text := s.Text()
	if text == "" {
		return fmt.Errorf("%w: %s: nothing to re-encode", ErrInvalid, s.Key())
	}
	data, err := Encode(text, encoding)
	if err != nil {
		return err
	}
	checked, checkErr := s.checked, s.checkErr
	s.ClearContent()
	s.content = data
	s.Encoding = encoding
	s.checked, s.checkErr = checked, checkErr
	return nil
}
