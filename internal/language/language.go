package language

import (
	"errors"
	"fmt"
	"strings"

	xlang "golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// ErrUnknown is returned by Parse for values that are not a recognised language.
var ErrUnknown = errors.New("unknown language")

// Language identifies a subtitle or audio language. Code is the ISO 639-2/T
// (alpha-3) code; Region is an optional ISO 3166-1 alpha-2 country code.
// The zero value is invalid; use Und for "undetermined".
type Language struct {
	Code   string
	Region string
}

// Und is the undetermined language.
var Und = Language{Code: "und"}

// bibliographic maps ISO 639-2/B codes onto their terminology codes.
var bibliographic = map[string]string{
	"alb": "sqi",
	"arm": "hye",
	"baq": "eus",
	"bur": "mya",
	"chi": "zho",
	"cze": "ces",
	"dut": "nld",
	"fre": "fra",
	"geo": "kat",
	"ger": "deu",
	"gre": "ell",
	"ice": "isl",
	"mac": "mkd",
	"mao": "mri",
	"may": "msa",
	"per": "fas",
	"rum": "ron",
	"slo": "slk",
	"tib": "bod",
	"wel": "cym",
}

// English word forms seen in release names and provider payloads.
var byWord = map[string]string{
	"english":    "en",
	"spanish":    "es",
	"french":     "fr",
	"german":     "de",
	"italian":    "it",
	"portuguese": "pt",
	"brazilian":  "pt-BR",
	"japanese":   "ja",
	"korean":     "ko",
	"chinese":    "zh",
	"russian":    "ru",
	"arabic":     "ar",
	"hindi":      "hi",
	"dutch":      "nl",
	"polish":     "pl",
	"swedish":    "sv",
	"danish":     "da",
	"norwegian":  "no",
	"finnish":    "fi",
	"greek":      "el",
	"hebrew":     "he",
	"turkish":    "tr",
	"czech":      "cs",
	"hungarian":  "hu",
	"romanian":   "ro",
	"ukrainian":  "uk",
	"bulgarian":  "bg",
	"croatian":   "hr",
	"serbian":    "sr",
	"persian":    "fa",
}

// Parse accepts ISO 639-1 and 639-2 codes (terminology or bibliographic),
// IETF tags such as "pt-BR" or "pt_br", and English names. Case is ignored.
func Parse(value string) (Language, error) {
	raw := strings.ToLower(strings.TrimSpace(value))
	raw = strings.ReplaceAll(raw, "_", "-")
	if raw == "" {
		return Language{}, fmt.Errorf("%w: empty value", ErrUnknown)
	}
	if raw == "und" {
		return Und, nil
	}
	if code, ok := byWord[raw]; ok {
		raw = strings.ToLower(code)
	}
	base, rest, _ := strings.Cut(raw, "-")
	if alias, ok := bibliographic[base]; ok {
		base = alias
	}
	if rest != "" {
		base += "-" + rest
	}

	tag, err := xlang.Parse(base)
	if err != nil {
		return Language{}, fmt.Errorf("%w: %q", ErrUnknown, value)
	}
	b, conf := tag.Base()
	if conf != xlang.Exact {
		return Language{}, fmt.Errorf("%w: %q", ErrUnknown, value)
	}
	lang := Language{Code: b.ISO3()}
	if r, conf := tag.Region(); conf == xlang.Exact {
		lang.Region = r.String()
	}
	return lang, nil
}

// MustParse is Parse for package-level values and tests; it panics on error.
func MustParse(value string) Language {
	lang, err := Parse(value)
	if err != nil {
		panic(err)
	}
	return lang
}

// IsZero reports whether l is the invalid zero value.
func (l Language) IsZero() bool { return l.Code == "" }

// IsUndefined reports whether l is the undetermined language.
func (l Language) IsUndefined() bool { return l.Code == "" || l.Code == "und" }

func (l Language) base() (xlang.Base, bool) {
	if l.IsUndefined() {
		return xlang.Base{}, false
	}
	b, err := xlang.ParseBase(l.Code)
	if err != nil {
		return xlang.Base{}, false
	}
	return b, true
}

// Alpha2 returns the ISO 639-1 code, or "" when the language has none.
func (l Language) Alpha2() string {
	b, ok := l.base()
	if !ok {
		return ""
	}
	if s := b.String(); len(s) == 2 {
		return s
	}
	return ""
}

// Alpha3 returns the ISO 639-2/T code.
func (l Language) Alpha3() string {
	if l.Code == "" {
		return "und"
	}
	return l.Code
}

// IETF returns a BCP 47 tag such as "en" or "pt-BR".
func (l Language) IETF() string {
	b, ok := l.base()
	if !ok {
		return "und"
	}
	if l.Region == "" {
		return b.String()
	}
	region, err := xlang.ParseRegion(l.Region)
	if err != nil {
		return b.String()
	}
	tag, err := xlang.Compose(b, region)
	if err != nil {
		return b.String()
	}
	return tag.String()
}

// String returns the shortest code (alpha-2 when defined, alpha-3 otherwise)
// with the region appended, e.g. "en", "pt-BR", "haw".
func (l Language) String() string {
	code := l.Alpha2()
	if code == "" {
		code = l.Alpha3()
	}
	if l.Region != "" {
		return code + "-" + l.Region
	}
	return code
}

// Format renders l using one of the file-name formats alpha2, alpha3 or ietf.
// Unknown formats fall back to String.
func (l Language) Format(format string) string {
	switch format {
	case "alpha3":
		if l.Region != "" {
			return l.Alpha3() + "-" + l.Region
		}
		return l.Alpha3()
	case "ietf":
		return l.IETF()
	default:
		return l.String()
	}
}

// Name returns the English display name, e.g. "Portuguese (Brazil)".
func (l Language) Name() string {
	b, ok := l.base()
	if !ok {
		return "Unknown"
	}
	name := display.English.Languages().Name(b)
	if name == "" {
		name = strings.ToUpper(l.Code)
	}
	if l.Region != "" {
		if region, err := xlang.ParseRegion(l.Region); err == nil {
			if rn := display.English.Regions().Name(region); rn != "" {
				return name + " (" + rn + ")"
			}
		}
		return name + " (" + l.Region + ")"
	}
	return name
}

// ToISO2 converts any recognized language code or word to ISO 639-1.
// Returns empty string for unrecognized input or languages without one.
func ToISO2(code string) string {
	lang, err := Parse(code)
	if err != nil {
		return ""
	}
	return lang.Alpha2()
}

// ToISO3 converts any recognized language code to ISO 639-2/T.
// Returns "und" for unrecognized input.
func ToISO3(code string) string {
	lang, err := Parse(code)
	if err != nil {
		return "und"
	}
	return lang.Alpha3()
}

// DisplayName returns a human-readable language name for any recognized code.
// Returns "Unknown" for empty input, or the uppercased code for unrecognized input.
func DisplayName(code string) string {
	if strings.TrimSpace(code) == "" {
		return "Unknown"
	}
	lang, err := Parse(code)
	if err != nil {
		return strings.ToUpper(strings.TrimSpace(code))
	}
	return lang.Name()
}

// FromTags extracts the language from container stream metadata tags.
// Checks common tag keys: language, LANGUAGE, Language, language_ietf, lang, LANG.
func FromTags(tags map[string]string) (Language, bool) {
	if len(tags) == 0 {
		return Language{}, false
	}
	keys := []string{"language_ietf", "language", "LANGUAGE", "Language", "lang", "LANG"}
	for _, key := range keys {
		value, ok := tags[key]
		if !ok {
			continue
		}
		value = strings.TrimSpace(strings.ReplaceAll(value, "\u0000", ""))
		if value == "" {
			continue
		}
		if lang, err := Parse(value); err == nil {
			return lang, true
		}
	}
	return Language{}, false
}
