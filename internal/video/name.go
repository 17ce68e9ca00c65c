package video

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	ptn "github.com/razsteinmetz/go-ptn"
)

// ErrInsufficientGuess is returned when a name lacks the title (or, for
// episodes, the episode number) needed to build a Video.
var ErrInsufficientGuess = errors.New("insufficient data in name")

// Properties are the attributes guessed from a release or file name.
type Properties struct {
	Kind             Kind
	Title            string
	Year             int
	Country          string
	Season           int
	Episodes         []int
	Source           string
	Resolution       string
	VideoCodec       string
	AudioCodec       string
	ReleaseGroup     string
	StreamingService string
}

var (
	nameSplit     = regexp.MustCompile(`[\s._\-\[\]()]+`)
	multiEpisode  = regexp.MustCompile(`(?i)s\d{1,2}((?:e\d{1,3}){2,})`)
	episodeNumber = regexp.MustCompile(`(?i)e(\d{1,3})`)
	episodeMarker = regexp.MustCompile(`(?i)\bs\d{1,2}e\d{1,3}\b|\b\d{1,2}x\d{2,3}\b`)
)

var videoCodecTokens = map[string]string{
	"x264": "H.264", "h264": "H.264", "avc": "H.264",
	"x265": "H.265", "h265": "H.265", "hevc": "H.265",
	"xvid": "Xvid", "divx": "DivX",
	"av1": "AV1", "vp9": "VP9", "mpeg2": "MPEG-2",
}

var audioCodecTokens = map[string]string{
	"aac": "AAC", "ac3": "Dolby Digital", "dd5": "Dolby Digital", "dd": "Dolby Digital",
	"eac3": "Dolby Digital Plus", "ddp": "Dolby Digital Plus", "ddp5": "Dolby Digital Plus",
	"dts": "DTS", "truehd": "Dolby TrueHD", "atmos": "Dolby Atmos",
	"flac": "FLAC", "mp3": "MP3", "opus": "Opus",
}

var streamingTokens = map[string]string{
	"amzn": "Amazon Prime", "nf": "Netflix", "dsnp": "Disney+", "hmax": "HBO Max",
	"atvp": "Apple TV+", "hulu": "Hulu", "pcok": "Peacock", "pmtp": "Paramount+",
}

var sourceTokens = map[string]string{
	"hdtv": "HDTV", "pdtv": "HDTV", "sdtv": "TV", "dsr": "Satellite",
	"webdl": "Web", "webrip": "Web", "web": "Web",
	"bluray": "Blu-ray", "bdrip": "Blu-ray", "brrip": "Blu-ray", "bdremux": "Blu-ray",
	"dvdrip": "DVD", "dvd": "DVD", "hddvd": "HD-DVD",
	"cam": "Camera", "ts": "Telesync", "telesync": "Telesync",
}

var countryTokens = map[string]string{"us": "US", "uk": "GB", "gb": "GB", "au": "AU", "ca": "CA", "nz": "NZ"}

// ParseName guesses properties from a file or release name. Directory
// components are ignored.
func ParseName(name string) (Properties, error) {
	base := filepath.Base(name)
	if ext := strings.ToLower(filepath.Ext(base)); IsVideoExtension(ext) {
		base = strings.TrimSuffix(base, filepath.Ext(base))
	}
	info, err := ptn.Parse(base)
	if err != nil {
		return Properties{}, fmt.Errorf("parse name %q: %w", name, err)
	}

	props := Properties{
		Title:        strings.TrimSpace(info.Title),
		Year:         info.Year,
		Season:       info.Season,
		Resolution:   normalizeResolution(info.Resolution),
		Source:       NormalizeSource(info.Quality),
		ReleaseGroup: strings.TrimSpace(info.Group),
	}
	if info.Episode > 0 {
		props.Episodes = []int{info.Episode}
	}
	if m := multiEpisode.FindStringSubmatch(base); m != nil {
		props.Episodes = props.Episodes[:0]
		for _, em := range episodeNumber.FindAllStringSubmatch(m[1], -1) {
			if n, err := strconv.Atoi(em[1]); err == nil {
				props.Episodes = append(props.Episodes, n)
			}
		}
	}

	tokens := nameSplit.Split(strings.ToLower(base), -1)
	for _, tok := range tokens {
		if props.VideoCodec == "" {
			props.VideoCodec = videoCodecTokens[tok]
		}
		if props.AudioCodec == "" {
			props.AudioCodec = audioCodecTokens[tok]
		}
		if props.StreamingService == "" {
			props.StreamingService = streamingTokens[tok]
		}
		if props.Source == "" {
			props.Source = sourceTokens[tok]
		}
	}

	if fields := strings.Fields(props.Title); len(fields) > 1 {
		if country, ok := countryTokens[strings.ToLower(fields[len(fields)-1])]; ok {
			props.Country = country
			props.Title = strings.Join(fields[:len(fields)-1], " ")
		}
	}

	if props.Season > 0 || len(props.Episodes) > 0 || episodeMarker.MatchString(base) {
		props.Kind = Episode
	} else {
		props.Kind = Movie
	}
	return props, nil
}

// FromName builds a hypothetical Video from a name. The name is kept as the
// video's path.
func FromName(name string) (*Video, error) {
	props, err := ParseName(name)
	if err != nil {
		return nil, err
	}
	return FromProperties(name, props)
}

// FromProperties builds a Video named name from guessed properties.
func FromProperties(name string, props Properties) (*Video, error) {
	if props.Title == "" {
		return nil, fmt.Errorf("%w: %q has no title", ErrInsufficientGuess, name)
	}
	var v *Video
	switch props.Kind {
	case Episode:
		if len(props.Episodes) == 0 {
			return nil, fmt.Errorf("%w: %q has no episode number", ErrInsufficientGuess, name)
		}
		season := props.Season
		if season == 0 {
			season = 1
		}
		v = NewEpisode(name, props.Title, season, props.Episodes...)
		v.OriginalSeries = props.Year == 0 && props.Country == ""
	default:
		v = NewMovie(name, props.Title)
	}
	v.Year = props.Year
	v.Country = props.Country
	v.Source = props.Source
	v.Resolution = props.Resolution
	v.VideoCodec = props.VideoCodec
	v.AudioCodec = props.AudioCodec
	v.ReleaseGroup = props.ReleaseGroup
	v.StreamingService = props.StreamingService
	return v, nil
}

// NormalizeSource maps release source spellings onto a small vocabulary
// (HDTV, Web, Blu-ray, DVD, ...).
func NormalizeSource(value string) string {
	key := strings.ToLower(strings.NewReplacer("-", "", " ", "", ".", "").Replace(value))
	if key == "" {
		return ""
	}
	if src, ok := sourceTokens[key]; ok {
		return src
	}
	return value
}

// NormalizeVideoCodec maps encoder and ffprobe codec names onto the
// vocabulary used by ParseName.
func NormalizeVideoCodec(value string) string {
	key := strings.ToLower(strings.ReplaceAll(value, ".", ""))
	if codec, ok := videoCodecTokens[key]; ok {
		return codec
	}
	switch key {
	case "mpeg2video":
		return "MPEG-2"
	case "mpeg4":
		return "Xvid"
	}
	return value
}

// NormalizeAudioCodec maps ffprobe audio codec names onto the ParseName
// vocabulary.
func NormalizeAudioCodec(value string) string {
	key := strings.ToLower(value)
	if codec, ok := audioCodecTokens[key]; ok {
		return codec
	}
	return value
}

func normalizeResolution(value string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	switch value {
	case "":
		return ""
	case "4k", "uhd":
		return "2160p"
	}
	return value
}

// ResolutionFromHeight returns the resolution label for a frame height.
func ResolutionFromHeight(height int, interlaced bool) string {
	var label string
	switch {
	case height <= 0:
		return ""
	case height >= 2000:
		label = "2160"
	case height >= 1000:
		label = "1080"
	case height >= 700:
		label = "720"
	case height >= 560:
		label = "576"
	case height >= 460:
		label = "480"
	default:
		label = "360"
	}
	if interlaced {
		return label + "i"
	}
	return label + "p"
}
