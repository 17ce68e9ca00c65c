package subtitle

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Subtitle formats. The values double as config and log vocabulary.
const (
	FormatSRT      = "srt"
	FormatASS      = "ass"
	FormatSSA      = "ssa"
	FormatVTT      = "vtt"
	FormatMicroDVD = "microdvd"
	FormatMPL2     = "mpl2"
	FormatTMP      = "tmp"
	FormatSAMI     = "sami"
)

var formatExtensions = map[string]string{
	FormatSRT:      ".srt",
	FormatASS:      ".ass",
	FormatSSA:      ".ssa",
	FormatVTT:      ".vtt",
	FormatMicroDVD: ".sub",
	FormatMPL2:     ".mpl",
	FormatTMP:      ".txt",
	FormatSAMI:     ".smi",
}

// Extension returns the file extension for format, ".srt" when unknown.
func Extension(format string) string {
	if ext, ok := formatExtensions[strings.ToLower(format)]; ok {
		return ext
	}
	return ".srt"
}

// FormatFromExtension maps a file extension back to a format name.
func FormatFromExtension(ext string) string {
	ext = strings.ToLower(ext)
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	for format, candidate := range formatExtensions {
		if candidate == ext {
			return format
		}
	}
	return ""
}

var (
	srtTimingPattern = regexp.MustCompile(`^\s*(\d+:\d{1,2}:\d{1,2}[,.]\d{1,3})\s*-->\s*(\d+:\d{1,2}:\d{1,2}[,.]\d{1,3})`)
	srtStartPattern  = regexp.MustCompile(`(?m)^\s*\d+\s*\n\s*\d+:\d{1,2}:\d{1,2}[,.]\d{1,3}\s*-->`)
	microDVDPattern  = regexp.MustCompile(`(?m)^\{\d+\}\{\d*\}`)
	mpl2Pattern      = regexp.MustCompile(`(?m)^\[\d+\]\[\d*\]`)
	tmpPattern       = regexp.MustCompile(`(?m)^\d{1,2}:\d{2}:\d{2}:`)
	samiPattern      = regexp.MustCompile(`(?i)<sami[\s>]`)
	samiSyncPattern  = regexp.MustCompile(`(?i)<sync\s[^>]*start\s*=`)
	vttTimingPattern = regexp.MustCompile(`(?m)^\s*(?:\d+:)?\d{2}:\d{2}\.\d{3}\s*-->\s*(?:\d+:)?\d{2}:\d{2}\.\d{3}`)
	assEventsPattern = regexp.MustCompile(`(?im)^\s*\[events\]\s*$`)
	assDialogPattern = regexp.MustCompile(`(?im)^\s*dialogue\s*:`)
)

// DetectFormat sniffs the subtitle format of decoded text. It returns an
// empty string when nothing matches.
func DetectFormat(text string) string {
	text = strings.TrimPrefix(text, "\ufeff")
	trimmed := strings.TrimSpace(text)
	switch {
	case trimmed == "":
		return ""
	case strings.HasPrefix(trimmed, "WEBVTT"):
		return FormatVTT
	case strings.Contains(text, "[Script Info]"):
		lower := strings.ToLower(text)
		if strings.Contains(lower, "v4.00+") || strings.Contains(lower, "[v4+ styles]") {
			return FormatASS
		}
		return FormatSSA
	case samiPattern.MatchString(text):
		return FormatSAMI
	case srtStartPattern.MatchString(text):
		return FormatSRT
	case microDVDPattern.MatchString(text):
		return FormatMicroDVD
	case mpl2Pattern.MatchString(text):
		return FormatMPL2
	case tmpPattern.MatchString(text):
		return FormatTMP
	}
	return ""
}

// CheckStructure reports whether text holds at least one cue of format.
func CheckStructure(format, text string) error {
	text = strings.TrimPrefix(text, "\ufeff")
	var ok bool
	switch format {
	case FormatSRT:
		_, err := ParseSRT(text)
		return err
	case FormatVTT:
		ok = strings.HasPrefix(strings.TrimSpace(text), "WEBVTT") && vttTimingPattern.MatchString(text)
	case FormatASS, FormatSSA:
		ok = assEventsPattern.MatchString(text) && assDialogPattern.MatchString(text)
	case FormatMicroDVD:
		ok = microDVDPattern.MatchString(text)
	case FormatMPL2:
		ok = mpl2Pattern.MatchString(text)
	case FormatTMP:
		ok = tmpPattern.MatchString(text)
	case FormatSAMI:
		ok = samiSyncPattern.MatchString(text)
	default:
		return fmt.Errorf("unsupported format %q", format)
	}
	if !ok {
		return fmt.Errorf("%s: %w", format, errNoCues)
	}
	return nil
}

// Cue is one timed SRT entry.
type Cue struct {
	Index int
	Start time.Duration
	End   time.Duration
	Lines []string
}

var errNoCues = errors.New("no subtitle cues")

// ParseSRT parses SRT text. Blocks without a timing line are skipped; text
// with no usable cue at all is an error.
func ParseSRT(text string) ([]Cue, error) {
	text = strings.TrimPrefix(text, "\ufeff")
	text = strings.ReplaceAll(text, "\r\n", "\n")
	var cues []Cue
	for _, block := range splitBlocks(text) {
		lines := strings.Split(block, "\n")
		cue := Cue{Index: len(cues) + 1}
		i := 0
		if isNumeric(lines[0]) {
			cue.Index, _ = strconv.Atoi(strings.TrimSpace(lines[0]))
			i++
		}
		if i >= len(lines) {
			continue
		}
		m := srtTimingPattern.FindStringSubmatch(lines[i])
		if m == nil {
			continue
		}
		start, err := parseSRTTimestamp(m[1])
		if err != nil {
			return nil, fmt.Errorf("cue %d: %w", cue.Index, err)
		}
		end, err := parseSRTTimestamp(m[2])
		if err != nil {
			return nil, fmt.Errorf("cue %d: %w", cue.Index, err)
		}
		if end < start {
			return nil, fmt.Errorf("cue %d: ends before it starts", cue.Index)
		}
		cue.Start, cue.End = start, end
		cue.Lines = subtitleTextLines(lines)
		cues = append(cues, cue)
	}
	if len(cues) == 0 {
		return nil, errNoCues
	}
	return cues, nil
}

// Bounds returns the first start and last end of cues.
func Bounds(cues []Cue) (time.Duration, time.Duration) {
	if len(cues) == 0 {
		return 0, 0
	}
	first, last := cues[0].Start, cues[0].End
	for _, cue := range cues[1:] {
		first = min(first, cue.Start)
		last = max(last, cue.End)
	}
	return first, last
}

func parseSRTTimestamp(value string) (time.Duration, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, fmt.Errorf("empty timestamp")
	}
	value = strings.ReplaceAll(value, ".", ",")
	timeParts := strings.Split(value, ",")
	if len(timeParts) != 2 {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}
	hms := strings.Split(timeParts[0], ":")
	if len(hms) != 3 {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}
	hours, errH := strconv.Atoi(hms[0])
	minutes, errM := strconv.Atoi(hms[1])
	seconds, errS := strconv.Atoi(hms[2])
	// Short fractions are decimal digits: ",5" is half a second.
	fraction := (timeParts[1] + "00")[:3]
	millis, errMS := strconv.Atoi(fraction)
	if errH != nil || errM != nil || errS != nil || errMS != nil {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}
	if minutes > 59 || seconds > 59 {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}
	total := time.Duration(hours)*time.Hour +
		time.Duration(minutes)*time.Minute +
		time.Duration(seconds)*time.Second +
		time.Duration(millis)*time.Millisecond
	return total, nil
}
