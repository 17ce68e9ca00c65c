package video

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"subseek/internal/language"
)

// subtitleFormats maps subtitle file extensions to format names.
var subtitleFormats = map[string]string{
	".srt": "srt",
	".ass": "ass",
	".ssa": "ssa",
	".sub": "microdvd",
	".mpl": "mpl2",
	".txt": "tmp",
	".vtt": "vtt",
	".smi": "sami",
}

var (
	hearingImpairedMarkers = []string{"[hi]", "[sdh]", "[cc]", "hi", "sdh", "cc"}
	foreignOnlyMarkers     = []string{"[fo]", "fo", "[forced]", "forced"}
)

// ExternalSubtitle is a subtitle file found next to a video.
type ExternalSubtitle struct {
	// Path is the file name relative to the searched directory.
	Path            string
	Language        language.Language
	HearingImpaired bool
	ForeignOnly     bool
	Format          string
}

// IsSubtitleExtension reports whether ext (with its leading dot) is a known
// subtitle extension.
func IsSubtitleExtension(ext string) bool {
	_, ok := subtitleFormats[strings.ToLower(ext)]
	return ok
}

// SearchExternalSubtitles lists subtitle files sharing the video's file root,
// keyed by file name. The directory of path is searched unless dir is set.
func SearchExternalSubtitles(path, dir string) (map[string]ExternalSubtitle, error) {
	dirPath, fileName := filepath.Split(path)
	if dir == "" {
		dir = dirPath
	}
	if dir == "" {
		dir = "."
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("search subtitles in %s: %w", dir, err)
	}

	found := make(map[string]ExternalSubtitle)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		code, ok := languageSuffix(entry.Name(), fileName)
		if !ok {
			continue
		}
		found[entry.Name()] = parseExternal(entry.Name(), code)
	}
	return found, nil
}

// languageSuffix returns the part of subtitleName between the video's file
// root and the subtitle extension, without the leading dot.
func languageSuffix(subtitleName, videoName string) (string, bool) {
	videoExt := filepath.Ext(videoName)
	root := strings.TrimSuffix(videoName, videoExt)
	ext := filepath.Ext(subtitleName)
	if !strings.HasPrefix(subtitleName, root) || !IsSubtitleExtension(ext) {
		return "", false
	}
	code := strings.TrimSuffix(strings.TrimPrefix(subtitleName, root), ext)
	code = strings.ReplaceAll(code, videoExt, "")
	code = strings.ReplaceAll(code, "_", "-")
	return strings.TrimPrefix(code, "."), true
}

// parseExternal decodes suffixes such as "en", "pt-BR", "[hi].en", "en.sdh"
// and "fo.fr". A bare code is tried as a language first so "hi" stays Hindi.
func parseExternal(name, code string) ExternalSubtitle {
	sub := ExternalSubtitle{
		Path:     name,
		Language: language.Und,
		Format:   subtitleFormats[strings.ToLower(filepath.Ext(name))],
	}
	if code == "" {
		return sub
	}
	if lang, err := language.Parse(code); err == nil {
		sub.Language = lang
		return sub
	}
	if rest, ok := trimMarker(code, hearingImpairedMarkers); ok {
		if lang, err := language.Parse(rest); err == nil {
			sub.Language = lang
			sub.HearingImpaired = true
			return sub
		}
	}
	if rest, ok := trimMarker(code, foreignOnlyMarkers); ok {
		if lang, err := language.Parse(rest); err == nil {
			sub.Language = lang
			sub.ForeignOnly = true
			return sub
		}
	}
	return sub
}

func trimMarker(code string, markers []string) (string, bool) {
	lower := strings.ToLower(code)
	for _, m := range markers {
		if strings.HasPrefix(lower, m+".") {
			return code[len(m)+1:], true
		}
		if strings.HasSuffix(lower, "."+m) {
			return code[:len(code)-len(m)-1], true
		}
	}
	return code, false
}
