package video

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"subseek/internal/language"
	"subseek/internal/logging"
)

// ErrNotVideo is returned by Scan for paths without a video extension.
var ErrNotVideo = errors.New("not a video file")

var videoExtensions = []string{
	".3g2", ".3gp", ".3gp2", ".3gpp", ".60d", ".ajp", ".asf", ".asx", ".avchd", ".avi",
	".bik", ".bix", ".box", ".cam", ".dat", ".divx", ".dmf", ".dv", ".dvr-ms", ".evo",
	".flc", ".fli", ".flic", ".flv", ".flx", ".gvi", ".gvp", ".h264", ".m1v", ".m2p",
	".m2ts", ".m2v", ".m4e", ".m4v", ".mjp", ".mjpeg", ".mjpg", ".mk3d", ".mkv", ".moov",
	".mov", ".movhd", ".movie", ".movx", ".mp4", ".mpe", ".mpeg", ".mpg", ".mpv", ".mpv2",
	".mxf", ".nsv", ".nut", ".ogg", ".ogm", ".ogv", ".omf", ".ps", ".qt", ".ram",
	".rm", ".rmvb", ".swf", ".ts", ".vfw", ".vid", ".video", ".viv", ".vivo", ".vob",
	".vro", ".webm", ".wm", ".wmv", ".wmx", ".wrap", ".wvx", ".wx", ".x264", ".xvid",
}

// IsVideoExtension reports whether ext (with its leading dot) names a video container.
func IsVideoExtension(ext string) bool {
	return slices.Contains(videoExtensions, strings.ToLower(ext))
}

// Scan builds a Video from an existing file. When name is non-empty it is
// parsed instead of the path, which is still recorded as the video name.
func Scan(path, name string) (*Video, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("scan %s: %w: is a directory", path, ErrNotVideo)
	}
	if !IsVideoExtension(filepath.Ext(path)) {
		return nil, fmt.Errorf("scan %s: %w: %q is not a video extension", path, ErrNotVideo, filepath.Ext(path))
	}

	guessFrom := path
	if strings.TrimSpace(name) != "" {
		guessFrom = name
	}
	props, err := ParseName(guessFrom)
	if err != nil {
		return nil, err
	}
	v, err := FromProperties(path, props)
	if err != nil {
		return nil, err
	}
	v.Size = info.Size()
	v.ModTime = info.ModTime()
	v.ChangeTime = changeTime(path, info)
	return v, nil
}

// CollectPaths walks root and returns video files in lexical order. Hidden
// files and directories, "sample" files and directories, symlinks, and files
// older than maxAge (when positive) are skipped.
func CollectPaths(root string, maxAge time.Duration, logger *slog.Logger) ([]string, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("collect %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("collect %s: not a directory", root)
	}

	now := time.Now()
	var paths []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		base := d.Name()
		if d.IsDir() {
			if path == root {
				return nil
			}
			if strings.HasPrefix(base, ".") || strings.EqualFold(base, "sample") {
				logger.Debug("skipping directory", logging.String("path", path))
				return filepath.SkipDir
			}
			return nil
		}
		if !IsVideoExtension(filepath.Ext(base)) {
			return nil
		}
		switch {
		case strings.HasPrefix(base, "."):
			logger.Debug("skipping hidden file", logging.String("path", path))
			return nil
		case strings.EqualFold(strings.TrimSuffix(base, filepath.Ext(base)), "sample"):
			logger.Debug("skipping sample file", logging.String("path", path))
			return nil
		case d.Type()&fs.ModeSymlink != 0:
			logger.Debug("skipping link", logging.String("path", path))
			return nil
		}
		if maxAge > 0 {
			fi, err := d.Info()
			if err != nil {
				logger.Warn("could not read file age",
					logging.String("path", path),
					logging.Error(err),
					logging.String(logging.FieldEventType, "video_age_unavailable"),
					logging.String(logging.FieldErrorHint, "check file permissions"),
				)
				return nil
			}
			if now.Sub(fi.ModTime()) > maxAge {
				logger.Debug("skipping old file", logging.String("path", path))
				return nil
			}
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("collect %s: %w", root, err)
	}
	return paths, nil
}

// Check reports whether v still needs subtitles. It fails when every wanted
// language is already present, when v is older than maxAge (if positive),
// or when undefined is set and a subtitle of undetermined language exists.
func Check(v *Video, languages language.Set, maxAge time.Duration, undefined bool) bool {
	if languages.Len() > 0 && languages.Difference(v.SubtitleLanguages).Len() == 0 {
		return false
	}
	if maxAge > 0 && v.Age() > maxAge {
		return false
	}
	if undefined && v.SubtitleLanguages.Has(language.Und) {
		return false
	}
	return true
}
