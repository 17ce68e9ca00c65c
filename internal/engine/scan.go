package engine

import (
	"context"
	"errors"
	"io/fs"
	"os"

	"subseek/internal/logging"
	"subseek/internal/refine"
	"subseek/internal/services"
	"subseek/internal/video"
)

// ScanVideo builds a Video for path. An existing file is scanned, its
// external subtitles recorded and the refiners applied; a path that does
// not exist is treated as a release name.
func (e *Engine) ScanVideo(ctx context.Context, path string) (*video.Video, error) {
	ctx = services.WithVideo(ctx, path)
	logger := logging.WithContext(ctx, e.logger)

	info, err := os.Stat(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		v, err := video.FromName(path)
		if err != nil {
			return nil, services.Wrap(services.ErrValidation, "engine", "scan", path, err)
		}
		logger.Debug("using hypothetical video", logging.String("kind", v.Kind().String()))
		return v, nil
	case err != nil:
		return nil, services.Wrap(services.ErrTransient, "engine", "scan", path, err)
	case info.IsDir():
		return nil, services.Wrap(services.ErrValidation, "engine", "scan", path+" is a directory", nil)
	}

	v, err := video.Scan(path, "")
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "engine", "scan", path, err)
	}
	e.addExternalSubtitles(ctx, v)
	if err := refine.Apply(ctx, v, e.refiners, logger); err != nil {
		return nil, services.Wrap(services.ErrTransient, "engine", "refine", path, err)
	}
	logger.Debug("video scanned",
		logging.String("kind", v.Kind().String()),
		logging.Int64("size", v.Size),
		logging.String("subtitle_languages", v.SubtitleLanguages.String()),
	)
	return v, nil
}

func (e *Engine) addExternalSubtitles(ctx context.Context, v *video.Video) {
	dirs := []string{""}
	if e.save.Directory != "" {
		dirs = append(dirs, e.save.Directory)
	}
	for _, dir := range dirs {
		found, err := video.SearchExternalSubtitles(v.Name(), dir)
		if err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				logging.WithContext(ctx, e.logger).Debug("external subtitle search failed", logging.Error(err))
			}
			continue
		}
		for _, ext := range found {
			v.AddSubtitleLanguage(ext.Language)
		}
	}
}

// ScanPaths expands directories into the video files below them and scans
// every path. Paths that fail are reported in the joined error; the videos
// that scanned are returned either way.
func (e *Engine) ScanPaths(ctx context.Context, paths []string) ([]*video.Video, error) {
	var (
		videos []*video.Video
		errs   []error
	)
	for _, path := range paths {
		targets, err := e.expand(path)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		for _, target := range targets {
			if err := ctx.Err(); err != nil {
				return videos, err
			}
			v, err := e.ScanVideo(ctx, target)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			videos = append(videos, v)
		}
	}
	return videos, errors.Join(errs...)
}
