package refine

import (
	"context"

	"subseek/internal/cache"
	"subseek/internal/language"
	"subseek/internal/media/ffprobe"
	"subseek/internal/video"
)

// MediaName identifies the media refiner in configuration.
const MediaName = "media"

// ProbeFunc inspects a media file.
type ProbeFunc func(ctx context.Context, binary, path string) (ffprobe.Result, error)

// Media reads container properties with ffprobe: frame rate, duration,
// resolution, codecs and embedded subtitle languages. Fields already set
// are kept.
type Media struct {
	Binary string
	// Cache memoizes probe results per file size and modification time.
	Cache *cache.Cache
	// Probe defaults to ffprobe.Inspect.
	Probe ProbeFunc
}

// mediaInfo is the cached projection of a probe result.
type mediaInfo struct {
	FPS        float64             `json:"fps"`
	Duration   float64             `json:"duration"`
	Resolution string              `json:"resolution,omitempty"`
	VideoCodec string              `json:"video_codec,omitempty"`
	AudioCodec string              `json:"audio_codec,omitempty"`
	Subtitles  []language.Language `json:"subtitles,omitempty"`
}

func (m *Media) Name() string { return MediaName }

func (m *Media) Refine(ctx context.Context, v *video.Video) error {
	if !v.Exists() {
		return nil
	}
	key := cache.Key("refine", "media", v.Name(), v.Size, v.ModTime.UnixNano())
	info, err := cache.GetOrCompute(ctx, m.Cache, key, cache.RefinerTTL, func(ctx context.Context) (mediaInfo, error) {
		return m.inspect(ctx, v.Name())
	})
	if err != nil {
		return err
	}
	apply(v, info)
	return nil
}

func (m *Media) inspect(ctx context.Context, path string) (mediaInfo, error) {
	probe := m.Probe
	if probe == nil {
		probe = ffprobe.Inspect
	}
	res, err := probe(ctx, m.Binary, path)
	if err != nil {
		return mediaInfo{}, err
	}
	info := mediaInfo{
		FPS:       res.FrameRate(),
		Duration:  res.DurationSeconds(),
		Subtitles: res.SubtitleLanguages(),
	}
	if stream, ok := res.VideoStream(); ok {
		info.Resolution = video.ResolutionFromHeight(stream.Height, stream.Interlaced())
		info.VideoCodec = video.NormalizeVideoCodec(stream.CodecName)
	}
	if stream, ok := res.AudioStream(); ok {
		info.AudioCodec = video.NormalizeAudioCodec(stream.CodecName)
	}
	return info, nil
}

func apply(v *video.Video, info mediaInfo) {
	if v.FPS == 0 {
		v.FPS = info.FPS
	}
	if v.Duration == 0 {
		v.Duration = info.Duration
	}
	if v.Resolution == "" {
		v.Resolution = info.Resolution
	}
	if v.VideoCodec == "" {
		v.VideoCodec = info.VideoCodec
	}
	if v.AudioCodec == "" {
		v.AudioCodec = info.AudioCodec
	}
	for _, lang := range info.Subtitles {
		v.AddSubtitleLanguage(lang)
	}
}
