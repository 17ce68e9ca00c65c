// Package localdir serves subtitles from a local archive directory
// described by an index.yaml file.
package localdir

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"subseek/internal/fileutil"
	"subseek/internal/language"
	"subseek/internal/logging"
	"subseek/internal/provider"
	"subseek/internal/score"
	"subseek/internal/subtitle"
	"subseek/internal/video"
)

const (
	providerName    = "localdir"
	maxSubtitleSize = 8 << 20
)

// Provider lists entries from the archive index and reads their files on
// download.
type Provider struct {
	root   string
	logger *slog.Logger
	caps   provider.Capabilities

	mu    sync.RWMutex
	index *Index
}

// New requires [providers.localdir] root to name an existing directory.
func New(deps provider.Deps) (*Provider, error) {
	var root string
	if deps.Config != nil {
		root = strings.TrimSpace(deps.Config.Providers.LocalDir.Root)
	}
	if root == "" {
		return nil, provider.Wrap(provider.ErrConfiguration, providerName, "new", "root is required", nil)
	}
	return &Provider{
		root:   root,
		logger: deps.ProviderLogger(providerName),
		caps:   provider.Capabilities{Episodes: true, Movies: true},
	}, nil
}

// Factory is the registry constructor.
func Factory(deps provider.Deps) (provider.Provider, error) {
	return New(deps)
}

func (p *Provider) Name() string                        { return providerName }
func (p *Provider) Capabilities() provider.Capabilities { return p.caps }
func (p *Provider) Check(v *video.Video) bool           { return p.caps.Check(v) }

// Initialize loads the index. A missing or malformed index is a
// configuration error.
func (p *Provider) Initialize(context.Context) error {
	info, err := os.Stat(p.root)
	if err != nil || !info.IsDir() {
		return provider.Wrap(provider.ErrConfiguration, providerName, "initialize", "root is not a directory: "+p.root, err)
	}
	idx, err := LoadIndex(p.root)
	if err != nil {
		return provider.Wrap(provider.ErrConfiguration, providerName, "initialize", "load "+IndexFile, err)
	}
	p.mu.Lock()
	p.index = idx
	p.mu.Unlock()
	p.logger.Debug("archive index loaded",
		logging.String("root", p.root),
		logging.Int("entries", len(idx.Subtitles)),
	)
	return nil
}

func (p *Provider) Terminate(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.index == nil {
		return provider.Wrap(provider.ErrNotInitialized, providerName, "terminate", "", nil)
	}
	p.index = nil
	return nil
}

// ListSubtitles returns every entry of the right kind in one of langs.
func (p *Provider) ListSubtitles(_ context.Context, v *video.Video, langs language.Set) ([]*subtitle.Subtitle, error) {
	p.mu.RLock()
	idx := p.index
	p.mu.RUnlock()
	if idx == nil {
		return nil, provider.Wrap(provider.ErrNotInitialized, providerName, "list", "", nil)
	}
	var subs []*subtitle.Subtitle
	for _, e := range idx.Subtitles {
		if !langs.Has(e.lang) {
			continue
		}
		if e.IsEpisode() != (v.Kind() == video.Episode) {
			continue
		}
		s := subtitle.New(providerName, e.ID, e.lang)
		s.LanguageType = subtitle.FromFlags(e.HearingImpaired, e.ForeignOnly)
		s.ReleaseName = e.Release
		if s.ReleaseName == "" {
			s.ReleaseName = strings.TrimSuffix(filepath.Base(e.File), filepath.Ext(e.File))
		}
		s.FPS = e.FPS
		s.Format = subtitle.FormatFromExtension(filepath.Ext(e.File))
		s.Metadata = entryMatcher{entry: e}
		subs = append(subs, s)
	}
	return subs, nil
}

// DownloadSubtitle reads the archived file.
func (p *Provider) DownloadSubtitle(_ context.Context, s *subtitle.Subtitle) error {
	m, ok := s.Metadata.(entryMatcher)
	if !ok {
		return provider.Wrap(provider.ErrTransient, providerName, "download", "subtitle not from this archive: "+s.Key(), nil)
	}
	data, err := fileutil.ReadFileLimit(filepath.Join(p.root, m.entry.File), maxSubtitleSize)
	if err != nil {
		return provider.Wrap(provider.ErrTransient, providerName, "download", "read "+m.entry.File, err)
	}
	s.SetContent(data)
	return nil
}

type entryMatcher struct {
	entry Entry
}

// Matches compares the indexed attributes, the release name and any
// recorded fingerprints with v.
func (m entryMatcher) Matches(v *video.Video) score.Set {
	e := m.entry
	for alg, want := range e.Hashes {
		if got, ok := v.Hash(alg); ok && strings.EqualFold(got, want) {
			return score.NewSet(score.Hash)
		}
	}

	g := score.Guess{Year: e.Year, Season: e.Season, Episodes: e.Episodes, FPS: e.FPS}
	if e.IsEpisode() {
		g.Title = e.Series
		g.EpisodeTitle = e.Title
	} else {
		g.Title = e.Title
	}
	matches := score.GuessMatches(v, g, false, false)
	if e.Release != "" {
		if props, err := video.ParseName(e.Release); err == nil {
			for match := range score.GuessMatches(v, score.GuessFromProperties(props), false, false) {
				matches.Add(match)
			}
		}
	}
	if e.IMDbID != "" && strings.EqualFold(e.IMDbID, v.IMDbID) {
		matches.Add(score.IMDbID)
	}
	if e.SeriesIMDbID != "" && strings.EqualFold(e.SeriesIMDbID, v.SeriesIMDbID) {
		matches.Add(score.SeriesIMDbID)
	}
	return matches
}

var _ provider.Provider = (*Provider)(nil)
