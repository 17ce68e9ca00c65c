// Package providertest provides a scriptable in-memory provider for tests of
// the pool, selection and engine packages.
package providertest

import (
	"context"
	"errors"
	"sync"
	"time"

	"subseek/internal/language"
	"subseek/internal/provider"
	"subseek/internal/score"
	"subseek/internal/subtitle"
	"subseek/internal/video"
)

// Calls counts the invocations of each Provider method.
type Calls struct {
	Initialize int
	Terminate  int
	List       int
	Download   int
}

// Fake is a Provider whose results, errors and latency are set by the test.
// Its fields may be changed between calls but not during one.
type Fake struct {
	ProviderName string
	Caps         provider.Capabilities

	// ListErr is returned by every ListSubtitles call when set.
	ListErr error
	// InitErr is returned by Initialize when set.
	InitErr error
	// Delay is slept (honouring cancellation) before listing and downloading.
	Delay time.Duration
	// CheckFunc overrides Capabilities().Check when set.
	CheckFunc func(*video.Video) bool

	mu          sync.Mutex
	subtitles   []*subtitle.Subtitle
	contents    map[string][]byte
	downloadErr map[string]error
	calls       Calls
}

// New returns a fake serving episodes and movies in any language.
func New(name string) *Fake {
	return &Fake{
		ProviderName: name,
		Caps:         provider.Capabilities{Episodes: true, Movies: true},
		contents:     make(map[string][]byte),
		downloadErr:  make(map[string]error),
	}
}

// Factory adapts f for registration.
func (f *Fake) Factory() provider.Factory {
	return func(provider.Deps) (provider.Provider, error) { return f, nil }
}

// AddSubtitle registers a candidate whose matcher returns matches and whose
// download yields content. A nil content makes the download fail.
func (f *Fake) AddSubtitle(id string, lang language.Language, matches score.Set, content []byte) *subtitle.Subtitle {
	s := subtitle.New(f.ProviderName, id, lang)
	fixed := matches.Clone()
	s.Metadata = subtitle.MatcherFunc(func(*video.Video) score.Set { return fixed.Clone() })
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subtitles = append(f.subtitles, s)
	if content != nil {
		f.contents[id] = append([]byte(nil), content...)
	}
	return s
}

// FailDownload makes downloads of id return err.
func (f *Fake) FailDownload(id string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.downloadErr[id] = err
}

// Calls returns a snapshot of the call counters.
func (f *Fake) Calls() Calls {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *Fake) Name() string { return f.ProviderName }

func (f *Fake) Capabilities() provider.Capabilities { return f.Caps }

func (f *Fake) Check(v *video.Video) bool {
	if f.CheckFunc != nil {
		return f.CheckFunc(v)
	}
	return f.Caps.Check(v)
}

func (f *Fake) Initialize(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls.Initialize++
	return f.InitErr
}

func (f *Fake) Terminate(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls.Terminate++
	return nil
}

// ListSubtitles returns copies of the registered subtitles in langs, in
// registration order.
func (f *Fake) ListSubtitles(ctx context.Context, _ *video.Video, langs language.Set) ([]*subtitle.Subtitle, error) {
	f.mu.Lock()
	f.calls.List++
	f.mu.Unlock()

	if err := sleep(ctx, f.Delay); err != nil {
		return nil, err
	}
	if f.ListErr != nil {
		return nil, f.ListErr
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*subtitle.Subtitle, 0, len(f.subtitles))
	for _, s := range f.subtitles {
		if langs != nil && !langs.Has(s.Language) {
			continue
		}
		out = append(out, clone(s))
	}
	return out, nil
}

func (f *Fake) DownloadSubtitle(ctx context.Context, s *subtitle.Subtitle) error {
	f.mu.Lock()
	f.calls.Download++
	f.mu.Unlock()

	if err := sleep(ctx, f.Delay); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.downloadErr[s.ID]; err != nil {
		return err
	}
	content, ok := f.contents[s.ID]
	if !ok {
		return provider.Wrap(provider.ErrTransient, f.ProviderName, "download", "no content for "+s.ID, nil)
	}
	s.SetContent(append([]byte(nil), content...))
	return nil
}

func clone(s *subtitle.Subtitle) *subtitle.Subtitle {
	c := subtitle.New(s.Provider, s.ID, s.Language)
	c.LanguageType = s.LanguageType
	c.ReleaseName = s.ReleaseName
	c.Format = s.Format
	c.FPS = s.FPS
	c.ContentID = s.ContentID
	c.Metadata = s.Metadata
	c.Encoding = s.Encoding
	c.PageLink = s.PageLink
	return c
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

var _ provider.Provider = (*Fake)(nil)

// ErrBoom is a convenience transient failure.
var ErrBoom = provider.Wrap(provider.ErrTransient, "fake", "list", "boom", errors.New("connection reset"))
