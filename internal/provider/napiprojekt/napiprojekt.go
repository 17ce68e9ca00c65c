// Package napiprojekt implements the napiprojekt.pl provider. It serves
// Polish subtitles looked up by the napiprojekt fingerprint only, and the
// lookup answer already carries the subtitle text.
package napiprojekt

import (
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"subseek/internal/config"
	"subseek/internal/fingerprint"
	"subseek/internal/language"
	"subseek/internal/logging"
	"subseek/internal/provider"
	"subseek/internal/score"
	"subseek/internal/subtitle"
	"subseek/internal/video"
)

const (
	providerName   = "napiprojekt"
	defaultBaseURL = "https://napiprojekt.pl/unit_napisy/dl.php"
	defaultTimeout = 10 * time.Second
	maxBodyBytes   = 8 << 20

	// defaultFPS is the frame rate napiprojekt assumes for frame-based files.
	defaultFPS = 24
)

var (
	gzipMagic     = []byte{0x1f, 0x8b, 0x08}
	notFoundMagic = []byte("NPc0")
)

// Provider is the napiprojekt.pl provider.
type Provider struct {
	cfg    config.NapiProjekt
	logger *slog.Logger
	caps   provider.Capabilities
	http   *http.Client

	client *http.Client
}

// New builds the provider; it needs no credentials.
func New(deps provider.Deps) (*Provider, error) {
	var cfg config.NapiProjekt
	if deps.Config != nil {
		cfg = deps.Config.Providers.NapiProjekt
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, provider.Wrap(provider.ErrConfiguration, providerName, "new", "invalid base_url", err)
	}
	return &Provider{
		cfg:    cfg,
		logger: deps.ProviderLogger(providerName),
		http:   deps.HTTPClient,
		caps: provider.Capabilities{
			Languages:    language.NewSet(language.MustParse("pl")),
			Episodes:     true,
			Movies:       true,
			RequiredHash: fingerprint.AlgorithmNapiProjekt,
		},
	}, nil
}

// Factory is the registry constructor.
func Factory(deps provider.Deps) (provider.Provider, error) {
	return New(deps)
}

func (p *Provider) Name() string                        { return providerName }
func (p *Provider) Capabilities() provider.Capabilities { return p.caps }
func (p *Provider) Check(v *video.Video) bool           { return p.caps.Check(v) }

func (p *Provider) Initialize(context.Context) error {
	client := p.http
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	p.client = client
	return nil
}

func (p *Provider) Terminate(context.Context) error {
	if p.client == nil {
		return provider.Wrap(provider.ErrNotInitialized, providerName, "terminate", "", nil)
	}
	p.client = nil
	return nil
}

// ListSubtitles asks for one subtitle per requested language.
func (p *Provider) ListSubtitles(ctx context.Context, v *video.Video, langs language.Set) ([]*subtitle.Subtitle, error) {
	if p.client == nil {
		return nil, provider.Wrap(provider.ErrNotInitialized, providerName, "list", "", nil)
	}
	hash, ok := v.Hash(fingerprint.AlgorithmNapiProjekt)
	if !ok {
		return nil, nil
	}
	var subs []*subtitle.Subtitle
	for _, lang := range p.caps.CheckLanguages(langs).Sorted() {
		s, err := p.query(ctx, lang, hash)
		if err != nil {
			return nil, err
		}
		if s != nil {
			subs = append(subs, s)
		}
	}
	return subs, nil
}

// DownloadSubtitle is a no-op: content is filled while listing.
func (p *Provider) DownloadSubtitle(_ context.Context, s *subtitle.Subtitle) error {
	if !s.HasContent() {
		return provider.Wrap(provider.ErrTransient, providerName, "download", "subtitle has no content: "+s.ID, nil)
	}
	return nil
}

func (p *Provider) query(ctx context.Context, lang language.Language, hash string) (*subtitle.Subtitle, error) {
	sub, err := Subhash(hash)
	if err != nil {
		return nil, provider.Wrap(provider.ErrTransient, providerName, "list", "invalid video hash", err)
	}
	params := url.Values{}
	params.Set("v", "dreambox")
	params.Set("kolejka", "false")
	params.Set("nick", p.cfg.Username)
	params.Set("pass", p.cfg.Password)
	params.Set("napios", "Linux")
	params.Set("l", strings.ToUpper(lang.Alpha2()))
	params.Set("f", hash)
	params.Set("t", sub)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.BaseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, provider.Wrap(provider.ErrConfiguration, providerName, "list", "build request", err)
	}
	p.logger.Debug("searching subtitle", logging.String("hash", hash), logging.String("language", lang.String()))
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, provider.Wrap(provider.Classify(err), providerName, "list", "request failed", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		httpErr := &provider.HTTPError{
			Provider:   providerName,
			Operation:  "list",
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(body)),
		}
		return nil, provider.Wrap(provider.Classify(httpErr), providerName, "list", "unexpected status", httpErr)
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, provider.Wrap(provider.Classify(err), providerName, "list", "read response", err)
	}

	content := parseContent(raw)
	if len(content) == 0 {
		p.logger.Debug("no subtitle found", logging.String("hash", hash))
		return nil, nil
	}
	s := subtitle.New(providerName, hash, lang)
	s.FPS = defaultFPS
	s.ReleaseName = hash
	s.Metadata = subtitle.MatcherFunc(func(v *video.Video) score.Set {
		matches := score.NewSet()
		if h, ok := v.Hash(fingerprint.AlgorithmNapiProjekt); ok && h == hash {
			matches.Add(score.Hash)
		}
		return matches
	})
	s.SetContent(content)
	return s, nil
}

// parseContent unpacks a gzip answer and maps the not-found marker to nil.
func parseContent(raw []byte) []byte {
	if bytes.HasPrefix(raw, gzipMagic) {
		zr, err := gzip.NewReader(bytes.NewReader(raw))
		if err != nil {
			return nil
		}
		defer zr.Close()
		out, err := io.ReadAll(io.LimitReader(zr, maxBodyBytes))
		if err != nil {
			return nil
		}
		raw = out
	}
	if bytes.HasPrefix(raw, notFoundMagic) {
		return nil
	}
	return raw
}

var (
	subhashIndex = [5]int{0xe, 0x3, 0x6, 0x8, 0x2}
	subhashMul   = [5]int{2, 2, 5, 4, 3}
	subhashAdd   = [5]int{0, 0xd, 0x10, 0xb, 0x5}
)

// Subhash derives the second hash the napiprojekt API expects from a video
// hash.
func Subhash(hash string) (string, error) {
	if len(hash) < 32 {
		return "", fmt.Errorf("napiprojekt hash %q is too short", hash)
	}
	out := make([]byte, 0, len(subhashIndex))
	for i := range subhashIndex {
		digit, err := strconv.ParseInt(hash[subhashIndex[i]:subhashIndex[i]+1], 16, 64)
		if err != nil {
			return "", fmt.Errorf("napiprojekt hash %q: %w", hash, err)
		}
		t := subhashAdd[i] + int(digit)
		value, err := strconv.ParseInt(hash[t:min(t+2, len(hash))], 16, 64)
		if err != nil {
			return "", fmt.Errorf("napiprojekt hash %q: %w", hash, err)
		}
		product := strconv.FormatInt(value*int64(subhashMul[i]), 16)
		out = append(out, product[len(product)-1])
	}
	return string(out), nil
}

var _ provider.Provider = (*Provider)(nil)
