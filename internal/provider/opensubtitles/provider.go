package opensubtitles

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"subseek/internal/cache"
	"subseek/internal/config"
	"subseek/internal/fingerprint"
	"subseek/internal/language"
	"subseek/internal/logging"
	"subseek/internal/provider"
	"subseek/internal/score"
	"subseek/internal/subtitle"
	"subseek/internal/video"
)

const providerName = "opensubtitles"

// tokenTTL is how long a login token stays valid on the server.
const tokenTTL = 24 * time.Hour

// Provider searches and downloads from opensubtitles.com.
type Provider struct {
	cfg    config.OpenSubtitles
	cache  *cache.Cache
	logger *slog.Logger
	http   *http.Client
	caps   provider.Capabilities

	payloadDir  string
	minInterval time.Duration
	rateRetries int
	backoff     time.Duration

	// sess is nil outside Initialize..Terminate. Each call loads it once.
	sess atomic.Pointer[session]
}

type session struct {
	client   *Client
	payloads *Payloads
}

// New builds the provider from [providers.opensubtitles]. It fails with a
// configuration error when the API key is missing or only one of username
// and password is set.
func New(deps provider.Deps) (*Provider, error) {
	if deps.Config == nil {
		return nil, provider.Wrap(provider.ErrConfiguration, providerName, "new", "config is nil", nil)
	}
	cfg := deps.Config.Providers.OpenSubtitles
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, provider.Wrap(provider.ErrConfiguration, providerName, "new", "api_key is required", nil)
	}
	if (cfg.Username == "") != (cfg.Password == "") {
		return nil, provider.Wrap(provider.ErrConfiguration, providerName, "new", "username and password must be set together", nil)
	}
	p := &Provider{
		cfg:         cfg,
		cache:       deps.Cache,
		logger:      deps.ProviderLogger(providerName),
		http:        deps.HTTPClient,
		minInterval: MinInterval,
		rateRetries: MaxRateRetries,
		backoff:     InitialBackoff,
		caps: provider.Capabilities{
			Languages: Languages(),
			Episodes:  true,
			Movies:    true,
		},
	}
	if cfg.DownloadCache {
		p.payloadDir = deps.Config.OpenSubtitlesCacheDir()
	}
	return p, nil
}

// Factory is the registry constructor.
func Factory(deps provider.Deps) (provider.Provider, error) {
	return New(deps)
}

func (p *Provider) Name() string { return providerName }

func (p *Provider) Capabilities() provider.Capabilities { return p.caps }

func (p *Provider) Check(v *video.Video) bool { return p.caps.Check(v) }

// HashAlgorithm lets the hash refiner compute the fingerprint used for
// moviehash searches.
func (p *Provider) HashAlgorithm() string { return fingerprint.AlgorithmOpenSubtitles }

func (p *Provider) HashVideo(path string) (string, bool, error) {
	return fingerprint.OpenSubtitles(path)
}

func (p *Provider) Initialize(context.Context) error {
	client, err := NewClient(ClientConfig{
		APIKey:         p.cfg.APIKey,
		UserAgent:      p.cfg.UserAgent,
		UserToken:      p.cfg.UserToken,
		BaseURL:        p.cfg.BaseURL,
		HTTPClient:     p.http,
		MinInterval:    p.minInterval,
		RateRetries:    p.rateRetries,
		InitialBackoff: p.backoff,
	})
	if err != nil {
		return provider.Wrap(provider.ErrConfiguration, providerName, "initialize", "build client", err)
	}
	sess := &session{client: client}
	if p.payloadDir != "" {
		payloads, err := NewPayloads(p.payloadDir, p.logger)
		if err != nil {
			p.logger.Warn("payload cache disabled",
				logging.Error(err),
				logging.String(logging.FieldEventType, "payload_cache_unavailable"),
				logging.String(logging.FieldErrorHint, "check permissions on the cache directory"),
			)
		} else {
			sess.payloads = payloads
		}
	}
	p.sess.Store(sess)
	return nil
}

// Terminate drops the session. The token stays cached for the next run, so
// no logout call is made.
func (p *Provider) Terminate(context.Context) error {
	if p.sess.Swap(nil) == nil {
		return provider.Wrap(provider.ErrNotInitialized, providerName, "terminate", "", nil)
	}
	return nil
}

// ListSubtitles runs every search variant for v and merges the answers,
// dropping duplicates and machine translations, ordered by download count.
func (p *Provider) ListSubtitles(ctx context.Context, v *video.Video, langs language.Set) ([]*subtitle.Subtitle, error) {
	sess := p.sess.Load()
	if sess == nil {
		return nil, provider.Wrap(provider.ErrNotInitialized, providerName, "list", "", nil)
	}
	langs = p.caps.CheckLanguages(langs)
	if langs.Len() == 0 {
		return nil, nil
	}
	codes := make([]string, 0, langs.Len())
	for _, lang := range langs.Sorted() {
		codes = append(codes, apiCode(lang))
	}
	slices.Sort(codes)

	var show showIdentity
	if v.Kind() == video.Episode && v.SeriesIMDbID == "" && v.SeriesTMDbID == 0 {
		show = p.lookupShow(ctx, sess.client, v)
	}

	type found struct {
		result Result
		crit   criterion
	}
	var merged []found
	seen := make(map[string]struct{})
	for _, crit := range searchVariants(v, show, codes) {
		p.logger.Debug("searching subtitles", logging.String("params", crit.req.Params().Encode()))
		results, err := sess.client.Search(ctx, crit.req)
		if err != nil {
			return nil, p.fail("list", "search subtitles", err)
		}
		for _, r := range results {
			if _, dup := seen[r.ID]; dup {
				continue
			}
			seen[r.ID] = struct{}{}
			merged = append(merged, found{result: r, crit: crit})
		}
	}

	slices.SortStableFunc(merged, func(a, b found) int {
		return cmp.Compare(b.result.DownloadCount, a.result.DownloadCount)
	})

	subs := make([]*subtitle.Subtitle, 0, len(merged))
	for _, f := range merged {
		if f.result.MachineTranslated || f.result.FileID == 0 {
			continue
		}
		s, err := p.newSubtitle(f.result, f.crit)
		if err != nil {
			p.logger.Debug("skipping subtitle", logging.String("subtitle_id", f.result.ID), logging.Error(err))
			continue
		}
		if !langs.Has(s.Language) {
			continue
		}
		subs = append(subs, s)
	}
	p.logger.Debug("opensubtitles search complete",
		logging.Int("results", len(subs)),
		logging.String("languages", langs.String()),
	)
	return subs, nil
}

func (p *Provider) newSubtitle(r Result, crit criterion) (*subtitle.Subtitle, error) {
	lang, err := parseAPICode(r.Language)
	if err != nil {
		return nil, err
	}
	s := subtitle.New(providerName, r.ID, lang)
	s.LanguageType = subtitle.FromFlags(r.HearingImpaired, r.ForeignOnly)
	s.ReleaseName = releaseInfo(r, r.ID)
	s.PageLink = r.URL
	s.FPS = r.FPS
	s.Encoding = "utf-8"
	s.Metadata = &Metadata{
		Result:      r,
		IMDBMatch:   crit.imdbMatch,
		ParentMatch: crit.parentMatch,
		TMDBMatch:   crit.tmdbMatch,
	}
	return s, nil
}

// DownloadSubtitle negotiates a link and fetches the file, serving repeat
// downloads from the payload cache when enabled.
func (p *Provider) DownloadSubtitle(ctx context.Context, s *subtitle.Subtitle) error {
	sess := p.sess.Load()
	if sess == nil {
		return provider.Wrap(provider.ErrNotInitialized, providerName, "download", "", nil)
	}
	meta, ok := s.Metadata.(*Metadata)
	if !ok || meta.FileID <= 0 {
		return provider.Wrap(provider.ErrTransient, providerName, "download", "subtitle has no file id: "+s.Key(), nil)
	}

	if sess.payloads != nil {
		if _, data, hit, err := sess.payloads.Load(meta.FileID); err != nil {
			p.logger.Debug("payload cache read failed", logging.Error(err))
		} else if hit && len(data) > 0 {
			p.logger.Debug("serving subtitle from payload cache", logging.Int64("file_id", meta.FileID))
			s.Format = subtitle.FormatSRT
			s.SetContent(data)
			return nil
		}
	}

	client := sess.client
	if err := p.ensureToken(ctx, client); err != nil {
		return err
	}
	link, err := client.RequestDownload(ctx, meta.FileID)
	if isUnauthorized(err) && p.cfg.UserToken == "" && p.cfg.Username != "" {
		p.logger.Debug("token rejected; logging in again")
		p.resetToken(ctx, client)
		if err = p.ensureToken(ctx, client); err != nil {
			return err
		}
		link, err = client.RequestDownload(ctx, meta.FileID)
	}
	if err != nil {
		return p.fail("download", "request download link", err)
	}
	if link.Link == "" {
		if link.Remaining <= 0 {
			return provider.Wrap(provider.ErrDownloadLimitExceeded, providerName, "download",
				"download quota exceeded, resets "+link.ResetTime, nil)
		}
		return provider.Wrap(provider.ErrTransient, providerName, "download", "response missing link", nil)
	}
	if link.Remaining <= 0 {
		p.logger.Warn("download quota exhausted",
			logging.String("reset_time", link.ResetTime),
			logging.String(logging.FieldEventType, "download_quota_exhausted"),
			logging.String(logging.FieldErrorHint, "wait for the quota reset or log in with a higher tier account"),
			logging.String(logging.FieldImpact, "further opensubtitles downloads will fail until reset"),
		)
	}

	data, err := client.Fetch(ctx, link.Link)
	if err != nil {
		return p.fail("download", "fetch payload", err)
	}
	if len(data) == 0 {
		return provider.Wrap(provider.ErrTransient, providerName, "download", "empty payload", nil)
	}
	s.Format = subtitle.FormatSRT
	s.SetContent(data)

	if sess.payloads != nil {
		entry := PayloadEntry{
			FileID:     meta.FileID,
			SubtitleID: s.ID,
			Language:   s.Language.String(),
			FileName:   link.FileName,
		}
		if _, err := sess.payloads.Store(entry, data); err != nil {
			p.logger.Debug("payload cache write failed", logging.Error(err))
		}
	}
	return nil
}

func (p *Provider) tokenKey() string {
	return cache.Key(providerName, "token", strings.ToLower(p.cfg.Username))
}

// ensureToken makes sure a bearer token is set when credentials exist. A
// configured user token always wins; otherwise a cached token is reused
// before logging in.
func (p *Provider) ensureToken(ctx context.Context, client *Client) error {
	if client.Token() != "" || p.cfg.Username == "" {
		return nil
	}
	if p.cache != nil {
		var token string
		if ok, err := p.cache.Get(ctx, p.tokenKey(), &token); err == nil && ok && token != "" {
			client.SetToken(token)
			return nil
		}
	}
	p.logger.Info("logging in", logging.String("username", p.cfg.Username))
	token, err := client.Login(ctx, p.cfg.Username, p.cfg.Password)
	if err != nil {
		if isUnauthorized(err) {
			return provider.Wrap(provider.ErrAuthentication, providerName, "login", "credentials rejected", err)
		}
		return p.fail("login", "log in", err)
	}
	if p.cache != nil {
		if err := p.cache.Set(ctx, p.tokenKey(), token, tokenTTL); err != nil {
			p.logger.Debug("token cache write failed", logging.Error(err))
		}
	}
	return nil
}

func (p *Provider) resetToken(ctx context.Context, client *Client) {
	client.SetToken("")
	if p.cache != nil {
		if err := p.cache.Delete(ctx, p.tokenKey()); err != nil {
			p.logger.Debug("token cache delete failed", logging.Error(err))
		}
	}
}

// showIdentity is the cached answer of a show lookup.
type showIdentity struct {
	IMDBID int64 `json:"imdb_id"`
	TMDBID int64 `json:"tmdb_id"`
}

// lookupShow resolves the series of v to its identifiers so episodes can be
// searched by parent id. Failures only cost the extra search variant.
func (p *Provider) lookupShow(ctx context.Context, client *Client, v *video.Video) showIdentity {
	series := strings.TrimSpace(v.Series)
	if series == "" {
		return showIdentity{}
	}
	key := cache.Key(providerName, "show_identity", strings.ToLower(series), v.Year)
	show, err := cache.GetOrCompute(ctx, p.cache, key, cache.ShowTTL, func(ctx context.Context) (showIdentity, error) {
		features, err := client.Features(ctx, series, "tvshow")
		if err != nil {
			return showIdentity{}, err
		}
		for _, f := range features {
			if !v.MatchesSeries(f.Title) {
				continue
			}
			if v.Year > 0 && f.Year > 0 && v.Year != f.Year {
				continue
			}
			return showIdentity{IMDBID: f.IMDBID, TMDBID: f.TMDBID}, nil
		}
		return showIdentity{}, nil
	})
	if err != nil {
		p.logger.Debug("show lookup failed", logging.String("series", series), logging.Error(err))
		return showIdentity{}
	}
	return show
}

// fail classifies err, treating the API's user-agent rejections as
// authentication failures.
func (p *Provider) fail(op, msg string, err error) error {
	kind := provider.Classify(err)
	var httpErr *provider.HTTPError
	if errors.As(err, &httpErr) {
		switch httpErr.StatusCode {
		case 414, 415:
			kind = provider.ErrAuthentication
		case 413:
			msg = fmt.Sprintf("%s (invalid imdb id)", msg)
		}
	}
	return provider.Wrap(kind, providerName, op, msg, err)
}

func isUnauthorized(err error) bool {
	var httpErr *provider.HTTPError
	return errors.As(err, &httpErr) && httpErr.StatusCode == http.StatusUnauthorized
}

// Metadata is the search answer attached to each subtitle.
type Metadata struct {
	Result
	IMDBMatch   bool
	ParentMatch bool
	TMDBMatch   bool
}

// Matches compares the feature details, release name and file name with v.
func (m *Metadata) Matches(v *video.Video) score.Set {
	switch {
	case m.FeatureType == "":
	case v.Kind() == video.Episode && m.FeatureType != "episode":
		return score.NewSet()
	case v.Kind() == video.Movie && m.FeatureType != "movie":
		return score.NewSet()
	}

	g := score.Guess{Year: m.Year, Season: m.Season, FPS: m.FPS}
	if m.Episode > 0 {
		g.Episodes = []int{m.Episode}
	}
	if v.Kind() == video.Episode {
		g.Title = m.ParentTitle
		g.EpisodeTitle = m.Title
	} else {
		g.Title = m.Title
	}
	matches := score.GuessMatches(v, g, false, false)

	for _, name := range []string{m.Release, m.FileName} {
		if strings.TrimSpace(name) == "" {
			continue
		}
		props, err := video.ParseName(name)
		if err != nil {
			continue
		}
		for match := range score.GuessMatches(v, score.GuessFromProperties(props), false, false) {
			matches.Add(match)
		}
	}

	if m.IMDBMatch || sameIMDBID(v.IMDbID, m.IMDBID) {
		matches.Add(score.IMDbID)
	}
	if v.Kind() == video.Episode && (m.ParentMatch || sameIMDBID(v.SeriesIMDbID, m.ParentIMDBID)) {
		matches.Add(score.SeriesIMDbID)
	}
	if m.TMDBMatch || (v.TMDbID > 0 && int64(v.TMDbID) == m.TMDBID) {
		matches.Add(score.TMDbID)
	}
	if m.MovieHashMatch {
		matches.Add(score.Hash)
	}
	return matches
}

func sameIMDBID(videoID string, id int64) bool {
	return id > 0 && sanitizeIMDBID(videoID) != "" && sanitizeIMDBID(videoID) == sanitizeIMDBID(decorateIMDBID(id))
}

var (
	_ provider.Provider = (*Provider)(nil)
	_ provider.Hasher   = (*Provider)(nil)
	_ subtitle.Matcher  = (*Metadata)(nil)
)
