package opensubtitles

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"subseek/internal/cache"
	"subseek/internal/language"
	"subseek/internal/provider"
	"subseek/internal/score"
	"subseek/internal/subtitle"
	"subseek/internal/testsupport"
	"subseek/internal/video"
)

type fakeAPI struct {
	mu       sync.Mutex
	searches []string
	features int
	logins   int
	download int
	auth     []string

	// downloadStatus, when set, answers the next download negotiations with
	// that status.
	downloadStatus []int
	remaining      int
}

func (f *fakeAPI) count(field *int) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *field
}

func (f *fakeAPI) handler(t *testing.T, baseURL func() string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/features", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.features++
		f.mu.Unlock()
		writeJSON(t, w, map[string]any{
			"data": []map[string]any{{
				"id": "7",
				"attributes": map[string]any{
					"title":        "Show",
					"feature_type": "Tvshow",
					"year":         "2010",
					"imdb_id":      1234567,
					"tmdb_id":      99,
				},
			}},
		})
	})
	mux.HandleFunc("/subtitles", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		query := r.URL.Query()
		query.Del("page")
		f.searches = append(f.searches, query.Encode())
		f.mu.Unlock()
		if r.Header.Get("Api-Key") != "key" {
			t.Errorf("missing api key header")
		}
		episode := map[string]any{
			"feature_type":   "Episode",
			"title":          "Pilot",
			"parent_title":   "Show",
			"season_number":  1,
			"episode_number": 2,
			"year":           2010,
		}
		writeJSON(t, w, map[string]any{
			"total_pages": 1,
			"data": []map[string]any{
				{"id": "1", "attributes": map[string]any{
					"language": "en", "release": "Show.S01E02.720p.HDTV.x264-GRP", "download_count": 10,
					"feature_details": episode, "files": []map[string]any{{"file_id": 11, "file_name": "Show.S01E02.srt"}},
				}},
				{"id": "2", "attributes": map[string]any{
					"language": "en", "download_count": 50, "machine_translated": true,
					"feature_details": episode, "files": []map[string]any{{"file_id": 22}},
				}},
				{"id": "3", "attributes": map[string]any{
					"language": "fr", "download_count": 70,
					"feature_details": episode, "files": []map[string]any{{"file_id": 33}},
				}},
				{"id": "4", "attributes": map[string]any{
					"language": "en", "download_count": 30, "hearing_impaired": true,
					"feature_details": episode, "files": []map[string]any{{"file_id": 44}},
				}},
			},
		})
	})
	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.logins++
		f.mu.Unlock()
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode login: %v", err)
		}
		if body["password"] != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		writeJSON(t, w, map[string]any{"token": "tok", "status": 200})
	})
	mux.HandleFunc("/download", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.download++
		f.auth = append(f.auth, r.Header.Get("Authorization"))
		var status int
		if len(f.downloadStatus) > 0 {
			status = f.downloadStatus[0]
			f.downloadStatus = f.downloadStatus[1:]
		}
		remaining := f.remaining
		f.mu.Unlock()
		if status != 0 {
			http.Error(w, `{"message":"nope"}`, status)
			return
		}
		writeJSON(t, w, map[string]any{
			"link":           baseURL() + "/file/11",
			"file_name":      "Show.S01E02.srt",
			"remaining":      remaining,
			"reset_time_utc": "2026-01-01T00:00:00Z",
		})
	})
	mux.HandleFunc("/file/11", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("1\n00:00:01,000 --> 00:00:02,000\nHello\n"))
	})
	return mux
}

func writeJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		t.Errorf("encode response: %v", err)
	}
}

func newTestProvider(t *testing.T, api *fakeAPI, store *cache.Cache, configure func(p *Provider)) *Provider {
	t.Helper()
	var server *httptest.Server
	server = httptest.NewServer(api.handler(t, func() string { return server.URL }))
	t.Cleanup(server.Close)

	cfg := testsupport.NewConfig(t)
	cfg.Providers.OpenSubtitles.APIKey = "key"
	cfg.Providers.OpenSubtitles.BaseURL = server.URL
	cfg.Providers.OpenSubtitles.Username = "user"
	cfg.Providers.OpenSubtitles.Password = "secret"
	if configure == nil {
		configure = func(*Provider) {}
	}

	p, err := New(provider.Deps{Config: cfg, Cache: store})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	p.minInterval = 0
	p.backoff = 0
	configure(p)
	if err := p.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	return p
}

func TestNewRejectsIncompleteConfig(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if _, err := New(provider.Deps{Config: cfg}); !errors.Is(err, provider.ErrConfiguration) {
		t.Fatalf("missing api key: err = %v", err)
	}
	cfg.Providers.OpenSubtitles.APIKey = "key"
	cfg.Providers.OpenSubtitles.Username = "user"
	if _, err := New(provider.Deps{Config: cfg}); !errors.Is(err, provider.ErrConfiguration) {
		t.Fatalf("username without password: err = %v", err)
	}
}

func TestListSubtitlesMergesVariants(t *testing.T) {
	api := &fakeAPI{}
	store := cache.New(cache.NewMemory())
	p := newTestProvider(t, api, store, nil)

	v, err := video.FromName("Show.S01E02.720p.HDTV.x264-GRP.mkv")
	if err != nil {
		t.Fatalf("FromName: %v", err)
	}
	langs := language.NewSet(language.MustParse("en"))

	subs, err := p.ListSubtitles(context.Background(), v, langs)
	if err != nil {
		t.Fatalf("ListSubtitles: %v", err)
	}
	var ids []string
	for _, s := range subs {
		ids = append(ids, s.ID)
	}
	if got := strings.Join(ids, ","); got != "4,1" {
		t.Fatalf("ids = %q, want 4,1", got)
	}
	if subs[0].LanguageType != subtitle.HearingImpaired {
		t.Fatalf("subtitle 4 should be hearing impaired, got %s", subs[0].LanguageType)
	}
	if subs[1].ReleaseName != "Show.S01E02.720p.HDTV.x264-GRP" {
		t.Fatalf("release name = %q", subs[1].ReleaseName)
	}

	if len(api.searches) != 3 {
		t.Fatalf("searches = %d (%v), want 3", len(api.searches), api.searches)
	}
	if !strings.Contains(api.searches[0], "parent_imdb_id=1234567") || !strings.Contains(api.searches[0], "parent_tmdb_id=99") {
		t.Fatalf("first search should carry the looked up show ids: %s", api.searches[0])
	}
	for _, q := range api.searches {
		if !strings.Contains(q, "languages=en") {
			t.Fatalf("search without languages: %s", q)
		}
	}

	matches := subs[1].Matches(v)
	for _, want := range []score.Match{score.Series, score.Season, score.Episode, score.SeriesIMDbID, score.ReleaseGroup, score.Resolution} {
		if !matches.Has(want) {
			t.Errorf("missing match %s in %s", want, matches)
		}
	}

	if _, err := p.ListSubtitles(context.Background(), v, langs); err != nil {
		t.Fatalf("second ListSubtitles: %v", err)
	}
	if got := api.count(&api.features); got != 1 {
		t.Fatalf("show lookups = %d, want 1 (cached)", got)
	}
}

func TestListSubtitlesSkipsUnsupportedLanguages(t *testing.T) {
	api := &fakeAPI{}
	p := newTestProvider(t, api, nil, nil)
	v := video.NewMovie("Movie.2010.mkv", "Movie")

	subs, err := p.ListSubtitles(context.Background(), v, language.NewSet(language.Language{Code: "qaa"}))
	if err != nil {
		t.Fatalf("ListSubtitles: %v", err)
	}
	if len(subs) != 0 || len(api.searches) != 0 {
		t.Fatalf("expected no searches, got %d subtitles and %d searches", len(subs), len(api.searches))
	}
}

func TestListSubtitlesRequiresInitialize(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Providers.OpenSubtitles.APIKey = "key"
	p, err := New(provider.Deps{Config: cfg})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	_, err = p.ListSubtitles(context.Background(), video.NewMovie("m.mkv", "M"), language.NewSet(language.MustParse("en")))
	if !errors.Is(err, provider.ErrNotInitialized) {
		t.Fatalf("err = %v, want not initialized", err)
	}
}

func TestTerminateWhileSearching(t *testing.T) {
	api := &fakeAPI{}
	p := newTestProvider(t, api, nil, nil)
	v := video.NewMovie("Movie.2010.mkv", "Movie")
	langs := language.NewSet(language.MustParse("en"))

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for range cap(errs) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := p.ListSubtitles(context.Background(), v, langs)
			errs <- err
		}()
	}
	if err := p.Terminate(context.Background()); err != nil {
		t.Fatalf("Terminate: %v", err)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil && !errors.Is(err, provider.ErrNotInitialized) {
			t.Fatalf("ListSubtitles during Terminate: %v", err)
		}
	}

	if _, err := p.ListSubtitles(context.Background(), v, langs); !errors.Is(err, provider.ErrNotInitialized) {
		t.Fatalf("ListSubtitles after Terminate: err = %v", err)
	}
	if err := p.Terminate(context.Background()); !errors.Is(err, provider.ErrNotInitialized) {
		t.Fatalf("second Terminate: err = %v", err)
	}
}

func downloadable(t *testing.T, p *Provider) *subtitle.Subtitle {
	t.Helper()
	v := video.NewEpisode("Show.S01E02.mkv", "Show", 1, 2)
	v.SeriesIMDbID = "tt1234567"
	subs, err := p.ListSubtitles(context.Background(), v, language.NewSet(language.MustParse("en")))
	if err != nil {
		t.Fatalf("ListSubtitles: %v", err)
	}
	for _, s := range subs {
		if s.ID == "1" {
			return s
		}
	}
	t.Fatalf("subtitle 1 not listed")
	return nil
}

func TestDownloadLogsInAndCachesToken(t *testing.T) {
	api := &fakeAPI{remaining: 10}
	store := cache.New(cache.NewMemory())
	p := newTestProvider(t, api, store, nil)

	s := downloadable(t, p)
	if err := p.DownloadSubtitle(context.Background(), s); err != nil {
		t.Fatalf("DownloadSubtitle: %v", err)
	}
	if !strings.Contains(s.Text(), "Hello") {
		t.Fatalf("content = %q", s.Text())
	}
	if s.Format != subtitle.FormatSRT {
		t.Fatalf("format = %q", s.Format)
	}
	if api.auth[0] != "Bearer tok" {
		t.Fatalf("authorization = %q", api.auth[0])
	}

	// A second provider sharing the cache reuses the token.
	other := newTestProvider(t, api, store, nil)
	s2 := downloadable(t, other)
	if err := other.DownloadSubtitle(context.Background(), s2); err != nil {
		t.Fatalf("DownloadSubtitle: %v", err)
	}
	if got := api.count(&api.logins); got != 1 {
		t.Fatalf("logins = %d, want 1", got)
	}
}

func TestDownloadRetriesLoginOnUnauthorized(t *testing.T) {
	api := &fakeAPI{remaining: 10, downloadStatus: []int{http.StatusUnauthorized}}
	p := newTestProvider(t, api, nil, nil)

	s := downloadable(t, p)
	if err := p.DownloadSubtitle(context.Background(), s); err != nil {
		t.Fatalf("DownloadSubtitle: %v", err)
	}
	if got := api.count(&api.logins); got != 2 {
		t.Fatalf("logins = %d, want 2", got)
	}
	if got := api.count(&api.download); got != 2 {
		t.Fatalf("download negotiations = %d, want 2", got)
	}
}

func TestDownloadErrorsAreClassified(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   error
	}{
		{"quota", 407, provider.ErrDownloadLimitExceeded},
		{"user agent", 415, provider.ErrAuthentication},
		{"unavailable", 503, provider.ErrServiceUnavailable},
		{"server error", 500, provider.ErrTransient},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &fakeAPI{downloadStatus: []int{tt.status}}
			p := newTestProvider(t, api, nil, func(p *Provider) { p.rateRetries = 0 })
			s := downloadable(t, p)
			err := p.DownloadSubtitle(context.Background(), s)
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
			if s.HasContent() {
				t.Fatalf("failed download should leave content empty")
			}
		})
	}
}

func TestDownloadRejectedCredentials(t *testing.T) {
	api := &fakeAPI{}
	p := newTestProvider(t, api, nil, func(p *Provider) { p.cfg.Password = "wrong" })
	s := downloadable(t, p)
	err := p.DownloadSubtitle(context.Background(), s)
	if !errors.Is(err, provider.ErrAuthentication) {
		t.Fatalf("err = %v, want authentication", err)
	}
	if !provider.IsDiscarding(err) {
		t.Fatalf("authentication failures should discard the provider")
	}
}

func TestDownloadUsesPayloadCache(t *testing.T) {
	api := &fakeAPI{remaining: 3}
	p := newTestProvider(t, api, nil, func(p *Provider) { p.payloadDir = t.TempDir() })

	first := downloadable(t, p)
	if err := p.DownloadSubtitle(context.Background(), first); err != nil {
		t.Fatalf("first download: %v", err)
	}
	second := downloadable(t, p)
	if err := p.DownloadSubtitle(context.Background(), second); err != nil {
		t.Fatalf("second download: %v", err)
	}
	if got := api.count(&api.download); got != 1 {
		t.Fatalf("download negotiations = %d, want 1", got)
	}
	if second.Text() != first.Text() {
		t.Fatalf("cached payload differs")
	}
}

func TestSearchVariantsForMovie(t *testing.T) {
	v := video.NewMovie("Movie.2010.mkv", "Movie")
	v.IMDbID = "tt0123456"
	if err := v.SetHash("opensubtitles", "0123456789ABCDEF"); err != nil {
		t.Fatal(err)
	}
	got := searchVariants(v, showIdentity{}, []string{"en"})
	want := []string{
		"imdb_id=123456&languages=en&moviehash=0123456789abcdef&query=movie",
		"imdb_id=123456&languages=en",
		"languages=en&moviehash=0123456789abcdef",
		"languages=en&query=movie",
	}
	if len(got) != len(want) {
		t.Fatalf("variants = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if enc := got[i].req.Params().Encode(); enc != want[i] {
			t.Errorf("variant %d = %s, want %s", i, enc, want[i])
		}
	}
	if !got[0].imdbMatch || !got[1].imdbMatch || got[2].imdbMatch || got[3].imdbMatch {
		t.Fatalf("unexpected imdb match flags")
	}
}

func TestSearchVariantsSingleTerm(t *testing.T) {
	v := video.NewMovie("Movie.mkv", "Movie")
	got := searchVariants(v, showIdentity{}, nil)
	if len(got) != 1 {
		t.Fatalf("variants = %d, want 1", len(got))
	}
}

func TestMetadataRejectsWrongKind(t *testing.T) {
	m := &Metadata{Result: Result{FeatureType: "movie", Title: "Show", MovieHashMatch: true}}
	if got := m.Matches(video.NewEpisode("Show.S01E02.mkv", "Show", 1, 2)); got.Len() != 0 {
		t.Fatalf("episode matched a movie subtitle: %s", got)
	}
	if got := m.Matches(video.NewMovie("Show.mkv", "Show")); !got.Has(score.Hash) || !got.Has(score.Title) {
		t.Fatalf("movie matches = %s", got)
	}
}

func TestAPICodes(t *testing.T) {
	tests := []struct {
		lang language.Language
		want string
	}{
		{language.MustParse("en"), "en"},
		{language.MustParse("pt-BR"), "pt-br"},
		{language.MustParse("pt"), "pt"},
		{language.MustParse("pt-PT"), "pt-pt"},
		{language.MustParse("zh-TW"), "zh-tw"},
	}
	for _, tt := range tests {
		if got := apiCode(tt.lang); got != tt.want {
			t.Errorf("apiCode(%v) = %q, want %q", tt.lang, got, tt.want)
		}
		back, err := parseAPICode(tt.want)
		if err != nil {
			t.Fatalf("parseAPICode(%q): %v", tt.want, err)
		}
		if apiCode(back) != tt.want {
			t.Errorf("round trip of %q gave %q", tt.want, apiCode(back))
		}
	}
}
