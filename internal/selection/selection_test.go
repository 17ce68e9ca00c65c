package selection

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"subseek/internal/config"
	"subseek/internal/language"
	"subseek/internal/pool"
	"subseek/internal/provider"
	"subseek/internal/provider/providertest"
	"subseek/internal/score"
	"subseek/internal/subtitle"
	"subseek/internal/video"
)

const (
	validSRT = "1\n00:00:01,000 --> 00:00:02,500\nHello there.\n\n2\n00:00:03,000 --> 00:00:04,000\nGeneral Kenobi.\n"
	validASS = "[Script Info]\nScriptType: v4.00+\n\n[Events]\nFormat: Layer, Start, End, Style, Name, MarginL, MarginR, MarginV, Effect, Text\nDialogue: 0,0:00:01.00,0:00:02.50,Default,,0,0,0,,Hello there.\n"
)

var (
	english = language.MustParse("en")
	french  = language.MustParse("fr")
)

func episode() *video.Video {
	return video.NewEpisode("Example.Show.S05E18.mkv", "Example Show", 5, 18)
}

func englishOnly() Options {
	return Options{Languages: language.NewSet(english)}
}

func ids(subs []*subtitle.Subtitle) string {
	parts := make([]string, 0, len(subs))
	for _, s := range subs {
		parts = append(parts, s.Key())
	}
	return strings.Join(parts, ",")
}

func candidateIDs(cs []Candidate) string {
	parts := make([]string, 0, len(cs))
	for _, c := range cs {
		parts = append(parts, c.Subtitle.ID)
	}
	return strings.Join(parts, ",")
}

func TestParsePreference(t *testing.T) {
	tests := []struct {
		in      string
		want    Preference
		wantErr bool
	}{
		{"", Neutral, false},
		{"neutral", Neutral, false},
		{" Prefer ", Prefer, false},
		{"AVOID", Avoid, false},
		{"sometimes", Neutral, true},
	}
	for _, tt := range tests {
		got, err := ParsePreference(tt.in)
		if (err != nil) != tt.wantErr {
			t.Fatalf("ParsePreference(%q) err = %v", tt.in, err)
		}
		if got != tt.want {
			t.Fatalf("ParsePreference(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestRankOrdersByScoreThenIndex(t *testing.T) {
	f := providertest.New("fake")
	low := f.AddSubtitle("low", english, score.NewSet(score.Series), nil)
	high := f.AddSubtitle("high", english, score.NewSet(score.Series, score.Season, score.Episode), nil)
	tie := f.AddSubtitle("tie", english, score.NewSet(score.Series), nil)
	other := f.AddSubtitle("other", french, score.NewSet(score.Hash), nil)

	ranked := Rank(episode(), []*subtitle.Subtitle{low, high, tie, other}, englishOnly())
	if got := candidateIDs(ranked); got != "high,low,tie" {
		t.Fatalf("ranked = %s", got)
	}
	if ranked[0].Score != score.Compute(score.NewSet(score.Series, score.Season, score.Episode), video.Episode) {
		t.Fatalf("score = %d", ranked[0].Score)
	}
	if ranked[1].Index != 0 || ranked[2].Index != 2 {
		t.Fatalf("indexes = %d, %d", ranked[1].Index, ranked[2].Index)
	}
}

func TestRankPreferences(t *testing.T) {
	f := providertest.New("fake")
	normal := f.AddSubtitle("normal", english, score.NewSet(score.Series), nil)
	hi := f.AddSubtitle("hi", english, score.NewSet(score.Series), nil)
	hi.LanguageType = subtitle.HearingImpaired
	fo := f.AddSubtitle("fo", english, score.NewSet(score.Series), nil)
	fo.LanguageType = subtitle.ForeignOnly
	subs := []*subtitle.Subtitle{normal, hi, fo}

	tests := []struct {
		name string
		hi   Preference
		fo   Preference
		want string
	}{
		{"neutral", Neutral, Neutral, "normal,hi,fo"},
		{"prefer hearing impaired", Prefer, Neutral, "hi,normal,fo"},
		{"avoid hearing impaired", Avoid, Neutral, "normal,fo,hi"},
		{"prefer foreign only", Neutral, Prefer, "fo,normal,hi"},
		{"hearing impaired outranks foreign only", Prefer, Prefer, "hi,fo,normal"},
		{"avoid both", Avoid, Avoid, "normal,fo,hi"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := englishOnly()
			opts.HearingImpaired = tt.hi
			opts.ForeignOnly = tt.fo
			if got := candidateIDs(Rank(episode(), subs, opts)); got != tt.want {
				t.Fatalf("ranked = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestRankPreferenceNeverBeatsScore(t *testing.T) {
	f := providertest.New("fake")
	hi := f.AddSubtitle("hi", english, score.NewSet(score.Series), nil)
	hi.LanguageType = subtitle.HearingImpaired
	better := f.AddSubtitle("better", english, score.NewSet(score.Series, score.Season), nil)

	opts := englishOnly()
	opts.HearingImpaired = Prefer
	if got := candidateIDs(Rank(episode(), []*subtitle.Subtitle{hi, better}, opts)); got != "better,hi" {
		t.Fatalf("ranked = %s", got)
	}
}

func TestRankFilters(t *testing.T) {
	v := episode()
	v.FPS = 25
	v.AddSubtitleLanguage(french)

	f := providertest.New("fake")
	keep := f.AddSubtitle("keep", english, score.NewSet(score.Series, score.Season), nil)
	weak := f.AddSubtitle("weak", english, score.NewSet(score.Resolution), nil)
	ignored := f.AddSubtitle("ignored", english, score.NewSet(score.Series, score.Season), nil)
	wrongFPS := f.AddSubtitle("fps", english, score.NewSet(score.Series, score.Season), nil)
	wrongFPS.FPS = 23.976
	existing := f.AddSubtitle("existing", french, score.NewSet(score.Series, score.Season), nil)
	mirror := f.AddSubtitle("mirror", english, score.NewSet(score.Series, score.Season), nil)
	mirror.ContentID = "abc"
	mirrored := f.AddSubtitle("mirrored", english, score.NewSet(score.Series), nil)
	mirrored.ContentID = "abc"
	dup := f.AddSubtitle("keep", english, score.NewSet(score.Series, score.Season), nil)
	subs := []*subtitle.Subtitle{keep, weak, ignored, wrongFPS, existing, mirror, mirrored, dup}

	opts := Options{
		Languages:    language.NewSet(english, french),
		MinScore:     score.EpisodeWeights[score.Series],
		SkipWrongFPS: true,
		Ignore:       []string{"fake:ignored"},
	}
	if got := candidateIDs(Rank(v, subs, opts)); got != "keep,mirror" {
		t.Fatalf("ranked = %s", got)
	}

	opts.Force = true
	opts.SkipWrongFPS = false
	opts.Ignore = []string{"IGNORED"}
	if got := candidateIDs(Rank(v, subs, opts)); got != "keep,fps,existing,mirror" {
		t.Fatalf("forced ranking = %s", got)
	}
}

func TestDownloadBestFallsBackOnCorruptContent(t *testing.T) {
	f := providertest.New("fake")
	corrupt := f.AddSubtitle("corrupt", english, score.NewSet(score.Series, score.Season, score.Episode), []byte("\x00\x01 not a subtitle"))
	second := f.AddSubtitle("second", english, score.NewSet(score.Series, score.Season), []byte(validSRT))
	third := f.AddSubtitle("third", english, score.NewSet(score.Series), []byte(validSRT))

	res, err := DownloadBest(context.Background(), f, episode(), []*subtitle.Subtitle{third, corrupt, second}, englishOnly())
	if err != nil {
		t.Fatalf("DownloadBest: %v", err)
	}
	if got := ids(res.Subtitles); got != "fake:second" {
		t.Fatalf("selected = %s", got)
	}
	if !strings.Contains(res.Subtitles[0].Text(), "General Kenobi") {
		t.Fatalf("content = %q", res.Subtitles[0].Text())
	}
	if len(res.Attempts) != 2 || !errors.Is(res.Attempts[0].Err, subtitle.ErrInvalid) || res.Attempts[1].Err != nil {
		t.Fatalf("attempts = %+v", res.Attempts)
	}
	if corrupt.HasContent() {
		t.Fatal("corrupt payload kept")
	}
	if third.HasContent() {
		t.Fatal("third candidate downloaded after a winner")
	}
	if len(res.Missing) != 0 {
		t.Fatalf("missing = %v", res.Missing)
	}
}

func TestDownloadBestSkipsCorruptDeclaredFormat(t *testing.T) {
	f := providertest.New("fake")
	corrupt := f.AddSubtitle("corrupt", english, score.NewSet(score.Series, score.Season, score.Episode), []byte("<html>404 Not Found</html>"))
	corrupt.Format = subtitle.FormatASS
	next := f.AddSubtitle("next", english, score.NewSet(score.Series, score.Season), []byte(validASS))
	next.Format = subtitle.FormatASS

	res, err := DownloadBest(context.Background(), f, episode(), []*subtitle.Subtitle{corrupt, next}, englishOnly())
	if err != nil {
		t.Fatalf("DownloadBest: %v", err)
	}
	if got := ids(res.Subtitles); got != "fake:next" {
		t.Fatalf("selected = %s", got)
	}
	if len(res.Attempts) != 2 || !errors.Is(res.Attempts[0].Err, subtitle.ErrInvalid) {
		t.Fatalf("attempts = %+v", res.Attempts)
	}
	if res.Subtitles[0].Format != subtitle.FormatASS {
		t.Fatalf("format = %q", res.Subtitles[0].Format)
	}
}

func TestDownloadBestFallsBackOnDownloadError(t *testing.T) {
	f := providertest.New("fake")
	top := f.AddSubtitle("top", english, score.NewSet(score.Series, score.Season), []byte(validSRT))
	f.FailDownload("top", providertest.ErrBoom)
	next := f.AddSubtitle("next", english, score.NewSet(score.Series), []byte(validSRT))

	res, err := DownloadBest(context.Background(), f, episode(), []*subtitle.Subtitle{top, next}, englishOnly())
	if err != nil {
		t.Fatalf("DownloadBest: %v", err)
	}
	if got := ids(res.Subtitles); got != "fake:next" {
		t.Fatalf("selected = %s", got)
	}
	if !errors.Is(res.Attempts[0].Err, provider.ErrTransient) {
		t.Fatalf("first attempt err = %v", res.Attempts[0].Err)
	}
}

func TestDownloadBestReportsMissingLanguages(t *testing.T) {
	f := providertest.New("fake")
	broken := f.AddSubtitle("broken", english, score.NewSet(score.Series), nil)
	fr := f.AddSubtitle("fr", french, score.NewSet(score.Series), []byte(validSRT))

	opts := Options{Languages: language.NewSet(english, french)}
	res, err := DownloadBest(context.Background(), f, episode(), []*subtitle.Subtitle{broken, fr}, opts)
	if err != nil {
		t.Fatalf("DownloadBest: %v", err)
	}
	if got := ids(res.Subtitles); got != "fake:fr" {
		t.Fatalf("selected = %s", got)
	}
	if len(res.Missing) != 1 || res.Missing[0] != english {
		t.Fatalf("missing = %v", res.Missing)
	}
}

func TestDownloadBestSingle(t *testing.T) {
	f := providertest.New("fake")
	fr := f.AddSubtitle("fr", french, score.NewSet(score.Series, score.Season), []byte(validSRT))
	en := f.AddSubtitle("en", english, score.NewSet(score.Series), []byte(validSRT))

	opts := Options{Languages: language.NewSet(english, french), Single: true}
	res, err := DownloadBest(context.Background(), f, episode(), []*subtitle.Subtitle{en, fr}, opts)
	if err != nil {
		t.Fatalf("DownloadBest: %v", err)
	}
	if got := ids(res.Subtitles); got != "fake:fr" {
		t.Fatalf("selected = %s", got)
	}
	if len(res.Missing) != 0 {
		t.Fatalf("single mode reported missing %v", res.Missing)
	}
	if f.Calls().Download != 1 {
		t.Fatalf("downloads = %d, want 1", f.Calls().Download)
	}
}

func TestDownloadBestSkipsPresentLanguages(t *testing.T) {
	v := episode()
	v.AddSubtitleLanguage(english)
	f := providertest.New("fake")
	en := f.AddSubtitle("en", english, score.NewSet(score.Series), []byte(validSRT))

	res, err := DownloadBest(context.Background(), f, v, []*subtitle.Subtitle{en}, englishOnly())
	if err != nil {
		t.Fatalf("DownloadBest: %v", err)
	}
	if res.Found() || len(res.Attempts) != 0 || len(res.Missing) != 0 {
		t.Fatalf("result = %+v", res)
	}

	opts := englishOnly()
	opts.Force = true
	res, err = DownloadBest(context.Background(), f, v, []*subtitle.Subtitle{en}, opts)
	if err != nil {
		t.Fatalf("DownloadBest: %v", err)
	}
	if !res.Found() {
		t.Fatal("force did not download")
	}
}

func TestDownloadBestStopsOnCancel(t *testing.T) {
	f := providertest.New("fake")
	f.Delay = time.Minute
	s := f.AddSubtitle("slow", english, score.NewSet(score.Series), []byte(validSRT))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := DownloadBest(ctx, f, episode(), []*subtitle.Subtitle{s}, englishOnly())
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}
}

func TestEndToEndPicksHigherScore(t *testing.T) {
	a := providertest.New("a")
	a.AddSubtitle("a1", english, score.NewSet(score.Series, score.Season, score.Episode, score.ReleaseGroup), []byte(validSRT))
	b := providertest.New("b")
	b.AddSubtitle("b1", english, score.NewSet(score.Series, score.Season, score.Episode), []byte(validSRT))

	p := pool.New([]provider.Provider{b, a}, pool.Options{Timeout: time.Second})
	defer p.Terminate(context.Background())

	v := episode()
	listed, err := p.ListSubtitles(context.Background(), v, language.NewSet(english))
	if err != nil {
		t.Fatalf("ListSubtitles: %v", err)
	}
	res, err := DownloadBest(context.Background(), p, v, listed.All(), englishOnly())
	if err != nil {
		t.Fatalf("DownloadBest: %v", err)
	}
	if got := ids(res.Subtitles); got != "a:a1" {
		t.Fatalf("selected = %s", got)
	}
	if b.Calls().Download != 0 {
		t.Fatal("lower-scored candidate was downloaded")
	}

	opts := englishOnly()
	opts.MinScore = score.Compute(score.NewSet(score.Series, score.Season, score.Episode, score.ReleaseGroup), video.Episode) + 1
	res, err = DownloadBest(context.Background(), p, v, listed.All(), opts)
	if err != nil {
		t.Fatalf("DownloadBest: %v", err)
	}
	if res.Found() || len(res.Attempts) != 0 {
		t.Fatalf("result = %+v", res)
	}
	if a.Calls().Download != 1 || b.Calls().Download != 0 {
		t.Fatal("download attempted below the minimum score")
	}
}

func TestFromConfig(t *testing.T) {
	opts, err := FromConfig(config.Download{
		Languages:       []string{"en", "pt-BR"},
		MinScore:        100,
		HearingImpaired: "avoid",
		ForeignOnly:     "prefer",
		Single:          true,
	})
	if err != nil {
		t.Fatalf("FromConfig: %v", err)
	}
	if opts.Languages.Len() != 2 || !opts.Languages.Has(english) {
		t.Fatalf("languages = %s", opts.Languages)
	}
	if opts.HearingImpaired != Avoid || opts.ForeignOnly != Prefer || !opts.Single || opts.MinScore != 100 {
		t.Fatalf("options = %+v", opts)
	}
	if _, err := FromConfig(config.Download{HearingImpaired: "maybe"}); err == nil {
		t.Fatal("expected error for a bad preference")
	}
}
