package subtitle

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"subseek/internal/language"
	"subseek/internal/score"
	"subseek/internal/services"
	"subseek/internal/video"
)

const sampleSRT = `1
00:00:01,000 --> 00:00:02,500
Hello there.

2
00:00:03,000 --> 00:00:04,000
General Kenobi.
`

func TestFromFlags(t *testing.T) {
	tests := []struct {
		hi, fo bool
		want   LanguageType
	}{
		{false, false, Normal},
		{true, false, HearingImpaired},
		{false, true, ForeignOnly},
		{true, true, HearingImpaired},
	}
	for _, tt := range tests {
		if got := FromFlags(tt.hi, tt.fo); got != tt.want {
			t.Errorf("FromFlags(%v, %v) = %s, want %s", tt.hi, tt.fo, got, tt.want)
		}
	}
}

func TestMatchesRestrictedToVideoKind(t *testing.T) {
	s := New("test", "1", language.MustParse("en"))
	s.Metadata = MatcherFunc(func(*video.Video) score.Set {
		return score.NewSet(score.Title, score.Series, score.Season, score.Year)
	})
	movie := video.NewMovie("Example.Movie.2015.mkv", "Example Movie")
	got := s.Matches(movie)
	if got.Has(score.Series) || got.Has(score.Season) {
		t.Fatalf("episode matches leaked into movie set: %s", got)
	}
	if s.Score(movie) != 162+54 {
		t.Fatalf("score = %d", s.Score(movie))
	}
	if New("test", "2", language.MustParse("en")).Matches(movie).Len() != 0 {
		t.Fatal("subtitle without metadata should match nothing")
	}
}

func TestSetContentNormalisesLineEndings(t *testing.T) {
	s := New("test", "1", language.MustParse("en"))
	s.SetContent([]byte("1\r\n00:00:01,000 --> 00:00:02,000\r\nHi\r\n"))
	if bytes.Contains(s.Content(), []byte("\r\n")) {
		t.Fatalf("content still has CRLF: %q", s.Content())
	}
	if s.Encoding != "utf-8" {
		t.Fatalf("encoding = %q", s.Encoding)
	}
	if !s.IsValid() || s.Format != FormatSRT {
		t.Fatalf("expected valid srt, format %q err %v", s.Format, s.Validate())
	}
}

func TestGuessEncoding(t *testing.T) {
	cyrillic, err := Encode("Привет, мир", "windows-1251")
	if err != nil {
		t.Fatal(err)
	}
	latin, err := Encode("Un café, s'il vous plaît", "windows-1252")
	if err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		name    string
		content []byte
		lang    string
		want    string
	}{
		{"plain utf-8", []byte("Grüße"), "de", "utf-8"},
		{"utf-8 bom", append([]byte{0xEF, 0xBB, 0xBF}, "hello"...), "en", "utf-8-sig"},
		{"russian code page", cyrillic, "ru", "windows-1251"},
		{"western code page", latin, "fr", "windows-1252"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GuessEncoding(tt.content, language.MustParse(tt.lang)); got != tt.want {
				t.Fatalf("GuessEncoding = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDecodeRussianCodePage(t *testing.T) {
	raw, err := Encode("Привет", "cp1251")
	if err != nil {
		t.Fatal(err)
	}
	s := New("test", "1", language.MustParse("ru"))
	s.SetContent(raw)
	if s.Text() != "Привет" {
		t.Fatalf("text = %q (encoding %s)", s.Text(), s.Encoding)
	}
}

func TestCanonicalEncoding(t *testing.T) {
	tests := map[string]string{
		"UTF-8":     "utf-8",
		"latin1":    "iso-8859-1",
		"CP1250":    "windows-1250",
		"Shift_JIS": "shift-jis",
		"euc_jp":    "euc-jp",
	}
	for input, want := range tests {
		if got, ok := CanonicalEncoding(input); !ok || got != want {
			t.Errorf("CanonicalEncoding(%q) = %q, %v; want %q", input, got, ok, want)
		}
	}
	if _, ok := CanonicalEncoding("klingon-8"); ok {
		t.Error("expected unknown encoding to be rejected")
	}
}

func TestReencode(t *testing.T) {
	s := New("test", "1", language.MustParse("fr"))
	s.SetContent([]byte("café"))
	if err := s.Reencode("windows-1252"); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(s.Content(), []byte("caf\xe9")) {
		t.Fatalf("content = %q", s.Content())
	}
	if s.Text() != "café" || s.Encoding != "windows-1252" {
		t.Fatalf("text %q encoding %q", s.Text(), s.Encoding)
	}
}

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"srt", sampleSRT, FormatSRT},
		{"srt with bom", "\ufeff" + sampleSRT, FormatSRT},
		{"vtt", "WEBVTT\n\n00:01.000 --> 00:02.000\nHi\n", FormatVTT},
		{"ass", "[Script Info]\nScriptType: v4.00+\n", FormatASS},
		{"ssa", "[Script Info]\nScriptType: v4.00\n", FormatSSA},
		{"sami", "<SAMI>\n<BODY><SYNC Start=0><P>Hi</SAMI>", FormatSAMI},
		{"microdvd", "{1}{25}Hello\n{30}{50}World\n", FormatMicroDVD},
		{"mpl2", "[10][25]Hello\n", FormatMPL2},
		{"tmp", "00:00:01:Hello\n", FormatTMP},
		{"garbage", "this is not a subtitle", ""},
		{"empty", "  \n", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetectFormat(tt.text); got != tt.want {
				t.Fatalf("DetectFormat = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseSRT(t *testing.T) {
	cues, err := ParseSRT(sampleSRT)
	if err != nil {
		t.Fatal(err)
	}
	if len(cues) != 2 {
		t.Fatalf("cues = %d", len(cues))
	}
	if cues[0].Start != time.Second || cues[0].End != 2500*time.Millisecond {
		t.Fatalf("first cue bounds %v-%v", cues[0].Start, cues[0].End)
	}
	if cues[1].Index != 2 || strings.Join(cues[1].Lines, " ") != "General Kenobi." {
		t.Fatalf("second cue = %+v", cues[1])
	}
	first, last := Bounds(cues)
	if first != time.Second || last != 4*time.Second {
		t.Fatalf("bounds %v-%v", first, last)
	}
}

func TestParseSRTRejects(t *testing.T) {
	tests := map[string]string{
		"no cues":        "just some text\n\nmore text\n",
		"backwards cue":  "1\n00:00:05,000 --> 00:00:01,000\nHi\n",
		"bad minutes":    "1\n00:75:00,000 --> 00:76:00,000\nHi\n",
		"empty document": "",
	}
	for name, text := range tests {
		if _, err := ParseSRT(text); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestParseSRTTimestampFraction(t *testing.T) {
	got, err := parseSRTTimestamp("00:00:01.5")
	if err != nil {
		t.Fatal(err)
	}
	if got != 1500*time.Millisecond {
		t.Fatalf("timestamp = %v", got)
	}
}

func TestValidate(t *testing.T) {
	good := New("test", "good", language.MustParse("en"))
	good.SetContent([]byte(sampleSRT))
	if err := good.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	bad := New("test", "bad", language.MustParse("en"))
	bad.SetContent([]byte("<html>quota exceeded</html>"))
	if err := bad.Validate(); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}

	declared := New("test", "declared", language.MustParse("en"))
	declared.Format = FormatSRT
	declared.SetContent([]byte("WEBVTT\n"))
	if declared.IsValid() {
		t.Fatal("declared srt with no cues should be invalid")
	}

	sniffed := New("test", "sniffed", language.MustParse("en"))
	sniffed.Format = FormatTMP
	sniffed.SetContent([]byte(sampleSRT))
	if err := sniffed.Validate(); err != nil || sniffed.Format != FormatSRT {
		t.Fatalf("srt content declared tmp: format %q err %v", sniffed.Format, err)
	}

	empty := New("test", "empty", language.MustParse("en"))
	if empty.IsValid() {
		t.Fatal("subtitle without content should be invalid")
	}
}

func TestValidateDeclaredFormats(t *testing.T) {
	const garbage = "<html>404 Not Found</html>"
	tests := []struct {
		format  string
		content string
		valid   bool
	}{
		{FormatASS, garbage, false},
		{FormatSSA, "[Script Info]\nScriptType: v4.00\n", false},
		{FormatASS, "[Script Info]\nScriptType: v4.00+\n\n[Events]\nDialogue: 0,0:00:01.00,0:00:02.00,Default,,0,0,0,,Hi\n", true},
		{FormatVTT, garbage, false},
		{FormatVTT, "WEBVTT\n\nNOTE nothing timed\n", false},
		{FormatVTT, "WEBVTT\n\n00:01.000 --> 00:02.000\nHi\n", true},
		{FormatSAMI, garbage, false},
		{FormatSAMI, "<SAMI><BODY><SYNC Start=1000><P>Hi</SYNC></BODY></SAMI>", true},
		{FormatMicroDVD, garbage, false},
		{FormatMicroDVD, "{25}{50}Hi\n", true},
		{FormatMPL2, garbage, false},
		{FormatMPL2, "[10][20]Hi\n", true},
		{FormatTMP, garbage, false},
		{FormatTMP, "00:00:01:Hi\n", true},
		{"bogus", garbage, false},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			s := New("localdir", "x", language.MustParse("en"))
			s.Format = tt.format
			s.SetContent([]byte(tt.content))
			err := s.Validate()
			if tt.valid && err != nil {
				t.Fatalf("Validate(%q) = %v", tt.content, err)
			}
			if !tt.valid && !errors.Is(err, ErrInvalid) {
				t.Fatalf("Validate(%q) = %v, want ErrInvalid", tt.content, err)
			}
		})
	}
}

func TestCleanSRT(t *testing.T) {
	input := "1\r\n00:00:01,000 --> 00:00:02,000\r\nSubtitles by someone   \r\n\r\n" +
		"2\r\n00:00:03,000 --> 00:00:04,000\r\nActual line \r\n\r\n" +
		"3\r\n00:00:05,000 --> 00:00:06,000\r\nVisit www.example.com\r\n"
	out, stats := CleanSRT(input)
	if stats.RemovedCues != 2 {
		t.Fatalf("removed = %d", stats.RemovedCues)
	}
	want := "1\n00:00:03,000 --> 00:00:04,000\nActual line\n"
	if out != want {
		t.Fatalf("cleaned = %q, want %q", out, want)
	}
}

func TestPath(t *testing.T) {
	v := video.NewEpisode("/tv/Show.S01E02.mkv", "Show", 1, 2)
	tests := []struct {
		name string
		lang string
		typ  LanguageType
		form string
		opts SaveOptions
		want string
	}{
		{"default", "en", Normal, FormatSRT, SaveOptions{LanguageFormat: "alpha2"}, "/tv/Show.S01E02.en.srt"},
		{"region", "pt-BR", Normal, FormatSRT, SaveOptions{LanguageFormat: "alpha2"}, "/tv/Show.S01E02.pt-BR.srt"},
		{"alpha3", "fr", Normal, FormatASS, SaveOptions{LanguageFormat: "alpha3"}, "/tv/Show.S01E02.fra.ass"},
		{"hearing impaired", "en", HearingImpaired, FormatSRT, SaveOptions{LanguageTypeSuffix: true}, "/tv/Show.S01E02.[hi].en.srt"},
		{"foreign only", "de", ForeignOnly, FormatSRT, SaveOptions{LanguageTypeSuffix: true}, "/tv/Show.S01E02.[fo].de.srt"},
		{"suffix disabled", "en", HearingImpaired, FormatSRT, SaveOptions{}, "/tv/Show.S01E02.en.srt"},
		{"single", "en", Normal, FormatSRT, SaveOptions{Single: true}, "/tv/Show.S01E02.srt"},
		{"undefined", "und", Normal, FormatSRT, SaveOptions{}, "/tv/Show.S01E02.srt"},
		{"directory", "en", Normal, "", SaveOptions{Directory: "/subs"}, "/subs/Show.S01E02.en.srt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New("test", "1", language.MustParse(tt.lang))
			s.LanguageType = tt.typ
			s.Format = tt.form
			if got := Path(v, s, tt.opts); got != tt.want {
				t.Fatalf("Path = %q, want %q", got, tt.want)
			}
		})
	}
}

func newSRT(t *testing.T, id, lang string) *Subtitle {
	t.Helper()
	s := New("test", id, language.MustParse(lang))
	s.Format = FormatSRT
	s.SetContent([]byte(sampleSRT))
	return s
}

func TestSaveOnePerLanguage(t *testing.T) {
	dir := t.TempDir()
	v := video.NewMovie(filepath.Join(dir, "Example.Movie.2015.mkv"), "Example Movie")
	empty := New("test", "empty", language.MustParse("en"))
	subs := []*Subtitle{empty, newSRT(t, "a", "en"), newSRT(t, "b", "en"), newSRT(t, "c", "fr")}

	saved, err := Save(v, subs, SaveOptions{LanguageFormat: "alpha2"})
	if err != nil {
		t.Fatal(err)
	}
	if len(saved) != 2 || saved[0].ID != "a" || saved[1].ID != "c" {
		t.Fatalf("saved = %v", saved)
	}
	for _, name := range []string{"Example.Movie.2015.en.srt", "Example.Movie.2015.fr.srt"} {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			t.Fatal(err)
		}
		if string(data) != sampleSRT {
			t.Fatalf("%s content = %q", name, data)
		}
	}
}

func TestSaveSingle(t *testing.T) {
	dir := t.TempDir()
	v := video.NewMovie(filepath.Join(dir, "movie.mkv"), "Movie")
	saved, err := Save(v, []*Subtitle{newSRT(t, "a", "en"), newSRT(t, "b", "fr")}, SaveOptions{Single: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(saved) != 1 {
		t.Fatalf("saved %d subtitles in single mode", len(saved))
	}
	if _, err := os.Stat(filepath.Join(dir, "movie.srt")); err != nil {
		t.Fatal(err)
	}
}

func TestSaveReencodesAndRemovesAds(t *testing.T) {
	dir := t.TempDir()
	v := video.NewMovie(filepath.Join(dir, "movie.mkv"), "Movie")
	s := New("test", "a", language.MustParse("fr"))
	s.Format = FormatSRT
	s.SetContent([]byte("1\n00:00:01,000 --> 00:00:02,000\nDownloaded from www.example.com\n\n" +
		"2\n00:00:03,000 --> 00:00:04,000\nUn café\n"))

	_, err := Save(v, []*Subtitle{s}, SaveOptions{Encoding: "latin-1", RemoveAds: true})
	if err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "movie.fr.srt"))
	if err != nil {
		t.Fatal(err)
	}
	want := "1\n00:00:03,000 --> 00:00:04,000\nUn caf\xe9\n"
	if string(data) != want {
		t.Fatalf("saved = %q, want %q", data, want)
	}
	if s.Encoding != "iso-8859-1" {
		t.Fatalf("encoding = %q", s.Encoding)
	}
}

func TestSaveMissingDirectory(t *testing.T) {
	v := video.NewMovie(filepath.Join(t.TempDir(), "movie.mkv"), "Movie")
	_, err := Save(v, []*Subtitle{newSRT(t, "a", "en")}, SaveOptions{Directory: filepath.Join(t.TempDir(), "missing")})
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}
