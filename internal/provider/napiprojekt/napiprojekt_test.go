package napiprojekt

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"subseek/internal/language"
	"subseek/internal/provider"
	"subseek/internal/score"
	"subseek/internal/testsupport"
	"subseek/internal/video"
)

const testHash = "6303e7ee6a835e9fcede9fb2fb00cb36"

func TestSubhash(t *testing.T) {
	tests := []struct {
		hash string
		want string
	}{
		{testHash, "0ce4a"},
		{"415d6e662118c229c6ad3f950c24702a", "a8988"},
		{"ffffffffffffffffffffffffffffffff", "eebcd"},
	}
	for _, tt := range tests {
		got, err := Subhash(tt.hash)
		if err != nil {
			t.Fatalf("Subhash(%s): %v", tt.hash, err)
		}
		if got != tt.want {
			t.Errorf("Subhash(%s) = %s, want %s", tt.hash, got, tt.want)
		}
	}
	if _, err := Subhash("abc"); err == nil {
		t.Fatal("expected error for short hash")
	}
}

func gzipped(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(data); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func newProvider(t *testing.T, handler http.HandlerFunc) *Provider {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	cfg := testsupport.NewConfig(t)
	cfg.Providers.NapiProjekt.BaseURL = server.URL
	p, err := New(provider.Deps{Config: cfg})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := p.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	return p
}

func hashedVideo(t *testing.T) *video.Video {
	t.Helper()
	v := video.NewMovie("Film.2010.mkv", "Film")
	if err := v.SetHash("napiprojekt", testHash); err != nil {
		t.Fatal(err)
	}
	return v
}

func TestListSubtitlesFillsContent(t *testing.T) {
	body := []byte("{1}{50}Cześć\r\n{60}{120}Świat\r\n")
	tests := []struct {
		name    string
		payload []byte
	}{
		{"plain", body},
		{"gzip", gzipped(t, body)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newProvider(t, func(w http.ResponseWriter, r *http.Request) {
				q := r.URL.Query()
				if q.Get("f") != testHash || q.Get("t") != "0ce4a" || q.Get("l") != "PL" || q.Get("v") != "dreambox" {
					t.Errorf("unexpected query %s", r.URL.RawQuery)
				}
				_, _ = w.Write(tt.payload)
			})
			v := hashedVideo(t)
			subs, err := p.ListSubtitles(context.Background(), v, language.NewSet(language.MustParse("pl"), language.MustParse("en")))
			if err != nil {
				t.Fatalf("ListSubtitles: %v", err)
			}
			if len(subs) != 1 {
				t.Fatalf("subtitles = %d, want 1", len(subs))
			}
			s := subs[0]
			if s.ID != testHash || s.FPS != 24 {
				t.Fatalf("subtitle = %+v", s)
			}
			if !bytes.Equal(s.Content(), []byte("{1}{50}Cześć\n{60}{120}Świat\n")) {
				t.Fatalf("content = %q", s.Content())
			}
			if !s.Matches(v).Has(score.Hash) {
				t.Fatal("expected hash match")
			}
			if err := p.DownloadSubtitle(context.Background(), s); err != nil {
				t.Fatalf("DownloadSubtitle: %v", err)
			}
		})
	}
}

func TestListSubtitlesNotFound(t *testing.T) {
	p := newProvider(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("NPc0"))
	})
	subs, err := p.ListSubtitles(context.Background(), hashedVideo(t), language.NewSet(language.MustParse("pl")))
	if err != nil {
		t.Fatalf("ListSubtitles: %v", err)
	}
	if len(subs) != 0 {
		t.Fatalf("subtitles = %d, want 0", len(subs))
	}
}

func TestListSubtitlesServerError(t *testing.T) {
	p := newProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	_, err := p.ListSubtitles(context.Background(), hashedVideo(t), language.NewSet(language.MustParse("pl")))
	if !errors.Is(err, provider.ErrServiceUnavailable) {
		t.Fatalf("err = %v, want service unavailable", err)
	}
}

func TestCheckRequiresHash(t *testing.T) {
	p, err := New(provider.Deps{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if p.Check(video.NewMovie("Film.mkv", "Film")) {
		t.Fatal("video without napiprojekt hash should be rejected")
	}
	if !p.Check(hashedVideo(t)) {
		t.Fatal("hashed video should be accepted")
	}
}
