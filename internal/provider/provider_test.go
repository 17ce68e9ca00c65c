package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"subseek/internal/language"
	"subseek/internal/services"
	"subseek/internal/subtitle"
	"subseek/internal/video"
)

type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

func TestClassify(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		want       error
		discarding bool
		cooldown   bool
	}{
		{"nil", nil, nil, false, false},
		{"wrapped auth", Wrap(ErrAuthentication, "opensubtitles", "login", "bad password", nil), ErrAuthentication, true, true},
		{"wrapped config", Wrap(ErrConfiguration, "localdir", "init", "missing root", nil), ErrConfiguration, true, false},
		{"deadline", fmt.Errorf("search: %w", context.DeadlineExceeded), ErrTimeout, false, false},
		{"net timeout", fmt.Errorf("dial: %w", timeoutError{}), ErrTimeout, false, false},
		{"401", &HTTPError{Provider: "p", Operation: "search", StatusCode: 401}, ErrAuthentication, true, true},
		{"406", &HTTPError{StatusCode: 406}, ErrAuthentication, true, true},
		{"407", &HTTPError{StatusCode: 407}, ErrDownloadLimitExceeded, true, true},
		{"429", &HTTPError{StatusCode: 429}, ErrDownloadLimitExceeded, true, true},
		{"503", &HTTPError{StatusCode: 503}, ErrServiceUnavailable, true, true},
		{"500", &HTTPError{StatusCode: 500}, ErrTransient, false, false},
		{"plain", errors.New("connection reset"), ErrTransient, false, false},
		{"services config", services.Wrap(services.ErrConfiguration, "x", "y", "z", nil), ErrConfiguration, true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.err); got != tt.want {
				t.Fatalf("Classify = %v, want %v", got, tt.want)
			}
			if got := IsDiscarding(tt.err); got != tt.discarding {
				t.Fatalf("IsDiscarding = %v, want %v", got, tt.discarding)
			}
			if got := CooldownFor(tt.err); got != tt.cooldown {
				t.Fatalf("CooldownFor = %v, want %v", got, tt.cooldown)
			}
		})
	}
}

func TestWrapKeepsMarkersAndCause(t *testing.T) {
	cause := &HTTPError{Provider: "opensubtitles", Operation: "download", StatusCode: 407, Body: "quota"}
	err := Wrap(ErrDownloadLimitExceeded, "opensubtitles", "download", "quota reached", cause)
	if !errors.Is(err, ErrDownloadLimitExceeded) || !errors.Is(err, services.ErrTransient) {
		t.Fatalf("markers lost: %v", err)
	}
	var httpErr *HTTPError
	if !errors.As(err, &httpErr) || httpErr.StatusCode != 407 {
		t.Fatalf("cause lost: %v", err)
	}
	if got := services.FailureReason(Wrap(ErrTimeout, "p", "list", "", nil)); got != "timeout" {
		t.Fatalf("FailureReason = %q", got)
	}
	if !strings.Contains(cause.Error(), "407") || !strings.Contains(cause.Error(), "quota") {
		t.Fatalf("HTTPError message = %q", cause.Error())
	}
}

func TestReason(t *testing.T) {
	if got := Reason(&HTTPError{StatusCode: 503}); got != "service_unavailable" {
		t.Fatalf("Reason = %q", got)
	}
	if got := Reason(errors.New("x")); got != "transient" {
		t.Fatalf("Reason = %q", got)
	}
	if got := Reason(nil); got != "" {
		t.Fatalf("Reason(nil) = %q", got)
	}
}

func TestCapabilitiesCheck(t *testing.T) {
	episode := video.NewEpisode("Show.S01E02.mkv", "Show", 1, 2)
	movie := video.NewMovie("Film.2020.mkv", "Film")
	if err := movie.SetHash("napiprojekt", "abc"); err != nil {
		t.Fatal(err)
	}

	caps := Capabilities{Movies: true, RequiredHash: "napiprojekt"}
	if caps.Check(episode) {
		t.Fatal("episodes are not served")
	}
	if !caps.Check(movie) {
		t.Fatal("movie with hash should pass")
	}
	if caps.Check(video.NewMovie("Other.mkv", "Other")) {
		t.Fatal("movie without hash should fail")
	}
	if caps.Check(nil) {
		t.Fatal("nil video should fail")
	}
}

func TestCapabilitiesCheckLanguages(t *testing.T) {
	requested := language.NewSet(language.MustParse("en"), language.MustParse("pl"))
	open := Capabilities{}
	if got := open.CheckLanguages(requested); got.Len() != 2 {
		t.Fatalf("nil Languages should keep all, got %v", got)
	}
	polish := Capabilities{Languages: language.NewSet(language.MustParse("pl"))}
	got := polish.CheckLanguages(requested)
	if got.Len() != 1 || !got.Has(language.MustParse("pl")) {
		t.Fatalf("CheckLanguages = %v", got)
	}
}

type stubProvider struct{ name string }

func (s stubProvider) Name() string                   { return s.name }
func (s stubProvider) Capabilities() Capabilities     { return Capabilities{Movies: true} }
func (s stubProvider) Check(v *video.Video) bool      { return s.Capabilities().Check(v) }
func (stubProvider) Initialize(context.Context) error { return nil }
func (stubProvider) Terminate(context.Context) error  { return nil }
func (stubProvider) ListSubtitles(context.Context, *video.Video, language.Set) ([]*subtitle.Subtitle, error) {
	return nil, nil
}
func (stubProvider) DownloadSubtitle(context.Context, *subtitle.Subtitle) error { return nil }

func TestRegistryBuild(t *testing.T) {
	reg := NewRegistry()
	reg.MustRegister("Beta", func(Deps) (Provider, error) { return stubProvider{name: "beta"}, nil })
	reg.MustRegister("alpha", func(Deps) (Provider, error) { return stubProvider{name: "alpha"}, nil })
	reg.MustRegister("broken", func(Deps) (Provider, error) { return nil, errors.New("no api key") })

	if err := reg.Register("ALPHA", func(Deps) (Provider, error) { return nil, nil }); err == nil {
		t.Fatal("duplicate registration should fail")
	}
	if got := strings.Join(reg.Names(), ","); got != "alpha,beta,broken" {
		t.Fatalf("Names = %s", got)
	}

	providers, err := reg.Build([]string{"beta", "missing", "alpha", "broken", "beta"}, Deps{})
	if len(providers) != 2 || providers[0].Name() != "beta" || providers[1].Name() != "alpha" {
		t.Fatalf("providers = %v", providers)
	}
	if err == nil || !errors.Is(err, ErrConfiguration) {
		t.Fatalf("expected configuration errors, got %v", err)
	}
	for _, fragment := range []string{"missing", "no api key"} {
		if !strings.Contains(err.Error(), fragment) {
			t.Fatalf("error %q lacks %q", err, fragment)
		}
	}
}
