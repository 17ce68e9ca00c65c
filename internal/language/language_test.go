package language

import (
	"errors"
	"strings"
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		input string
		want  Language
	}{
		{"en", Language{Code: "eng"}},
		{"EN", Language{Code: "eng"}},
		{"eng", Language{Code: "eng"}},
		{"fre", Language{Code: "fra"}},
		{"ger", Language{Code: "deu"}},
		{"chi", Language{Code: "zho"}},
		{"pt-BR", Language{Code: "por", Region: "BR"}},
		{"pt_br", Language{Code: "por", Region: "BR"}},
		{"English", Language{Code: "eng"}},
		{"brazilian", Language{Code: "por", Region: "BR"}},
		{"und", Und},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := Parse(tt.input)
			if err != nil {
				t.Fatalf("Parse(%q) error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Fatalf("Parse(%q) = %+v, want %+v", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseRejectsUnknown(t *testing.T) {
	for _, input := range []string{"", " ", "abcd", "not a language"} {
		if _, err := Parse(input); !errors.Is(err, ErrUnknown) {
			t.Errorf("Parse(%q) error = %v, want ErrUnknown", input, err)
		}
	}
}

func TestLanguageFormats(t *testing.T) {
	br := MustParse("pt-BR")
	if br.Alpha2() != "pt" || br.Alpha3() != "por" || br.IETF() != "pt-BR" || br.String() != "pt-BR" {
		t.Fatalf("unexpected forms for pt-BR: %q %q %q %q", br.Alpha2(), br.Alpha3(), br.IETF(), br.String())
	}
	if got := br.Format("alpha3"); got != "por-BR" {
		t.Fatalf("Format(alpha3) = %q", got)
	}
	en := MustParse("en")
	if en.Format("alpha2") != "en" || en.Format("alpha3") != "eng" || en.Format("ietf") != "en" {
		t.Fatalf("unexpected formats for en")
	}
	haw := MustParse("haw")
	if haw.Alpha2() != "" || haw.String() != "haw" {
		t.Fatalf("expected alpha-3 fallback for haw, got %q / %q", haw.Alpha2(), haw.String())
	}
	if Und.IETF() != "und" || !Und.IsUndefined() {
		t.Fatal("unexpected und forms")
	}
}

func TestToISO2(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"en", "en"},
		{"eng", "en"},
		{"fra", "fr"},
		{"fre", "fr"},
		{"dut", "nl"},
		{"zho", "zh"},
		{"French", "fr"},
		{"abcd", ""},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := ToISO2(tt.input); got != tt.expected {
				t.Errorf("ToISO2(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestToISO3(t *testing.T) {
	tests := map[string]string{
		"en":  "eng",
		"de":  "deu",
		"ger": "deu",
		"pl":  "pol",
		"":    "und",
		"zz":  "und",
	}
	for input, want := range tests {
		if got := ToISO3(input); got != want {
			t.Errorf("ToISO3(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestDisplayName(t *testing.T) {
	if got := DisplayName("en"); got != "English" {
		t.Fatalf("DisplayName(en) = %q", got)
	}
	if got := DisplayName("pt-BR"); !strings.Contains(got, "Portuguese") || !strings.Contains(got, "Brazil") {
		t.Fatalf("DisplayName(pt-BR) = %q", got)
	}
	if got := DisplayName(""); got != "Unknown" {
		t.Fatalf("DisplayName(\"\") = %q", got)
	}
	if got := DisplayName("qqq"); got != "QQQ" {
		t.Fatalf("DisplayName(qqq) = %q", got)
	}
}

func TestFromTags(t *testing.T) {
	lang, ok := FromTags(map[string]string{"LANGUAGE": "ger"})
	if !ok || lang.Code != "deu" {
		t.Fatalf("FromTags = %+v, %v", lang, ok)
	}
	lang, ok = FromTags(map[string]string{"language": "eng", "language_ietf": "en-GB"})
	if !ok || lang.Region != "GB" {
		t.Fatalf("expected ietf tag to win, got %+v", lang)
	}
	if _, ok := FromTags(map[string]string{"title": "Commentary"}); ok {
		t.Fatal("expected no language without language tags")
	}
}

func TestSet(t *testing.T) {
	s, err := ParseSet("en", "fr", "eng")
	if err != nil {
		t.Fatalf("ParseSet: %v", err)
	}
	if s.Len() != 2 {
		t.Fatalf("expected dedupe to 2 members, got %d", s.Len())
	}
	other := NewSet(MustParse("fr"), MustParse("de"))
	if got := s.Intersect(other).String(); got != "fr" {
		t.Fatalf("Intersect = %q", got)
	}
	if got := s.Difference(other).String(); got != "en" {
		t.Fatalf("Difference = %q", got)
	}
	s.Add(Language{})
	if s.Len() != 2 {
		t.Fatal("zero language should be ignored")
	}
	if _, err := ParseSet("en", "bogus language"); err == nil {
		t.Fatal("expected parse error")
	}
}
