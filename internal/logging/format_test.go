package logging

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestQuotedValue(t *testing.T) {
	tests := []struct {
		name  string
		value slog.Value
		want  string
	}{
		{"bare word", slog.StringValue("opensubtitles"), "opensubtitles"},
		{"spaces", slog.StringValue("no valid subtitle"), `"no valid subtitle"`},
		{"empty", slog.StringValue(""), `""`},
		{"equals", slog.StringValue("a=b"), `"a=b"`},
		{"int", slog.IntValue(-3), "-3"},
		{"float", slog.Float64Value(0.5), "0.5"},
		{"bool", slog.BoolValue(true), "true"},
		{"duration", slog.DurationValue(1500 * time.Millisecond), "1.5s"},
		{"error", slog.AnyValue(errors.New("timed out")), `"timed out"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := quotedValue(tt.value); got != tt.want {
				t.Fatalf("quotedValue = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestPlainValueNeverQuotes(t *testing.T) {
	if got := plainValue(slog.StringValue("no valid subtitle")); got != "no valid subtitle" {
		t.Fatalf("plainValue = %q", got)
	}
}

func TestConsoleTime(t *testing.T) {
	if consoleTime(time.Time{}) != "" {
		t.Fatal("zero time should render empty")
	}
	ts := time.Date(2024, 3, 9, 14, 5, 6, 789_000_000, time.Local)
	if got := consoleTime(ts); got != "2024-03-09 14:05:06.789" {
		t.Fatalf("consoleTime = %s", got)
	}
}

func TestWarnWithContextFillsDefaults(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	WarnWithContext(logger, "provider discarded", "provider_discarded",
		String(FieldErrorHint, "check credentials"),
	)
	out := buf.String()
	for _, want := range []string{
		"event_type=provider_discarded",
		`error_hint="check credentials"`,
		`impact="some subtitles may be missing"`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %s in %q", want, out)
		}
	}
	if strings.Count(out, "error_hint=") != 1 {
		t.Fatalf("error_hint duplicated: %q", out)
	}
}

func TestNopLoggerDiscards(t *testing.T) {
	logger := NewComponentLogger(nil, "pool")
	if logger.Enabled(context.Background(), slog.LevelError) {
		t.Fatal("nop logger should be disabled")
	}
}
