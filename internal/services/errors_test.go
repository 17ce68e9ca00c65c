package services_test

import (
	"errors"
	"strings"
	"testing"

	"subseek/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrExternalTool, "refine", "ffprobe", "failed", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"refine", "ffprobe", "failed"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapDefaultsToTransient(t *testing.T) {
	err := services.Wrap(nil, "", "", "", nil)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient marker, got %v", err)
	}
	if !strings.Contains(err.Error(), "service failure") {
		t.Fatalf("expected fallback detail, got %q", err.Error())
	}
}

func TestFailureReasonMapping(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{services.Wrap(services.ErrConfiguration, "config", "load", "bad", nil), "configuration"},
		{services.Wrap(services.ErrValidation, "subtitle", "validate", "bad", nil), "validation"},
		{services.Wrap(services.ErrNotFound, "engine", "scan", "missing", nil), "not_found"},
		{services.Wrap(services.ErrTimeout, "pool", "list", "slow", nil), "timeout"},
		{errors.New("plain"), "failed"},
	}
	for _, tt := range tests {
		if got := services.FailureReason(tt.err); got != tt.want {
			t.Fatalf("FailureReason(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}
