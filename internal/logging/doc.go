// Package logging assembles structured slog loggers for subseek.
//
// It owns the console and JSON handlers, per-component level overrides, and
// the context helpers that tag log lines with the current stage, provider,
// video and correlation ID. NewNop returns a silent logger for tests and for
// library callers that did not supply one.
package logging
