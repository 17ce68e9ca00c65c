// Package services defines shared error markers and context helpers consumed by
// the engine, the provider pool, and the CLI.
//
// Key responsibilities:
//   - Context helpers that stamp stage names, provider names, video names, and
//     correlation identifiers for logging and tracing.
//   - Structured error markers plus the Wrap helper so failures can be
//     classified with errors.Is regardless of how deeply they were wrapped.
//
// Use these helpers when wiring new components so operational behaviour (error
// handling, observability) stays uniform across the module.
package services
