// Package config loads, normalizes, and validates subseek configuration.
//
// It supplies defaults, expands user paths (including tilde shortcuts), reads
// TOML files, and honours environment fallbacks for provider credentials such
// as OPENSUBTITLES_API_KEY. Always obtain settings through this package so
// downstream code receives expanded paths, canonical enum values, and clear
// validation errors.
package config
