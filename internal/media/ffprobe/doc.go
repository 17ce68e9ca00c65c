// Package ffprobe provides a typed wrapper around ffprobe JSON output.
//
// Inspect runs the binary and Parse decodes its output; helpers on Result
// pick out the main video stream, frame rate, duration, and the languages
// of embedded subtitle streams used by the media refiner.
package ffprobe
