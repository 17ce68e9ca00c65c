// Package main hosts the subseek CLI entrypoint and command graph.
//
// The Cobra-based command tree turns terminal invocations into engine runs:
// downloading the best subtitles for videos, listing candidates, reporting
// provider health, fingerprinting files and maintaining the cache. It
// centralizes configuration resolution and logging setup so subcommands only
// deal with flags and output.
package main
