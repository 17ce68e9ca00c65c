// Package video models the media assets subtitles are searched for.
//
// A Video is either an episode or a movie, built by Scan from a file on disk
// or by FromName from a bare release name. Names are parsed with go-ptn and
// a small token table for codecs and streaming services. Refiners enrich the
// value in place before it is scored; fingerprints, once recorded, never
// change.
package video
