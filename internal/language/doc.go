// Package language provides the Language value used across subseek and the
// conversions between ISO 639-1, ISO 639-2, IETF tags, English names and
// container metadata tags.
//
// Parsing and canonicalisation are delegated to golang.org/x/text/language;
// this package adds bibliographic ISO 639-2 codes, English word forms, and a
// comparable value type suitable for map keys and sets.
package language
