// Package subtitle holds candidate subtitles and everything done to their
// content after download: encoding detection, format sniffing, SRT parsing
// and cleanup, and saving next to the video.
//
// Providers create Subtitle values with their own Matcher attached; the
// selection policy downloads content into them and calls Validate before
// accepting one.
package subtitle
