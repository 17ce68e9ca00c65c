// Package opensubtitles implements the opensubtitles.com REST provider.
//
// Searches combine every identifier known about a video (moviehash, IMDb and
// TMDb ids, title, season and episode) and fall back to single-identifier
// searches; answers are merged, de-duplicated and ordered by download count.
// Downloads require a login, whose token is kept in the shared cache for a
// day, and can be served from an on-disk payload store so repeat runs do not
// spend the daily quota.
package opensubtitles
