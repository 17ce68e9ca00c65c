// Package textutil provides the text normalisation used when comparing video
// and subtitle metadata.
//
// Sanitize folds titles to a comparable form; SanitizeReleaseGroup and
// EquivalentReleaseGroups handle release group spellings.
package textutil
