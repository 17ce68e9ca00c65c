// Package score turns the attributes a subtitle shares with a video into a
// comparable integer.
//
// Matches form a closed vocabulary per video kind. Compute resolves the
// equivalences (a hash match stands alone, identity matches imply the
// attributes they pin down) and sums fixed weights in which every tier
// outweighs all lower tiers together. GuessMatches is the shared comparison
// providers use to build a match set from release-name guesses.
package score
