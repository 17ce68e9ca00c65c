// Package selection ranks subtitle candidates for a video and downloads the
// best valid one per wanted language.
package selection
