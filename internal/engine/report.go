package engine

import (
	"time"

	"subseek/internal/language"
	"subseek/internal/services"
)

// Status is the outcome of one video in a run.
type Status string

const (
	StatusDownloaded Status = "downloaded"
	StatusNotFound   Status = "not_found"
	StatusSkipped    Status = "skipped"
	StatusFailed     Status = "failed"
)

// SavedSubtitle describes a subtitle written to disk.
type SavedSubtitle struct {
	Key      string
	Language language.Language
	Path     string
	Score    int
}

// Entry is the per-video line of a Report.
type Entry struct {
	Video    string
	Status   Status
	Saved    []SavedSubtitle
	Missing  []language.Language
	Attempts int
	// Reason explains skipped and not-found entries.
	Reason string
	Err    error
}

// FailureReason is a short label for failed entries.
func (e Entry) FailureReason() string {
	return services.FailureReason(e.Err)
}

// Report summarises a Process run.
type Report struct {
	RequestID string
	Started   time.Time
	Finished  time.Time
	Entries   []Entry
}

func (r *Report) add(e Entry) { r.Entries = append(r.Entries, e) }

func (r *Report) finish() *Report {
	if r.Finished.IsZero() {
		r.Finished = time.Now()
	}
	return r
}

// Elapsed is the wall time of the run.
func (r *Report) Elapsed() time.Duration {
	if r.Finished.IsZero() {
		return time.Since(r.Started)
	}
	return r.Finished.Sub(r.Started)
}

// Counts tallies entries by status.
func (r *Report) Counts() map[Status]int {
	counts := make(map[Status]int, 4)
	for _, e := range r.Entries {
		counts[e.Status]++
	}
	return counts
}

// Downloaded returns the number of subtitles saved.
func (r *Report) Downloaded() int {
	n := 0
	for _, e := range r.Entries {
		n += len(e.Saved)
	}
	return n
}

// Failed reports whether any entry failed.
func (r *Report) Failed() bool {
	return r.Counts()[StatusFailed] > 0
}
