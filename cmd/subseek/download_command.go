package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"subseek/internal/config"
	"subseek/internal/engine"
	"subseek/internal/runlock"
)

type downloadFlags struct {
	languages       []string
	providers       []string
	minScore        int
	hearingImpaired string
	foreignOnly     string
	force           bool
	single          bool
	skipWrongFPS    bool
	age             string
	directory       string
	encoding        string
	wait            bool
	json            bool
}

func newDownloadCommand(ctx *commandContext) *cobra.Command {
	var flags downloadFlags

	cmd := &cobra.Command{
		Use:   "download <path>...",
		Short: "Download the best subtitles for videos, directories or release names",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if err := flags.apply(cmd, cfg); err != nil {
				return err
			}

			lock, err := acquireRunLock(cmd, cfg.Paths.CacheDir, flags.wait)
			if err != nil {
				return err
			}
			defer lock.Release()

			eng, err := ctx.openEngine()
			if err != nil {
				return err
			}
			defer eng.Close(cmd.Context())

			report, runErr := eng.Process(cmd.Context(), args)
			if report != nil {
				if flags.json {
					if err := writeJSON(cmd, reportJSON(report)); err != nil {
						return err
					}
				} else {
					printReport(cmd, report)
				}
			}
			if runErr != nil {
				return runErr
			}
			if report.Failed() {
				return &exitError{code: 2, err: fmt.Errorf("%d video(s) failed", report.Counts()[engine.StatusFailed])}
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringSliceVarP(&flags.languages, "language", "l", nil, "Subtitle languages to download (repeatable, e.g. -l en -l pt-BR)")
	f.StringSliceVarP(&flags.providers, "provider", "p", nil, "Providers to query, in priority order")
	f.IntVarP(&flags.minScore, "min-score", "m", 0, "Minimum score a subtitle needs to be downloaded")
	f.StringVar(&flags.hearingImpaired, "hearing-impaired", "", "Hearing impaired subtitles: prefer, avoid or neutral")
	f.StringVar(&flags.foreignOnly, "foreign-only", "", "Foreign-only subtitles: prefer, avoid or neutral")
	f.BoolVarP(&flags.force, "force", "f", false, "Download languages the video already has")
	f.BoolVarP(&flags.single, "single", "s", false, "Save one subtitle without a language suffix")
	f.BoolVar(&flags.skipWrongFPS, "skip-wrong-fps", false, "Skip subtitles authored for another frame rate")
	f.StringVarP(&flags.age, "age", "a", "", "Skip videos older than this (e.g. 2w, 10d, 36h)")
	f.StringVarP(&flags.directory, "directory", "d", "", "Save subtitles to this directory instead of next to the video")
	f.StringVarP(&flags.encoding, "encoding", "e", "", "Re-encode saved subtitles (e.g. utf-8)")
	f.BoolVar(&flags.wait, "wait", false, "Wait for another running download instead of failing")
	f.BoolVar(&flags.json, "json", false, "Print the report as JSON")
	return cmd
}

// apply copies explicitly set flags over the [download] and [providers]
// sections and revalidates the result.
func (d *downloadFlags) apply(cmd *cobra.Command, cfg *config.Config) error {
	changed := cmd.Flags().Changed
	if changed("language") {
		cfg.Download.Languages = d.languages
	}
	if changed("provider") {
		cfg.Providers.Enabled = d.providers
	}
	if changed("min-score") {
		cfg.Download.MinScore = d.minScore
	}
	if changed("hearing-impaired") {
		cfg.Download.HearingImpaired = strings.ToLower(strings.TrimSpace(d.hearingImpaired))
	}
	if changed("foreign-only") {
		cfg.Download.ForeignOnly = strings.ToLower(strings.TrimSpace(d.foreignOnly))
	}
	if changed("force") {
		cfg.Download.Force = d.force
	}
	if changed("single") {
		cfg.Download.Single = d.single
	}
	if changed("skip-wrong-fps") {
		cfg.Download.SkipWrongFPS = d.skipWrongFPS
	}
	if changed("age") {
		cfg.Download.Age = d.age
	}
	if changed("directory") {
		dir, err := config.ExpandPath(d.directory)
		if err != nil {
			return fmt.Errorf("resolve directory: %w", err)
		}
		cfg.Download.Directory = dir
	}
	if changed("encoding") {
		cfg.Download.Encoding = d.encoding
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid options: %w", err)
	}
	return nil
}

func acquireRunLock(cmd *cobra.Command, dir string, wait bool) (*runlock.Lock, error) {
	if wait {
		return runlock.Wait(cmd.Context(), dir)
	}
	lock, err := runlock.Acquire(dir)
	if errors.Is(err, runlock.ErrLocked) {
		return nil, fmt.Errorf("another download is running (lock %s); retry later or pass --wait", filepath.Join(dir, runlock.FileName))
	}
	return lock, err
}

func printReport(cmd *cobra.Command, report *engine.Report) {
	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)

	rows := make([][]string, 0, len(report.Entries))
	for _, entry := range report.Entries {
		rows = append(rows, []string{
			filepath.Base(entry.Video),
			statusLabel(entry.Status, colorize),
			savedLanguages(entry),
			entryDetail(entry),
		})
	}
	if len(rows) > 0 {
		fmt.Fprintln(out, renderTable(
			[]column{textCol("Video"), textCol("Status"), textCol("Subtitles"), textCol("Detail")},
			rows,
		))
	}

	counts := report.Counts()
	fmt.Fprintf(out, "Downloaded %d subtitle(s) for %d video(s) in %s (%d not found, %d skipped, %d failed)\n",
		report.Downloaded(),
		counts[engine.StatusDownloaded],
		report.Elapsed().Round(time.Millisecond),
		counts[engine.StatusNotFound],
		counts[engine.StatusSkipped],
		counts[engine.StatusFailed],
	)
}

func savedLanguages(entry engine.Entry) string {
	if len(entry.Saved) == 0 {
		return "-"
	}
	parts := make([]string, 0, len(entry.Saved))
	for _, s := range entry.Saved {
		parts = append(parts, s.Language.String()+" ("+strconv.Itoa(s.Score)+")")
	}
	return strings.Join(parts, ", ")
}

func entryDetail(entry engine.Entry) string {
	switch {
	case entry.Err != nil:
		return entry.FailureReason() + ": " + entry.Err.Error()
	case len(entry.Missing) > 0:
		langs := make([]string, 0, len(entry.Missing))
		for _, l := range entry.Missing {
			langs = append(langs, l.String())
		}
		detail := "missing " + strings.Join(langs, ", ")
		if entry.Attempts > 0 {
			detail += fmt.Sprintf(" after %d attempt(s)", entry.Attempts)
		}
		return detail
	default:
		return entry.Reason
	}
}

type savedJSON struct {
	Key      string `json:"key"`
	Language string `json:"language"`
	Path     string `json:"path"`
	Score    int    `json:"score"`
}

type entryJSON struct {
	Video    string      `json:"video"`
	Status   string      `json:"status"`
	Saved    []savedJSON `json:"saved,omitempty"`
	Missing  []string    `json:"missing,omitempty"`
	Attempts int         `json:"attempts"`
	Reason   string      `json:"reason,omitempty"`
	Error    string      `json:"error,omitempty"`
}

type reportOutput struct {
	RequestID string      `json:"request_id"`
	Started   time.Time   `json:"started"`
	Finished  time.Time   `json:"finished"`
	Entries   []entryJSON `json:"entries"`
}

func reportJSON(report *engine.Report) reportOutput {
	out := reportOutput{
		RequestID: report.RequestID,
		Started:   report.Started,
		Finished:  report.Finished,
		Entries:   make([]entryJSON, 0, len(report.Entries)),
	}
	for _, entry := range report.Entries {
		e := entryJSON{
			Video:    entry.Video,
			Status:   string(entry.Status),
			Attempts: entry.Attempts,
			Reason:   entry.Reason,
		}
		if entry.Err != nil {
			e.Error = entry.Err.Error()
		}
		for _, s := range entry.Saved {
			e.Saved = append(e.Saved, savedJSON{Key: s.Key, Language: s.Language.String(), Path: s.Path, Score: s.Score})
		}
		for _, l := range entry.Missing {
			e.Missing = append(e.Missing, l.String())
		}
		out.Entries = append(out.Entries, e)
	}
	return out
}
