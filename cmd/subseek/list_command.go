package main

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"subseek/internal/language"
	"subseek/internal/pool"
	"subseek/internal/score"
	"subseek/internal/selection"
	"subseek/internal/video"
)

func newListCommand(ctx *commandContext) *cobra.Command {
	var languages []string
	var limit int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list <path>...",
		Short: "List ranked subtitle candidates without downloading",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var langs language.Set
			if len(languages) > 0 {
				parsed, err := language.ParseSet(languages...)
				if err != nil {
					return err
				}
				langs = parsed
			}

			eng, err := ctx.openEngine()
			if err != nil {
				return err
			}
			defer eng.Close(cmd.Context())

			videos, scanErr := eng.ScanPaths(cmd.Context(), args)
			if scanErr != nil {
				if err := cmd.Context().Err(); err != nil {
					return err
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "Some paths could not be scanned: %v\n", scanErr)
			}

			var listings []videoListing
			for _, v := range videos {
				ranked, listed, err := eng.ListCandidates(cmd.Context(), v, langs)
				if err != nil {
					return err
				}
				if limit > 0 && len(ranked) > limit {
					ranked = ranked[:limit]
				}
				listings = append(listings, videoListing{video: v, ranked: ranked, listed: listed})
			}

			if asJSON {
				out := make([]listingJSON, 0, len(listings))
				for _, l := range listings {
					out = append(out, l.json())
				}
				return writeJSON(cmd, out)
			}
			for i, l := range listings {
				if i > 0 {
					fmt.Fprintln(cmd.OutOrStdout())
				}
				l.print(cmd)
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVarP(&languages, "language", "l", nil, "Languages to list (defaults to download.languages)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Show at most this many candidates per video")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print candidates as JSON")
	return cmd
}

type videoListing struct {
	video  *video.Video
	ranked []selection.Candidate
	listed *pool.Results
}

func (l videoListing) print(cmd *cobra.Command) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s (%s)\n", l.video.Name(), l.video.Kind())
	for _, name := range sortedKeys(l.listed.Errors) {
		fmt.Fprintf(cmd.ErrOrStderr(), "  provider %s failed: %v\n", name, l.listed.Errors[name])
	}
	for _, name := range sortedKeys(l.listed.Skipped) {
		fmt.Fprintf(out, "  provider %s skipped: %s\n", name, l.listed.Skipped[name])
	}
	if len(l.ranked) == 0 {
		fmt.Fprintln(out, "  No subtitles found")
		return
	}
	rows := make([][]string, 0, len(l.ranked))
	for i, c := range l.ranked {
		s := c.Subtitle
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			s.Provider,
			s.ID,
			s.Language.String(),
			s.LanguageType.String(),
			strconv.Itoa(c.Score),
			joinOrDash(matchNames(c.Matches)),
			s.ReleaseName,
		})
	}
	fmt.Fprintln(out, renderTable(
		[]column{
			numCol("#"), textCol("Provider"), textCol("ID"), textCol("Language"),
			textCol("Type"), numCol("Score"), textCol("Matches"), textCol("Release"),
		},
		rows,
	))
}

type candidateJSON struct {
	Provider     string   `json:"provider"`
	ID           string   `json:"id"`
	Language     string   `json:"language"`
	LanguageType string   `json:"language_type"`
	Score        int      `json:"score"`
	Matches      []string `json:"matches"`
	Release      string   `json:"release,omitempty"`
	PageLink     string   `json:"page_link,omitempty"`
}

type listingJSON struct {
	Video      string            `json:"video"`
	Kind       string            `json:"kind"`
	Candidates []candidateJSON   `json:"candidates"`
	Errors     map[string]string `json:"errors,omitempty"`
	Skipped    map[string]string `json:"skipped,omitempty"`
}

func (l videoListing) json() listingJSON {
	out := listingJSON{
		Video:      l.video.Name(),
		Kind:       l.video.Kind().String(),
		Candidates: make([]candidateJSON, 0, len(l.ranked)),
		Skipped:    l.listed.Skipped,
	}
	if len(l.listed.Errors) > 0 {
		out.Errors = make(map[string]string, len(l.listed.Errors))
		for name, err := range l.listed.Errors {
			out.Errors[name] = err.Error()
		}
	}
	for _, c := range l.ranked {
		out.Candidates = append(out.Candidates, candidateJSON{
			Provider:     c.Subtitle.Provider,
			ID:           c.Subtitle.ID,
			Language:     c.Subtitle.Language.String(),
			LanguageType: c.Subtitle.LanguageType.String(),
			Score:        c.Score,
			Matches:      matchNames(c.Matches),
			Release:      c.Subtitle.ReleaseName,
			PageLink:     c.Subtitle.PageLink,
		})
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func matchNames(set score.Set) []string {
	names := make([]string, 0, set.Len())
	for _, m := range set.Sorted() {
		names = append(names, string(m))
	}
	return names
}

func joinOrDash(values []string) string {
	if len(values) == 0 {
		return "-"
	}
	return strings.Join(values, ", ")
}
