package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"subseek/internal/fingerprint"
)

var hashAlgorithms = []string{
	fingerprint.AlgorithmOpenSubtitles,
	fingerprint.AlgorithmNapiProjekt,
	fingerprint.AlgorithmTheSubDB,
	fingerprint.AlgorithmShooter,
	fingerprint.AlgorithmFragment,
}

func newHashCommand() *cobra.Command {
	var algorithms []string

	cmd := &cobra.Command{
		Use:         "hash <file>...",
		Short:       "Print the provider fingerprints of video files",
		Args:        cobra.MinimumNArgs(1),
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			selected := hashAlgorithms
			if len(algorithms) > 0 {
				selected = algorithms
			}
			funcs := make([]fingerprint.Func, 0, len(selected))
			for _, name := range selected {
				fn, ok := fingerprint.ByName(strings.ToLower(strings.TrimSpace(name)))
				if !ok {
					return fmt.Errorf("unknown algorithm %q (choose from %s)", name, strings.Join(hashAlgorithms, ", "))
				}
				funcs = append(funcs, fn)
			}

			var rows [][]string
			for _, path := range args {
				for i, fn := range funcs {
					if err := cmd.Context().Err(); err != nil {
						return err
					}
					value, ok, err := fn(path)
					switch {
					case err != nil:
						return fmt.Errorf("hash %s: %w", path, err)
					case !ok:
						value = "(file too small)"
					}
					rows = append(rows, []string{filepath.Base(path), selected[i], value})
				}
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]column{textCol("File"), textCol("Algorithm"), textCol("Hash")},
				rows,
			))
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&algorithms, "algorithm", nil, "Algorithms to compute (default: all)")
	return cmd
}
