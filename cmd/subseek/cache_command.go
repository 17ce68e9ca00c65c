package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"subseek/internal/cache"
)

func newCacheCommand(ctx *commandContext) *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or clear the provider and refiner cache",
	}
	cacheCmd.AddCommand(newCacheStatsCommand(ctx))
	cacheCmd.AddCommand(newCacheClearCommand(ctx))
	return cacheCmd
}

func openCache(ctx *commandContext) (*cache.Cache, string, error) {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return nil, "", err
	}
	logger, err := ctx.ensureLogger()
	if err != nil {
		return nil, "", err
	}
	store, err := cache.Open(cfg, logger)
	if err != nil {
		return nil, "", err
	}
	return store, cfg.CachePath(), nil
}

func newCacheStatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show cache backend and entry count",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, path, err := openCache(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			stats, err := store.Stats(cmd.Context())
			if err != nil {
				return err
			}
			if path == "" {
				path = "-"
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]column{textCol("Backend"), textCol("Path"), numCol("Entries")},
				[][]string{{stats.Backend, path, fmt.Sprintf("%d", stats.Entries)}},
			))
			return nil
		},
	}
}

func newCacheClearCommand(ctx *commandContext) *cobra.Command {
	var downloads bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove every cached entry",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, _, err := openCache(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			removed, err := store.Clear(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Removed %d cache entries\n", removed)

			if downloads {
				cfg, _ := ctx.ensureConfig()
				dir := cfg.OpenSubtitlesCacheDir()
				if err := os.RemoveAll(dir); err != nil {
					return fmt.Errorf("remove download cache %s: %w", dir, err)
				}
				fmt.Fprintf(out, "Removed download cache %s\n", dir)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&downloads, "downloads", false, "Also delete cached opensubtitles payloads")
	return cmd
}
