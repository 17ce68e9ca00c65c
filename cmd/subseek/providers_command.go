package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"subseek/internal/deps"
	"subseek/internal/pool"
)

func newProvidersCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "providers",
		Short: "Show enabled providers, cooldowns and refiner dependencies",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			eng, err := ctx.openEngine()
			if err != nil {
				return err
			}
			defer eng.Close(cmd.Context())

			status := eng.Providers(cmd.Context())
			binaries := deps.CheckBinaries(deps.RefinerRequirements(cfg.Refiners.Enabled, cfg.FFprobeBinary()))

			if asJSON {
				return writeJSON(cmd, providersJSON(status, eng.BuildError(), binaries))
			}

			out := cmd.OutOrStdout()
			rows := make([][]string, 0, len(status))
			for _, st := range status {
				rows = append(rows, []string{st.Name, st.State.String(), yesNo(!st.Discarded && st.CooldownUntil.IsZero()), cooldownText(st.CooldownUntil), st.Reason})
			}
			fmt.Fprintln(out, renderTable(
				[]column{textCol("Provider"), textCol("State"), textCol("Available"), textCol("Cooldown Until"), textCol("Reason")},
				rows,
			))
			if err := eng.BuildError(); err != nil {
				fmt.Fprintf(out, "Not loaded: %v\n", err)
			}
			if len(binaries) > 0 {
				colorize := shouldColorize(out)
				for _, line := range dependencyLines(binaries, colorize) {
					fmt.Fprintln(out, line)
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print provider status as JSON")

	cmd.AddCommand(newProvidersResetCommand(ctx))
	return cmd
}

func newProvidersResetCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "reset <provider>...",
		Short: "Clear provider cooldowns so the next run queries them again",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := ctx.openEngine()
			if err != nil {
				return err
			}
			defer eng.Close(cmd.Context())

			out := cmd.OutOrStdout()
			for _, name := range args {
				name = strings.TrimSpace(name)
				if err := eng.ClearCooldown(cmd.Context(), name); err != nil {
					return fmt.Errorf("reset %s: %w", name, err)
				}
				fmt.Fprintf(out, "Cleared cooldown for %s\n", name)
			}
			return nil
		},
	}
}

func cooldownText(until time.Time) string {
	if until.IsZero() {
		return "-"
	}
	return until.Local().Format("2006-01-02 15:04:05")
}

func dependencyLines(statuses []deps.Status, colorize bool) []string {
	lines := []string{"", "Dependencies:"}
	for _, s := range statuses {
		lines = append(lines, dependencyLine(s, colorize))
	}
	if missing := deps.Missing(statuses); len(missing) > 0 {
		names := make([]string, 0, len(missing))
		for _, s := range missing {
			names = append(names, s.Name)
		}
		lines = append(lines, "Missing dependencies: "+strings.Join(names, ", "))
	}
	return lines
}

type providerJSON struct {
	Name          string     `json:"name"`
	State         string     `json:"state"`
	Discarded     bool       `json:"discarded"`
	Reason        string     `json:"reason,omitempty"`
	CooldownUntil *time.Time `json:"cooldown_until,omitempty"`
}

type dependencyJSON struct {
	Name      string `json:"name"`
	Command   string `json:"command"`
	Optional  bool   `json:"optional"`
	Available bool   `json:"available"`
	Detail    string `json:"detail,omitempty"`
}

type providersOutput struct {
	Providers    []providerJSON   `json:"providers"`
	BuildError   string           `json:"build_error,omitempty"`
	Dependencies []dependencyJSON `json:"dependencies,omitempty"`
}

func providersJSON(status []pool.ProviderStatus, buildErr error, binaries []deps.Status) providersOutput {
	out := providersOutput{Providers: make([]providerJSON, 0, len(status))}
	for _, st := range status {
		p := providerJSON{Name: st.Name, State: st.State.String(), Discarded: st.Discarded, Reason: st.Reason}
		if !st.CooldownUntil.IsZero() {
			until := st.CooldownUntil
			p.CooldownUntil = &until
		}
		out.Providers = append(out.Providers, p)
	}
	if buildErr != nil {
		out.BuildError = buildErr.Error()
	}
	for _, b := range binaries {
		out.Dependencies = append(out.Dependencies, dependencyJSON{
			Name:      b.Name,
			Command:   b.Command,
			Optional:  b.Optional,
			Available: b.Available,
			Detail:    b.Detail,
		})
	}
	return out
}
