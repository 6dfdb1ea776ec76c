package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"simpleclipboard/internal/daemonctl"
	"simpleclipboard/internal/preflight"
)

func newDoctorCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check that this host can run the daemon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			running, _, _ := daemonctl.ProcessInfo(cfg.SocketPath())
			results := preflight.RunAll(cmd.Context(), cfg, running)

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			for _, line := range renderSectionHeader("Checks", colorize) {
				fmt.Fprintln(out, line)
			}
			for _, line := range checkLines(results, colorize) {
				fmt.Fprintln(out, line)
			}
			if preflight.Failed(results) {
				return errors.New("one or more required checks failed")
			}
			fmt.Fprintln(out, "All required checks passed")
			return nil
		},
	}
}
