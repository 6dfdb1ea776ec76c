package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"simpleclipboard/internal/daemonctl"
	"simpleclipboard/internal/ipc"
	"simpleclipboard/internal/preflight"
)

const (
	stopGracePeriod  = 5 * time.Second
	startWaitTimeout = 10 * time.Second
)

func newDaemonCommands(ctx *commandContext) []*cobra.Command {
	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Start the simpleclipboard daemon in the background",
		RunE: func(cmd *cobra.Command, args []string) error {
			exe, err := daemonExecutable()
			if err != nil {
				return err
			}
			result, err := daemonctl.EnsureStarted(ctx.configValue(), exe, daemonLaunchOptions(ctx), startWaitTimeout)
			if err != nil {
				return err
			}

			stdout := cmd.OutOrStdout()
			switch result.State {
			case daemonctl.StartStateStarted:
				fmt.Fprintf(stdout, "Daemon started (pid %d)\n", result.PID)
			case daemonctl.StartStateAlreadyRunning:
				fmt.Fprintf(stdout, "Daemon already running (pid %d)\n", result.PID)
			}
			return nil
		},
	}

	stopCmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the simpleclipboard daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			result, err := daemonctl.StopAndTerminate(ctx.configValue(), stopGracePeriod)
			if errors.Is(err, daemonctl.ErrDaemonNotRunning) {
				fmt.Fprintln(stdout, "Daemon is not running")
				return nil
			}
			if err != nil {
				return err
			}
			if result.ForcedKill && result.PID > 0 {
				fmt.Fprintf(stdout, "Daemon did not exit in %s; killed pid %d\n", stopGracePeriod, result.PID)
			}
			fmt.Fprintln(stdout, "Daemon stopped")
			return nil
		},
	}

	restartCmd := &cobra.Command{
		Use:   "restart",
		Short: "Restart the simpleclipboard daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			exe, err := daemonExecutable()
			if err != nil {
				return err
			}
			result, err := daemonctl.Restart(ctx.configValue(), exe, daemonLaunchOptions(ctx), stopGracePeriod, startWaitTimeout)
			if err != nil {
				return err
			}

			stdout := cmd.OutOrStdout()
			if result.WasRunning {
				if result.Stop.ForcedKill && result.Stop.PID > 0 {
					fmt.Fprintf(stdout, "Killed daemon process (pid %d)\n", result.Stop.PID)
				}
				fmt.Fprintln(stdout, "Daemon stopped")
			}
			fmt.Fprintf(stdout, "Daemon restarted (pid %d)\n", result.Start.PID)
			return nil
		},
	}

	var statusJSON bool
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon state, host checks, and delivery counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := daemonctl.BuildStatusSnapshot(cmd.Context(), ctx.configValue())
			if err != nil {
				return err
			}
			if statusJSON {
				return writeJSON(cmd, snap)
			}
			stdout := cmd.OutOrStdout()
			renderStatus(stdout, snap, shouldColorize(stdout))
			return nil
		},
	}
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "Print the status snapshot as JSON")

	return []*cobra.Command{startCmd, stopCmd, restartCmd, statusCmd}
}

func renderStatus(out io.Writer, snap *daemonctl.Snapshot, colorize bool) {
	for _, line := range renderSectionHeader("Daemon", colorize) {
		fmt.Fprintln(out, line)
	}
	for _, line := range daemonLines(snap, colorize) {
		fmt.Fprintln(out, line)
	}
	fmt.Fprintln(out)

	for _, line := range renderSectionHeader("Checks", colorize) {
		fmt.Fprintln(out, line)
	}
	for _, line := range checkLines(snap.Checks, colorize) {
		fmt.Fprintln(out, line)
	}
	fmt.Fprintln(out)

	for _, line := range renderSectionHeader("Deliveries", colorize) {
		fmt.Fprintln(out, line)
	}
	if snap.Summary == nil {
		fmt.Fprintln(out, "Delivery journal unavailable")
		return
	}
	if snap.Summary.Total == 0 {
		fmt.Fprintln(out, "No deliveries recorded")
		return
	}
	fmt.Fprint(out, renderTable([]string{"Outcome", "Count"}, summaryRows(snap.Summary), []columnAlignment{alignLeft, alignRight}))
	fmt.Fprintln(out)
}

func daemonLines(snap *daemonctl.Snapshot, colorize bool) []string {
	st := snap.Daemon
	lines := make([]string, 0, 8)
	switch {
	case st.Running:
		lines = append(lines, renderStatusLine("simpleclipboard", statusOK, fmt.Sprintf("Running (pid %d)", st.PID), colorize))
	case snap.StalePID > 0:
		lines = append(lines, renderStatusLine("simpleclipboard", statusError,
			fmt.Sprintf("pid %d alive but control socket unreachable (try `simpleclipboard stop`)", snap.StalePID), colorize))
	default:
		lines = append(lines, renderStatusLine("simpleclipboard", statusWarn, "Not running (run `simpleclipboard start`)", colorize))
	}

	lines = append(lines, renderStatusLine("Listen", statusInfo, st.Listen, colorize))
	if st.FinalAddr != "" {
		lines = append(lines, renderStatusLine("Next hop", statusInfo, st.FinalAddr+" (relay mode)", colorize))
	} else {
		lines = append(lines, renderStatusLine("Next hop", statusInfo, "none (writes local clipboard)", colorize))
	}
	lines = append(lines, renderStatusLine("Token required", statusInfo, yesNo(st.TokenConfigured), colorize))
	if st.Running {
		uptime := time.Since(st.StartedAt).Truncate(time.Second)
		lines = append(lines,
			renderStatusLine("Uptime", statusInfo, uptime.String(), colorize),
			renderStatusLine("Connections", statusInfo, fmt.Sprintf("%d answered, %d failed, %d in flight", st.Answered, st.Failed, st.InFlight), colorize),
		)
		if st.MetricsListen != "" {
			lines = append(lines, renderStatusLine("Metrics", statusInfo, "http://"+st.MetricsListen+"/metrics", colorize))
		}
	}
	return lines
}

func checkLines(checks []preflight.Result, colorize bool) []string {
	lines := make([]string, 0, len(checks))
	for _, check := range checks {
		lines = append(lines, renderStatusLine(check.Name, statusKindFromSeverity(check.Severity()), check.Detail, colorize))
	}
	return lines
}

func summaryRows(sum *ipc.SummaryResponse) [][]string {
	details := make([]string, 0, len(sum.ByDetail))
	for detail := range sum.ByDetail {
		details = append(details, detail)
	}
	sort.Strings(details)

	rows := make([][]string, 0, len(details)+1)
	for _, detail := range details {
		rows = append(rows, []string{detailLabel(detail), strconv.Itoa(sum.ByDetail[detail])})
	}
	if sum.Failures > 0 {
		rows = append(rows, []string{"No ack (connection failed)", strconv.Itoa(sum.Failures)})
	}
	return rows
}

func daemonExecutable() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("resolve executable: %w", err)
	}
	return exe, nil
}

func daemonLaunchOptions(ctx *commandContext) daemonctl.LaunchOptions {
	return daemonctl.LaunchOptions{
		ConfigPath: ctx.configPath(),
		LogLevel:   ctx.logLevel(),
	}
}
