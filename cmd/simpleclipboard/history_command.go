package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"simpleclipboard/internal/config"
	"simpleclipboard/internal/ipc"
	"simpleclipboard/internal/journal"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent deliveries from the journal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			deliveries, err := loadHistory(cmd.Context(), cfg, limit)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, deliveries)
			}

			out := cmd.OutOrStdout()
			if len(deliveries) == 0 {
				fmt.Fprintln(out, "No deliveries recorded")
				return nil
			}
			fmt.Fprintln(out, renderTable(
				[]string{"When", "Kind", "Size", "Format", "From", "Outcome", "Took"},
				historyRows(deliveries, time.Now()),
				[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft, alignLeft, alignLeft, alignRight},
			))
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of deliveries to show")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print deliveries as JSON")
	return cmd
}

// loadHistory asks the running daemon first and reads the journal file
// directly when no daemon answers.
func loadHistory(ctx context.Context, cfg *config.Config, limit int) ([]ipc.Delivery, error) {
	client, err := ipc.Dial(cfg.SocketPath())
	if err == nil {
		defer client.Close()
		resp, err := client.History(limit)
		if err != nil {
			return nil, err
		}
		return resp.Deliveries, nil
	}

	if !cfg.Journal.Enabled {
		return nil, ipc.ErrJournalDisabled
	}
	path := cfg.JournalPath()
	if _, statErr := os.Stat(path); errors.Is(statErr, os.ErrNotExist) {
		return nil, nil
	}
	store, err := journal.Open(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	defer store.Close()
	entries, err := store.List(ctx, limit)
	if err != nil {
		return nil, err
	}
	deliveries := make([]ipc.Delivery, 0, len(entries))
	for _, e := range entries {
		deliveries = append(deliveries, ipc.FromEntry(e))
	}
	return deliveries, nil
}

func historyRows(deliveries []ipc.Delivery, now time.Time) [][]string {
	rows := make([][]string, 0, len(deliveries))
	for _, d := range deliveries {
		outcome := detailLabel(d.Detail)
		if d.Failure != "" {
			outcome = "No ack: " + d.Failure
		}
		rows = append(rows, []string{
			humanize.RelTime(d.CreatedAt, now, "ago", "from now"),
			d.Kind,
			humanize.IBytes(uint64(max(d.TextBytes, 0))),
			d.Format,
			d.RemoteAddr,
			outcome,
			d.Duration.Round(time.Millisecond).String(),
		})
	}
	return rows
}
