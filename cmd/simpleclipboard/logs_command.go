package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"simpleclipboard/internal/config"
	"simpleclipboard/internal/ipc"
	"simpleclipboard/internal/logs"
)

const followWait = 2 * time.Second

// tailFunc fetches log lines from offset; offset -1 means the last limit lines.
type tailFunc func(ctx context.Context, offset int64, limit int, wait time.Duration) ([]string, int64, error)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var lines int
	var follow bool

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show the daemon log file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if cfg.Logging.File == "" {
				return errors.New("logging.file is not set; the daemon only logs to stderr")
			}

			fetch, closeFn := logSource(cfg)
			defer closeFn()
			return streamLogs(cmd.Context(), cmd.OutOrStdout(), fetch, lines, follow)
		},
	}
	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of trailing lines to show")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep printing new lines until interrupted")
	return cmd
}

// logSource reads through the daemon when it answers and falls back to the
// configured file otherwise.
func logSource(cfg *config.Config) (tailFunc, func()) {
	if client, err := ipc.Dial(cfg.SocketPath()); err == nil {
		fetch := func(_ context.Context, offset int64, limit int, wait time.Duration) ([]string, int64, error) {
			resp, err := client.LogTail(ipc.LogTailRequest{Offset: offset, Limit: limit, WaitMillis: int(wait / time.Millisecond)})
			if err != nil {
				return nil, offset, err
			}
			return resp.Lines, resp.Offset, nil
		}
		return fetch, func() { _ = client.Close() }
	}

	path := cfg.Logging.File
	fetch := func(ctx context.Context, offset int64, limit int, wait time.Duration) ([]string, int64, error) {
		res, err := logs.Tail(ctx, path, logs.Options{Offset: offset, Limit: limit, Wait: wait})
		return res.Lines, res.Offset, err
	}
	return fetch, func() {}
}

func streamLogs(ctx context.Context, out io.Writer, fetch tailFunc, lines int, follow bool) error {
	batch, offset, err := fetch(ctx, -1, lines, 0)
	if err != nil {
		return err
	}
	for _, line := range batch {
		fmt.Fprintln(out, line)
	}

	for follow {
		if ctx.Err() != nil {
			return nil
		}
		batch, offset, err = fetch(ctx, offset, 0, followWait)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		for _, line := range batch {
			fmt.Fprintln(out, line)
		}
	}
	return nil
}
