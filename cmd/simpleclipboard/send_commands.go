package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"simpleclipboard/internal/client"
	"simpleclipboard/internal/config"
)

// errSendRejected marks a send the daemon answered negatively. The ack has
// already been printed, so main exits non-zero without repeating it.
var errSendRejected = errors.New("daemon rejected the request")

type sendFlags struct {
	addr  string
	token string
}

func (f *sendFlags) bind(cmd *cobra.Command, withToken bool) {
	cmd.Flags().StringVar(&f.addr, "addr", "", "Daemon address (defaults to daemon.listen)")
	if withToken {
		cmd.Flags().StringVar(&f.token, "token", "", "Shared secret (defaults to daemon.token)")
	}
}

func (f *sendFlags) address(cfg *config.Config) string {
	if addr := strings.TrimSpace(f.addr); addr != "" {
		return addr
	}
	return dialAddress(cfg.Daemon.Listen)
}

func (f *sendFlags) tokenOr(cfg *config.Config) string {
	if f.token != "" {
		return f.token
	}
	return cfg.Daemon.Token
}

func newSendCommands(ctx *commandContext) []*cobra.Command {
	var setOpts sendFlags
	setCmd := &cobra.Command{
		Use:   "set [text...]",
		Short: "Copy text to the clipboard (reads stdin when no text is given)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			text, err := textArgument(cmd, args, cfg)
			if err != nil {
				return err
			}
			return send(cmd, cfg, setOpts.address(cfg), client.Set(text, setOpts.tokenOr(cfg)))
		},
	}
	setOpts.bind(setCmd, true)

	var legacyOpts sendFlags
	legacyCmd := &cobra.Command{
		Use:   "legacy [text...]",
		Short: "Copy text using the unframed single-text message",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			text, err := textArgument(cmd, args, cfg)
			if err != nil {
				return err
			}
			return send(cmd, cfg, legacyOpts.address(cfg), client.Legacy(text))
		},
	}
	legacyOpts.bind(legacyCmd, false)

	var pingOpts sendFlags
	pingCmd := &cobra.Command{
		Use:   "ping",
		Short: "Check that the daemon is reachable and accepts the token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return send(cmd, cfg, pingOpts.address(cfg), client.Ping(pingOpts.tokenOr(cfg)))
		},
	}
	pingOpts.bind(pingCmd, true)

	payloadCmd := &cobra.Command{
		Use:   "send-payload",
		Short: "Deliver an editor bridge payload read from stdin",
		Long: "Reads addr\\x01text, addr\\x01set\\x01text[\\x01token] or addr\\x01ping\\x01\\x01[token] " +
			"from stdin and sends it the way editor plugins do.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			raw, err := readLimited(cmd.InOrStdin(), cfg.Daemon.MaxMessageBytes)
			if err != nil {
				return err
			}
			address, req, err := client.ParsePayload(raw)
			if err != nil {
				return err
			}
			return send(cmd, cfg, address, req)
		},
	}

	return []*cobra.Command{setCmd, legacyCmd, pingCmd, payloadCmd}
}

func send(cmd *cobra.Command, cfg *config.Config, address string, req client.Request) error {
	opts := client.Options{
		ConnectTimeout: cfg.ConnectTimeout(),
		WriteTimeout:   cfg.WriteTimeout(),
		AckTimeout:     cfg.AckReadTimeout(),
		MaxBytes:       int(cfg.Daemon.MaxMessageBytes),
	}
	result, err := client.SendClipboardText(cmd.Context(), address, req, opts)
	if err != nil {
		if client.IsConnectError(err) {
			return fmt.Errorf("daemon at %s is unreachable: %w", address, err)
		}
		return err
	}

	out := cmd.OutOrStdout()
	if result.Ack == nil {
		if result.Success {
			fmt.Fprintln(out, "Delivered (daemon sent no ack)")
			return nil
		}
		fmt.Fprintln(out, "Daemon answered with an invalid frame")
		return errSendRejected
	}
	detail := result.Ack.DetailString()
	fmt.Fprintf(out, "%s (ok=%t detail=%s format=%s)\n", detailLabel(detail), result.Ack.OK, detail, result.Format)
	if !result.Success {
		return errSendRejected
	}
	return nil
}

func textArgument(cmd *cobra.Command, args []string, cfg *config.Config) (string, error) {
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}
	return readLimited(cmd.InOrStdin(), cfg.Daemon.MaxMessageBytes)
}

func readLimited(r io.Reader, limit int64) (string, error) {
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	if int64(len(data)) > limit {
		return "", fmt.Errorf("input exceeds %d bytes", limit)
	}
	return string(data), nil
}
