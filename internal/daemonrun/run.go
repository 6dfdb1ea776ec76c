// Package daemonrun wires config, logging, the clipboard sink, the journal,
// metrics, the relay daemon and the control socket into one process.
package daemonrun

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"

	"simpleclipboard/internal/clipboard"
	"simpleclipboard/internal/config"
	"simpleclipboard/internal/daemon"
	"simpleclipboard/internal/ipc"
	"simpleclipboard/internal/journal"
	"simpleclipboard/internal/logging"
	"simpleclipboard/internal/metrics"
)

// Options configures daemon process runtime behavior.
type Options struct {
	// LogLevel overrides logging.level when set.
	LogLevel string
	// Logger replaces the logger built from config. Used by tests.
	Logger *slog.Logger
}

// Run serves until ctx is cancelled, SIGINT/SIGTERM arrives, or a client
// sends Stop over the control socket.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return errors.New("config is required")
	}

	ctx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	logger := opts.Logger
	if logger == nil {
		logCfg := *cfg
		if level := strings.TrimSpace(opts.LogLevel); level != "" {
			logCfg.Logging.Level = level
		}
		var err error
		logger, err = logging.NewFromConfig(&logCfg)
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
	}

	opener, err := clipboard.NewOpener(cfg.Clipboard.Backend, cfg.Clipboard.Command)
	if err != nil {
		return fmt.Errorf("clipboard backend: %w", err)
	}
	sink := clipboard.NewGuarded(opener, logger)
	defer sink.Close()

	var (
		store    *journal.Store
		recorder daemon.Recorder
		history  ipc.History
		bg       sync.WaitGroup
	)
	if cfg.Journal.Enabled {
		store, err = journal.Open(ctx, cfg.JournalPath())
		if err != nil {
			return fmt.Errorf("open journal: %w", err)
		}
		defer store.Close()
		if store.Rebuilt() {
			logging.WarnWithContext(logger, "journal layout was outdated and has been reset", "journal_rebuilt",
				logging.String("journal_path", store.Path()),
				logging.String(logging.FieldImpact, "earlier delivery history is no longer listed"),
				logging.String(logging.FieldErrorHint, "no action needed"),
			)
		}
		recorder, history = store, store

		bg.Add(1)
		go func() {
			defer bg.Done()
			journal.RunRetention(ctx, store, cfg.Journal.RetentionDays, logger)
		}()
	}
	defer bg.Wait()
	// cancel runs before bg.Wait so retention stops first.
	defer cancel()

	d, err := daemon.New(cfg, daemon.Dependencies{
		Sink:    sink,
		Journal: recorder,
		Metrics: metrics.New(),
	}, logger)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	if err := d.Start(ctx); err != nil {
		logging.ErrorWithContext(logger, "daemon start failed", "daemon_start_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check daemon.listen and whether another instance holds the lock"),
		)
		return err
	}
	defer d.Stop()

	pidPath := cfg.PIDPath()
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	ipcServer, err := ipc.NewServer(ctx, cfg.SocketPath(), ipc.Backend{
		Daemon:   d,
		History:  history,
		LogPath:  cfg.Logging.File,
		Shutdown: cancel,
	}, logger)
	if err != nil {
		return fmt.Errorf("start IPC server: %w", err)
	}
	defer ipcServer.Close()
	ipcServer.Serve()

	select {
	case <-ctx.Done():
	case <-d.Done():
		logging.WarnWithContext(logger, "accept loop exited unexpectedly", "daemon_serve_stopped",
			logging.String(logging.FieldImpact, "no further clipboard requests are accepted"),
		)
	}
	logger.Info("simpleclipboard daemon shutting down")
	return nil
}

func writePIDFile(path string) error {
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())+"\n"), 0o644)
}
