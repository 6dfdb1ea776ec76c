package main

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"simpleclipboard/internal/clipboard"
	"simpleclipboard/internal/config"
	"simpleclipboard/internal/daemon"
	"simpleclipboard/internal/ipc"
	"simpleclipboard/internal/journal"
	"simpleclipboard/internal/logging"
	"simpleclipboard/internal/metrics"
	"simpleclipboard/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	daemon     *daemon.Daemon
	memory     *clipboard.Memory
	store      *journal.Store
	configPath string
	addr       string
}

// newTestConfig returns a config whose runtime dir is short enough to hold
// the control socket, written to disk for --config.
func newTestConfig(t *testing.T, opts ...testsupport.ConfigOption) (*config.Config, string) {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)
	runtimeDir, err := os.MkdirTemp("", "scb-cli")
	if err != nil {
		t.Fatalf("mkdir runtime dir: %v", err)
	}
	t.Cleanup(func() { _ = os.RemoveAll(runtimeDir) })
	cfg.Paths.RuntimeDir = runtimeDir
	cfg.Logging.File = filepath.Join(cfg.Paths.StateDir, "daemon.log")
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}

	data, err := cfg.TOML()
	if err != nil {
		t.Fatalf("render config: %v", err)
	}
	configPath := filepath.Join(testsupport.BaseDir(cfg), "config.toml")
	if err := os.WriteFile(configPath, data, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return cfg, configPath
}

func setupCLITestEnv(t *testing.T, opts ...testsupport.ConfigOption) *cliTestEnv {
	t.Helper()
	testsupport.Listen(t)
	cfg, configPath := newTestConfig(t, opts...)

	logger := logging.NewNop()
	mem := clipboard.NewMemory()
	store := testsupport.MustOpenJournal(t, cfg)

	d, err := daemon.New(cfg, daemon.Dependencies{
		Sink:    clipboard.NewGuarded(mem.Opener(), logger),
		Journal: store,
		Metrics: metrics.New(),
	}, logger)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	if err := d.Start(ctx); err != nil {
		cancel()
		t.Fatalf("Start: %v", err)
	}

	srv, err := ipc.NewServer(ctx, cfg.SocketPath(), ipc.Backend{
		Daemon:   d,
		History:  store,
		LogPath:  cfg.Logging.File,
		Shutdown: cancel,
	}, logger)
	if err != nil {
		cancel()
		d.Stop()
		if strings.Contains(err.Error(), "operation not permitted") {
			t.Skipf("unix sockets unavailable: %v", err)
		}
		t.Fatalf("ipc.NewServer: %v", err)
	}
	srv.Serve()

	t.Cleanup(func() {
		cancel()
		srv.Close()
		d.Stop()
	})

	return &cliTestEnv{
		cfg:        cfg,
		daemon:     d,
		memory:     mem,
		store:      store,
		configPath: configPath,
		addr:       d.Addr(),
	}
}

func (e *cliTestEnv) waitForEntries(t *testing.T, n int) {
	t.Helper()
	waitFor(t, 3*time.Second, func() bool {
		entries, err := e.store.List(context.Background(), 100)
		return err == nil && len(entries) >= n
	})
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	return runCLIWithInput(t, args, configPath, nil)
}

func runCLIWithInput(t *testing.T, args []string, configPath string, stdin io.Reader) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	if stdin != nil {
		cmd.SetIn(stdin)
	}
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func waitFor(t *testing.T, duration time.Duration, fn func() bool) {
	t.Helper()
	deadline := time.Now().Add(duration)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s", duration)
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
