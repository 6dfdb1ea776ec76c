package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"simpleclipboard/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test,
// an ephemeral loopback listen address, and the in-memory clipboard backend.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Daemon.Listen = "127.0.0.1:0"
	cfgVal.Clipboard.Backend = "memory"
	cfgVal.Paths.RuntimeDir = filepath.Join(base, "run")
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Timeouts.ReadMS = 1000
	cfgVal.Timeouts.RequestMS = 2000

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}
	for _, opt := range opts {
		opt(builder)
	}
	return builder.cfg
}

// WithToken sets the expected shared secret.
func WithToken(token string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Daemon.Token = token
	}
}

// WithFinalAddr points the daemon at a next hop.
func WithFinalAddr(addr string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Daemon.FinalAddr = addr
	}
}

// WithMaxBytes lowers the message size limit.
func WithMaxBytes(n int64) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Daemon.MaxMessageBytes = n
	}
}

// WithJournalDisabled turns off the delivery journal.
func WithJournalDisabled() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Journal.Enabled = false
	}
}

// WithStubbedClipboardTool installs an executable named name on PATH that
// copies stdin to <base>/clipboard.out and selects it as the clipboard
// command. ClipboardOutput reads what it received.
func WithStubbedClipboardTool(name string) ConfigOption {
	return func(b *configBuilder) {
		binDir := filepath.Join(b.baseDir, "bin")
		if err := os.MkdirAll(binDir, 0o755); err != nil {
			b.t.Fatalf("mkdir bin dir: %v", err)
		}
		out := filepath.Join(b.baseDir, "clipboard.out")
		script := []byte("#!/bin/sh\ncat > '" + out + "'\n")
		if err := os.WriteFile(filepath.Join(binDir, name), script, 0o755); err != nil {
			b.t.Fatalf("write stub %s: %v", name, err)
		}

		oldPath := os.Getenv("PATH")
		if err := os.Setenv("PATH", binDir+string(os.PathListSeparator)+oldPath); err != nil {
			b.t.Fatalf("set PATH: %v", err)
		}
		b.t.Cleanup(func() {
			_ = os.Setenv("PATH", oldPath)
		})
		b.cfg.Clipboard.Backend = "command"
		b.cfg.Clipboard.Command = []string{name}
	}
}

// ClipboardOutput returns what a stub installed by WithStubbedClipboardTool received.
func ClipboardOutput(t testing.TB, cfg *config.Config) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(BaseDir(cfg), "clipboard.out"))
	if err != nil {
		t.Fatalf("read stub clipboard output: %v", err)
	}
	return string(data)
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StateDir)
}
