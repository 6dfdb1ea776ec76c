package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

const (
	envListen    = "SIMPLECLIPBOARD_ADDR"
	envFinalAddr = "SIMPLECLIPBOARD_FINAL_ADDR"
	envToken     = "SIMPLECLIPBOARD_TOKEN"
)

func (c *Config) normalize() error {
	c.applyEnv()
	c.normalizeDaemon()
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeClipboard()
	c.normalizeLogging()
	return nil
}

// applyEnv overlays the environment. A variable that is set but empty is
// ignored, matching how an unset token or relay address is represented.
func (c *Config) applyEnv() {
	if value := strings.TrimSpace(os.Getenv(envListen)); value != "" {
		c.Daemon.Listen = value
	}
	if value := strings.TrimSpace(os.Getenv(envFinalAddr)); value != "" {
		c.Daemon.FinalAddr = value
	}
	if value := os.Getenv(envToken); value != "" {
		c.Daemon.Token = value
	}
}

func (c *Config) normalizeDaemon() {
	c.Daemon.Listen = strings.TrimSpace(c.Daemon.Listen)
	if c.Daemon.Listen == "" {
		c.Daemon.Listen = defaultListen
	}
	c.Daemon.FinalAddr = strings.TrimSpace(c.Daemon.FinalAddr)
	if c.Daemon.MaxMessageBytes == 0 {
		c.Daemon.MaxMessageBytes = defaultMaxMessageBytes
	}
	c.Metrics.Listen = strings.TrimSpace(c.Metrics.Listen)
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.RuntimeDir) == "" {
		c.Paths.RuntimeDir = defaultRuntimeDir()
	}
	if c.Paths.RuntimeDir, err = expandPath(c.Paths.RuntimeDir); err != nil {
		return fmt.Errorf("paths.runtime_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if strings.TrimSpace(c.Logging.File) != "" {
		if c.Logging.File, err = expandPath(c.Logging.File); err != nil {
			return fmt.Errorf("logging.file: %w", err)
		}
	}
	return nil
}

func (c *Config) normalizeClipboard() {
	c.Clipboard.Backend = strings.ToLower(strings.TrimSpace(c.Clipboard.Backend))
	if c.Clipboard.Backend == "" {
		c.Clipboard.Backend = defaultClipboard
	}
	command := c.Clipboard.Command[:0:0]
	for _, arg := range c.Clipboard.Command {
		if arg = strings.TrimSpace(arg); arg != "" {
			command = append(command, arg)
		}
	}
	c.Clipboard.Command = command
	if len(command) > 0 && c.Clipboard.Backend == defaultClipboard {
		c.Clipboard.Backend = "command"
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

// defaultRuntimeDir prefers $XDG_RUNTIME_DIR when it is writable and falls
// back to a per-user directory under the system temp dir.
func defaultRuntimeDir() string {
	if base := strings.TrimSpace(os.Getenv("XDG_RUNTIME_DIR")); base != "" {
		if unix.Access(base, unix.W_OK|unix.X_OK) == nil {
			return filepath.Join(base, appName)
		}
	}
	return filepath.Join(os.TempDir(), appName+"-"+strconv.Itoa(unix.Getuid()))
}
