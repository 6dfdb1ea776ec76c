package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Daemon contains the relay daemon's network identity.
type Daemon struct {
	Listen string `toml:"listen"`
	// FinalAddr is the next hop. Empty means this daemon owns the clipboard.
	FinalAddr string `toml:"final_addr"`
	// Token is the expected shared secret. Empty disables the check.
	Token           string `toml:"token"`
	MaxMessageBytes int64  `toml:"max_message_bytes"`
}

// Timeouts holds socket and request deadlines in milliseconds.
type Timeouts struct {
	ConnectMS int `toml:"connect_ms"`
	ReadMS    int `toml:"read_ms"`
	WriteMS   int `toml:"write_ms"`
	RequestMS int `toml:"request_ms"`
	AckReadMS int `toml:"ack_read_ms"`
}

// Admission bounds how much work the daemon accepts at once.
type Admission struct {
	Concurrency  int `toml:"concurrency"`
	RateCount    int `toml:"rate_count"`
	RateWindowMS int `toml:"rate_window_ms"`
}

// Clipboard selects the local clipboard backend.
type Clipboard struct {
	Backend string   `toml:"backend"`
	Command []string `toml:"command"`
}

// Paths contains runtime (socket, lock, pid) and state (journal, log) locations.
type Paths struct {
	RuntimeDir string `toml:"runtime_dir"`
	StateDir   string `toml:"state_dir"`
}

// Journal controls the delivery journal.
type Journal struct {
	Enabled       bool `toml:"enabled"`
	RetentionDays int  `toml:"retention_days"`
}

// Metrics controls the Prometheus endpoint. Empty Listen disables it.
type Metrics struct {
	Listen string `toml:"listen"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
	File   string `toml:"file"`
}

// Config encapsulates all configuration values for simpleclipboard.
type Config struct {
	Daemon    Daemon    `toml:"daemon"`
	Timeouts  Timeouts  `toml:"timeouts"`
	Admission Admission `toml:"admission"`
	Clipboard Clipboard `toml:"clipboard"`
	Paths     Paths     `toml:"paths"`
	Journal   Journal   `toml:"journal"`
	Metrics   Metrics   `toml:"metrics"`
	Logging   Logging   `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/" + appName + "/config.toml")
}

// Load locates, parses, and validates a configuration file. A missing file
// is not an error: defaults and environment overrides still apply.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		if _, err := os.Stat(expanded); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}
	projectPath, err := filepath.Abs(appName + ".toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}
	return defaultPath, false, nil
}

// EnsureDirectories creates the runtime and state directories. The runtime
// directory holds the control socket and is private to the user.
func (c *Config) EnsureDirectories() error {
	if err := os.MkdirAll(c.Paths.RuntimeDir, 0o700); err != nil {
		return fmt.Errorf("create directory %q: %w", c.Paths.RuntimeDir, err)
	}
	if err := os.MkdirAll(c.Paths.StateDir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", c.Paths.StateDir, err)
	}
	return nil
}

// SocketPath is the control IPC socket.
func (c *Config) SocketPath() string {
	return filepath.Join(c.Paths.RuntimeDir, appName+".sock")
}

// LockPath is the single-instance lock file.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.RuntimeDir, appName+".lock")
}

func (c *Config) PIDPath() string {
	return filepath.Join(c.Paths.RuntimeDir, appName+".pid")
}

// JournalPath is the SQLite delivery journal.
func (c *Config) JournalPath() string {
	return filepath.Join(c.Paths.StateDir, "journal.db")
}

func (c *Config) ConnectTimeout() time.Duration { return millis(c.Timeouts.ConnectMS) }

func (c *Config) ReadTimeout() time.Duration { return millis(c.Timeouts.ReadMS) }

func (c *Config) WriteTimeout() time.Duration { return millis(c.Timeouts.WriteMS) }

func (c *Config) RequestTimeout() time.Duration { return millis(c.Timeouts.RequestMS) }

func (c *Config) AckReadTimeout() time.Duration { return millis(c.Timeouts.AckReadMS) }

func (c *Config) RateWindow() time.Duration { return millis(c.Admission.RateWindowMS) }

// Relaying reports whether a next hop is configured.
func (c *Config) Relaying() bool {
	return strings.TrimSpace(c.Daemon.FinalAddr) != ""
}

func millis(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// SampleConfig returns the embedded sample configuration.
func SampleConfig() string {
	return sampleConfig
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o600); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// Redacted returns a copy safe to print, with the token masked.
func (c *Config) Redacted() Config {
	out := *c
	out.Clipboard.Command = append([]string(nil), c.Clipboard.Command...)
	if out.Daemon.Token != "" {
		out.Daemon.Token = "********"
	}
	return out
}

// TOML renders the config in file form.
func (c Config) TOML() ([]byte, error) {
	return toml.Marshal(c)
}
