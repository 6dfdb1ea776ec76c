package config

import (
	"errors"
	"fmt"
	"math"
	"net"
	"slices"
)

var (
	validBackends   = []string{"auto", "command", "memory"}
	validLogFormats = []string{"console", "json"}
	validLogLevels  = []string{"debug", "info", "warn", "warning", "error"}
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateDaemon(); err != nil {
		return err
	}
	if err := c.validateTimeouts(); err != nil {
		return err
	}
	if err := c.validateAdmission(); err != nil {
		return err
	}
	if err := c.validateClipboard(); err != nil {
		return err
	}
	if err := c.validateJournal(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateDaemon() error {
	if err := validateHostPort("daemon.listen", c.Daemon.Listen); err != nil {
		return err
	}
	if c.Daemon.FinalAddr != "" {
		if err := validateHostPort("daemon.final_addr", c.Daemon.FinalAddr); err != nil {
			return err
		}
		if c.Daemon.FinalAddr == c.Daemon.Listen {
			return errors.New("daemon.final_addr must differ from daemon.listen")
		}
	}
	if c.Daemon.MaxMessageBytes <= 0 || c.Daemon.MaxMessageBytes > math.MaxUint32 {
		return fmt.Errorf("daemon.max_message_bytes must be between 1 and %d", uint64(math.MaxUint32))
	}
	if c.Metrics.Listen != "" {
		if err := validateHostPort("metrics.listen", c.Metrics.Listen); err != nil {
			return err
		}
		if c.Metrics.Listen == c.Daemon.Listen {
			return errors.New("metrics.listen must differ from daemon.listen")
		}
	}
	return nil
}

func (c *Config) validateTimeouts() error {
	fields := []struct {
		name  string
		value int
	}{
		{"timeouts.connect_ms", c.Timeouts.ConnectMS},
		{"timeouts.read_ms", c.Timeouts.ReadMS},
		{"timeouts.write_ms", c.Timeouts.WriteMS},
		{"timeouts.request_ms", c.Timeouts.RequestMS},
		{"timeouts.ack_read_ms", c.Timeouts.AckReadMS},
	}
	for _, f := range fields {
		if f.value <= 0 {
			return fmt.Errorf("%s must be positive", f.name)
		}
	}
	return nil
}

func (c *Config) validateAdmission() error {
	if c.Admission.Concurrency <= 0 {
		return errors.New("admission.concurrency must be positive")
	}
	if c.Admission.RateCount <= 0 {
		return errors.New("admission.rate_count must be positive")
	}
	if c.Admission.RateWindowMS <= 0 {
		return errors.New("admission.rate_window_ms must be positive")
	}
	return nil
}

func (c *Config) validateClipboard() error {
	if !slices.Contains(validBackends, c.Clipboard.Backend) {
		return fmt.Errorf("clipboard.backend must be one of %v, got %q", validBackends, c.Clipboard.Backend)
	}
	if c.Clipboard.Backend == "command" && len(c.Clipboard.Command) == 0 {
		return errors.New("clipboard.command is required when clipboard.backend is \"command\"")
	}
	return nil
}

func (c *Config) validateJournal() error {
	if c.Journal.RetentionDays < 0 {
		return errors.New("journal.retention_days must be zero (keep forever) or positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	if !slices.Contains(validLogFormats, c.Logging.Format) {
		return fmt.Errorf("logging.format must be one of %v, got %q", validLogFormats, c.Logging.Format)
	}
	if !slices.Contains(validLogLevels, c.Logging.Level) {
		return fmt.Errorf("logging.level must be one of %v, got %q", validLogLevels, c.Logging.Level)
	}
	return nil
}

func validateHostPort(field, value string) error {
	if value == "" {
		return fmt.Errorf("%s must be set", field)
	}
	if _, port, err := net.SplitHostPort(value); err != nil {
		return fmt.Errorf("%s: %w", field, err)
	} else if port == "" {
		return fmt.Errorf("%s: missing port in %q", field, value)
	}
	return nil
}
