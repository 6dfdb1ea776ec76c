package config

const (
	defaultListen          = "127.0.0.1:12344"
	defaultMaxMessageBytes = 160 * 1024 * 1024
	defaultConnectMS       = 800
	defaultReadMS          = 3000
	defaultWriteMS         = 5000
	defaultRequestMS       = 5000
	defaultAckReadMS       = 10000
	defaultConcurrency     = 1024
	defaultRateCount       = 200
	defaultRateWindowMS    = 1000
	defaultClipboard       = "auto"
	defaultStateDir        = "~/.local/state/simpleclipboard"
	defaultJournalDays     = 14
	defaultLogFormat       = "console"
	defaultLogLevel        = "info"

	appName = "simpleclipboard"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Daemon: Daemon{
			Listen:          defaultListen,
			MaxMessageBytes: defaultMaxMessageBytes,
		},
		Timeouts: Timeouts{
			ConnectMS: defaultConnectMS,
			ReadMS:    defaultReadMS,
			WriteMS:   defaultWriteMS,
			RequestMS: defaultRequestMS,
			AckReadMS: defaultAckReadMS,
		},
		Admission: Admission{
			Concurrency:  defaultConcurrency,
			RateCount:    defaultRateCount,
			RateWindowMS: defaultRateWindowMS,
		},
		Clipboard: Clipboard{
			Backend: defaultClipboard,
		},
		Paths: Paths{
			StateDir: defaultStateDir,
		},
		Journal: Journal{
			Enabled:       true,
			RetentionDays: defaultJournalDays,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
