package preflight

import (
	"context"
	"time"

	"simpleclipboard/internal/config"
)

const nextHopTimeout = 2 * time.Second

// Result reports the outcome of a single preflight check.
type Result struct {
	Name     string
	Passed   bool
	Optional bool
	Detail   string
}

// Severity classifies a result for display: ok, warn or error.
func (r Result) Severity() string {
	switch {
	case r.Passed:
		return "ok"
	case r.Optional:
		return "warn"
	default:
		return "error"
	}
}

// RunAll executes every check that applies to cfg. When daemonRunning is
// true the listen check is skipped since the daemon holds the port.
func RunAll(ctx context.Context, cfg *config.Config, daemonRunning bool) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Runtime directory", cfg.Paths.RuntimeDir),
		CheckDirectoryAccess("State directory", cfg.Paths.StateDir),
		CheckClipboard(cfg.Clipboard.Backend, cfg.Clipboard.Command),
	}
	if !daemonRunning {
		results = append(results, CheckListen(cfg.Daemon.Listen))
	}
	if cfg.Relaying() {
		timeout := cfg.ConnectTimeout()
		if timeout <= 0 || timeout > nextHopTimeout {
			timeout = nextHopTimeout
		}
		results = append(results, CheckNextHop(ctx, cfg.Daemon.FinalAddr, timeout))
	}
	return results
}

// Failed reports whether any non-optional check failed.
func Failed(results []Result) bool {
	for _, r := range results {
		if !r.Passed && !r.Optional {
			return true
		}
	}
	return false
}
