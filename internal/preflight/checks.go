package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"simpleclipboard/internal/clipboard"
)

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	if strings.TrimSpace(path) == "" {
		return Result{Name: name, Detail: "not configured"}
	}
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			// The daemon creates its directories on start.
			return Result{Name: name, Optional: true, Detail: fmt.Sprintf("%s (missing, created on start)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckClipboard verifies that the configured clipboard backend can be opened.
func CheckClipboard(backend string, argv []string) Result {
	const name = "Clipboard"

	switch strings.ToLower(strings.TrimSpace(backend)) {
	case clipboard.KindMemory:
		return Result{Name: name, Passed: true, Optional: true, Detail: "in-memory backend (text never reaches the desktop)"}
	case clipboard.KindCommand:
		cmd, err := clipboard.NewCommand(argv)
		if err != nil {
			return Result{Name: name, Detail: err.Error()}
		}
		return Result{Name: name, Passed: true, Detail: cmd.String()}
	default:
		cmd, err := clipboard.DetectCommand()
		if err != nil {
			return Result{Name: name, Detail: "no clipboard tool on PATH (install wl-clipboard, xclip or xsel)"}
		}
		return Result{Name: name, Passed: true, Detail: cmd.String()}
	}
}

// CheckListen verifies the daemon listen address can be bound.
func CheckListen(addr string) Result {
	const name = "Listen address"

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", addr, err)}
	}
	_ = ln.Close()
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (available)", addr)}
}

// CheckNextHop verifies the relay target accepts TCP connections. A failure
// is optional because the daemon falls back to the local clipboard.
func CheckNextHop(ctx context.Context, addr string, timeout time.Duration) Result {
	const name = "Next hop"

	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return Result{Name: name, Optional: true, Detail: fmt.Sprintf("%s (unreachable: %s)", addr, summarizeDialError(err))}
	}
	_ = conn.Close()
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (reachable)", addr)}
}

func summarizeDialError(err error) string {
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.As(err, &netErr) && netErr.Timeout():
		return "timed out"
	case errors.Is(err, unix.ECONNREFUSED):
		return "connection refused"
	default:
		return err.Error()
	}
}
