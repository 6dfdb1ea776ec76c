package clipboard

import (
	"errors"
	"log/slog"
	"sync"

	"simpleclipboard/internal/logging"
)

// Sink places text on a clipboard. Implementations must be safe for
// concurrent callers.
type Sink interface {
	SetText(text string) bool
}

// Backend is a live handle to a clipboard. Backends need not be safe for
// concurrent use; Guarded serializes access.
type Backend interface {
	SetText(text string) error
	Close() error
}

// Opener creates a fresh Backend.
type Opener func() (Backend, error)

// Guarded owns the process-wide clipboard handle. The handle is opened on
// first use and reopened once when a write fails.
type Guarded struct {
	mu      sync.Mutex
	open    Opener
	backend Backend
	logger  *slog.Logger
}

// NewGuarded wraps open in a serialized, lazily initialized Sink.
func NewGuarded(open Opener, logger *slog.Logger) *Guarded {
	return &Guarded{
		open:   open,
		logger: logging.NewComponentLogger(logger, "clipboard"),
	}
}

// SetText writes text, reopening the backend and retrying once on failure.
func (g *Guarded) SetText(text string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.backend == nil {
		if err := g.reopenLocked(); err != nil {
			logging.WarnWithContext(g.logger, "clipboard unavailable", "clipboard_open_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check that a clipboard tool is installed and a display session is reachable"),
				logging.String(logging.FieldImpact, "text was not placed on the clipboard"),
			)
			return false
		}
	}

	err := g.backend.SetText(text)
	if err == nil {
		return true
	}
	g.logger.Debug("clipboard write failed; reopening",
		logging.Error(err),
		logging.String(logging.FieldEventType, "clipboard_retry"),
	)

	if reopenErr := g.reopenLocked(); reopenErr != nil {
		logging.WarnWithContext(g.logger, "clipboard reopen failed", "clipboard_open_failed",
			logging.Error(errors.Join(err, reopenErr)),
			logging.String(logging.FieldImpact, "text was not placed on the clipboard"),
		)
		return false
	}
	if err := g.backend.SetText(text); err != nil {
		logging.WarnWithContext(g.logger, "clipboard write failed after reopen", "clipboard_set_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "verify the clipboard tool works from this session"),
			logging.String(logging.FieldImpact, "text was not placed on the clipboard"),
		)
		return false
	}
	return true
}

// Close releases the backend handle.
func (g *Guarded) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.backend == nil {
		return nil
	}
	err := g.backend.Close()
	g.backend = nil
	return err
}

func (g *Guarded) reopenLocked() error {
	if g.backend != nil {
		_ = g.backend.Close()
		g.backend = nil
	}
	if g.open == nil {
		return errors.New("clipboard opener not configured")
	}
	backend, err := g.open()
	if err != nil {
		return err
	}
	g.backend = backend
	return nil
}
