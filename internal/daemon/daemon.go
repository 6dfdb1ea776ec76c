package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"simpleclipboard/internal/admission"
	"simpleclipboard/internal/clipboard"
	"simpleclipboard/internal/config"
	"simpleclipboard/internal/logging"
	"simpleclipboard/internal/metrics"
	"simpleclipboard/internal/relay"
	"simpleclipboard/internal/router"
)

// Dependencies are the collaborators a Daemon serves requests with. Relay
// defaults to a TCP forwarder built from the configured timeouts.
type Dependencies struct {
	Sink    clipboard.Sink
	Relay   router.Relay
	Journal Recorder
	Metrics *metrics.Metrics
}

// Daemon owns the relay server and enforces single-instance execution.
type Daemon struct {
	cfg     *config.Config
	deps    Dependencies
	logger  *slog.Logger
	handler admission.Handler

	lockPath string
	lock     *flock.Flock

	mu        sync.Mutex
	server    *Server
	cancel    context.CancelFunc
	done      chan struct{}
	startedAt time.Time
	running   atomic.Bool
}

// Status represents daemon runtime information.
type Status struct {
	Running         bool
	PID             int
	Listen          string
	FinalAddr       string
	TokenConfigured bool
	StartedAt       time.Time
	InFlight        int64
	Answered        uint64
	Failed          uint64
	LockFilePath    string
	JournalPath     string
	MetricsListen   string
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, deps Dependencies, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || deps.Sink == nil {
		return nil, errors.New("daemon requires config and clipboard sink")
	}
	logger = logging.NewComponentLogger(logger, "daemon")
	if deps.Relay == nil && cfg.Relaying() {
		deps.Relay = observedRelay{next: relay.NewForwarder(cfg.ConnectTimeout(), cfg.WriteTimeout()), metrics: deps.Metrics}
	}

	policy := router.Policy{Token: cfg.Daemon.Token, RelayAddr: cfg.Daemon.FinalAddr}
	dispatcher := router.NewDispatcher(policy, deps.Relay, deps.Sink, logger)
	handler := admission.Chain(dispatcher, admission.Policy{
		Concurrency: cfg.Admission.Concurrency,
		RateCount:   cfg.Admission.RateCount,
		RateWindow:  cfg.RateWindow(),
		Deadline:    cfg.RequestTimeout(),
	})

	lockPath := cfg.LockPath()
	return &Daemon{
		cfg:      cfg,
		deps:     deps,
		logger:   logger,
		handler:  handler,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}, nil
}

// Start acquires the daemon lock, binds the listen address, and begins
// serving in the background until ctx is cancelled or Stop is called.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	if err := os.MkdirAll(filepath.Dir(d.lockPath), 0o700); err != nil {
		return fmt.Errorf("ensure lock directory: %w", err)
	}
	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another simpleclipboard daemon instance is already running")
	}

	server, err := NewServer(ServerOptions{
		Addr:         d.cfg.Daemon.Listen,
		MaxBytes:     int(d.cfg.Daemon.MaxMessageBytes),
		ReadTimeout:  d.cfg.ReadTimeout(),
		WriteTimeout: d.cfg.WriteTimeout(),
		Handler:      d.handler,
		Metrics:      d.deps.Metrics,
		Journal:      d.deps.Journal,
		Logger:       d.logger,
	})
	if err == nil {
		err = server.Listen()
	}
	if err != nil {
		_ = d.lock.Unlock()
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := server.Serve(runCtx); err != nil {
			logging.ErrorWithContext(d.logger, "accept loop stopped", "serve_failed", logging.Error(err))
		}
	}()
	if d.cfg.Metrics.Listen != "" && d.deps.Metrics != nil {
		go func() {
			if err := d.deps.Metrics.Serve(runCtx, d.cfg.Metrics.Listen, d.logger); err != nil {
				logging.WarnWithContext(d.logger, "metrics endpoint unavailable", "metrics_failed",
					logging.Error(err),
					logging.String("addr", d.cfg.Metrics.Listen),
					logging.String(logging.FieldImpact, "metrics are not exported; clipboard relay is unaffected"),
				)
			}
		}()
	}

	d.server = server
	d.cancel = cancel
	d.done = done
	d.startedAt = time.Now()
	d.running.Store(true)
	d.logger.Info("simpleclipboard daemon started",
		logging.String("listen", server.Addr().String()),
		logging.String("final_addr", d.cfg.Daemon.FinalAddr),
		logging.Bool("token_required", d.cfg.Daemon.Token != ""),
		logging.String("lock", d.lockPath),
	)
	return nil
}

// Stop closes the listener, lets in-flight connections finish under their
// deadlines, and releases the daemon lock.
func (d *Daemon) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running.Load() {
		return
	}

	d.cancel()
	<-d.done
	grace := d.cfg.ReadTimeout() + d.cfg.RequestTimeout() + d.cfg.WriteTimeout()
	waitCtx, cancel := context.WithTimeout(context.Background(), grace)
	if err := d.server.Wait(waitCtx); err != nil {
		logging.WarnWithContext(d.logger, "connections still open at shutdown", "shutdown_incomplete",
			logging.Error(err),
			logging.String(logging.FieldImpact, "those senders may not receive an ack"),
		)
	}
	cancel()

	if err := d.lock.Unlock(); err != nil {
		logging.WarnWithContext(d.logger, "failed to release daemon lock", "lock_release_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "the next start may report another instance running"),
		)
	}
	d.running.Store(false)
	d.logger.Info("simpleclipboard daemon stopped", logging.Args(d.countersAttrs()...)...)
}

// Done is closed when the accept loop exits. It is nil before Start.
func (d *Daemon) Done() <-chan struct{} {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.done
}

// Addr returns the bound listen address, or the configured one before Start.
func (d *Daemon) Addr() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.server != nil && d.server.Addr() != nil {
		return d.server.Addr().String()
	}
	return d.cfg.Daemon.Listen
}

// Status reports runtime information.
func (d *Daemon) Status() Status {
	d.mu.Lock()
	server := d.server
	started := d.startedAt
	d.mu.Unlock()

	status := Status{
		Running:         d.running.Load(),
		PID:             os.Getpid(),
		Listen:          d.Addr(),
		FinalAddr:       d.cfg.Daemon.FinalAddr,
		TokenConfigured: d.cfg.Daemon.Token != "",
		LockFilePath:    d.lockPath,
		MetricsListen:   d.cfg.Metrics.Listen,
	}
	if d.deps.Journal != nil {
		status.JournalPath = d.cfg.JournalPath()
	}
	if status.Running {
		status.StartedAt = started
	}
	if server != nil {
		c := server.Counters()
		status.InFlight, status.Answered, status.Failed = c.InFlight, c.Answered, c.Failed
	}
	return status
}

func (d *Daemon) countersAttrs() []logging.Attr {
	if d.server == nil {
		return nil
	}
	c := d.server.Counters()
	return []logging.Attr{
		logging.Int64("answered", int64(c.Answered)),
		logging.Int64("failed", int64(c.Failed)),
	}
}

// observedRelay counts forward attempts.
type observedRelay struct {
	next    router.Relay
	metrics *metrics.Metrics
}

func (o observedRelay) Forward(ctx context.Context, address, text string) error {
	err := o.next.Forward(ctx, address, text)
	if err != nil {
		o.metrics.RecordRelay("failed")
		return err
	}
	o.metrics.RecordRelay("forwarded")
	return nil
}
