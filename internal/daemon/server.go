package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"simpleclipboard/internal/admission"
	"simpleclipboard/internal/journal"
	"simpleclipboard/internal/logging"
	"simpleclipboard/internal/metrics"
	"simpleclipboard/internal/wire"
)

const acceptBackoffMax = time.Second

// Recorder receives one journal entry per finished connection.
type Recorder interface {
	Record(ctx context.Context, e journal.Entry) error
}

// ServerOptions configures a Server.
type ServerOptions struct {
	Addr         string
	MaxBytes     int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	Handler      admission.Handler
	Metrics      *metrics.Metrics
	Journal      Recorder
	Logger       *slog.Logger
}

// Counters are cumulative connection totals.
type Counters struct {
	InFlight int64
	Answered uint64
	Failed   uint64
}

// Server accepts clipboard requests on a TCP listener.
type Server struct {
	opts     ServerOptions
	logger   *slog.Logger
	listener net.Listener

	wg       sync.WaitGroup
	inFlight atomic.Int64
	answered atomic.Uint64
	failed   atomic.Uint64
}

// NewServer validates opts and returns an unbound Server.
func NewServer(opts ServerOptions) (*Server, error) {
	if opts.Handler == nil {
		return nil, errors.New("server requires a handler")
	}
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = wire.DefaultMaxBytes
	}
	if opts.ReadTimeout <= 0 || opts.WriteTimeout <= 0 {
		return nil, errors.New("server requires positive read and write timeouts")
	}
	return &Server{
		opts:   opts,
		logger: logging.NewComponentLogger(opts.Logger, "server"),
	}, nil
}

// Listen binds the configured address.
func (s *Server) Listen() error {
	if s.listener != nil {
		return errors.New("server already listening")
	}
	listener, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.opts.Addr, err)
	}
	s.listener = listener
	return nil
}

// Addr returns the bound address, or nil before Listen.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Serve runs the accept loop until ctx is cancelled. It closes the listener
// on return but does not wait for in-flight connections; see Wait.
func (s *Server) Serve(ctx context.Context) error {
	if s.listener == nil {
		if err := s.Listen(); err != nil {
			return err
		}
	}

	stop := context.AfterFunc(ctx, func() { _ = s.listener.Close() })
	defer stop()
	defer s.listener.Close()

	s.logger.Info("listening", logging.String("addr", s.listener.Addr().String()))

	// Connections outlive cancellation of ctx; they end under their own deadlines.
	connCtx := context.WithoutCancel(ctx)
	var backoff time.Duration
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			backoff = nextBackoff(backoff)
			logging.WarnWithContext(s.logger, "accept failed", "accept_failed",
				logging.Error(err),
				logging.Duration("retry_in", backoff),
				logging.String(logging.FieldImpact, "new connections are delayed"),
			)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(backoff):
			}
			continue
		}
		backoff = 0

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.serveConn(connCtx, conn)
		}()
	}
}

// Wait blocks until every accepted connection has finished or ctx expires.
func (s *Server) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for %d connections: %w", s.inFlight.Load(), ctx.Err())
	}
}

// Counters returns a snapshot of connection totals.
func (s *Server) Counters() Counters {
	return Counters{
		InFlight: s.inFlight.Load(),
		Answered: s.answered.Load(),
		Failed:   s.failed.Load(),
	}
}

func nextBackoff(current time.Duration) time.Duration {
	if current == 0 {
		return 5 * time.Millisecond
	}
	return min(current*2, acceptBackoffMax)
}
