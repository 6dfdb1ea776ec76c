package ipc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"sync"
	"time"

	"simpleclipboard/internal/daemon"
	"simpleclipboard/internal/journal"
	"simpleclipboard/internal/logging"
	"simpleclipboard/internal/logs"
)

const serviceName = "SimpleClipboard"

// ErrJournalDisabled is returned by history calls when journal.enabled is false.
var ErrJournalDisabled = errors.New("delivery journal is disabled")

// StatusSource reports daemon runtime state.
type StatusSource interface {
	Status() daemon.Status
}

// History reads the delivery journal.
type History interface {
	List(ctx context.Context, limit int) ([]journal.Entry, error)
	Summarize(ctx context.Context) (journal.Summary, error)
}

// Backend is what the RPC service exposes. History may be nil; Shutdown is
// called at most once, after the Stop response has been sent.
type Backend struct {
	Daemon   StatusSource
	History  History
	LogPath  string
	Shutdown func()
}

// Server exposes daemon control via JSON-RPC over a Unix domain socket.
type Server struct {
	path      string
	logger    *slog.Logger
	listener  net.Listener
	rpcServer *rpc.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu    sync.Mutex
	conns map[net.Conn]struct{}
}

// NewServer binds the socket at path, replacing any stale socket file.
func NewServer(ctx context.Context, path string, backend Backend, logger *slog.Logger) (*Server, error) {
	if backend.Daemon == nil {
		return nil, errors.New("ipc server requires daemon")
	}
	logger = logging.NewComponentLogger(logger, "ipc")

	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("remove existing socket: %w", err)
	}
	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on socket: %w", err)
	}
	if err := os.Chmod(path, 0o600); err != nil {
		_ = listener.Close()
		return nil, fmt.Errorf("restrict socket permissions: %w", err)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	svc := &service{backend: backend, logger: logger, ctx: serverCtx}
	rpcServer := rpc.NewServer()
	if err := rpcServer.RegisterName(serviceName, svc); err != nil {
		cancel()
		_ = listener.Close()
		return nil, fmt.Errorf("register rpc service: %w", err)
	}

	return &Server{
		path:      path,
		logger:    logger,
		listener:  listener,
		rpcServer: rpcServer,
		ctx:       serverCtx,
		cancel:    cancel,
		conns:     make(map[net.Conn]struct{}),
	}, nil
}

// Serve starts accepting RPC connections in the background.
func (s *Server) Serve() {
	s.logger.Debug("IPC server listening", logging.String("socket", s.path))
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := s.listener.Accept()
			if err != nil {
				if s.ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
					return
				}
				logging.WarnWithContext(s.logger, "accept failed", "ipc_accept_failed",
					logging.Error(err),
					logging.String(logging.FieldImpact, "CLI commands may fail to reach the daemon"),
					logging.String(logging.FieldErrorHint, "check runtime_dir permissions and restart the daemon"),
				)
				continue
			}
			s.track(conn, true)
			s.wg.Add(1)
			go func(c net.Conn) {
				defer s.wg.Done()
				defer s.track(c, false)
				s.rpcServer.ServeCodec(jsonrpc.NewServerCodec(c))
			}(conn)
		}
	}()
}

func (s *Server) track(conn net.Conn, open bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if open {
		if s.ctx.Err() != nil {
			_ = conn.Close()
			return
		}
		s.conns[conn] = struct{}{}
	} else {
		delete(s.conns, conn)
	}
}

// Close stops the server, disconnects clients, and removes the socket file.
func (s *Server) Close() {
	s.cancel()
	_ = s.listener.Close()
	s.mu.Lock()
	for conn := range s.conns {
		_ = conn.Close()
	}
	s.mu.Unlock()
	s.wg.Wait()
	if err := os.RemoveAll(s.path); err != nil {
		logging.WarnWithContext(s.logger, "failed to remove socket", "ipc_socket_cleanup_failed",
			logging.String("socket", s.path),
			logging.Error(err),
			logging.String(logging.FieldImpact, "a stale socket may confuse status checks"),
			logging.String(logging.FieldErrorHint, "remove the socket file manually"),
		)
	}
}

type service struct {
	backend  Backend
	logger   *slog.Logger
	ctx      context.Context
	stopOnce sync.Once
}

func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	st := s.backend.Daemon.Status()
	*resp = StatusResponse{
		Running:         st.Running,
		PID:             st.PID,
		Listen:          st.Listen,
		FinalAddr:       st.FinalAddr,
		TokenConfigured: st.TokenConfigured,
		StartedAt:       st.StartedAt,
		InFlight:        st.InFlight,
		Answered:        st.Answered,
		Failed:          st.Failed,
		LockPath:        st.LockFilePath,
		JournalPath:     st.JournalPath,
		MetricsListen:   st.MetricsListen,
		LogPath:         s.backend.LogPath,
	}
	return nil
}

func (s *service) Stop(_ StopRequest, resp *StopResponse) error {
	s.logger.Info("daemon stop requested via IPC", logging.String(logging.FieldEventType, "daemon_stop"))
	resp.Stopping = true
	if s.backend.Shutdown != nil {
		s.stopOnce.Do(func() {
			// Let the response reach the client before teardown closes this socket.
			time.AfterFunc(50*time.Millisecond, s.backend.Shutdown)
		})
	}
	return nil
}

func (s *service) History(req HistoryRequest, resp *HistoryResponse) error {
	if s.backend.History == nil {
		return ErrJournalDisabled
	}
	entries, err := s.backend.History.List(s.ctx, req.Limit)
	if err != nil {
		return err
	}
	resp.Deliveries = make([]Delivery, 0, len(entries))
	for _, e := range entries {
		resp.Deliveries = append(resp.Deliveries, FromEntry(e))
	}
	return nil
}

func (s *service) Summary(_ SummaryRequest, resp *SummaryResponse) error {
	if s.backend.History == nil {
		return ErrJournalDisabled
	}
	sum, err := s.backend.History.Summarize(s.ctx)
	if err != nil {
		return err
	}
	resp.Total = sum.Total
	resp.Failures = sum.Failures
	resp.ByDetail = sum.ByDetail
	return nil
}

func (s *service) LogTail(req LogTailRequest, resp *LogTailResponse) error {
	if s.backend.LogPath == "" {
		return nil
	}
	wait := time.Duration(req.WaitMillis) * time.Millisecond
	ctx, cancel := context.WithTimeout(s.ctx, wait+time.Second)
	defer cancel()
	res, err := logs.Tail(ctx, s.backend.LogPath, logs.Options{Offset: req.Offset, Limit: req.Limit, Wait: wait})
	resp.Lines = res.Lines
	resp.Offset = res.Offset
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// FromEntry converts a journal entry to its RPC form.
func FromEntry(e journal.Entry) Delivery {
	return Delivery{
		RequestID:  e.RequestID,
		Kind:       e.Kind,
		TextBytes:  e.TextBytes,
		Format:     e.Format,
		RemoteAddr: e.RemoteAddr,
		OK:         e.OK,
		Detail:     e.Detail,
		Failure:    e.Failure,
		Duration:   e.Duration,
		CreatedAt:  e.CreatedAt,
	}
}
