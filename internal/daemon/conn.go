package daemon

import (
	"context"
	"errors"
	"net"
	"os"
	"time"

	"github.com/google/uuid"

	"simpleclipboard/internal/admission"
	"simpleclipboard/internal/journal"
	"simpleclipboard/internal/logging"
	"simpleclipboard/internal/wire"
)

const journalWriteTimeout = 2 * time.Second

// session tracks one connection through its states.
type session struct {
	id      string
	conn    net.Conn
	state   State
	format  wire.Format
	sniffed bool
	msg     wire.Message
	decoded bool
	size    int
	ack     wire.Ack
	started time.Time
}

func (s *Server) serveConn(ctx context.Context, conn net.Conn) {
	sess := &session{
		id:      uuid.NewString(),
		conn:    conn,
		state:   StateAccepted,
		started: time.Now(),
	}
	ctx = logging.WithRequestID(ctx, sess.id)
	ctx = logging.WithRemoteAddr(ctx, conn.RemoteAddr().String())
	logger := logging.WithContext(ctx, s.logger)

	s.inFlight.Add(1)
	s.opts.Metrics.ConnectionOpened()
	defer func() {
		s.inFlight.Add(-1)
		s.opts.Metrics.ConnectionClosed()
	}()

	err := s.exchange(ctx, sess)
	closeErr := conn.Close()
	if err == nil && closeErr != nil && !errors.Is(closeErr, net.ErrClosed) {
		logger.Debug("close after ack failed", logging.Error(closeErr))
	}

	elapsed := time.Since(sess.started)
	if err != nil {
		failed := sess.state
		sess.state = StateError
		s.failed.Add(1)
		cause := failureCause(err)
		s.opts.Metrics.RecordError(failed.String(), cause)
		logging.WarnWithContext(logger, "connection closed without ack", "connection_failed",
			logging.Error(err),
			logging.String("state", failed.String()),
			logging.String("cause", cause),
			logging.String(logging.FieldErrorHint, failureHint(cause)),
			logging.String(logging.FieldImpact, "the sender receives no acknowledgement"),
		)
		s.record(ctx, sess, cause, elapsed)
		return
	}

	sess.state = StateClosed
	s.answered.Add(1)
	s.opts.Metrics.RecordRequest(sess.msg.Kind.String(), sess.ack.DetailString(), sess.ack.OK, elapsed)
	logger.Info("request answered",
		logging.String(logging.FieldMessageKind, sess.msg.Kind.String()),
		logging.String(logging.FieldFormat, sess.format.String()),
		logging.String("detail", sess.ack.DetailString()),
		logging.Bool("ok", sess.ack.OK),
		logging.TextSize(sess.msg.Text),
		logging.Duration("elapsed", elapsed),
	)
	s.record(ctx, sess, "", elapsed)
}

// exchange reads one request and writes its ack. On error sess.state holds
// the state that failed.
func (s *Server) exchange(ctx context.Context, sess *session) error {
	conn := sess.conn
	if err := conn.SetReadDeadline(time.Now().Add(s.opts.ReadTimeout)); err != nil {
		return err
	}

	sess.state = StateReadingHeader
	header, err := wire.ReadHeader(conn, s.opts.MaxBytes)
	if err != nil {
		return err
	}
	sess.format = header.Format
	sess.sniffed = true
	s.opts.Metrics.RecordConnection(header.Format.String())

	sess.state = StateReadingPayload
	payload, err := wire.ReadPayload(conn, header, s.opts.MaxBytes)
	if err != nil {
		return err
	}
	sess.size = len(payload)
	s.opts.Metrics.RecordPayload(len(payload))

	msg, err := wire.DecodeMessage(payload)
	if err != nil {
		return err
	}
	sess.state = StateDecoded
	sess.msg = msg
	sess.decoded = true

	ack, err := s.opts.Handler.Handle(ctx, msg)
	if err != nil {
		return err
	}
	sess.state = StateRouted
	sess.ack = ack

	sess.state = StateEncoding
	encoded := wire.EncodeAck(ack)
	if err := conn.SetWriteDeadline(time.Now().Add(s.opts.WriteTimeout)); err != nil {
		return err
	}
	if err := wire.WriteFrame(conn, sess.format, encoded); err != nil {
		return err
	}
	sess.state = StateWritten
	return nil
}

func (s *Server) record(ctx context.Context, sess *session, failure string, elapsed time.Duration) {
	if s.opts.Journal == nil {
		return
	}
	kind := "unknown"
	textBytes := 0
	if sess.decoded {
		kind = sess.msg.Kind.String()
		textBytes = len(sess.msg.Text)
	}
	format := ""
	if sess.sniffed {
		format = sess.format.String()
	}
	entry := journal.Entry{
		RequestID:  sess.id,
		Kind:       kind,
		TextBytes:  textBytes,
		Format:     format,
		RemoteAddr: sess.conn.RemoteAddr().String(),
		OK:         failure == "" && sess.ack.OK,
		Failure:    failure,
		Duration:   elapsed,
		CreatedAt:  sess.started,
	}
	if failure == "" {
		entry.Detail = sess.ack.DetailString()
	}

	recordCtx, cancel := context.WithTimeout(ctx, journalWriteTimeout)
	defer cancel()
	if err := s.opts.Journal.Record(recordCtx, entry); err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, s.logger), "journal write failed", "journal_write_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "this request is missing from history"),
		)
	}
}

// failureCause maps a connection error to a short metrics label.
func failureCause(err error) string {
	var netErr net.Error
	switch {
	case errors.Is(err, admission.ErrTimeout):
		return "request_timeout"
	case errors.Is(err, wire.ErrEmptyStream):
		return "empty_stream"
	case errors.Is(err, wire.ErrInvalidFrame):
		return "invalid_frame"
	case errors.Is(err, wire.ErrMessageTooLarge):
		return "too_large"
	case errors.Is(err, wire.ErrDecode):
		return "decode"
	case errors.Is(err, os.ErrDeadlineExceeded), errors.As(err, &netErr) && netErr.Timeout():
		return "io_timeout"
	default:
		return "io"
	}
}

func failureHint(cause string) string {
	switch cause {
	case "request_timeout":
		return "the relay or clipboard took too long; check the downstream daemon and clipboard tool"
	case "invalid_frame", "too_large":
		return "the sender exceeded daemon.max_message_bytes or sent a malformed frame"
	case "decode":
		return "the sender speaks an incompatible protocol version"
	case "io_timeout":
		return "the sender did not finish its request within timeouts.read_ms"
	case "empty_stream":
		return "the sender connected and closed without sending; often a port scan"
	default:
		return "check network connectivity to the sender"
	}
}
