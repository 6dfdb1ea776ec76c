package client

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"simpleclipboard/internal/wire"
)

const (
	DefaultConnectTimeout = 800 * time.Millisecond
	DefaultWriteTimeout   = 5 * time.Second
	DefaultAckTimeout     = 10 * time.Second
)

// Options bounds each network step of a send.
type Options struct {
	ConnectTimeout time.Duration
	WriteTimeout   time.Duration
	AckTimeout     time.Duration
	MaxBytes       int
}

// DefaultOptions returns the timeouts editors have always used.
func DefaultOptions() Options {
	return Options{
		ConnectTimeout: DefaultConnectTimeout,
		WriteTimeout:   DefaultWriteTimeout,
		AckTimeout:     DefaultAckTimeout,
		MaxBytes:       wire.DefaultMaxBytes,
	}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = def.ConnectTimeout
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = def.WriteTimeout
	}
	if o.AckTimeout <= 0 {
		o.AckTimeout = def.AckTimeout
	}
	if o.MaxBytes <= 0 {
		o.MaxBytes = def.MaxBytes
	}
	return o
}

// Result is the interpreted outcome of a send.
type Result struct {
	// Success is what an editor should act on. It is true for a positive ack,
	// for forward_failed_fallback_ok, and whenever no usable ack arrived.
	Success bool
	// Ack is the decoded ack, nil when none was read.
	Ack *wire.Ack
	// Format is the ack's framing; meaningful only when Ack is set.
	Format wire.Format
}

// SendClipboardText delivers req to the daemon at address. Connect and write
// failures are returned as errors; problems reading the ack are not.
func SendClipboardText(ctx context.Context, address string, req Request, opts Options) (Result, error) {
	opts = opts.withDefaults()
	msg, err := req.Message()
	if err != nil {
		return Result{}, err
	}
	payload := wire.EncodeMessage(msg)
	if len(payload) > opts.MaxBytes {
		return Result{}, fmt.Errorf("%w: %d bytes (limit %d)", wire.ErrMessageTooLarge, len(payload), opts.MaxBytes)
	}

	dialer := net.Dialer{Timeout: opts.ConnectTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return Result{}, fmt.Errorf("connect %s: %w", address, err)
	}
	defer conn.Close()
	if tcp, ok := conn.(*net.TCPConn); ok {
		_ = tcp.SetNoDelay(true)
	}
	stop := context.AfterFunc(ctx, func() { _ = conn.SetDeadline(time.Now()) })
	defer stop()

	if err := conn.SetWriteDeadline(time.Now().Add(opts.WriteTimeout)); err != nil {
		return Result{}, err
	}
	if err := wire.WriteFrame(conn, wire.FormatFramed, payload); err != nil {
		return Result{}, err
	}
	if cw, ok := conn.(interface{ CloseWrite() error }); ok {
		_ = cw.CloseWrite()
	}

	_ = conn.SetReadDeadline(time.Now().Add(opts.AckTimeout))
	return readAck(conn, opts.MaxBytes), nil
}

// readAck interprets whatever the daemon sends back. Old daemons send
// nothing or a legacy ack; any read or decode failure counts as delivered.
// Only a decoded negative ack, or a framed header with an impossible length,
// is a failure.
func readAck(r io.Reader, limit int) Result {
	delivered := Result{Success: true}

	var lead [len(wire.Magic)]byte
	if _, err := io.ReadFull(r, lead[:]); err != nil {
		return delivered
	}

	var payload []byte
	format := wire.FormatLegacy
	if lead == wire.Magic {
		format = wire.FormatFramed
		var size [4]byte
		if _, err := io.ReadFull(r, size[:]); err != nil {
			return delivered
		}
		length := binary.BigEndian.Uint32(size[:])
		if length == 0 || uint64(length) > uint64(limit) {
			return Result{Success: false}
		}
		payload = make([]byte, length)
		if _, err := io.ReadFull(r, payload); err != nil {
			return delivered
		}
	} else {
		var buf bytes.Buffer
		buf.Write(lead[:])
		if _, err := io.Copy(&buf, io.LimitReader(r, int64(limit))); err != nil {
			return delivered
		}
		payload = buf.Bytes()
	}

	ack, err := wire.DecodeAck(payload)
	if err != nil {
		return delivered
	}
	return Result{Success: Accepted(ack), Ack: &ack, Format: format}
}

// Accepted reports whether an ack means the text reached a clipboard.
// forward_failed_fallback_ok carries ok=false for older editors but the text
// did land on the relaying host.
func Accepted(ack wire.Ack) bool {
	return ack.OK || ack.DetailString() == wire.DetailForwardFailedFallbackOK
}

// IsConnectError reports whether err came from dialing the daemon.
func IsConnectError(err error) bool {
	var opErr *net.OpError
	return errors.As(err, &opErr) && opErr.Op == "dial"
}
