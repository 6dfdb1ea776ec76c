// Package relay forwards clipboard text to the next daemon in a chain.
package relay

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"simpleclipboard/internal/wire"
)

// ErrRelay wraps every forwarding failure. Callers recover by setting the
// local clipboard instead.
var ErrRelay = errors.New("relay failed")

const (
	defaultConnectTimeout = 800 * time.Millisecond
	defaultWriteTimeout   = 5 * time.Second
)

// Forwarder sends text to a downstream daemon as an unframed Legacy message.
// Legacy is used because every daemon generation accepts it. The downstream
// ack is not read.
type Forwarder struct {
	ConnectTimeout time.Duration
	WriteTimeout   time.Duration
}

// NewForwarder returns a Forwarder with the given timeouts. Zero values use
// the defaults.
func NewForwarder(connectTimeout, writeTimeout time.Duration) *Forwarder {
	return &Forwarder{ConnectTimeout: connectTimeout, WriteTimeout: writeTimeout}
}

// Forward makes a single delivery attempt. There is no retry.
func (f *Forwarder) Forward(ctx context.Context, address, text string) error {
	connectTimeout := f.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = defaultConnectTimeout
	}
	writeTimeout := f.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = defaultWriteTimeout
	}

	dialer := net.Dialer{Timeout: connectTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return fmt.Errorf("%w: connect %s: %w", ErrRelay, address, err)
	}
	defer conn.Close()

	if tcp, ok := conn.(*net.TCPConn); ok {
		_ = tcp.SetNoDelay(true)
	}

	deadline := time.Now().Add(writeTimeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}
	if err := conn.SetWriteDeadline(deadline); err != nil {
		return fmt.Errorf("%w: set write deadline: %w", ErrRelay, err)
	}

	payload := wire.EncodeMessage(wire.Legacy(text))
	if err := wire.WriteFrame(conn, wire.FormatLegacy, payload); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrRelay, address, err)
	}
	if err := closeWrite(conn); err != nil {
		return fmt.Errorf("%w: half-close %s: %w", ErrRelay, address, err)
	}
	return nil
}

type writeCloser interface {
	CloseWrite() error
}

func closeWrite(conn net.Conn) error {
	if wc, ok := conn.(writeCloser); ok {
		return wc.CloseWrite()
	}
	return nil
}
