package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Magic opens every framed stream.
var Magic = [4]byte{'S', 'C', 'B', '1'}

const headerLen = len(Magic) + 4

// Format is the stream framing chosen by the sender.
type Format int

const (
	// FormatFramed is Magic, a big-endian u32 length, then the payload.
	FormatFramed Format = iota
	// FormatLegacy is the raw payload terminated by the sender closing its write side.
	FormatLegacy
)

func (f Format) String() string {
	switch f {
	case FormatFramed:
		return "framed"
	case FormatLegacy:
		return "legacy"
	default:
		return fmt.Sprintf("format(%d)", int(f))
	}
}

// Header is the outcome of sniffing the start of a stream.
type Header struct {
	Format Format
	// Length is the declared payload size of a framed stream.
	Length uint32

	prefix   []byte
	complete bool
}

// ReadHeader consumes the first bytes of r and decides the stream format.
// A framed length of zero or above limit fails with ErrInvalidFrame before any
// payload buffer is allocated.
func ReadHeader(r io.Reader, limit int) (Header, error) {
	var lead [len(Magic)]byte
	n, err := io.ReadFull(r, lead[:])
	switch {
	case errors.Is(err, io.EOF):
		return Header{}, ErrEmptyStream
	case errors.Is(err, io.ErrUnexpectedEOF):
		// A legacy value can be shorter than the magic.
		return Header{Format: FormatLegacy, prefix: append([]byte(nil), lead[:n]...), complete: true}, nil
	case err != nil:
		return Header{}, fmt.Errorf("read stream prefix: %w", err)
	}

	if lead != Magic {
		return Header{Format: FormatLegacy, prefix: append([]byte(nil), lead[:]...)}, nil
	}

	var size [4]byte
	if _, err := io.ReadFull(r, size[:]); err != nil {
		return Header{}, fmt.Errorf("read frame length: %w", err)
	}
	length := binary.BigEndian.Uint32(size[:])
	if length == 0 || uint64(length) > uint64(limit) {
		return Header{}, fmt.Errorf("%w: %d bytes (limit %d)", ErrInvalidFrame, length, limit)
	}
	return Header{Format: FormatFramed, Length: length}, nil
}

// ReadPayload reads the rest of the value announced by h.
func ReadPayload(r io.Reader, h Header, limit int) ([]byte, error) {
	if h.Format == FormatFramed {
		payload := make([]byte, h.Length)
		if _, err := io.ReadFull(r, payload); err != nil {
			return nil, fmt.Errorf("read frame payload: %w", err)
		}
		return payload, nil
	}

	if h.complete {
		return h.prefix, nil
	}
	if len(h.prefix) > limit {
		return nil, fmt.Errorf("%w: limit %d", ErrMessageTooLarge, limit)
	}
	var buf bytes.Buffer
	buf.Write(h.prefix)
	remaining := int64(limit-len(h.prefix)) + 1
	if _, err := io.Copy(&buf, io.LimitReader(r, remaining)); err != nil {
		return nil, fmt.Errorf("read legacy payload: %w", err)
	}
	if buf.Len() > limit {
		return nil, fmt.Errorf("%w: limit %d", ErrMessageTooLarge, limit)
	}
	return buf.Bytes(), nil
}

// ReadFrame sniffs the format of r and returns the complete payload.
func ReadFrame(r io.Reader, limit int) ([]byte, Format, error) {
	h, err := ReadHeader(r, limit)
	if err != nil {
		return nil, 0, err
	}
	payload, err := ReadPayload(r, h, limit)
	if err != nil {
		return nil, h.Format, err
	}
	return payload, h.Format, nil
}

// AppendFrame appends the framed encoding of payload to dst.
func AppendFrame(dst, payload []byte) []byte {
	dst = append(dst, Magic[:]...)
	dst = binary.BigEndian.AppendUint32(dst, uint32(len(payload)))
	return append(dst, payload...)
}

// WriteFrame writes payload to w in the given format with a single Write call.
func WriteFrame(w io.Writer, format Format, payload []byte) error {
	out := payload
	if format == FormatFramed {
		if len(payload) == 0 || uint64(len(payload)) > uint64(^uint32(0)) {
			return fmt.Errorf("%w: %d bytes", ErrInvalidFrame, len(payload))
		}
		out = AppendFrame(make([]byte, 0, headerLen+len(payload)), payload)
	}
	if _, err := w.Write(out); err != nil {
		return fmt.Errorf("write %s frame: %w", format, err)
	}
	return nil
}
