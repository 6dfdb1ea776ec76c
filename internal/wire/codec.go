package wire

import (
	"encoding/binary"
	"fmt"
	"math"
	"unicode/utf8"
)

// Varint markers. Values below markerU16 are stored in a single byte.
const (
	markerU16  = 251
	markerU32  = 252
	markerU64  = 253
	markerU128 = 254
)

// EncodeMessage returns the compact encoding of msg.
func EncodeMessage(msg Message) []byte {
	var e encoder
	e.putVarint(uint64(msg.Kind))
	switch msg.Kind {
	case KindPing:
		e.putOptionalString(msg.Token)
	case KindSet:
		e.putString(msg.Text)
		e.putOptionalString(msg.Token)
	default:
		e.putString(msg.Text)
	}
	return e.buf
}

// EncodeAck returns the compact encoding of ack.
func EncodeAck(ack Ack) []byte {
	var e encoder
	e.putBool(ack.OK)
	e.putOptionalString(ack.Detail)
	return e.buf
}

// DecodeMessage decodes one Message from the start of data. Trailing bytes
// are ignored.
func DecodeMessage(data []byte) (Message, error) {
	d := decoder{data: data}
	tag, err := d.readVarint(math.MaxUint32)
	if err != nil {
		return Message{}, err
	}
	msg := Message{Kind: Kind(tag)}
	switch msg.Kind {
	case KindPing:
		if msg.Token, err = d.readOptionalString(); err != nil {
			return Message{}, err
		}
	case KindSet:
		if msg.Text, err = d.readString(); err != nil {
			return Message{}, err
		}
		if msg.Token, err = d.readOptionalString(); err != nil {
			return Message{}, err
		}
	case KindLegacy:
		if msg.Text, err = d.readString(); err != nil {
			return Message{}, err
		}
	default:
		return Message{}, fmt.Errorf("%w: unknown message tag %d", ErrDecode, tag)
	}
	return msg, nil
}

// DecodeAck decodes one Ack from the start of data. Trailing bytes are ignored.
func DecodeAck(data []byte) (Ack, error) {
	d := decoder{data: data}
	ok, err := d.readBool()
	if err != nil {
		return Ack{}, err
	}
	detail, err := d.readOptionalString()
	if err != nil {
		return Ack{}, err
	}
	return Ack{OK: ok, Detail: detail}, nil
}

type encoder struct {
	buf []byte
}

func (e *encoder) putVarint(v uint64) {
	switch {
	case v < markerU16:
		e.buf = append(e.buf, byte(v))
	case v <= math.MaxUint16:
		e.buf = append(e.buf, markerU16)
		e.buf = binary.LittleEndian.AppendUint16(e.buf, uint16(v))
	case v <= math.MaxUint32:
		e.buf = append(e.buf, markerU32)
		e.buf = binary.LittleEndian.AppendUint32(e.buf, uint32(v))
	default:
		e.buf = append(e.buf, markerU64)
		e.buf = binary.LittleEndian.AppendUint64(e.buf, v)
	}
}

func (e *encoder) putBool(v bool) {
	if v {
		e.buf = append(e.buf, 1)
		return
	}
	e.buf = append(e.buf, 0)
}

func (e *encoder) putString(s string) {
	e.putVarint(uint64(len(s)))
	e.buf = append(e.buf, s...)
}

func (e *encoder) putOptionalString(s *string) {
	if s == nil {
		e.buf = append(e.buf, 0)
		return
	}
	e.buf = append(e.buf, 1)
	e.putString(*s)
}

type decoder struct {
	data   []byte
	offset int
}

// need reserves n bytes and returns them.
func (d *decoder) need(n uint64) ([]byte, error) {
	if n > uint64(len(d.data)-d.offset) {
		return nil, fmt.Errorf("%w: need %d bytes at offset %d, have %d", ErrDecode, n, d.offset, len(d.data)-d.offset)
	}
	start := d.offset
	d.offset += int(n)
	return d.data[start:d.offset], nil
}

func (d *decoder) readByte() (byte, error) {
	b, err := d.need(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// readVarint reads a compact unsigned integer and rejects values above limit.
func (d *decoder) readVarint(limit uint64) (uint64, error) {
	marker, err := d.readByte()
	if err != nil {
		return 0, err
	}
	var v uint64
	switch {
	case marker < markerU16:
		v = uint64(marker)
	case marker == markerU16:
		b, err := d.need(2)
		if err != nil {
			return 0, err
		}
		v = uint64(binary.LittleEndian.Uint16(b))
	case marker == markerU32:
		b, err := d.need(4)
		if err != nil {
			return 0, err
		}
		v = uint64(binary.LittleEndian.Uint32(b))
	case marker == markerU64:
		b, err := d.need(8)
		if err != nil {
			return 0, err
		}
		v = binary.LittleEndian.Uint64(b)
	case marker == markerU128:
		return 0, fmt.Errorf("%w: 128-bit integer not supported", ErrDecode)
	default:
		return 0, fmt.Errorf("%w: invalid integer marker %d", ErrDecode, marker)
	}
	if v > limit {
		return 0, fmt.Errorf("%w: integer %d out of range", ErrDecode, v)
	}
	return v, nil
}

func (d *decoder) readBool() (bool, error) {
	b, err := d.readByte()
	if err != nil {
		return false, err
	}
	switch b {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return false, fmt.Errorf("%w: invalid bool byte %d", ErrDecode, b)
	}
}

func (d *decoder) readString() (string, error) {
	n, err := d.readVarint(math.MaxUint64)
	if err != nil {
		return "", err
	}
	b, err := d.need(n)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(b) {
		return "", fmt.Errorf("%w: string is not valid UTF-8", ErrDecode)
	}
	return string(b), nil
}

func (d *decoder) readOptionalString() (*string, error) {
	present, err := d.readByte()
	if err != nil {
		return nil, err
	}
	switch present {
	case 0:
		return nil, nil
	case 1:
		s, err := d.readString()
		if err != nil {
			return nil, err
		}
		return &s, nil
	default:
		return nil, fmt.Errorf("%w: invalid option byte %d", ErrDecode, present)
	}
}
