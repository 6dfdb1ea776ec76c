package wire_test

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"simpleclipboard/internal/wire"
)

func strPtr(s string) *string { return &s }

func TestEncodeMessageLayout(t *testing.T) {
	tests := []struct {
		name string
		msg  wire.Message
		want []byte
	}{
		{"ping without token", wire.Ping(nil), []byte{0, 0}},
		{"ping with token", wire.Ping(strPtr("k")), []byte{0, 1, 1, 'k'}},
		{"set with token", wire.Set("hi", strPtr("tok")), []byte{1, 2, 'h', 'i', 1, 3, 't', 'o', 'k'}},
		{"set without token", wire.Set("hi", nil), []byte{1, 2, 'h', 'i', 0}},
		{"legacy empty", wire.Legacy(""), []byte{2, 0}},
		{"legacy ignores token", wire.Message{Kind: wire.KindLegacy, Text: "x", Token: strPtr("t")}, []byte{2, 1, 'x'}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := wire.EncodeMessage(tt.msg)
			if !bytes.Equal(got, tt.want) {
				t.Fatalf("EncodeMessage = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEncodeAckLayout(t *testing.T) {
	got := wire.EncodeAck(wire.NewAck(true, wire.DetailPingOK))
	want := append([]byte{1, 1, byte(len(wire.DetailPingOK))}, wire.DetailPingOK...)
	if !bytes.Equal(got, want) {
		t.Fatalf("EncodeAck = %v, want %v", got, want)
	}
	if got := wire.EncodeAck(wire.Ack{}); !bytes.Equal(got, []byte{0, 0}) {
		t.Fatalf("EncodeAck(zero) = %v", got)
	}
}

func TestVarintLengthPrefixes(t *testing.T) {
	tests := []struct {
		size   int
		prefix []byte
	}{
		{250, []byte{250}},
		{251, []byte{251, 251, 0}},
		{300, []byte{251, 0x2c, 0x01}},
		{70000, []byte{252, 0x70, 0x11, 0x01, 0x00}},
	}
	for _, tt := range tests {
		text := strings.Repeat("a", tt.size)
		encoded := wire.EncodeMessage(wire.Legacy(text))
		if encoded[0] != byte(wire.KindLegacy) {
			t.Fatalf("size %d: tag = %d", tt.size, encoded[0])
		}
		if !bytes.Equal(encoded[1:1+len(tt.prefix)], tt.prefix) {
			t.Fatalf("size %d: length prefix = %v, want %v", tt.size, encoded[1:1+len(tt.prefix)], tt.prefix)
		}
		decoded, err := wire.DecodeMessage(encoded)
		if err != nil {
			t.Fatalf("size %d: DecodeMessage: %v", tt.size, err)
		}
		if decoded.Text != text {
			t.Fatalf("size %d: text mismatch", tt.size)
		}
	}
}

func TestMessageRoundTripPreservesOptionalFields(t *testing.T) {
	messages := []wire.Message{
		wire.Ping(nil),
		wire.Ping(strPtr("")),
		wire.Ping(strPtr("secret")),
		wire.Set("", nil),
		wire.Set("héllo\nwörld", strPtr("secret")),
		wire.Set("text", strPtr("")),
		wire.Legacy("plain"),
	}
	for _, msg := range messages {
		decoded, err := wire.DecodeMessage(wire.EncodeMessage(msg))
		if err != nil {
			t.Fatalf("DecodeMessage(%v): %v", msg.Kind, err)
		}
		if decoded.Kind != msg.Kind || decoded.Text != msg.Text {
			t.Fatalf("round trip mismatch: got %+v want %+v", decoded, msg)
		}
		if (decoded.Token == nil) != (msg.Token == nil) {
			t.Fatalf("token presence changed for %v", msg.Kind)
		}
		if msg.Token != nil && *decoded.Token != *msg.Token {
			t.Fatalf("token = %q, want %q", *decoded.Token, *msg.Token)
		}
	}
}

func TestAckRoundTrip(t *testing.T) {
	for _, ack := range []wire.Ack{{OK: true}, {OK: false}, wire.NewAck(false, wire.DetailForwardFailedFallbackOK), wire.NewAck(true, "")} {
		decoded, err := wire.DecodeAck(wire.EncodeAck(ack))
		if err != nil {
			t.Fatalf("DecodeAck: %v", err)
		}
		if decoded.OK != ack.OK || (decoded.Detail == nil) != (ack.Detail == nil) || decoded.DetailString() != ack.DetailString() {
			t.Fatalf("round trip mismatch: got %+v want %+v", decoded, ack)
		}
	}
}

func TestDecodeMessageRejectsMalformedInput(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"unknown tag", []byte{3, 0}},
		{"string overruns buffer", []byte{1, 5, 'a'}},
		{"missing option byte", []byte{1, 1, 'a'}},
		{"invalid option byte", []byte{0, 2}},
		{"invalid utf8", []byte{2, 2, 0xff, 0xfe}},
		{"reserved marker", []byte{255}},
		{"wide marker", []byte{254, 0}},
		{"tag beyond u32", []byte{253, 0, 0, 0, 0, 1, 0, 0, 0}},
		{"truncated u16 length", []byte{2, 251, 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := wire.DecodeMessage(tt.data); !errors.Is(err, wire.ErrDecode) {
				t.Fatalf("DecodeMessage(%v) error = %v, want ErrDecode", tt.data, err)
			}
		})
	}
}

func TestDecodeAckRejectsInvalidBool(t *testing.T) {
	if _, err := wire.DecodeAck([]byte{2, 0}); !errors.Is(err, wire.ErrDecode) {
		t.Fatalf("DecodeAck error = %v, want ErrDecode", err)
	}
}

func TestDecodeIgnoresTrailingBytes(t *testing.T) {
	data := append(wire.EncodeMessage(wire.Legacy("x")), 0xAA, 0xBB)
	msg, err := wire.DecodeMessage(data)
	if err != nil {
		t.Fatalf("DecodeMessage: %v", err)
	}
	if msg.Text != "x" {
		t.Fatalf("text = %q", msg.Text)
	}
}

func TestOptionalString(t *testing.T) {
	if wire.OptionalString("") != nil {
		t.Fatal("expected nil for empty string")
	}
	if got := wire.OptionalString("a"); got == nil || *got != "a" {
		t.Fatalf("OptionalString(a) = %v", got)
	}
}
