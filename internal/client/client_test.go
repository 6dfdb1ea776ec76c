package client_test

import (
	"context"
	"encoding/binary"
	"errors"
	"io"
	"net"
	"strings"
	"testing"
	"time"

	"simpleclipboard/internal/client"
	"simpleclipboard/internal/wire"
)

// fakeDaemon accepts one connection, reads the framed request, and replies
// with raw bytes.
func fakeDaemon(t *testing.T, reply []byte) (string, <-chan wire.Message) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Skipf("loopback listen unavailable: %v", err)
	}
	t.Cleanup(func() { _ = ln.Close() })
	got := make(chan wire.Message, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		_ = conn.SetDeadline(time.Now().Add(5 * time.Second))
		payload, format, err := wire.ReadFrame(conn, wire.DefaultMaxBytes)
		if err != nil || format != wire.FormatFramed {
			return
		}
		if msg, err := wire.DecodeMessage(payload); err == nil {
			got <- msg
		}
		if len(reply) > 0 {
			_, _ = conn.Write(reply)
		}
	}()
	return ln.Addr().String(), got
}

func framedAck(ok bool, detail string) []byte {
	return wire.AppendFrame(nil, wire.EncodeAck(wire.NewAck(ok, detail)))
}

func send(t *testing.T, addr string, req client.Request) client.Result {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	res, err := client.SendClipboardText(ctx, addr, req, client.Options{AckTimeout: 2 * time.Second})
	if err != nil {
		t.Fatalf("SendClipboardText: %v", err)
	}
	return res
}

func TestSendWritesFramedMessage(t *testing.T) {
	addr, got := fakeDaemon(t, framedAck(true, wire.DetailLocalSetOK))
	res := send(t, addr, client.Set("hello", "tok"))
	if !res.Success || res.Ack == nil || res.Format != wire.FormatFramed {
		t.Fatalf("result = %+v", res)
	}
	msg := <-got
	if msg.Kind != wire.KindSet || msg.Text != "hello" || msg.Token == nil || *msg.Token != "tok" {
		t.Fatalf("daemon received %+v", msg)
	}
}

func TestAckInterpretation(t *testing.T) {
	zeroLength := append(wire.Magic[:], 0, 0, 0, 0)
	hugeLength := append(wire.Magic[:], 0, 0, 0, 0)
	binary.BigEndian.PutUint32(hugeLength[4:], uint32(wire.DefaultMaxBytes+1))

	tests := []struct {
		name    string
		reply   []byte
		success bool
		acked   bool
	}{
		{"no ack", nil, true, false},
		{"framed ok", framedAck(true, wire.DetailForwarded), true, true},
		{"framed rejected", framedAck(false, wire.DetailTokenRejected), false, true},
		{"framed fallback ok", framedAck(false, wire.DetailForwardFailedFallbackOK), true, true},
		{"framed fallback err", framedAck(false, wire.DetailForwardFailedFallbackErr), false, true},
		{"legacy ok", wire.EncodeAck(wire.NewAck(true, wire.DetailLocalSetOK)), true, true},
		{"legacy failure", wire.EncodeAck(wire.NewAck(false, wire.DetailLocalSetErr)), false, true},
		{"legacy shorter than magic", []byte{0x00, 0x00}, true, false},
		{"framed zero length", zeroLength, false, false},
		{"framed oversized length", hugeLength, false, false},
		{"framed truncated header", wire.Magic[:], true, false},
		{"undecodable legacy", []byte{0x07, 0x07, 0x07, 0x07, 0x07}, true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			addr, _ := fakeDaemon(t, tt.reply)
			res := send(t, addr, client.Legacy("x"))
			if res.Success != tt.success {
				t.Fatalf("success = %v, want %v (ack %+v)", res.Success, tt.success, res.Ack)
			}
			if (res.Ack != nil) != tt.acked {
				t.Fatalf("ack = %+v, want decoded=%v", res.Ack, tt.acked)
			}
		})
	}
}

func TestLegacyAckFormatReported(t *testing.T) {
	addr, _ := fakeDaemon(t, wire.EncodeAck(wire.NewAck(true, wire.DetailPingOK)))
	res := send(t, addr, client.Ping(""))
	if res.Ack == nil || res.Format != wire.FormatLegacy || res.Ack.DetailString() != wire.DetailPingOK {
		t.Fatalf("result = %+v", res)
	}
}

func TestSilentDaemonTimesOutAsSuccess(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Skipf("loopback listen unavailable: %v", err)
	}
	defer ln.Close()
	hold := make(chan struct{})
	defer close(hold)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		_, _ = io.Copy(io.Discard, conn)
		<-hold
	}()

	start := time.Now()
	res, err := client.SendClipboardText(context.Background(), ln.Addr().String(), client.Legacy("x"),
		client.Options{AckTimeout: 100 * time.Millisecond})
	if err != nil {
		t.Fatalf("SendClipboardText: %v", err)
	}
	if !res.Success || res.Ack != nil {
		t.Fatalf("result = %+v", res)
	}
	if time.Since(start) > 2*time.Second {
		t.Fatal("ack timeout not honoured")
	}
}

func TestConnectFailureIsError(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Skipf("loopback listen unavailable: %v", err)
	}
	addr := ln.Addr().String()
	_ = ln.Close()

	_, err = client.SendClipboardText(context.Background(), addr, client.Legacy("x"), client.DefaultOptions())
	if err == nil {
		t.Fatal("expected connect error")
	}
	if !client.IsConnectError(err) {
		t.Fatalf("IsConnectError(%v) = false", err)
	}
}

func TestOversizedRequestRejectedBeforeDial(t *testing.T) {
	_, err := client.SendClipboardText(context.Background(), "127.0.0.1:1", client.Legacy(strings.Repeat("x", 64)),
		client.Options{MaxBytes: 16})
	if !errors.Is(err, wire.ErrMessageTooLarge) {
		t.Fatalf("error = %v, want ErrMessageTooLarge", err)
	}
}

func TestParsePayload(t *testing.T) {
	tests := []struct {
		payload string
		addr    string
		want    client.Request
	}{
		{"127.0.0.1:12344\x01hello", "127.0.0.1:12344", client.Legacy("hello")},
		{"h:1\x01set\x01text\x01tok", "h:1", client.Set("text", "tok")},
		{"h:1\x01set\x01text", "h:1", client.Set("text", "")},
		{"h:1\x01set\x01text\x01", "h:1", client.Set("text", "")},
		{"h:1\x01ping\x01\x01tok", "h:1", client.Ping("tok")},
		{"h:1\x01ping", "h:1", client.Legacy("ping")},
		{"h:1\x01", "h:1", client.Legacy("")},
	}
	for _, tt := range tests {
		addr, req, err := client.ParsePayload(tt.payload)
		if err != nil {
			t.Fatalf("ParsePayload(%q): %v", tt.payload, err)
		}
		if addr != tt.addr || req != tt.want {
			t.Fatalf("ParsePayload(%q) = %q, %+v; want %q, %+v", tt.payload, addr, req, tt.addr, tt.want)
		}
	}

	for _, bad := range []string{"", "no-separator", "h:1\x01copy\x01x"} {
		if _, _, err := client.ParsePayload(bad); !errors.Is(err, client.ErrInvalidPayload) {
			t.Fatalf("ParsePayload(%q) error = %v", bad, err)
		}
	}
}

func TestEmptyTokenSentAsAbsent(t *testing.T) {
	msg, err := client.Set("x", "").Message()
	if err != nil {
		t.Fatalf("Message: %v", err)
	}
	if msg.Token != nil {
		t.Fatalf("token = %q, want absent", *msg.Token)
	}
	legacy, _ := client.Request{Action: client.ActionLegacy, Text: "y", Token: "ignored"}.Message()
	if legacy.Kind != wire.KindLegacy || legacy.Token != nil {
		t.Fatalf("legacy message = %+v", legacy)
	}
}
