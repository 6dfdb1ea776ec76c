package daemon_test

import (
	"context"
	"encoding/binary"
	"io"
	"log/slog"
	"net"
	"strings"
	"testing"
	"time"

	"simpleclipboard/internal/client"
	"simpleclipboard/internal/clipboard"
	"simpleclipboard/internal/config"
	"simpleclipboard/internal/daemon"
	"simpleclipboard/internal/journal"
	"simpleclipboard/internal/logging"
	"simpleclipboard/internal/metrics"
	"simpleclipboard/internal/testsupport"
	"simpleclipboard/internal/wire"
)

type harness struct {
	cfg     *config.Config
	daemon  *daemon.Daemon
	memory  *clipboard.Memory
	journal *journal.Store
	logs    *testsupport.LockedBuffer
}

func startDaemon(t *testing.T, opts ...testsupport.ConfigOption) *harness {
	t.Helper()
	testsupport.Listen(t) // skip early where sockets are unavailable
	cfg := testsupport.NewConfig(t, opts...)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}

	logs := &testsupport.LockedBuffer{}
	logger := slog.New(slog.NewTextHandler(logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	mem := clipboard.NewMemory()
	store := testsupport.MustOpenJournal(t, cfg)

	d, err := daemon.New(cfg, daemon.Dependencies{
		Sink:    clipboard.NewGuarded(mem.Opener(), logger),
		Journal: store,
		Metrics: metrics.New(),
	}, logger)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	if err := d.Start(ctx); err != nil {
		cancel()
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() {
		cancel()
		d.Stop()
	})
	return &harness{cfg: cfg, daemon: d, memory: mem, journal: store, logs: logs}
}

func (h *harness) send(t *testing.T, req client.Request) client.Result {
	t.Helper()
	res, err := client.SendClipboardText(context.Background(), h.daemon.Addr(), req,
		client.Options{AckTimeout: 3 * time.Second})
	if err != nil {
		t.Fatalf("SendClipboardText: %v", err)
	}
	return res
}

func waitFor(t *testing.T, what string, fn func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !fn() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestLocalSetWithoutRelayOrToken(t *testing.T) {
	h := startDaemon(t)

	res := h.send(t, client.Set("hello", ""))
	if !res.Success || res.Ack == nil {
		t.Fatalf("result = %+v", res)
	}
	if !res.Ack.OK || res.Ack.DetailString() != wire.DetailLocalSetOK {
		t.Fatalf("ack = {%v %q}", res.Ack.OK, res.Ack.DetailString())
	}
	if res.Format != wire.FormatFramed {
		t.Fatalf("ack format = %s, want framed", res.Format)
	}
	if got, _ := h.memory.Last(); got != "hello" {
		t.Fatalf("clipboard = %q", got)
	}
}

func TestPingWithWrongTokenRejected(t *testing.T) {
	h := startDaemon(t, testsupport.WithToken("secret"))

	res := h.send(t, client.Ping("wrong"))
	if res.Success || res.Ack == nil {
		t.Fatalf("result = %+v", res)
	}
	if res.Ack.OK || res.Ack.DetailString() != wire.DetailTokenRejected {
		t.Fatalf("ack = {%v %q}", res.Ack.OK, res.Ack.DetailString())
	}

	res = h.send(t, client.Ping("secret"))
	if !res.Success || res.Ack.DetailString() != wire.DetailPingOK {
		t.Fatalf("correct token: %+v", res)
	}
}

func TestUnreachableRelayFallsBackToLocal(t *testing.T) {
	h := startDaemon(t, testsupport.WithFinalAddr(testsupport.ClosedAddr(t)))

	res := h.send(t, client.Legacy("x"))
	if res.Ack == nil {
		t.Fatalf("no ack: %+v", res)
	}
	if res.Ack.OK || res.Ack.DetailString() != wire.DetailForwardFailedFallbackOK {
		t.Fatalf("ack = {%v %q}", res.Ack.OK, res.Ack.DetailString())
	}
	if !res.Success {
		t.Fatal("fallback to local clipboard must count as success for the client")
	}
	if got, _ := h.memory.Last(); got != "x" {
		t.Fatalf("clipboard = %q", got)
	}
}

func TestRelayForwardsToNextHop(t *testing.T) {
	final := startDaemon(t)
	relay := startDaemon(t, testsupport.WithFinalAddr(final.daemon.Addr()), testsupport.WithToken("tok"))

	res := relay.send(t, client.Set("over the hop", "tok"))
	if !res.Success || res.Ack.DetailString() != wire.DetailForwarded {
		t.Fatalf("result = %+v", res)
	}
	waitFor(t, "final clipboard write", func() bool {
		got, _ := final.memory.Last()
		return got == "over the hop"
	})
	if relay.memory.Count() != 0 {
		t.Fatal("relaying daemon wrote its own clipboard")
	}
}

func TestOversizedFrameClosedWithoutAck(t *testing.T) {
	const limit = 1024
	h := startDaemon(t, testsupport.WithMaxBytes(limit))

	conn, err := net.Dial("tcp", h.daemon.Addr())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	header := append(wire.Magic[:], 0, 0, 0, 0)
	binary.BigEndian.PutUint32(header[4:], limit+1)
	if _, err := conn.Write(header); err != nil {
		t.Fatalf("write header: %v", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	reply, err := io.ReadAll(conn)
	if err != nil {
		t.Fatalf("read reply: %v", err)
	}
	if len(reply) != 0 {
		t.Fatalf("daemon sent %d bytes, want none", len(reply))
	}
	waitFor(t, "size error log", func() bool {
		return strings.Contains(h.logs.String(), "invalid_frame")
	})
	if h.memory.Count() != 0 {
		t.Fatal("oversized request reached the clipboard")
	}
}

func TestLegacyRequestGetsLegacyAck(t *testing.T) {
	h := startDaemon(t)

	conn, err := net.Dial("tcp", h.daemon.Addr())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	if err := wire.WriteFrame(conn, wire.FormatLegacy, wire.EncodeMessage(wire.Legacy("old editor"))); err != nil {
		t.Fatalf("write: %v", err)
	}
	_ = conn.(*net.TCPConn).CloseWrite()

	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	payload, format, err := wire.ReadFrame(conn, wire.DefaultMaxBytes)
	if err != nil {
		t.Fatalf("read ack: %v", err)
	}
	if format != wire.FormatLegacy {
		t.Fatalf("ack format = %s, want legacy", format)
	}
	ack, err := wire.DecodeAck(payload)
	if err != nil || !ack.OK || ack.DetailString() != wire.DetailLocalSetOK {
		t.Fatalf("ack = %+v, err = %v", ack, err)
	}
}

func TestLegacyTextIsNotTokenChecked(t *testing.T) {
	h := startDaemon(t, testsupport.WithToken("secret"))
	res := h.send(t, client.Legacy("trusted"))
	if !res.Success || res.Ack.DetailString() != wire.DetailLocalSetOK {
		t.Fatalf("result = %+v", res)
	}
}

func TestSilentClientTimesOut(t *testing.T) {
	h := startDaemon(t)

	conn, err := net.Dial("tcp", h.daemon.Addr())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	_, _ = conn.Write(wire.Magic[:2])

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	reply, _ := io.ReadAll(conn)
	if len(reply) != 0 {
		t.Fatalf("daemon answered a partial request: %v", reply)
	}
	waitFor(t, "failed counter", func() bool { return h.daemon.Status().Failed == 1 })
}

func TestStatusAndJournal(t *testing.T) {
	h := startDaemon(t, testsupport.WithToken("t"))
	h.send(t, client.Set("abc", "t"))
	h.send(t, client.Set("abc", "nope"))

	waitFor(t, "answered counter", func() bool { return h.daemon.Status().Answered == 2 })
	status := h.daemon.Status()
	if !status.Running || !status.TokenConfigured || status.PID == 0 || status.StartedAt.IsZero() {
		t.Fatalf("status = %+v", status)
	}
	if status.JournalPath != h.cfg.JournalPath() {
		t.Fatalf("journal path = %q", status.JournalPath)
	}

	var entries []journal.Entry
	waitFor(t, "journal entries", func() bool {
		entries, _ = h.journal.List(context.Background(), 10)
		return len(entries) == 2
	})
	if entries[0].Detail != wire.DetailTokenRejected || entries[1].Detail != wire.DetailLocalSetOK {
		t.Fatalf("journal details = %q, %q", entries[0].Detail, entries[1].Detail)
	}
	if entries[1].TextBytes != 3 || entries[1].Kind != "set" || entries[1].Format != "framed" {
		t.Fatalf("journal entry = %+v", entries[1])
	}
}

func TestSecondInstanceRefused(t *testing.T) {
	h := startDaemon(t)

	other, err := daemon.New(h.cfg, daemon.Dependencies{Sink: clipboard.NewGuarded(clipboard.NewMemory().Opener(), logging.NewNop())}, logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	err = other.Start(context.Background())
	if err == nil {
		other.Stop()
		t.Fatal("expected second instance to fail")
	}
	if !strings.Contains(err.Error(), "already running") {
		t.Fatalf("error = %v", err)
	}
}

func TestStopEndsServing(t *testing.T) {
	h := startDaemon(t)
	addr := h.daemon.Addr()
	if err := h.daemon.Start(context.Background()); err == nil {
		t.Fatal("expected second Start to fail")
	}

	h.daemon.Stop()
	if h.daemon.Status().Running {
		t.Fatal("expected daemon to be stopped")
	}
	select {
	case <-h.daemon.Done():
	case <-time.After(time.Second):
		t.Fatal("accept loop still running")
	}
	if conn, err := net.DialTimeout("tcp", addr, 500*time.Millisecond); err == nil {
		conn.Close()
		t.Fatal("listener still accepting after Stop")
	}
}
