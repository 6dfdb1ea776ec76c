package clipboard_test

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"simpleclipboard/internal/clipboard"
	"simpleclipboard/internal/logging"
)

type fakeBackend struct {
	failures *atomic.Int32
	inFlight *atomic.Int32
	overlap  *atomic.Bool
	closed   atomic.Bool
}

func (f *fakeBackend) SetText(string) error {
	if f.inFlight.Add(1) > 1 {
		f.overlap.Store(true)
	}
	defer f.inFlight.Add(-1)
	time.Sleep(time.Millisecond)
	if f.failures.Load() > 0 {
		f.failures.Add(-1)
		return errors.New("display went away")
	}
	return nil
}

func (f *fakeBackend) Close() error {
	f.closed.Store(true)
	return nil
}

type fakeOpener struct {
	opens    atomic.Int32
	openErr  error
	failures atomic.Int32
	inFlight atomic.Int32
	overlap  atomic.Bool
	last     *fakeBackend
}

func (o *fakeOpener) open() (clipboard.Backend, error) {
	o.opens.Add(1)
	if o.openErr != nil {
		return nil, o.openErr
	}
	o.last = &fakeBackend{failures: &o.failures, inFlight: &o.inFlight, overlap: &o.overlap}
	return o.last, nil
}

func TestGuardedOpensLazily(t *testing.T) {
	opener := &fakeOpener{}
	sink := clipboard.NewGuarded(opener.open, logging.NewNop())
	if opener.opens.Load() != 0 {
		t.Fatalf("backend opened before first write")
	}
	if !sink.SetText("a") || !sink.SetText("b") {
		t.Fatal("expected writes to succeed")
	}
	if got := opener.opens.Load(); got != 1 {
		t.Fatalf("opens = %d, want 1", got)
	}
}

func TestGuardedReopensOnceAfterFailure(t *testing.T) {
	opener := &fakeOpener{}
	opener.failures.Store(1)
	sink := clipboard.NewGuarded(opener.open, logging.NewNop())

	if !sink.SetText("retry me") {
		t.Fatal("expected write to succeed after reopen")
	}
	if got := opener.opens.Load(); got != 2 {
		t.Fatalf("opens = %d, want 2", got)
	}
}

func TestGuardedGivesUpAfterSecondFailure(t *testing.T) {
	opener := &fakeOpener{}
	opener.failures.Store(2)
	sink := clipboard.NewGuarded(opener.open, logging.NewNop())
	if sink.SetText("lost") {
		t.Fatal("expected write to fail")
	}
	if got := opener.opens.Load(); got != 2 {
		t.Fatalf("opens = %d, want 2", got)
	}
}

func TestGuardedReportsOpenFailure(t *testing.T) {
	opener := &fakeOpener{openErr: clipboard.ErrNoClipboardTool}
	sink := clipboard.NewGuarded(opener.open, logging.NewNop())
	if sink.SetText("x") {
		t.Fatal("expected failure when backend cannot be opened")
	}
	if sink.SetText("y") {
		t.Fatal("expected failure on repeated attempt")
	}
	if got := opener.opens.Load(); got != 2 {
		t.Fatalf("opens = %d, want one attempt per write", got)
	}
}

func TestGuardedSerializesWriters(t *testing.T) {
	opener := &fakeOpener{}
	sink := clipboard.NewGuarded(opener.open, logging.NewNop())

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sink.SetText("concurrent")
		}()
	}
	wg.Wait()
	if opener.overlap.Load() {
		t.Fatal("backend saw overlapping writes")
	}
}

func TestGuardedCloseReleasesBackend(t *testing.T) {
	opener := &fakeOpener{}
	sink := clipboard.NewGuarded(opener.open, logging.NewNop())
	sink.SetText("x")
	if err := sink.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !opener.last.closed.Load() {
		t.Fatal("expected backend to be closed")
	}
	sink.SetText("y")
	if got := opener.opens.Load(); got != 2 {
		t.Fatalf("opens = %d, want reopen after Close", got)
	}
}

func TestMemoryBackendThroughOpener(t *testing.T) {
	open, err := clipboard.NewOpener(clipboard.KindMemory, nil)
	if err != nil {
		t.Fatalf("NewOpener: %v", err)
	}
	backend, err := open()
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	mem, ok := backend.(*clipboard.Memory)
	if !ok {
		t.Fatalf("backend = %T, want *clipboard.Memory", backend)
	}
	sink := clipboard.NewGuarded(open, nil)
	sink.SetText("hello")
	if got, _ := mem.Last(); got != "hello" {
		t.Fatalf("Last = %q", got)
	}
}

func TestNewOpenerValidation(t *testing.T) {
	if _, err := clipboard.NewOpener("command", nil); err == nil {
		t.Fatal("expected error for command backend without argv")
	}
	if _, err := clipboard.NewOpener("carrier-pigeon", nil); err == nil {
		t.Fatal("expected error for unknown backend")
	}
	if _, err := clipboard.NewOpener("", nil); err != nil {
		t.Fatalf("auto backend: %v", err)
	}
}

func TestCommandPipesTextToTool(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell stub requires a POSIX shell")
	}
	dir := t.TempDir()
	out := filepath.Join(dir, "clipboard.txt")
	script := filepath.Join(dir, "fakecopy")
	if err := os.WriteFile(script, []byte("#!/bin/sh\ncat > \"$1\"\n"), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}

	cmd, err := clipboard.NewCommand([]string{script, out})
	if err != nil {
		t.Fatalf("NewCommand: %v", err)
	}
	if err := cmd.SetText("copied text\n"); err != nil {
		t.Fatalf("SetText: %v", err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if string(data) != "copied text\n" {
		t.Fatalf("clipboard content = %q", data)
	}
}

func TestCommandReportsToolFailure(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell stub requires a POSIX shell")
	}
	dir := t.TempDir()
	script := filepath.Join(dir, "brokencopy")
	if err := os.WriteFile(script, []byte("#!/bin/sh\necho 'cannot open display' >&2\nexit 1\n"), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	cmd, err := clipboard.NewCommand([]string{script})
	if err != nil {
		t.Fatalf("NewCommand: %v", err)
	}
	err = cmd.SetText("x")
	if err == nil {
		t.Fatal("expected error from failing tool")
	}
	if !strings.Contains(err.Error(), "cannot open display") {
		t.Fatalf("error %q lacks the tool's stderr", err)
	}
}

func TestCommandReturnsWhileForkedChildHoldsStderr(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell stub requires a POSIX shell")
	}
	dir := t.TempDir()
	script := filepath.Join(dir, "forkingcopy")
	// Like xclip: read the text, leave a child serving the selection, exit 0.
	if err := os.WriteFile(script, []byte("#!/bin/sh\ncat >/dev/null\n(sleep 10) &\nexit 0\n"), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	cmd, err := clipboard.NewCommand([]string{script})
	if err != nil {
		t.Fatalf("NewCommand: %v", err)
	}

	start := time.Now()
	if err := cmd.SetText("hello"); err != nil {
		t.Fatalf("SetText: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Fatalf("SetText blocked for %s on the forked child", elapsed)
	}
}

func TestGuardedStaysAvailableAfterForkingTool(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell stub requires a POSIX shell")
	}
	dir := t.TempDir()
	script := filepath.Join(dir, "forkingcopy")
	if err := os.WriteFile(script, []byte("#!/bin/sh\ncat >/dev/null\n(sleep 10) &\n"), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	open, err := clipboard.NewOpener(clipboard.KindCommand, []string{script})
	if err != nil {
		t.Fatalf("NewOpener: %v", err)
	}
	sink := clipboard.NewGuarded(open, logging.NewNop())

	start := time.Now()
	for i := 0; i < 3; i++ {
		if !sink.SetText("again") {
			t.Fatalf("write %d failed", i)
		}
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Fatalf("three writes took %s", elapsed)
	}
}

func TestMemoryKeepsOnlyLatestText(t *testing.T) {
	mem := clipboard.NewMemory()
	if _, ok := mem.Last(); ok {
		t.Fatal("empty memory reported a text")
	}
	sink := clipboard.NewGuarded(mem.Opener(), logging.NewNop())
	for i := 0; i < 1000; i++ {
		sink.SetText(strings.Repeat("x", i))
	}
	if got := mem.Count(); got != 1000 {
		t.Fatalf("Count = %d, want 1000", got)
	}
	if got, ok := mem.Last(); !ok || len(got) != 999 {
		t.Fatalf("Last = %d bytes, %v", len(got), ok)
	}
	sink.SetText("")
	if got, ok := mem.Last(); !ok || got != "" {
		t.Fatalf("empty write: Last = %q, %v", got, ok)
	}
}
