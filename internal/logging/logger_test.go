package logging_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"simpleclipboard/internal/logging"
)

func newFileLogger(t *testing.T, format, level string) (string, func() string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "logs", "daemon.log")
	logger, err := logging.New(logging.Options{Level: level, Format: format, OutputPaths: []string{path}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	read := func() string {
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("read log: %v", err)
		}
		return string(data)
	}
	logging.NewComponentLogger(logger, "daemon").Info("listening", logging.String("addr", "127.0.0.1:12344"))
	return path, read
}

func TestConsoleFormatIncludesComponentAndFields(t *testing.T) {
	_, read := newFileLogger(t, "console", "info")
	out := read()
	for _, want := range []string{"INFO", "[daemon]", "listening", "addr=127.0.0.1:12344"} {
		if !strings.Contains(out, want) {
			t.Fatalf("console output %q missing %q", out, want)
		}
	}
}

func TestJSONFormatEmitsObjects(t *testing.T) {
	_, read := newFileLogger(t, "json", "info")
	line := strings.TrimSpace(read())
	var payload map[string]any
	if err := json.Unmarshal([]byte(line), &payload); err != nil {
		t.Fatalf("unmarshal %q: %v", line, err)
	}
	if payload["level"] != "info" || payload["msg"] != "listening" || payload["component"] != "daemon" {
		t.Fatalf("unexpected payload: %v", payload)
	}
	if _, ok := payload["ts"]; !ok {
		t.Fatalf("missing ts: %v", payload)
	}
}

func TestLevelFiltersDebug(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.log")
	logger, err := logging.New(logging.Options{Level: "warn", OutputPaths: []string{path}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	logger.Info("hidden")
	logging.WarnWithContext(logger, "relay failed", "relay_failed")
	data, _ := os.ReadFile(path)
	out := string(data)
	if strings.Contains(out, "hidden") {
		t.Fatalf("info line written at warn level: %q", out)
	}
	for _, want := range []string{"relay failed", "event_type=relay_failed", "impact="} {
		if !strings.Contains(out, want) {
			t.Fatalf("warn output %q missing %q", out, want)
		}
	}
}

func TestConsoleFormatsSizesAndDurations(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sizes.log")
	logger, err := logging.New(logging.Options{Format: "console", OutputPaths: []string{path}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	logger.Info("delivered",
		logging.TextSize(strings.Repeat("x", 1536)),
		logging.Duration("elapsed", 1234567*time.Nanosecond),
		logging.Int("attempts", 2048),
		logging.Error(nil),
	)
	data, _ := os.ReadFile(path)
	out := string(data)
	for _, want := range []string{`text_bytes="1.5 KiB"`, "elapsed=1ms", "attempts=2048"} {
		if !strings.Contains(out, want) {
			t.Fatalf("console output %q missing %q", out, want)
		}
	}
	if strings.Contains(out, "error=") {
		t.Fatalf("nil error should be dropped: %q", out)
	}
}

func TestWarnWithContextKeepsCallerFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "warn.log")
	logger, err := logging.New(logging.Options{Format: "json", OutputPaths: []string{path}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	logging.WarnWithContext(logger, "forward failed", "forward_failed",
		logging.String(logging.FieldImpact, "text set locally instead"),
	)
	data, _ := os.ReadFile(path)
	var payload map[string]any
	if err := json.Unmarshal(data, &payload); err != nil {
		t.Fatalf("unmarshal %q: %v", data, err)
	}
	if payload[logging.FieldImpact] != "text set locally instead" {
		t.Fatalf("impact overridden: %v", payload)
	}
	if payload[logging.FieldEventType] != "forward_failed" || payload[logging.FieldErrorHint] == nil {
		t.Fatalf("defaults missing: %v", payload)
	}
}

func TestUnknownFormatRejected(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestWithContextAddsRequestID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ctx.log")
	logger, err := logging.New(logging.Options{Format: "json", OutputPaths: []string{path}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := logging.WithRequestID(context.Background(), "abc-123")
	ctx = logging.WithRemoteAddr(ctx, "127.0.0.1:5000")
	logging.WithContext(ctx, logger).Info("handled")

	data, _ := os.ReadFile(path)
	var payload map[string]any
	if err := json.Unmarshal(data, &payload); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if payload[logging.FieldCorrelationID] != "abc-123" || payload[logging.FieldRemoteAddr] != "127.0.0.1:5000" {
		t.Fatalf("context fields missing: %v", payload)
	}
	if id, ok := logging.RequestIDFromContext(ctx); !ok || id != "abc-123" {
		t.Fatalf("RequestIDFromContext = %q, %v", id, ok)
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]string{"debug": "DEBUG", "WARNING": "WARN", "error": "ERROR", "": "INFO", "bogus": "INFO"}
	for in, want := range cases {
		if got := logging.ParseLevel(in).String(); got != want {
			t.Fatalf("ParseLevel(%q) = %s, want %s", in, got, want)
		}
	}
}
