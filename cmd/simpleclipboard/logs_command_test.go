package main

import (
	"bytes"
	"context"
	"os"
	"strings"
	"testing"
	"time"
)

func writeLog(t *testing.T, path string, lines ...string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}
}

func TestLogsThroughDaemon(t *testing.T) {
	env := setupCLITestEnv(t)
	writeLog(t, env.cfg.Logging.File, "one", "two", "three")

	out, _, err := runCLI(t, []string{"logs", "-n", "2"}, env.configPath)
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	if out != "two\nthree\n" {
		t.Fatalf("logs output = %q", out)
	}
}

func TestLogsReadsFileWhenDaemonIsOffline(t *testing.T) {
	cfg, configPath := newTestConfig(t)
	writeLog(t, cfg.Logging.File, "alpha", "beta")

	out, _, err := runCLI(t, []string{"logs"}, configPath)
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	if out != "alpha\nbeta\n" {
		t.Fatalf("logs output = %q", out)
	}
}

func TestStreamLogsFollowsUntilCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	batches := [][]string{{"first"}, {"second"}, nil}
	calls := 0
	fetch := func(_ context.Context, offset int64, limit int, wait time.Duration) ([]string, int64, error) {
		if calls == 0 && (offset != -1 || limit != 5) {
			t.Errorf("first fetch offset=%d limit=%d", offset, limit)
		}
		if calls > 0 && wait != followWait {
			t.Errorf("follow fetch wait = %s", wait)
		}
		var batch []string
		if calls < len(batches) {
			batch = batches[calls]
		}
		calls++
		if calls == len(batches) {
			cancel()
		}
		return batch, int64(calls), nil
	}

	var out bytes.Buffer
	if err := streamLogs(ctx, &out, fetch, 5, true); err != nil {
		t.Fatalf("streamLogs: %v", err)
	}
	if out.String() != "first\nsecond\n" {
		t.Fatalf("output = %q", out.String())
	}
}
