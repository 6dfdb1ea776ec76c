package logs

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"
)

const (
	pollInterval = 200 * time.Millisecond
	maxLineBytes = 1024 * 1024
)

// Options selects what Tail returns.
type Options struct {
	// Offset is a byte position from a previous Result. Negative means start
	// from the last Limit lines.
	Offset int64
	Limit  int
	// Wait is how long to poll for new lines when none are available yet.
	Wait time.Duration
}

// Result holds complete lines and the offset to resume from.
type Result struct {
	Lines  []string
	Offset int64
}

// Tail reads lines from the log file at path. A missing file yields an empty
// result at offset zero.
func Tail(ctx context.Context, path string, opts Options) (Result, error) {
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return Result{}, nil
	}
	if err != nil {
		return Result{Offset: opts.Offset}, fmt.Errorf("stat log file: %w", err)
	}
	if info.IsDir() {
		return Result{Offset: opts.Offset}, fmt.Errorf("log path %q is a directory", path)
	}

	var res Result
	if opts.Offset < 0 {
		res, err = lastLines(path, opts.Limit)
	} else {
		offset := opts.Offset
		if offset > info.Size() {
			// The file was truncated or replaced.
			offset = 0
		}
		res, err = linesFrom(path, offset)
	}
	if err != nil || len(res.Lines) > 0 || opts.Wait <= 0 {
		return res, err
	}
	return poll(ctx, path, res.Offset, opts.Wait)
}

func lastLines(path string, limit int) (Result, error) {
	file, err := os.Open(path)
	if err != nil {
		return Result{}, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	if limit <= 0 {
		end, err := file.Seek(0, io.SeekEnd)
		if err != nil {
			return Result{}, fmt.Errorf("seek log file: %w", err)
		}
		return Result{Offset: end}, nil
	}

	var (
		ring   = make([]string, 0, limit)
		next   int
		offset int64
	)
	err = scanLines(file, func(line string, consumed int64) {
		offset += consumed
		if len(ring) < limit {
			ring = append(ring, line)
			return
		}
		ring[next] = line
		next = (next + 1) % limit
	})
	if err != nil {
		return Result{}, err
	}

	lines := make([]string, 0, len(ring))
	lines = append(lines, ring[next:]...)
	lines = append(lines, ring[:next]...)
	return Result{Lines: lines, Offset: offset}, nil
}

func linesFrom(path string, offset int64) (Result, error) {
	file, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return Result{}, nil
	}
	if err != nil {
		return Result{Offset: offset}, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return Result{Offset: offset}, fmt.Errorf("seek log file: %w", err)
	}
	res := Result{Offset: offset}
	err = scanLines(file, func(line string, consumed int64) {
		res.Lines = append(res.Lines, line)
		res.Offset += consumed
	})
	return res, err
}

// scanLines calls fn for each newline-terminated line. A trailing partial
// line is left for the next call so a writer mid-line is never split.
func scanLines(r io.Reader, fn func(line string, consumed int64)) error {
	reader := bufio.NewReaderSize(r, maxLineBytes)
	for {
		line, err := reader.ReadSlice('\n')
		if errors.Is(err, bufio.ErrBufferFull) {
			return fmt.Errorf("read log file: line longer than %d bytes", maxLineBytes)
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("read log file: %w", err)
		}
		consumed := int64(len(line))
		text := line[:len(line)-1]
		if n := len(text); n > 0 && text[n-1] == '\r' {
			text = text[:n-1]
		}
		fn(string(text), consumed)
	}
}

func poll(ctx context.Context, path string, offset int64, wait time.Duration) (Result, error) {
	timer := time.NewTimer(wait)
	defer timer.Stop()
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return Result{Offset: offset}, ctx.Err()
		case <-timer.C:
			return Result{Offset: offset}, nil
		case <-ticker.C:
			res, err := linesFrom(path, offset)
			if err != nil || len(res.Lines) > 0 {
				return res, err
			}
		}
	}
}
