package logging

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

const consoleTimeLayout = "2006-01-02 15:04:05.000"

func formatTimestamp(t time.Time) string {
	return t.Local().Format(consoleTimeLayout)
}

// attrString renders the component and correlation id prefixes unquoted.
func attrString(v slog.Value) string {
	v = v.Resolve()
	if v.Kind() == slog.KindString {
		return v.String()
	}
	if err, ok := v.Any().(error); ok && v.Kind() == slog.KindAny {
		return err.Error()
	}
	return formatValue("", v)
}

// formatValue renders a console field. Keys ending in _bytes print as sizes.
func formatValue(key string, v slog.Value) string {
	v = v.Resolve()
	switch v.Kind() {
	case slog.KindDuration:
		return roundDuration(v.Duration()).String()
	case slog.KindTime:
		return formatTimestamp(v.Time())
	case slog.KindInt64:
		if n := v.Int64(); n >= 0 && strings.HasSuffix(key, "_bytes") {
			return quoteIfNeeded(humanize.IBytes(uint64(n)))
		}
	case slog.KindUint64:
		if strings.HasSuffix(key, "_bytes") {
			return quoteIfNeeded(humanize.IBytes(v.Uint64()))
		}
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			return quoteIfNeeded(err.Error())
		}
		return quoteIfNeeded(fmt.Sprint(v.Any()))
	}
	return quoteIfNeeded(v.String())
}

func roundDuration(d time.Duration) time.Duration {
	if d < time.Millisecond {
		return d.Round(time.Microsecond)
	}
	return d.Round(time.Millisecond)
}

func quoteIfNeeded(s string) string {
	if s == "" || strings.ContainsFunc(s, func(r rune) bool { return r <= ' ' || r == '=' || r == '"' }) {
		return strconv.Quote(s)
	}
	return s
}
