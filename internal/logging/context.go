package logging

import (
	"context"
	"log/slog"
)

const (
	FieldComponent = "component"
	// FieldCorrelationID carries the per-connection request id.
	FieldCorrelationID = "correlation_id"
	FieldRemoteAddr    = "remote_addr"
	FieldFormat        = "format"
	FieldMessageKind   = "message_kind"
	FieldEventType     = "event_type"
	FieldErrorHint     = "error_hint"
	// FieldImpact describes the user-facing consequence of a warning.
	FieldImpact       = "impact"
	FieldDecisionType = "decision_type"
	FieldTextBytes    = "text_bytes"
)

type requestIDKey struct{}

type remoteAddrKey struct{}

// WithRequestID stores a connection's request id on ctx.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey{}, id)
}

func RequestIDFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	id, ok := ctx.Value(requestIDKey{}).(string)
	return id, ok && id != ""
}

// WithRemoteAddr stores the peer address of a connection on ctx.
func WithRemoteAddr(ctx context.Context, addr string) context.Context {
	if addr == "" {
		return ctx
	}
	return context.WithValue(ctx, remoteAddrKey{}, addr)
}

// ContextFields extracts standard attributes from ctx.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 2)
	if id, ok := RequestIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldCorrelationID, id))
	}
	if addr, ok := ctx.Value(remoteAddrKey{}).(string); ok && addr != "" {
		fields = append(fields, slog.String(FieldRemoteAddr, addr))
	}
	return fields
}

// WithContext returns logger augmented with the fields stored on ctx.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(Args(fields...)...)
}
