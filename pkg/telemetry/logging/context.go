package logging

import (
	"context"
	"log/slog"
)

type contextKey string

const (
	// RequestIDKey holds the API request id.
	RequestIDKey contextKey = "request_id"

	// OperationIDKey holds the engine operation id.
	OperationIDKey contextKey = "op_id"

	// AdminKey holds the administrator issuing a request.
	AdminKey contextKey = "admin"
)

// WithRequestID adds a request id to ctx.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, RequestIDKey, id)
}

// GetRequestID returns the request id in ctx.
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(RequestIDKey).(string); ok {
		return id
	}
	return ""
}

// WithOperationID adds an operation id to ctx.
func WithOperationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, OperationIDKey, id)
}

// GetOperationID returns the operation id in ctx.
func GetOperationID(ctx context.Context) string {
	if id, ok := ctx.Value(OperationIDKey).(string); ok {
		return id
	}
	return ""
}

// WithAdmin adds the administrator name to ctx.
func WithAdmin(ctx context.Context, admin string) context.Context {
	return context.WithValue(ctx, AdminKey, admin)
}

// GetAdmin returns the administrator name in ctx.
func GetAdmin(ctx context.Context) string {
	if a, ok := ctx.Value(AdminKey).(string); ok {
		return a
	}
	return ""
}

// contextFields returns the context values present in ctx as attributes.
func contextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	var attrs []slog.Attr
	if id := GetRequestID(ctx); id != "" {
		attrs = append(attrs, slog.String(string(RequestIDKey), id))
	}
	if id := GetOperationID(ctx); id != "" {
		attrs = append(attrs, slog.String(string(OperationIDKey), id))
	}
	if a := GetAdmin(ctx); a != "" {
		attrs = append(attrs, slog.String(string(AdminKey), a))
	}
	return attrs
}

// contextHandler adds context fields to each record.
type contextHandler struct {
	slog.Handler
}

func (h *contextHandler) Handle(ctx context.Context, r slog.Record) error {
	if attrs := contextFields(ctx); len(attrs) > 0 {
		r.AddAttrs(attrs...)
	}
	return h.Handler.Handle(ctx, r)
}

func (h *contextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &contextHandler{Handler: h.Handler.WithAttrs(attrs)}
}

func (h *contextHandler) WithGroup(name string) slog.Handler {
	return &contextHandler{Handler: h.Handler.WithGroup(name)}
}
