package logger

import (
	"context"
	"log/slog"

	"github.com/coursematch/coursematch-web/internal/ctxutil"
)

// ContextHandler is a slog.Handler decorator that adds the session and
// request IDs stored in the context to every record, so call sites only need
// to use the *Context logging variants.
type ContextHandler struct {
	handler slog.Handler
}

// NewContextHandler creates a new ContextHandler that wraps the provided handler.
func NewContextHandler(handler slog.Handler) *ContextHandler {
	return &ContextHandler{handler: handler}
}

// Enabled delegates to the wrapped handler.
func (h *ContextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

// Handle adds session_id and request_id (when present) and delegates.
func (h *ContextHandler) Handle(ctx context.Context, r slog.Record) error {
	if sessionID := ctxutil.GetSessionID(ctx); sessionID != "" {
		r.AddAttrs(slog.String("session_id", sessionID))
	}
	if requestID, ok := ctxutil.GetRequestID(ctx); ok && requestID != "" {
		r.AddAttrs(slog.String("request_id", requestID))
	}
	return h.handler.Handle(ctx, r)
}

// WithAttrs returns a new ContextHandler wrapping the handler with attrs applied.
func (h *ContextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ContextHandler{handler: h.handler.WithAttrs(attrs)}
}

// WithGroup returns a new ContextHandler wrapping the grouped handler.
func (h *ContextHandler) WithGroup(name string) slog.Handler {
	return &ContextHandler{handler: h.handler.WithGroup(name)}
}
