package logging

import (
	"context"
	"log/slog"
)

// ContextProvider returns attributes to stamp on a record, such as the
// running session id and tick. It may inspect ctx.
type ContextProvider func(ctx context.Context) []slog.Attr

// ContextHandler wraps another handler and injects dynamic context attributes.
type ContextHandler struct {
	inner    slog.Handler
	provider ContextProvider
}

// NewContextHandler creates a handler that adds dynamic context to each record.
func NewContextHandler(inner slog.Handler, provider ContextProvider) *ContextHandler {
	return &ContextHandler{inner: inner, provider: provider}
}

func (h *ContextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *ContextHandler) Handle(ctx context.Context, r slog.Record) error {
	if h.provider != nil {
		if attrs := h.provider(ctx); len(attrs) > 0 {
			r = r.Clone()
			r.AddAttrs(attrs...)
		}
	}
	return h.inner.Handle(ctx, r)
}

func (h *ContextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ContextHandler{inner: h.inner.WithAttrs(attrs), provider: h.provider}
}

func (h *ContextHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return &ContextHandler{inner: h.inner.WithGroup(name), provider: h.provider}
}

type sessionKey struct{}

// SessionAttrs carries per-session identifiers through a context.
type SessionAttrs struct {
	SessionID string
	Tick      func() uint64
}

// WithSession attaches session identifiers to ctx.
func WithSession(ctx context.Context, s SessionAttrs) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

// SessionContext is a ContextProvider that reads SessionAttrs from ctx.
func SessionContext(ctx context.Context) []slog.Attr {
	s, ok := ctx.Value(sessionKey{}).(SessionAttrs)
	if !ok {
		return nil
	}
	attrs := []slog.Attr{slog.String("session", s.SessionID)}
	if s.Tick != nil {
		attrs = append(attrs, slog.Uint64("tick", s.Tick()))
	}
	return attrs
}
