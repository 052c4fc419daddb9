package logging

import (
	"context"
	"errors"
	"log/slog"
)

// MultiHandler fans each record out to a set of underlying handlers,
// typically local output plus the remote shipper.
type MultiHandler struct {
	hs []slog.Handler
}

// NewMultiHandler creates a handler that delivers to every handler in
// hs. The slice is copied; later mutation by the caller has no effect.
func NewMultiHandler(hs ...slog.Handler) *MultiHandler {
	return &MultiHandler{hs: append([]slog.Handler(nil), hs...)}
}

// Enabled implements slog.Handler: enabled when any target is.
func (m *MultiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range m.hs {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

// Handle delivers r to every handler enabled for its level. Every
// delivery is attempted even when an earlier one fails; failures come
// back joined.
func (m *MultiHandler) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range m.hs {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// WithAttrs implements slog.Handler.
func (m *MultiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := make([]slog.Handler, len(m.hs))
	for i, h := range m.hs {
		next[i] = h.WithAttrs(attrs)
	}
	return &MultiHandler{hs: next}
}

// WithGroup implements slog.Handler.
func (m *MultiHandler) WithGroup(name string) slog.Handler {
	next := make([]slog.Handler, len(m.hs))
	for i, h := range m.hs {
		next[i] = h.WithGroup(name)
	}
	return &MultiHandler{hs: next}
}
