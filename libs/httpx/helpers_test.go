package httpx

import (
	"context"
	"io"
	"log/slog"
	"sync"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// contextRecorder keeps the request id found in the context of every record.
type contextRecorder struct {
	mu  sync.Mutex
	ids []string
}

func (h *contextRecorder) Enabled(context.Context, slog.Level) bool { return true }

func (h *contextRecorder) Handle(ctx context.Context, _ slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ids = append(h.ids, RequestIDFromContext(ctx))
	return nil
}

func (h *contextRecorder) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h *contextRecorder) WithGroup(string) slog.Handler      { return h }
