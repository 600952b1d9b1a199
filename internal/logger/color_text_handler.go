// Package logger provides syspulsed's own console log handler: a
// slog.Handler that colors the level prefix, used for the daemon's own
// operational logging (distinct from internal/logs, which rotates each
// managed daemon's stdout/stderr).
package logger

import (
	"bytes"
	"context"
	"io"
	"log/slog"
)

// ColorTextHandler wraps slog.TextHandler to add ANSI color codes for different log levels
type ColorTextHandler struct {
	*slog.TextHandler
	w        io.Writer
	opts     *slog.HandlerOptions
	showTime bool
}

// NewColorTextHandler creates a new ColorTextHandler
func NewColorTextHandler(w io.Writer, opts *slog.HandlerOptions, showTime bool) *ColorTextHandler {
	return &ColorTextHandler{
		TextHandler: slog.NewTextHandler(w, opts),
		w:           w,
		opts:        opts,
		showTime:    showTime,
	}
}

// Handle implements slog.Handler
func (h *ColorTextHandler) Handle(ctx context.Context, r slog.Record) error {
	// Add color based on level
	var colorCode string
	switch r.Level {
	case slog.LevelDebug:
		colorCode = "\033[36m" // Cyan
	case slog.LevelInfo:
		colorCode = "\033[32m" // Green
	case slog.LevelWarn:
		colorCode = "\033[33m" // Yellow
	case slog.LevelError:
		colorCode = "\033[31m" // Red
	default:
		colorCode = "\033[0m" // Reset/default
	}

	// Write the colored level ahead of the text record: inside the message
	// the escape bytes would be quoted by TextHandler.
	var buf bytes.Buffer
	buf.WriteString(colorCode + r.Level.String() + "\033[0m  ")
	if err := slog.NewTextHandler(&buf, h.opts).Handle(ctx, r); err != nil {
		return err
	}
	_, err := h.w.Write(buf.Bytes())
	return err
}
