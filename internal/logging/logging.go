// Package logging builds the slog loggers used by the timetable binaries.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"go.uber.org/multierr"
)

// LevelAudit records lifecycle transitions. It sorts between INFO and WARN.
const LevelAudit = slog.Level(2)

// NewLogger creates a logger writing to stderr.
//
// level: slog level (DEBUG, INFO, AUDIT, WARN, ERROR)
// format: "text" (human-readable) or "json" (structured)
//
// Extra writers, such as a log file, receive the same records.
func NewLogger(level slog.Level, format string, extra ...io.Writer) *slog.Logger {
	if len(extra) == 0 {
		return NewLoggerWithWriter(level, format, os.Stderr)
	}
	handlers := []slog.Handler{newHandler(level, format, os.Stderr)}
	for _, w := range extra {
		handlers = append(handlers, newHandler(level, format, w))
	}
	return slog.New(NewTee(handlers...))
}

// NewLoggerWithWriter creates a logger writing to the given writer.
func NewLoggerWithWriter(level slog.Level, format string, w io.Writer) *slog.Logger {
	return slog.New(newHandler(level, format, w))
}

func newHandler(level slog.Level, format string, w io.Writer) slog.Handler {
	opts := &slog.HandlerOptions{Level: level, ReplaceAttr: renameAudit}
	switch strings.ToLower(format) {
	case "json":
		return slog.NewJSONHandler(w, opts)
	default:
		return slog.NewTextHandler(w, opts)
	}
}

func renameAudit(_ []string, a slog.Attr) slog.Attr {
	if a.Key == slog.LevelKey {
		if lvl, ok := a.Value.Any().(slog.Level); ok && lvl == LevelAudit {
			a.Value = slog.StringValue("AUDIT")
		}
	}
	return a
}

// ParseLevel converts a string log level to slog.Level.
// Returns slog.LevelInfo for unrecognized values.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "audit":
		return LevelAudit
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Tee fans each record out to several handlers.
type Tee struct {
	handlers []slog.Handler
}

// NewTee creates a Tee.
func NewTee(handlers ...slog.Handler) *Tee {
	return &Tee{handlers: handlers}
}

// Enabled reports true if any handler is enabled.
func (t *Tee) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range t.handlers {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

// Handle passes the record to every enabled handler and combines their errors.
func (t *Tee) Handle(ctx context.Context, r slog.Record) error {
	var err error
	for _, h := range t.handlers {
		if h.Enabled(ctx, r.Level) {
			err = multierr.Append(err, h.Handle(ctx, r.Clone()))
		}
	}
	return err
}

func (t *Tee) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make([]slog.Handler, len(t.handlers))
	for i, h := range t.handlers {
		out[i] = h.WithAttrs(attrs)
	}
	return &Tee{handlers: out}
}

func (t *Tee) WithGroup(name string) slog.Handler {
	out := make([]slog.Handler, len(t.handlers))
	for i, h := range t.handlers {
		out[i] = h.WithGroup(name)
	}
	return &Tee{handlers: out}
}
