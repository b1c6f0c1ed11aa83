package utils

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Logger wraps slog with the leveled printf-style helpers used across the pipeline
type Logger struct {
	slog *slog.Logger
}

// NewLogger creates a logger writing to stdout. LOG_LEVEL and LOG_FORMAT tune it.
func NewLogger() *Logger {
	return NewLoggerTo(os.Stdout, parseLevel(os.Getenv("LOG_LEVEL")), os.Getenv("LOG_FORMAT"))
}

// NewLoggerTo creates a logger writing to w at the given level ("json" or "text" format)
func NewLoggerTo(w io.Writer, level slog.Level, format string) *Logger {
	opts := &slog.HandlerOptions{Level: level}
	var h slog.Handler
	if strings.EqualFold(format, "json") {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	return &Logger{slog: slog.New(h)}
}

// NewNopLogger discards everything; used by tests
func NewNopLogger() *Logger {
	return NewLoggerTo(io.Discard, slog.LevelError+1, "text")
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// SetVerbose swaps the handler for a debug-level one with the same output format
func (l *Logger) SetVerbose(w io.Writer) {
	l.slog = NewLoggerTo(w, slog.LevelDebug, os.Getenv("LOG_FORMAT")).slog
}

// With returns a child logger carrying the given key/value attributes
func (l *Logger) With(args ...any) *Logger {
	return &Logger{slog: l.slog.With(args...)}
}

// Slog exposes the underlying structured logger
func (l *Logger) Slog() *slog.Logger {
	return l.slog
}

func (l *Logger) log(level slog.Level, msg string, args ...any) {
	if !l.slog.Enabled(context.Background(), level) {
		return
	}
	if len(args) > 0 {
		msg = fmt.Sprintf(msg, args...)
	}
	l.slog.Log(context.Background(), level, msg)
}

func (l *Logger) Info(msg string, args ...any) {
	l.log(slog.LevelInfo, msg, args...)
}

func (l *Logger) Warn(msg string, args ...any) {
	l.log(slog.LevelWarn, msg, args...)
}

func (l *Logger) Error(msg string, args ...any) {
	l.log(slog.LevelError, msg, args...)
}

func (l *Logger) Debug(msg string, args ...any) {
	l.log(slog.LevelDebug, msg, args...)
}
