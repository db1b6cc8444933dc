// Package logging provides the structured JSON logger used across the
// service. It is a thin wrapper over slog so call sites keep the standard
// Info/Warn/Error API.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Logger tags slog with per-subsystem context.
type Logger struct {
	*slog.Logger
}

// New returns a JSON logger on stdout. Level is one of debug, info, warn,
// error; anything else means info.
func New(level string) *Logger {
	return NewWithWriter(level, os.Stdout)
}

// NewWithWriter directs output to w. Tests use this to capture lines.
func NewWithWriter(level string, w io.Writer) *Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: ParseLevel(level)})
	return &Logger{Logger: slog.New(handler)}
}

// Default is an info-level stdout logger.
func Default() *Logger {
	return New("")
}

// Component returns a child logger whose lines carry a component field, so
// one subsystem's output can be filtered out of the stream.
func (l *Logger) Component(name string) *Logger {
	return &Logger{Logger: l.Logger.With("component", name)}
}

// ParseLevel maps a config string to a slog level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
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
