// Package logger provides leveled structured logging behind a small
// adapter interface, so the toolkit can emit through zerolog, slog or
// nothing at all without the components knowing which backend is wired.
package logger

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// LogLevel represents logging levels (Debug < Info < Warn < Error).
type LogLevel int

const (
	DebugLevel LogLevel = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

// ParseLevel converts a level name to a LogLevel. The empty string parses
// to InfoLevel.
func ParseLevel(s string) (LogLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return DebugLevel, nil
	case "", "info":
		return InfoLevel, nil
	case "warn", "warning":
		return WarnLevel, nil
	case "error":
		return ErrorLevel, nil
	default:
		return InfoLevel, fmt.Errorf("unknown log level %q", s)
	}
}

// Attribute is a structured logging key-value pair.
type Attribute struct {
	Key   string
	Value any
}

// Attr creates an Attribute.
func Attr(key string, value any) Attribute {
	return Attribute{Key: key, Value: value}
}

// Adapter is the contract a logging backend implements.
type Adapter interface {
	// Log emits one record at the given level.
	Log(ctx context.Context, level LogLevel, msg string, attrs ...Attribute)
	// IsLevelEnabled reports whether the backend would emit at the given
	// level, so callers can skip attribute construction when it would not.
	IsLevelEnabled(ctx context.Context, level LogLevel) bool
}

// Logger wraps an Adapter and provides the leveled API the rest of the
// toolkit uses. The zero value is not usable; construct with New, Default
// or Nop.
type Logger struct {
	backend Adapter
}

// New creates a Logger with the given backend.
func New(backend Adapter) *Logger {
	return &Logger{backend: backend}
}

// Default creates a Logger backed by slog.Default.
func Default() *Logger {
	return New(NewSlogAdapter(slog.Default()))
}

// Nop creates a Logger that discards everything. Components use it when no
// logger is configured.
func Nop() *Logger {
	return New(nopAdapter{})
}

// Debug logs at debug level.
func (l *Logger) Debug(ctx context.Context, msg string, attrs ...Attribute) {
	l.log(ctx, DebugLevel, msg, attrs...)
}

// Info logs at info level.
func (l *Logger) Info(ctx context.Context, msg string, attrs ...Attribute) {
	l.log(ctx, InfoLevel, msg, attrs...)
}

// Warn logs at warn level.
func (l *Logger) Warn(ctx context.Context, msg string, attrs ...Attribute) {
	l.log(ctx, WarnLevel, msg, attrs...)
}

// Error logs at error level.
func (l *Logger) Error(ctx context.Context, msg string, attrs ...Attribute) {
	l.log(ctx, ErrorLevel, msg, attrs...)
}

// Enabled reports whether the backend would emit at the given level.
func (l *Logger) Enabled(ctx context.Context, level LogLevel) bool {
	return l.backend.IsLevelEnabled(ctx, level)
}

func (l *Logger) log(ctx context.Context, level LogLevel, msg string, attrs ...Attribute) {
	if l.backend.IsLevelEnabled(ctx, level) {
		l.backend.Log(ctx, level, msg, attrs...)
	}
}

// nopAdapter discards all records.
type nopAdapter struct{}

func (nopAdapter) Log(context.Context, LogLevel, string, ...Attribute) {}

func (nopAdapter) IsLevelEnabled(context.Context, LogLevel) bool { return false }

var _ Adapter = nopAdapter{}
