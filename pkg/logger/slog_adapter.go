package logger

import (
	"context"
	"log/slog"
)

// SlogAdapter adapts an slog.Logger to the Adapter interface.
type SlogAdapter struct {
	logger *slog.Logger
}

// NewSlogAdapter creates a new adapter for slog.
func NewSlogAdapter(logger *slog.Logger) *SlogAdapter {
	return &SlogAdapter{logger: logger}
}

// Log implements Adapter.
func (s *SlogAdapter) Log(ctx context.Context, level LogLevel, msg string, attrs ...Attribute) {
	slogAttrs := make([]slog.Attr, len(attrs))
	for i, attr := range attrs {
		slogAttrs[i] = slog.Any(attr.Key, attr.Value)
	}
	s.logger.LogAttrs(ctx, logLevelToSlog(level), msg, slogAttrs...)
}

// IsLevelEnabled implements Adapter.
func (s *SlogAdapter) IsLevelEnabled(ctx context.Context, level LogLevel) bool {
	return s.logger.Enabled(ctx, logLevelToSlog(level))
}

func logLevelToSlog(level LogLevel) slog.Level {
	switch level {
	case DebugLevel:
		return slog.LevelDebug
	case WarnLevel:
		return slog.LevelWarn
	case ErrorLevel:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

var _ Adapter = (*SlogAdapter)(nil)
