package logger

import (
	"context"
	"io"

	"github.com/rs/zerolog"
)

// NewZerolog builds a zerolog-backed Logger writing to w at the given
// level. console selects human-readable output instead of JSON lines.
func NewZerolog(w io.Writer, level LogLevel, console bool) *Logger {
	if console {
		w = zerolog.ConsoleWriter{Out: w}
	}
	zl := zerolog.New(w).With().Timestamp().Logger().Level(logLevelToZerolog(level))
	return New(NewZerologAdapter(zl))
}

// ZerologAdapter adapts a zerolog.Logger to the Adapter interface.
type ZerologAdapter struct {
	logger zerolog.Logger
}

// NewZerologAdapter creates a new adapter for zerolog.
func NewZerologAdapter(logger zerolog.Logger) *ZerologAdapter {
	return &ZerologAdapter{logger: logger}
}

// Log implements Adapter.
func (z *ZerologAdapter) Log(ctx context.Context, level LogLevel, msg string, attrs ...Attribute) {
	var evt *zerolog.Event

	switch level {
	case DebugLevel:
		evt = z.logger.Debug()
	case WarnLevel:
		evt = z.logger.Warn()
	case ErrorLevel:
		evt = z.logger.Error()
	default:
		evt = z.logger.Info()
	}

	evt = evt.Ctx(ctx)
	for _, attr := range attrs {
		evt = evt.Interface(attr.Key, attr.Value)
	}
	evt.Msg(msg)
}

// IsLevelEnabled implements Adapter using zerolog's configured level.
func (z *ZerologAdapter) IsLevelEnabled(_ context.Context, level LogLevel) bool {
	return z.logger.GetLevel() <= logLevelToZerolog(level)
}

func logLevelToZerolog(level LogLevel) zerolog.Level {
	switch level {
	case DebugLevel:
		return zerolog.DebugLevel
	case WarnLevel:
		return zerolog.WarnLevel
	case ErrorLevel:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

var _ Adapter = (*ZerologAdapter)(nil)
