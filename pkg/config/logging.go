package config

import (
	"os"

	"github.com/filigree-ai/go-filigree/pkg/logger"
)

func logLevel(s string) (logger.LogLevel, error) {
	return logger.ParseLevel(s)
}

// NewLogger builds the logger described by the Logging section: a zerolog
// backend writing JSON lines to stderr, or console output when
// format is "console". An unparseable level falls back to info.
func (c *Config) NewLogger() *logger.Logger {
	lvl, err := logLevel(c.Logging.Level)
	if err != nil {
		lvl = logger.InfoLevel
	}
	return logger.NewZerolog(os.Stderr, lvl, c.Logging.Format == "console")
}
