// Package logger configures the process-wide zerolog logger.
package logger

import (
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// New builds the root logger. level is one of zerolog's level strings
// ("debug", "info", ...); anything unknown falls back to info. Set
// LOG_PRETTY=true for human-readable console output during development.
func New(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	var out zerolog.Logger
	if os.Getenv("LOG_PRETTY") == "true" {
		out = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	} else {
		out = zerolog.New(os.Stderr)
	}
	return out.Level(lvl).With().Timestamp().Logger()
}
