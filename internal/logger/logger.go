// Package logger builds the root zerolog logger every component derives its
// tagged sub-logger from.
package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// FormatPretty selects human-readable console output for local development.
// Anything else writes one JSON line per event.
const FormatPretty = "pretty"

// Setup configures the process-wide log level and returns the root logger.
// Unknown level strings fall back to info rather than failing startup; a
// misconfigured LOG_LEVEL should never take the exam service down.
func Setup(level, format string) zerolog.Logger {
	var writer io.Writer = os.Stdout
	if format == FormatPretty {
		writer = zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}
	}

	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)

	return zerolog.New(writer).
		With().
		Timestamp().
		Caller().
		Logger()
}
