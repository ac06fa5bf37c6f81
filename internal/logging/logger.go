// Package logging builds the service's zerolog logger and request logging middleware.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// New creates a logger writing JSON or human readable console output.
func New(level, format, service, environment string) zerolog.Logger {
	return NewWithWriter(os.Stdout, level, format, service, environment)
}

// NewWithWriter is New with an explicit destination.
func NewWithWriter(w io.Writer, level, format, service, environment string) zerolog.Logger {
	out := w
	if strings.EqualFold(format, "console") {
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	return zerolog.New(out).
		With().
		Timestamp().
		Str("service", service).
		Str("environment", environment).
		Logger().
		Level(parseLevel(level))
}

func parseLevel(raw string) zerolog.Level {
	if raw == "" {
		return zerolog.InfoLevel
	}
	level, err := zerolog.ParseLevel(strings.ToLower(raw))
	if err != nil {
		return zerolog.InfoLevel
	}
	return level
}
