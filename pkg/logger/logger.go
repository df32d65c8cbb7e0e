// Package logger provides the structured logging setup shared across
// fleetkeeper binaries and libraries. All components log through
// zerolog.Logger; this package is the single place that decides the
// sink, level, and human/machine formatting.
package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Config controls how the root logger is constructed.
type Config struct {
	Level  string    // "debug", "info", "warn", "error" (default "info")
	Pretty bool      // human-readable console writer instead of JSON
	Output io.Writer // defaults to os.Stderr
}

// New builds a root zerolog.Logger from Config. cmd/ binaries call this
// once and pass the resulting logger (or a .With()-scoped child of it)
// to every collaborator by constructor injection.
func New(cfg Config) zerolog.Logger {
	level := parseLevel(cfg.Level)

	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}

	if cfg.Pretty {
		out = zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: time.RFC3339,
		}
	}

	zerolog.TimeFieldFormat = time.RFC3339
	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}

func parseLevel(s string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	case "":
		return zerolog.InfoLevel
	default:
		return zerolog.InfoLevel
	}
}
