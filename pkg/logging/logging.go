// Package logging configures the process-wide slog default logger.
//
// Two setups are provided: a text logger for interactive CLI use and a JSON
// logger tagged with the program name and version for use inside cluster
// Jobs, where logs are collected by the node agent.
//
// The level is taken from the LOG_LEVEL environment variable (debug, info,
// warn, error) unless a caller forces debug.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// EnvLogLevel is the environment variable consulted for the log level.
const EnvLogLevel = "LOG_LEVEL"

// ParseLevel converts a level name into a slog.Level.
// Unknown or empty names map to info.
func ParseLevel(name string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
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

// levelFromEnv returns the level set via LOG_LEVEL, or debug when forced.
func levelFromEnv(debug bool) slog.Level {
	if debug {
		return slog.LevelDebug
	}
	return ParseLevel(os.Getenv(EnvLogLevel))
}

// NewCLILogger returns a text logger writing to w.
func NewCLILogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// NewStructuredLogger returns a JSON logger writing to w with name and
// version attached to every record.
func NewStructuredLogger(w io.Writer, name, version string, level slog.Level) *slog.Logger {
	h := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	})
	return slog.New(h).With(
		slog.String("name", name),
		slog.String("version", version),
	)
}

// SetDefaultCLILogger installs a stderr text logger as the slog default.
func SetDefaultCLILogger(debug bool) {
	slog.SetDefault(NewCLILogger(os.Stderr, levelFromEnv(debug)))
}

// SetDefaultStructuredLogger installs a stderr JSON logger as the slog default.
func SetDefaultStructuredLogger(name, version string, debug bool) {
	slog.SetDefault(NewStructuredLogger(os.Stderr, name, version, levelFromEnv(debug)))
}
