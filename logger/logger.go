// Package logger builds the structured logger used by carbonboard binaries.
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

const (
	// EnvVarLogLevel is the environment variable name for setting the log level.
	EnvVarLogLevel = "LOG_LEVEL"
)

// NewStructuredLogger returns a JSON logger writing to w at the given level, tagged with the
// module name and version. Source locations are added at debug level only.
func NewStructuredLogger(w io.Writer, module, version, level string) *slog.Logger {
	lev := ParseLogLevel(level)

	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:     lev,
		AddSource: lev <= slog.LevelDebug,
	})).With("module", module, "version", version)
}

// SetDefault installs a structured logger writing to w as the slog default. An empty level
// falls back to the LOG_LEVEL environment variable.
func SetDefault(w io.Writer, module, version, level string) *slog.Logger {
	if strings.TrimSpace(level) == "" {
		level = os.Getenv(EnvVarLogLevel)
	}
	l := NewStructuredLogger(w, module, version, level)
	slog.SetDefault(l)
	return l
}

// ParseLogLevel converts "debug", "info", "warn"/"warning" or "error" to a slog.Level.
// Unrecognized strings yield slog.LevelInfo.
func ParseLogLevel(level string) slog.Level {
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
