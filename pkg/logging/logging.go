// Package logging configures structured logging with slog.
//
// Development builds get colored output through tint; production builds
// write JSON so log shippers can parse records without a custom format.
//
// Usage:
//
//	logging.Setup("info", false)           // colored, INFO
//	logging.Setup("debug", true)           // JSON, DEBUG
//	logging.SetupWithLevel(slog.LevelWarn) // colored, explicit level
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
)

// Setup configures the default logger at the named level. When jsonOutput is
// set records are written as JSON, otherwise tint renders them for a terminal.
func Setup(level string, jsonOutput bool) *slog.Logger {
	logger := New(os.Stderr, ParseLevel(level), jsonOutput)
	slog.SetDefault(logger)
	return logger
}

// SetupWithLevel configures colored logging at the given level.
func SetupWithLevel(level slog.Level) *slog.Logger {
	logger := New(os.Stderr, level, false)
	slog.SetDefault(logger)
	return logger
}

// New builds a logger without installing it as the default.
func New(w io.Writer, level slog.Level, jsonOutput bool) *slog.Logger {
	if jsonOutput {
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
			Level:     level,
			AddSource: true,
		}))
	}
	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: time.Kitchen,
		AddSource:  true,
	}))
}

// ParseLevel maps debug, warn and error to their slog levels; anything else is INFO.
func ParseLevel(level string) slog.Level {
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
