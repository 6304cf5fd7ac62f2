// Package logger provides structured logging for the admin service using
// log/slog. The batch data path (importer, backtest loop) sticks to stdlib
// log with [component] prefixes; the request-serving admin API logs JSON.
package logger

import (
	"log/slog"
	"os"
	"strings"
)

// Init creates a JSON logger for the given service and installs it as the
// slog default.
func Init(service string, level slog.Level) *slog.Logger {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	})

	logger := slog.New(handler).With(
		slog.String("service", service),
	)
	slog.SetDefault(logger)

	return logger
}

// ParseLevel maps a config string to a slog level, defaulting to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
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
