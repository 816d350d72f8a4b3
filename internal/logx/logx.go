// Package logx wires up the process-wide structured logger from a pair
// of CLI flags. It has no other responsibility.
package logx

import (
	"log/slog"
	"os"
)

// Setup installs a slog.Logger as the default logger, selecting its
// handler and level from format ("text" or "json") and level
// ("debug", "info", "warn", "error").
func Setup(format, level string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})
	} else {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})
	}
	slog.SetDefault(slog.New(handler))
}
