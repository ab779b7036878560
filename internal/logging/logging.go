// Package logging configures the process-wide structured logger the gcstore
// library and CLI write to via log/slog.
package logging

import (
	"io"
	"log/slog"
	"strings"
)

// Setup installs a slog default logger writing to w and returns it. level is
// one of "debug", "info", "warn", "error" (default "info"); format is "text"
// or "json" (default "text"). Unrecognized values fall back to the defaults
// rather than failing, so a bad config still produces logs.
func Setup(level, format string, w io.Writer) *slog.Logger {
	logger := slog.New(newHandler(format, w, parseLevel(level)))
	slog.SetDefault(logger)
	return logger
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
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

func newHandler(format string, w io.Writer, lvl slog.Level) slog.Handler {
	opts := &slog.HandlerOptions{Level: lvl}
	if strings.ToLower(format) == "json" {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}
