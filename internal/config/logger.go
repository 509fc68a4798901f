package config

import (
	"io"
	"log/slog"
	"strings"
)

// NewLogger builds the process logger from APP_LOG_LEVEL and APP_LOG_FORMAT.
func NewLogger(a AppConfig, w io.Writer) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(a.LogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	var h slog.Handler
	if strings.EqualFold(a.LogFormat, "text") {
		h = slog.NewTextHandler(w, opts)
	} else {
		h = slog.NewJSONHandler(w, opts)
	}
	return slog.New(h).With("env", a.Env)
}
