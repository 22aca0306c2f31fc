// Package logging constructs the single process-wide structured logger,
// threaded explicitly through application state rather than held in a
// package-level global.
package logging

import (
	"log/slog"
	"os"
	"strings"
)

// New builds a *slog.Logger at the given level ("debug", "info", "warn",
// "error"), writing JSON lines to stdout.
func New(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	h := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	return slog.New(h)
}

// WithSession returns a logger with the session id attached to every
// subsequent record, matching the "[area] session detail" tagged-message
// convention the PTY daemon and SSH manager both use, upgraded to a
// structured field.
func WithSession(l *slog.Logger, sessionID string) *slog.Logger {
	return l.With(slog.String("session_id", sessionID))
}
