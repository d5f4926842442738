package observe

import (
	"io"
	"log/slog"
	"strings"

	slogmulti "github.com/samber/slog-multi"
)

// LogLevel is the process-wide level shared by every handler built with
// [NewLogger]. Changing it takes effect immediately, which is how config hot
// reload adjusts verbosity.
var LogLevel = new(slog.LevelVar)

// ParseLevel maps a config level name to an [slog.Level]. Unknown names map
// to info.
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

// NewLogger returns a logger writing human-readable text to terminal and, when
// file is non-nil, JSON lines to file. Both handlers honour level.
func NewLogger(level *slog.LevelVar, terminal, file io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}

	handlers := []slog.Handler{slog.NewTextHandler(terminal, opts)}
	if file != nil {
		handlers = append(handlers, slog.NewJSONHandler(file, opts))
	}
	return slog.New(slogmulti.Fanout(handlers...))
}
