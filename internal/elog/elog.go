// Package elog sets up the process-wide structured logging convention used
// by every other internal package: a single *slog.Logger built once at
// startup and passed explicitly into constructors, never read from a
// package-level global.
package elog

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// ParseLevel turns a RUST_LOG-style level name ("trace", "debug", "info",
// "warn", "error") into an [slog.Level].  It defaults to [slog.LevelInfo]
// for an empty string, since that is the documented default log level.
func ParseLevel(s string) (lvl slog.Level, err error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return slog.LevelInfo, nil
	case "trace", "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("elog: unknown log level %q", s)
	}
}

// New builds a text-handler logger writing to w at the given level.  Source
// location is attached at debug level and below, where it is most useful.
func New(w io.Writer, lvl slog.Level) (l *slog.Logger) {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level:     lvl,
		AddSource: lvl <= slog.LevelDebug,
	}))
}
