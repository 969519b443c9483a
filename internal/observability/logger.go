package observability

import (
	"io"
	"log/slog"
	"strings"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
)

// NewLogger builds the service logger on stdout and installs it as the slog
// default.
func NewLogger(level, format string) *slog.Logger {
	return sharedobs.NewLogger(level, format)
}

// NewLoggerTo builds a logger writing to w, for commands whose stdout carries
// their output. Level names follow slog ("debug", "info", "warn", "error",
// case-insensitive); anything else means info.
func NewLoggerTo(w io.Writer, level, format string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(level))); err != nil {
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if strings.EqualFold(format, "text") {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}
