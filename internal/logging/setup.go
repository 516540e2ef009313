package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
)

// ParseLevel maps "debug", "info", "warn" and "error" (any case) to a slog
// level. Empty or unknown values fall back to LOG_LEVEL and then to Info.
func ParseLevel(s string) slog.Level {
	if s == "" {
		s = os.Getenv("LOG_LEVEL")
	}
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

// NewConsole builds a colored tint logger for interactive use. Colors are
// disabled unless w is a terminal-backed *os.File.
func NewConsole(w io.Writer, level slog.Level) *SlogLogger {
	_, isFile := w.(*os.File)
	return NewSlogLogger(slog.New(tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: time.Kitchen,
		NoColor:    !isFile,
	})))
}

// NewJSON builds a JSON logger for services whose output is collected.
func NewJSON(w io.Writer, level slog.Level) *SlogLogger {
	return NewSlogLogger(slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})))
}
