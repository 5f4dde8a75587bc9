// Package logger builds the structured logger every long-running
// mount uses, rotating to disk through lumberjack the way
// AsyncPipeWriter in cmd/mount.go shields the main goroutine from a
// slow log consumer, but backed by slog instead of the legacy
// log.Logger the teacher's gcsproxy package reached for.
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/altushkaso/mikufs/internal/config"
)

// New builds a leveled JSON logger. An empty cfg.Path logs to stderr;
// otherwise writes rotate through a lumberjack.Logger sized by cfg.
func New(cfg config.LogConfig) *slog.Logger {
	var w io.Writer = os.Stderr
	if cfg.Path != "" {
		w = &lumberjack.Logger{
			Filename:   cfg.Path,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   cfg.Compress,
		}
	}

	h := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: levelFor(string(cfg.Level))})
	return slog.New(h)
}

func levelFor(s string) slog.Level {
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

// Discard is a no-op logger for callers (tests, library use of
// internal/kernel) that don't want mount/unmount chatter.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
