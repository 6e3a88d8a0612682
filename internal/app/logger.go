package app

import (
	"io"
	"log/slog"
	"time"

	"github.com/lmittmann/tint"

	"github.com/runixer/mediarelay/internal/config"
)

// NewLogger builds the process logger: JSON by default, coloured text for
// log.format=text. An unknown level falls back to info with a warning.
func NewLogger(w io.Writer, level, format string) *slog.Logger {
	var logLevel slog.Level
	badLevel := logLevel.UnmarshalText([]byte(level)) != nil
	if badLevel {
		logLevel = slog.LevelInfo
	}

	var handler slog.Handler
	if format == config.LogFormatText {
		handler = tint.NewHandler(w, &tint.Options{
			Level:      logLevel,
			TimeFormat: time.TimeOnly,
		})
	} else {
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: logLevel})
	}

	logger := slog.New(handler)
	if badLevel {
		logger.Warn("unknown log level, defaulting to info", "level", level)
	}
	return logger
}
