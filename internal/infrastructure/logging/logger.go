package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/nerrad567/miplug-bridge/internal/infrastructure/config"
)

// Logger is a slog.Logger that also owns its output when that output is a
// rotating file. Every record carries service and version attributes.
type Logger struct {
	*slog.Logger

	closer io.Closer
}

// New builds a Logger from the logging section of the config. Output is
// "stdout" (default), "stderr" or "file"; format is "json" (default) or "text".
func New(cfg config.LoggingConfig, version string) *Logger {
	switch strings.ToLower(cfg.Output) {
	case "stderr":
		return newWithWriter(os.Stderr, cfg, version)
	case "file":
		f := newRotatingFile(cfg.File)
		l := newWithWriter(f, cfg, version)
		l.closer = f
		return l
	default:
		return newWithWriter(os.Stdout, cfg, version)
	}
}

func newWithWriter(w io.Writer, cfg config.LoggingConfig, version string) *Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}

	var h slog.Handler = slog.NewJSONHandler(w, opts)
	if strings.EqualFold(cfg.Format, "text") {
		h = slog.NewTextHandler(w, opts)
	}

	return &Logger{
		Logger: slog.New(h).With("service", "miplug-bridge", "version", version),
	}
}

// newRotatingFile leaves zero limits to lumberjack's defaults.
func newRotatingFile(cfg config.FileLoggingConfig) *lumberjack.Logger {
	return &lumberjack.Logger{
		Filename:   cfg.Path,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   cfg.Compress,
	}
}

// parseLevel maps debug, warn/warning and error; anything else is info.
func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// With returns a child logger sharing the same output.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...), closer: l.closer}
}

// Close releases a file output. Closing a child closes the shared file, so
// only the root logger should be closed.
func (l *Logger) Close() error {
	if l.closer == nil {
		return nil
	}
	return l.closer.Close()
}

// Default is the bootstrap logger used until the config is loaded.
func Default() *Logger {
	return New(config.LoggingConfig{Level: "info", Format: "json", Output: "stdout"}, "dev")
}
