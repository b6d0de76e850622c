package logging

import (
	"log/slog"
	"os"
	"strings"
)

// EnvVar overrides the log level when no --log-level flag is given.
const EnvVar = "GROUNDWORK_LOG"

var logger *slog.Logger

// Init configures the process-wide structured logger. An empty level falls
// back to the GROUNDWORK_LOG environment variable, then to info.
func Init(level string) {
	if level == "" {
		level = os.Getenv(EnvVar)
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: ParseLevel(level),
	})
	logger = slog.New(handler)
	slog.SetDefault(logger)
}

// ParseLevel maps a level name to its slog level; unknown names mean info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
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

// Logger returns the process-wide logger, initializing it on first use.
func Logger() *slog.Logger {
	if logger == nil {
		Init("")
	}
	return logger
}

func Debug(msg string, args ...any) {
	Logger().Debug(msg, args...)
}

func Info(msg string, args ...any) {
	Logger().Info(msg, args...)
}

func Warn(msg string, args ...any) {
	Logger().Warn(msg, args...)
}

func Error(msg string, args ...any) {
	Logger().Error(msg, args...)
}
