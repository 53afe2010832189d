package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/carebridge-wallet-ledger/internal/config"
)

// ParseLevel maps LOG_LEVEL onto a slog level, defaulting to info
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger creates the JSON logger every component receives
func NewLogger(cfg *config.Config) *slog.Logger {
	return newLogger(os.Stdout, cfg)
}

func newLogger(w io.Writer, cfg *config.Config) *slog.Logger {
	level := ParseLevel(cfg.Logging.Level)

	opts := &slog.HandlerOptions{
		Level: level,
		// Add source code location to log output
		AddSource: level == slog.LevelDebug,
	}

	logger := slog.New(slog.NewJSONHandler(w, opts))
	if cfg.Application.Name != "" {
		logger = logger.With("service", cfg.Application.Name, "env", cfg.Application.Env)
	}

	logger.Info("logger initialized", "level", level)

	return logger
}
