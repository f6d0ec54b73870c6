package config

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/zero-day-ai/semgate/semerr"
)

// ParseLevel converts a level name to a slog.Level.
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, semerr.Configuration("config.ParseLevel", fmt.Errorf("unknown log level %q", level))
	}
}

// NewLogger builds a logger writing to w in the configured format.
func (c LoggingConfig) NewLogger(w io.Writer) (*slog.Logger, error) {
	level, err := ParseLevel(c.Level)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	switch strings.ToLower(c.Format) {
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	default:
		return nil, semerr.Configuration("config.NewLogger", fmt.Errorf("unknown log format %q", c.Format))
	}
}
