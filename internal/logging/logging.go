// Package logging builds the zerolog loggers used by the release tool and
// carries them through context.Context.
//
// Example usage:
//
//	log := logging.New(logging.Config{Level: "debug", Format: "console"})
//	ctx := logging.WithLogger(context.Background(), &log)
//	logging.FromContext(ctx).Info().Int64("db_id", 42).Msg("checking instance")
package logging

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Config holds logger configuration options.
type Config struct {
	// Level is the minimum level to output (trace, debug, info, warn, error).
	Level string

	// Format is "console" for human-readable output or "json".
	Format string

	// Output receives the log lines. Defaults to os.Stderr.
	Output io.Writer

	// NoColor disables colors in console mode.
	NoColor bool
}

// DefaultConfig returns info-level console logging on stderr.
func DefaultConfig() Config {
	return Config{
		Level:   "info",
		Format:  "console",
		Output:  os.Stderr,
		NoColor: os.Getenv("NO_COLOR") != "",
	}
}

// New creates a logger from configuration.
func New(cfg Config) zerolog.Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}

	var w io.Writer = out
	if strings.ToLower(cfg.Format) != "json" {
		w = zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: time.RFC3339,
			NoColor:    cfg.NoColor,
		}
	}

	level := ParseLevel(cfg.Level)
	logger := zerolog.New(w).Level(level).With().Timestamp().Logger()
	if level <= zerolog.DebugLevel {
		logger = logger.With().Caller().Logger()
	}
	return logger
}

// ParseLevel maps a level name to a zerolog level, defaulting to info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "warning":
		return zerolog.WarnLevel
	case "off", "none":
		return zerolog.Disabled
	case "":
		return zerolog.InfoLevel
	}
	if l, err := zerolog.ParseLevel(strings.ToLower(level)); err == nil {
		return l
	}
	return zerolog.InfoLevel
}

// ValidFormat reports whether format is accepted by New.
func ValidFormat(format string) bool {
	switch strings.ToLower(format) {
	case "console", "json":
		return true
	}
	return false
}

type contextKey struct{}

// WithLogger adds a logger to the context.
func WithLogger(ctx context.Context, logger *zerolog.Logger) context.Context {
	return context.WithValue(ctx, contextKey{}, logger)
}

// FromContext extracts the logger from context, or returns a disabled logger.
func FromContext(ctx context.Context) *zerolog.Logger {
	if ctx != nil {
		if logger, ok := ctx.Value(contextKey{}).(*zerolog.Logger); ok && logger != nil {
			return logger
		}
	}
	nop := zerolog.Nop()
	return &nop
}
