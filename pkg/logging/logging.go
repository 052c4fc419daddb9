// Package logging configures structured logging for relayd.
//
// It builds slog loggers from a small Config, fans records out to
// multiple handlers, and can ship batched log lines to a remote
// aggregation endpoint alongside local output.
package logging

import (
	"io"
	"log/slog"
	"os"
)

// Level represents a log level.
type Level = slog.Level

// Log levels.
const (
	LevelDebug = slog.LevelDebug
	LevelInfo  = slog.LevelInfo
	LevelWarn  = slog.LevelWarn
	LevelError = slog.LevelError
)

// Format represents the log output format.
type Format string

// Output formats.
const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// Config holds logging configuration.
type Config struct {
	// Level is the minimum log level to output.
	Level Level

	// Format is the output format (text or json).
	Format Format

	// Output is the writer to send logs to. Defaults to os.Stderr.
	Output io.Writer

	// AddSource adds source file and line to log entries.
	AddSource bool

	// ShipperURL, when set, additionally sends batched log lines to a
	// remote push endpoint.
	ShipperURL string
}

// DefaultConfig returns sensible defaults for logging.
func DefaultConfig() Config {
	return Config{
		Level:  LevelInfo,
		Format: FormatText,
		Output: os.Stderr,
	}
}

// New creates a slog.Logger with the given configuration.
func New(cfg Config) *slog.Logger {
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}

	opts := &slog.HandlerOptions{
		Level:     cfg.Level,
		AddSource: cfg.AddSource,
	}

	var local slog.Handler
	switch cfg.Format {
	case FormatJSON:
		local = slog.NewJSONHandler(cfg.Output, opts)
	default:
		local = slog.NewTextHandler(cfg.Output, opts)
	}

	if cfg.ShipperURL != "" {
		remote := NewShipperHandler(cfg.ShipperURL, WithShipperLevel(cfg.Level))
		return slog.New(NewMultiHandler(local, remote))
	}
	return slog.New(local)
}

// NewWithLevel creates a text-format logger at the given level.
func NewWithLevel(level Level) *slog.Logger {
	return New(Config{Level: level, Format: FormatText, Output: os.Stderr})
}

// ParseLevel converts a config string to a Level. Unknown values map to
// Info.
func ParseLevel(s string) Level {
	switch s {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// ConnGroup returns the standard attribute group for connection-scoped
// log records.
func ConnGroup(id, proto, peer string) slog.Attr {
	return slog.Group("conn",
		slog.String("id", id),
		slog.String("proto", proto),
		slog.String("peer", peer),
	)
}
