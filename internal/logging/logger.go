// Package logging provides structured logging via zerolog.
//
// A Logger is configured by level, format (json or console) and output
// (stdout, stderr or a file path). Global installs it as the default
// zerolog logger and as the logger of the default hook directory.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Formats.
const (
	FormatJSON    = "json"
	FormatConsole = "console"
)

// Config configures a Logger.
type Config struct {
	Level  string `toml:"level" yaml:"level"`
	Format string `toml:"format" yaml:"format"`
	Output string `toml:"output" yaml:"output"`
}

// DefaultConfig returns info-level console logging to stderr.
func DefaultConfig() Config {
	return Config{
		Level:  "info",
		Format: FormatConsole,
		Output: "stderr",
	}
}

// Validate checks the level and format.
func (c Config) Validate() error {
	if c.Level != "" {
		if _, err := zerolog.ParseLevel(strings.ToLower(c.Level)); err != nil {
			return fmt.Errorf("logging: invalid level %q", c.Level)
		}
	}
	switch c.Format {
	case "", FormatJSON, FormatConsole:
	default:
		return fmt.Errorf("logging: invalid format %q", c.Format)
	}
	return nil
}

// Merge returns c with the non-empty fields of other applied on top.
func (c Config) Merge(other Config) Config {
	if other.Level != "" {
		c.Level = other.Level
	}
	if other.Format != "" {
		c.Format = other.Format
	}
	if other.Output != "" {
		c.Output = other.Output
	}
	return c
}

// Logger wraps zerolog.Logger.
type Logger struct {
	zl     zerolog.Logger
	closer io.Closer
}

// Option configures a Logger.
type Option func(*options)

type options struct {
	writer io.Writer
}

// WithWriter overrides Config.Output.
func WithWriter(w io.Writer) Option {
	return func(o *options) { o.writer = w }
}

// New creates a Logger with the given configuration.
func New(cfg Config, opts ...Option) (*Logger, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	level := zerolog.InfoLevel
	if cfg.Level != "" {
		level, _ = zerolog.ParseLevel(strings.ToLower(cfg.Level))
	}

	l := &Logger{}
	writer := o.writer
	if writer == nil {
		switch cfg.Output {
		case "stderr", "":
			writer = os.Stderr
		case "stdout":
			writer = os.Stdout
		default:
			f, err := os.OpenFile(cfg.Output, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
			if err != nil {
				return nil, fmt.Errorf("logging: open %s: %w", cfg.Output, err)
			}
			writer = f
			l.closer = f
		}
	}

	if cfg.Format == FormatConsole {
		writer = zerolog.ConsoleWriter{Out: writer, TimeFormat: "15:04:05", NoColor: o.writer != nil}
	}

	l.zl = zerolog.New(writer).Level(level).With().Timestamp().Logger()
	return l, nil
}

// Nop returns a Logger that discards everything.
func Nop() *Logger {
	return &Logger{zl: zerolog.Nop()}
}

// Global installs l as the global zerolog logger.
func Global(l *Logger) {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = l.zl
}

// Zerolog returns the underlying logger.
func (l *Logger) Zerolog() zerolog.Logger { return l.zl }

// Component returns a child logger tagged with a component name.
func (l *Logger) Component(name string) zerolog.Logger {
	return l.zl.With().Str("component", name).Logger()
}

// Debug returns a debug event.
func (l *Logger) Debug() *zerolog.Event { return l.zl.Debug() }

// Info returns an info event.
func (l *Logger) Info() *zerolog.Event { return l.zl.Info() }

// Warn returns a warn event.
func (l *Logger) Warn() *zerolog.Event { return l.zl.Warn() }

// Error returns an error event.
func (l *Logger) Error() *zerolog.Event { return l.zl.Error() }

// Close releases the output file, if any.
func (l *Logger) Close() error {
	if l.closer == nil {
		return nil
	}
	return l.closer.Close()
}
