package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"mercator-hq/warden/pkg/config"
)

// LogFormat is the output format.
type LogFormat string

const (
	FormatJSON LogFormat = "json"
	FormatText LogFormat = "text"
)

// Config contains logger settings.
type Config struct {
	// Level is the minimum level: "debug", "info", "warn" or "error".
	Level string

	// Format is "json" or "text".
	Format string

	// AddSource includes file and line.
	AddSource bool

	// RedactDevicePaths replaces NT device paths in attributes.
	RedactDevicePaths bool

	// RedactPatterns adds custom patterns.
	RedactPatterns []config.RedactPattern

	// Writer defaults to os.Stdout.
	Writer io.Writer
}

// FromConfig converts the logging section of the agent configuration.
func FromConfig(cfg config.LoggingConfig) Config {
	return Config{
		Level:             cfg.Level,
		Format:            cfg.Format,
		AddSource:         cfg.AddSource,
		RedactDevicePaths: cfg.RedactDevicePaths,
		RedactPatterns:    cfg.RedactPatterns,
	}
}

// Logger owns the process slog.Logger and its adjustable level.
type Logger struct {
	slog     *slog.Logger
	level    *slog.LevelVar
	format   LogFormat
	redactor *Redactor
}

// New builds a logger.
func New(cfg Config) (*Logger, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}
	format, err := parseFormat(cfg.Format)
	if err != nil {
		return nil, fmt.Errorf("invalid log format: %w", err)
	}

	writer := cfg.Writer
	if writer == nil {
		writer = os.Stdout
	}

	lv := new(slog.LevelVar)
	lv.Set(level)

	redactor, err := NewRedactor(cfg.RedactDevicePaths, cfg.RedactPatterns)
	if err != nil {
		return nil, err
	}

	opts := &slog.HandlerOptions{
		Level:     lv,
		AddSource: cfg.AddSource,
	}
	if redactor.Enabled() {
		opts.ReplaceAttr = redactor.ReplaceAttr
	}

	var handler slog.Handler
	switch format {
	case FormatText:
		handler = slog.NewTextHandler(writer, opts)
	default:
		handler = slog.NewJSONHandler(writer, opts)
	}

	return &Logger{
		slog:     slog.New(&contextHandler{Handler: handler}),
		level:    lv,
		format:   format,
		redactor: redactor,
	}, nil
}

// Slog returns the underlying logger.
func (l *Logger) Slog() *slog.Logger {
	return l.slog
}

// SetLevel changes the minimum level of every logger derived from l.
func (l *Logger) SetLevel(level string) error {
	lvl, err := ParseLevel(level)
	if err != nil {
		return err
	}
	if l.level.Level() != lvl {
		l.level.Set(lvl)
		l.slog.Info("log level changed", "level", lvl.String())
	}
	return nil
}

// Level returns the current minimum level.
func (l *Logger) Level() slog.Level {
	return l.level.Level()
}

// Format returns the output format.
func (l *Logger) Format() LogFormat {
	return l.format
}

// ParseLevel parses a level name.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level: %s", s)
	}
}

func parseFormat(s string) (LogFormat, error) {
	switch strings.ToLower(s) {
	case "json", "":
		return FormatJSON, nil
	case "text":
		return FormatText, nil
	default:
		return FormatJSON, fmt.Errorf("unknown log format: %s", s)
	}
}
