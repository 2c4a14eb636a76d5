// Package logger provides structured logging for the course watcher.
//
// The logger supports multiple log levels (DEBUG, INFO, WARN, ERROR) and writes
// structured records through log/slog, either as JSON (the default, easy to ship
// from a scheduler's job logs) or as human-readable text. Records can carry
// arbitrary structured fields.
//
// Example usage:
//
//	logger.Info("New event", logger.Fields{
//	    "id":    evt.ID,
//	    "title": evt.Title,
//	})
//
//	logger.Error("Notification failed", logger.Fields{
//	    "sink": "webhook",
//	}, err)
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"
)

// Level represents log severity
type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

// Format selects the record encoding
type Format string

const (
	FormatJSON Format = "json"
	FormatText Format = "text"
)

// Fields represents structured log fields
type Fields map[string]interface{}

// Logger provides structured logging
type Logger struct {
	slog *slog.Logger
}

var defaultLogger = New(LevelInfo, FormatJSON, os.Stderr)

// ParseLevel converts a case-insensitive level name
func ParseLevel(s string) (Level, error) {
	switch Level(strings.ToUpper(strings.TrimSpace(s))) {
	case LevelDebug:
		return LevelDebug, nil
	case LevelInfo, "":
		return LevelInfo, nil
	case LevelWarn, "WARNING":
		return LevelWarn, nil
	case LevelError:
		return LevelError, nil
	default:
		return "", fmt.Errorf("unknown log level: %s", s)
	}
}

// New creates a new logger with the specified minimum level, format and output.
// Messages below the minimum level are discarded.
func New(level Level, format Format, output io.Writer) *Logger {
	opts := &slog.HandlerOptions{Level: level.slogLevel()}

	var handler slog.Handler
	if format == FormatText {
		handler = slog.NewTextHandler(output, opts)
	} else {
		handler = slog.NewJSONHandler(output, opts)
	}

	return &Logger{slog: slog.New(handler)}
}

// Discard returns a logger that drops everything, for tests
func Discard() *Logger {
	return &Logger{slog: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

// Default returns the package-level logger
func Default() *Logger {
	return defaultLogger
}

// SetDefault sets the package-level logger used by Debug, Info, Warn and Error
func SetDefault(l *Logger) {
	defaultLogger = l
}

// With returns a logger that adds fields to every record
func (l *Logger) With(fields Fields) *Logger {
	return &Logger{slog: l.slog.With(fields.attrs()...)}
}

// Debug logs detailed diagnostic information
func (l *Logger) Debug(message string, fields Fields) {
	l.log(slog.LevelDebug, message, fields, nil)
}

// Info logs general operational information
func (l *Logger) Info(message string, fields Fields) {
	l.log(slog.LevelInfo, message, fields, nil)
}

// Warn logs a problem that does not stop the run
func (l *Logger) Warn(message string, fields Fields) {
	l.log(slog.LevelWarn, message, fields, nil)
}

// Error logs a failure with its error
func (l *Logger) Error(message string, fields Fields, err error) {
	l.log(slog.LevelError, message, fields, err)
}

func (l *Logger) log(level slog.Level, message string, fields Fields, err error) {
	ctx := context.Background()
	if !l.slog.Enabled(ctx, level) {
		return
	}

	attrs := fields.attrs()
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	l.slog.Log(ctx, level, message, attrs...)
}

// attrs converts fields to slog attributes in key order so output is stable
func (f Fields) attrs() []any {
	if len(f) == 0 {
		return nil
	}

	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	attrs := make([]any, 0, len(keys))
	for _, k := range keys {
		attrs = append(attrs, slog.Any(k, f[k]))
	}
	return attrs
}

func (lv Level) slogLevel() slog.Level {
	switch lv {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Package-level convenience functions using default logger

// Debug logs a debug message with the default logger
func Debug(message string, fields Fields) {
	defaultLogger.Debug(message, fields)
}

// Info logs an info message with the default logger
func Info(message string, fields Fields) {
	defaultLogger.Info(message, fields)
}

// Warn logs a warning message with the default logger
func Warn(message string, fields Fields) {
	defaultLogger.Warn(message, fields)
}

// Error logs an error message with the default logger
func Error(message string, fields Fields, err error) {
	defaultLogger.Error(message, fields, err)
}
