// Package log provides structured logging for tensorreg operations.
//
// The package defines a minimal, slog-compatible Logger interface backed by
// zerolog, together with standard attribute keys for tensor-regression
// workloads (operation names, batch shapes, sweep counters, loss values).
// Estimators obtain a named logger via GetLoggerWithName and attach
// contextual fields with With.
//
// Example usage:
//
//	logger := log.GetLoggerWithName("regression").With(
//	    log.ModelNameKey, "KruskalRegressor",
//	)
//	logger.Info("Training started",
//	    log.OperationKey, log.OperationFit,
//	    log.SamplesKey, 1000,
//	)
package log

import (
	"context"
)

// Logger defines a structured logging interface compatible with log/slog
// level semantics. Fields are alternating key-value pairs.
type Logger interface {
	// Debug logs a debug-level message with optional structured fields.
	Debug(msg string, fields ...any)

	// Info logs an info-level message with optional structured fields.
	Info(msg string, fields ...any)

	// Warn logs a warning-level message with optional structured fields.
	Warn(msg string, fields ...any)

	// Error logs an error-level message with optional structured fields.
	// If a field value is an error, stack trace information may be
	// included automatically.
	Error(msg string, fields ...any)

	// With returns a new Logger with the given fields pre-populated on
	// every subsequent log record.
	With(fields ...any) Logger

	// Enabled reports whether the logger emits records at the given level.
	// Use it to skip expensive field construction for disabled levels.
	Enabled(ctx context.Context, level Level) bool
}

// Level represents a logging level. Values are compatible with slog.Level.
type Level int

// Standard logging levels.
const (
	LevelDebug Level = -4
	LevelInfo  Level = 0
	LevelWarn  Level = 4
	LevelError Level = 8
)

// String returns the string representation of the log level.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// LoggerProvider creates and configures loggers. It exists for dependency
// injection in tests.
type LoggerProvider interface {
	// GetLogger returns the default logger instance.
	GetLogger() Logger

	// GetLoggerWithName returns a logger with a component identifier.
	GetLoggerWithName(name string) Logger

	// SetLevel sets the minimum log level for loggers from this provider.
	SetLevel(level Level)
}
