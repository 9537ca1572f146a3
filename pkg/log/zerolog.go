// zerolog-backed implementation of the Logger interface. GetLogger wires
// the pkg/errors warning channel into structured logging on first use, so
// warning types carrying MarshalZerologObject render as structured fields.

package log

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/rs/zerolog"

	"github.com/numanelahi/tensorreg/pkg/errors"
)

type zerologLogger struct {
	zl zerolog.Logger
}

var (
	setupOnce     sync.Once
	defaultLogger Logger
)

// GetLogger returns the default library logger. The first call initializes
// a zerolog logger writing JSON to stderr and registers it as the sink for
// errors.Warn.
func GetLogger() Logger {
	setupOnce.Do(func() {
		zl := zerolog.New(os.Stderr).With().Timestamp().Logger()
		base := &zerologLogger{zl: zl}
		defaultLogger = base

		errors.SetZerologWarnFunc(func(w error) {
			base.Warn(w.Error(), "warning", w)
		})
	})
	return defaultLogger
}

// GetLoggerWithName returns a logger tagged with a component name.
func GetLoggerWithName(name string) Logger {
	return GetLogger().With(ComponentKey, name)
}

// SetLevel sets the global minimum level for the zerolog-backed loggers.
func SetLevel(level Level) {
	zerolog.SetGlobalLevel(toZerologLevel(level))
}

func toZerologLevel(level Level) zerolog.Level {
	switch {
	case level <= LevelDebug:
		return zerolog.DebugLevel
	case level <= LevelInfo:
		return zerolog.InfoLevel
	case level <= LevelWarn:
		return zerolog.WarnLevel
	default:
		return zerolog.ErrorLevel
	}
}

func fromZerologLevel(level zerolog.Level) Level {
	switch level {
	case zerolog.DebugLevel, zerolog.TraceLevel:
		return LevelDebug
	case zerolog.InfoLevel:
		return LevelInfo
	case zerolog.WarnLevel:
		return LevelWarn
	default:
		return LevelError
	}
}

// Debug implements Logger.Debug.
func (z *zerologLogger) Debug(msg string, fields ...any) {
	z.emit(z.zl.Debug(), msg, fields)
}

// Info implements Logger.Info.
func (z *zerologLogger) Info(msg string, fields ...any) {
	z.emit(z.zl.Info(), msg, fields)
}

// Warn implements Logger.Warn.
func (z *zerologLogger) Warn(msg string, fields ...any) {
	z.emit(z.zl.Warn(), msg, fields)
}

// Error implements Logger.Error.
func (z *zerologLogger) Error(msg string, fields ...any) {
	z.emit(z.zl.Error(), msg, fields)
}

// With implements Logger.With.
func (z *zerologLogger) With(fields ...any) Logger {
	ctx := z.zl.With()
	for i := 0; i+1 < len(fields); i += 2 {
		key := fmt.Sprintf("%v", fields[i])
		ctx = ctx.Interface(key, fields[i+1])
	}
	logger := ctx.Logger()
	return &zerologLogger{zl: logger}
}

// Enabled implements Logger.Enabled.
func (z *zerologLogger) Enabled(_ context.Context, level Level) bool {
	return level >= fromZerologLevel(z.zl.GetLevel()) && level >= fromZerologLevel(zerolog.GlobalLevel())
}

func (z *zerologLogger) emit(ev *zerolog.Event, msg string, fields []any) {
	if ev == nil {
		return
	}
	for i := 0; i+1 < len(fields); i += 2 {
		key := fmt.Sprintf("%v", fields[i])
		switch v := fields[i+1].(type) {
		case zerolog.LogObjectMarshaler:
			ev = ev.Object(key, v)
		case error:
			ev = ev.AnErr(key, v)
		default:
			ev = ev.Interface(key, v)
		}
	}
	ev.Msg(msg)
}
