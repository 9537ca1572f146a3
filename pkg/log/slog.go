// slog integration for programs that route all output through the standard
// library default logger, e.g. the examples. SetupLogger installs a JSON
// handler that extracts cockroachdb/errors stack traces from logged errors.

package log

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/cockroachdb/errors"
)

// SetupLogger configures the process-wide slog default logger.
func SetupLogger(loglevel string) {
	ops := slog.HandlerOptions{
		AddSource: true,
		Level:     ToLogLevel(loglevel),
	}
	handler := slog.NewJSONHandler(os.Stdout, &ops)
	slog.SetDefault(slog.New(WithStackTraces(handler)))
}

// ToLogLevel converts a level name into a slog.Level.
func ToLogLevel(level string) slog.Level {
	switch level {
	case "info":
		return slog.LevelInfo
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		panic(fmt.Sprintf("invalid log level :%s", level))
	}
}

const (
	// ErrAttrKey is the attribute key under which errors are logged.
	ErrAttrKey = "error"
	// StacktraceAttrKey is the attribute key for extracted stack traces.
	StacktraceAttrKey = "stacktrace"
)

// ErrAttr wraps an error for slog.
func ErrAttr(err error) slog.Attr {
	return slog.Any(ErrAttrKey, err)
}

// stackTraceHandler decorates another slog handler: any record carrying an
// error attribute also gets a stacktrace attribute, taken from the stack
// that cockroachdb/errors captured when the error was built.
type stackTraceHandler struct {
	next slog.Handler
}

// WithStackTraces wraps handler so logged errors carry their stack traces.
func WithStackTraces(handler slog.Handler) slog.Handler {
	return &stackTraceHandler{next: handler}
}

func (h *stackTraceHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *stackTraceHandler) Handle(ctx context.Context, record slog.Record) error {
	if trace := stackTraceOf(record); trace != "" {
		record = record.Clone()
		record.AddAttrs(slog.String(StacktraceAttrKey, trace))
	}
	return h.next.Handle(ctx, record)
}

func (h *stackTraceHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &stackTraceHandler{next: h.next.WithAttrs(attrs)}
}

func (h *stackTraceHandler) WithGroup(name string) slog.Handler {
	return &stackTraceHandler{next: h.next.WithGroup(name)}
}

// stackTraceOf returns the stack trace attached to the record's error
// attribute, or "" when there is none to extract.
func stackTraceOf(record slog.Record) string {
	var trace string
	record.Attrs(func(attr slog.Attr) bool {
		if attr.Key != ErrAttrKey {
			return true
		}
		if err, ok := attr.Value.Any().(error); ok {
			if details := errors.GetSafeDetails(err).SafeDetails; len(details) > 0 {
				trace = details[0]
			}
		}
		return false
	})
	return trace
}
