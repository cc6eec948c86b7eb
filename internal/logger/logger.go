// Package logger sets up structured logging and propagates a trace ID through
// context.Context so every log line of one scan run can be correlated.
//
// Init keeps the Init(service, level) shape of a log/slog setup: a JSON
// handler on stdout with the service name on every line, installed as the
// process default. It is built on zerolog rather than slog because the
// scanner hangs a component child logger off every package (Component), logs
// per symbol inside the worker pool where zerolog does not allocate, and the
// CLI needs the console writer for readable stderr output. Levels are taken as
// strings so they can come straight from config and flags.
package logger

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type ctxKey string

const traceIDKey ctxKey = "trace_id"

// Init installs the global logger for the given service and returns it.
// Unknown levels fall back to info. pretty switches to a human readable
// console writer on stderr.
func Init(service, level string, pretty bool) zerolog.Logger {
	var out io.Writer = os.Stdout
	if pretty {
		out = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	}
	l := New(out, service, level)
	log.Logger = l
	return l
}

// New builds a logger writing JSON to w with the service name embedded.
func New(w io.Writer, service, level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Str("service", service).Logger()
}

// Component returns the global logger tagged with a component name.
func Component(name string) zerolog.Logger {
	return log.With().Str("component", name).Logger()
}

// WithTraceID stores a trace ID in the context for downstream propagation.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey, traceID)
}

// TraceID extracts the trace ID from context. Returns "" if not set.
func TraceID(ctx context.Context) string {
	if v, ok := ctx.Value(traceIDKey).(string); ok {
		return v
	}
	return ""
}

// NewTraceID returns a fresh random trace ID.
func NewTraceID() string {
	return uuid.NewString()
}

// Ctx returns l enriched with the trace ID from ctx, if any. The result is a
// pointer so level methods can be chained on the call directly.
func Ctx(ctx context.Context, l zerolog.Logger) *zerolog.Logger {
	tid := TraceID(ctx)
	if tid != "" {
		l = l.With().Str("trace_id", tid).Logger()
	}
	return &l
}
