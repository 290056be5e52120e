// Package logging defines the structured-logging interface used across the
// service, backed by log/slog.
package logging

import "context"

// Logger is a context-aware, structured logger. Variadic args are key-value
// pairs, e.g.:
//
//	log.Warn(ctx, "scan budget exceeded", "table", table, "scanned", n)
type Logger interface {
	Debug(ctx context.Context, msg string, args ...any)
	Info(ctx context.Context, msg string, args ...any)
	Warn(ctx context.Context, msg string, args ...any)
	Error(ctx context.Context, msg string, args ...any)

	// With returns a child logger that always includes the given key-value pairs.
	With(args ...any) Logger
}

// NopLogger discards all output. Use in tests.
type NopLogger struct{}

func NewNopLogger() *NopLogger { return &NopLogger{} }

func (*NopLogger) Debug(context.Context, string, ...any) {}
func (*NopLogger) Info(context.Context, string, ...any)  {}
func (*NopLogger) Warn(context.Context, string, ...any)  {}
func (*NopLogger) Error(context.Context, string, ...any) {}
func (n *NopLogger) With(...any) Logger                  { return n }
