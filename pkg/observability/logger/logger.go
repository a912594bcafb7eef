// Package logger provides the structured logger used by adapters, decorators and the CLI.
package logger

import (
	"context"
)

// Logger defines the structured logging contract.
// Log methods take a message followed by key-value pairs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)

	// With returns a child logger that adds args to every entry.
	With(args ...any) Logger

	// WithContext returns a child logger carrying the trace and span IDs found in ctx.
	WithContext(ctx context.Context) Logger
}
