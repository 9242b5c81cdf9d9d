package strata

import (
	"context"
	"log/slog"
	"os"

	"github.com/hupe1980/strata/core"
)

// Logger wraps slog.Logger with strata-specific context.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
// level sets the minimum log level (e.g., slog.LevelDebug, slog.LevelInfo).
func NewJSONLogger(level slog.Level) *Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NoopLogger creates a Logger that discards all log output.
// Use this to disable logging entirely.
func NoopLogger() *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.Level(1000), // Unreachable level
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// WithBase adds a base id field to the logger.
func (l *Logger) WithBase(id core.ID) *Logger {
	return &Logger{
		Logger: l.Logger.With("base", int64(id)),
	}
}

// WithCtx adds a namespace field to the logger.
func (l *Logger) WithCtx(c core.Ctx) *Logger {
	return &Logger{
		Logger: l.Logger.With("ctx", int(c)),
	}
}

// LogWrite logs a mutating operation.
func (l *Logger) LogWrite(ctx context.Context, op string, base core.ID, err error) {
	if err != nil {
		l.ErrorContext(ctx, "write failed",
			"op", op,
			"base", int64(base),
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "write completed",
			"op", op,
			"base", int64(base),
		)
	}
}

// LogLookup logs an alias lookup or search operation.
func (l *Logger) LogLookup(ctx context.Context, op string, hits int) {
	l.DebugContext(ctx, "lookup completed",
		"op", op,
		"hits", hits,
	)
}

// LogSnapshot logs a snapshot operation.
func (l *Logger) LogSnapshot(ctx context.Context, name string, err error) {
	if err != nil {
		l.ErrorContext(ctx, "snapshot failed",
			"name", name,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "snapshot saved",
			"name", name,
		)
	}
}

// LogRecovery logs a journal recovery operation.
func (l *Logger) LogRecovery(ctx context.Context, replayed int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "journal recovery failed",
			"records_replayed", replayed,
			"error", err,
		)
	} else {
		l.InfoContext(ctx, "journal recovery completed",
			"records_replayed", replayed,
		)
	}
}

// LogCheckpoint logs a journal checkpoint.
func (l *Logger) LogCheckpoint(ctx context.Context, err error) {
	if err != nil {
		l.ErrorContext(ctx, "checkpoint failed", "error", err)
	} else {
		l.InfoContext(ctx, "checkpoint completed")
	}
}
