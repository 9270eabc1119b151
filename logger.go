package covertree

import (
	"context"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with covertree-specific context.
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
func NoopLogger() *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.Level(1000), // Unreachable level
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// LogInsert logs an insert operation.
func (l *Logger) LogInsert(ctx context.Context, index uint32, err error) {
	if err != nil {
		l.ErrorContext(ctx, "insert failed",
			"point", index,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "insert completed",
			"point", index,
		)
	}
}

// LogBatchInsert logs a batch insert operation.
func (l *Logger) LogBatchInsert(ctx context.Context, count, failed int) {
	if failed > 0 {
		l.WarnContext(ctx, "batch insert completed with failures",
			"total", count,
			"failed", failed,
			"success", count-failed,
		)
	} else {
		l.InfoContext(ctx, "batch insert completed",
			"count", count,
		)
	}
}

// LogSearch logs a query operation.
func (l *Logger) LogSearch(ctx context.Context, kind string, results int) {
	l.DebugContext(ctx, "search completed",
		"kind", kind,
		"results", results,
	)
}

// LogRootGrowth logs a root expansion.
func (l *Logger) LogRootGrowth(ctx context.Context, fromScale, toScale int32) {
	l.InfoContext(ctx, "root expanded",
		"from_scale", fromScale,
		"to_scale", toScale,
	)
}

// LogRebalance logs a bucket overflow rebalance.
func (l *Logger) LogRebalance(ctx context.Context, scale int32, center uint32, children int) {
	l.DebugContext(ctx, "bucket rebalanced",
		"scale", scale,
		"center", center,
		"children", children,
	)
}

// LogSnapshotSave logs a persisted snapshot.
func (l *Logger) LogSnapshotSave(ctx context.Context, name string, size int) {
	l.InfoContext(ctx, "snapshot saved",
		"name", name,
		"bytes", size,
	)
}

// LogSnapshotLoad logs a restored snapshot.
func (l *Logger) LogSnapshotLoad(ctx context.Context, name string, count uint64) {
	l.InfoContext(ctx, "snapshot loaded",
		"name", name,
		"points", count,
	)
}
