// Package logging provides slog helpers shared by every component: context
// carriage for request-scoped loggers, structured operation/error logging, and
// safe cleanup wrappers for deferred Close/Rollback calls.
package logging

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"os"
)

type contextKey string

const loggerKey contextKey = "logger"

// NewLogger creates the process-wide text logger. Verbose enables debug level.
func NewLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	return slog.New(handler)
}

// WithLogger returns a copy of ctx carrying the given logger.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// FromContext retrieves the logger stored in ctx, or the default logger when
// none was attached.
func FromContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(loggerKey).(*slog.Logger); ok {
		return logger
	}
	return slog.Default()
}

// LogOperation records a named operation at info level.
func LogOperation(logger *slog.Logger, operation string, attrs ...slog.Attr) {
	logger.LogAttrs(context.Background(), slog.LevelInfo, operation, attrs...)
}

// LogError records a message with its error at error level.
func LogError(logger *slog.Logger, message string, err error, attrs ...slog.Attr) {
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	logger.LogAttrs(context.Background(), slog.LevelError, message, attrs...)
}

// LogHTTPRequest records one served HTTP request with its outcome and latency.
func LogHTTPRequest(logger *slog.Logger, method, path string, statusCode int, durationMs float64, attrs ...slog.Attr) {
	base := []slog.Attr{
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", statusCode),
		slog.Float64("duration_ms", durationMs),
	}
	logger.LogAttrs(context.Background(), slog.LevelInfo, "http_request", append(base, attrs...)...)
}

// SafeCloseWithLogging closes c and logs a failure instead of dropping it.
// Intended for deferred cleanup of response bodies, rows and files.
func SafeCloseWithLogging(c io.Closer, logger *slog.Logger, resourceName string) {
	if c == nil {
		return
	}
	if err := c.Close(); err != nil {
		LogError(logger, "failed to close resource", err, slog.String("resource", resourceName))
	}
}

// SafeRollbackWithLogging rolls back tx, ignoring the no-op error after a
// successful commit and logging anything else.
func SafeRollbackWithLogging(tx *sql.Tx, logger *slog.Logger, operation string) {
	if tx == nil {
		return
	}
	if err := tx.Rollback(); err != nil && err != sql.ErrTxDone {
		LogError(logger, "failed to roll back transaction", err, slog.String("operation", operation))
	}
}
