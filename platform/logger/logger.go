// Package logger provides structured logging infrastructure for the application.
// This is part of the platform layer and contains no business logic.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

// Context key types for storing values in context
type contextKey string

const (
	// RequestIDKey is the context key for request ID
	RequestIDKey contextKey = "request_id"
	// TaskIDKey is the context key for the queue task being processed
	TaskIDKey contextKey = "task_id"
	// TraceIDKey is the context key for trace ID
	TraceIDKey contextKey = "trace_id"
)

// Logger wraps slog.Logger for structured logging
type Logger struct {
	*slog.Logger
}

// New creates a new logger based on environment
func New(env string) *Logger {
	return NewWithWriter(env, os.Stdout)
}

// NewWithWriter creates a logger that writes to w.
func NewWithWriter(env string, w io.Writer) *Logger {
	var handler slog.Handler

	opts := &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}

	if strings.EqualFold(env, "development") {
		opts.Level = slog.LevelDebug
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}

	return &Logger{
		Logger: slog.New(handler),
	}
}

// Discard returns a logger that drops everything. Used in tests.
func Discard() *Logger {
	return &Logger{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

// WithContext returns a logger with context values extracted.
// Supports request_id, task_id, and trace_id from context.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	if ctx == nil {
		return l
	}

	newLogger := l

	if requestID, ok := ctx.Value(RequestIDKey).(string); ok && requestID != "" {
		newLogger = newLogger.WithRequestID(requestID)
	}

	if taskID, ok := ctx.Value(TaskIDKey).(string); ok && taskID != "" {
		newLogger = &Logger{
			Logger: newLogger.With(slog.String("task_id", taskID)),
		}
	}

	if traceID, ok := ctx.Value(TraceIDKey).(string); ok && traceID != "" {
		newLogger = &Logger{
			Logger: newLogger.With(slog.String("trace_id", traceID)),
		}
	}

	return newLogger
}

// WithRequestID returns a logger with request ID
func (l *Logger) WithRequestID(requestID string) *Logger {
	return &Logger{
		Logger: l.With(slog.String("request_id", requestID)),
	}
}

// HTTPRequest logs an HTTP request
func (l *Logger) HTTPRequest(method, path string, status int, latencyMs float64, clientIP string) {
	l.Info("http_request",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", status),
		slog.Float64("latency_ms", latencyMs),
		slog.String("client_ip", clientIP),
	)
}

// HTTPError logs an HTTP error
func (l *Logger) HTTPError(method, path string, status int, err error, clientIP string) {
	l.Error("http_error",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", status),
		slog.String("error", err.Error()),
		slog.String("client_ip", clientIP),
	)
}

// UpstreamCall logs a call to an upstream service such as the agent directory.
func (l *Logger) UpstreamCall(service, method, url string, status int, latency time.Duration, err error) {
	attrs := []any{
		slog.String("service", service),
		slog.String("method", method),
		slog.String("url", url),
		slog.Int("status", status),
		slog.Float64("latency_ms", float64(latency.Microseconds())/1000.0),
	}
	if err != nil {
		l.Warn("upstream_call", append(attrs, slog.String("error", err.Error()))...)
		return
	}
	l.Debug("upstream_call", attrs...)
}

// IndexOutcome logs the result of applying a change event to the search index.
func (l *Logger) IndexOutcome(entityType, entityID, op string, version int64, outcome string) {
	l.Info("index_outcome",
		slog.String("entity_type", entityType),
		slog.String("entity_id", entityID),
		slog.String("op", op),
		slog.Int64("version", version),
		slog.String("outcome", outcome),
	)
}

// DeadLettered logs an event that was moved to the dead-letter store.
func (l *Logger) DeadLettered(entityType, entityID string, attempts int, reason string) {
	l.Error("dead_lettered",
		slog.String("entity_type", entityType),
		slog.String("entity_id", entityID),
		slog.Int("attempts", attempts),
		slog.String("reason", reason),
	)
}

// DatabaseError logs database errors
func (l *Logger) DatabaseError(operation string, err error) {
	l.Error("database_error",
		slog.String("operation", operation),
		slog.String("error", err.Error()),
	)
}

// RateLimitExceeded logs rate limit events
func (l *Logger) RateLimitExceeded(clientIP, path string) {
	l.Warn("rate_limit_exceeded",
		slog.String("client_ip", clientIP),
		slog.String("path", path),
	)
}

// QueueError logs a queue task that failed and may be retried.
func (l *Logger) QueueError(taskType string, retried, maxRetry int, err error) {
	l.Warn("queue_error",
		slog.String("task_type", taskType),
		slog.Int("retried", retried),
		slog.Int("max_retry", maxRetry),
		slog.String("error", err.Error()),
	)
}
