// Package logger provides structured logging infrastructure for the application.
// This is part of the platform layer and contains no business logic.
package logger

import (
	"context"
	"log/slog"
	"os"
	"strings"
)

// Context key types for storing values in context
type contextKey string

const (
	// RequestIDKey is the context key for request ID
	RequestIDKey contextKey = "request_id"
	// CorrelationIDKey is the context key for the correlation ID of the
	// webhook event or job that caused the current operation.
	CorrelationIDKey contextKey = "correlation_id"
)

// Logger wraps slog.Logger for structured logging
type Logger struct {
	*slog.Logger
}

// New creates a new logger based on environment
func New(env string) *Logger {
	var handler slog.Handler

	opts := &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}

	if strings.EqualFold(env, "development") {
		opts.Level = slog.LevelDebug
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return &Logger{
		Logger: slog.New(handler),
	}
}

// WithContext returns a logger with context values extracted.
// Supports request_id and correlation_id from context.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	if ctx == nil {
		return l
	}

	newLogger := l

	if requestID, ok := ctx.Value(RequestIDKey).(string); ok && requestID != "" {
		newLogger = newLogger.WithRequestID(requestID)
	}

	if correlationID, ok := ctx.Value(CorrelationIDKey).(string); ok && correlationID != "" {
		newLogger = newLogger.WithCorrelationID(correlationID)
	}

	return newLogger
}

// WithRequestID returns a logger with request ID
func (l *Logger) WithRequestID(requestID string) *Logger {
	return &Logger{
		Logger: l.With(slog.String("request_id", requestID)),
	}
}

// WithCorrelationID returns a logger with correlation ID
func (l *Logger) WithCorrelationID(correlationID string) *Logger {
	return &Logger{
		Logger: l.With(slog.String("correlation_id", correlationID)),
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

// SyncOutcome logs the terminal outcome of a sync attempt.
func (l *Logger) SyncOutcome(direction, entityType, entityID, status, reason string) {
	if status == "error" {
		l.Error("sync_outcome",
			slog.String("direction", direction),
			slog.String("entity_type", entityType),
			slog.String("entity_id", entityID),
			slog.String("status", status),
			slog.String("reason", reason),
		)
		return
	}
	l.Info("sync_outcome",
		slog.String("direction", direction),
		slog.String("entity_type", entityType),
		slog.String("entity_id", entityID),
		slog.String("status", status),
		slog.String("reason", reason),
	)
}

// WebhookAdmitted logs the admission decision for an inbound webhook.
func (l *Logger) WebhookAdmitted(source, eventType, entityID string, admitted bool) {
	l.Info("webhook_admission",
		slog.String("source", source),
		slog.String("event_type", eventType),
		slog.String("entity_id", entityID),
		slog.Bool("admitted", admitted),
	)
}

// DatabaseError logs database errors
func (l *Logger) DatabaseError(operation string, err error) {
	l.Error("database_error",
		slog.String("operation", operation),
		slog.String("error", err.Error()),
	)
}

// JobFailure logs a job handler failure together with its retry position.
func (l *Logger) JobFailure(taskType string, retried, maxRetry int, err error) {
	l.Warn("job_failure",
		slog.String("task_type", taskType),
		slog.Int("retried", retried),
		slog.Int("max_retry", maxRetry),
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
