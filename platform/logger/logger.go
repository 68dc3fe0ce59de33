// Package logger provides structured logging infrastructure for the
// application. This is part of the platform layer and contains no
// business logic.
package logger

import (
	"context"
	"log/slog"
	"os"
	"strings"
)

type contextKey string

const (
	// RequestIDKey is the context key for the request ID.
	RequestIDKey contextKey = "request_id"
	// UserIDKey is the context key for the authenticated staff user ID.
	UserIDKey contextKey = "user_id"
	// LeadIDKey is the context key for the lead a portal request acts on.
	LeadIDKey contextKey = "lead_id"
)

// Logger wraps slog.Logger for structured logging.
type Logger struct {
	*slog.Logger
}

// New creates a logger for the given environment. Development gets a
// human-readable text handler at debug level; everything else logs JSON.
func New(env string) *Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}

	var handler slog.Handler
	if strings.EqualFold(env, "development") {
		opts.Level = slog.LevelDebug
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return &Logger{Logger: slog.New(handler)}
}

// WithContext returns a logger annotated with request/user/lead IDs
// found in the context.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	if ctx == nil {
		return l
	}

	out := l
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok && requestID != "" {
		out = &Logger{Logger: out.With(slog.String("request_id", requestID))}
	}
	if userID, ok := ctx.Value(UserIDKey).(string); ok && userID != "" {
		out = &Logger{Logger: out.With(slog.String("user_id", userID))}
	}
	if leadID, ok := ctx.Value(LeadIDKey).(string); ok && leadID != "" {
		out = &Logger{Logger: out.With(slog.String("lead_id", leadID))}
	}
	return out
}

// HTTPRequest logs a completed HTTP request.
func (l *Logger) HTTPRequest(method, path string, status int, latencyMs float64, clientIP string) {
	l.Info("http_request",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", status),
		slog.Float64("latency_ms", latencyMs),
		slog.String("client_ip", clientIP),
	)
}

// DatabaseError logs a database failure.
func (l *Logger) DatabaseError(operation string, err error) {
	l.Error("database_error",
		slog.String("operation", operation),
		slog.String("error", err.Error()),
	)
}

// PortalEvent logs patient portal activity. The lead is identified by
// case ID only; the portal token itself is never logged.
func (l *Logger) PortalEvent(event, caseID string, success bool) {
	if success {
		l.Info("portal_event",
			slog.String("event", event),
			slog.String("case_id", caseID),
		)
		return
	}
	l.Warn("portal_event",
		slog.String("event", event),
		slog.String("case_id", caseID),
		slog.Bool("success", false),
	)
}

// AuthEvent logs staff authentication events.
func (l *Logger) AuthEvent(event, email string, success bool, reason string) {
	if success {
		l.Info("auth_event",
			slog.String("event", event),
			slog.String("email", email),
			slog.Bool("success", true),
		)
		return
	}
	l.Warn("auth_event",
		slog.String("event", event),
		slog.String("email", email),
		slog.Bool("success", false),
		slog.String("reason", reason),
	)
}

// RateLimitExceeded logs rate limit rejections.
func (l *Logger) RateLimitExceeded(clientIP, path string) {
	l.Warn("rate_limit_exceeded",
		slog.String("client_ip", clientIP),
		slog.String("path", path),
	)
}
