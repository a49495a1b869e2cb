package ops

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/deepclaw/nostr-analytics/internal/config"
)

// Logger is a structured logger wrapper around log/slog.
type Logger struct {
	*slog.Logger
	level  slog.Level
	format string
}

func levelFromString(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger creates a structured logger writing to stdout based on config.
func NewLogger(cfg *config.Logging) *Logger {
	return NewLoggerWithWriter(cfg, os.Stdout)
}

// NewLoggerWithWriter creates a logger with a custom writer (used in tests).
func NewLoggerWithWriter(cfg *config.Logging, w io.Writer) *Logger {
	level := levelFromString(cfg.Level)

	opts := &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				if t, ok := a.Value.Any().(time.Time); ok {
					a.Value = slog.StringValue(t.Format(time.RFC3339))
				}
			}
			return a
		},
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return &Logger{
		Logger: slog.New(handler),
		level:  level,
		format: cfg.Format,
	}
}

// WithComponent adds a component field to all log messages.
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{
		Logger: l.Logger.With("component", component),
		level:  l.level,
		format: l.format,
	}
}

// WithFields adds custom fields to the logger.
func (l *Logger) WithFields(fields ...any) *Logger {
	return &Logger{
		Logger: l.Logger.With(fields...),
		level:  l.level,
		format: l.format,
	}
}

// IsDebugEnabled reports whether debug logging is enabled.
func (l *Logger) IsDebugEnabled() bool {
	return l.level <= slog.LevelDebug
}

// LogRelayConnection logs a relay connection state transition (§4.8).
func (l *Logger) LogRelayConnection(relay string, state string, err error) {
	if err != nil {
		l.Warn("relay connection error", "relay", relay, "state", state, "error", err)
		return
	}
	l.Info("relay connection state change", "relay", relay, "state", state)
}

// LogEventRouted logs the outcome of routing a single candidate event (§4.3).
func (l *Logger) LogEventRouted(eventID string, tenantID int64, kind string, inserted bool) {
	l.Debug("event routed",
		"event_id", eventID,
		"tenant_id", tenantID,
		"kind", kind,
		"inserted", inserted)
}

// LogWebhookAttempt logs a single webhook delivery attempt (§4.4).
func (l *Logger) LogWebhookAttempt(tenantID int64, eventType string, attempt int, status string, code int, err error) {
	if err != nil {
		l.Warn("webhook delivery attempt failed",
			"tenant_id", tenantID, "event_type", eventType, "attempt", attempt, "status", status, "error", err)
		return
	}
	l.Info("webhook delivery attempt",
		"tenant_id", tenantID, "event_type", eventType, "attempt", attempt, "status", status, "http_code", code)
}

// LogAggregationRun logs a timing-aggregator pass (§4.5).
func (l *Logger) LogAggregationRun(tenantID int64, kind string, hours int, duration time.Duration, err error) {
	if err != nil {
		l.Error("aggregation run failed", "tenant_id", tenantID, "kind", kind, "error", err)
		return
	}
	l.Debug("aggregation run completed",
		"tenant_id", tenantID, "kind", kind, "hours_updated", hours, "duration_ms", duration.Milliseconds())
}

// LogScan logs a network-scanner pass (§4.6).
func (l *Logger) LogScan(tenantID int64, mode string, authors int, posts int, duration time.Duration, err error) {
	if err != nil {
		l.Warn("network scan failed", "tenant_id", tenantID, "mode", mode, "error", err)
		return
	}
	l.Info("network scan completed",
		"tenant_id", tenantID, "mode", mode, "authors", authors, "posts", posts, "duration_ms", duration.Milliseconds())
}

// LogCacheOperation logs an insight-cache read or write (§4.7).
func (l *Logger) LogCacheOperation(op string, key string, hit bool) {
	l.Debug("cache operation", "operation", op, "key", key, "hit", hit)
}

// LogStartup logs application startup information.
func (l *Logger) LogStartup(version string, fields map[string]interface{}) {
	l.Info("analytics service starting", "version", version, "config", fields)
}

// LogShutdown logs application shutdown.
func (l *Logger) LogShutdown(reason string) {
	l.Info("analytics service shutting down", "reason", reason)
}

// LogPanic logs a recovered panic with its stack trace.
func (l *Logger) LogPanic(recovered interface{}, stack string) {
	l.Error("panic recovered", "panic", fmt.Sprintf("%v", recovered), "stack", stack)
}

var defaultLogger *Logger

func init() {
	defaultLogger = NewLogger(&config.Logging{Level: "info", Format: "text"})
}

// Default returns the package-level default logger, used before a configured
// logger is available (e.g. while parsing flags and config).
func Default() *Logger {
	return defaultLogger
}

// SetDefault replaces the package-level default logger.
func SetDefault(l *Logger) {
	defaultLogger = l
}
