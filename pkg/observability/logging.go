package observability

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// LogLevel represents the severity of a log message
type LogLevel string

const (
	LogLevelDebug LogLevel = "DEBUG"
	LogLevelInfo  LogLevel = "INFO"
	LogLevelWarn  LogLevel = "WARN"
	LogLevelError LogLevel = "ERROR"
)

var levelRank = map[LogLevel]int{
	LogLevelDebug: 0,
	LogLevelInfo:  1,
	LogLevelWarn:  2,
	LogLevelError: 3,
}

// ParseLogLevel maps "debug", "info", "warn" or "error" to a level; anything else is INFO
func ParseLogLevel(s string) LogLevel {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return LogLevelDebug
	case "WARN", "WARNING":
		return LogLevelWarn
	case "ERROR":
		return LogLevelError
	default:
		return LogLevelInfo
	}
}

var (
	logMu       sync.Mutex
	logOutput   io.Writer = os.Stderr
	logMinLevel           = LogLevelInfo
)

// SetLogOutput sets the output destination for loggers created afterwards
func SetLogOutput(w io.Writer) {
	logMu.Lock()
	defer logMu.Unlock()
	logOutput = w
}

// SetLogLevel sets the minimum level for loggers created afterwards
func SetLogLevel(level LogLevel) {
	logMu.Lock()
	defer logMu.Unlock()
	logMinLevel = level
}

// StructuredLogger writes one JSON object per line, correlated with the active trace
type StructuredLogger struct {
	mu        *sync.Mutex
	output    io.Writer
	component string
	minLevel  LogLevel
}

// NewStructuredLogger creates a new structured logger
func NewStructuredLogger(component string) *StructuredLogger {
	logMu.Lock()
	defer logMu.Unlock()
	return &StructuredLogger{
		mu:        &sync.Mutex{},
		output:    logOutput,
		component: component,
		minLevel:  logMinLevel,
	}
}

// LogEntry represents a structured log entry
type LogEntry struct {
	Timestamp  string         `json:"timestamp"`
	Severity   LogLevel       `json:"severity"`
	Component  string         `json:"component"`
	Message    string         `json:"message"`
	TraceID    string         `json:"trace_id,omitempty"`
	SpanID     string         `json:"span_id,omitempty"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

func extractTraceInfo(ctx context.Context) (traceID, spanID string) {
	spanCtx := trace.SpanFromContext(ctx).SpanContext()
	if spanCtx.IsValid() {
		traceID = spanCtx.TraceID().String()
		spanID = spanCtx.SpanID().String()
	}
	return traceID, spanID
}

func (l *StructuredLogger) log(ctx context.Context, level LogLevel, message string, attrs map[string]any) {
	if levelRank[level] < levelRank[l.minLevel] {
		return
	}
	traceID, spanID := extractTraceInfo(ctx)

	entry := LogEntry{
		Timestamp:  time.Now().UTC().Format(time.RFC3339Nano),
		Severity:   level,
		Component:  l.component,
		Message:    message,
		TraceID:    traceID,
		SpanID:     spanID,
		Attributes: attrs,
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	data, err := json.Marshal(entry)
	if err != nil {
		fmt.Fprintf(l.output, "[%s] %s: %s\n", level, l.component, message)
		return
	}
	fmt.Fprintln(l.output, string(data))
}

func firstAttrs(attrs []map[string]any) map[string]any {
	if len(attrs) > 0 {
		return attrs[0]
	}
	return nil
}

// Debug logs a debug message
func (l *StructuredLogger) Debug(ctx context.Context, message string, attrs ...map[string]any) {
	l.log(ctx, LogLevelDebug, message, firstAttrs(attrs))
}

// Info logs an info message
func (l *StructuredLogger) Info(ctx context.Context, message string, attrs ...map[string]any) {
	l.log(ctx, LogLevelInfo, message, firstAttrs(attrs))
}

// Warn logs a warning message
func (l *StructuredLogger) Warn(ctx context.Context, message string, attrs ...map[string]any) {
	l.log(ctx, LogLevelWarn, message, firstAttrs(attrs))
}

// Error logs an error message. The caller's attribute map is not modified.
func (l *StructuredLogger) Error(ctx context.Context, message string, err error, attrs ...map[string]any) {
	attributes := make(map[string]any)
	for k, v := range firstAttrs(attrs) {
		attributes[k] = v
	}
	if err != nil {
		attributes["error"] = err.Error()
	}
	l.log(ctx, LogLevelError, message, attributes)
}

// WithComponent creates a logger sharing this logger's output under a different component name
func (l *StructuredLogger) WithComponent(component string) *StructuredLogger {
	return &StructuredLogger{
		mu:        l.mu,
		output:    l.output,
		component: component,
		minLevel:  l.minLevel,
	}
}

// Logger interface for dependency injection
type Logger interface {
	Debug(ctx context.Context, message string, attrs ...map[string]any)
	Info(ctx context.Context, message string, attrs ...map[string]any)
	Warn(ctx context.Context, message string, attrs ...map[string]any)
	Error(ctx context.Context, message string, err error, attrs ...map[string]any)
}
