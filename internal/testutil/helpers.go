package testutil

import (
	"context"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/ncolesummers/web-research-agent/pkg/domain"
	"github.com/ncolesummers/web-research-agent/pkg/observability"
)

// TestTimeout provides a standard timeout for test contexts
const TestTimeout = 5 * time.Second

// NewTestContext creates a context with standard test timeout
func NewTestContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), TestTimeout)
	t.Cleanup(cancel)
	return ctx
}

// SetupTestTelemetry creates telemetry backed by a span recorder and a metric reader
func SetupTestTelemetry(t *testing.T, spanRecorder *tracetest.SpanRecorder, metricReader metric.Reader) *observability.Telemetry {
	t.Helper()

	tracerProvider := trace.NewTracerProvider(trace.WithSpanProcessor(spanRecorder))
	meterProvider := metric.NewMeterProvider(metric.WithReader(metricReader))
	t.Cleanup(func() {
		_ = tracerProvider.Shutdown(context.Background())
		_ = meterProvider.Shutdown(context.Background())
	})

	telemetry, err := observability.NewTelemetryWithProviders(&observability.TelemetryConfig{
		ServiceName:    "test-service",
		ServiceVersion: "test",
		Environment:    "test",
		SamplingRate:   1.0,
	}, tracerProvider, meterProvider)
	if err != nil {
		t.Fatalf("failed to create test telemetry: %v", err)
	}
	return telemetry
}

// NewDiscardLogger returns a logger that writes nowhere
func NewDiscardLogger() observability.Logger {
	observability.SetLogOutput(io.Discard)
	return observability.NewStructuredLogger("test")
}

// NewTestContent builds valid extracted content for url
func NewTestContent(url, title, text string) *domain.ExtractedContent {
	return &domain.ExtractedContent{
		URL:       url,
		Title:     title,
		Domain:    hostOf(url),
		MainText:  text,
		WordCount: len(strings.Fields(text)),
		FetchedAt: time.Now(),
	}
}

func hostOf(url string) string {
	host := url
	if i := strings.Index(host, "://"); i >= 0 {
		host = host[i+3:]
	}
	if i := strings.IndexAny(host, "/?#"); i >= 0 {
		host = host[:i]
	}
	return strings.TrimPrefix(host, "www.")
}

// FakeClock is a manually advanced time source
type FakeClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewFakeClock creates a clock stopped at start
func NewFakeClock(start time.Time) *FakeClock {
	return &FakeClock{now: start}
}

// Now returns the current fake time
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
