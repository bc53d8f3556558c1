package observability

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// InstrumentWorkflowNode runs one pipeline phase inside a span named
// workflow.node.<phase> and records its duration. fn returns the number of
// items the phase processed.
func (t *Telemetry) InstrumentWorkflowNode(ctx context.Context, phase string, fn func(context.Context) (int, error)) (int, time.Duration, error) {
	ctx, span := t.StartSpan(ctx, fmt.Sprintf("workflow.node.%s", phase),
		trace.WithAttributes(attribute.String("phase", phase)),
	)
	defer span.End()

	startTime := time.Now()
	items, err := fn(ctx)
	duration := time.Since(startTime)

	status := "success"
	if err != nil {
		status = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}

	span.SetAttributes(
		attribute.String("status", status),
		attribute.Int("items.processed", items),
		attribute.Float64("duration.seconds", duration.Seconds()),
	)
	t.metrics.RecordPhase(ctx, phase, duration, items)

	return items, duration, err
}

// InstrumentPageFetch wraps a single page fetch in a page.fetch span
func (t *Telemetry) InstrumentPageFetch(ctx context.Context, url string, fn func(context.Context) (outcome string, err error)) error {
	ctx, span := t.StartSpan(ctx, "page.fetch",
		trace.WithAttributes(attribute.String("page.url", url)),
	)
	defer span.End()

	startTime := time.Now()
	outcome, err := fn(ctx)
	duration := time.Since(startTime)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.SetAttributes(attribute.String("page.outcome", outcome))
	t.metrics.RecordPageFetch(ctx, outcome, duration)

	return err
}

// StartResearchRequest starts the root span of a research run
func (t *Telemetry) StartResearchRequest(ctx context.Context, requestID, query string) (context.Context, trace.Span) {
	return t.StartSpan(ctx, "research.request",
		trace.WithAttributes(
			attribute.String("request.id", requestID),
			attribute.Int("query.length", len(query)),
			attribute.Int("query.words", len(strings.Fields(query))),
		),
	)
}
