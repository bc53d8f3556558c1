package observability

import (
	"context"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Page fetch outcomes recorded by RecordPageFetch
const (
	FetchOutcomeFetched  = "fetched"
	FetchOutcomeCacheHit = "cache_hit"
	FetchOutcomeDropped  = "dropped"
	FetchOutcomeCrashed  = "crashed"
)

// Metrics holds the research pipeline instruments
type Metrics struct {
	researchRequestsTotal metric.Int64Counter
	searchesTotal         metric.Int64Counter
	pagesFetchedTotal     metric.Int64Counter
	factsExtractedTotal   metric.Int64Counter
	factsRejectedTotal    metric.Int64Counter
	llmRequestsTotal      metric.Int64Counter
	llmTokensUsedTotal    metric.Int64Counter

	researchDuration   metric.Float64Histogram
	phaseDuration      metric.Float64Histogram
	pageFetchDuration  metric.Float64Histogram
	llmRequestDuration metric.Float64Histogram

	activeResearchRequests metric.Int64ObservableGauge
	activeResearchCount    atomic.Int64
}

// NewMetrics creates and registers all instruments on meter
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}

	counters := []struct {
		dst  *metric.Int64Counter
		name string
		desc string
	}{
		{&m.researchRequestsTotal, "research_requests_total", "Total number of research runs started"},
		{&m.searchesTotal, "research_searches_total", "Total number of web searches issued"},
		{&m.pagesFetchedTotal, "research_pages_total", "Page fetches by outcome"},
		{&m.factsExtractedTotal, "research_facts_extracted_total", "Facts accepted by validation"},
		{&m.factsRejectedTotal, "research_facts_rejected_total", "Facts rejected by validation, by rule"},
		{&m.llmRequestsTotal, "llm_requests_total", "Total number of LLM requests"},
		{&m.llmTokensUsedTotal, "llm_tokens_used_total", "Total number of LLM tokens used"},
	}
	for _, c := range counters {
		inst, err := meter.Int64Counter(c.name, metric.WithDescription(c.desc), metric.WithUnit("1"))
		if err != nil {
			return nil, err
		}
		*c.dst = inst
	}

	histograms := []struct {
		dst  *metric.Float64Histogram
		name string
		desc string
	}{
		{&m.researchDuration, "research_duration_seconds", "Duration of research runs in seconds"},
		{&m.phaseDuration, "research_phase_duration_seconds", "Duration of pipeline phases in seconds"},
		{&m.pageFetchDuration, "research_page_fetch_duration_seconds", "Duration of page fetches in seconds"},
		{&m.llmRequestDuration, "llm_request_duration_seconds", "Duration of LLM requests in seconds"},
	}
	for _, h := range histograms {
		inst, err := meter.Float64Histogram(h.name, metric.WithDescription(h.desc), metric.WithUnit("s"))
		if err != nil {
			return nil, err
		}
		*h.dst = inst
	}

	var err error
	m.activeResearchRequests, err = meter.Int64ObservableGauge(
		"active_research_requests",
		metric.WithDescription("Number of research runs in progress"),
		metric.WithUnit("1"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			o.Observe(m.activeResearchCount.Load())
			return nil
		}),
	)
	if err != nil {
		return nil, err
	}

	return m, nil
}

// RecordResearchRequest records the start of a research run
func (m *Metrics) RecordResearchRequest(ctx context.Context) {
	m.researchRequestsTotal.Add(ctx, 1)
	m.activeResearchCount.Add(1)
}

// RecordResearchComplete records the end of a research run
func (m *Metrics) RecordResearchComplete(ctx context.Context, duration time.Duration, status string) {
	m.researchDuration.Record(ctx, duration.Seconds(),
		metric.WithAttributes(attribute.String("status", status)),
	)
	m.activeResearchCount.Add(-1)
}

// RecordPhase records the duration of one pipeline phase
func (m *Metrics) RecordPhase(ctx context.Context, phase string, duration time.Duration, items int) {
	m.phaseDuration.Record(ctx, duration.Seconds(),
		metric.WithAttributes(
			attribute.String("phase", phase),
			attribute.Bool("empty", items == 0),
		),
	)
}

// RecordSearch records one web search
func (m *Metrics) RecordSearch(ctx context.Context, success bool) {
	status := "success"
	if !success {
		status = "failure"
	}
	m.searchesTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
}

// RecordPageFetch records one page fetch and its outcome
func (m *Metrics) RecordPageFetch(ctx context.Context, outcome string, duration time.Duration) {
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	m.pagesFetchedTotal.Add(ctx, 1, attrs)
	m.pageFetchDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordFacts records validation results for one page
func (m *Metrics) RecordFacts(ctx context.Context, accepted int, rejectedByRule map[string]int) {
	if accepted > 0 {
		m.factsExtractedTotal.Add(ctx, int64(accepted))
	}
	for rule, n := range rejectedByRule {
		m.factsRejectedTotal.Add(ctx, int64(n), metric.WithAttributes(attribute.String("rule", rule)))
	}
}

// RecordLLMRequest records an LLM request
func (m *Metrics) RecordLLMRequest(ctx context.Context, model string, promptTokens, completionTokens int64, duration time.Duration, success bool) {
	status := "success"
	if !success {
		status = "failure"
	}

	m.llmRequestsTotal.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("model", model),
			attribute.String("status", status),
		),
	)

	if success {
		m.llmTokensUsedTotal.Add(ctx, promptTokens,
			metric.WithAttributes(attribute.String("model", model), attribute.String("type", "prompt")),
		)
		m.llmTokensUsedTotal.Add(ctx, completionTokens,
			metric.WithAttributes(attribute.String("model", model), attribute.String("type", "completion")),
		)
	}

	m.llmRequestDuration.Record(ctx, duration.Seconds(),
		metric.WithAttributes(attribute.String("model", model)),
	)
}

// ActiveResearchCount returns the number of research runs in progress
func (m *Metrics) ActiveResearchCount() int64 {
	return m.activeResearchCount.Load()
}
