package llm

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ncolesummers/web-research-agent/pkg/domain"
	"github.com/ncolesummers/web-research-agent/pkg/observability"
)

// InstrumentedLLMClient wraps an LLM client with observability
type InstrumentedLLMClient struct {
	client    domain.LLMClient
	telemetry *observability.Telemetry
	metrics   *observability.Metrics
	model     string
	provider  string
}

// NewInstrumentedLLMClient creates a new instrumented LLM client
func NewInstrumentedLLMClient(client domain.LLMClient, telemetry *observability.Telemetry, model string) (*InstrumentedLLMClient, error) {
	if client == nil {
		return nil, fmt.Errorf("client is required")
	}
	if telemetry == nil {
		return nil, fmt.Errorf("telemetry is required")
	}

	return &InstrumentedLLMClient{
		client:    client,
		telemetry: telemetry,
		metrics:   telemetry.Metrics(),
		model:     model,
		provider:  "ollama",
	}, nil
}

// Chat performs an instrumented chat completion
func (c *InstrumentedLLMClient) Chat(ctx context.Context, messages []domain.Message, opts domain.ChatOptions) (*domain.ChatResponse, error) {
	model := c.model
	if opts.Model != "" {
		model = opts.Model
	}

	ctx, span := c.telemetry.StartSpan(ctx, "llm.chat",
		trace.WithAttributes(
			attribute.String("llm.model", model),
			attribute.String("llm.provider", c.provider),
			attribute.Float64("llm.temperature", opts.Temperature),
			attribute.Int("llm.max_tokens", opts.MaxTokens),
			attribute.Int("llm.message_count", len(messages)),
		),
	)
	defer span.End()

	start := time.Now()
	response, err := c.client.Chat(ctx, messages, opts)
	duration := time.Since(start)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if c.metrics != nil {
			c.metrics.RecordLLMRequest(ctx, model, 0, 0, duration, false)
		}
		return nil, err
	}

	span.SetStatus(codes.Ok, "")
	span.SetAttributes(
		attribute.Int("llm.prompt_tokens", response.Usage.PromptTokens),
		attribute.Int("llm.completion_tokens", response.Usage.CompletionTokens),
		attribute.Int("llm.total_tokens", response.Usage.TotalTokens),
		attribute.String("llm.finish_reason", response.FinishReason),
	)

	if c.metrics != nil {
		c.metrics.RecordLLMRequest(ctx, model,
			int64(response.Usage.PromptTokens),
			int64(response.Usage.CompletionTokens),
			duration, true)
	}

	return response, nil
}
