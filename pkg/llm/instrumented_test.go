package llm_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/ncolesummers/web-research-agent/internal/testutil"
	"github.com/ncolesummers/web-research-agent/pkg/domain"
	"github.com/ncolesummers/web-research-agent/pkg/llm"
)

func spanAttr(attrs []attribute.KeyValue, key string) (attribute.Value, bool) {
	for _, kv := range attrs {
		if string(kv.Key) == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestInstrumentedLLMClient_Chat(t *testing.T) {
	spans := tracetest.NewSpanRecorder()
	telemetry := testutil.SetupTestTelemetry(t, spans, sdkmetric.NewManualReader())

	mock := testutil.NewMockLLMClient()
	mock.ChatFunc = func(context.Context, []domain.Message, domain.ChatOptions) (*domain.ChatResponse, error) {
		return &domain.ChatResponse{
			Content:      "ok",
			Usage:        domain.TokenUsage{PromptTokens: 12, CompletionTokens: 3, TotalTokens: 15},
			FinishReason: "stop",
		}, nil
	}

	client, err := llm.NewInstrumentedLLMClient(mock, telemetry, "llama3.1")
	require.NoError(t, err)

	resp, err := client.Chat(context.Background(), []domain.Message{{Role: "user", Content: "hi"}},
		domain.ChatOptions{Temperature: 0.1, MaxTokens: 100})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Content)

	ended := spans.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, "llm.chat", ended[0].Name())
	assert.Equal(t, codes.Ok, ended[0].Status().Code)

	model, ok := spanAttr(ended[0].Attributes(), "llm.model")
	require.True(t, ok)
	assert.Equal(t, "llama3.1", model.AsString())
	total, ok := spanAttr(ended[0].Attributes(), "llm.total_tokens")
	require.True(t, ok)
	assert.Equal(t, int64(15), total.AsInt64())
}

func TestInstrumentedLLMClient_ChatError(t *testing.T) {
	spans := tracetest.NewSpanRecorder()
	telemetry := testutil.SetupTestTelemetry(t, spans, sdkmetric.NewManualReader())

	mock := testutil.NewMockLLMClient()
	mock.ChatFunc = func(context.Context, []domain.Message, domain.ChatOptions) (*domain.ChatResponse, error) {
		return nil, errors.New("connection refused")
	}

	client, err := llm.NewInstrumentedLLMClient(mock, telemetry, "llama3.1")
	require.NoError(t, err)

	_, err = client.Chat(context.Background(), []domain.Message{{Role: "user", Content: "hi"}},
		domain.ChatOptions{Model: "qwen2.5"})
	require.Error(t, err)

	ended := spans.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, codes.Error, ended[0].Status().Code)
	model, ok := spanAttr(ended[0].Attributes(), "llm.model")
	require.True(t, ok)
	assert.Equal(t, "qwen2.5", model.AsString())
}

func TestNewInstrumentedLLMClient_Validation(t *testing.T) {
	telemetry := testutil.SetupTestTelemetry(t, tracetest.NewSpanRecorder(), sdkmetric.NewManualReader())

	_, err := llm.NewInstrumentedLLMClient(nil, telemetry, "m")
	assert.Error(t, err)

	_, err = llm.NewInstrumentedLLMClient(testutil.NewMockLLMClient(), nil, "m")
	assert.Error(t, err)
}
