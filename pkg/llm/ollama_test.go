package llm_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ncolesummers/web-research-agent/pkg/domain"
	"github.com/ncolesummers/web-research-agent/pkg/llm"
)

func TestNewOllamaClient(t *testing.T) {
	client := llm.NewOllamaClient("http://localhost:11434", "llama3.1", nil)
	require.NotNil(t, client)
	assert.Equal(t, "llama3.1", client.Model())

	opts := &llm.OllamaOptions{Temperature: 0.8, MaxTokens: 1500, TopP: 0.95, TopK: 50}
	assert.NotNil(t, llm.NewOllamaClient("http://localhost:11434", "llama3.1", opts))
}

func TestOllamaClient_Chat(t *testing.T) {
	var captured map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&captured))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"message":           map[string]any{"role": "assistant", "content": "Test response"},
			"done":              true,
			"eval_count":        50,
			"prompt_eval_count": 30,
		})
	}))
	defer server.Close()

	client := llm.NewOllamaClient(server.URL, "test-model", nil)
	resp, err := client.Chat(context.Background(), []domain.Message{
		{Role: "system", Content: "be brief"},
		{Role: "user", Content: "Test message"},
	}, domain.ChatOptions{Temperature: 0.1, MaxTokens: 500, Stop: []string{"\n\n"}})
	require.NoError(t, err)

	assert.Equal(t, "Test response", resp.Content)
	assert.Equal(t, 30, resp.Usage.PromptTokens)
	assert.Equal(t, 50, resp.Usage.CompletionTokens)
	assert.Equal(t, 80, resp.Usage.TotalTokens)
	assert.Equal(t, "stop", resp.FinishReason)

	assert.Equal(t, "test-model", captured["model"])
	assert.Equal(t, false, captured["stream"])
	assert.Len(t, captured["messages"], 2)

	options, ok := captured["options"].(map[string]any)
	require.True(t, ok)
	assert.InDelta(t, 0.1, options["temperature"], 1e-9)
	assert.EqualValues(t, 500, options["num_predict"])
	assert.InDelta(t, 0.9, options["top_p"], 1e-9)
	assert.Equal(t, []any{"\n\n"}, options["stop"])
}

func TestOllamaClient_Chat_ModelOverride(t *testing.T) {
	var model string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Model string `json:"model"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		model = req.Model
		_ = json.NewEncoder(w).Encode(map[string]any{
			"message":     map[string]any{"role": "assistant", "content": "ok"},
			"done":        true,
			"done_reason": "length",
		})
	}))
	defer server.Close()

	client := llm.NewOllamaClient(server.URL, "default-model", nil)
	resp, err := client.Chat(context.Background(), []domain.Message{{Role: "user", Content: "hi"}},
		domain.ChatOptions{Model: "qwen2.5"})
	require.NoError(t, err)

	assert.Equal(t, "qwen2.5", model)
	assert.Equal(t, "length", resp.FinishReason)
}

func TestOllamaClient_Chat_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"model not loaded"}`))
	}))
	defer server.Close()

	client := llm.NewOllamaClient(server.URL, "test-model", nil)
	_, err := client.Chat(context.Background(), []domain.Message{{Role: "user", Content: "hi"}}, domain.ChatOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")
	assert.Contains(t, err.Error(), "model not loaded")
}

func TestOllamaClient_Chat_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	client := llm.NewOllamaClient(server.URL, "test-model", nil)
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := client.Chat(ctx, []domain.Message{{Role: "user", Content: "hi"}}, domain.ChatOptions{})
	assert.Error(t, err)
}

func TestOllamaClient_HealthAndModels(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/tags", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"models": []map[string]any{{"name": "llama3.1:8b"}, {"name": "qwen2.5:7b"}},
		})
	}))
	defer server.Close()

	client := llm.NewOllamaClient(server.URL, "llama3.1:8b", nil)
	require.NoError(t, client.CheckHealth(context.Background()))

	models, err := client.ListModels(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"llama3.1:8b", "qwen2.5:7b"}, models)
}

func TestOllamaClient_EnsureModel(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"models": []map[string]any{{"name": "llama3.1:8b"}, {"name": "mistral:latest"}},
		})
	}))
	defer server.Close()

	tests := []struct {
		model   string
		wantErr bool
	}{
		{"llama3.1:8b", false},
		{"mistral", false},
		{"llama3.1", true},
		{"qwen2.5:7b", true},
	}
	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			err := llm.NewOllamaClient(server.URL, tt.model, nil).EnsureModel(context.Background())
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "is not installed")
				assert.Contains(t, err.Error(), "llama3.1:8b")
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestOllamaClient_HealthFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := llm.NewOllamaClient(server.URL, "m", nil)
	err := client.CheckHealth(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "health check failed")
}
