// Package llm adapts language model providers to domain.LLMClient.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ncolesummers/web-research-agent/pkg/domain"
)

// OllamaClient implements domain.LLMClient against an Ollama server
type OllamaClient struct {
	baseURL    string
	model      string
	httpClient *http.Client
	options    OllamaOptions
}

// OllamaOptions holds request defaults used when ChatOptions leaves a field unset
type OllamaOptions struct {
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
	TopP        float64       `json:"top_p"`
	TopK        int           `json:"top_k"`
	Timeout     time.Duration `json:"timeout"`
}

// DefaultOllamaOptions returns the defaults used when none are supplied
func DefaultOllamaOptions() OllamaOptions {
	return OllamaOptions{
		Temperature: 0.3,
		MaxTokens:   2048,
		TopP:        0.9,
		Timeout:     2 * time.Minute,
	}
}

type chatRequest struct {
	Model    string         `json:"model"`
	Messages []chatMessage  `json:"messages"`
	Options  map[string]any `json:"options,omitempty"`
	Stream   bool           `json:"stream"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Message         chatMessage `json:"message"`
	Done            bool        `json:"done"`
	DoneReason      string      `json:"done_reason"`
	PromptEvalCount int         `json:"prompt_eval_count"`
	EvalCount       int         `json:"eval_count"`
}

// NewOllamaClient creates a new Ollama client
func NewOllamaClient(baseURL, model string, options *OllamaOptions) *OllamaClient {
	opts := DefaultOllamaOptions()
	if options != nil {
		opts = *options
	}

	return &OllamaClient{
		baseURL:    baseURL,
		model:      model,
		httpClient: &http.Client{Timeout: opts.Timeout},
		options:    opts,
	}
}

// Model returns the default model name
func (c *OllamaClient) Model() string {
	return c.model
}

// Chat performs a non-streaming chat completion
func (c *OllamaClient) Chat(ctx context.Context, messages []domain.Message, opts domain.ChatOptions) (*domain.ChatResponse, error) {
	model := c.model
	if opts.Model != "" {
		model = opts.Model
	}

	req := chatRequest{
		Model:    model,
		Messages: make([]chatMessage, len(messages)),
		Options:  c.buildOptions(opts),
	}
	for i, msg := range messages {
		req.Messages[i] = chatMessage{Role: msg.Role, Content: msg.Content}
	}

	var resp chatResponse
	if err := c.do(ctx, http.MethodPost, "/api/chat", req, &resp); err != nil {
		return nil, err
	}

	finish := resp.DoneReason
	if finish == "" {
		finish = "stop"
	}

	return &domain.ChatResponse{
		Content: resp.Message.Content,
		Usage: domain.TokenUsage{
			PromptTokens:     resp.PromptEvalCount,
			CompletionTokens: resp.EvalCount,
			TotalTokens:      resp.PromptEvalCount + resp.EvalCount,
		},
		FinishReason: finish,
	}, nil
}

// CheckHealth verifies the Ollama service is accessible
func (c *OllamaClient) CheckHealth(ctx context.Context) error {
	if err := c.do(ctx, http.MethodGet, "/api/tags", nil, nil); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	return nil
}

// ListModels returns the models installed on the server
func (c *OllamaClient) ListModels(ctx context.Context) ([]string, error) {
	var tags struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/tags", nil, &tags); err != nil {
		return nil, err
	}

	models := make([]string, len(tags.Models))
	for i, m := range tags.Models {
		models[i] = m.Name
	}
	return models, nil
}

// EnsureModel fails unless the configured model is installed. A model
// configured without a tag matches its ":latest" install.
func (c *OllamaClient) EnsureModel(ctx context.Context) error {
	models, err := c.ListModels(ctx)
	if err != nil {
		return fmt.Errorf("failed to list models: %w", err)
	}
	for _, m := range models {
		if m == c.model || (!strings.Contains(c.model, ":") && m == c.model+":latest") {
			return nil
		}
	}
	return fmt.Errorf("model %q is not installed (available: %s)", c.model, strings.Join(models, ", "))
}

func (c *OllamaClient) buildOptions(opts domain.ChatOptions) map[string]any {
	options := map[string]any{
		"temperature": c.options.Temperature,
		"num_predict": c.options.MaxTokens,
	}

	if opts.Temperature > 0 {
		options["temperature"] = opts.Temperature
	}
	if opts.MaxTokens > 0 {
		options["num_predict"] = opts.MaxTokens
	}

	switch {
	case opts.TopP > 0:
		options["top_p"] = opts.TopP
	case c.options.TopP > 0:
		options["top_p"] = c.options.TopP
	}

	switch {
	case opts.TopK > 0:
		options["top_k"] = opts.TopK
	case c.options.TopK > 0:
		options["top_k"] = c.options.TopK
	}

	if len(opts.Stop) > 0 {
		options["stop"] = opts.Stop
	}

	return options
}

// do sends a JSON request and decodes the JSON response into out when out is non-nil
func (c *OllamaClient) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if in != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("ollama returned status %d: %s", resp.StatusCode, string(msg))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
