package domain

import (
	"context"
)

// LLMClient defines the interface for language model interactions
type LLMClient interface {
	// Chat performs a chat completion
	Chat(ctx context.Context, messages []Message, opts ChatOptions) (*ChatResponse, error)
}

// SearchClient defines the interface for web search
type SearchClient interface {
	// Search performs a web search
	Search(ctx context.Context, query string, opts SearchOptions) ([]SearchResultItem, error)
}

// Page is the foreground browser surface used for sequential fetches
type Page interface {
	// Navigate loads url. Returns an error wrapping ErrPageSurfaceCrashed if the surface died.
	Navigate(ctx context.Context, url string) error

	// ExtractContent returns the visible text and the full markup of the loaded page
	ExtractContent(ctx context.Context) (*PageContent, error)

	// PageInfo returns the title and final url of the loaded page
	PageInfo(ctx context.Context) (*PageInfo, error)

	// ExecuteScript runs a script in the page and returns its string result
	ExecuteScript(ctx context.Context, script string) (string, error)
}

// TabHandle identifies a background tab
type TabHandle string

// TabPool opens isolated background tabs owned by a session
type TabPool interface {
	// CreateBackgroundTab opens a tab and starts loading url
	CreateBackgroundTab(ctx context.Context, sessionID, url string) (TabHandle, error)

	// TabState returns the current title and url of a tab
	TabState(ctx context.Context, tab TabHandle) (*PageInfo, error)

	// ExecuteScript runs a script in the tab and returns its string result
	ExecuteScript(ctx context.Context, tab TabHandle, script string) (string, error)

	// CloseTab closes a tab
	CloseTab(ctx context.Context, tab TabHandle) error
}

// ContentCache stores extracted page content by exact url
type ContentCache interface {
	// Get returns a fresh entry for url, or false if missing or expired
	Get(ctx context.Context, url string) (*ExtractedContent, bool)

	// Set stores content under its url
	Set(ctx context.Context, content *ExtractedContent) error
}

// Supporting types for interfaces

// ChatOptions provides options for chat completions
type ChatOptions struct {
	Model       string   `json:"model,omitempty"`
	Temperature float64  `json:"temperature,omitempty"`
	MaxTokens   int      `json:"max_tokens,omitempty"`
	TopP        float64  `json:"top_p,omitempty"`
	TopK        int      `json:"top_k,omitempty"`
	Stop        []string `json:"stop,omitempty"`
}

// ChatResponse represents a chat completion response
type ChatResponse struct {
	Content      string     `json:"content"`
	Usage        TokenUsage `json:"usage"`
	FinishReason string     `json:"finish_reason,omitempty"`
}

// TokenUsage tracks token consumption
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// SearchOptions provides options for web search
type SearchOptions struct {
	MaxResults int    `json:"max_results,omitempty"`
	Language   string `json:"language,omitempty"`
	Region     string `json:"region,omitempty"`
}

// PageContent is what the browser returns for a loaded page
type PageContent struct {
	Text string `json:"text"`
	HTML string `json:"html"`
}

// PageInfo describes the currently loaded document
type PageInfo struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}
