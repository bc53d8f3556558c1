package testutil

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ncolesummers/web-research-agent/pkg/domain"
)

// MockLLMClient is a mock implementation of LLMClient for testing
type MockLLMClient struct {
	mu sync.Mutex
	// Queue holds responses returned in order before Responses is consulted
	Queue []string
	// Responses maps a substring of the last message to a response; the longest matching key wins
	Responses    map[string]string
	CallCount    int
	LastMessages []domain.Message
	LastOptions  domain.ChatOptions
	Temperatures []float64
	ShouldError  bool
	ErrorMessage string
	// ChatFunc allows custom chat behavior for tests
	ChatFunc func(ctx context.Context, messages []domain.Message, options domain.ChatOptions) (*domain.ChatResponse, error)
}

// NewMockLLMClient creates a new mock LLM client
func NewMockLLMClient() *MockLLMClient {
	return &MockLLMClient{
		Responses: make(map[string]string),
	}
}

// Chat implements domain.LLMClient
func (m *MockLLMClient) Chat(ctx context.Context, messages []domain.Message, options domain.ChatOptions) (*domain.ChatResponse, error) {
	m.mu.Lock()
	m.CallCount++
	m.LastMessages = messages
	m.LastOptions = options
	m.Temperatures = append(m.Temperatures, options.Temperature)
	chatFunc := m.ChatFunc
	m.mu.Unlock()

	// ChatFunc runs unlocked so concurrent callers are not serialized
	if chatFunc != nil {
		return chatFunc(ctx, messages, options)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ShouldError {
		return nil, fmt.Errorf("%s", m.ErrorMessage)
	}

	content := "Mock response"
	if len(m.Queue) > 0 {
		content = m.Queue[0]
		m.Queue = m.Queue[1:]
	} else if len(messages) > 0 {
		if resp, ok := m.match(messages[len(messages)-1].Content); ok {
			content = resp
		}
	}

	return &domain.ChatResponse{
		Content: content,
		Usage: domain.TokenUsage{
			PromptTokens:     50,
			CompletionTokens: 50,
			TotalTokens:      100,
		},
		FinishReason: "stop",
	}, nil
}

func (m *MockLLMClient) match(prompt string) (string, bool) {
	keys := make([]string, 0, len(m.Responses))
	for k := range m.Responses {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})
	for _, k := range keys {
		if k != "default" && strings.Contains(prompt, k) {
			return m.Responses[k], true
		}
	}
	resp, ok := m.Responses["default"]
	return resp, ok
}

// GetCallCount returns the number of Chat calls made
func (m *MockLLMClient) GetCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.CallCount
}

// MockSearchClient is a mock implementation of SearchClient
type MockSearchClient struct {
	mu sync.Mutex
	// Results maps a query to its hits; Default is used for other queries
	Results map[string][]domain.SearchResultItem
	Default []domain.SearchResultItem
	Errors  map[string]error
	Queries []string
	// SearchFunc overrides the maps when set
	SearchFunc func(ctx context.Context, query string) ([]domain.SearchResultItem, error)
}

// NewMockSearchClient creates a new mock search client
func NewMockSearchClient() *MockSearchClient {
	return &MockSearchClient{
		Results: make(map[string][]domain.SearchResultItem),
		Errors:  make(map[string]error),
	}
}

// Search implements domain.SearchClient
func (s *MockSearchClient) Search(ctx context.Context, query string, opts domain.SearchOptions) ([]domain.SearchResultItem, error) {
	s.mu.Lock()
	s.Queries = append(s.Queries, query)
	searchFunc := s.SearchFunc
	s.mu.Unlock()

	if searchFunc != nil {
		return searchFunc(ctx, query)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err, ok := s.Errors[query]; ok {
		return nil, err
	}
	results, ok := s.Results[query]
	if !ok {
		results = s.Default
	}
	if opts.MaxResults > 0 && len(results) > opts.MaxResults {
		results = results[:opts.MaxResults]
	}
	return results, nil
}

// QueryCount returns the number of searches issued
func (s *MockSearchClient) QueryCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Queries)
}

// SitePage is a page served by MockSite
type SitePage struct {
	Title string
	Text  string
	HTML  string
	// FinalURL is reported after navigation; defaults to the requested url
	FinalURL string
	// Published is returned by the extraction script
	Published string
	// Delay is waited on navigation, honoring ctx
	Delay time.Duration
	// NavigateErr fails the navigation
	NavigateErr error
	// ScriptErr fails every script run on the page
	ScriptErr error
}

// MockSite is a set of pages shared by MockPage and MockTabPool
type MockSite struct {
	mu          sync.Mutex
	Pages       map[string]SitePage
	Navigations map[string]int
}

// NewMockSite creates an empty site
func NewMockSite() *MockSite {
	return &MockSite{
		Pages:       make(map[string]SitePage),
		Navigations: make(map[string]int),
	}
}

// Add registers a page under url
func (s *MockSite) Add(url string, page SitePage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Pages[url] = page
}

// NavigationCount returns how often url was loaded
func (s *MockSite) NavigationCount(url string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Navigations[url]
}

func (s *MockSite) navigate(ctx context.Context, url string) (SitePage, error) {
	s.mu.Lock()
	s.Navigations[url]++
	page, ok := s.Pages[url]
	s.mu.Unlock()

	if page.Delay > 0 {
		t := time.NewTimer(page.Delay)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return SitePage{}, ctx.Err()
		case <-t.C:
		}
	}
	if !ok {
		return SitePage{FinalURL: "about:blank"}, nil
	}
	if page.NavigateErr != nil {
		return SitePage{}, page.NavigateErr
	}
	if page.FinalURL == "" {
		page.FinalURL = url
	}
	return page, nil
}

// runScript answers the extraction script with the page as JSON and any
// other script with "0".
func (p SitePage) runScript(script string) (string, error) {
	if p.ScriptErr != nil {
		return "", p.ScriptErr
	}
	if strings.Contains(script, "outerHTML") && !strings.Contains(script, "JSON.stringify") {
		return p.HTML, nil
	}
	if !strings.Contains(script, "JSON.stringify") {
		return "0", nil
	}
	out, err := json.Marshal(map[string]string{
		"title":     p.Title,
		"url":       p.FinalURL,
		"text":      p.Text,
		"html":      p.HTML,
		"published": p.Published,
	})
	return string(out), err
}

// MockPage is a foreground page backed by a MockSite
type MockPage struct {
	mu      sync.Mutex
	Site    *MockSite
	current SitePage
	Resets  int
}

// NewMockPage creates a page over site
func NewMockPage(site *MockSite) *MockPage {
	return &MockPage{Site: site}
}

// Navigate implements domain.Page
func (p *MockPage) Navigate(ctx context.Context, url string) error {
	page, err := p.Site.navigate(ctx, url)
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.current = page
	p.mu.Unlock()
	return nil
}

// ExtractContent implements domain.Page
func (p *MockPage) ExtractContent(ctx context.Context) (*domain.PageContent, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return &domain.PageContent{Text: p.current.Text, HTML: p.current.HTML}, nil
}

// PageInfo implements domain.Page
func (p *MockPage) PageInfo(ctx context.Context) (*domain.PageInfo, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return &domain.PageInfo{Title: p.current.Title, URL: p.current.FinalURL}, nil
}

// ExecuteScript implements domain.Page
func (p *MockPage) ExecuteScript(ctx context.Context, script string) (string, error) {
	p.mu.Lock()
	current := p.current
	p.mu.Unlock()
	return current.runScript(script)
}

// Reset records that the surface was replaced
func (p *MockPage) Reset(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Resets++
	p.current = SitePage{}
	return nil
}

// MockTabPool is a background tab pool backed by a MockSite
type MockTabPool struct {
	mu     sync.Mutex
	Site   *MockSite
	tabs   map[domain.TabHandle]SitePage
	next   int
	open   int
	Peak   int
	Closed int
	// Sessions records the session id of every created tab
	Sessions []string
}

// NewMockTabPool creates a tab pool over site
func NewMockTabPool(site *MockSite) *MockTabPool {
	return &MockTabPool{Site: site, tabs: make(map[domain.TabHandle]SitePage)}
}

// CreateBackgroundTab implements domain.TabPool
func (p *MockTabPool) CreateBackgroundTab(ctx context.Context, sessionID, url string) (domain.TabHandle, error) {
	p.mu.Lock()
	p.Sessions = append(p.Sessions, sessionID)
	p.open++
	if p.open > p.Peak {
		p.Peak = p.open
	}
	p.mu.Unlock()

	page, err := p.Site.navigate(ctx, url)

	p.mu.Lock()
	defer p.mu.Unlock()
	if err != nil {
		p.open--
		return "", err
	}
	p.next++
	handle := domain.TabHandle(fmt.Sprintf("tab-%d", p.next))
	p.tabs[handle] = page
	return handle, nil
}

// TabState implements domain.TabPool
func (p *MockTabPool) TabState(ctx context.Context, tab domain.TabHandle) (*domain.PageInfo, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	page, ok := p.tabs[tab]
	if !ok {
		return nil, fmt.Errorf("unknown tab %s", tab)
	}
	return &domain.PageInfo{Title: page.Title, URL: page.FinalURL}, nil
}

// ExecuteScript implements domain.TabPool
func (p *MockTabPool) ExecuteScript(ctx context.Context, tab domain.TabHandle, script string) (string, error) {
	p.mu.Lock()
	page, ok := p.tabs[tab]
	p.mu.Unlock()
	if !ok {
		return "", fmt.Errorf("unknown tab %s", tab)
	}
	return page.runScript(script)
}

// CloseTab implements domain.TabPool
func (p *MockTabPool) CloseTab(ctx context.Context, tab domain.TabHandle) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.tabs[tab]; !ok {
		return fmt.Errorf("unknown tab %s", tab)
	}
	delete(p.tabs, tab)
	p.open--
	p.Closed++
	return nil
}

// OpenTabs returns the number of tabs not yet closed
func (p *MockTabPool) OpenTabs() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.open
}
