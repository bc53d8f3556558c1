package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/ncolesummers/web-research-agent/pkg/domain"
)

const pageContentScript = `() => JSON.stringify({
	text: document.body ? document.body.innerText : '',
	html: document.documentElement ? document.documentElement.outerHTML : ''
})`

// Page is the foreground page used for sequential fetches. It implements
// domain.Page and can replace itself after a crash.
type Page struct {
	manager *Manager
	mu      sync.Mutex
	tab     *tab
}

// NewPage creates the foreground page. The rod page is opened lazily.
func NewPage(manager *Manager) *Page {
	return &Page{manager: manager}
}

func (p *Page) current() (*tab, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.tab != nil {
		return p.tab, nil
	}
	t, err := p.manager.newTab()
	if err != nil {
		return nil, err
	}
	p.tab = t
	return t, nil
}

// Navigate implements domain.Page
func (p *Page) Navigate(ctx context.Context, url string) error {
	t, err := p.current()
	if err != nil {
		return err
	}
	return p.manager.navigate(ctx, t.page, url)
}

// ExtractContent implements domain.Page
func (p *Page) ExtractContent(ctx context.Context) (*domain.PageContent, error) {
	raw, err := p.ExecuteScript(ctx, pageContentScript)
	if err != nil {
		return nil, err
	}
	var pc domain.PageContent
	if err := json.Unmarshal([]byte(raw), &pc); err != nil {
		return nil, fmt.Errorf("failed to decode page content: %w", err)
	}
	return &pc, nil
}

// PageInfo implements domain.Page
func (p *Page) PageInfo(ctx context.Context) (*domain.PageInfo, error) {
	t, err := p.current()
	if err != nil {
		return nil, err
	}
	return tabInfo(ctx, t)
}

// ExecuteScript implements domain.Page
func (p *Page) ExecuteScript(ctx context.Context, script string) (string, error) {
	t, err := p.current()
	if err != nil {
		return "", err
	}
	return evalString(ctx, t, script)
}

// Reset discards the current page and restarts Chrome when the connection
// itself is gone. The next call opens a fresh page.
func (p *Page) Reset(ctx context.Context) error {
	p.mu.Lock()
	old := p.tab
	p.tab = nil
	p.mu.Unlock()

	if old != nil {
		if err := old.close(); err != nil && crashed(err) {
			return p.manager.Restart(ctx)
		}
		return nil
	}
	if p.manager.Browser() == nil {
		return p.manager.Restart(ctx)
	}
	return nil
}

// Close closes the current page
func (p *Page) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.tab == nil {
		return nil
	}
	err := p.tab.close()
	p.tab = nil
	return err
}

func tabInfo(ctx context.Context, t *tab) (*domain.PageInfo, error) {
	info, err := t.page.Context(ctx).Info()
	if err != nil {
		return nil, classify(fmt.Errorf("failed to read page info: %w", err))
	}
	return &domain.PageInfo{Title: info.Title, URL: info.URL}, nil
}

func evalString(ctx context.Context, t *tab, script string) (string, error) {
	res, err := t.page.Context(ctx).Eval(script)
	if err != nil {
		return "", classify(fmt.Errorf("failed to run script: %w", err))
	}
	return res.Value.Str(), nil
}
