package browser

import (
	"context"
	"fmt"
	"sync"

	"github.com/ncolesummers/web-research-agent/pkg/domain"
)

// TabPool opens background tabs owned by a research session. It implements domain.TabPool.
type TabPool struct {
	manager *Manager
	mu      sync.Mutex
	tabs    map[domain.TabHandle]*tab
	owners  map[domain.TabHandle]string
}

// NewTabPool creates an empty pool over manager's browser
func NewTabPool(manager *Manager) *TabPool {
	return &TabPool{
		manager: manager,
		tabs:    make(map[domain.TabHandle]*tab),
		owners:  make(map[domain.TabHandle]string),
	}
}

// CreateBackgroundTab implements domain.TabPool
func (p *TabPool) CreateBackgroundTab(ctx context.Context, sessionID, url string) (domain.TabHandle, error) {
	if sessionID == "" {
		return "", fmt.Errorf("background tab requires a session id")
	}

	t, err := p.manager.newTab()
	if err != nil {
		return "", err
	}
	if err := p.manager.navigate(ctx, t.page, url); err != nil {
		_ = t.close()
		return "", err
	}

	handle := domain.TabHandle(t.page.TargetID)
	p.mu.Lock()
	p.tabs[handle] = t
	p.owners[handle] = sessionID
	p.mu.Unlock()
	return handle, nil
}

func (p *TabPool) get(handle domain.TabHandle) (*tab, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	t, ok := p.tabs[handle]
	if !ok {
		return nil, fmt.Errorf("unknown tab %s", handle)
	}
	return t, nil
}

// TabState implements domain.TabPool
func (p *TabPool) TabState(ctx context.Context, handle domain.TabHandle) (*domain.PageInfo, error) {
	t, err := p.get(handle)
	if err != nil {
		return nil, err
	}
	return tabInfo(ctx, t)
}

// ExecuteScript implements domain.TabPool
func (p *TabPool) ExecuteScript(ctx context.Context, handle domain.TabHandle, script string) (string, error) {
	t, err := p.get(handle)
	if err != nil {
		return "", err
	}
	return evalString(ctx, t, script)
}

// CloseTab implements domain.TabPool
func (p *TabPool) CloseTab(_ context.Context, handle domain.TabHandle) error {
	p.mu.Lock()
	t, ok := p.tabs[handle]
	delete(p.tabs, handle)
	delete(p.owners, handle)
	p.mu.Unlock()

	if !ok {
		return nil
	}
	return t.close()
}

// CloseSession closes every tab still owned by sessionID
func (p *TabPool) CloseSession(ctx context.Context, sessionID string) {
	p.mu.Lock()
	var handles []domain.TabHandle
	for h, owner := range p.owners {
		if owner == sessionID {
			handles = append(handles, h)
		}
	}
	p.mu.Unlock()

	for _, h := range handles {
		_ = p.CloseTab(ctx, h)
	}
}

// Len returns the number of open tabs
func (p *TabPool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.tabs)
}
