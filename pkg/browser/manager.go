// Package browser drives Chrome through go-rod: the foreground page used for
// sequential fetches, a pool of stealth background tabs and search-engine
// result scraping.
package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"github.com/ncolesummers/web-research-agent/pkg/domain"
	"github.com/ncolesummers/web-research-agent/pkg/observability"
)

// ErrManagerClosed is returned once Close has been called
var ErrManagerClosed = errors.New("browser: manager is closed")

// Config configures the browser manager
type Config struct {
	// RemoteURL is the DevTools WebSocket URL of an external Chrome.
	// Empty launches a local Chrome.
	RemoteURL string

	Headless bool

	// Stealth opens pages with evasions for common bot checks
	Stealth bool

	// ResourceBlocking lists resource types not loaded: images, fonts, media, stylesheets
	ResourceBlocking []string

	// NavigationTimeout bounds a single navigation. Default: 30s.
	NavigationTimeout time.Duration
}

// DefaultConfig returns a headless stealth configuration that skips images, fonts and media
func DefaultConfig() Config {
	return Config{
		Headless:          true,
		Stealth:           true,
		ResourceBlocking:  []string{"images", "fonts", "media"},
		NavigationTimeout: 30 * time.Second,
	}
}

// Manager owns the Chrome process and its rod connection
type Manager struct {
	cfg     Config
	logger  observability.Logger
	mu      sync.RWMutex
	browser *rod.Browser
	lnch    *launcher.Launcher
	closed  bool
}

// NewManager creates a Manager. Call Start to launch or connect to Chrome.
func NewManager(cfg Config, logger observability.Logger) *Manager {
	if cfg.NavigationTimeout <= 0 {
		cfg.NavigationTimeout = 30 * time.Second
	}
	return &Manager{cfg: cfg, logger: logger}
}

// Start launches Chrome, or connects to RemoteURL
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrManagerClosed
	}
	return m.launchLocked(ctx)
}

// Browser returns the current rod browser, nil before Start
func (m *Manager) Browser() *rod.Browser {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.browser
}

// Restart replaces a dead Chrome with a fresh one
func (m *Manager) Restart(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrManagerClosed
	}
	m.logger.Info(ctx, "Restarting browser")
	m.cleanupLocked()
	return m.launchLocked(ctx)
}

// Close shuts Chrome down
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.cleanupLocked()
	return nil
}

func (m *Manager) launchLocked(ctx context.Context) error {
	wsURL := m.cfg.RemoteURL
	if wsURL != "" {
		m.logger.Info(ctx, "Connecting to remote browser", map[string]any{"url": wsURL})
	} else {
		l := launcher.New().
			Headless(m.cfg.Headless).
			Set("disable-blink-features", "AutomationControlled")

		u, err := l.Launch()
		if err != nil {
			return fmt.Errorf("failed to launch browser: %w", err)
		}
		wsURL = u
		m.lnch = l
		m.logger.Info(ctx, "Launched local browser", map[string]any{
			"url":      wsURL,
			"headless": m.cfg.Headless,
		})
	}

	b := rod.New().ControlURL(wsURL)
	if err := b.Connect(); err != nil {
		return fmt.Errorf("failed to connect to browser: %w", err)
	}
	if err := b.IgnoreCertErrors(true); err != nil {
		m.logger.Warn(ctx, "Failed to ignore certificate errors", map[string]any{"error": err.Error()})
	}
	m.browser = b
	return nil
}

func (m *Manager) cleanupLocked() {
	if m.browser != nil {
		_ = m.browser.Close()
		m.browser = nil
	}
	if m.lnch != nil {
		m.lnch.Cleanup()
		m.lnch = nil
	}
}

// tab is an open rod page and its request router
type tab struct {
	page   *rod.Page
	router *rod.HijackRouter
}

func (t *tab) close() error {
	if t.router != nil {
		_ = t.router.Stop()
	}
	return t.page.Close()
}

// newTab opens a blank page with stealth and resource blocking applied
func (m *Manager) newTab() (*tab, error) {
	b := m.Browser()
	if b == nil {
		return nil, fmt.Errorf("%w: no active browser", domain.ErrPageSurfaceCrashed)
	}

	var (
		page *rod.Page
		err  error
	)
	if m.cfg.Stealth {
		page, err = stealth.Page(b)
	} else {
		page, err = b.Page(proto.TargetCreateTarget{URL: ""})
	}
	if err != nil {
		return nil, classify(fmt.Errorf("failed to create page: %w", err))
	}

	t := &tab{page: page}
	if len(m.cfg.ResourceBlocking) > 0 {
		t.router = applyResourceBlocking(page, m.cfg.ResourceBlocking)
	}
	return t, nil
}

// navigate loads url on page and waits for the load event. A slow load
// event is logged, not returned.
func (m *Manager) navigate(ctx context.Context, page *rod.Page, url string) error {
	navCtx, cancel := context.WithTimeout(ctx, m.cfg.NavigationTimeout)
	defer cancel()

	if err := page.Context(navCtx).Navigate(url); err != nil {
		return classify(fmt.Errorf("failed to navigate to %s: %w", url, err))
	}
	if err := page.Context(navCtx).WaitLoad(); err != nil {
		if crashed(err) {
			return classify(err)
		}
		m.logger.Debug(ctx, "Page load did not finish", map[string]any{"url": url, "error": err.Error()})
	}
	return nil
}

// crashMarkers are substrings of CDP errors raised when the tab or the
// browser behind it is gone.
var crashMarkers = []string{
	"target closed",
	"target crashed",
	"session with given id not found",
	"no target with given id",
	"cdp connection closed",
	"websocket: close",
	"use of closed network connection",
	"broken pipe",
	"connection reset by peer",
}

func crashed(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range crashMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// classify wraps crash errors with domain.ErrPageSurfaceCrashed
func classify(err error) error {
	if err == nil || errors.Is(err, domain.ErrPageSurfaceCrashed) {
		return err
	}
	if crashed(err) {
		return fmt.Errorf("%w: %v", domain.ErrPageSurfaceCrashed, err)
	}
	return err
}
