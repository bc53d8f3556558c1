package research

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ncolesummers/web-research-agent/pkg/content"
	"github.com/ncolesummers/web-research-agent/pkg/domain"
	"github.com/ncolesummers/web-research-agent/pkg/observability"
	"github.com/ncolesummers/web-research-agent/pkg/resilience"
)

// RetrieverConfig tunes page fetching
type RetrieverConfig struct {
	// Concurrency is the background-tab batch size
	Concurrency int
	// PageTimeout bounds every fetch, cache misses only
	PageTimeout time.Duration
	// SettleDelay is waited after navigation before touching the page
	SettleDelay time.Duration
	// MinScriptTextChars below which script text is replaced by cleaned markup
	MinScriptTextChars int
	// BreakerThreshold consecutive surface crashes stop sequential fetching
	BreakerThreshold int
	BreakerCooldown  time.Duration
}

// DefaultRetrieverConfig returns batches of 5, an 8 second timeout and a 1.5 second settle
func DefaultRetrieverConfig() RetrieverConfig {
	return RetrieverConfig{
		Concurrency:        5,
		PageTimeout:        8 * time.Second,
		SettleDelay:        1500 * time.Millisecond,
		MinScriptTextChars: 200,
		BreakerThreshold:   3,
		BreakerCooldown:    30 * time.Second,
	}
}

// Resetter is implemented by pages that can replace a crashed rendering surface
type Resetter interface {
	Reset(ctx context.Context) error
}

// Retriever fetches, caches and extracts candidate pages
type Retriever struct {
	cfg       RetrieverConfig
	page      domain.Page
	tabs      domain.TabPool
	sessionID string
	cache     domain.ContentCache
	extractor *content.Extractor
	breaker   *resilience.CircuitBreaker
	telemetry *observability.Telemetry
	logger    observability.Logger
	now       func() time.Time
	sleep     func(ctx context.Context, d time.Duration) error
}

// RetrieverOption configures a Retriever
type RetrieverOption func(*Retriever)

// WithPage sets the foreground page used for sequential fetching
func WithPage(page domain.Page) RetrieverOption {
	return func(r *Retriever) { r.page = page }
}

// WithTabPool enables parallel fetching in background tabs owned by sessionID
func WithTabPool(pool domain.TabPool, sessionID string) RetrieverOption {
	return func(r *Retriever) {
		r.tabs = pool
		r.sessionID = sessionID
	}
}

// WithRetrieverTelemetry records a span and metrics per fetch
func WithRetrieverTelemetry(t *observability.Telemetry) RetrieverOption {
	return func(r *Retriever) { r.telemetry = t }
}

// WithRetrieverClock replaces the time source used for fetch timestamps
func WithRetrieverClock(now func() time.Time) RetrieverOption {
	return func(r *Retriever) { r.now = now }
}

// WithSettleFunc replaces the wait performed after navigation
func WithSettleFunc(sleep func(ctx context.Context, d time.Duration) error) RetrieverOption {
	return func(r *Retriever) { r.sleep = sleep }
}

// NewRetriever creates a Retriever. cache is required.
func NewRetriever(cfg RetrieverConfig, cache domain.ContentCache, logger observability.Logger, opts ...RetrieverOption) *Retriever {
	defaults := DefaultRetrieverConfig()
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaults.Concurrency
	}
	if cfg.PageTimeout <= 0 {
		cfg.PageTimeout = defaults.PageTimeout
	}
	if cfg.MinScriptTextChars <= 0 {
		cfg.MinScriptTextChars = defaults.MinScriptTextChars
	}
	if cfg.BreakerThreshold <= 0 {
		cfg.BreakerThreshold = defaults.BreakerThreshold
	}

	r := &Retriever{
		cfg:       cfg,
		cache:     cache,
		extractor: content.NewExtractor(),
		breaker:   resilience.NewCircuitBreaker(cfg.BreakerThreshold, cfg.BreakerCooldown),
		logger:    logger,
		now:       time.Now,
		sleep:     sleepFor,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Retrieve fetches up to maxPages of items. Pages that time out, come back
// blank, fail the quality check or crash are dropped, so the result may be
// shorter than the input.
func (r *Retriever) Retrieve(ctx context.Context, items []domain.SearchResultItem, maxPages int) []*domain.ExtractedContent {
	items = dedupeItems(items)
	if maxPages > 0 && len(items) > maxPages {
		items = items[:maxPages]
	}
	if len(items) == 0 {
		return nil
	}

	switch {
	case r.tabs != nil && r.sessionID != "":
		return r.retrieveParallel(ctx, items)
	case r.page != nil:
		return r.retrieveSequential(ctx, items)
	default:
		r.logger.Warn(ctx, "No browser surface available, skipping retrieval", map[string]any{
			"pages": len(items),
		})
		return nil
	}
}

func (r *Retriever) retrieveParallel(ctx context.Context, items []domain.SearchResultItem) []*domain.ExtractedContent {
	pages, failures := resilience.RunBatches(ctx, items, r.cfg.Concurrency, func(ctx context.Context, item domain.SearchResultItem) (*domain.ExtractedContent, error) {
		return r.fetch(ctx, item, func() surface {
			return &tabSurface{pool: r.tabs, sessionID: r.sessionID}
		})
	})

	for _, f := range failures {
		r.logger.Warn(ctx, "Page dropped", map[string]any{
			"url":   items[f.Index].URL,
			"error": f.Err.Error(),
		})
	}
	return pages
}

func (r *Retriever) retrieveSequential(ctx context.Context, items []domain.SearchResultItem) []*domain.ExtractedContent {
	var pages []*domain.ExtractedContent
	for i, item := range items {
		if !r.breaker.CanExecute() {
			r.logger.Warn(ctx, "Rendering surface keeps crashing, abandoning remaining pages", map[string]any{
				"skipped": len(items) - i,
			})
			break
		}

		page, err := r.fetch(ctx, item, func() surface { return &pageSurface{page: r.page} })
		if err == nil {
			r.breaker.RecordSuccess()
			pages = append(pages, page)
			continue
		}

		r.logger.Warn(ctx, "Page dropped", map[string]any{"url": item.URL, "error": err.Error()})
		if !errors.Is(err, domain.ErrPageSurfaceCrashed) {
			continue
		}

		if berr := r.breaker.RecordFailure(); berr != nil {
			r.logger.Error(ctx, "Page surface breaker opened", berr)
		}
		if resetter, ok := r.page.(Resetter); ok {
			if rerr := resetter.Reset(ctx); rerr != nil {
				r.logger.Error(ctx, "Failed to reset crashed page surface", rerr)
			}
		}
	}
	return pages
}

// fetch returns cached content for item or loads it on a fresh surface,
// racing the load against the page timeout.
func (r *Retriever) fetch(ctx context.Context, item domain.SearchResultItem, newSurface func() surface) (*domain.ExtractedContent, error) {
	var page *domain.ExtractedContent
	err := r.instrument(ctx, item.URL, func(ctx context.Context) (string, error) {
		if cached, ok := r.cache.Get(ctx, item.URL); ok {
			page = cached
			return observability.FetchOutcomeCacheHit, nil
		}

		loaded, err := resilience.WithTimeout(ctx, r.cfg.PageTimeout, domain.ErrFetchTimeout, func(ctx context.Context) (*domain.ExtractedContent, error) {
			s := newSurface()
			defer s.close(ctx)
			return r.load(ctx, item, s)
		})
		if err != nil {
			if errors.Is(err, domain.ErrPageSurfaceCrashed) {
				return observability.FetchOutcomeCrashed, err
			}
			return observability.FetchOutcomeDropped, err
		}

		if err := r.cache.Set(ctx, loaded); err != nil {
			r.logger.Warn(ctx, "Failed to cache page content", map[string]any{"url": item.URL, "error": err.Error()})
		}
		page = loaded
		return observability.FetchOutcomeFetched, nil
	})
	return page, err
}

func (r *Retriever) instrument(ctx context.Context, url string, fn func(context.Context) (string, error)) error {
	if r.telemetry == nil {
		_, err := fn(ctx)
		return err
	}
	return r.telemetry.InstrumentPageFetch(ctx, url, fn)
}

type scriptResult struct {
	Title     string `json:"title"`
	URL       string `json:"url"`
	Text      string `json:"text"`
	HTML      string `json:"html"`
	Published string `json:"published"`
}

// load navigates s to item and extracts its content. Surface crashes are
// returned as is so the caller can react to them.
func (r *Retriever) load(ctx context.Context, item domain.SearchResultItem, s surface) (*domain.ExtractedContent, error) {
	if err := s.open(ctx, item.URL); err != nil {
		return nil, wrapFetchErr("navigate", err)
	}
	if r.cfg.SettleDelay > 0 {
		if err := r.sleep(ctx, r.cfg.SettleDelay); err != nil {
			return nil, err
		}
	}

	if err := r.dismissPopups(ctx, s); err != nil {
		if errors.Is(err, domain.ErrPageSurfaceCrashed) {
			return nil, err
		}
		r.logger.Debug(ctx, "Pop-up dismissal failed", map[string]any{"url": item.URL, "error": err.Error()})
	}

	info, err := s.info(ctx)
	if err != nil {
		return nil, wrapFetchErr("page info", err)
	}
	if isBlank(info.URL) {
		return nil, fmt.Errorf("%w: %s", domain.ErrBlankPage, item.URL)
	}

	var res scriptResult
	raw, err := s.script(ctx, extractContentScript)
	if err == nil {
		err = json.Unmarshal([]byte(raw), &res)
	}
	if err != nil {
		if errors.Is(err, domain.ErrPageSurfaceCrashed) {
			return nil, err
		}
		// Fall back to the raw markup when the extraction script fails.
		markup, merr := s.markup(ctx)
		if merr != nil {
			return nil, wrapFetchErr("extract", merr)
		}
		res = scriptResult{HTML: markup}
	}

	finalURL := item.URL
	if res.URL != "" {
		finalURL = res.URL
	}
	extracted := r.extractor.Extract(res.HTML, finalURL)

	text := content.CleanText(res.Text)
	if utf8.RuneCountInString(text) < r.cfg.MinScriptTextChars {
		text = extracted.MainText
	}
	text = content.TruncateAtSentence(text, content.MaxMainTextChars)
	if !content.IsValidContent(text) {
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidContent, item.URL)
	}

	title := firstNonEmpty(res.Title, info.Title, extracted.Title, item.Title)
	published := extracted.PublishDate
	if published == nil {
		published = content.ParseDate(res.Published)
	}

	return &domain.ExtractedContent{
		URL:         item.URL,
		Title:       strings.TrimSpace(title),
		Domain:      DomainOf(finalURL),
		PublishDate: published,
		MainText:    text,
		Tables:      extracted.Tables,
		Headings:    extracted.Headings,
		WordCount:   len(strings.Fields(text)),
		FetchedAt:   r.now(),
	}, nil
}

// dismissPopups runs the best-effort dismissal script. The error is returned
// so callers can tell a crashed surface from an ordinary script failure.
func (r *Retriever) dismissPopups(ctx context.Context, s surface) error {
	if _, err := s.script(ctx, dismissPopupsScript); err != nil {
		return wrapFetchErr("dismiss pop-ups", err)
	}
	return nil
}

func wrapFetchErr(step string, err error) error {
	if errors.Is(err, domain.ErrPageSurfaceCrashed) {
		return fmt.Errorf("%s: %w", step, err)
	}
	return fmt.Errorf("%w: %s: %v", domain.ErrPageFetch, step, err)
}

func isBlank(url string) bool {
	url = strings.TrimSpace(url)
	return url == "" ||
		strings.HasPrefix(url, "about:blank") ||
		strings.HasPrefix(url, "chrome-error://") ||
		strings.HasPrefix(url, "data:")
}

func dedupeItems(items []domain.SearchResultItem) []domain.SearchResultItem {
	seen := make(map[string]bool)
	out := make([]domain.SearchResultItem, 0, len(items))
	for _, it := range items {
		key := NormalizeURL(it.URL)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, it)
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func sleepFor(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// surface is one page a fetch runs against: the foreground page or a background tab
type surface interface {
	open(ctx context.Context, url string) error
	script(ctx context.Context, js string) (string, error)
	info(ctx context.Context) (*domain.PageInfo, error)
	markup(ctx context.Context) (string, error)
	close(ctx context.Context)
}

type pageSurface struct {
	page domain.Page
}

func (p *pageSurface) open(ctx context.Context, url string) error { return p.page.Navigate(ctx, url) }

func (p *pageSurface) script(ctx context.Context, js string) (string, error) {
	return p.page.ExecuteScript(ctx, js)
}

func (p *pageSurface) info(ctx context.Context) (*domain.PageInfo, error) { return p.page.PageInfo(ctx) }

func (p *pageSurface) markup(ctx context.Context) (string, error) {
	pc, err := p.page.ExtractContent(ctx)
	if err != nil {
		return "", err
	}
	return pc.HTML, nil
}

func (p *pageSurface) close(context.Context) {}

type tabSurface struct {
	pool      domain.TabPool
	sessionID string
	tab       domain.TabHandle
}

func (t *tabSurface) open(ctx context.Context, url string) error {
	tab, err := t.pool.CreateBackgroundTab(ctx, t.sessionID, url)
	if err != nil {
		return err
	}
	t.tab = tab
	return nil
}

func (t *tabSurface) script(ctx context.Context, js string) (string, error) {
	return t.pool.ExecuteScript(ctx, t.tab, js)
}

func (t *tabSurface) info(ctx context.Context) (*domain.PageInfo, error) {
	return t.pool.TabState(ctx, t.tab)
}

func (t *tabSurface) markup(ctx context.Context) (string, error) {
	return t.pool.ExecuteScript(ctx, t.tab, `() => document.documentElement.outerHTML`)
}

func (t *tabSurface) close(ctx context.Context) {
	if t.tab == "" {
		return
	}
	closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	_ = t.pool.CloseTab(closeCtx, t.tab)
}
