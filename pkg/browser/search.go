package browser

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/ncolesummers/web-research-agent/pkg/domain"
)

// DefaultSearchURL is the DuckDuckGo HTML endpoint
const DefaultSearchURL = "https://html.duckduckgo.com/html/"

const defaultMaxResults = 8

// markupFetcher loads a url and returns its markup
type markupFetcher func(ctx context.Context, url string) (string, error)

// SearchEngine scrapes DuckDuckGo's HTML results page in a browser tab.
// It implements domain.SearchClient.
type SearchEngine struct {
	baseURL string
	fetch   markupFetcher
}

// NewSearchEngine creates a SearchEngine that opens a short-lived tab per query.
// An empty baseURL uses DefaultSearchURL.
func NewSearchEngine(manager *Manager, baseURL string) *SearchEngine {
	if baseURL == "" {
		baseURL = DefaultSearchURL
	}
	return &SearchEngine{
		baseURL: baseURL,
		fetch: func(ctx context.Context, target string) (string, error) {
			t, err := manager.newTab()
			if err != nil {
				return "", err
			}
			defer t.close()

			if err := manager.navigate(ctx, t.page, target); err != nil {
				return "", err
			}
			return evalString(ctx, t, `() => document.documentElement.outerHTML`)
		},
	}
}

// Search implements domain.SearchClient
func (s *SearchEngine) Search(ctx context.Context, query string, opts domain.SearchOptions) ([]domain.SearchResultItem, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("empty search query")
	}

	target, err := s.searchURL(query, opts)
	if err != nil {
		return nil, err
	}

	markup, err := s.fetch(ctx, target)
	if err != nil {
		return nil, fmt.Errorf("failed to load search results: %w", err)
	}

	results, err := ParseDuckDuckGoResults(markup)
	if err != nil {
		return nil, err
	}

	limit := opts.MaxResults
	if limit <= 0 {
		limit = defaultMaxResults
	}
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func (s *SearchEngine) searchURL(query string, opts domain.SearchOptions) (string, error) {
	u, err := url.Parse(s.baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid search url: %w", err)
	}
	q := u.Query()
	q.Set("q", query)
	if opts.Region != "" {
		q.Set("kl", opts.Region)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// ParseDuckDuckGoResults extracts organic results from a DuckDuckGo HTML
// results page. Ads and results without a resolvable link are skipped.
func ParseDuckDuckGoResults(markup string) ([]domain.SearchResultItem, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("failed to parse search results: %w", err)
	}

	seen := make(map[string]bool)
	var results []domain.SearchResultItem
	doc.Find(".result").Each(func(_ int, s *goquery.Selection) {
		if s.HasClass("result--ad") {
			return
		}
		link := s.Find("a.result__a").First()
		href, ok := link.Attr("href")
		if !ok {
			return
		}
		target := resolveResultLink(href)
		if target == "" || seen[target] {
			return
		}
		seen[target] = true

		results = append(results, domain.SearchResultItem{
			Title:   strings.Join(strings.Fields(link.Text()), " "),
			URL:     target,
			Snippet: strings.Join(strings.Fields(s.Find(".result__snippet").Text()), " "),
		})
	})
	return results, nil
}

// resolveResultLink unwraps DuckDuckGo redirect links (//duckduckgo.com/l/?uddg=...)
func resolveResultLink(href string) string {
	href = strings.TrimSpace(href)
	if strings.HasPrefix(href, "//") {
		href = "https:" + href
	}
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if strings.HasSuffix(u.Hostname(), "duckduckgo.com") && strings.HasPrefix(u.Path, "/l/") {
		target := u.Query().Get("uddg")
		if target == "" {
			return ""
		}
		return resolveResultLink(target)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	if strings.HasSuffix(u.Hostname(), "duckduckgo.com") {
		return ""
	}
	return u.String()
}
