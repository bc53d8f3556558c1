package research

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/ncolesummers/web-research-agent/pkg/domain"
	"github.com/ncolesummers/web-research-agent/pkg/observability"
	"github.com/ncolesummers/web-research-agent/pkg/resilience"
)

// SearchOutcome maps sub-question ids to their deduplicated results
type SearchOutcome struct {
	Results map[string][]domain.SearchResultItem
	// Issued counts the search queries sent, failed ones included
	Issued int
}

// ResultCount returns the number of results across all sub-questions
func (o SearchOutcome) ResultCount() int {
	n := 0
	for _, items := range o.Results {
		n += len(items)
	}
	return n
}

// Searcher runs web searches for sub-questions in parallel
type Searcher struct {
	client      domain.SearchClient
	concurrency int
	maxResults  int
	region      string
	logger      observability.Logger
	metrics     *observability.Metrics
}

// NewSearcher creates a Searcher. metrics may be nil.
func NewSearcher(client domain.SearchClient, concurrency, maxResults int, logger observability.Logger, metrics *observability.Metrics) *Searcher {
	if concurrency <= 0 {
		concurrency = 5
	}
	if maxResults <= 0 {
		maxResults = 8
	}
	return &Searcher{client: client, concurrency: concurrency, maxResults: maxResults, logger: logger, metrics: metrics}
}

// WithRegion sets the search-engine region code, e.g. "us-en"
func (s *Searcher) WithRegion(region string) *Searcher {
	s.region = region
	return s
}

// Search issues up to perQuestion queries for each sub-question. A failing
// sub-question is logged and left out; the others still return.
func (s *Searcher) Search(ctx context.Context, questions []domain.SubQuestion, perQuestion int) SearchOutcome {
	if perQuestion <= 0 {
		perQuestion = 1
	}

	var mu sync.Mutex
	outcome := SearchOutcome{Results: make(map[string][]domain.SearchResultItem)}

	resilience.RunBatches(ctx, questions, s.concurrency, func(ctx context.Context, sq domain.SubQuestion) (struct{}, error) {
		items, issued := s.searchOne(ctx, sq, perQuestion)

		mu.Lock()
		defer mu.Unlock()
		outcome.Issued += issued
		if len(items) > 0 {
			outcome.Results[sq.ID] = items
		}
		return struct{}{}, nil
	})

	return outcome
}

func (s *Searcher) searchOne(ctx context.Context, sq domain.SubQuestion, perQuestion int) ([]domain.SearchResultItem, int) {
	queries := searchVariants(sq)
	if len(queries) > perQuestion {
		queries = queries[:perQuestion]
	}

	seen := make(map[string]bool)
	var items []domain.SearchResultItem
	for _, q := range queries {
		results, err := s.client.Search(ctx, q, domain.SearchOptions{MaxResults: s.maxResults, Region: s.region})
		if s.metrics != nil {
			s.metrics.RecordSearch(ctx, err == nil)
		}
		if err != nil {
			s.logger.Warn(ctx, "Search failed", map[string]any{
				"sub_question_id": sq.ID,
				"query":           q,
				"error":           err.Error(),
			})
			continue
		}
		for _, r := range results {
			key := NormalizeURL(r.URL)
			if key == "" || seen[key] {
				continue
			}
			seen[key] = true
			items = append(items, r)
		}
	}
	return items, len(queries)
}

// searchVariants lists distinct queries for a sub-question, best first
func searchVariants(sq domain.SubQuestion) []string {
	candidates := []string{
		sq.SearchQuery,
		SanitizeQuery(sq.Question),
		SanitizeQuery(sq.SearchQuery + " " + categoryHint[sq.Category]),
	}

	seen := make(map[string]bool)
	var out []string
	for _, c := range candidates {
		key := strings.ToLower(strings.TrimSpace(c))
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, strings.TrimSpace(c))
	}
	return out
}

var categoryHint = map[domain.Category]string{
	domain.CategoryPricing:    "pricing plans",
	domain.CategoryFeatures:   "features",
	domain.CategoryComparison: "comparison",
	domain.CategoryFacts:      "overview",
	domain.CategoryOpinions:   "reviews",
	domain.CategoryNews:       "news",
}

// FlattenResults merges per-question results into one url-deduplicated
// list, visiting sub-questions in the given order.
func FlattenResults(questions []domain.SubQuestion, results map[string][]domain.SearchResultItem) []domain.SearchResultItem {
	seen := make(map[string]bool)
	var out []domain.SearchResultItem

	add := func(items []domain.SearchResultItem) {
		for _, r := range items {
			key := NormalizeURL(r.URL)
			if key == "" || seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, r)
		}
	}

	visited := make(map[string]bool)
	for _, sq := range questions {
		visited[sq.ID] = true
		add(results[sq.ID])
	}
	// Results keyed by ids outside questions, in a stable order.
	var extra []string
	for id := range results {
		if !visited[id] {
			extra = append(extra, id)
		}
	}
	sort.Strings(extra)
	for _, id := range extra {
		add(results[id])
	}
	return out
}
