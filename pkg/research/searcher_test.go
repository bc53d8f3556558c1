package research_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ncolesummers/web-research-agent/internal/testutil"
	"github.com/ncolesummers/web-research-agent/pkg/domain"
	"github.com/ncolesummers/web-research-agent/pkg/research"
)

func TestSearcher_PartialFailure(t *testing.T) {
	ctx := testutil.NewTestContext(t)
	client := testutil.NewMockSearchClient()
	client.Results["ChatGPT Plus price"] = []domain.SearchResultItem{
		{Title: "Pricing", URL: "https://openai.com/chatgpt/pricing"},
		{Title: "Pricing again", URL: "https://openai.com/chatgpt/pricing/"},
		{Title: "Review", URL: "https://techcrunch.com/chatgpt-plus"},
	}
	client.Errors["ChatGPT Team features"] = errors.New("search engine blocked")

	questions := []domain.SubQuestion{
		{ID: "1", Question: "ChatGPT Plus price", Category: domain.CategoryPricing, SearchQuery: "ChatGPT Plus price"},
		{ID: "2", Question: "ChatGPT Team features", Category: domain.CategoryFeatures, SearchQuery: "ChatGPT Team features"},
	}

	s := research.NewSearcher(client, 5, 8, testutil.NewDiscardLogger(), nil)
	outcome := s.Search(ctx, questions, 1)

	require.Contains(t, outcome.Results, "1")
	assert.NotContains(t, outcome.Results, "2")
	assert.Len(t, outcome.Results["1"], 2)
	assert.Equal(t, 2, outcome.ResultCount())
	assert.Equal(t, 2, outcome.Issued)
}

func TestSearcher_QueryVariantsUpToCap(t *testing.T) {
	ctx := testutil.NewTestContext(t)
	client := testutil.NewMockSearchClient()
	client.Default = []domain.SearchResultItem{{URL: "https://example.com/a"}}

	questions := []domain.SubQuestion{{
		ID: "1", Question: "How much does ChatGPT Plus cost?", Category: domain.CategoryPricing, SearchQuery: "ChatGPT Plus cost",
	}}

	s := research.NewSearcher(client, 5, 8, testutil.NewDiscardLogger(), nil)
	outcome := s.Search(ctx, questions, 3)

	assert.Equal(t, []string{"ChatGPT Plus cost", "much ChatGPT Plus cost", "ChatGPT Plus cost pricing plans"}, client.Queries)
	assert.Len(t, outcome.Results["1"], 1)
}

func TestFlattenResults(t *testing.T) {
	questions := []domain.SubQuestion{{ID: "b"}, {ID: "a"}}
	results := map[string][]domain.SearchResultItem{
		"a":        {{URL: "https://x.com/2"}, {URL: "https://x.com/1"}},
		"b":        {{URL: "https://x.com/1"}},
		"followup": {{URL: "https://x.com/3"}, {URL: "https://X.com/2#top"}},
	}

	flat := research.FlattenResults(questions, results)

	var urls []string
	for _, r := range flat {
		urls = append(urls, r.URL)
	}
	assert.Equal(t, []string{"https://x.com/1", "https://x.com/2", "https://x.com/3"}, urls)
}
