package research_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ncolesummers/web-research-agent/internal/testutil"
	"github.com/ncolesummers/web-research-agent/pkg/domain"
	"github.com/ncolesummers/web-research-agent/pkg/research"
)

var evalNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func pricingQuestions() []domain.SubQuestion {
	return []domain.SubQuestion{
		{ID: "1", Question: "How much is ChatGPT Plus?", Category: domain.CategoryPricing, SearchQuery: "ChatGPT Plus subscription pricing monthly"},
		{ID: "2", Question: "What does the Team plan add?", Category: domain.CategoryFeatures, SearchQuery: "ChatGPT Team workspace features admin"},
		{ID: "3", Question: "Which models are available?", Category: domain.CategoryFacts, SearchQuery: "OpenAI model availability limits"},
	}
}

const pricingFactsResponse = `{"facts": [
	{"claim": "ChatGPT Plus costs $20 per month for individual users", "value": "$20", "context": "Plus is twenty dollars per month", "confidence": 90, "category": "pricing"},
	{"claim": "font-family: Arial; color: #fff", "category": "other"}
]}`

func TestEvaluator_RecentAuthoritativeRelevantPageScoresAbove90(t *testing.T) {
	ctx := testutil.NewTestContext(t)
	llm := testutil.NewMockLLMClient()
	llm.Responses["default"] = pricingFactsResponse

	published := evalNow.Add(-3 * 24 * time.Hour)
	page := testutil.NewTestContent("https://openai.com/chatgpt/pricing", "ChatGPT Plus pricing",
		"OpenAI sells a ChatGPT Plus subscription with monthly pricing. The Team workspace adds admin features. "+
			"Model availability and usage limits differ by plan.")
	page.PublishDate = &published

	e := research.NewEvaluator(llm, testPolicy(), testutil.NewDiscardLogger(), research.WithEvaluatorClock(func() time.Time { return evalNow }))
	evals := e.Evaluate(ctx, []*domain.ExtractedContent{page}, pricingQuestions())

	require.Len(t, evals, 1)
	ev := evals[0]
	assert.Equal(t, 95, ev.AuthorityScore)
	assert.Equal(t, 100, ev.RecencyScore)
	assert.Equal(t, 100, ev.RelevanceScore)
	assert.Greater(t, ev.OverallScore, 90)

	require.Len(t, ev.Facts, 1)
	assert.Equal(t, "pricing", ev.Facts[0].Category)
	assert.Equal(t, page.URL, ev.Facts[0].SourceURL)
	assert.GreaterOrEqual(t, ev.Facts[0].Confidence, 60)
}

func TestEvaluator_ModelFailureKeepsScoredPages(t *testing.T) {
	ctx := testutil.NewTestContext(t)
	llm := testutil.NewMockLLMClient()
	llm.ShouldError = true
	llm.ErrorMessage = "model overloaded"

	old := evalNow.AddDate(-3, 0, 0)
	weak := testutil.NewTestContent("https://someblog.blogspot.com/post", "Random thoughts", "Nothing about the topic at all.")
	weak.PublishDate = &old
	strong := testutil.NewTestContent("https://openai.com/chatgpt/pricing", "ChatGPT Plus pricing", "ChatGPT Plus subscription pricing is monthly.")

	e := research.NewEvaluator(llm, testPolicy(), testutil.NewDiscardLogger(), research.WithEvaluatorClock(func() time.Time { return evalNow }))
	evals := e.Evaluate(ctx, []*domain.ExtractedContent{weak, strong}, pricingQuestions())

	require.Len(t, evals, 2)
	assert.Equal(t, strong.URL, evals[0].URL)
	assert.Equal(t, weak.URL, evals[1].URL)
	assert.Empty(t, evals[0].Facts)
	assert.Equal(t, 35, evals[1].AuthorityScore)
	assert.Equal(t, 15, evals[1].RecencyScore)
	assert.Equal(t, 50, evals[0].RecencyScore)
	// three attempts per page
	assert.Equal(t, 6, llm.GetCallCount())
}

func TestRecencyScore(t *testing.T) {
	tests := []struct {
		age  time.Duration
		want int
	}{
		{0, 100},
		{7 * 24 * time.Hour, 100},
		{8 * 24 * time.Hour, 90},
		{60 * 24 * time.Hour, 75},
		{120 * 24 * time.Hour, 60},
		{300 * 24 * time.Hour, 45},
		{500 * 24 * time.Hour, 30},
		{1000 * 24 * time.Hour, 15},
	}
	for _, tt := range tests {
		published := evalNow.Add(-tt.age)
		assert.Equal(t, tt.want, research.RecencyScore(&published, evalNow), "age %s", tt.age)
	}
	assert.Equal(t, 50, research.RecencyScore(nil, evalNow))
}

func TestOverallScore(t *testing.T) {
	assert.Equal(t, 98, research.OverallScore(95, 100, 100))
	assert.Equal(t, 50, research.OverallScore(50, 50, 50))
	assert.Equal(t, 0, research.OverallScore(0, 0, 0))
}

func TestRelevanceScore_SumsHitsAcrossOverlappingQuestions(t *testing.T) {
	questions := []domain.SubQuestion{
		{ID: "1", SearchQuery: "OpenAI pricing plans"},
		{ID: "2", SearchQuery: "OpenAI pricing tiers"},
	}
	page := testutil.NewTestContent("https://openai.com/pricing", "OpenAI pricing",
		"OpenAI publishes pricing for all plans and usage tiers.")

	relevance := research.RelevanceScore(page, questions)
	assert.Equal(t, 84, relevance)
	assert.Greater(t, research.OverallScore(95, 100, relevance), 90)

	miss := testutil.NewTestContent("https://example.com", "Gardening", "Tomatoes need sun.")
	assert.Equal(t, 0, research.RelevanceScore(miss, questions))
}

func TestAuthorityTable_Score(t *testing.T) {
	table := research.DefaultAuthorityTable()

	assert.Equal(t, 95, table.Score("openai.com"))
	assert.Equal(t, 95, table.Score("www.openai.com"))
	assert.Equal(t, 95, table.Score("platform.openai.com"))
	assert.Equal(t, 90, table.Score("aws.amazon.com"))
	assert.Equal(t, 90, table.Score("data.nasa.gov"))
	assert.Equal(t, research.DefaultAuthority, table.Score("unknown-site.io"))
	assert.Equal(t, research.DefaultAuthority, table.Score("notopenai.com"))
}

func TestLoadAuthorityTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "authority.yaml")
	require.NoError(t, os.WriteFile(path, []byte("default: 40\ndomains:\n  example.com: 70\n  www.vendor.io: 88\n"), 0o600))

	table, err := research.LoadAuthorityTable(path)
	require.NoError(t, err)
	assert.Equal(t, 70, table.Score("docs.example.com"))
	assert.Equal(t, 88, table.Score("vendor.io"))
	assert.Equal(t, 95, table.Score("openai.com"))
	assert.Equal(t, 40, table.Score("unknown-site.io"))

	require.NoError(t, os.WriteFile(path, []byte("domains:\n  bad.com: 140\n"), 0o600))
	_, err = research.LoadAuthorityTable(path)
	assert.Error(t, err)

	_, err = research.LoadAuthorityTable(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
