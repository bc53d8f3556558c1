package research_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ncolesummers/web-research-agent/internal/testutil"
	"github.com/ncolesummers/web-research-agent/pkg/domain"
	"github.com/ncolesummers/web-research-agent/pkg/research"
)

func TestGapAnalyzer_ZeroFacts(t *testing.T) {
	ctx := testutil.NewTestContext(t)
	llm := testutil.NewMockLLMClient()
	llm.Responses["default"] = `{"gaps": [], "conflicts": []}`

	g := research.NewGapAnalyzer(llm, testPolicy(), testutil.NewDiscardLogger())
	gaps := g.Analyze(ctx, "How much is ChatGPT Plus?", pricingQuestions(), nil)

	require.NotNil(t, gaps)
	assert.Empty(t, gaps)
	require.NotEmpty(t, llm.LastMessages)
	assert.Contains(t, llm.LastMessages[0].Content, "No facts have been gathered yet.")
}

func TestGapAnalyzer_ExhaustedRetriesReturnEmpty(t *testing.T) {
	ctx := testutil.NewTestContext(t)
	llm := testutil.NewMockLLMClient()
	llm.Responses["default"] = "Everything looks complete to me."

	g := research.NewGapAnalyzer(llm, testPolicy(), testutil.NewDiscardLogger())
	gaps := g.Analyze(ctx, "How much is ChatGPT Plus?", pricingQuestions(), nil)

	require.NotNil(t, gaps)
	assert.Empty(t, gaps)
	assert.Equal(t, 3, llm.GetCallCount())
}

func TestGapAnalyzer_NormalizesGapsAndConflicts(t *testing.T) {
	ctx := testutil.NewTestContext(t)
	llm := testutil.NewMockLLMClient()
	llm.Responses["default"] = `Here you go:
{"gaps": [
	{"subQuestionId": "1", "description": "Annual billing price is unknown", "suggestedQuery": "What is the ChatGPT Plus annual price in 2025?", "importance": "Critical"},
	{"subQuestionId": 9, "description": "Regional pricing differences", "suggestedQuery": "", "importance": "whenever"},
	{"subQuestionId": "2", "description": ""}
],
"conflicts": [
	{"topic": "Team price", "description": "Sources disagree on $25 vs $30 per seat", "suggestedQuery": "ChatGPT Team price per seat"}
]}`

	evals := []domain.SourceEvaluation{{
		URL:    "https://openai.com/chatgpt/pricing",
		Domain: "openai.com",
		Facts:  []domain.ExtractedFact{{Claim: "ChatGPT Plus costs $20 per month", Value: "$20", Confidence: 90}},
	}}

	g := research.NewGapAnalyzer(llm, testPolicy(), testutil.NewDiscardLogger())
	gaps := g.Analyze(ctx, "How much is ChatGPT?", pricingQuestions(), evals)

	require.Len(t, gaps, 3)

	assert.Equal(t, "1", gaps[0].SubQuestionID)
	assert.Equal(t, domain.ImportanceCritical, gaps[0].Importance)
	assert.Equal(t, "ChatGPT Plus annual price", gaps[0].SuggestedQuery)

	assert.Equal(t, domain.GapNew, gaps[1].SubQuestionID)
	assert.Equal(t, domain.ImportanceImportant, gaps[1].Importance)
	assert.Equal(t, "Regional pricing differences", gaps[1].SuggestedQuery)

	assert.Equal(t, domain.GapConflict, gaps[2].SubQuestionID)
	assert.Equal(t, "Team price: Sources disagree on $25 vs $30 per seat", gaps[2].Description)

	assert.Len(t, research.CriticalGaps(gaps), 1)
	assert.Contains(t, llm.LastMessages[0].Content, "ChatGPT Plus costs $20 per month ($20) [openai.com]")
}

func TestGapAnalyzer_CapsPromptFacts(t *testing.T) {
	ctx := testutil.NewTestContext(t)
	llm := testutil.NewMockLLMClient()
	llm.Responses["default"] = `{"gaps": []}`

	var facts []domain.ExtractedFact
	for i := 0; i < 60; i++ {
		facts = append(facts, domain.ExtractedFact{Claim: "The service supports another integration"})
	}

	g := research.NewGapAnalyzer(llm, testPolicy(), testutil.NewDiscardLogger())
	g.Analyze(ctx, "integrations", pricingQuestions(), []domain.SourceEvaluation{{Domain: "example.com", Facts: facts}})

	prompt := llm.LastMessages[0].Content
	assert.Contains(t, prompt, "\n50. The service")
	assert.NotContains(t, prompt, "\n51. The service")
}
