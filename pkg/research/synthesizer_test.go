package research_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ncolesummers/web-research-agent/internal/testutil"
	"github.com/ncolesummers/web-research-agent/pkg/domain"
	"github.com/ncolesummers/web-research-agent/pkg/research"
)

func verifiedFacts() []domain.VerifiedFact {
	return []domain.VerifiedFact{
		{
			Claim: "ChatGPT Plus costs $20 per month", Value: "$20", Confidence: domain.ConfidenceHigh,
			Sources: []domain.SourceReference{
				{URL: "https://openai.com/chatgpt/pricing", Title: "Pricing", Domain: "openai.com", AuthorityScore: 95},
				{URL: "https://techcrunch.com/chatgpt-plus", Title: "ChatGPT Plus launches", Domain: "techcrunch.com", AuthorityScore: 75},
			},
		},
		{
			Claim: "The Team plan supports shared workspaces", Confidence: domain.ConfidenceLow,
			Sources: []domain.SourceReference{
				{URL: "https://techcrunch.com/chatgpt-plus", Title: "ChatGPT Plus launches", Domain: "techcrunch.com", AuthorityScore: 75},
			},
		},
	}
}

func TestConfidenceLabel(t *testing.T) {
	tier := func(tiers ...domain.ConfidenceTier) []domain.VerifiedFact {
		var out []domain.VerifiedFact
		for _, c := range tiers {
			out = append(out, domain.VerifiedFact{Claim: "claim", Confidence: c})
		}
		return out
	}
	h, m, l := domain.ConfidenceHigh, domain.ConfidenceMedium, domain.ConfidenceLow

	tests := []struct {
		name  string
		facts []domain.VerifiedFact
		want  domain.ConfidenceTier
	}{
		{"none", nil, l},
		{"all high", tier(h, h, h), h},
		{"sixty percent high", tier(h, h, h, l, l), h},
		{"forty percent low", tier(h, m, m, l, l), l},
		{"mixed", tier(h, m, m, m, l), m},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, research.ConfidenceLabel(tt.facts))
		})
	}
}

func TestSynthesizer_CitesSourcesAndRecordsPhase(t *testing.T) {
	ctx := testutil.NewTestContext(t)
	llm := testutil.NewMockLLMClient()
	llm.Responses["Suggest 3 or 4"] = `["Is there an annual plan?", "How does Team billing work?", "What does Enterprise cost?", "Is there a free trial?", "Extra?"]`
	llm.Responses["default"] = "## Answer\nChatGPT Plus costs $20 per month [1][2]."

	stats := &domain.ResearchStats{}
	s := research.NewSynthesizer(llm, testPolicy(), testutil.NewDiscardLogger())
	out := s.Synthesize(ctx, "How much is ChatGPT Plus?", verifiedFacts(), nil, stats)

	assert.Equal(t, "## Answer\nChatGPT Plus costs $20 per month [1][2].", out.Response)
	require.Len(t, out.Sources, 2)
	assert.Equal(t, "openai.com", out.Sources[0].Domain)
	assert.Equal(t, domain.ConfidenceLow, out.Confidence)
	assert.Len(t, out.FollowUpQuestions, 4)

	phase, ok := stats.Phase(domain.PhaseSynthesis)
	require.True(t, ok)
	assert.Equal(t, 2, phase.ItemsProcessed)
}

func TestSynthesizer_FallsBackToFactList(t *testing.T) {
	ctx := testutil.NewTestContext(t)
	llm := testutil.NewMockLLMClient()
	llm.ShouldError = true
	llm.ErrorMessage = "model unavailable"

	gaps := []domain.Gap{{SubQuestionID: "1", Description: "Annual pricing is unknown", Importance: domain.ImportanceCritical}}
	s := research.NewSynthesizer(llm, testPolicy(), testutil.NewDiscardLogger())
	out := s.Synthesize(ctx, "How much is ChatGPT Plus?", verifiedFacts(), gaps, nil)

	assert.Contains(t, out.Response, "1. ChatGPT Plus costs $20 per month [1][2]")
	assert.Contains(t, out.Response, "2. The Team plan supports shared workspaces [2]")
	assert.Contains(t, out.Response, "Annual pricing is unknown")
	assert.NotNil(t, out.FollowUpQuestions)
	assert.Empty(t, out.FollowUpQuestions)
}

func TestFollowUpQuestions_ReturnsError(t *testing.T) {
	ctx := testutil.NewTestContext(t)
	llm := testutil.NewMockLLMClient()
	llm.Responses["default"] = "No suggestions."

	s := research.NewSynthesizer(llm, testPolicy(), testutil.NewDiscardLogger())
	questions, err := s.FollowUpQuestions(ctx, "q", "a")
	assert.Error(t, err)
	assert.Empty(t, questions)
}

func TestFormatCitedFacts(t *testing.T) {
	facts := verifiedFacts()
	sources := research.CollectSources(facts)

	listing := research.FormatCitedFacts(facts, sources)
	assert.Contains(t, listing, "[1] Pricing - https://openai.com/chatgpt/pricing")
	assert.Contains(t, listing, "[2] ChatGPT Plus launches - https://techcrunch.com/chatgpt-plus")
	assert.Contains(t, listing, "confidence: low")
}
