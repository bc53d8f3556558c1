package facts

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int { return &v }

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		candidate Candidate
		rule      string
	}{
		{"prose pricing", Candidate{Claim: "The Pro plan costs $20 per month", Category: "pricing"}, ""},
		{"css declaration", Candidate{Claim: "font-family: Arial; color: #fff"}, "code-signature"},
		{"css declaration in prose", Candidate{Claim: "The pricing grid uses display: flex; for the plan cards"}, "code-signature"},
		{"css block end", Candidate{Claim: "Cards are styled with position: absolute}"}, "code-signature"},
		{"prose with property word", Candidate{Claim: "OpenAI's position: it will not train on business data", Category: "fact"}, ""},
		{"prose display label", Candidate{Claim: "Display: the Pro plan shows usage limits on the billing page"}, ""},
		{"js call", Candidate{Claim: "document.getElementById('main') returns the root element"}, "code-signature"},
		{"markup", Candidate{Claim: `The banner uses <div class="hero"> for layout`}, "code-signature"},
		{"styling category with punctuation", Candidate{Claim: "Primary buttons are = blue; secondary grey", Category: "styling"}, "suspicious-category"},
		{"too short", Candidate{Claim: "Costs $20"}, "length"},
		{"too long", Candidate{Claim: strings.Repeat("word ", 120)}, "length"},
		{"symbol heavy", Candidate{Claim: "Plan | $20 | ** | && | %% | $$"}, "special-ratio"},
		{"code-like start", Candidate{Claim: "init(config) sets up the billing module"}, "code-like-start"},
		{"snake case", Candidate{Claim: "enterprise_pricing_tier_unlimited"}, "not-prose"},
		{"identifier", Candidate{Claim: "EnterprisePricingTierUnlimited"}, "not-prose"},
		{"empty", Candidate{Claim: "   "}, "empty"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.rule, Validate(tt.candidate))
		})
	}
}

func TestScore(t *testing.T) {
	t.Run("default confidence for concrete category", func(t *testing.T) {
		score := Score(Candidate{Claim: "The Pro plan costs $20 per month", Category: "pricing"})
		assert.Equal(t, 65, score)
		assert.GreaterOrEqual(t, score, 60)
	})

	t.Run("low confidence is floored", func(t *testing.T) {
		score := Score(Candidate{Claim: "The Pro plan costs $20 per month", Confidence: intPtr(10)})
		assert.Equal(t, 55, score)
	})

	t.Run("all bonuses clamp to 100", func(t *testing.T) {
		score := Score(Candidate{
			Claim:      strings.Repeat("The enterprise plan includes unlimited seats. ", 3),
			Value:      "unlimited",
			Context:    "Listed on the official pricing page under Enterprise",
			Confidence: intPtr(95),
			Category:   "feature",
		})
		assert.Equal(t, 100, score)
	})

	t.Run("vague category penalty", func(t *testing.T) {
		score := Score(Candidate{Claim: "Many users prefer the new interface", Category: "claim", Confidence: intPtr(70)})
		assert.Equal(t, 65, score)
	})
}

func TestFilter(t *testing.T) {
	candidates := []Candidate{
		{Claim: "The Pro plan costs $20 per month", Value: "$20", Category: "Pricing", Confidence: intPtr(90)},
		{Claim: "font-family: Arial; color: #fff", Category: "style"},
	}

	accepted, rejected := Filter(candidates, "https://example.com/pricing")
	require.Len(t, accepted, 1)
	assert.Equal(t, "pricing", accepted[0].Category)
	assert.Equal(t, "https://example.com/pricing", accepted[0].SourceURL)
	assert.Equal(t, 100, accepted[0].Confidence)
	assert.Equal(t, map[string]int{"code-signature": 1}, rejected)
}
