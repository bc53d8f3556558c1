package parser_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ncolesummers/web-research-agent/pkg/domain"
	"github.com/ncolesummers/web-research-agent/pkg/parser"
)

func TestUnmarshal_Repairs(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"plain", `{"name": "pro", "price": 20}`},
		{"fenced", "```json\n{\"name\": \"pro\", \"price\": 20}\n```"},
		{"leading prose", "Sure! Here is the data:\n{\"name\": \"pro\", \"price\": 20}\nLet me know."},
		{"trailing comma", `{"name": "pro", "price": 20,}`},
		{"brace inside string", `Result: {"name": "pro {beta}", "price": 20} done`},
		{"truncated fence", "```json\n{\"name\": \"pro\", \"price\": 20}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out struct {
				Name  string `json:"name"`
				Price int    `json:"price"`
			}
			require.NoError(t, parser.Unmarshal(tt.raw, &out))
			assert.Contains(t, out.Name, "pro")
			assert.Equal(t, 20, out.Price)
		})
	}
}

func TestUnmarshal_Failure(t *testing.T) {
	var out map[string]any

	err := parser.Unmarshal("I could not find any information about that.", &out)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrParseFailure))

	err = parser.Unmarshal("   ", &out)
	assert.True(t, errors.Is(err, domain.ErrParseFailure))
}

func TestParseFacts_TruncatedArray(t *testing.T) {
	raw := `{"facts": [
  {"claim": "The Pro plan costs $20 per month", "value": "$20", "confidence": 90, "category": "pricing"},
  {"claim": "The Team plan includes shared workspaces for up to 50 users", "value": 50, "confidence": 80, "category": "feature"},
  {"claim": "Enterprise pricing is negotiated per cont`

	facts, err := parser.ParseFacts(raw)
	require.NoError(t, err)
	require.Len(t, facts, 2)
	assert.Equal(t, "The Pro plan costs $20 per month", facts[0].Claim)
	assert.Equal(t, parser.FlexString("$20"), facts[0].Value)
	assert.Equal(t, 90, facts[0].Confidence.Value)
	assert.Equal(t, parser.FlexString("50"), facts[1].Value)
}

func TestParseFacts_BareArrayAndMissingConfidence(t *testing.T) {
	raw := "```json\n[{\"claim\": \"The API supports streaming responses\", \"category\": \"feature\"}]\n```"

	facts, err := parser.ParseFacts(raw)
	require.NoError(t, err)
	require.Len(t, facts, 1)
	assert.False(t, facts[0].Confidence.Present)
}

func TestParseFacts_PatternFallback(t *testing.T) {
	// Unbalanced garbage between objects defeats every JSON repair.
	raw := `facts: {"claim": "Version 2.0 was released in March", "confidence": "75", "category": "date"} ]] }}
	and also {"claim": "It supports \"dark mode\" natively", "confidence": 70 ,,, }`

	facts, err := parser.ParseFacts(raw)
	require.NoError(t, err)
	require.Len(t, facts, 2)
	assert.Equal(t, "Version 2.0 was released in March", facts[0].Claim)
	assert.Equal(t, 75, facts[0].Confidence.Value)
	assert.Equal(t, `It supports "dark mode" natively`, facts[1].Claim)
}

func TestParseFacts_Empty(t *testing.T) {
	facts, err := parser.ParseFacts(`{"facts": []}`)
	require.NoError(t, err)
	assert.Empty(t, facts)

	_, err = parser.ParseFacts("no facts here")
	assert.True(t, errors.Is(err, domain.ErrParseFailure))
}

func TestParseGaps(t *testing.T) {
	raw := `{"gaps": [{"subQuestionId": "sq2", "description": "No pricing for enterprise tier", "suggestedQuery": "enterprise pricing 2024", "importance": "critical"}],
"conflicts": [{"topic": "release date", "description": "Sources disagree on launch month", "suggestedQuery": "launch date"}]}`

	resp, err := parser.ParseGaps(raw)
	require.NoError(t, err)
	require.Len(t, resp.Gaps, 1)
	assert.Equal(t, parser.FlexString("sq2"), resp.Gaps[0].SubQuestionID)
	assert.Equal(t, "critical", resp.Gaps[0].Importance)
	require.Len(t, resp.Conflicts, 1)
	assert.Equal(t, "release date", resp.Conflicts[0].Topic)
}

func TestParseGaps_Truncated(t *testing.T) {
	raw := `{"gaps": [{"subQuestionId": 3, "description": "Missing benchmark data", "importance": "important"}, {"subQuestionId": "4", "description": "No user reviews`

	resp, err := parser.ParseGaps(raw)
	require.NoError(t, err)
	require.NotEmpty(t, resp.Gaps)
	assert.Equal(t, "Missing benchmark data", resp.Gaps[0].Description)
	assert.Equal(t, parser.FlexString("3"), resp.Gaps[0].SubQuestionID)
}

func TestParseSubQuestions(t *testing.T) {
	wrapped := `{"subQuestions": [{"id": "1", "question": "What does it cost?", "category": "pricing", "priority": "high", "searchQuery": "product pricing"}]}`
	list, err := parser.ParseSubQuestions(wrapped)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "product pricing", list[0].SearchQuery)

	bare := `[{"id": 2, "question": "Who makes it?", "category": "facts", "priority": "low", "searchQuery": "maker"}]`
	list, err = parser.ParseSubQuestions(bare)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, parser.FlexString("2"), list[0].ID)
}

func TestParseStringList(t *testing.T) {
	list, err := parser.ParseStringList(`["How does it compare to X?", "What is the roadmap?"]`)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	list, err = parser.ParseStringList("Here are some ideas:\n1. How fast is it?\n2) Is there a free tier?\n- Who uses it?")
	require.NoError(t, err)
	assert.Equal(t, []string{"How fast is it?", "Is there a free tier?", "Who uses it?"}, list)

	_, err = parser.ParseStringList("nothing useful")
	assert.Error(t, err)
}
