package research

import (
	"context"
	"fmt"
	"strings"

	"github.com/ncolesummers/web-research-agent/pkg/domain"
	"github.com/ncolesummers/web-research-agent/pkg/observability"
	"github.com/ncolesummers/web-research-agent/pkg/parser"
	"github.com/ncolesummers/web-research-agent/pkg/resilience"
)

// maxGapPromptFacts bounds the facts listed in the gap-analysis prompt
const maxGapPromptFacts = 50

var validImportance = map[domain.Importance]bool{
	domain.ImportanceCritical:   true,
	domain.ImportanceImportant:  true,
	domain.ImportanceNiceToHave: true,
}

// GapAnalyzer asks the model what the gathered facts leave unanswered
type GapAnalyzer struct {
	llm       domain.LLMClient
	policy    resilience.AttemptPolicy
	maxTokens int
	logger    observability.Logger
}

// NewGapAnalyzer creates a GapAnalyzer
func NewGapAnalyzer(llm domain.LLMClient, policy resilience.AttemptPolicy, logger observability.Logger) *GapAnalyzer {
	return &GapAnalyzer{llm: llm, policy: policy, maxTokens: 1500, logger: logger}
}

// Analyze returns missing-information gaps followed by source conflicts.
// It never fails; exhausted retries yield an empty list.
func (g *GapAnalyzer) Analyze(ctx context.Context, query string, questions []domain.SubQuestion, evals []domain.SourceEvaluation) []domain.Gap {
	prompt := fmt.Sprintf(gapAnalysisPrompt, query, formatQuestions(questions), formatGapFacts(evals))

	gaps, _ := resilience.Run(ctx, g.policy, func(ctx context.Context, a resilience.Attempt) ([]domain.Gap, error) {
		resp, err := g.llm.Chat(ctx, []domain.Message{{Role: "user", Content: prompt}}, domain.ChatOptions{
			Temperature: a.Temperature,
			MaxTokens:   g.maxTokens,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrModelFailure, err)
		}

		parsed, err := parser.ParseGaps(resp.Content)
		if err != nil {
			return nil, err
		}
		return normalizeGaps(parsed, questions), nil
	}, func(err error) ([]domain.Gap, error) {
		g.logger.Warn(ctx, "Gap analysis failed, continuing without gaps", map[string]any{
			"error": err.Error(),
		})
		return []domain.Gap{}, nil
	})

	return gaps
}

func normalizeGaps(resp *parser.GapResponse, questions []domain.SubQuestion) []domain.Gap {
	known := make(map[string]bool, len(questions))
	for _, sq := range questions {
		known[sq.ID] = true
	}

	out := make([]domain.Gap, 0, len(resp.Gaps)+len(resp.Conflicts))
	for _, r := range resp.Gaps {
		description := strings.TrimSpace(r.Description)
		if description == "" {
			continue
		}

		id := strings.TrimSpace(string(r.SubQuestionID))
		if id == "" || (!known[id] && id != domain.GapConflict) {
			id = domain.GapNew
		}

		importance := domain.Importance(strings.ToLower(strings.TrimSpace(r.Importance)))
		if !validImportance[importance] {
			importance = domain.ImportanceImportant
		}

		out = append(out, domain.Gap{
			SubQuestionID:  id,
			Description:    description,
			SuggestedQuery: suggestedQuery(r.SuggestedQuery, description),
			Importance:     importance,
		})
	}

	for _, c := range resp.Conflicts {
		description := strings.TrimSpace(c.Description)
		if description == "" {
			description = strings.TrimSpace(c.Topic)
		}
		if description == "" {
			continue
		}
		if topic := strings.TrimSpace(c.Topic); topic != "" && !strings.Contains(description, topic) {
			description = topic + ": " + description
		}

		out = append(out, domain.Gap{
			SubQuestionID:  domain.GapConflict,
			Description:    description,
			SuggestedQuery: suggestedQuery(c.SuggestedQuery, firstNonEmpty(c.Topic, description)),
			Importance:     domain.ImportanceImportant,
		})
	}
	return out
}

func suggestedQuery(query, fallback string) string {
	if q := SanitizeQuery(query); q != "" {
		return q
	}
	return SanitizeQuery(fallback)
}

func formatGapFacts(evals []domain.SourceEvaluation) string {
	var b strings.Builder
	n := 0
	for _, ev := range evals {
		for _, f := range ev.Facts {
			if n == maxGapPromptFacts {
				return b.String()
			}
			n++
			fmt.Fprintf(&b, "%d. %s", n, f.Claim)
			if f.Value != "" {
				fmt.Fprintf(&b, " (%s)", f.Value)
			}
			fmt.Fprintf(&b, " [%s]\n", ev.Domain)
		}
	}
	if n == 0 {
		return "No facts have been gathered yet."
	}
	return b.String()
}

// CriticalGaps returns the gaps marked critical, in order
func CriticalGaps(gaps []domain.Gap) []domain.Gap {
	var out []domain.Gap
	for _, g := range gaps {
		if g.Importance == domain.ImportanceCritical {
			out = append(out, g)
		}
	}
	return out
}

// ReportableGaps drops nice-to-have gaps; the rest are surfaced in the result
func ReportableGaps(gaps []domain.Gap) []domain.Gap {
	out := make([]domain.Gap, 0, len(gaps))
	for _, g := range gaps {
		if g.Importance != domain.ImportanceNiceToHave {
			out = append(out, g)
		}
	}
	return out
}
