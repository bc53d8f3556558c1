package research

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ncolesummers/web-research-agent/pkg/domain"
	"github.com/ncolesummers/web-research-agent/pkg/observability"
	"github.com/ncolesummers/web-research-agent/pkg/parser"
	"github.com/ncolesummers/web-research-agent/pkg/resilience"
)

const maxFollowUpQuestions = 4

// Synthesis is the written answer and what it was built from
type Synthesis struct {
	Response          string
	Sources           []domain.SourceReference
	Confidence        domain.ConfidenceTier
	FollowUpQuestions []string
}

// Synthesizer writes the final cited answer
type Synthesizer struct {
	llm       domain.LLMClient
	policy    resilience.AttemptPolicy
	maxTokens int
	logger    observability.Logger
	now       func() time.Time
}

// NewSynthesizer creates a Synthesizer
func NewSynthesizer(llm domain.LLMClient, policy resilience.AttemptPolicy, logger observability.Logger) *Synthesizer {
	return &Synthesizer{llm: llm, policy: policy, maxTokens: 3000, logger: logger, now: time.Now}
}

// Synthesize writes a markdown answer citing only the verified facts and
// appends a synthesis entry to stats. When the model cannot produce an
// answer, a plain cited list of the facts is returned instead.
func (s *Synthesizer) Synthesize(ctx context.Context, query string, verified []domain.VerifiedFact, gaps []domain.Gap, stats *domain.ResearchStats) Synthesis {
	start := s.now()

	sources := CollectSources(verified)
	listing := FormatCitedFacts(verified, sources)
	prompt := fmt.Sprintf(synthesisPrompt, query, listing, formatGaps(gaps))

	answer, _ := resilience.Run(ctx, s.policy, func(ctx context.Context, a resilience.Attempt) (string, error) {
		resp, err := s.llm.Chat(ctx, []domain.Message{{Role: "user", Content: prompt}}, domain.ChatOptions{
			Temperature: a.Temperature,
			MaxTokens:   s.maxTokens,
		})
		if err != nil {
			return "", fmt.Errorf("%w: %v", domain.ErrModelFailure, err)
		}
		text := strings.TrimSpace(resp.Content)
		if text == "" {
			return "", fmt.Errorf("%w: empty answer", domain.ErrModelFailure)
		}
		return text, nil
	}, func(err error) (string, error) {
		s.logger.Error(ctx, "Synthesis failed, returning fact list", err)
		return FallbackAnswer(query, listing, gaps), nil
	})

	followUps, err := s.FollowUpQuestions(ctx, query, answer)
	if err != nil {
		s.logger.Warn(ctx, "Follow-up question generation failed", map[string]any{"error": err.Error()})
		followUps = []string{}
	}

	if stats != nil {
		stats.AddPhase(domain.PhaseSynthesis, s.now().Sub(start), len(verified))
	}

	return Synthesis{
		Response:          answer,
		Sources:           sources,
		Confidence:        ConfidenceLabel(verified),
		FollowUpQuestions: followUps,
	}
}

// FollowUpQuestions asks the model for 3-4 questions the user might ask next
func (s *Synthesizer) FollowUpQuestions(ctx context.Context, query, answer string) ([]string, error) {
	prompt := fmt.Sprintf(followUpPrompt, query, answer)

	return resilience.Run(ctx, s.policy, func(ctx context.Context, a resilience.Attempt) ([]string, error) {
		resp, err := s.llm.Chat(ctx, []domain.Message{{Role: "user", Content: prompt}}, domain.ChatOptions{
			Temperature: a.Temperature,
			MaxTokens:   500,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrModelFailure, err)
		}
		list, err := parser.ParseStringList(resp.Content)
		if err != nil {
			return nil, err
		}

		var out []string
		for _, q := range list {
			if q = strings.TrimSpace(q); q != "" {
				out = append(out, q)
			}
			if len(out) == maxFollowUpQuestions {
				break
			}
		}
		if len(out) == 0 {
			return nil, fmt.Errorf("%w: no follow-up questions", domain.ErrParseFailure)
		}
		return out, nil
	}, resilience.Propagate[[]string])
}

// ConfidenceLabel grades the answer: 60% or more high facts is high, 40% or
// more low facts is low, anything else medium. No facts is low.
func ConfidenceLabel(verified []domain.VerifiedFact) domain.ConfidenceTier {
	if len(verified) == 0 {
		return domain.ConfidenceLow
	}
	var high, low int
	for _, f := range verified {
		switch f.Confidence {
		case domain.ConfidenceHigh:
			high++
		case domain.ConfidenceLow:
			low++
		}
	}
	n := float64(len(verified))
	switch {
	case float64(high)/n >= 0.6:
		return domain.ConfidenceHigh
	case float64(low)/n >= 0.4:
		return domain.ConfidenceLow
	default:
		return domain.ConfidenceMedium
	}
}

// CollectSources lists each source url once, best authority first
func CollectSources(verified []domain.VerifiedFact) []domain.SourceReference {
	seen := make(map[string]bool)
	var sources []domain.SourceReference
	for _, f := range verified {
		for _, src := range f.Sources {
			if src.URL == "" || seen[src.URL] {
				continue
			}
			seen[src.URL] = true
			sources = append(sources, src)
		}
	}
	sortSources(sources)
	return sources
}

// FormatCitedFacts numbers the facts and marks each with the 1-based
// positions of its sources in sources.
func FormatCitedFacts(verified []domain.VerifiedFact, sources []domain.SourceReference) string {
	index := make(map[string]int, len(sources))
	for i, src := range sources {
		index[src.URL] = i + 1
	}

	var b strings.Builder
	for i, f := range verified {
		fmt.Fprintf(&b, "%d. %s", i+1, f.Claim)
		if f.Value != "" && !strings.Contains(f.Claim, f.Value) {
			fmt.Fprintf(&b, " (%s)", f.Value)
		}
		b.WriteString(" ")
		for _, src := range f.Sources {
			if n, ok := index[src.URL]; ok {
				fmt.Fprintf(&b, "[%d]", n)
			}
		}
		fmt.Fprintf(&b, " confidence: %s\n", f.Confidence)
	}
	if len(verified) > 0 && len(sources) > 0 {
		b.WriteString("\nSources:\n")
		for i, src := range sources {
			fmt.Fprintf(&b, "[%d] %s - %s\n", i+1, firstNonEmpty(src.Title, src.Domain), src.URL)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// FallbackAnswer renders the cited fact listing as a markdown answer
func FallbackAnswer(query, listing string, gaps []domain.Gap) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## Answer\nAn answer to %q could not be written; the verified findings are listed below.\n\n", query)
	b.WriteString("## Key Findings\n")
	if strings.TrimSpace(listing) == "" {
		b.WriteString("No verified facts were found.\n")
	} else {
		b.WriteString(listing)
		b.WriteString("\n")
	}
	if len(gaps) > 0 {
		b.WriteString("\n## Conclusion\nOpen questions remain:\n")
		for _, g := range gaps {
			fmt.Fprintf(&b, "- %s\n", g.Description)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatGaps(gaps []domain.Gap) string {
	if len(gaps) == 0 {
		return "None identified."
	}
	var b strings.Builder
	for _, g := range gaps {
		fmt.Fprintf(&b, "- [%s] %s\n", g.Importance, g.Description)
	}
	return strings.TrimRight(b.String(), "\n")
}
