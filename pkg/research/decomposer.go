// Package research implements the phases of a research run: decomposing a
// question, searching, retrieving and evaluating pages, finding gaps,
// cross-referencing facts and writing the cited answer.
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

// maxDecomposedQuestions caps what the model may return
const maxDecomposedQuestions = 8

var validCategories = map[domain.Category]bool{
	domain.CategoryPricing:    true,
	domain.CategoryFeatures:   true,
	domain.CategoryComparison: true,
	domain.CategoryFacts:      true,
	domain.CategoryOpinions:   true,
	domain.CategoryNews:       true,
}

var validPriorities = map[domain.Priority]bool{
	domain.PriorityHigh:   true,
	domain.PriorityMedium: true,
	domain.PriorityLow:    true,
}

// Decomposer splits a question into searchable sub-questions
type Decomposer struct {
	llm       domain.LLMClient
	policy    resilience.AttemptPolicy
	maxTokens int
	logger    observability.Logger
}

// NewDecomposer creates a Decomposer
func NewDecomposer(llm domain.LLMClient, policy resilience.AttemptPolicy, logger observability.Logger) *Decomposer {
	return &Decomposer{llm: llm, policy: policy, maxTokens: 1500, logger: logger}
}

// Decompose returns sub-questions in the order the model gave them. It never
// fails: after the last attempt it falls back to two sub-questions built
// from the question itself.
func (d *Decomposer) Decompose(ctx context.Context, query string) []domain.SubQuestion {
	prompt := fmt.Sprintf(decompositionPrompt, query)

	list, _ := resilience.Run(ctx, d.policy, func(ctx context.Context, a resilience.Attempt) ([]domain.SubQuestion, error) {
		resp, err := d.llm.Chat(ctx, []domain.Message{{Role: "user", Content: prompt}}, domain.ChatOptions{
			Temperature: a.Temperature,
			MaxTokens:   d.maxTokens,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrModelFailure, err)
		}

		raw, err := parser.ParseSubQuestions(resp.Content)
		if err != nil {
			d.logger.Warn(ctx, "Sub-question response could not be parsed", map[string]any{
				"attempt": a.Number,
				"error":   err.Error(),
			})
			return nil, err
		}

		list := normalizeSubQuestions(raw)
		if len(list) == 0 {
			return nil, fmt.Errorf("%w: no usable sub-questions", domain.ErrParseFailure)
		}
		return list, nil
	}, func(err error) ([]domain.SubQuestion, error) {
		d.logger.Error(ctx, "Decomposition failed, using fallback sub-questions", err)
		return FallbackSubQuestions(query), nil
	})

	return list
}

func normalizeSubQuestions(raw []parser.RawSubQuestion) []domain.SubQuestion {
	seen := make(map[string]bool)
	out := make([]domain.SubQuestion, 0, len(raw))
	for _, r := range raw {
		question := strings.TrimSpace(r.Question)
		if question == "" {
			continue
		}

		id := strings.TrimSpace(string(r.ID))
		if id == "" || seen[id] {
			id = fmt.Sprintf("sq%d", len(out)+1)
		}
		seen[id] = true

		category := domain.Category(strings.ToLower(strings.TrimSpace(r.Category)))
		if !validCategories[category] {
			category = domain.CategoryFacts
		}
		priority := domain.Priority(strings.ToLower(strings.TrimSpace(r.Priority)))
		if !validPriorities[priority] {
			priority = domain.PriorityMedium
		}

		search := SanitizeQuery(r.SearchQuery)
		if search == "" {
			search = SanitizeQuery(question)
		}

		out = append(out, domain.SubQuestion{
			ID:          id,
			Question:    question,
			Category:    category,
			Priority:    priority,
			SearchQuery: search,
		})
		if len(out) == maxDecomposedQuestions {
			break
		}
	}
	return out
}

// FallbackSubQuestions derives two sub-questions directly from query
func FallbackSubQuestions(query string) []domain.SubQuestion {
	base := SanitizeQuery(query)
	return []domain.SubQuestion{
		{
			ID:          "1",
			Question:    query,
			Category:    domain.CategoryFacts,
			Priority:    domain.PriorityHigh,
			SearchQuery: base,
		},
		{
			ID:          "2",
			Question:    fmt.Sprintf("What do recent reviews and news say about %s?", strings.TrimRight(query, "?. ")),
			Category:    domain.CategoryNews,
			Priority:    domain.PriorityMedium,
			SearchQuery: SanitizeQuery(base + " review"),
		},
	}
}
