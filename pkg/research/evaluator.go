package research

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/ncolesummers/web-research-agent/pkg/content"
	"github.com/ncolesummers/web-research-agent/pkg/domain"
	"github.com/ncolesummers/web-research-agent/pkg/facts"
	"github.com/ncolesummers/web-research-agent/pkg/observability"
	"github.com/ncolesummers/web-research-agent/pkg/parser"
	"github.com/ncolesummers/web-research-agent/pkg/resilience"
)

const (
	// MaxFactsPerPage caps what the model may extract from one page
	MaxFactsPerPage = 15

	// maxPromptContentChars bounds the page text placed in the extraction prompt
	maxPromptContentChars = 8000

	authorityWeight = 0.35
	recencyWeight   = 0.30
	relevanceWeight = 0.35

	neutralRecency = 50
)

var recencyBuckets = []struct {
	maxAge time.Duration
	score  int
}{
	{7 * 24 * time.Hour, 100},
	{30 * 24 * time.Hour, 90},
	{90 * 24 * time.Hour, 75},
	{180 * 24 * time.Hour, 60},
	{365 * 24 * time.Hour, 45},
	{730 * 24 * time.Hour, 30},
}

// Evaluator scores pages and extracts their facts
type Evaluator struct {
	llm       domain.LLMClient
	policy    resilience.AttemptPolicy
	authority *AuthorityTable
	batchSize int
	maxTokens int
	logger    observability.Logger
	metrics   *observability.Metrics
	now       func() time.Time
}

// EvaluatorOption configures an Evaluator
type EvaluatorOption func(*Evaluator)

// WithAuthorityTable replaces the built-in domain reputation table
func WithAuthorityTable(t *AuthorityTable) EvaluatorOption {
	return func(e *Evaluator) { e.authority = t }
}

// WithEvaluatorClock sets the time source for recency scoring
func WithEvaluatorClock(now func() time.Time) EvaluatorOption {
	return func(e *Evaluator) { e.now = now }
}

// WithEvaluatorMetrics records accepted and rejected fact counts
func WithEvaluatorMetrics(m *observability.Metrics) EvaluatorOption {
	return func(e *Evaluator) { e.metrics = m }
}

// WithBatchSize sets how many pages are evaluated concurrently
func WithBatchSize(n int) EvaluatorOption {
	return func(e *Evaluator) {
		if n > 0 {
			e.batchSize = n
		}
	}
}

// NewEvaluator creates an Evaluator with the built-in authority table and batches of 5
func NewEvaluator(llm domain.LLMClient, policy resilience.AttemptPolicy, logger observability.Logger, opts ...EvaluatorOption) *Evaluator {
	e := &Evaluator{
		llm:       llm,
		policy:    policy,
		authority: DefaultAuthorityTable(),
		batchSize: 5,
		maxTokens: 2000,
		logger:    logger,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate scores every page and returns the evaluations sorted by overall
// score, best first. A page whose evaluation fails is logged and left out.
func (e *Evaluator) Evaluate(ctx context.Context, pages []*domain.ExtractedContent, questions []domain.SubQuestion) []domain.SourceEvaluation {
	evals, failures := resilience.RunBatches(ctx, pages, e.batchSize, func(ctx context.Context, page *domain.ExtractedContent) (domain.SourceEvaluation, error) {
		return e.EvaluatePage(ctx, page, questions)
	})
	for _, f := range failures {
		e.logger.Warn(ctx, "Page evaluation failed", map[string]any{
			"url":   pages[f.Index].URL,
			"error": f.Err.Error(),
		})
	}

	sort.SliceStable(evals, func(i, j int) bool {
		return evals[i].OverallScore > evals[j].OverallScore
	})
	return evals
}

// EvaluatePage scores one page and extracts its validated facts
func (e *Evaluator) EvaluatePage(ctx context.Context, page *domain.ExtractedContent, questions []domain.SubQuestion) (domain.SourceEvaluation, error) {
	if page == nil {
		return domain.SourceEvaluation{}, fmt.Errorf("%w: nil page", domain.ErrInvalidContent)
	}

	domainName := page.Domain
	if domainName == "" {
		domainName = DomainOf(page.URL)
	}

	authority := e.authority.Score(domainName)
	recency := RecencyScore(page.PublishDate, e.now())
	relevance := RelevanceScore(page, questions)

	extracted := e.extractFacts(ctx, page, questions)

	return domain.SourceEvaluation{
		URL:            page.URL,
		Domain:         domainName,
		AuthorityScore: authority,
		RecencyScore:   recency,
		RelevanceScore: relevance,
		OverallScore:   OverallScore(authority, recency, relevance),
		Facts:          extracted,
		Content:        page,
	}, nil
}

// OverallScore weighs authority, recency and relevance 0.35/0.30/0.35
func OverallScore(authority, recency, relevance int) int {
	v := authorityWeight*float64(authority) + recencyWeight*float64(recency) + relevanceWeight*float64(relevance)
	return int(math.Round(v))
}

// RecencyScore decays with page age. An unknown date scores 50.
func RecencyScore(published *time.Time, now time.Time) int {
	if published == nil || published.IsZero() {
		return neutralRecency
	}
	age := now.Sub(*published)
	if age < 0 {
		age = 0
	}
	for _, b := range recencyBuckets {
		if age <= b.maxAge {
			return b.score
		}
	}
	return 15
}

// RelevanceScore combines the share of sub-questions whose search-query
// keywords are at least half present in the page (60%) with the keyword
// hits summed over every sub-question, capped at 10 (40%).
func RelevanceScore(page *domain.ExtractedContent, questions []domain.SubQuestion) int {
	if page == nil || len(questions) == 0 {
		return 0
	}
	text := strings.ToLower(page.Title + "\n" + page.MainText)

	covered, hits := 0, 0
	for _, sq := range questions {
		kws := keywords(sq.SearchQuery)
		if len(kws) == 0 {
			continue
		}
		found := 0
		for _, kw := range kws {
			if strings.Contains(text, kw) {
				found++
			}
		}
		hits += found
		if float64(found)/float64(len(kws)) >= 0.5 {
			covered++
		}
	}

	if hits > 10 {
		hits = 10
	}
	score := 60*float64(covered)/float64(len(questions)) + 40*float64(hits)/10
	return int(math.Round(score))
}

// extractFacts asks the model for facts and keeps the ones that pass
// validation. Exhausted retries yield no facts.
func (e *Evaluator) extractFacts(ctx context.Context, page *domain.ExtractedContent, questions []domain.SubQuestion) []domain.ExtractedFact {
	prompt := fmt.Sprintf(factExtractionPrompt,
		formatQuestions(questions),
		page.Title,
		page.URL,
		content.TruncateAtSentence(page.MainText, maxPromptContentChars),
		MaxFactsPerPage,
	)

	raw, _ := resilience.Run(ctx, e.policy, func(ctx context.Context, a resilience.Attempt) ([]parser.RawFact, error) {
		resp, err := e.llm.Chat(ctx, []domain.Message{{Role: "user", Content: prompt}}, domain.ChatOptions{
			Temperature: a.Temperature,
			MaxTokens:   e.maxTokens,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrModelFailure, err)
		}
		return parser.ParseFacts(resp.Content)
	}, func(err error) ([]parser.RawFact, error) {
		e.logger.Warn(ctx, "Fact extraction failed", map[string]any{
			"url":   page.URL,
			"error": err.Error(),
		})
		return nil, nil
	})

	if len(raw) > MaxFactsPerPage {
		raw = raw[:MaxFactsPerPage]
	}
	candidates := make([]facts.Candidate, 0, len(raw))
	for _, r := range raw {
		c := facts.Candidate{
			Claim:    r.Claim,
			Value:    string(r.Value),
			Context:  r.Context,
			Category: r.Category,
		}
		if r.Confidence.Present {
			v := r.Confidence.Value
			c.Confidence = &v
		}
		candidates = append(candidates, c)
	}

	accepted, rejected := facts.Filter(candidates, page.URL)
	if e.metrics != nil {
		e.metrics.RecordFacts(ctx, len(accepted), rejected)
	}
	if len(rejected) > 0 {
		e.logger.Debug(ctx, "Facts rejected", map[string]any{
			"url":      page.URL,
			"rejected": rejected,
		})
	}
	return accepted
}

func formatQuestions(questions []domain.SubQuestion) string {
	var b strings.Builder
	for _, sq := range questions {
		fmt.Fprintf(&b, "- [%s] %s\n", sq.ID, sq.Question)
	}
	return strings.TrimRight(b.String(), "\n")
}
