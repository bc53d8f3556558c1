// Package workflow runs the research pipeline phase by phase.
package workflow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ncolesummers/web-research-agent/pkg/domain"
	"github.com/ncolesummers/web-research-agent/pkg/observability"
	"github.com/ncolesummers/web-research-agent/pkg/research"
)

// followUpPagesPerGap bounds how many new pages one critical gap may pull in
const followUpPagesPerGap = 2

// Decomposer splits the user's question into sub-questions
type Decomposer interface {
	Decompose(ctx context.Context, query string) []domain.SubQuestion
}

// Searcher searches the web for each sub-question
type Searcher interface {
	Search(ctx context.Context, questions []domain.SubQuestion, perQuestion int) research.SearchOutcome
}

// Retriever fetches and extracts candidate pages
type Retriever interface {
	Retrieve(ctx context.Context, items []domain.SearchResultItem, maxPages int) []*domain.ExtractedContent
}

// Evaluator scores pages and extracts their facts
type Evaluator interface {
	Evaluate(ctx context.Context, pages []*domain.ExtractedContent, questions []domain.SubQuestion) []domain.SourceEvaluation
}

// GapAnalyzer finds missing or conflicting information
type GapAnalyzer interface {
	Analyze(ctx context.Context, query string, questions []domain.SubQuestion, evals []domain.SourceEvaluation) []domain.Gap
}

// Synthesizer writes the final answer and records its own phase stat
type Synthesizer interface {
	Synthesize(ctx context.Context, query string, verified []domain.VerifiedFact, gaps []domain.Gap, stats *domain.ResearchStats) research.Synthesis
}

// Components are the pipeline stages a ResearchGraph drives
type Components struct {
	Decomposer  Decomposer
	Searcher    Searcher
	Retriever   Retriever
	Evaluator   Evaluator
	Gaps        GapAnalyzer
	Synthesizer Synthesizer
}

func (c Components) validate() error {
	checks := []struct {
		name    string
		missing bool
	}{
		{"decomposer", c.Decomposer == nil},
		{"searcher", c.Searcher == nil},
		{"retriever", c.Retriever == nil},
		{"evaluator", c.Evaluator == nil},
		{"gap analyzer", c.Gaps == nil},
		{"synthesizer", c.Synthesizer == nil},
	}
	for _, ch := range checks {
		if ch.missing {
			return fmt.Errorf("%s is required", ch.name)
		}
	}
	return nil
}

// ResearchGraph runs Decomposition, Search, Retrieval, Evaluation, Gap
// Analysis, an optional Follow-up, Verification and Synthesis in order
type ResearchGraph struct {
	config     domain.DeepResearchConfig
	components Components
	telemetry  *observability.Telemetry
	metrics    *observability.Metrics
	logger     observability.Logger
	now        func() time.Time
}

// Option configures a ResearchGraph
type Option func(*ResearchGraph)

// WithTelemetry wraps every phase in a workflow.node span and records metrics
func WithTelemetry(t *observability.Telemetry) Option {
	return func(rg *ResearchGraph) {
		rg.telemetry = t
		if t != nil {
			rg.metrics = t.Metrics()
		}
	}
}

// WithLogger replaces the default structured logger
func WithLogger(l observability.Logger) Option {
	return func(rg *ResearchGraph) { rg.logger = l }
}

// WithClock replaces time.Now for phase timing
func WithClock(now func() time.Time) Option {
	return func(rg *ResearchGraph) { rg.now = now }
}

// NewResearchGraph creates a new research workflow graph
func NewResearchGraph(cfg domain.DeepResearchConfig, components Components, opts ...Option) (*ResearchGraph, error) {
	if err := components.validate(); err != nil {
		return nil, err
	}
	if cfg.MaxSubQuestions < 1 || cfg.MaxSearchesPerQuestion < 1 || cfg.MaxPagesToFetch < 1 {
		return nil, fmt.Errorf("research limits must be at least 1: %+v", cfg)
	}

	rg := &ResearchGraph{
		config:     cfg,
		components: components,
		logger:     observability.NewStructuredLogger("research_graph"),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(rg)
	}
	return rg, nil
}

// run holds the working set of one Execute call
type run struct {
	query     string
	questions []domain.SubQuestion
	pages     []*domain.ExtractedContent
	evals     []domain.SourceEvaluation
	gaps      []domain.Gap
	verified  []domain.VerifiedFact
	synthesis research.Synthesis
	stats     domain.ResearchStats
}

// Execute runs the research workflow. Partial failures inside a phase only
// shrink the result; an error is returned for an empty query, a cancelled
// context, or a phase that panicked.
func (rg *ResearchGraph) Execute(ctx context.Context, query string) (result *domain.ResearchResult, err error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("query is required")
	}

	id := uuid.NewString()
	start := rg.now()

	if rg.telemetry != nil {
		var span trace.Span
		ctx, span = rg.telemetry.StartResearchRequest(ctx, id, query)
		defer func() {
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
			} else {
				span.SetStatus(codes.Ok, "")
				span.SetAttributes(
					attribute.Int("research.pages_analyzed", result.Stats.PagesAnalyzed),
					attribute.Int("research.facts_verified", result.Stats.FactsVerified),
				)
			}
			span.End()
		}()
	}
	if rg.metrics != nil {
		rg.metrics.RecordResearchRequest(ctx)
		defer func() {
			status := "success"
			if err != nil {
				status = "failed"
			}
			rg.metrics.RecordResearchComplete(ctx, time.Since(start), status)
		}()
	}

	rg.logger.Info(ctx, "Research started", map[string]any{"request_id": id, "query": query})

	r := &run{query: query}
	steps := []func(context.Context, *run) error{
		rg.decompose,
		rg.search,
		rg.evaluate,
		rg.analyzeGaps,
		rg.followUp,
		rg.verify,
		rg.synthesize,
	}
	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("research cancelled: %w", err)
		}
		if err := step(ctx, r); err != nil {
			return nil, err
		}
	}

	r.stats.PagesAnalyzed = len(r.evals)
	r.stats.FactsVerified = len(r.verified)
	for _, ev := range r.evals {
		r.stats.FactsExtracted += len(ev.Facts)
	}
	r.stats.TotalDuration = rg.now().Sub(start)
	reported := research.ReportableGaps(r.gaps)

	rg.logger.Info(ctx, "Research complete", map[string]any{
		"request_id":     id,
		"pages_analyzed": r.stats.PagesAnalyzed,
		"facts_verified": r.stats.FactsVerified,
		"gaps":           len(reported),
		"confidence":     string(r.synthesis.Confidence),
		"duration_ms":    r.stats.TotalDuration.Milliseconds(),
	})

	return &domain.ResearchResult{
		ID:                id,
		Query:             query,
		Response:          r.synthesis.Response,
		Sources:           r.synthesis.Sources,
		VerifiedFacts:     r.verified,
		Gaps:              reported,
		Confidence:        r.synthesis.Confidence,
		FollowUpQuestions: r.synthesis.FollowUpQuestions,
		Stats:             r.stats,
		GeneratedAt:       rg.now(),
	}, nil
}

// Node implementations

func (rg *ResearchGraph) decompose(ctx context.Context, r *run) error {
	return rg.runPhase(ctx, r, domain.PhaseDecomposition, func(ctx context.Context) (int, error) {
		questions := rg.components.Decomposer.Decompose(ctx, r.query)
		if len(questions) > rg.config.MaxSubQuestions {
			questions = questions[:rg.config.MaxSubQuestions]
		}
		r.questions = questions
		return len(questions), nil
	})
}

// search covers both the Search and Retrieval phases
func (rg *ResearchGraph) search(ctx context.Context, r *run) error {
	var items []domain.SearchResultItem

	err := rg.runPhase(ctx, r, domain.PhaseSearch, func(ctx context.Context) (int, error) {
		outcome := rg.components.Searcher.Search(ctx, r.questions, rg.config.MaxSearchesPerQuestion)
		r.stats.TotalSearches = outcome.ResultCount()
		items = research.FlattenResults(r.questions, outcome.Results)

		rg.logger.Debug(ctx, "Search phase finished", map[string]any{
			"queries_issued": outcome.Issued,
			"results":        r.stats.TotalSearches,
			"unique_urls":    len(items),
		})
		return r.stats.TotalSearches, nil
	})
	if err != nil {
		return err
	}

	return rg.runPhase(ctx, r, domain.PhaseRetrieval, func(ctx context.Context) (int, error) {
		r.pages = rg.components.Retriever.Retrieve(ctx, items, rg.config.MaxPagesToFetch)
		return len(r.pages), nil
	})
}

func (rg *ResearchGraph) evaluate(ctx context.Context, r *run) error {
	return rg.runPhase(ctx, r, domain.PhaseEvaluation, func(ctx context.Context) (int, error) {
		r.evals = rg.components.Evaluator.Evaluate(ctx, r.pages, r.questions)
		return len(r.evals), nil
	})
}

func (rg *ResearchGraph) analyzeGaps(ctx context.Context, r *run) error {
	return rg.runPhase(ctx, r, domain.PhaseGapAnalysis, func(ctx context.Context) (int, error) {
		r.gaps = rg.components.Gaps.Analyze(ctx, r.query, r.questions, r.evals)
		return len(r.gaps), nil
	})
}

// followUp searches once more for critical gaps, but only when there are few
// enough of them to be worth chasing
func (rg *ResearchGraph) followUp(ctx context.Context, r *run) error {
	critical := research.CriticalGaps(r.gaps)
	if len(critical) == 0 || len(critical) > rg.config.MaxFollowUpSearches {
		if len(critical) > 0 {
			rg.logger.Info(ctx, "Too many critical gaps for follow-up searches", map[string]any{
				"critical": len(critical),
				"limit":    rg.config.MaxFollowUpSearches,
			})
		}
		return nil
	}

	return rg.runPhase(ctx, r, domain.PhaseFollowUp, func(ctx context.Context) (int, error) {
		questions := FollowUpQuestions(critical)
		outcome := rg.components.Searcher.Search(ctx, questions, 1)
		r.stats.FollowUpSearches = outcome.ResultCount()
		r.stats.TotalSearches += r.stats.FollowUpSearches

		fetched := make(map[string]bool, len(r.pages))
		for _, p := range r.pages {
			fetched[research.NormalizeURL(p.URL)] = true
		}
		var items []domain.SearchResultItem
		for _, item := range research.FlattenResults(questions, outcome.Results) {
			if !fetched[research.NormalizeURL(item.URL)] {
				items = append(items, item)
			}
		}

		pages := rg.components.Retriever.Retrieve(ctx, items, followUpPagesPerGap*len(questions))
		if len(pages) == 0 {
			return 0, nil
		}
		evals := rg.components.Evaluator.Evaluate(ctx, pages, questions)

		r.pages = append(r.pages, pages...)
		r.evals = append(r.evals, evals...)
		return len(evals), nil
	})
}

func (rg *ResearchGraph) verify(ctx context.Context, r *run) error {
	return rg.runPhase(ctx, r, domain.PhaseVerification, func(ctx context.Context) (int, error) {
		r.verified = research.CrossReference(r.evals)
		return len(r.verified), nil
	})
}

// synthesize is instrumented but not timed here; the synthesizer appends
// its own phase stat
func (rg *ResearchGraph) synthesize(ctx context.Context, r *run) error {
	_, _, err := rg.instrument(ctx, domain.PhaseSynthesis, func(ctx context.Context) (int, error) {
		r.synthesis = rg.components.Synthesizer.Synthesize(ctx, r.query, r.verified, r.gaps, &r.stats)
		return len(r.verified), nil
	})
	return err
}

// runPhase runs fn and records its stat, even when fn fails
func (rg *ResearchGraph) runPhase(ctx context.Context, r *run, phase domain.Phase, fn func(context.Context) (int, error)) error {
	items, duration, err := rg.instrument(ctx, phase, fn)
	r.stats.AddPhase(phase, duration, items)
	return err
}

func (rg *ResearchGraph) instrument(ctx context.Context, phase domain.Phase, fn func(context.Context) (int, error)) (int, time.Duration, error) {
	guarded := func(ctx context.Context) (items int, err error) {
		defer func() {
			if p := recover(); p != nil {
				err = fmt.Errorf("%s phase panicked: %v", phase, p)
			}
		}()
		return fn(ctx)
	}

	var (
		items    int
		duration time.Duration
		err      error
	)
	if rg.telemetry != nil {
		items, duration, err = rg.telemetry.InstrumentWorkflowNode(ctx, string(phase), guarded)
	} else {
		start := rg.now()
		items, err = guarded(ctx)
		duration = rg.now().Sub(start)
	}

	if err != nil {
		rg.logger.Error(ctx, "Research phase failed", err, map[string]any{"phase": string(phase)})
		return items, duration, fmt.Errorf("%s phase failed: %w", phase, err)
	}
	return items, duration, nil
}

// FollowUpQuestions turns critical gaps into single-search sub-questions
func FollowUpQuestions(gaps []domain.Gap) []domain.SubQuestion {
	out := make([]domain.SubQuestion, 0, len(gaps))
	for i, g := range gaps {
		search := strings.TrimSpace(g.SuggestedQuery)
		if search == "" {
			search = research.SanitizeQuery(g.Description)
		}
		out = append(out, domain.SubQuestion{
			ID:          fmt.Sprintf("followup-%d", i+1),
			Question:    g.Description,
			Category:    domain.CategoryFacts,
			Priority:    domain.PriorityHigh,
			SearchQuery: search,
		})
	}
	return out
}
