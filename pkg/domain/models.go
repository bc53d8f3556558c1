package domain

import (
	"time"
)

// Category classifies what a sub-question is asking about
type Category string

const (
	CategoryPricing    Category = "pricing"
	CategoryFeatures   Category = "features"
	CategoryComparison Category = "comparison"
	CategoryFacts      Category = "facts"
	CategoryOpinions   Category = "opinions"
	CategoryNews       Category = "news"
)

// Priority ranks a sub-question
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Importance ranks a knowledge gap. Only critical gaps spawn follow-up searches.
type Importance string

const (
	ImportanceCritical   Importance = "critical"
	ImportanceImportant  Importance = "important"
	ImportanceNiceToHave Importance = "nice-to-have"
)

// ConfidenceTier is the aggregate confidence of a verified fact or answer
type ConfidenceTier string

const (
	ConfidenceHigh   ConfidenceTier = "high"
	ConfidenceMedium ConfidenceTier = "medium"
	ConfidenceLow    ConfidenceTier = "low"
)

// Gap sub-question ids that do not refer to a decomposed sub-question
const (
	GapNew      = "new"
	GapConflict = "conflict"
)

// Phase names recorded in ResearchStats
type Phase string

const (
	PhaseDecomposition Phase = "decomposition"
	PhaseSearch        Phase = "search"
	PhaseRetrieval     Phase = "retrieval"
	PhaseEvaluation    Phase = "evaluation"
	PhaseGapAnalysis   Phase = "gap_analysis"
	PhaseFollowUp      Phase = "follow_up"
	PhaseVerification  Phase = "verification"
	PhaseSynthesis     Phase = "synthesis"
)

// SubQuestion is one independently searchable facet of the user's question.
// It is immutable once created by the decomposer.
type SubQuestion struct {
	ID          string   `json:"id"`
	Question    string   `json:"question"`
	Category    Category `json:"category"`
	Priority    Priority `json:"priority"`
	SearchQuery string   `json:"search_query"`
}

// SearchResultItem is a single search-engine hit
type SearchResultItem struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// ExtractedContent is the cleaned text of a fetched page
type ExtractedContent struct {
	URL         string     `json:"url"`
	Title       string     `json:"title"`
	Domain      string     `json:"domain"`
	PublishDate *time.Time `json:"publish_date,omitempty"`
	MainText    string     `json:"main_text"`
	Tables      []string   `json:"tables,omitempty"`
	Headings    []string   `json:"headings,omitempty"`
	WordCount   int        `json:"word_count"`
	FetchedAt   time.Time  `json:"fetched_at"`
}

// ExtractedFact is a candidate claim pulled from a page by the model
type ExtractedFact struct {
	Claim      string `json:"claim"`
	Value      string `json:"value,omitempty"`
	Context    string `json:"context,omitempty"`
	Confidence int    `json:"confidence"`
	Category   string `json:"category"`
	SourceURL  string `json:"source_url"`
}

// SourceEvaluation holds the scores and validated facts of one page
type SourceEvaluation struct {
	URL            string            `json:"url"`
	Domain         string            `json:"domain"`
	AuthorityScore int               `json:"authority_score"`
	RecencyScore   int               `json:"recency_score"`
	RelevanceScore int               `json:"relevance_score"`
	OverallScore   int               `json:"overall_score"`
	Facts          []ExtractedFact   `json:"facts"`
	Content        *ExtractedContent `json:"content"`
}

// Gap is a piece of information judged missing or unresolved
type Gap struct {
	SubQuestionID  string     `json:"sub_question_id"`
	Description    string     `json:"description"`
	SuggestedQuery string     `json:"suggested_query"`
	Importance     Importance `json:"importance"`
}

// SourceReference identifies a page contributing to a verified fact
type SourceReference struct {
	URL            string `json:"url"`
	Title          string `json:"title"`
	Domain         string `json:"domain"`
	AuthorityScore int    `json:"authority_score"`
}

// VerifiedFact is a claim merged across one or more sources. Sources is never empty.
type VerifiedFact struct {
	Claim      string            `json:"claim"`
	Value      string            `json:"value,omitempty"`
	Confidence ConfidenceTier    `json:"confidence"`
	Sources    []SourceReference `json:"sources"`
}

// PhaseStat records timing and volume of one pipeline phase
type PhaseStat struct {
	Name           Phase         `json:"name"`
	Duration       time.Duration `json:"duration"`
	ItemsProcessed int           `json:"items_processed"`
}

// DurationMs returns the phase duration in milliseconds
func (p PhaseStat) DurationMs() int64 {
	return p.Duration.Milliseconds()
}

// ResearchStats aggregates per-phase and total statistics of a run
type ResearchStats struct {
	Phases           []PhaseStat   `json:"phases"`
	TotalSearches    int           `json:"total_searches"`
	FollowUpSearches int           `json:"follow_up_searches"`
	PagesAnalyzed    int           `json:"pages_analyzed"`
	FactsExtracted   int           `json:"facts_extracted"`
	FactsVerified    int           `json:"facts_verified"`
	TotalDuration    time.Duration `json:"total_duration"`
}

// AddPhase appends a phase entry
func (s *ResearchStats) AddPhase(name Phase, duration time.Duration, items int) {
	s.Phases = append(s.Phases, PhaseStat{Name: name, Duration: duration, ItemsProcessed: items})
}

// Phase returns the stat recorded for name, if any
func (s *ResearchStats) Phase(name Phase) (PhaseStat, bool) {
	for _, p := range s.Phases {
		if p.Name == name {
			return p, true
		}
	}
	return PhaseStat{}, false
}

// ResearchResult is the final output of a research run
type ResearchResult struct {
	ID                string            `json:"id"`
	Query             string            `json:"query"`
	Response          string            `json:"response"`
	Sources           []SourceReference `json:"sources"`
	VerifiedFacts     []VerifiedFact    `json:"verified_facts"`
	Gaps              []Gap             `json:"gaps"`
	Confidence        ConfidenceTier    `json:"confidence"`
	FollowUpQuestions []string          `json:"follow_up_questions"`
	Stats             ResearchStats     `json:"stats"`
	GeneratedAt       time.Time         `json:"generated_at"`
}

// DeepResearchConfig bounds the volume of one research run
type DeepResearchConfig struct {
	MaxSubQuestions        int `json:"max_sub_questions" yaml:"max_sub_questions"`
	MaxSearchesPerQuestion int `json:"max_searches_per_question" yaml:"max_searches_per_question"`
	MaxPagesToFetch        int `json:"max_pages_to_fetch" yaml:"max_pages_to_fetch"`
	MaxFollowUpSearches    int `json:"max_follow_up_searches" yaml:"max_follow_up_searches"`
}

// DefaultDeepResearchConfig returns the standard research bounds
func DefaultDeepResearchConfig() DeepResearchConfig {
	return DeepResearchConfig{
		MaxSubQuestions:        5,
		MaxSearchesPerQuestion: 2,
		MaxPagesToFetch:        10,
		MaxFollowUpSearches:    3,
	}
}

// Message represents a chat message sent to the model
type Message struct {
	Role    string `json:"role"` // "system", "user", "assistant"
	Content string `json:"content"`
}
