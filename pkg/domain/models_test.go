package domain_test

import (
	"testing"
	"time"

	"github.com/ncolesummers/web-research-agent/pkg/domain"
)

func TestPhase(t *testing.T) {
	tests := []struct {
		name  string
		phase domain.Phase
		want  string
	}{
		{"Decomposition", domain.PhaseDecomposition, "decomposition"},
		{"Search", domain.PhaseSearch, "search"},
		{"Retrieval", domain.PhaseRetrieval, "retrieval"},
		{"Evaluation", domain.PhaseEvaluation, "evaluation"},
		{"GapAnalysis", domain.PhaseGapAnalysis, "gap_analysis"},
		{"FollowUp", domain.PhaseFollowUp, "follow_up"},
		{"Verification", domain.PhaseVerification, "verification"},
		{"Synthesis", domain.PhaseSynthesis, "synthesis"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := string(tt.phase); got != tt.want {
				t.Errorf("Phase = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestResearchStats_AddPhase(t *testing.T) {
	var stats domain.ResearchStats

	stats.AddPhase(domain.PhaseSearch, 1500*time.Millisecond, 6)
	stats.AddPhase(domain.PhaseRetrieval, 3*time.Second, 4)

	if len(stats.Phases) != 2 {
		t.Fatalf("len(Phases) = %d, want 2", len(stats.Phases))
	}

	p, ok := stats.Phase(domain.PhaseSearch)
	if !ok {
		t.Fatal("search phase not found")
	}
	if p.DurationMs() != 1500 {
		t.Errorf("DurationMs = %d, want 1500", p.DurationMs())
	}
	if p.ItemsProcessed != 6 {
		t.Errorf("ItemsProcessed = %d, want 6", p.ItemsProcessed)
	}

	if _, ok := stats.Phase(domain.PhaseSynthesis); ok {
		t.Error("synthesis phase should not be present")
	}
}

func TestDefaultDeepResearchConfig(t *testing.T) {
	cfg := domain.DefaultDeepResearchConfig()

	if cfg.MaxSubQuestions != 5 {
		t.Errorf("MaxSubQuestions = %d, want 5", cfg.MaxSubQuestions)
	}
	if cfg.MaxSearchesPerQuestion != 2 {
		t.Errorf("MaxSearchesPerQuestion = %d, want 2", cfg.MaxSearchesPerQuestion)
	}
	if cfg.MaxPagesToFetch != 10 {
		t.Errorf("MaxPagesToFetch = %d, want 10", cfg.MaxPagesToFetch)
	}
	if cfg.MaxFollowUpSearches != 3 {
		t.Errorf("MaxFollowUpSearches = %d, want 3", cfg.MaxFollowUpSearches)
	}
}
