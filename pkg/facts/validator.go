// Package facts rejects candidate facts that are really markup or code and
// scores the ones that read as prose.
package facts

import (
	"strings"

	"github.com/ncolesummers/web-research-agent/pkg/domain"
)

// Candidate is a fact as proposed by the model, before validation
type Candidate struct {
	Claim      string
	Value      string
	Context    string
	Confidence *int
	Category   string
}

func (c Candidate) text() string {
	if c.Context == "" {
		return c.Claim
	}
	return c.Claim + " " + c.Context
}

func (c Candidate) normalizedCategory() string {
	return strings.ToLower(strings.TrimSpace(c.Category))
}

// Validate returns the name of the first rule that rejects c, or "" when c is accepted
func Validate(c Candidate) string {
	if strings.TrimSpace(c.Claim) == "" {
		return "empty"
	}
	for _, r := range rules {
		if r.Match(c) {
			return r.Name
		}
	}
	return ""
}

// IsValid reports whether c passes every rule
func IsValid(c Candidate) bool {
	return Validate(c) == ""
}

// Score rates a validated fact 0-100
func Score(c Candidate) int {
	score := defaultConfidence
	if c.Confidence != nil {
		score = *c.Confidence
		if score < lowConfidenceCutoff {
			score = lowConfidenceFloor
		}
	}

	claimLen := len([]rune(c.Claim))
	if claimLen > 50 {
		score += 5
	}
	if claimLen > 100 {
		score += 5
	}
	if len([]rune(strings.TrimSpace(c.Context))) >= substantialContext {
		score += 10
	}
	if strings.TrimSpace(c.Value) != "" {
		score += 10
	}

	category := c.normalizedCategory()
	switch {
	case vagueCategories[category]:
		score -= 5
	case concreteCategories[category]:
		score += 5
	}

	return clamp(score, 0, 100)
}

// Filter validates and scores candidates for one source page. Rejected
// candidates are returned by rule name for logging.
func Filter(candidates []Candidate, sourceURL string) ([]domain.ExtractedFact, map[string]int) {
	accepted := make([]domain.ExtractedFact, 0, len(candidates))
	rejected := make(map[string]int)
	for _, c := range candidates {
		if rule := Validate(c); rule != "" {
			rejected[rule]++
			continue
		}
		accepted = append(accepted, domain.ExtractedFact{
			Claim:      strings.TrimSpace(c.Claim),
			Value:      strings.TrimSpace(c.Value),
			Context:    strings.TrimSpace(c.Context),
			Confidence: Score(c),
			Category:   c.normalizedCategory(),
			SourceURL:  sourceURL,
		})
	}
	return accepted, rejected
}

func specialRatio(text string) float64 {
	total := 0
	special := 0
	for _, r := range text {
		total++
		if strings.ContainsRune(specialCharacters, r) {
			special++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(special) / float64(total)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
