package research

import (
	"regexp"
	"sort"
	"strings"

	"github.com/ncolesummers/web-research-agent/pkg/domain"
)

// similarityThreshold is the token Jaccard index at which two claims are merged
const similarityThreshold = 0.6

var claimPunct = regexp.MustCompile(`[^\p{L}\p{N}\s$%.]`)

type sourcedFact struct {
	fact   domain.ExtractedFact
	source domain.SourceReference
	key    string
	tokens map[string]bool
}

// CrossReference merges facts that state the same claim into verified facts.
// Every input fact ends up in exactly one verified fact, and the result does
// not depend on the order of evals.
func CrossReference(evals []domain.SourceEvaluation) []domain.VerifiedFact {
	var all []sourcedFact
	for _, ev := range evals {
		ref := sourceReference(ev)
		for _, f := range ev.Facts {
			key := normalizeClaim(f.Claim)
			if key == "" {
				continue
			}
			all = append(all, sourcedFact{fact: f, source: ref, key: key, tokens: claimTokens(key + " " + strings.ToLower(f.Value))})
		}
	}

	sort.SliceStable(all, func(i, j int) bool {
		a, b := all[i], all[j]
		if a.key != b.key {
			return a.key < b.key
		}
		if a.source.URL != b.source.URL {
			return a.source.URL < b.source.URL
		}
		if a.fact.Value != b.fact.Value {
			return a.fact.Value < b.fact.Value
		}
		if a.fact.Confidence != b.fact.Confidence {
			return a.fact.Confidence > b.fact.Confidence
		}
		return a.fact.Claim < b.fact.Claim
	})

	assigned := make([]bool, len(all))
	var verified []domain.VerifiedFact
	for i := range all {
		if assigned[i] {
			continue
		}
		assigned[i] = true
		cluster := []sourcedFact{all[i]}
		for j := i + 1; j < len(all); j++ {
			if assigned[j] {
				continue
			}
			if jaccard(all[i].tokens, all[j].tokens) >= similarityThreshold {
				assigned[j] = true
				cluster = append(cluster, all[j])
			}
		}
		verified = append(verified, mergeCluster(cluster))
	}

	sort.SliceStable(verified, func(i, j int) bool {
		a, b := verified[i], verified[j]
		if tierRank[a.Confidence] != tierRank[b.Confidence] {
			return tierRank[a.Confidence] < tierRank[b.Confidence]
		}
		if len(a.Sources) != len(b.Sources) {
			return len(a.Sources) > len(b.Sources)
		}
		return a.Claim < b.Claim
	})
	return verified
}

var tierRank = map[domain.ConfidenceTier]int{
	domain.ConfidenceHigh:   0,
	domain.ConfidenceMedium: 1,
	domain.ConfidenceLow:    2,
}

func mergeCluster(cluster []sourcedFact) domain.VerifiedFact {
	best := cluster[0]
	total := 0
	seen := make(map[string]bool)
	var sources []domain.SourceReference
	for _, sf := range cluster {
		total += sf.fact.Confidence
		if sf.fact.Confidence > best.fact.Confidence {
			best = sf
		}
		if !seen[sf.source.URL] {
			seen[sf.source.URL] = true
			sources = append(sources, sf.source)
		}
	}
	sortSources(sources)

	avg := total / len(cluster)
	return domain.VerifiedFact{
		Claim:      strings.TrimSpace(best.fact.Claim),
		Value:      strings.TrimSpace(best.fact.Value),
		Confidence: tierFor(len(sources), avg),
		Sources:    sources,
	}
}

// tierFor grades agreement: three sources, or two with strong facts, are high
func tierFor(sources, avgConfidence int) domain.ConfidenceTier {
	switch {
	case sources >= 3 || (sources >= 2 && avgConfidence >= 70):
		return domain.ConfidenceHigh
	case sources >= 2 || avgConfidence >= 75:
		return domain.ConfidenceMedium
	default:
		return domain.ConfidenceLow
	}
}

func sourceReference(ev domain.SourceEvaluation) domain.SourceReference {
	ref := domain.SourceReference{
		URL:            ev.URL,
		Domain:         ev.Domain,
		AuthorityScore: ev.AuthorityScore,
	}
	if ev.Content != nil {
		ref.Title = ev.Content.Title
		if ref.URL == "" {
			ref.URL = ev.Content.URL
		}
	}
	return ref
}

// sortSources orders by authority, best first, then url
func sortSources(sources []domain.SourceReference) {
	sort.SliceStable(sources, func(i, j int) bool {
		if sources[i].AuthorityScore != sources[j].AuthorityScore {
			return sources[i].AuthorityScore > sources[j].AuthorityScore
		}
		return sources[i].URL < sources[j].URL
	})
}

func normalizeClaim(claim string) string {
	claim = strings.ToLower(claim)
	claim = claimPunct.ReplaceAllString(claim, " ")
	return strings.Join(strings.Fields(strings.TrimRight(claim, ". ")), " ")
}

func claimTokens(s string) map[string]bool {
	tokens := make(map[string]bool)
	for _, w := range strings.Fields(s) {
		w = strings.Trim(w, ".")
		if w == "" || fillerWords[w] {
			continue
		}
		tokens[w] = true
	}
	return tokens
}

func jaccard(a, b map[string]bool) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	inter := 0
	for t := range a {
		if b[t] {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}
