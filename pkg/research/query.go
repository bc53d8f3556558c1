package research

import (
	"regexp"
	"strings"
)

// MaxQueryWords bounds the length of a search query
const MaxQueryWords = 8

var (
	yearToken   = regexp.MustCompile(`\b(?:19|20)\d{2}\b`)
	queryPunct  = regexp.MustCompile(`[^\p{L}\p{N}\s\-+.#$&']`)
	trailingDot = regexp.MustCompile(`[.']+$`)
)

var fillerWords = map[string]bool{
	"a": true, "an": true, "the": true, "is": true, "are": true, "was": true, "were": true,
	"what": true, "whats": true, "what's": true, "which": true, "who": true, "how": true, "why": true,
	"when": true, "where": true, "does": true, "do": true, "did": true, "can": true, "could": true,
	"should": true, "would": true, "will": true, "of": true, "for": true, "in": true, "on": true,
	"to": true, "and": true, "or": true, "with": true, "about": true, "tell": true, "me": true,
	"please": true, "i": true, "my": true, "you": true, "your": true, "there": true, "any": true,
	"some": true, "latest": true, "current": true, "currently": true, "recent": true, "recently": true,
	"new": true, "today": true, "now": true, "this": true, "that": true, "these": true, "those": true,
	"be": true, "it": true, "its": true, "find": true, "information": true, "info": true, "know": true,
}

// SanitizeQuery turns free text into a search-engine query: years and
// filler words are removed and at most MaxQueryWords words are kept.
func SanitizeQuery(text string) string {
	text = yearToken.ReplaceAllString(text, " ")
	text = queryPunct.ReplaceAllString(text, " ")

	var kept, fallback []string
	for _, w := range strings.Fields(text) {
		w = trailingDot.ReplaceAllString(w, "")
		if w == "" || yearToken.MatchString(w) {
			continue
		}
		fallback = append(fallback, w)
		if fillerWords[strings.ToLower(w)] {
			continue
		}
		kept = append(kept, w)
	}

	// A question made only of filler words still needs some query.
	if len(kept) == 0 {
		kept = fallback
	}
	if len(kept) > MaxQueryWords {
		kept = kept[:MaxQueryWords]
	}
	return strings.Join(kept, " ")
}

// keywords returns the lower-cased tokens of s longer than three characters
func keywords(s string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, w := range strings.Fields(strings.ToLower(queryPunct.ReplaceAllString(s, " "))) {
		w = strings.Trim(w, ".-'")
		if len(w) <= 3 || seen[w] {
			continue
		}
		seen[w] = true
		out = append(out, w)
	}
	return out
}
