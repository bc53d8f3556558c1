package facts

import "regexp"

// Rule is one rejection check. Rules run in table order and the first
// match rejects the fact.
type Rule struct {
	Name  string
	Match func(c Candidate) bool
}

// codeSignatures are CSS, JavaScript, DOM and markup fragments that never
// appear in prose facts. CSS properties only count with a terminated value.
var codeSignatures = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(?:font-family|font-size|font-weight|line-height|text-align|text-decoration|background(?:-color)?|border(?:-radius)?|margin(?:-\w+)?|padding(?:-\w+)?|z-index|display|position|opacity|overflow|box-shadow|flex(?:-\w+)?|grid(?:-\w+)?)\s*:\s*[^;{}\n]{1,40}[;}]`),
	regexp.MustCompile(`(?i)\bcolor\s*:\s*(?:#[0-9a-f]{3,8}|rgba?\(|[a-z]+\s*;)`),
	regexp.MustCompile(`#[0-9a-fA-F]{3,8}\s*;`),
	regexp.MustCompile(`\b\d+(?:px|em|rem|vh|vw)\b\s*[;}]`),
	regexp.MustCompile(`[.#][\w-]+\s*\{`),
	regexp.MustCompile(`@(?:media|import|keyframes|font-face)\b`),
	regexp.MustCompile(`\bfunction\s*\w*\s*\(`),
	regexp.MustCompile(`=>\s*[{(]`),
	regexp.MustCompile(`\b(?:var|let|const)\s+\w+\s*=`),
	regexp.MustCompile(`\b(?:document|window)\.\w+`),
	regexp.MustCompile(`\b(?:getElementById|querySelector(?:All)?|addEventListener|innerHTML|console\.log)\b`),
	regexp.MustCompile(`</?(?:div|span|script|style|img|a|p|iframe|svg|button|input)\b[^>]*>`),
	regexp.MustCompile(`\b(?:className|onClick|useState|useEffect)\b`),
	regexp.MustCompile(`\{\{.*?\}\}`),
}

// suspiciousCategories are styling or configuration categories that models invent for markup noise
var suspiciousCategories = map[string]bool{
	"style": true, "styling": true, "css": true, "design": true, "layout": true,
	"config": true, "configuration": true, "code": true, "script": true, "ui": true,
	"html": true, "markup": true, "theme": true,
}

var codePunctuation = regexp.MustCompile(`[{};<>=]`)

// Length bounds on claim+context
const (
	minFactLength = 15
	maxFactLength = 500
)

// maxSpecialRatio is the share of special characters above which a fact reads as code
const maxSpecialRatio = 0.15

const specialCharacters = "{}[]<>;=|\\^~`#@*_$%&/"

var codeLikeStart = regexp.MustCompile(`^\s*(?:[.#@][\w-]+|[{}\[\]<(]|\w+\s*[:=]\s*[{\["']|\w+\(|//|/\*|import\s|export\s|return\s|if\s*\()`)

var whitespace = regexp.MustCompile(`\s`)

var functionWords = regexp.MustCompile(`(?i)\b(?:the|a|an|is|are|was|were|be|has|have|had|of|in|on|for|to|with|by|and|or|at|from|per|as|it|its|this|that|costs?|includes?|supports?)\b`)

// rules is the ordered rejection table
var rules = []Rule{
	{"code-signature", func(c Candidate) bool {
		text := c.text()
		for _, p := range codeSignatures {
			if p.MatchString(text) {
				return true
			}
		}
		return false
	}},
	{"suspicious-category", func(c Candidate) bool {
		return suspiciousCategories[c.normalizedCategory()] && codePunctuation.MatchString(c.text())
	}},
	{"length", func(c Candidate) bool {
		n := len([]rune(c.text()))
		return n < minFactLength || n > maxFactLength
	}},
	{"special-ratio", func(c Candidate) bool {
		return specialRatio(c.text()) > maxSpecialRatio
	}},
	{"code-like-start", func(c Candidate) bool {
		return codeLikeStart.MatchString(c.Claim)
	}},
	{"not-prose", func(c Candidate) bool {
		text := c.text()
		return !whitespace.MatchString(text) && !functionWords.MatchString(text)
	}},
}

// vagueCategories lose points; concreteCategories gain them
var (
	vagueCategories    = map[string]bool{"claim": true, "other": true}
	concreteCategories = map[string]bool{"pricing": true, "feature": true, "statistic": true, "date": true, "fact": true}
)

// Scoring constants
const (
	defaultConfidence   = 60
	lowConfidenceCutoff = 40
	lowConfidenceFloor  = 55
	substantialContext  = 20
)
