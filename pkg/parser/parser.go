// Package parser recovers structured data from free-text model output.
//
// Models wrap JSON in markdown fences, prepend commentary, leave trailing
// commas and get cut off mid-array when they hit the token budget. Unmarshal
// tries a fixed sequence of repairs before giving up; the shape-specific
// helpers (ParseFacts, ParseGaps) additionally fall back to pulling individual
// objects out of the text with regular expressions.
package parser

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/ncolesummers/web-research-agent/pkg/domain"
)

var (
	fencePattern         = regexp.MustCompile("(?s)```(?:json|JSON)?\\s*(.*?)```")
	trailingCommaPattern = regexp.MustCompile(`,\s*([}\]])`)
	smartQuoteReplacer   = strings.NewReplacer("“", `"`, "”", `"`, "‘", "'", "’", "'")
)

// repair is one candidate transformation of raw model output
type repair struct {
	name string
	fn   func(string) (string, bool)
}

// repairs run in order; the first candidate that unmarshals wins
var repairs = []repair{
	{"as-is", func(s string) (string, bool) { return s, true }},
	{"strip-fences", stripFences},
	{"balanced-substring", func(s string) (string, bool) { return balancedSubstring(stripFencesOrSelf(s)) }},
	{"trailing-commas", func(s string) (string, bool) {
		b, ok := balancedSubstring(stripFencesOrSelf(s))
		if !ok {
			return "", false
		}
		return removeTrailingCommas(smartQuoteReplacer.Replace(b)), true
	}},
	{"close-truncated", func(s string) (string, bool) {
		return closeTruncated(removeTrailingCommas(stripFencesOrSelf(s)))
	}},
}

// Unmarshal decodes model output into v, applying repairs until one parses.
// The returned error wraps domain.ErrParseFailure.
func Unmarshal(raw string, v any) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fmt.Errorf("empty model output: %w", domain.ErrParseFailure)
	}

	var lastErr error
	for _, r := range repairs {
		candidate, ok := r.fn(raw)
		if !ok {
			continue
		}
		candidate = strings.TrimSpace(candidate)
		if candidate == "" {
			continue
		}
		if err := json.Unmarshal([]byte(candidate), v); err != nil {
			lastErr = err
			continue
		}
		return nil
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("no JSON value found")
	}
	return fmt.Errorf("%w: %v", domain.ErrParseFailure, lastErr)
}

// ExtractJSON returns the repaired JSON text of raw without decoding it into a type
func ExtractJSON(raw string) (string, error) {
	var msg json.RawMessage
	if err := Unmarshal(raw, &msg); err != nil {
		return "", err
	}
	return string(msg), nil
}

func stripFences(s string) (string, bool) {
	m := fencePattern.FindStringSubmatch(s)
	if m == nil {
		// An opening fence with no closing one: the response was truncated.
		if idx := strings.Index(s, "```"); idx >= 0 {
			rest := s[idx+3:]
			rest = strings.TrimPrefix(rest, "json")
			rest = strings.TrimPrefix(rest, "JSON")
			return rest, true
		}
		return "", false
	}
	return m[1], true
}

func stripFencesOrSelf(s string) string {
	if out, ok := stripFences(s); ok {
		return out
	}
	return s
}

func removeTrailingCommas(s string) string {
	return trailingCommaPattern.ReplaceAllString(s, "$1")
}

// firstOpener returns the index of the first '{' or '['
func firstOpener(s string) int {
	obj := strings.IndexByte(s, '{')
	arr := strings.IndexByte(s, '[')
	switch {
	case obj < 0:
		return arr
	case arr < 0:
		return obj
	case obj < arr:
		return obj
	default:
		return arr
	}
}

// balancedSubstring isolates the first complete JSON object or array in s,
// skipping braces that appear inside string literals.
func balancedSubstring(s string) (string, bool) {
	start := firstOpener(s)
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{', '[':
			depth++
		case '}', ']':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}

// closeTruncated repairs JSON that was cut off part way through: it cuts
// back to the last point where a nested object or array closed and then
// appends the closers still open at that point.
func closeTruncated(s string) (string, bool) {
	start := firstOpener(s)
	if start < 0 {
		return "", false
	}

	type checkpoint struct {
		end   int
		stack []byte
	}

	var stack []byte
	var last *checkpoint
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{', '[':
			stack = append(stack, c)
		case '}', ']':
			if len(stack) == 0 {
				return "", false
			}
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				// Complete value; nothing to repair.
				return s[start : i+1], true
			}
			last = &checkpoint{end: i + 1, stack: append([]byte(nil), stack...)}
		}
	}

	if last == nil {
		return "", false
	}

	var buf bytes.Buffer
	buf.WriteString(strings.TrimRight(s[start:last.end], " \t\r\n,"))
	for i := len(last.stack) - 1; i >= 0; i-- {
		if last.stack[i] == '{' {
			buf.WriteByte('}')
		} else {
			buf.WriteByte(']')
		}
	}
	return buf.String(), true
}
