package parser

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/ncolesummers/web-research-agent/pkg/domain"
)

// FlexString decodes a JSON string, number or bool into a string.
// Models emit `"value": 20` and `"value": "$20"` interchangeably.
type FlexString string

// UnmarshalJSON implements json.Unmarshaler
func (f *FlexString) UnmarshalJSON(data []byte) error {
	data = []byte(strings.TrimSpace(string(data)))
	if len(data) == 0 || string(data) == "null" {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}
	*f = FlexString(strings.Trim(string(data), `"`))
	return nil
}

// FlexInt decodes a JSON number or numeric string. Present reports whether a value was supplied.
type FlexInt struct {
	Value   int
	Present bool
}

// UnmarshalJSON implements json.Unmarshaler
func (f *FlexInt) UnmarshalJSON(data []byte) error {
	s := strings.Trim(strings.TrimSpace(string(data)), `"`)
	if s == "" || s == "null" {
		*f = FlexInt{}
		return nil
	}
	v, err := strconv.ParseFloat(strings.TrimSuffix(s, "%"), 64)
	if err != nil {
		// Non-numeric confidence ("high") is treated as absent.
		*f = FlexInt{}
		return nil
	}
	*f = FlexInt{Value: int(v + 0.5), Present: true}
	return nil
}

// RawSubQuestion is a sub-question as emitted by the model
type RawSubQuestion struct {
	ID          FlexString `json:"id"`
	Question    string     `json:"question"`
	Category    string     `json:"category"`
	Priority    string     `json:"priority"`
	SearchQuery string     `json:"searchQuery"`
}

// RawFact is a fact as emitted by the model
type RawFact struct {
	Claim      string     `json:"claim"`
	Value      FlexString `json:"value"`
	Context    string     `json:"context"`
	Confidence FlexInt    `json:"confidence"`
	Category   string     `json:"category"`
}

// RawGap is a missing-information entry as emitted by the model
type RawGap struct {
	SubQuestionID  FlexString `json:"subQuestionId"`
	Description    string     `json:"description"`
	SuggestedQuery string     `json:"suggestedQuery"`
	Importance     string     `json:"importance"`
}

// RawConflict is an unresolved disagreement between sources
type RawConflict struct {
	Topic          string `json:"topic"`
	Description    string `json:"description"`
	SuggestedQuery string `json:"suggestedQuery"`
}

// GapResponse is the gap analysis payload
type GapResponse struct {
	Gaps      []RawGap      `json:"gaps"`
	Conflicts []RawConflict `json:"conflicts"`
}

// ParseSubQuestions decodes a decomposition response: either
// {"subQuestions": [...]} or a bare array.
func ParseSubQuestions(raw string) ([]RawSubQuestion, error) {
	msg, err := ExtractJSON(raw)
	if err != nil {
		return nil, err
	}

	if strings.HasPrefix(msg, "[") {
		var list []RawSubQuestion
		if err := json.Unmarshal([]byte(msg), &list); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrParseFailure, err)
		}
		return list, nil
	}

	var wrapped struct {
		SubQuestions []RawSubQuestion `json:"subQuestions"`
		Questions    []RawSubQuestion `json:"questions"`
	}
	if err := json.Unmarshal([]byte(msg), &wrapped); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrParseFailure, err)
	}
	if len(wrapped.SubQuestions) > 0 {
		return wrapped.SubQuestions, nil
	}
	return wrapped.Questions, nil
}

var (
	factObjectPattern = regexp.MustCompile(`\{[^{}]*"claim"\s*:\s*"(?:[^"\\]|\\.)*"[^{}]*\}?`)
	gapObjectPattern  = regexp.MustCompile(`\{[^{}]*"description"\s*:\s*"(?:[^"\\]|\\.)*"[^{}]*\}?`)
	claimField        = regexp.MustCompile(`"claim"\s*:\s*"((?:[^"\\]|\\.)*)"`)
	valueField        = regexp.MustCompile(`"value"\s*:\s*("(?:[^"\\]|\\.)*"|-?[\d.]+)`)
	contextField      = regexp.MustCompile(`"context"\s*:\s*"((?:[^"\\]|\\.)*)"`)
	confidenceField   = regexp.MustCompile(`"confidence"\s*:\s*"?(\d+(?:\.\d+)?)`)
	categoryField     = regexp.MustCompile(`"category"\s*:\s*"((?:[^"\\]|\\.)*)"`)
	descriptionField  = regexp.MustCompile(`"description"\s*:\s*"((?:[^"\\]|\\.)*)"`)
	subQuestionField  = regexp.MustCompile(`"subQuestionId"\s*:\s*"?([\w-]+)`)
	queryField        = regexp.MustCompile(`"suggestedQuery"\s*:\s*"((?:[^"\\]|\\.)*)"`)
	importanceField   = regexp.MustCompile(`"importance"\s*:\s*"((?:[^"\\]|\\.)*)"`)
)

// ParseFacts decodes a fact-extraction response. When the payload is not
// valid JSON after repair, individual fact objects are recovered by pattern.
func ParseFacts(raw string) ([]RawFact, error) {
	if facts, err := decodeFacts(raw); err == nil {
		return facts, nil
	}

	facts := extractFactsByPattern(raw)
	if len(facts) == 0 {
		return nil, fmt.Errorf("%w: no fact objects found", domain.ErrParseFailure)
	}
	return facts, nil
}

func decodeFacts(raw string) ([]RawFact, error) {
	msg, err := ExtractJSON(raw)
	if err != nil {
		return nil, err
	}

	if strings.HasPrefix(msg, "[") {
		var list []RawFact
		if err := json.Unmarshal([]byte(msg), &list); err != nil {
			return nil, err
		}
		return list, nil
	}

	var wrapped struct {
		Facts []RawFact `json:"facts"`
	}
	if err := json.Unmarshal([]byte(msg), &wrapped); err != nil {
		return nil, err
	}
	if wrapped.Facts == nil {
		return nil, fmt.Errorf("%w: missing facts array", domain.ErrParseFailure)
	}
	return wrapped.Facts, nil
}

func extractFactsByPattern(raw string) []RawFact {
	var facts []RawFact
	for _, obj := range factObjectPattern.FindAllString(raw, -1) {
		var f RawFact
		if err := json.Unmarshal([]byte(obj), &f); err == nil && f.Claim != "" {
			facts = append(facts, f)
			continue
		}

		m := claimField.FindStringSubmatch(obj)
		if m == nil {
			continue
		}
		f = RawFact{Claim: unescape(m[1])}
		if v := valueField.FindStringSubmatch(obj); v != nil {
			f.Value = FlexString(unescape(strings.Trim(v[1], `"`)))
		}
		if c := contextField.FindStringSubmatch(obj); c != nil {
			f.Context = unescape(c[1])
		}
		if c := confidenceField.FindStringSubmatch(obj); c != nil {
			if n, err := strconv.ParseFloat(c[1], 64); err == nil {
				f.Confidence = FlexInt{Value: int(n + 0.5), Present: true}
			}
		}
		if c := categoryField.FindStringSubmatch(obj); c != nil {
			f.Category = unescape(c[1])
		}
		facts = append(facts, f)
	}
	return facts
}

// ParseGaps decodes a gap-analysis response, falling back to pattern
// extraction of individual gap objects.
func ParseGaps(raw string) (*GapResponse, error) {
	var resp GapResponse
	if err := Unmarshal(raw, &resp); err == nil {
		return &resp, nil
	}

	gaps := extractGapsByPattern(raw)
	if len(gaps) == 0 {
		return nil, fmt.Errorf("%w: no gap objects found", domain.ErrParseFailure)
	}
	return &GapResponse{Gaps: gaps}, nil
}

func extractGapsByPattern(raw string) []RawGap {
	var gaps []RawGap
	for _, obj := range gapObjectPattern.FindAllString(raw, -1) {
		var g RawGap
		if err := json.Unmarshal([]byte(obj), &g); err == nil && g.Description != "" {
			gaps = append(gaps, g)
			continue
		}

		m := descriptionField.FindStringSubmatch(obj)
		if m == nil {
			continue
		}
		g = RawGap{Description: unescape(m[1])}
		if s := subQuestionField.FindStringSubmatch(obj); s != nil {
			g.SubQuestionID = FlexString(s[1])
		}
		if q := queryField.FindStringSubmatch(obj); q != nil {
			g.SuggestedQuery = unescape(q[1])
		}
		if i := importanceField.FindStringSubmatch(obj); i != nil {
			g.Importance = unescape(i[1])
		}
		gaps = append(gaps, g)
	}
	return gaps
}

var listItemPattern = regexp.MustCompile(`^\s*(?:\d+[.)]|[-*•])\s+(.+)$`)

// ParseStringList decodes a JSON array of strings, or failing that a
// numbered or bulleted list.
func ParseStringList(raw string) ([]string, error) {
	var list []string
	if err := Unmarshal(raw, &list); err == nil {
		return list, nil
	}

	var wrapped struct {
		Questions []string `json:"questions"`
	}
	if err := Unmarshal(raw, &wrapped); err == nil && len(wrapped.Questions) > 0 {
		return wrapped.Questions, nil
	}

	for _, line := range strings.Split(raw, "\n") {
		if m := listItemPattern.FindStringSubmatch(line); m != nil {
			item := strings.Trim(strings.TrimSpace(m[1]), `"`)
			if item != "" {
				list = append(list, item)
			}
		}
	}
	if len(list) == 0 {
		return nil, fmt.Errorf("%w: no list items found", domain.ErrParseFailure)
	}
	return list, nil
}

func unescape(s string) string {
	out, err := strconv.Unquote(`"` + s + `"`)
	if err != nil {
		return s
	}
	return out
}
