package quiz

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"
)

// Normalize converts loosely-typed generator output into questions. It never
// fails: every field has a default, and an unknown or missing type becomes a
// multiple choice question. startIndex is added to each record's position
// when synthesizing ids so that batches generated for one quiz do not
// collide.
func Normalize(raw []map[string]any, startIndex int) []Question {
	stamp := time.Now().UnixMilli()
	out := make([]Question, len(raw))
	for i, rec := range raw {
		out[i] = normalizeOne(rec, stamp, startIndex+i)
	}
	return out
}

// NormalizeJSON decodes a JSON array of question objects and normalizes it.
// An error is returned only when data is not an array of objects.
func NormalizeJSON(data []byte, startIndex int) ([]Question, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("questions must be a JSON array: %w", err)
	}
	raw := make([]map[string]any, len(items))
	for i, item := range items {
		var rec map[string]any
		if err := json.Unmarshal(item, &rec); err != nil {
			return nil, fmt.Errorf("question %d must be a JSON object: %w", i, err)
		}
		raw[i] = rec
	}
	return Normalize(raw, startIndex), nil
}

func normalizeOne(rec map[string]any, stamp int64, position int) Question {
	base := Base{
		ID:          asText(rec["id"]),
		Type:        Type(asString(rec["type"])),
		Question:    asString(rec["question"]),
		Explanation: asString(rec["explanation"]),
		Difficulty:  Difficulty(asString(rec["difficulty"])),
	}
	if base.ID == "" {
		base.ID = fmt.Sprintf("q_%d_%d", stamp, position)
	}
	if !base.Type.Valid() {
		base.Type = TypeMultipleChoice
	}
	if !base.Difficulty.Valid() {
		base.Difficulty = DifficultyMedium
	}

	switch base.Type {
	case TypeDifferentialDiagnosis:
		return &DifferentialDiagnosisQuestion{
			Base:           base,
			Options:        asStrings(rec["options"]),
			CorrectAnswers: asInts(rec["correctAnswers"]),
		}
	case TypeMatching:
		return &MatchingQuestion{
			Base:           base,
			LeftItems:      asStrings(rec["leftItems"]),
			RightItems:     asStrings(rec["rightItems"]),
			CorrectMatches: asMatches(rec["correctMatches"]),
		}
	case TypeLabInterpretation:
		return &LabInterpretationQuestion{
			Base:          base,
			LabValues:     asLabValues(rec["labValues"]),
			Options:       asStrings(rec["options"]),
			CorrectAnswer: asIndex(rec["correctAnswer"]),
		}
	case TypeFlowchart:
		return &FlowchartQuestion{
			Base:  base,
			Steps: asSteps(rec["steps"]),
		}
	case TypeWordScramble:
		return &WordScrambleQuestion{
			Base:          base,
			Hint:          asString(rec["hint"]),
			Letters:       asStrings(rec["letters"]),
			CorrectAnswer: asString(rec["correctAnswer"]),
		}
	case TypeFillInBlank:
		return &FillInBlankQuestion{
			Base:   base,
			Blanks: asBlanks(rec["blanks"]),
		}
	case TypeTrueFalse:
		b, _ := rec["correctAnswer"].(bool)
		return &TrueFalseQuestion{
			Base:          base,
			CorrectAnswer: b,
		}
	case TypeShortAnswer:
		return &ShortAnswerQuestion{
			Base:           base,
			CorrectAnswers: asStrings(rec["correctAnswers"]),
			Keywords:       asStrings(rec["keywords"]),
		}
	case TypeOSCE:
		return &OSCEQuestion{
			Base:          base,
			Scenario:      asString(rec["scenario"]),
			Tasks:         asStrings(rec["tasks"]),
			MarkingScheme: asCriteria(rec["markingScheme"]),
		}
	default:
		return &MultipleChoiceQuestion{
			Base:          base,
			Options:       asStrings(rec["options"]),
			CorrectAnswer: asIndex(rec["correctAnswer"]),
		}
	}
}

// invalidIndex stands in for index entries that are not integers. No option
// lives there, so comparisons against it always fail.
const invalidIndex = -1

func asString(v any) string {
	s, _ := v.(string)
	return s
}

// asText renders scalars as text so list positions survive odd element types.
func asText(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	default:
		return ""
	}
}

func asNumber(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// asIndex returns 0 for anything that is not an integral number.
func asIndex(v any) int {
	n, ok := asNumber(v)
	if !ok || n != math.Trunc(n) {
		return 0
	}
	return int(n)
}

func asList(v any) []any {
	switch t := v.(type) {
	case []any:
		return t
	case []string:
		out := make([]any, len(t))
		for i, s := range t {
			out[i] = s
		}
		return out
	case []int:
		out := make([]any, len(t))
		for i, n := range t {
			out[i] = n
		}
		return out
	case []float64:
		out := make([]any, len(t))
		for i, n := range t {
			out[i] = n
		}
		return out
	case []map[string]any:
		out := make([]any, len(t))
		for i, m := range t {
			out[i] = m
		}
		return out
	default:
		return nil
	}
}

func asMap(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}

func asStrings(v any) []string {
	items := asList(v)
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = asText(item)
	}
	return out
}

func asInts(v any) []int {
	items := asList(v)
	out := make([]int, len(items))
	for i, item := range items {
		n, ok := asNumber(item)
		if !ok || n != math.Trunc(n) {
			out[i] = invalidIndex
			continue
		}
		out[i] = int(n)
	}
	return out
}

func asMatches(v any) []Match {
	items := asList(v)
	out := make([]Match, len(items))
	for i, item := range items {
		m := asMap(item)
		out[i] = Match{Left: indexOr(m["left"]), Right: indexOr(m["right"])}
	}
	return out
}

func indexOr(v any) int {
	n, ok := asNumber(v)
	if !ok || n != math.Trunc(n) {
		return invalidIndex
	}
	return int(n)
}

func asLabValues(v any) []LabValue {
	items := asList(v)
	out := make([]LabValue, len(items))
	for i, item := range items {
		m := asMap(item)
		out[i] = LabValue{
			Test:      asText(m["test"]),
			Value:     asText(m["value"]),
			Reference: asText(m["reference"]),
		}
	}
	return out
}

func asSteps(v any) []FlowchartStep {
	items := asList(v)
	out := make([]FlowchartStep, len(items))
	for i, item := range items {
		m := asMap(item)
		step := FlowchartStep{
			ID:      asText(m["id"]),
			Content: asString(m["content"]),
		}
		step.IsBlank, _ = m["isBlank"].(bool)
		if s, ok := m["correctAnswer"].(string); ok {
			step.CorrectAnswer = &s
		}
		out[i] = step
	}
	return out
}

func asBlanks(v any) []Blank {
	items := asList(v)
	out := make([]Blank, len(items))
	for i, item := range items {
		m := asMap(item)
		out[i] = Blank{
			Position:      asIndex(m["position"]),
			CorrectAnswer: asText(m["correctAnswer"]),
		}
		if alts := asStrings(m["alternatives"]); len(alts) > 0 {
			out[i].Alternatives = alts
		}
	}
	return out
}

func asCriteria(v any) []Criterion {
	items := asList(v)
	out := make([]Criterion, len(items))
	for i, item := range items {
		m := asMap(item)
		points, _ := asNumber(m["points"])
		out[i] = Criterion{
			Criteria: asString(m["criteria"]),
			Points:   points,
			Keywords: asStrings(m["keywords"]),
		}
	}
	return out
}
