package quiz

import (
	"math"
	"strings"
)

// osceThresholdTenths is the share of marking-scheme points needed to pass an OSCE
// station, expressed in tenths so the comparison stays in integers.
const osceThresholdTenths = 7

// Result is the graded outcome of a single question.
type Result struct {
	QuestionID    string `json:"questionId"`
	Question      string `json:"question"`
	UserAnswer    Answer `json:"userAnswer"`
	CorrectAnswer any    `json:"correctAnswer"`
	IsCorrect     bool   `json:"isCorrect"`
	Explanation   string `json:"explanation"`
}

// Summary aggregates the results of one attempt.
type Summary struct {
	Correct int      `json:"correct"`
	Total   int      `json:"total"`
	Results []Result `json:"results"`
}

// Percent returns the rounded percentage of correct answers.
func (s Summary) Percent() int {
	if s.Total == 0 {
		return 0
	}
	return int(math.Round(float64(s.Correct) / float64(s.Total) * 100))
}

// Score grades answers against questions. Unanswered questions, wrong-shaped
// answers and out-of-range keys are scored as incorrect. Results keep the
// order of questions.
func Score(questions []Question, answers Answers) Summary {
	summary := Summary{
		Total:   len(questions),
		Results: make([]Result, 0, len(questions)),
	}
	for _, q := range questions {
		b := q.Common()
		answer, answered := answers.Lookup(b.ID)
		correct := answered && IsCorrect(q, answer)
		if correct {
			summary.Correct++
		}
		summary.Results = append(summary.Results, Result{
			QuestionID:    b.ID,
			Question:      b.Question,
			UserAnswer:    answer,
			CorrectAnswer: CorrectAnswer(q),
			IsCorrect:     correct,
			Explanation:   b.Explanation,
		})
	}
	return summary
}

// IsCorrect applies the comparison rule for the question's type.
func IsCorrect(q Question, a Answer) bool {
	switch q := q.(type) {
	case *MultipleChoiceQuestion:
		return indexMatches(a, q.CorrectAnswer, len(q.Options))
	case *LabInterpretationQuestion:
		return indexMatches(a, q.CorrectAnswer, len(q.Options))
	case *TrueFalseQuestion:
		b, ok := a.Bool()
		return ok && b == q.CorrectAnswer
	case *DifferentialDiagnosisQuestion:
		return differentialMatches(a, q)
	case *MatchingQuestion:
		return matchingMatches(a, q)
	case *ShortAnswerQuestion:
		return shortAnswerMatches(a, q)
	case *WordScrambleQuestion:
		s, ok := a.Text()
		return ok && normalizeText(s) == normalizeText(q.CorrectAnswer)
	case *FillInBlankQuestion:
		return fillInBlankMatches(a, q)
	case *FlowchartQuestion:
		return flowchartMatches(a, q)
	case *OSCEQuestion:
		return osceMatches(a, q)
	default:
		return false
	}
}

func normalizeText(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func indexMatches(a Answer, want, n int) bool {
	got, ok := a.Index()
	return ok && want >= 0 && want < n && got == want
}

// answerIndices decodes a list answer of integral numbers.
func answerIndices(a Answer) ([]int, bool) {
	items, ok := a.List()
	if !ok {
		return nil, false
	}
	out := make([]int, len(items))
	for i, item := range items {
		idx, ok := Answer{v: item}.Index()
		if !ok {
			return nil, false
		}
		out[i] = idx
	}
	return out, true
}

// answerTexts decodes a list answer positionally. Entries that are not
// strings are reported as missing.
func answerTexts(a Answer) ([]string, []bool, bool) {
	items, ok := a.List()
	if !ok {
		return nil, nil, false
	}
	texts := make([]string, len(items))
	present := make([]bool, len(items))
	for i, item := range items {
		texts[i], present[i] = item.(string)
	}
	return texts, present, true
}

// differentialMatches checks length and containment only. A submission with
// duplicates can pass when the stored answers themselves repeat an index.
// Like every all-of rule here, an empty key is satisfied by an empty list.
func differentialMatches(a Answer, q *DifferentialDiagnosisQuestion) bool {
	got, ok := answerIndices(a)
	if !ok || len(got) != len(q.CorrectAnswers) {
		return false
	}
	for _, want := range q.CorrectAnswers {
		if want < 0 || want >= len(q.Options) || !containsInt(got, want) {
			return false
		}
	}
	return true
}

func containsInt(list []int, v int) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}

func matchingMatches(a Answer, q *MatchingQuestion) bool {
	items, ok := a.List()
	if !ok || len(items) != len(q.CorrectMatches) {
		return false
	}
	got := make([]Match, len(items))
	for i, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			return false
		}
		left, lok := Answer{v: m["left"]}.Index()
		right, rok := Answer{v: m["right"]}.Index()
		if !lok || !rok {
			return false
		}
		got[i] = Match{Left: left, Right: right}
	}
	for _, want := range q.CorrectMatches {
		if want.Left < 0 || want.Right < 0 {
			return false
		}
		found := false
		for _, m := range got {
			if m == want {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// shortAnswerMatches accepts a submission that contains any accepted answer.
func shortAnswerMatches(a Answer, q *ShortAnswerQuestion) bool {
	s, ok := a.Text()
	if !ok {
		return false
	}
	got := normalizeText(s)
	for _, accepted := range q.CorrectAnswers {
		if strings.Contains(got, normalizeText(accepted)) {
			return true
		}
	}
	return false
}

func fillInBlankMatches(a Answer, q *FillInBlankQuestion) bool {
	texts, present, ok := answerTexts(a)
	if !ok {
		return false
	}
	for i, blank := range q.Blanks {
		if i >= len(texts) || !present[i] {
			return false
		}
		if !blankAccepts(blank, normalizeText(texts[i])) {
			return false
		}
	}
	return true
}

func blankAccepts(b Blank, got string) bool {
	if got == normalizeText(b.CorrectAnswer) {
		return true
	}
	for _, alt := range b.Alternatives {
		if got == normalizeText(alt) {
			return true
		}
	}
	return false
}

// flowchartMatches aligns submitted entries with blank steps only.
func flowchartMatches(a Answer, q *FlowchartQuestion) bool {
	texts, present, ok := answerTexts(a)
	if !ok {
		return false
	}
	blanks := 0
	for _, step := range q.Steps {
		if !step.IsBlank {
			continue
		}
		i := blanks
		blanks++
		if step.CorrectAnswer == nil || i >= len(texts) || !present[i] {
			return false
		}
		if normalizeText(texts[i]) != normalizeText(*step.CorrectAnswer) {
			return false
		}
	}
	return true
}

// osceMatches awards each criterion's points when the response mentions any
// of its keywords, and passes at 70% of the available points.
func osceMatches(a Answer, q *OSCEQuestion) bool {
	s, ok := a.Text()
	if !ok {
		return false
	}
	response := strings.ToLower(s)
	var earned, total float64
	for _, c := range q.MarkingScheme {
		total += c.Points
		for _, kw := range c.Keywords {
			if strings.Contains(response, strings.ToLower(kw)) {
				earned += c.Points
				break
			}
		}
	}
	return earned*10 >= total*osceThresholdTenths
}
