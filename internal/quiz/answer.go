package quiz

import (
	"encoding/json"
	"math"
)

// Answer is a submitted response. Its value keeps the shape it arrived in:
// string, float64, bool, []any, map[string]any or nil for "no answer".
// Accessors report whether the value has the requested shape; they never
// convert between shapes, so "1" is not the index 1.
type Answer struct {
	v any
}

// Answers maps question id to the submitted answer. Unanswered questions
// are simply absent.
type Answers map[string]Answer

func NumberAnswer(n float64) Answer { return Answer{v: n} }
func IndexAnswer(i int) Answer      { return Answer{v: float64(i)} }
func TextAnswer(s string) Answer    { return Answer{v: s} }
func BoolAnswer(b bool) Answer      { return Answer{v: b} }

func IndicesAnswer(indices ...int) Answer {
	items := make([]any, len(indices))
	for i, idx := range indices {
		items[i] = float64(idx)
	}
	return Answer{v: items}
}

func TextsAnswer(texts ...string) Answer {
	items := make([]any, len(texts))
	for i, s := range texts {
		items[i] = s
	}
	return Answer{v: items}
}

func MatchesAnswer(matches ...Match) Answer {
	items := make([]any, len(matches))
	for i, m := range matches {
		items[i] = map[string]any{"left": float64(m.Left), "right": float64(m.Right)}
	}
	return Answer{v: items}
}

// Answered is false for the zero Answer and for an explicit JSON null.
func (a Answer) Answered() bool { return a.v != nil }

// Value returns the underlying decoded value.
func (a Answer) Value() any { return a.v }

func (a Answer) Number() (float64, bool) {
	n, ok := a.v.(float64)
	return n, ok
}

// Index returns the answer as an option index. Only integral numbers qualify.
func (a Answer) Index() (int, bool) {
	n, ok := a.v.(float64)
	if !ok || n != math.Trunc(n) || math.IsInf(n, 0) {
		return 0, false
	}
	return int(n), true
}

func (a Answer) Text() (string, bool) {
	s, ok := a.v.(string)
	return s, ok
}

func (a Answer) Bool() (bool, bool) {
	b, ok := a.v.(bool)
	return b, ok
}

func (a Answer) List() ([]any, bool) {
	items, ok := a.v.([]any)
	return items, ok
}

func (a Answer) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.v)
}

func (a *Answer) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	a.v = v
	return nil
}

// Lookup returns the answer for id and whether one was submitted.
func (m Answers) Lookup(id string) (Answer, bool) {
	a, ok := m[id]
	if !ok || !a.Answered() {
		return Answer{}, false
	}
	return a, true
}
