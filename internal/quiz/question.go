package quiz

import "encoding/json"

// Type is the discriminator carried by every question.
type Type string

const (
	TypeMultipleChoice        Type = "multiple_choice"
	TypeDifferentialDiagnosis Type = "differential_diagnosis"
	TypeMatching              Type = "matching"
	TypeLabInterpretation     Type = "lab_interpretation"
	TypeFlowchart             Type = "flowchart"
	TypeWordScramble          Type = "word_scramble"
	TypeFillInBlank           Type = "fill_in_blank"
	TypeTrueFalse             Type = "true_false"
	TypeShortAnswer           Type = "short_answer"
	TypeOSCE                  Type = "osce"
)

// Types lists every supported question type. Adding a type here without
// normalizer, scoring and display support fails the package tests.
var Types = []Type{
	TypeMultipleChoice,
	TypeDifferentialDiagnosis,
	TypeMatching,
	TypeLabInterpretation,
	TypeFlowchart,
	TypeWordScramble,
	TypeFillInBlank,
	TypeTrueFalse,
	TypeShortAnswer,
	TypeOSCE,
}

// TypeStrings returns the supported types as plain strings.
func TypeStrings() []string {
	out := make([]string, len(Types))
	for i, t := range Types {
		out[i] = string(t)
	}
	return out
}

// Valid reports whether t is one of the supported types.
func (t Type) Valid() bool {
	for _, known := range Types {
		if t == known {
			return true
		}
	}
	return false
}

type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

func (d Difficulty) Valid() bool {
	return d == DifficultyEasy || d == DifficultyMedium || d == DifficultyHard
}

// Question is implemented by exactly one struct per Type. Use a type switch
// to reach the variant fields.
type Question interface {
	Common() *Base
	isQuestion()
}

// Base holds the fields shared by every variant.
type Base struct {
	ID          string     `json:"id"`
	Type        Type       `json:"type"`
	Question    string     `json:"question"`
	Explanation string     `json:"explanation"`
	Difficulty  Difficulty `json:"difficulty"`
}

func (b *Base) Common() *Base { return b }
func (b *Base) isQuestion()   {}

type MultipleChoiceQuestion struct {
	Base
	Options       []string `json:"options"`
	CorrectAnswer int      `json:"correctAnswer"`
}

type DifferentialDiagnosisQuestion struct {
	Base
	Options        []string `json:"options"`
	CorrectAnswers []int    `json:"correctAnswers"`
}

// Match pairs a left item index with a right item index.
type Match struct {
	Left  int `json:"left"`
	Right int `json:"right"`
}

type MatchingQuestion struct {
	Base
	LeftItems      []string `json:"leftItems"`
	RightItems     []string `json:"rightItems"`
	CorrectMatches []Match  `json:"correctMatches"`
}

type LabValue struct {
	Test      string `json:"test"`
	Value     string `json:"value"`
	Reference string `json:"reference"`
}

type LabInterpretationQuestion struct {
	Base
	LabValues     []LabValue `json:"labValues"`
	Options       []string   `json:"options"`
	CorrectAnswer int        `json:"correctAnswer"`
}

// FlowchartStep is one box of a flowchart. Only blank steps are answered;
// a blank step without CorrectAnswer can never be answered correctly.
type FlowchartStep struct {
	ID            string  `json:"id"`
	Content       string  `json:"content"`
	IsBlank       bool    `json:"isBlank"`
	CorrectAnswer *string `json:"correctAnswer,omitempty"`
}

type FlowchartQuestion struct {
	Base
	Steps []FlowchartStep `json:"steps"`
}

type WordScrambleQuestion struct {
	Base
	Hint          string   `json:"hint"`
	Letters       []string `json:"letters"`
	CorrectAnswer string   `json:"correctAnswer"`
}

type Blank struct {
	Position      int      `json:"position"`
	CorrectAnswer string   `json:"correctAnswer"`
	Alternatives  []string `json:"alternatives,omitempty"`
}

type FillInBlankQuestion struct {
	Base
	Blanks []Blank `json:"blanks"`
}

type TrueFalseQuestion struct {
	Base
	CorrectAnswer bool `json:"correctAnswer"`
}

type ShortAnswerQuestion struct {
	Base
	CorrectAnswers []string `json:"correctAnswers"`
	Keywords       []string `json:"keywords"`
}

// Criterion is one weighted line of an OSCE marking scheme.
type Criterion struct {
	Criteria string   `json:"criteria"`
	Points   float64  `json:"points"`
	Keywords []string `json:"keywords"`
}

type OSCEQuestion struct {
	Base
	Scenario      string      `json:"scenario"`
	Tasks         []string    `json:"tasks"`
	MarkingScheme []Criterion `json:"markingScheme"`
}

// Set is an ordered list of questions that can be decoded from JSON.
// Decoding runs the normalizer, so stored ids are kept and missing
// fields are defaulted.
type Set []Question

func (s *Set) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*s = nil
		return nil
	}
	questions, err := NormalizeJSON(data, 0)
	if err != nil {
		return err
	}
	*s = questions
	return nil
}

func (s Set) MarshalJSON() ([]byte, error) {
	if s == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]Question(s))
}

// Find returns the question with the given id.
func (s Set) Find(id string) (Question, bool) {
	for _, q := range s {
		if q.Common().ID == id {
			return q, true
		}
	}
	return nil, false
}

// TypeNames returns the distinct question types in order of first use.
func (s Set) TypeNames() []string {
	seen := make(map[Type]bool)
	var out []string
	for _, q := range s {
		t := q.Common().Type
		if seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, string(t))
	}
	return out
}
