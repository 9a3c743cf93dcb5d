package quiz

// MarkingSchemeSentinel is shown instead of a single correct answer for OSCE
// stations.
const MarkingSchemeSentinel = "See marking scheme"

// CorrectAnswer returns a reviewable form of the expected answer. Index
// fields resolve to option text; out-of-range indices resolve to nil.
func CorrectAnswer(q Question) any {
	switch q := q.(type) {
	case *MultipleChoiceQuestion:
		return optionAt(q.Options, q.CorrectAnswer)
	case *LabInterpretationQuestion:
		return optionAt(q.Options, q.CorrectAnswer)
	case *DifferentialDiagnosisQuestion:
		out := make([]any, len(q.CorrectAnswers))
		for i, idx := range q.CorrectAnswers {
			out[i] = optionAt(q.Options, idx)
		}
		return out
	case *MatchingQuestion:
		return append([]Match{}, q.CorrectMatches...)
	case *TrueFalseQuestion:
		return q.CorrectAnswer
	case *ShortAnswerQuestion:
		return append([]string{}, q.CorrectAnswers...)
	case *WordScrambleQuestion:
		return q.CorrectAnswer
	case *FillInBlankQuestion:
		out := make([]string, len(q.Blanks))
		for i, b := range q.Blanks {
			out[i] = b.CorrectAnswer
		}
		return out
	case *FlowchartQuestion:
		out := []any{}
		for _, step := range q.Steps {
			if !step.IsBlank {
				continue
			}
			if step.CorrectAnswer == nil {
				out = append(out, nil)
				continue
			}
			out = append(out, *step.CorrectAnswer)
		}
		return out
	case *OSCEQuestion:
		return MarkingSchemeSentinel
	default:
		return nil
	}
}

func optionAt(options []string, idx int) any {
	if idx < 0 || idx >= len(options) {
		return nil
	}
	return options[idx]
}
