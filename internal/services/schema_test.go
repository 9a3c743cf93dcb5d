package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mediquiz-backend/internal/models"
)

func TestValidateQuizConfig(t *testing.T) {
	valid := models.QuizConfig{
		QuestionCount: 10,
		QuestionTypes: []string{"multiple_choice", "osce"},
		Difficulty:    "mixed",
		FocusAreas:    []string{"cardiology"},
	}
	require.NoError(t, ValidateQuizConfig(valid))

	tests := []struct {
		name  string
		edit  func(*models.QuizConfig)
		field string
	}{
		{"zero count", func(c *models.QuizConfig) { c.QuestionCount = 0 }, "questionCount"},
		{"too many", func(c *models.QuizConfig) { c.QuestionCount = MaxQuestionCount + 1 }, "questionCount"},
		{"no types", func(c *models.QuizConfig) { c.QuestionTypes = []string{} }, "questionTypes"},
		{"nil types", func(c *models.QuizConfig) { c.QuestionTypes = nil }, "questionTypes"},
		{"unknown type", func(c *models.QuizConfig) { c.QuestionTypes = []string{"osce", "essay"} }, "questionTypes"},
		{"bad difficulty", func(c *models.QuizConfig) { c.Difficulty = "brutal" }, "difficulty"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			cfg.QuestionTypes = append([]string{}, valid.QuestionTypes...)
			tt.edit(&cfg)

			err := ValidateQuizConfig(cfg)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Contains(t, verr.Fields, tt.field)
		})
	}
}

func TestValidateQuizConfigReportsEveryField(t *testing.T) {
	err := ValidateQuizConfig(models.QuizConfig{QuestionCount: -1, QuestionTypes: []string{"essay"}, Difficulty: "x"})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Len(t, verr.Fields, 3)
}

func TestValidateDocumentRejectsInvalidJSON(t *testing.T) {
	assert.Error(t, validateDocument("question-batch", []byte("not json")))
	assert.Error(t, validateDocument("question-batch", []byte(`[1, 2]`)))
	assert.NoError(t, validateDocument("question-batch", []byte(`[{}]`)))
	assert.Error(t, validateDocument("missing", []byte(`{}`)))
}
