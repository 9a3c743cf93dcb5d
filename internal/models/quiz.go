package models

import (
	"time"

	"github.com/google/uuid"

	"mediquiz-backend/internal/quiz"
)

// Quiz status values.
const (
	QuizStatusGenerating = "generating"
	QuizStatusReady      = "ready"
	QuizStatusFailed     = "failed"
)

// QuizConfig controls question generation.
type QuizConfig struct {
	QuestionCount int      `json:"questionCount"`
	QuestionTypes []string `json:"questionTypes"`
	Difficulty    string   `json:"difficulty"` // "mixed" | "easy" | "medium" | "hard"
	FocusAreas    []string `json:"focusAreas,omitempty"`
}

type Quiz struct {
	ID            uuid.UUID        `json:"id"`
	UserID        uuid.UUID        `json:"user_id"`
	Title         string           `json:"title"`
	Description   string           `json:"description"`
	Content       string           `json:"content,omitempty"`
	Analysis      *ContentAnalysis `json:"analysis"`
	Config        QuizConfig       `json:"config"`
	Questions     quiz.Set         `json:"questions"`
	QuestionCount int              `json:"question_count"`
	QuestionTypes []string         `json:"question_types"`
	Status        string           `json:"status"`
	CreatedAt     time.Time        `json:"created_at"`
}

type QuizAttempt struct {
	ID               uuid.UUID     `json:"id"`
	QuizID           uuid.UUID     `json:"quiz_id"`
	UserID           uuid.UUID     `json:"user_id"`
	Answers          quiz.Answers  `json:"answers"`
	Results          []quiz.Result `json:"results"`
	TotalQuestions   int           `json:"total_questions"`
	ScorePercent     *float64      `json:"score_percent"`
	CorrectCount     *int          `json:"correct_count"`
	StartedAt        time.Time     `json:"started_at"`
	CompletedAt      *time.Time    `json:"completed_at"`
	TimeTakenSeconds *int          `json:"time_taken_seconds"`
}

// Completed reports whether the attempt has been submitted.
func (a *QuizAttempt) Completed() bool {
	return a.CompletedAt != nil
}

type GenerateQuizRequest struct {
	Title    string           `json:"title"`
	Content  string           `json:"content"`
	Analysis *ContentAnalysis `json:"analysis"`
	Config   QuizConfig       `json:"config"`
}

type GenerateQuizResponse struct {
	JobID  uuid.UUID `json:"job_id"`
	QuizID uuid.UUID `json:"quiz_id"`
}

type SaveProgressRequest struct {
	QuestionID string      `json:"question_id"`
	Answer     quiz.Answer `json:"answer"`
}

type SubmitAttemptRequest struct {
	Answers quiz.Answers `json:"answers"`
}

type AttemptWithQuiz struct {
	Attempt *QuizAttempt `json:"attempt"`
	Quiz    *Quiz        `json:"quiz"`
}
