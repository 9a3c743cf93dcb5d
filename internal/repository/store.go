package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"mediquiz-backend/internal/models"
	"mediquiz-backend/internal/quiz"
)

// ErrNotFound is returned when a row does not exist.
var ErrNotFound = errors.New("not found")

// QuizStore persists quizzes and their attempts.
type QuizStore interface {
	Create(ctx context.Context, q *models.Quiz) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Quiz, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.Quiz, error)
	UpdateQuestions(ctx context.Context, id uuid.UUID, questions quiz.Set) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
	Delete(ctx context.Context, id uuid.UUID) error

	CreateAttempt(ctx context.Context, a *models.QuizAttempt) error
	GetAttemptByID(ctx context.Context, id uuid.UUID) (*models.QuizAttempt, error)
	SaveProgress(ctx context.Context, attemptID uuid.UUID, questionID string, answer quiz.Answer) error
	SubmitAttempt(ctx context.Context, attemptID uuid.UUID, answers quiz.Answers, summary quiz.Summary) error
	ListAttempts(ctx context.Context, quizID uuid.UUID) ([]*models.QuizAttempt, error)
	ListAttemptsByUser(ctx context.Context, userID uuid.UUID) ([]*models.QuizAttempt, error)
}

type UserStore interface {
	Create(ctx context.Context, user *models.User) error
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	UpdateLastLogin(ctx context.Context, userID uuid.UUID) error
	Update(ctx context.Context, user *models.User) error
	UpdatePassword(ctx context.Context, userID uuid.UUID, passwordHash string) error
}

type JobStore interface {
	Create(ctx context.Context, j *models.Job) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Job, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
	UpdateProgress(ctx context.Context, id uuid.UUID, progress int) error
	UpdateError(ctx context.Context, id uuid.UUID, errMsg string, retryCount int) error
}

// ErrDuplicate is returned when a unique key already exists.
var ErrDuplicate = errors.New("duplicate")

// ErrAttemptCompleted is returned when progress is saved to, or a result is
// written for, an attempt that has already been submitted.
var ErrAttemptCompleted = errors.New("attempt already completed")

func mapErr(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
