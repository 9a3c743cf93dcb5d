package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"

	"mediquiz-backend/internal/models"
	"mediquiz-backend/internal/quiz"
	"mediquiz-backend/internal/repository"
)

// JobQueue hands a persisted job to the background workers.
type JobQueue interface {
	Enqueue(ctx context.Context, job *models.Job) error
}

// QuizService owns quiz lifecycle and attempt scoring.
type QuizService struct {
	quizzes repository.QuizStore
	jobs    repository.JobStore
	queue   JobQueue
}

func NewQuizService(quizzes repository.QuizStore, jobs repository.JobStore, queue JobQueue) *QuizService {
	return &QuizService{quizzes: quizzes, jobs: jobs, queue: queue}
}

// Generate stores a quiz in the generating state and queues its job.
func (s *QuizService) Generate(ctx context.Context, userID uuid.UUID, req models.GenerateQuizRequest) (*models.GenerateQuizResponse, error) {
	if strings.TrimSpace(req.Content) == "" {
		return nil, &ValidationError{Fields: map[string]string{"content": "Content is required"}}
	}
	if req.Config.Difficulty == "" {
		req.Config.Difficulty = "mixed"
	}
	if err := ValidateQuizConfig(req.Config); err != nil {
		return nil, err
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = "Medical Quiz"
	}
	description := ""
	if req.Analysis != nil {
		description = req.Analysis.Summary
	}

	q := &models.Quiz{
		UserID:        userID,
		Title:         title,
		Description:   description,
		Content:       req.Content,
		Analysis:      req.Analysis,
		Config:        req.Config,
		QuestionTypes: req.Config.QuestionTypes,
		Status:        models.QuizStatusGenerating,
	}
	if err := s.quizzes.Create(ctx, q); err != nil {
		return nil, fmt.Errorf("create quiz: %w", err)
	}

	configJSON, _ := json.Marshal(req.Config)
	job := &models.Job{
		UserID:      userID,
		Type:        models.JobTypeQuizGeneration,
		ReferenceID: q.ID,
		ConfigJSON:  configJSON,
	}
	if err := s.jobs.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}

	if err := s.queue.Enqueue(ctx, job); err != nil {
		log.Printf("Failed to enqueue job %s: %v", job.ID, err)
		if uerr := s.jobs.UpdateStatus(ctx, job.ID, "failed"); uerr != nil {
			log.Printf("Failed to mark job %s failed: %v", job.ID, uerr)
		}
		if uerr := s.quizzes.UpdateStatus(ctx, q.ID, models.QuizStatusFailed); uerr != nil {
			log.Printf("Failed to mark quiz %s failed: %v", q.ID, uerr)
		}
		return nil, fmt.Errorf("enqueue job: %w", err)
	}

	return &models.GenerateQuizResponse{JobID: job.ID, QuizID: q.ID}, nil
}

func (s *QuizService) List(ctx context.Context, userID uuid.UUID) ([]*models.Quiz, error) {
	return s.quizzes.ListByUser(ctx, userID)
}

// Get returns a quiz owned by userID.
func (s *QuizService) Get(ctx context.Context, userID, quizID uuid.UUID) (*models.Quiz, error) {
	q, err := s.quizzes.GetByID(ctx, quizID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, &NotFoundError{Message: "Quiz not found"}
		}
		return nil, err
	}
	if q.UserID != userID {
		return nil, &ForbiddenError{Message: "Access denied"}
	}
	return q, nil
}

func (s *QuizService) Delete(ctx context.Context, userID, quizID uuid.UUID) error {
	if _, err := s.Get(ctx, userID, quizID); err != nil {
		return err
	}
	return s.quizzes.Delete(ctx, quizID)
}

// Start opens a new attempt on a ready quiz.
func (s *QuizService) Start(ctx context.Context, userID, quizID uuid.UUID) (*models.QuizAttempt, error) {
	q, err := s.Get(ctx, userID, quizID)
	if err != nil {
		return nil, err
	}
	if q.Status != models.QuizStatusReady {
		return nil, &ConflictError{Message: "Quiz is not ready yet"}
	}

	attempt := &models.QuizAttempt{
		QuizID:         q.ID,
		UserID:         userID,
		Answers:        quiz.Answers{},
		TotalQuestions: len(q.Questions),
	}
	if err := s.quizzes.CreateAttempt(ctx, attempt); err != nil {
		return nil, fmt.Errorf("create attempt: %w", err)
	}
	return attempt, nil
}

func (s *QuizService) ListAttempts(ctx context.Context, userID, quizID uuid.UUID) ([]*models.QuizAttempt, error) {
	if _, err := s.Get(ctx, userID, quizID); err != nil {
		return nil, err
	}
	return s.quizzes.ListAttempts(ctx, quizID)
}

// attemptFor loads an attempt and its quiz, checking ownership.
func (s *QuizService) attemptFor(ctx context.Context, userID, attemptID uuid.UUID) (*models.QuizAttempt, *models.Quiz, error) {
	attempt, err := s.quizzes.GetAttemptByID(ctx, attemptID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, &NotFoundError{Message: "Attempt not found"}
		}
		return nil, nil, err
	}
	if attempt.UserID != userID {
		return nil, nil, &ForbiddenError{Message: "Access denied"}
	}
	q, err := s.quizzes.GetByID(ctx, attempt.QuizID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, &NotFoundError{Message: "Quiz not found"}
		}
		return nil, nil, err
	}
	return attempt, q, nil
}

func (s *QuizService) GetAttempt(ctx context.Context, userID, attemptID uuid.UUID) (*models.AttemptWithQuiz, error) {
	attempt, q, err := s.attemptFor(ctx, userID, attemptID)
	if err != nil {
		return nil, err
	}
	return &models.AttemptWithQuiz{Attempt: attempt, Quiz: q}, nil
}

// SaveProgress records one answer, replacing any earlier answer to the same
// question.
func (s *QuizService) SaveProgress(ctx context.Context, userID, attemptID uuid.UUID, req models.SaveProgressRequest) error {
	attempt, q, err := s.attemptFor(ctx, userID, attemptID)
	if err != nil {
		return err
	}
	if attempt.Completed() {
		return &ConflictError{Message: "Attempt already submitted"}
	}
	if _, ok := q.Questions.Find(req.QuestionID); !ok {
		return &ValidationError{Fields: map[string]string{"question_id": "Unknown question"}}
	}
	if err := s.quizzes.SaveProgress(ctx, attemptID, req.QuestionID, req.Answer); err != nil {
		if errors.Is(err, repository.ErrAttemptCompleted) {
			return &ConflictError{Message: "Attempt already submitted"}
		}
		return fmt.Errorf("save progress: %w", err)
	}
	return nil
}

// Submit scores the attempt. Submitted answers take precedence over saved
// progress for the same question.
func (s *QuizService) Submit(ctx context.Context, userID, attemptID uuid.UUID, answers quiz.Answers) (*models.QuizAttempt, error) {
	attempt, q, err := s.attemptFor(ctx, userID, attemptID)
	if err != nil {
		return nil, err
	}
	if attempt.Completed() {
		return nil, &ConflictError{Message: "Attempt already submitted"}
	}

	merged := make(quiz.Answers, len(attempt.Answers)+len(answers))
	for id, a := range attempt.Answers {
		merged[id] = a
	}
	for id, a := range answers {
		merged[id] = a
	}

	summary := quiz.Score(q.Questions, merged)
	if err := s.quizzes.SubmitAttempt(ctx, attemptID, merged, summary); err != nil {
		if errors.Is(err, repository.ErrAttemptCompleted) {
			return nil, &ConflictError{Message: "Attempt already submitted"}
		}
		return nil, fmt.Errorf("submit attempt: %w", err)
	}
	return s.quizzes.GetAttemptByID(ctx, attemptID)
}

// GetJob returns a job owned by userID.
func (s *QuizService) GetJob(ctx context.Context, userID, jobID uuid.UUID) (*models.Job, error) {
	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, &NotFoundError{Message: "Job not found"}
		}
		return nil, err
	}
	if job.UserID != userID {
		return nil, &ForbiddenError{Message: "Access denied"}
	}
	return job, nil
}
