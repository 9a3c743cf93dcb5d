package services

import (
	"bytes"
	"context"
	"errors"
	"log"
	"os"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mediquiz-backend/internal/models"
	"mediquiz-backend/internal/quiz"
	"mediquiz-backend/internal/repository"
)

type recordingQueue struct {
	jobs []*models.Job
	err  error
}

func (q *recordingQueue) Enqueue(_ context.Context, job *models.Job) error {
	if q.err != nil {
		return q.err
	}
	q.jobs = append(q.jobs, job)
	return nil
}

type quizFixture struct {
	svc     *QuizService
	quizzes *repository.MemoryQuizRepo
	jobs    *repository.MemoryJobRepo
	queue   *recordingQueue
	owner   uuid.UUID
}

func newQuizFixture() *quizFixture {
	f := &quizFixture{
		quizzes: repository.NewMemoryQuizRepo(),
		jobs:    repository.NewMemoryJobRepo(),
		queue:   &recordingQueue{},
		owner:   uuid.New(),
	}
	f.svc = NewQuizService(f.quizzes, f.jobs, f.queue)
	return f
}

// readyQuiz stores a ready quiz with a multiple choice and a true/false question.
func (f *quizFixture) readyQuiz(t *testing.T) *models.Quiz {
	t.Helper()
	ctx := context.Background()
	q := &models.Quiz{UserID: f.owner, Title: "Renal", Status: models.QuizStatusGenerating}
	require.NoError(t, f.quizzes.Create(ctx, q))
	questions := quiz.Normalize([]map[string]any{
		{"id": "mc", "type": "multiple_choice", "question": "Loop diuretic?", "options": []any{"Furosemide", "Spironolactone"}, "correctAnswer": 0.0},
		{"id": "tf", "type": "true_false", "question": "ADH acts on the collecting duct", "correctAnswer": true},
	}, 0)
	require.NoError(t, f.quizzes.UpdateQuestions(ctx, q.ID, questions))
	require.NoError(t, f.quizzes.UpdateStatus(ctx, q.ID, models.QuizStatusReady))
	stored, err := f.quizzes.GetByID(ctx, q.ID)
	require.NoError(t, err)
	return stored
}

func validGenerateRequest() models.GenerateQuizRequest {
	return models.GenerateQuizRequest{
		Content:  "Nephron physiology",
		Analysis: &models.ContentAnalysis{Summary: "Kidneys"},
		Config:   models.QuizConfig{QuestionCount: 6, QuestionTypes: []string{"osce"}},
	}
}

func TestGenerateQueuesJob(t *testing.T) {
	f := newQuizFixture()
	ctx := context.Background()

	resp, err := f.svc.Generate(ctx, f.owner, validGenerateRequest())
	require.NoError(t, err)

	require.Len(t, f.queue.jobs, 1)
	job := f.queue.jobs[0]
	assert.Equal(t, resp.JobID, job.ID)
	assert.Equal(t, resp.QuizID, job.ReferenceID)
	assert.Equal(t, models.JobTypeQuizGeneration, job.Type)

	q, err := f.quizzes.GetByID(ctx, resp.QuizID)
	require.NoError(t, err)
	assert.Equal(t, models.QuizStatusGenerating, q.Status)
	assert.Equal(t, "Medical Quiz", q.Title)
	assert.Equal(t, "Kidneys", q.Description)
	assert.Equal(t, "mixed", q.Config.Difficulty)
}

func TestGenerateValidation(t *testing.T) {
	f := newQuizFixture()

	req := validGenerateRequest()
	req.Content = ""
	_, err := f.svc.Generate(context.Background(), f.owner, req)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "content")

	req = validGenerateRequest()
	req.Config.QuestionCount = 0
	_, err = f.svc.Generate(context.Background(), f.owner, req)
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "questionCount")
	assert.Empty(t, f.queue.jobs)
}

func TestGenerateEnqueueFailureMarksQuizFailed(t *testing.T) {
	f := newQuizFixture()
	f.queue.err = errors.New("redis down")
	ctx := context.Background()

	_, err := f.svc.Generate(ctx, f.owner, validGenerateRequest())
	require.Error(t, err)

	quizzes, err := f.quizzes.ListByUser(ctx, f.owner)
	require.NoError(t, err)
	require.Len(t, quizzes, 1)
	assert.Equal(t, models.QuizStatusFailed, quizzes[0].Status)
}

type failingQuizStatus struct{ *repository.MemoryQuizRepo }

func (failingQuizStatus) UpdateStatus(context.Context, uuid.UUID, string) error {
	return errors.New("write failed")
}

func TestGenerateEnqueueFailureLogsUnsavedStatus(t *testing.T) {
	f := newQuizFixture()
	f.queue.err = errors.New("redis down")
	svc := NewQuizService(failingQuizStatus{f.quizzes}, f.jobs, f.queue)

	var logs bytes.Buffer
	log.SetOutput(&logs)
	t.Cleanup(func() { log.SetOutput(os.Stderr) })

	_, err := svc.Generate(context.Background(), f.owner, validGenerateRequest())
	require.Error(t, err)
	assert.Contains(t, logs.String(), "Failed to enqueue job")
	assert.Contains(t, logs.String(), "failed: write failed")
}

func TestGetChecksOwnership(t *testing.T) {
	f := newQuizFixture()
	q := f.readyQuiz(t)

	_, err := f.svc.Get(context.Background(), uuid.New(), q.ID)
	var ferr *ForbiddenError
	assert.ErrorAs(t, err, &ferr)

	_, err = f.svc.Get(context.Background(), f.owner, uuid.New())
	var nerr *NotFoundError
	assert.ErrorAs(t, err, &nerr)

	err = f.svc.Delete(context.Background(), uuid.New(), q.ID)
	assert.ErrorAs(t, err, &ferr)
}

func TestStartRequiresReadyQuiz(t *testing.T) {
	f := newQuizFixture()
	ctx := context.Background()
	pending := &models.Quiz{UserID: f.owner, Status: models.QuizStatusGenerating}
	require.NoError(t, f.quizzes.Create(ctx, pending))

	_, err := f.svc.Start(ctx, f.owner, pending.ID)
	var cerr *ConflictError
	assert.ErrorAs(t, err, &cerr)
}

func TestAttemptLifecycle(t *testing.T) {
	f := newQuizFixture()
	ctx := context.Background()
	q := f.readyQuiz(t)

	attempt, err := f.svc.Start(ctx, f.owner, q.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, attempt.TotalQuestions)

	// The later save overwrites the earlier one.
	require.NoError(t, f.svc.SaveProgress(ctx, f.owner, attempt.ID, models.SaveProgressRequest{QuestionID: "mc", Answer: quiz.IndexAnswer(1)}))
	require.NoError(t, f.svc.SaveProgress(ctx, f.owner, attempt.ID, models.SaveProgressRequest{QuestionID: "mc", Answer: quiz.IndexAnswer(0)}))
	require.NoError(t, f.svc.SaveProgress(ctx, f.owner, attempt.ID, models.SaveProgressRequest{QuestionID: "tf", Answer: quiz.BoolAnswer(false)}))

	err = f.svc.SaveProgress(ctx, f.owner, attempt.ID, models.SaveProgressRequest{QuestionID: "nope", Answer: quiz.BoolAnswer(true)})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)

	// Submitted answers win over saved progress.
	done, err := f.svc.Submit(ctx, f.owner, attempt.ID, quiz.Answers{"tf": quiz.BoolAnswer(true)})
	require.NoError(t, err)
	require.True(t, done.Completed())
	require.NotNil(t, done.CorrectCount)
	assert.Equal(t, 2, *done.CorrectCount)
	assert.Equal(t, 100.0, *done.ScorePercent)
	require.Len(t, done.Results, 2)
	assert.Equal(t, "Furosemide", done.Results[0].CorrectAnswer)

	_, err = f.svc.Submit(ctx, f.owner, attempt.ID, nil)
	var cerr *ConflictError
	assert.ErrorAs(t, err, &cerr)

	err = f.svc.SaveProgress(ctx, f.owner, attempt.ID, models.SaveProgressRequest{QuestionID: "mc", Answer: quiz.IndexAnswer(1)})
	assert.ErrorAs(t, err, &cerr)

	withQuiz, err := f.svc.GetAttempt(ctx, f.owner, attempt.ID)
	require.NoError(t, err)
	assert.Equal(t, q.ID, withQuiz.Quiz.ID)

	attempts, err := f.svc.ListAttempts(ctx, f.owner, q.ID)
	require.NoError(t, err)
	assert.Len(t, attempts, 1)
}

func TestSubmitWithoutAnswersScoresZero(t *testing.T) {
	f := newQuizFixture()
	ctx := context.Background()
	q := f.readyQuiz(t)

	attempt, err := f.svc.Start(ctx, f.owner, q.ID)
	require.NoError(t, err)

	done, err := f.svc.Submit(ctx, f.owner, attempt.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, *done.CorrectCount)
	assert.Equal(t, 0.0, *done.ScorePercent)
}

// staleAttempts reports every attempt as still open, as a reader racing
// another submit would see it.
type staleAttempts struct {
	*repository.MemoryQuizRepo
}

func (s staleAttempts) GetAttemptByID(ctx context.Context, id uuid.UUID) (*models.QuizAttempt, error) {
	a, err := s.MemoryQuizRepo.GetAttemptByID(ctx, id)
	if err != nil {
		return nil, err
	}
	a.CompletedAt = nil
	return a, nil
}

func TestSubmitRacingAnotherSubmitConflicts(t *testing.T) {
	f := newQuizFixture()
	ctx := context.Background()
	q := f.readyQuiz(t)
	attempt, err := f.svc.Start(ctx, f.owner, q.ID)
	require.NoError(t, err)

	_, err = f.svc.Submit(ctx, f.owner, attempt.ID, quiz.Answers{"mc": quiz.IndexAnswer(0)})
	require.NoError(t, err)

	stale := NewQuizService(staleAttempts{f.quizzes}, f.jobs, f.queue)
	_, err = stale.Submit(ctx, f.owner, attempt.ID, quiz.Answers{"mc": quiz.IndexAnswer(1)})
	var cerr *ConflictError
	require.ErrorAs(t, err, &cerr)

	err = stale.SaveProgress(ctx, f.owner, attempt.ID, models.SaveProgressRequest{QuestionID: "mc", Answer: quiz.IndexAnswer(1)})
	require.ErrorAs(t, err, &cerr)

	kept, err := f.quizzes.GetAttemptByID(ctx, attempt.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, *kept.CorrectCount, "the first result is not overwritten")
}

func TestConcurrentSubmitScoresOnce(t *testing.T) {
	f := newQuizFixture()
	ctx := context.Background()
	q := f.readyQuiz(t)
	attempt, err := f.svc.Start(ctx, f.owner, q.ID)
	require.NoError(t, err)

	const submitters = 6
	errs := make([]error, submitters)
	var wg sync.WaitGroup
	for i := 0; i < submitters; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.Submit(ctx, f.owner, attempt.ID, quiz.Answers{"tf": quiz.BoolAnswer(i%2 == 0)})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		var cerr *ConflictError
		assert.ErrorAs(t, err, &cerr)
	}
	assert.Equal(t, 1, succeeded)
}

func TestAttemptOwnership(t *testing.T) {
	f := newQuizFixture()
	ctx := context.Background()
	q := f.readyQuiz(t)
	attempt, err := f.svc.Start(ctx, f.owner, q.ID)
	require.NoError(t, err)

	_, err = f.svc.Submit(ctx, uuid.New(), attempt.ID, nil)
	var ferr *ForbiddenError
	assert.ErrorAs(t, err, &ferr)

	_, err = f.svc.GetAttempt(ctx, f.owner, uuid.New())
	var nerr *NotFoundError
	assert.ErrorAs(t, err, &nerr)
}

func TestGetJob(t *testing.T) {
	f := newQuizFixture()
	ctx := context.Background()
	resp, err := f.svc.Generate(ctx, f.owner, validGenerateRequest())
	require.NoError(t, err)

	job, err := f.svc.GetJob(ctx, f.owner, resp.JobID)
	require.NoError(t, err)
	assert.Equal(t, "pending", job.Status)

	_, err = f.svc.GetJob(ctx, uuid.New(), resp.JobID)
	var ferr *ForbiddenError
	assert.ErrorAs(t, err, &ferr)
}
