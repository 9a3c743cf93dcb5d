package worker

import (
	"bytes"
	"context"
	"errors"
	"log"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mediquiz-backend/internal/models"
	"mediquiz-backend/internal/quiz"
	"mediquiz-backend/internal/repository"
	"mediquiz-backend/internal/services"
)

type fakeGenerator struct {
	analyzeCalls int
	err          error
}

func (g *fakeGenerator) AnalyzeContent(_ context.Context, text string) (*models.ContentAnalysis, error) {
	g.analyzeCalls++
	return &models.ContentAnalysis{Summary: text}, nil
}

func (g *fakeGenerator) GenerateQuestions(_ context.Context, _ string, _ *models.ContentAnalysis, cfg models.QuizConfig, onProgress services.ProgressFunc) ([]quiz.Question, error) {
	if g.err != nil {
		return nil, g.err
	}
	onProgress(models.StageGeneration, 35, "Generating questions 1-2 of 2...")
	raw := make([]map[string]any, cfg.QuestionCount)
	for i := range raw {
		raw[i] = map[string]any{"type": "true_false", "question": "Statement", "correctAnswer": true}
	}
	return quiz.Normalize(raw, 0), nil
}

type capturePublisher struct {
	mu       sync.Mutex
	messages []models.WSMessage
}

func (c *capturePublisher) Publish(_ context.Context, _ uuid.UUID, msg models.WSMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, msg)
}

func (c *capturePublisher) types() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.messages))
	for i, m := range c.messages {
		out[i] = m.Type
	}
	return out
}

type poolFixture struct {
	pool      *Pool
	gen       *fakeGenerator
	quizzes   *repository.MemoryQuizRepo
	jobs      *repository.MemoryJobRepo
	published *capturePublisher
	requeued  chan *models.Job
}

func newPoolFixture() *poolFixture {
	f := &poolFixture{
		gen:       &fakeGenerator{},
		quizzes:   repository.NewMemoryQuizRepo(),
		jobs:      repository.NewMemoryJobRepo(),
		published: &capturePublisher{},
		requeued:  make(chan *models.Job, 4),
	}
	f.pool = NewPool(nil, f.gen, f.quizzes, f.jobs, f.published, 1)
	f.pool.backoff = func(int) time.Duration { return time.Millisecond }
	f.pool.requeue = func(_ context.Context, job *models.Job) error {
		f.requeued <- job
		return nil
	}
	return f
}

func (f *poolFixture) queueQuiz(t *testing.T, analysis *models.ContentAnalysis) (*models.Quiz, *models.Job) {
	t.Helper()
	ctx := context.Background()
	userID := uuid.New()
	q := &models.Quiz{
		UserID:   userID,
		Content:  "Cardiac cycle",
		Analysis: analysis,
		Config:   models.QuizConfig{QuestionCount: 2, QuestionTypes: []string{"true_false"}, Difficulty: "easy"},
		Status:   models.QuizStatusGenerating,
	}
	require.NoError(t, f.quizzes.Create(ctx, q))
	job := &models.Job{UserID: userID, Type: models.JobTypeQuizGeneration, ReferenceID: q.ID}
	require.NoError(t, f.jobs.Create(ctx, job))
	return q, job
}

func TestRunGeneratesQuiz(t *testing.T) {
	f := newPoolFixture()
	ctx := context.Background()
	q, job := f.queueQuiz(t, &models.ContentAnalysis{Summary: "given"})

	f.pool.run(ctx, job)

	stored, err := f.quizzes.GetByID(ctx, q.ID)
	require.NoError(t, err)
	assert.Equal(t, models.QuizStatusReady, stored.Status)
	assert.Len(t, stored.Questions, 2)
	assert.Equal(t, []string{"true_false"}, stored.QuestionTypes)
	assert.Zero(t, f.gen.analyzeCalls)

	storedJob, err := f.jobs.GetByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, "completed", storedJob.Status)
	assert.Equal(t, 100, storedJob.Progress)

	assert.Equal(t, []string{"status_update", "status_update", "status_update", "completed"}, f.published.types())
	last := f.published.messages[3].Payload.(models.CompletedEvent)
	assert.Equal(t, q.ID, last.ResultID)
	assert.Equal(t, "quiz", last.ResultType)
}

func TestRunAnalyzesWhenAnalysisMissing(t *testing.T) {
	f := newPoolFixture()
	_, job := f.queueQuiz(t, nil)

	f.pool.run(context.Background(), job)

	assert.Equal(t, 1, f.gen.analyzeCalls)
	first := f.published.messages[0].Payload.(models.StatusUpdate)
	assert.Equal(t, models.StageAnalysis, first.StepName)
}

func TestRunRetriesTransientFailure(t *testing.T) {
	f := newPoolFixture()
	f.gen.err = errors.New("model overloaded")
	ctx := context.Background()
	q, job := f.queueQuiz(t, &models.ContentAnalysis{})

	f.pool.run(ctx, job)

	select {
	case retry := <-f.requeued:
		assert.Equal(t, job.ID, retry.ID)
		assert.Equal(t, 1, retry.RetryCount)
	case <-time.After(time.Second):
		t.Fatal("job was not requeued")
	}

	storedJob, err := f.jobs.GetByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, "pending", storedJob.Status)
	require.NotNil(t, storedJob.ErrorMessage)
	assert.Contains(t, *storedJob.ErrorMessage, "model overloaded")

	stored, err := f.quizzes.GetByID(ctx, q.ID)
	require.NoError(t, err)
	assert.Equal(t, models.QuizStatusGenerating, stored.Status)
}

func TestRunFailsAfterMaxRetries(t *testing.T) {
	f := newPoolFixture()
	f.gen.err = errors.New("model overloaded")
	ctx := context.Background()
	q, job := f.queueQuiz(t, &models.ContentAnalysis{})
	job.RetryCount = 2

	f.pool.run(ctx, job)

	storedJob, err := f.jobs.GetByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, "failed", storedJob.Status)
	assert.Equal(t, 3, storedJob.RetryCount)

	stored, err := f.quizzes.GetByID(ctx, q.ID)
	require.NoError(t, err)
	assert.Equal(t, models.QuizStatusFailed, stored.Status)

	types := f.published.types()
	assert.Equal(t, "error", types[len(types)-1])
	assert.Empty(t, f.requeued)
}

func TestRunDeletedQuizIsNotRetried(t *testing.T) {
	f := newPoolFixture()
	ctx := context.Background()
	q, job := f.queueQuiz(t, nil)
	require.NoError(t, f.quizzes.Delete(ctx, q.ID))

	f.pool.run(ctx, job)

	storedJob, err := f.jobs.GetByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, "failed", storedJob.Status)
	assert.Empty(t, f.requeued)
}

func TestRunUnknownJobType(t *testing.T) {
	f := newPoolFixture()
	ctx := context.Background()
	job := &models.Job{UserID: uuid.New(), Type: "flashcards"}
	require.NoError(t, f.jobs.Create(ctx, job))

	f.pool.run(ctx, job)

	storedJob, err := f.jobs.GetByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, "failed", storedJob.Status)
}

func TestJobQueueName(t *testing.T) {
	assert.Equal(t, QuizGenerationQueue, jobQueueName(models.JobTypeQuizGeneration))
	assert.Equal(t, "queue:other", jobQueueName("other"))
	assert.Equal(t, "quiz", getResultType(models.JobTypeQuizGeneration))
}

var errStoreDown = errors.New("store unavailable")

type brokenJobs struct{ *repository.MemoryJobRepo }

func (brokenJobs) UpdateStatus(context.Context, uuid.UUID, string) error { return errStoreDown }
func (brokenJobs) UpdateProgress(context.Context, uuid.UUID, int) error { return errStoreDown }
func (brokenJobs) UpdateError(context.Context, uuid.UUID, string, int) error {
	return errStoreDown
}

type brokenQuizStatus struct{ *repository.MemoryQuizRepo }

func (brokenQuizStatus) UpdateStatus(context.Context, uuid.UUID, string) error { return errStoreDown }

func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	log.SetOutput(&buf)
	t.Cleanup(func() { log.SetOutput(os.Stderr) })
	return &buf
}

func TestFailedStatusWritesAreLogged(t *testing.T) {
	f := newPoolFixture()
	ctx := context.Background()
	q, job := f.queueQuiz(t, &models.ContentAnalysis{Summary: "given"})
	job.MaxRetries = 1
	f.gen.err = errors.New("model offline")

	f.pool.jobs = brokenJobs{f.jobs}
	f.pool.quizzes = brokenQuizStatus{f.quizzes}
	logs := captureLog(t)

	f.pool.run(ctx, job)

	out := logs.String()
	assert.Contains(t, out, "Failed to set job "+job.ID.String()+" to processing")
	assert.Contains(t, out, "Failed to set job "+job.ID.String()+" to failed")
	assert.Contains(t, out, "Failed to record error for job "+job.ID.String())
	assert.Contains(t, out, "Failed to mark quiz "+q.ID.String()+" failed")
	assert.Contains(t, out, errStoreDown.Error())

	// The user is still told about the failure.
	assert.Contains(t, f.published.types(), "error")
}
