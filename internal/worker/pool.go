package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"mediquiz-backend/internal/models"
	"mediquiz-backend/internal/quiz"
	"mediquiz-backend/internal/repository"
	"mediquiz-backend/internal/services"
)

// Generator is the slice of the generation service the pool needs.
type Generator interface {
	AnalyzeContent(ctx context.Context, text string) (*models.ContentAnalysis, error)
	GenerateQuestions(ctx context.Context, content string, analysis *models.ContentAnalysis, cfg models.QuizConfig, onProgress services.ProgressFunc) ([]quiz.Question, error)
}

const defaultMaxRetries = 3

type Pool struct {
	redis       *redis.Client
	generator   Generator
	quizzes     repository.QuizStore
	jobs        repository.JobStore
	publisher   services.Publisher
	workerCount int
	stopChan    chan struct{}
	wg          sync.WaitGroup

	// requeue and backoff are swapped out in tests.
	requeue func(ctx context.Context, job *models.Job) error
	backoff func(retry int) time.Duration
}

func NewPool(
	redisClient *redis.Client,
	generator Generator,
	quizzes repository.QuizStore,
	jobs repository.JobStore,
	publisher services.Publisher,
	workerCount int,
) *Pool {
	p := &Pool{
		redis:       redisClient,
		generator:   generator,
		quizzes:     quizzes,
		jobs:        jobs,
		publisher:   publisher,
		workerCount: workerCount,
		stopChan:    make(chan struct{}),
		backoff: func(retry int) time.Duration {
			return time.Duration(1<<uint(retry)) * time.Second
		},
	}
	p.requeue = NewRedisQueue(redisClient).Enqueue
	return p
}

func (p *Pool) Start() {
	queues := []string{QuizGenerationQueue}

	for i := 0; i < p.workerCount; i++ {
		p.wg.Add(1)
		go p.worker(i, queues)
	}

	log.Printf("Started %d worker goroutines", p.workerCount)
}

// Stop signals the workers and waits for in-flight jobs. A worker blocked in
// BLPOP exits once its timeout elapses.
func (p *Pool) Stop() {
	close(p.stopChan)
	p.wg.Wait()
}

func (p *Pool) worker(id int, queues []string) {
	defer p.wg.Done()
	for {
		select {
		case <-p.stopChan:
			log.Printf("Worker %d shutting down", id)
			return
		default:
		}

		ctx := context.Background()

		// BLPOP with 30s timeout
		result, err := p.redis.BLPop(ctx, 30*time.Second, queues...).Result()
		if err != nil {
			continue // Timeout or error, retry
		}

		if len(result) < 2 {
			continue
		}

		var job models.Job
		if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
			log.Printf("Worker %d: failed to parse job: %v", id, err)
			continue
		}

		lockKey := fmt.Sprintf("job_lock:%s", job.ID.String())
		locked, err := p.redis.SetNX(ctx, lockKey, "1", 10*time.Minute).Result()
		if err != nil || !locked {
			continue // Another worker has this job
		}

		log.Printf("Worker %d: processing job %s (type: %s)", id, job.ID, job.Type)
		p.run(ctx, &job)

		p.redis.Del(ctx, lockKey)
	}
}

// run executes one job and records the outcome.
func (p *Pool) run(ctx context.Context, job *models.Job) {
	p.setJobStatus(ctx, job, "processing")

	var processErr error
	switch job.Type {
	case models.JobTypeQuizGeneration:
		processErr = p.processQuiz(ctx, job)
	default:
		processErr = permanent(fmt.Errorf("unknown job type: %s", job.Type))
	}

	if processErr != nil {
		p.handleFailure(ctx, job, processErr)
	} else {
		p.handleSuccess(ctx, job)
	}
}

// permanentError marks failures that retrying cannot fix.
type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

func permanent(err error) error { return &permanentError{err: err} }

func (p *Pool) setJobStatus(ctx context.Context, job *models.Job, status string) {
	if err := p.jobs.UpdateStatus(ctx, job.ID, status); err != nil {
		log.Printf("Failed to set job %s to %s: %v", job.ID, status, err)
	}
}

func (p *Pool) recordJobError(ctx context.Context, job *models.Job, errMsg string) {
	if err := p.jobs.UpdateError(ctx, job.ID, errMsg, job.RetryCount); err != nil {
		log.Printf("Failed to record error for job %s: %v", job.ID, err)
	}
}

func (p *Pool) progress(ctx context.Context, job *models.Job, stage string, pct int, message string) {
	if err := p.jobs.UpdateProgress(ctx, job.ID, pct); err != nil {
		log.Printf("Failed to record progress %d%% for job %s: %v", pct, job.ID, err)
	}
	p.publisher.Publish(ctx, job.UserID, models.WSMessage{
		Type: "status_update",
		Payload: models.StatusUpdate{
			JobID:    job.ID,
			Progress: pct,
			StepName: stage,
			Message:  message,
		},
	})
}

func (p *Pool) processQuiz(ctx context.Context, job *models.Job) error {
	q, err := p.quizzes.GetByID(ctx, job.ReferenceID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return permanent(fmt.Errorf("quiz %s no longer exists", job.ReferenceID))
		}
		return fmt.Errorf("failed to get quiz: %w", err)
	}

	cfg := q.Config
	if len(job.ConfigJSON) > 0 {
		if err := json.Unmarshal(job.ConfigJSON, &cfg); err != nil {
			return permanent(fmt.Errorf("invalid job config: %w", err))
		}
	}

	analysis := q.Analysis
	if analysis == nil {
		p.progress(ctx, job, models.StageAnalysis, 15, "Analyzing content...")
		analysis, err = p.generator.AnalyzeContent(ctx, q.Content)
		if err != nil {
			return err
		}
	}

	questions, err := p.generator.GenerateQuestions(ctx, q.Content, analysis, cfg,
		func(stage string, pct int, message string) {
			p.progress(ctx, job, stage, pct, message)
		})
	if err != nil {
		return err
	}

	p.progress(ctx, job, models.StageSaving, 90, "Saving quiz...")
	if err := p.quizzes.UpdateQuestions(ctx, q.ID, questions); err != nil {
		return fmt.Errorf("failed to save questions: %w", err)
	}
	if err := p.quizzes.UpdateStatus(ctx, q.ID, models.QuizStatusReady); err != nil {
		return fmt.Errorf("failed to mark quiz ready: %w", err)
	}
	p.progress(ctx, job, models.StageComplete, 100, fmt.Sprintf("Generated %d questions", len(questions)))
	return nil
}

func (p *Pool) handleSuccess(ctx context.Context, job *models.Job) {
	p.setJobStatus(ctx, job, "completed")

	p.publisher.Publish(ctx, job.UserID, models.WSMessage{
		Type: "completed",
		Payload: models.CompletedEvent{
			JobID:      job.ID,
			ResultID:   job.ReferenceID,
			ResultType: getResultType(job.Type),
		},
	})

	log.Printf("Job %s completed successfully", job.ID)
}

func (p *Pool) handleFailure(ctx context.Context, job *models.Job, err error) {
	job.RetryCount++
	errMsg := err.Error()

	maxRetries := job.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}

	var perm *permanentError
	if job.RetryCount < maxRetries && !errors.As(err, &perm) {
		log.Printf("Job %s failed (attempt %d): %s; retrying", job.ID, job.RetryCount, errMsg)
		p.setJobStatus(ctx, job, "pending")
		p.recordJobError(ctx, job, errMsg)

		retry := *job
		time.AfterFunc(p.backoff(job.RetryCount), func() {
			if err := p.requeue(context.Background(), &retry); err != nil {
				log.Printf("Failed to requeue job %s: %v", retry.ID, err)
			}
		})
		return
	}

	log.Printf("Job %s failed permanently: %s", job.ID, errMsg)
	p.setJobStatus(ctx, job, "failed")
	p.recordJobError(ctx, job, errMsg)
	if job.Type == models.JobTypeQuizGeneration {
		if err := p.quizzes.UpdateStatus(ctx, job.ReferenceID, models.QuizStatusFailed); err != nil && !errors.Is(err, repository.ErrNotFound) {
			log.Printf("Failed to mark quiz %s failed after job %s: %v", job.ReferenceID, job.ID, err)
		}
	}

	p.publisher.Publish(ctx, job.UserID, models.WSMessage{
		Type: "error",
		Payload: models.ErrorEvent{
			JobID:        job.ID,
			ErrorCode:    "JOB_FAILED",
			ErrorMessage: errMsg,
		},
	})
}
