package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"mediquiz-backend/internal/models"
)

const QuizGenerationQueue = "queue:quiz-generation"

// RedisQueue pushes jobs onto the Redis lists the pool pops from.
type RedisQueue struct {
	redis *redis.Client
}

func NewRedisQueue(client *redis.Client) *RedisQueue {
	return &RedisQueue{redis: client}
}

func (q *RedisQueue) Enqueue(ctx context.Context, job *models.Job) error {
	jobBytes, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode job: %w", err)
	}
	return q.redis.LPush(ctx, jobQueueName(job.Type), string(jobBytes)).Err()
}

func jobQueueName(jobType string) string {
	switch jobType {
	case models.JobTypeQuizGeneration:
		return QuizGenerationQueue
	default:
		return "queue:" + jobType
	}
}

func getResultType(jobType string) string {
	switch jobType {
	case models.JobTypeQuizGeneration:
		return "quiz"
	default:
		return jobType
	}
}
