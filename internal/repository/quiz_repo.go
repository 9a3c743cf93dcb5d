package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"mediquiz-backend/internal/models"
	"mediquiz-backend/internal/quiz"
)

type QuizRepo struct {
	pool *pgxpool.Pool
}

func NewQuizRepo(pool *pgxpool.Pool) *QuizRepo {
	return &QuizRepo{pool: pool}
}

const quizColumns = `id, user_id, title, description, content, analysis_json, config_json,
	questions_json, question_count, question_types, status, created_at`

func (r *QuizRepo) Create(ctx context.Context, q *models.Quiz) error {
	if q.ID == uuid.Nil {
		q.ID = uuid.New()
	}
	if q.Status == "" {
		q.Status = models.QuizStatusGenerating
	}
	analysisBytes, err := json.Marshal(q.Analysis)
	if err != nil {
		return fmt.Errorf("encode analysis: %w", err)
	}
	configBytes, err := json.Marshal(q.Config)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	questionsBytes, err := json.Marshal(q.Questions)
	if err != nil {
		return fmt.Errorf("encode questions: %w", err)
	}
	if q.QuestionTypes == nil {
		q.QuestionTypes = []string{}
	}

	query := `INSERT INTO quizzes (id, user_id, title, description, content, analysis_json, config_json,
		questions_json, question_count, question_types, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11) RETURNING created_at`

	return r.pool.QueryRow(ctx, query,
		q.ID, q.UserID, q.Title, q.Description, q.Content, analysisBytes, configBytes,
		questionsBytes, q.QuestionCount, q.QuestionTypes, q.Status,
	).Scan(&q.CreatedAt)
}

func scanQuiz(row pgx.Row) (*models.Quiz, error) {
	q := &models.Quiz{}
	var analysisBytes, configBytes, questionsBytes []byte
	err := row.Scan(
		&q.ID, &q.UserID, &q.Title, &q.Description, &q.Content, &analysisBytes, &configBytes,
		&questionsBytes, &q.QuestionCount, &q.QuestionTypes, &q.Status, &q.CreatedAt,
	)
	if err != nil {
		return nil, mapErr(err)
	}
	if len(analysisBytes) > 0 {
		if err := json.Unmarshal(analysisBytes, &q.Analysis); err != nil {
			return nil, fmt.Errorf("decode analysis: %w", err)
		}
	}
	if len(configBytes) > 0 {
		if err := json.Unmarshal(configBytes, &q.Config); err != nil {
			return nil, fmt.Errorf("decode config: %w", err)
		}
	}
	if len(questionsBytes) > 0 {
		if err := json.Unmarshal(questionsBytes, &q.Questions); err != nil {
			return nil, fmt.Errorf("decode questions: %w", err)
		}
	}
	return q, nil
}

func (r *QuizRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Quiz, error) {
	query := `SELECT ` + quizColumns + ` FROM quizzes WHERE id = $1`
	return scanQuiz(r.pool.QueryRow(ctx, query, id))
}

func (r *QuizRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.Quiz, error) {
	query := `SELECT ` + quizColumns + ` FROM quizzes WHERE user_id = $1 ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	quizzes := make([]*models.Quiz, 0)
	for rows.Next() {
		q, err := scanQuiz(rows)
		if err != nil {
			return nil, err
		}
		quizzes = append(quizzes, q)
	}
	return quizzes, rows.Err()
}

func (r *QuizRepo) UpdateQuestions(ctx context.Context, id uuid.UUID, questions quiz.Set) error {
	data, err := json.Marshal(questions)
	if err != nil {
		return fmt.Errorf("encode questions: %w", err)
	}
	tag, err := r.pool.Exec(ctx,
		"UPDATE quizzes SET questions_json = $1, question_count = $2, question_types = $3 WHERE id = $4",
		data, len(questions), nonNil(questions.TypeNames()), id,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *QuizRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	tag, err := r.pool.Exec(ctx, "UPDATE quizzes SET status = $1 WHERE id = $2", status, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *QuizRepo) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, "DELETE FROM quizzes WHERE id = $1", id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Quiz Attempts

const attemptColumns = `id, quiz_id, user_id, answers_json, results_json, total_questions,
	score_percent, correct_count, started_at, completed_at, time_taken_seconds`

func (r *QuizRepo) CreateAttempt(ctx context.Context, a *models.QuizAttempt) error {
	a.ID = uuid.New()
	a.StartedAt = time.Now()
	if a.Answers == nil {
		a.Answers = quiz.Answers{}
	}
	query := `INSERT INTO quiz_attempts (id, quiz_id, user_id, total_questions, started_at)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := r.pool.Exec(ctx, query, a.ID, a.QuizID, a.UserID, a.TotalQuestions, a.StartedAt)
	return err
}

func scanAttempt(row pgx.Row) (*models.QuizAttempt, error) {
	a := &models.QuizAttempt{}
	var answersBytes, resultsBytes []byte
	err := row.Scan(
		&a.ID, &a.QuizID, &a.UserID, &answersBytes, &resultsBytes, &a.TotalQuestions,
		&a.ScorePercent, &a.CorrectCount, &a.StartedAt, &a.CompletedAt, &a.TimeTakenSeconds,
	)
	if err != nil {
		return nil, mapErr(err)
	}
	a.Answers = quiz.Answers{}
	if len(answersBytes) > 0 {
		if err := json.Unmarshal(answersBytes, &a.Answers); err != nil {
			return nil, fmt.Errorf("decode answers: %w", err)
		}
	}
	if len(resultsBytes) > 0 {
		if err := json.Unmarshal(resultsBytes, &a.Results); err != nil {
			return nil, fmt.Errorf("decode results: %w", err)
		}
	}
	return a, nil
}

func (r *QuizRepo) GetAttemptByID(ctx context.Context, id uuid.UUID) (*models.QuizAttempt, error) {
	query := `SELECT ` + attemptColumns + ` FROM quiz_attempts WHERE id = $1`
	return scanAttempt(r.pool.QueryRow(ctx, query, id))
}

// SaveProgress records one answer, replacing any earlier answer to the same
// question.
func (r *QuizRepo) SaveProgress(ctx context.Context, attemptID uuid.UUID, questionID string, answer quiz.Answer) error {
	data, err := json.Marshal(answer)
	if err != nil {
		return fmt.Errorf("encode answer: %w", err)
	}
	tag, err := r.pool.Exec(ctx,
		`UPDATE quiz_attempts
		 SET answers_json = COALESCE(answers_json, '{}'::jsonb) || jsonb_build_object($1::text, $2::jsonb)
		 WHERE id = $3 AND completed_at IS NULL`,
		questionID, data, attemptID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return r.attemptUpdateMiss(ctx, attemptID)
	}
	return nil
}

func (r *QuizRepo) SubmitAttempt(ctx context.Context, attemptID uuid.UUID, answers quiz.Answers, summary quiz.Summary) error {
	if answers == nil {
		answers = quiz.Answers{}
	}
	answersBytes, err := json.Marshal(answers)
	if err != nil {
		return fmt.Errorf("encode answers: %w", err)
	}
	resultsBytes, err := json.Marshal(summary.Results)
	if err != nil {
		return fmt.Errorf("encode results: %w", err)
	}
	now := time.Now()
	tag, err := r.pool.Exec(ctx,
		`UPDATE quiz_attempts SET answers_json = $1, results_json = $2, score_percent = $3, correct_count = $4,
		 total_questions = $5, completed_at = $6, time_taken_seconds = EXTRACT(EPOCH FROM ($6 - started_at))::INTEGER
		 WHERE id = $7 AND completed_at IS NULL`,
		answersBytes, resultsBytes, float64(summary.Percent()), summary.Correct, summary.Total, now, attemptID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return r.attemptUpdateMiss(ctx, attemptID)
	}
	return nil
}

// attemptUpdateMiss explains why a guarded attempt update touched no rows.
func (r *QuizRepo) attemptUpdateMiss(ctx context.Context, attemptID uuid.UUID) error {
	var completed bool
	err := r.pool.QueryRow(ctx,
		`SELECT completed_at IS NOT NULL FROM quiz_attempts WHERE id = $1`, attemptID,
	).Scan(&completed)
	if err != nil {
		return mapErr(err)
	}
	if completed {
		return ErrAttemptCompleted
	}
	return ErrNotFound
}

func (r *QuizRepo) listAttempts(ctx context.Context, where string, arg uuid.UUID) ([]*models.QuizAttempt, error) {
	query := `SELECT ` + attemptColumns + ` FROM quiz_attempts WHERE ` + where + ` = $1 ORDER BY started_at DESC`
	rows, err := r.pool.Query(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	attempts := make([]*models.QuizAttempt, 0)
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}

func (r *QuizRepo) ListAttempts(ctx context.Context, quizID uuid.UUID) ([]*models.QuizAttempt, error) {
	return r.listAttempts(ctx, "quiz_id", quizID)
}

func (r *QuizRepo) ListAttemptsByUser(ctx context.Context, userID uuid.UUID) ([]*models.QuizAttempt, error) {
	return r.listAttempts(ctx, "user_id", userID)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func timeTaken(started, completed time.Time) int {
	return int(math.Round(completed.Sub(started).Seconds()))
}
