package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"mediquiz-backend/internal/models"
	"mediquiz-backend/internal/quiz"
)

// MemoryQuizRepo keeps quizzes and attempts in process memory. It is used
// when no database is configured and in tests. Returned values are copies.
type MemoryQuizRepo struct {
	mu       sync.RWMutex
	quizzes  map[uuid.UUID]models.Quiz
	attempts map[uuid.UUID]models.QuizAttempt
}

func NewMemoryQuizRepo() *MemoryQuizRepo {
	return &MemoryQuizRepo{
		quizzes:  map[uuid.UUID]models.Quiz{},
		attempts: map[uuid.UUID]models.QuizAttempt{},
	}
}

func (m *MemoryQuizRepo) Create(_ context.Context, q *models.Quiz) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if q.ID == uuid.Nil {
		q.ID = uuid.New()
	}
	if q.Status == "" {
		q.Status = models.QuizStatusGenerating
	}
	if q.QuestionTypes == nil {
		q.QuestionTypes = []string{}
	}
	q.CreatedAt = time.Now()
	m.quizzes[q.ID] = *q
	return nil
}

func (m *MemoryQuizRepo) GetByID(_ context.Context, id uuid.UUID) (*models.Quiz, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	q, ok := m.quizzes[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyQuiz(q), nil
}

func (m *MemoryQuizRepo) ListByUser(_ context.Context, userID uuid.UUID) ([]*models.Quiz, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*models.Quiz, 0)
	for _, q := range m.quizzes {
		if q.UserID == userID {
			out = append(out, copyQuiz(q))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryQuizRepo) UpdateQuestions(_ context.Context, id uuid.UUID, questions quiz.Set) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.quizzes[id]
	if !ok {
		return ErrNotFound
	}
	q.Questions = append(quiz.Set{}, questions...)
	q.QuestionCount = len(questions)
	q.QuestionTypes = nonNil(questions.TypeNames())
	m.quizzes[id] = q
	return nil
}

func (m *MemoryQuizRepo) UpdateStatus(_ context.Context, id uuid.UUID, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.quizzes[id]
	if !ok {
		return ErrNotFound
	}
	q.Status = status
	m.quizzes[id] = q
	return nil
}

func (m *MemoryQuizRepo) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.quizzes[id]; !ok {
		return ErrNotFound
	}
	delete(m.quizzes, id)
	for aid, a := range m.attempts {
		if a.QuizID == id {
			delete(m.attempts, aid)
		}
	}
	return nil
}

func (m *MemoryQuizRepo) CreateAttempt(_ context.Context, a *models.QuizAttempt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.quizzes[a.QuizID]; !ok {
		return ErrNotFound
	}
	a.ID = uuid.New()
	a.StartedAt = time.Now()
	if a.Answers == nil {
		a.Answers = quiz.Answers{}
	}
	m.attempts[a.ID] = *copyAttempt(*a)
	return nil
}

func (m *MemoryQuizRepo) GetAttemptByID(_ context.Context, id uuid.UUID) (*models.QuizAttempt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.attempts[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyAttempt(a), nil
}

func (m *MemoryQuizRepo) SaveProgress(_ context.Context, attemptID uuid.UUID, questionID string, answer quiz.Answer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.attempts[attemptID]
	if !ok {
		return ErrNotFound
	}
	if a.CompletedAt != nil {
		return ErrAttemptCompleted
	}
	a.Answers[questionID] = answer
	m.attempts[attemptID] = a
	return nil
}

func (m *MemoryQuizRepo) SubmitAttempt(_ context.Context, attemptID uuid.UUID, answers quiz.Answers, summary quiz.Summary) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.attempts[attemptID]
	if !ok {
		return ErrNotFound
	}
	if a.CompletedAt != nil {
		return ErrAttemptCompleted
	}
	now := time.Now()
	score := float64(summary.Percent())
	correct := summary.Correct
	taken := timeTaken(a.StartedAt, now)

	a.Answers = copyAnswers(answers)
	a.Results = append([]quiz.Result{}, summary.Results...)
	a.TotalQuestions = summary.Total
	a.ScorePercent = &score
	a.CorrectCount = &correct
	a.CompletedAt = &now
	a.TimeTakenSeconds = &taken
	m.attempts[attemptID] = a
	return nil
}

func (m *MemoryQuizRepo) listAttempts(match func(models.QuizAttempt) bool) []*models.QuizAttempt {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*models.QuizAttempt, 0)
	for _, a := range m.attempts {
		if match(a) {
			out = append(out, copyAttempt(a))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	return out
}

func (m *MemoryQuizRepo) ListAttempts(_ context.Context, quizID uuid.UUID) ([]*models.QuizAttempt, error) {
	return m.listAttempts(func(a models.QuizAttempt) bool { return a.QuizID == quizID }), nil
}

func (m *MemoryQuizRepo) ListAttemptsByUser(_ context.Context, userID uuid.UUID) ([]*models.QuizAttempt, error) {
	return m.listAttempts(func(a models.QuizAttempt) bool { return a.UserID == userID }), nil
}

func copyQuiz(q models.Quiz) *models.Quiz {
	q.Questions = append(quiz.Set(nil), q.Questions...)
	q.QuestionTypes = append([]string{}, q.QuestionTypes...)
	return &q
}

func copyAttempt(a models.QuizAttempt) *models.QuizAttempt {
	a.Answers = copyAnswers(a.Answers)
	if a.Results != nil {
		a.Results = append([]quiz.Result{}, a.Results...)
	}
	return &a
}

func copyAnswers(in quiz.Answers) quiz.Answers {
	out := make(quiz.Answers, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// MemoryUserRepo is the in-process UserStore.
type MemoryUserRepo struct {
	mu    sync.RWMutex
	users map[uuid.UUID]models.User
}

func NewMemoryUserRepo() *MemoryUserRepo {
	return &MemoryUserRepo{users: map[uuid.UUID]models.User{}}
}

func (m *MemoryUserRepo) Create(_ context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Username == user.Username {
			return ErrDuplicate
		}
	}
	user.ID = uuid.New()
	user.CreatedAt = time.Now()
	m.users[user.ID] = *user
	return nil
}

func (m *MemoryUserRepo) GetByUsername(_ context.Context, username string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if u.Username == username {
			return &u, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryUserRepo) GetByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}

func (m *MemoryUserRepo) UpdateLastLogin(_ context.Context, userID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return ErrNotFound
	}
	now := time.Now()
	u.LastLoginAt = &now
	m.users[userID] = u
	return nil
}

// Update stores the editable profile fields.
func (m *MemoryUserRepo) Update(_ context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[user.ID]
	if !ok {
		return ErrNotFound
	}
	u.FullName = user.FullName
	u.Email = user.Email
	u.Bio = user.Bio
	u.AvatarURL = user.AvatarURL
	m.users[user.ID] = u
	return nil
}

func (m *MemoryUserRepo) UpdatePassword(_ context.Context, userID uuid.UUID, passwordHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return ErrNotFound
	}
	u.PasswordHash = passwordHash
	m.users[userID] = u
	return nil
}

// MemoryJobRepo is the in-process JobStore.
type MemoryJobRepo struct {
	mu   sync.RWMutex
	jobs map[uuid.UUID]models.Job
}

func NewMemoryJobRepo() *MemoryJobRepo {
	return &MemoryJobRepo{jobs: map[uuid.UUID]models.Job{}}
}

func (m *MemoryJobRepo) Create(_ context.Context, j *models.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	j.ID = uuid.New()
	j.Status = "pending"
	j.Progress = 0
	j.RetryCount = 0
	j.MaxRetries = 3
	j.CreatedAt = time.Now()
	m.jobs[j.ID] = *j
	return nil
}

func (m *MemoryJobRepo) GetByID(_ context.Context, id uuid.UUID) (*models.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	j, ok := m.jobs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &j, nil
}

func (m *MemoryJobRepo) update(id uuid.UUID, fn func(*models.Job)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return ErrNotFound
	}
	fn(&j)
	m.jobs[id] = j
	return nil
}

func (m *MemoryJobRepo) UpdateStatus(_ context.Context, id uuid.UUID, status string) error {
	return m.update(id, func(j *models.Job) {
		j.Status = status
		if status == "completed" || status == "failed" {
			now := time.Now()
			j.CompletedAt = &now
		}
	})
}

func (m *MemoryJobRepo) UpdateProgress(_ context.Context, id uuid.UUID, progress int) error {
	return m.update(id, func(j *models.Job) { j.Progress = progress })
}

func (m *MemoryJobRepo) UpdateError(_ context.Context, id uuid.UUID, errMsg string, retryCount int) error {
	return m.update(id, func(j *models.Job) {
		j.ErrorMessage = &errMsg
		j.RetryCount = retryCount
	})
}

var (
	_ QuizStore = (*QuizRepo)(nil)
	_ QuizStore = (*MemoryQuizRepo)(nil)
	_ UserStore = (*UserRepo)(nil)
	_ UserStore = (*MemoryUserRepo)(nil)
	_ JobStore  = (*JobRepo)(nil)
	_ JobStore  = (*MemoryJobRepo)(nil)
)
