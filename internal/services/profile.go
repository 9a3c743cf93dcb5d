package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"mediquiz-backend/internal/models"
	"mediquiz-backend/internal/repository"
)

type ProfileService struct {
	users   repository.UserStore
	quizzes repository.QuizStore
	now     func() time.Time
}

func NewProfileService(users repository.UserStore, quizzes repository.QuizStore) *ProfileService {
	return &ProfileService{users: users, quizzes: quizzes, now: time.Now}
}

func (s *ProfileService) Get(ctx context.Context, userID uuid.UUID) (*models.Profile, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, &NotFoundError{Message: "User not found"}
		}
		return nil, err
	}
	stats, err := s.Stats(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &models.Profile{User: user, Stats: *stats}, nil
}

// Update applies the fields present in req and returns the refreshed profile.
func (s *ProfileService) Update(ctx context.Context, userID uuid.UUID, req models.UpdateProfileRequest) (*models.Profile, error) {
	if err := ValidateProfileUpdate(req); err != nil {
		return nil, err
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, &NotFoundError{Message: "User not found"}
		}
		return nil, err
	}

	if req.FullName != nil {
		user.FullName = strings.TrimSpace(*req.FullName)
	}
	if req.Email != nil {
		user.Email = strings.ToLower(strings.TrimSpace(*req.Email))
	}
	if req.Bio != nil {
		user.Bio = strings.TrimSpace(*req.Bio)
	}
	if req.AvatarURL != nil {
		if avatar := strings.TrimSpace(*req.AvatarURL); avatar != "" {
			user.AvatarURL = &avatar
		} else {
			user.AvatarURL = nil
		}
	}

	if err := s.users.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}
	return s.Get(ctx, userID)
}

// Stats counts the user's quizzes and completed attempts. The average score
// is rounded to one decimal.
func (s *ProfileService) Stats(ctx context.Context, userID uuid.UUID) (*models.ProfileStats, error) {
	quizzes, err := s.quizzes.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	attempts, err := s.quizzes.ListAttemptsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	stats := &models.ProfileStats{TotalQuizzes: len(quizzes)}
	var sum float64
	days := make(map[string]bool)
	for _, a := range attempts {
		if !a.Completed() {
			continue
		}
		stats.TotalAttempts++
		if a.ScorePercent != nil {
			sum += *a.ScorePercent
		}
		days[dayKey(*a.CompletedAt)] = true
	}
	if stats.TotalAttempts > 0 {
		stats.AverageScore = math.Round(sum/float64(stats.TotalAttempts)*10) / 10
	}
	stats.StudyStreak = studyStreak(days, s.now())
	return stats, nil
}

func dayKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// studyStreak counts consecutive UTC days with a completed attempt, ending
// today or, if nothing was completed today yet, yesterday.
func studyStreak(days map[string]bool, now time.Time) int {
	day := now.UTC()
	if !days[dayKey(day)] {
		day = day.AddDate(0, 0, -1)
	}
	streak := 0
	for days[dayKey(day)] {
		streak++
		day = day.AddDate(0, 0, -1)
	}
	return streak
}
