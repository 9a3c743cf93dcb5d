package models

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID           uuid.UUID  `json:"id"`
	Username     string     `json:"username"`
	PasswordHash string     `json:"-"`
	IsGuest      bool       `json:"is_guest"`
	FullName     string     `json:"full_name"`
	Email        string     `json:"email"`
	Bio          string     `json:"bio"`
	AvatarURL    *string    `json:"avatar_url"`
	CreatedAt    time.Time  `json:"created_at"`
	LastLoginAt  *time.Time `json:"last_login_at"`
}

// UpdateProfileRequest changes only the fields that are present.
type UpdateProfileRequest struct {
	FullName  *string `json:"full_name"`
	Email     *string `json:"email"`
	Bio       *string `json:"bio"`
	AvatarURL *string `json:"avatar_url"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

type RegisterRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type AuthTokens struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
	User        *User  `json:"user"`
}

// ProfileStats summarizes a user's study activity.
type ProfileStats struct {
	TotalQuizzes  int     `json:"totalQuizzes"`
	TotalAttempts int     `json:"totalAttempts"`
	AverageScore  float64 `json:"averageScore"`
	StudyStreak   int     `json:"studyStreak"`
}

type Profile struct {
	User  *User        `json:"user"`
	Stats ProfileStats `json:"stats"`
}
