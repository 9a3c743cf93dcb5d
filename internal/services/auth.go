package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"regexp"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"mediquiz-backend/internal/middleware"
	"mediquiz-backend/internal/models"
	"mediquiz-backend/internal/repository"
)

type AuthService struct {
	users      repository.UserStore
	jwt        *middleware.JWTAuth
	bcryptCost int
}

func NewAuthService(users repository.UserStore, jwt *middleware.JWTAuth) *AuthService {
	return &AuthService{
		users:      users,
		jwt:        jwt,
		bcryptCost: 12,
	}
}

// WithBcryptCost overrides the hashing cost. Tests use bcrypt.MinCost.
func (s *AuthService) WithBcryptCost(cost int) *AuthService {
	s.bcryptCost = cost
	return s
}

var usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9_.-]{3,32}$`)

func (s *AuthService) Register(ctx context.Context, req models.RegisterRequest) (*models.AuthTokens, error) {
	fieldErrors := make(map[string]string)

	if !usernameRegex.MatchString(req.Username) {
		fieldErrors["username"] = "Username must be 3-32 letters, digits, '.', '_' or '-'"
	}
	if err := validatePassword(req.Password); err != nil {
		fieldErrors["password"] = err.Error()
	}

	if len(fieldErrors) > 0 {
		return nil, &ValidationError{Fields: fieldErrors}
	}

	_, err := s.users.GetByUsername(ctx, req.Username)
	if err == nil {
		return nil, &ConflictError{Message: "Username already taken"}
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Username:     req.Username,
		PasswordHash: string(hash),
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, &ConflictError{Message: "Username already taken"}
		}
		return nil, err
	}

	return s.issueTokens(user)
}

func (s *AuthService) Login(ctx context.Context, req models.LoginRequest) (*models.AuthTokens, error) {
	user, err := s.users.GetByUsername(ctx, req.Username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, &UnauthorizedError{Message: "Invalid username or password"}
		}
		return nil, err
	}

	if user.IsGuest || user.PasswordHash == "" {
		return nil, &UnauthorizedError{Message: "Invalid username or password"}
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, &UnauthorizedError{Message: "Invalid username or password"}
	}

	if err := s.users.UpdateLastLogin(ctx, user.ID); err != nil {
		log.Printf("Failed to record login for user %s: %v", user.ID, err)
	}

	return s.issueTokens(user)
}

// Guest creates an anonymous account so quizzes can be taken without
// registering.
func (s *AuthService) Guest(ctx context.Context) (*models.AuthTokens, error) {
	suffix, err := generateToken(6)
	if err != nil {
		return nil, err
	}
	user := &models.User{
		Username: "guest-" + suffix,
		IsGuest:  true,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	return s.issueTokens(user)
}

// ChangePassword replaces the password of a registered account after
// checking the current one.
func (s *AuthService) ChangePassword(ctx context.Context, userID uuid.UUID, req models.ChangePasswordRequest) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return &NotFoundError{Message: "User not found"}
		}
		return err
	}
	if user.IsGuest || user.PasswordHash == "" {
		return &ForbiddenError{Message: "Guest accounts have no password"}
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.CurrentPassword)); err != nil {
		return &UnauthorizedError{Message: "Current password is incorrect"}
	}
	if err := validatePassword(req.NewPassword); err != nil {
		return &ValidationError{Fields: map[string]string{"new_password": err.Error()}}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), s.bcryptCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	return s.users.UpdatePassword(ctx, userID, string(hash))
}

func (s *AuthService) issueTokens(user *models.User) (*models.AuthTokens, error) {
	accessToken, err := s.jwt.GenerateAccessToken(user.ID, user.Username, user.IsGuest)
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}

	return &models.AuthTokens{
		AccessToken: accessToken,
		ExpiresIn:   int(s.jwt.TTL.Seconds()),
		User:        user,
	}, nil
}

func generateToken(bytes int) (string, error) {
	b := make([]byte, bytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

func validatePassword(pw string) error {
	if len(pw) < 8 {
		return fmt.Errorf("Password must be at least 8 characters")
	}
	hasNumber := false
	for _, ch := range pw {
		if unicode.IsDigit(ch) {
			hasNumber = true
			break
		}
	}
	if !hasNumber {
		return fmt.Errorf("Password must contain at least one number")
	}
	return nil
}
