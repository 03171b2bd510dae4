package auth

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"mt-trading-dashboard/internal/database"
)

// UserStore is the slice of the persistence layer the auth service needs
type UserStore interface {
	CreateUser(ctx context.Context, user *database.User) error
	GetUserByEmail(ctx context.Context, email string) (*database.User, error)
}

// Service implements registration and login for dashboard users
type Service struct {
	store     UserStore
	passwords *PasswordManager
	tokens    *JWTManager
}

// NewService creates a new auth service
func NewService(store UserStore, passwords *PasswordManager, tokens *JWTManager) *Service {
	return &Service{store: store, passwords: passwords, tokens: tokens}
}

// Register creates a new user account
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*UserResponse, error) {
	if err := s.passwords.ValidatePasswordStrength(req.Password); err != nil {
		return nil, err
	}

	if _, err := s.store.GetUserByEmail(ctx, req.Email); err == nil {
		return nil, ErrEmailExists
	} else if !errors.Is(err, database.ErrNotFound) {
		return nil, err
	}

	hash, err := s.passwords.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	user := &database.User{
		ID:           uuid.New().String(),
		Email:        req.Email,
		PasswordHash: hash,
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	return &UserResponse{ID: user.ID, Email: user.Email, CreatedAt: user.CreatedAt}, nil
}

// Login verifies credentials and issues an access token
func (s *Service) Login(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	user, err := s.store.GetUserByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if !s.passwords.VerifyPassword(req.Password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	token, err := s.tokens.GenerateAccessToken(UserClaims{UserID: user.ID, Email: user.Email})
	if err != nil {
		return nil, err
	}

	return &LoginResponse{
		User:        UserResponse{ID: user.ID, Email: user.Email, CreatedAt: user.CreatedAt},
		AccessToken: token,
		ExpiresIn:   s.tokens.GetAccessTokenDuration(),
	}, nil
}
