package auth

import (
	"context"
	"errors"
	"strings"

	"paper-ledger/internal/domain"
	"paper-ledger/internal/pkg/validation"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const bcryptCost = 10

// LedgerProvisioner creates a user's ledger storage. Implemented by the
// ledger store.
type LedgerProvisioner interface {
	EnsureUser(ctx context.Context, username string) error
}

// Credentials is the register and login request body.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// UserFinder abstracts credential verification (GORM in production, doubles in tests).
type UserFinder interface {
	FindByCredentials(ctx context.Context, username, password string) (*domain.User, error)
}

// Service registers and authenticates users.
type Service struct {
	DB     *gorm.DB
	Ledger LedgerProvisioner
}

// Register validates the credentials, stores a bcrypt hash and provisions
// the user's ledger.
func (s *Service) Register(ctx context.Context, in Credentials) (*domain.User, error) {
	username := strings.TrimSpace(in.Username)
	if username == "" || in.Password == "" {
		return nil, ErrCredentialsRequired
	}
	if len(username) < validation.MinUsernameLen {
		return nil, ErrUsernameTooShort
	}
	if !validation.IsValidUsername(username) {
		return nil, ErrUsernameInvalid
	}
	if !validation.IsValidPassword(in.Password) {
		return nil, ErrPasswordTooShort
	}

	var existing domain.User
	err := s.DB.WithContext(ctx).Where("username = ?", username).First(&existing).Error
	if err == nil {
		return nil, ErrUsernameTaken
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcryptCost)
	if err != nil {
		return nil, err
	}
	u := &domain.User{Username: username, PasswordHash: string(hash)}
	if err := s.DB.WithContext(ctx).Create(u).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrUsernameTaken
		}
		return nil, err
	}

	if s.Ledger != nil {
		if err := s.Ledger.EnsureUser(ctx, username); err != nil {
			return nil, err
		}
	}
	return u, nil
}

// FindByCredentials implements UserFinder.
func (s *Service) FindByCredentials(ctx context.Context, username, password string) (*domain.User, error) {
	return s.Login(ctx, Credentials{Username: username, Password: password})
}

// Login verifies the password and makes sure the user's ledger exists.
// Unknown users and wrong passwords produce the same error.
func (s *Service) Login(ctx context.Context, in Credentials) (*domain.User, error) {
	username := strings.TrimSpace(in.Username)
	if username == "" || in.Password == "" {
		return nil, ErrCredentialsRequired
	}
	var u domain.User
	if err := s.DB.WithContext(ctx).Where("username = ?", username).First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(in.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	if s.Ledger != nil {
		if err := s.Ledger.EnsureUser(ctx, u.Username); err != nil {
			return nil, err
		}
	}
	return &u, nil
}

// VerifyUser extracts the username from a session user value.
func VerifyUser(sessionUser interface{}) (string, error) {
	if sessionUser == nil {
		return "", ErrNotAuthenticated
	}
	m, ok := sessionUser.(map[string]interface{})
	if !ok {
		return "", ErrNotAuthenticated
	}
	username, _ := m["username"].(string)
	if username == "" {
		return "", ErrNotAuthenticated
	}
	return username, nil
}
