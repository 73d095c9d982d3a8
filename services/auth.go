package services

import (
	"context"
	"errors"
	"regexp"

	"aether-notes/db"
	"aether-notes/models"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const bcryptCost = 10

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]{2,}$`)

// TokenIssuer signs session tokens.
type TokenIssuer interface {
	Issue(userID, email string) (string, error)
}

type AuthService struct {
	store  db.Store
	tokens TokenIssuer
	logger *zap.Logger
}

func NewAuthService(store db.Store, tokens TokenIssuer, logger *zap.Logger) *AuthService {
	return &AuthService{store: store, tokens: tokens, logger: logger}
}

func (s *AuthService) Signup(ctx context.Context, email, password string) (*models.User, error) {
	if email == "" || password == "" {
		return nil, validation("Provide email and password")
	}
	if !emailPattern.MatchString(email) {
		return nil, validation("Provide a valid email address.")
	}

	if _, err := s.store.UserByEmail(ctx, email); err == nil {
		return nil, validation("User already exists.")
	} else if !errors.Is(err, db.ErrNotFound) {
		return nil, internal("Internal Server Error", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return nil, internal("Internal Server Error", err)
	}

	user, err := s.store.CreateUser(ctx, email, string(hash))
	if errors.Is(err, db.ErrDuplicate) {
		return nil, validation("User already exists.")
	}
	if err != nil {
		return nil, internal("Internal Server Error", err)
	}
	s.logger.Info("user signed up", zap.String("user_id", user.ID.String()))
	return user, nil
}

// Login returns a signed token for valid credentials.
func (s *AuthService) Login(ctx context.Context, email, password string) (string, error) {
	if email == "" || password == "" {
		return "", validation("Provide email and password.")
	}

	user, err := s.store.UserByEmail(ctx, email)
	if errors.Is(err, db.ErrNotFound) {
		return "", unauthenticated("Unable to authenticate the user")
	}
	if err != nil {
		return "", internal("Internal Server Error", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", unauthenticated("Unable to authenticate the user")
	}

	signed, err := s.tokens.Issue(user.ID.String(), user.Email)
	if err != nil {
		return "", internal("Internal Server Error", err)
	}
	return signed, nil
}
