package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sakif/book-favorites/internal/apperror"
	"github.com/sakif/book-favorites/internal/auth"
	"github.com/sakif/book-favorites/internal/repository"
)

const msgInvalidCredentials = "invalid username or password"

// AuthService exchanges a username and password for an access token.
//
//	AuthHandler (HTTP) → AuthService → UserRepository (password hash)
//	                                 ↘ TokenService (JWT)
type AuthService struct {
	users     repository.UserRepository
	tokens    *auth.TokenService
	passwords *auth.PasswordService
	logger    *slog.Logger
}

// NewAuthService creates an AuthService with all required dependencies.
func NewAuthService(
	users repository.UserRepository,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:     users,
		tokens:    tokens,
		passwords: passwords,
		logger:    logger,
	}
}

// Login verifies the password against the bcrypt hash stored on the user
// record and returns a signed token for that username.
//
// Unknown users, users without a stored hash and wrong passwords all get
// the same Unauthorized error, so the response doesn't reveal which
// usernames exist.
func (s *AuthService) Login(ctx context.Context, username, password string) (string, error) {
	if username == "" {
		return "", apperror.ValidationFailed("username", "username is required")
	}
	if password == "" {
		return "", apperror.ValidationFailed("password", "password is required")
	}

	users, err := s.users.LoadUsers(ctx)
	if err != nil {
		return "", fmt.Errorf("service/auth: %w", err)
	}
	i, err := findUser(users, username)
	if err != nil || users[i].PasswordHash == "" {
		s.logger.Info("login rejected", slog.String("user", username), slog.String("reason", "unknown user"))
		return "", apperror.Unauthorized(msgInvalidCredentials)
	}

	if err := s.passwords.Verify(users[i].PasswordHash, password); err != nil {
		if !errors.Is(err, auth.ErrInvalidPassword) {
			// Malformed hash in the users document.
			s.logger.Error("password check failed",
				slog.String("user", username),
				slog.String("error", err.Error()),
			)
		}
		return "", apperror.Unauthorized(msgInvalidCredentials)
	}

	token, err := s.tokens.Generate(username)
	if err != nil {
		return "", fmt.Errorf("service/auth: generating token for %s: %w", username, err)
	}

	s.logger.Info("user logged in", slog.String("user", username))
	return token, nil
}
