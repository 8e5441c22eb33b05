package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/book-favorites/internal/apperror"
	"github.com/sakif/book-favorites/internal/validation"
)

// Authenticator exchanges credentials for a bearer token.
// *service.AuthService implements it.
type Authenticator interface {
	Login(ctx context.Context, username, password string) (string, error)
}

// AuthHandler serves the login endpoint.
type AuthHandler struct {
	auth     Authenticator
	validate *validation.Validator
	logger   *slog.Logger
}

// NewAuthHandler creates an AuthHandler.
func NewAuthHandler(auth Authenticator, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		auth:     auth,
		validate: validation.New(nil),
		logger:   logger,
	}
}

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required,max=72"`
}

// LoginResponse carries the token clients send back as
// "Authorization: Bearer <token>".
type LoginResponse struct {
	Token string `json:"token"`
}

// HandleLogin verifies a username and password.
//
// HTTP: POST /api/login
// REQUEST BODY: {"username": "alice", "password": "..."}
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := h.validate.Validate(req); err != nil {
		writeError(w, err)
		return
	}

	token, err := h.auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		if !isDomainError(err) {
			h.logger.Error("login failed", slog.String("error", err.Error()))
		}
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, LoginResponse{Token: token})
}

// isDomainError reports whether err is one of the expected apperror kinds.
func isDomainError(err error) bool {
	return errors.Is(err, apperror.ErrValidation) ||
		errors.Is(err, apperror.ErrUnauthorized) ||
		errors.Is(err, apperror.ErrNotFound)
}
