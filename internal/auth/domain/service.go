package domain

import (
	"context"
	"errors"
	"time"

	accountdomain "github.com/tokengate/tokengate/internal/account/domain"
)

type RegisterRequest struct {
	Username string `json:"username" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type LoginRequest struct {
	// Account is a username or an email address.
	Account  string `json:"account" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type Session struct {
	Token     string                `json:"token"`
	ExpiresAt time.Time             `json:"expires_at"`
	Account   accountdomain.Account `json:"account"`
}

type Service interface {
	// Register creates an account with the welcome token grant and signs
	// the caller in.
	Register(ctx context.Context, req RegisterRequest) (Session, error)

	Login(ctx context.Context, req LoginRequest) (Session, error)
}

var (
	ErrUserExists         = errors.New("user_exists")
	ErrInvalidCredentials = errors.New("invalid_credentials")
	ErrWeakPassword       = errors.New("weak_password")
)
