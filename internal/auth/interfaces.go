package auth

import (
	"context"

	"github.com/google/uuid"
	"github.com/vizora/entitlements/internal/database/models"
)

// Authenticator registers organizations and signs their users in.
type Authenticator interface {
	Register(ctx context.Context, input RegisterInput) (*AuthResponse, error)
	Login(ctx context.Context, input LoginInput) (*AuthResponse, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// TokenService issues and verifies session tokens.
type TokenService interface {
	Issue(p Principal) (string, error)
	Verify(raw string) (*Claims, error)
}

var (
	_ Authenticator = (*Service)(nil)
	_ TokenService  = (*JWTService)(nil)
)
