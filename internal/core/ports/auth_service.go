package ports

import (
	"context"
	"time"

	"github.com/unidash/admissions-console/internal/core/domain"
)

// TokenClaims is what the API learns from a verified bearer token.
type TokenClaims struct {
	UserID    string
	Username  string
	Role      string
	TokenID   string
	ExpiresAt time.Time
}

// AuthService is the server-side credential authority of the admissions API.
type AuthService interface {
	Register(ctx context.Context, username, password, role string) (*domain.User, error)
	Login(ctx context.Context, username, password string) (*domain.Session, error)
	Profile(ctx context.Context, userID string) (*domain.User, error)
	Logout(ctx context.Context, claims TokenClaims) error
}

// TokenRevoker records and looks up revoked token ids.
type TokenRevoker interface {
	Revoke(ctx context.Context, tokenID string, until time.Time) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}
