package ports

import (
	"context"

	"github.com/unidash/admissions-console/internal/core/domain"
)

// AuthBackend is the console's view of the admissions API.
//
// Login fails with domain.ErrInvalidCredentials when the backend rejects the
// credentials, Me with domain.ErrUnauthenticated when it rejects the token.
// Transport failures of either surface as domain.ErrServiceUnavailable.
type AuthBackend interface {
	Login(ctx context.Context, username, password string) (*domain.Session, error)
	Me(ctx context.Context, token string) (*domain.User, error)
	Logout(ctx context.Context, token string) error
}
