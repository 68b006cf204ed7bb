package domain

import "errors"

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrServiceUnavailable = errors.New("authentication service unavailable")
	ErrMalformedSession   = errors.New("malformed session data")
	ErrUnauthenticated    = errors.New("not authenticated")
	ErrTokenRevoked       = errors.New("token revoked")
	ErrUserNotFound       = errors.New("user not found")
	ErrUserExists         = errors.New("user already exists")
	ErrForbidden          = errors.New("access forbidden")
)
