package service

import (
	"context"
	"sync"

	"github.com/unidash/admissions-console/internal/core/domain"
)

// AuthState is the in-memory view of who is logged in, seeded from the
// credential store when it is created. It trusts the stored user until a
// re-validation says otherwise.
type AuthState struct {
	session *SessionService

	mu   sync.RWMutex
	user *domain.User
	err  error
}

func NewAuthState(ctx context.Context, session *SessionService) *AuthState {
	st := &AuthState{session: session}
	if u, ok := session.Credentials().GetUser(ctx); ok {
		st.user = u
	}
	return st
}

func (a *AuthState) User() *domain.User {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.user
}

func (a *AuthState) IsAuthenticated() bool {
	return a.User() != nil
}

// Err returns the failure of the last Login call, if any.
func (a *AuthState) Err() error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.err
}

// Login reports success instead of returning the error; see Err for the cause.
// Concurrent calls are not deduplicated, the last to finish wins.
func (a *AuthState) Login(ctx context.Context, username, password string) bool {
	user, err := a.session.Login(ctx, username, password)

	a.mu.Lock()
	defer a.mu.Unlock()
	a.err = err
	if err != nil {
		return false
	}
	a.user = user
	return true
}

func (a *AuthState) Logout(ctx context.Context) {
	a.session.Logout(ctx)

	a.mu.Lock()
	a.user = nil
	a.err = nil
	a.mu.Unlock()
}

// refresh replaces the user after a successful re-validation.
func (a *AuthState) refresh(user *domain.User) {
	a.mu.Lock()
	a.user = user
	a.mu.Unlock()
}

func (a *AuthState) clear() {
	a.mu.Lock()
	a.user = nil
	a.mu.Unlock()
}
