// Package testutil holds fakes shared by the console's package tests.
package testutil

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/unidash/admissions-console/internal/core/domain"
)

// MemoryStore is an in-memory ports.KeyValueStore. Setting Err makes every
// call fail with it.
type MemoryStore struct {
	mu   sync.Mutex
	data map[string]string
	Err  error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]string)}
}

func (s *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return "", false, s.Err
	}
	v, ok := s.data[key]
	return v, ok, nil
}

func (s *MemoryStore) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	s.data[key] = value
	return nil
}

func (s *MemoryStore) Remove(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	delete(s.data, key)
	return nil
}

// Len returns the number of stored keys.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.data)
}

// Raw returns the value under key regardless of Err.
func (s *MemoryStore) Raw(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[key]
	return v, ok
}

// Put writes a value regardless of Err.
func (s *MemoryStore) Put(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
}

// FakeBackend is a scripted ports.AuthBackend. Users maps username to the
// account the fake accepts with password Passwords[username].
type FakeBackend struct {
	mu sync.Mutex

	Users     map[string]*domain.User
	Passwords map[string]string
	TokenTTL  time.Duration
	Secret    string

	// MeErr, when set, is returned by Me; LoginErr by Login.
	MeErr     error
	LoginErr  error
	LogoutErr error

	// MeGate, when non-nil, blocks Me until it is closed.
	MeGate chan struct{}

	MeCalls     int
	LogoutCalls int
	tokens      map[string]*domain.User
}

func NewFakeBackend() *FakeBackend {
	return &FakeBackend{
		Users:     make(map[string]*domain.User),
		Passwords: make(map[string]string),
		TokenTTL:  time.Hour,
		Secret:    "test-secret",
		tokens:    make(map[string]*domain.User),
	}
}

// AddUser registers an account the fake accepts.
func (b *FakeBackend) AddUser(id, username, password, role string) *domain.User {
	b.mu.Lock()
	defer b.mu.Unlock()
	u := &domain.User{ID: id, Username: username, Role: role}
	b.Users[username] = u
	b.Passwords[username] = password
	return u
}

func (b *FakeBackend) Login(_ context.Context, username, password string) (*domain.Session, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.LoginErr != nil {
		return nil, b.LoginErr
	}
	u, ok := b.Users[username]
	if !ok || b.Passwords[username] != password {
		return nil, domain.ErrInvalidCredentials
	}
	exp := time.Now().Add(b.TokenTTL)
	token, err := signToken(b.Secret, u.ID, exp)
	if err != nil {
		return nil, err
	}
	clone := *u
	b.tokens[token] = &clone
	return &domain.Session{Token: token, ExpiresAt: exp, User: &clone}, nil
}

func (b *FakeBackend) Me(ctx context.Context, token string) (*domain.User, error) {
	b.mu.Lock()
	b.MeCalls++
	gate := b.MeGate
	b.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, errors.Join(domain.ErrServiceUnavailable, ctx.Err())
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.MeErr != nil {
		return nil, b.MeErr
	}
	u, ok := b.tokens[token]
	if !ok {
		return nil, domain.ErrUnauthenticated
	}
	clone := *u
	return &clone, nil
}

func (b *FakeBackend) Logout(_ context.Context, token string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.LogoutCalls++
	delete(b.tokens, token)
	return b.LogoutErr
}

// Accept makes Me answer for token with user, as if the backend issued it.
func (b *FakeBackend) Accept(token string, user *domain.User) {
	b.mu.Lock()
	defer b.mu.Unlock()
	clone := *user
	b.tokens[token] = &clone
}

// Calls returns the number of Me calls so far.
func (b *FakeBackend) Calls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.MeCalls
}

// Token returns an HS256 token for subject expiring at exp.
func Token(t *testing.T, subject string, exp time.Time) string {
	t.Helper()
	s, err := signToken("test-secret", subject, exp)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return s
}

func signToken(secret, subject string, exp time.Time) (string, error) {
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		ID:        subject + "-" + exp.Format(time.RFC3339Nano),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
