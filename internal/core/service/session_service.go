package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"github.com/unidash/admissions-console/internal/core/domain"
	"github.com/unidash/admissions-console/internal/core/ports"
)

// SessionManager is built once per process and opens the session of a
// (device, browser session) pair on demand.
type SessionManager struct {
	backend   ports.AuthBackend
	durable   ports.KeyValueStore
	ephemeral ports.KeyValueStore
	now       func() time.Time
	log       zerolog.Logger
}

// NewSessionManager wires the backend client with the durable store backing
// credentials and the session-scoped store backing session flags.
func NewSessionManager(backend ports.AuthBackend, durable, ephemeral ports.KeyValueStore, log zerolog.Logger) *SessionManager {
	return &SessionManager{
		backend:   backend,
		durable:   durable,
		ephemeral: ephemeral,
		now:       time.Now,
		log:       log,
	}
}

// WithClock replaces the wall clock used for local token expiry checks.
func (m *SessionManager) WithClock(now func() time.Time) *SessionManager {
	m.now = now
	return m
}

// Open returns the session bound to a device and a browser session.
func (m *SessionManager) Open(deviceID, browserSessionID string) *SessionService {
	log := m.log.With().Str("device_id", deviceID).Logger()
	return &SessionService{
		deviceID: deviceID,
		backend:  m.backend,
		creds:    NewCredentialStore(m.durable, deviceID, log),
		flag:     NewSessionFlag(m.ephemeral, browserSessionID, log),
		now:      m.now,
		log:      log,
	}
}

// SessionService owns the login/logout protocol of one browser. It is the
// only writer of the device's credential store.
type SessionService struct {
	deviceID string
	backend  ports.AuthBackend
	creds    *CredentialStore
	flag     *SessionFlag
	now      func() time.Time
	log      zerolog.Logger
}

func (s *SessionService) DeviceID() string              { return s.deviceID }
func (s *SessionService) Credentials() *CredentialStore { return s.creds }
func (s *SessionService) Flag() *SessionFlag            { return s.flag }

// Login exchanges credentials for a session. On any failure the credential
// store is left untouched.
func (s *SessionService) Login(ctx context.Context, username, password string) (*domain.User, error) {
	sess, err := s.backend.Login(ctx, username, password)
	if err != nil {
		return nil, err
	}
	if sess.User == nil || sess.Token == "" {
		return nil, fmt.Errorf("%w: incomplete login response", domain.ErrServiceUnavailable)
	}

	if err := s.creds.SetSession(ctx, sess.Token, sess.User); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrServiceUnavailable, err)
	}
	if err := s.flag.Set(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrServiceUnavailable, err)
	}

	s.log.Info().Str("username", sess.User.Username).Str("role", sess.User.Role).Msg("console login")
	return sess.User, nil
}

// Logout forgets the session locally and asks the backend to revoke the
// token. It never fails; calling it while logged out is a no-op.
func (s *SessionService) Logout(ctx context.Context) {
	token, hadToken := s.creds.GetToken(ctx)

	if err := s.creds.Clear(ctx); err != nil {
		s.log.Warn().Err(err).Msg("logout: clearing credentials")
	}
	if err := s.flag.Unset(ctx); err != nil {
		s.log.Warn().Err(err).Msg("logout: unsetting session flag")
	}

	if hadToken {
		if err := s.backend.Logout(ctx, token); err != nil {
			s.log.Warn().Err(err).Msg("logout: remote revocation failed")
		}
	}
}

// IsTokenValid is a local check: the stored token must parse as a JWT and
// carry an expiry in the future. The signature is not verified here.
func (s *SessionService) IsTokenValid(ctx context.Context) bool {
	token, ok := s.creds.GetToken(ctx)
	if !ok {
		return false
	}

	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return false
	}
	if claims.ExpiresAt == nil {
		return false
	}
	return s.now().Before(claims.ExpiresAt.Time)
}

// CheckAuth re-confirms the stored token with the backend and refreshes the
// stored profile on success.
func (s *SessionService) CheckAuth(ctx context.Context) (*domain.User, error) {
	token, ok := s.creds.GetToken(ctx)
	if !ok {
		return nil, domain.ErrUnauthenticated
	}

	user, err := s.backend.Me(ctx, token)
	if err != nil {
		if errors.Is(err, domain.ErrUnauthenticated) || errors.Is(err, domain.ErrServiceUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrServiceUnavailable, err)
	}

	if current, _ := s.creds.GetToken(ctx); current == token {
		if err := s.creds.SetSession(ctx, token, user); err != nil {
			s.log.Warn().Err(err).Msg("check auth: refreshing stored user")
		}
	}
	return user, nil
}
