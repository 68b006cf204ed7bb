package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/unidash/admissions-console/internal/core/domain"
	"github.com/unidash/admissions-console/internal/core/ports"
)

const credentialKey = "credentials"

// storedSession is the persisted shape of a device's session record. Token
// and user live in one document so readers never observe half a write.
type storedSession struct {
	Token string       `json:"token"`
	User  *domain.User `json:"user"`
}

// CredentialStore holds the token and user profile of one device.
type CredentialStore struct {
	kv  ports.KeyValueStore
	key string
	log zerolog.Logger
}

// NewCredentialStore returns the credential store of deviceID inside kv.
func NewCredentialStore(kv ports.KeyValueStore, deviceID string, log zerolog.Logger) *CredentialStore {
	return &CredentialStore{
		kv:  kv,
		key: deviceID + ":" + credentialKey,
		log: log,
	}
}

func (s *CredentialStore) GetToken(ctx context.Context) (string, bool) {
	rec, ok := s.load(ctx)
	if !ok || rec.Token == "" {
		return "", false
	}
	return rec.Token, true
}

// GetUser returns the stored profile. Unreadable data counts as absent.
func (s *CredentialStore) GetUser(ctx context.Context) (*domain.User, bool) {
	rec, ok := s.load(ctx)
	if !ok || rec.User == nil {
		return nil, false
	}
	return rec.User, true
}

func (s *CredentialStore) SetSession(ctx context.Context, token string, user *domain.User) error {
	raw, err := json.Marshal(storedSession{Token: token, User: user})
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := s.kv.Set(ctx, s.key, string(raw)); err != nil {
		return fmt.Errorf("store session: %w", err)
	}
	return nil
}

func (s *CredentialStore) Clear(ctx context.Context) error {
	if err := s.kv.Remove(ctx, s.key); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

func (s *CredentialStore) load(ctx context.Context) (storedSession, bool) {
	raw, ok, err := s.kv.Get(ctx, s.key)
	if err != nil {
		s.log.Warn().Err(err).Str("key", s.key).Msg("credential store read failed")
		return storedSession{}, false
	}
	if !ok {
		return storedSession{}, false
	}

	var rec storedSession
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		s.log.Warn().
			Err(fmt.Errorf("%w: %v", domain.ErrMalformedSession, err)).
			Str("key", s.key).
			Msg("ignoring stored session")
		return storedSession{}, false
	}
	return rec, true
}
