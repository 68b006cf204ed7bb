package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/unidash/admissions-console/internal/core/ports"
)

const (
	flagKey     = "logged_in"
	flagSet     = "set"
	flagRevoked = "revoked"
)

// SessionFlag marks that the login flow completed in the current browsing
// session. It lives in session-scoped storage keyed by the browser session,
// so it disappears together with that session.
type SessionFlag struct {
	kv  ports.KeyValueStore
	key string
	log zerolog.Logger
}

func NewSessionFlag(kv ports.KeyValueStore, browserSessionID string, log zerolog.Logger) *SessionFlag {
	return &SessionFlag{
		kv:  kv,
		key: browserSessionID + ":" + flagKey,
		log: log,
	}
}

func (f *SessionFlag) IsSet(ctx context.Context) bool {
	return f.value(ctx) == flagSet
}

func (f *SessionFlag) Set(ctx context.Context) error {
	if err := f.kv.Set(ctx, f.key, flagSet); err != nil {
		return fmt.Errorf("set session flag: %w", err)
	}
	return nil
}

func (f *SessionFlag) Unset(ctx context.Context) error {
	if err := f.kv.Remove(ctx, f.key); err != nil {
		return fmt.Errorf("unset session flag: %w", err)
	}
	return nil
}

// Revoke unsets the flag and leaves a marker asking the next navigation to
// perform a full page reload.
func (f *SessionFlag) Revoke(ctx context.Context) error {
	if err := f.kv.Set(ctx, f.key, flagRevoked); err != nil {
		return fmt.Errorf("revoke session flag: %w", err)
	}
	return nil
}

// TakeRevoked reports a pending revocation and clears it.
func (f *SessionFlag) TakeRevoked(ctx context.Context) bool {
	if f.value(ctx) != flagRevoked {
		return false
	}
	if err := f.Unset(ctx); err != nil {
		f.log.Warn().Err(err).Msg("clearing revoked session flag")
	}
	return true
}

func (f *SessionFlag) value(ctx context.Context) string {
	v, ok, err := f.kv.Get(ctx, f.key)
	if err != nil {
		f.log.Warn().Err(err).Str("key", f.key).Msg("session flag read failed")
		return ""
	}
	if !ok {
		return ""
	}
	return v
}
