package service

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/unidash/admissions-console/internal/core/domain"
	"github.com/unidash/admissions-console/internal/testutil"
)

func TestCredentialStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	kv := testutil.NewMemoryStore()
	store := NewCredentialStore(kv, "dev-1", zerolog.Nop())

	if _, ok := store.GetToken(ctx); ok {
		t.Fatalf("expected no token in empty store")
	}
	if _, ok := store.GetUser(ctx); ok {
		t.Fatalf("expected no user in empty store")
	}

	user := &domain.User{ID: "u1", Username: "alice", Role: domain.RoleAdmin}
	if err := store.SetSession(ctx, "tok-1", user); err != nil {
		t.Fatalf("SetSession error: %v", err)
	}

	token, ok := store.GetToken(ctx)
	if !ok || token != "tok-1" {
		t.Fatalf("expected tok-1, got %q ok=%v", token, ok)
	}
	got, ok := store.GetUser(ctx)
	if !ok {
		t.Fatalf("expected stored user")
	}
	if got.ID != user.ID || got.Username != user.Username || got.Role != user.Role {
		t.Fatalf("unexpected user: %+v", got)
	}
	if kv.Len() != 1 {
		t.Fatalf("expected token and user under a single key, got %d keys", kv.Len())
	}
}

func TestCredentialStore_ScopedPerDevice(t *testing.T) {
	ctx := context.Background()
	kv := testutil.NewMemoryStore()
	a := NewCredentialStore(kv, "dev-a", zerolog.Nop())
	b := NewCredentialStore(kv, "dev-b", zerolog.Nop())

	if err := a.SetSession(ctx, "tok-a", &domain.User{ID: "1", Role: domain.RoleStaff}); err != nil {
		t.Fatalf("SetSession error: %v", err)
	}
	if _, ok := b.GetToken(ctx); ok {
		t.Fatalf("device b must not see device a's token")
	}
}

func TestCredentialStore_MalformedDataIsAbsent(t *testing.T) {
	ctx := context.Background()
	kv := testutil.NewMemoryStore()
	kv.Put("dev-1:credentials", "{not json")
	store := NewCredentialStore(kv, "dev-1", zerolog.Nop())

	if _, ok := store.GetUser(ctx); ok {
		t.Fatalf("malformed data must read as absent")
	}
	if _, ok := store.GetToken(ctx); ok {
		t.Fatalf("malformed data must read as absent")
	}
}

func TestCredentialStore_ReadErrorIsAbsent(t *testing.T) {
	ctx := context.Background()
	kv := testutil.NewMemoryStore()
	kv.Put("dev-1:credentials", `{"token":"t","user":{"id":"1"}}`)
	kv.Err = errors.New("storage down")
	store := NewCredentialStore(kv, "dev-1", zerolog.Nop())

	if _, ok := store.GetToken(ctx); ok {
		t.Fatalf("read errors must read as absent")
	}
	if err := store.SetSession(ctx, "t2", &domain.User{}); err == nil {
		t.Fatalf("expected write error to propagate")
	}
}

func TestCredentialStore_Clear(t *testing.T) {
	ctx := context.Background()
	kv := testutil.NewMemoryStore()
	store := NewCredentialStore(kv, "dev-1", zerolog.Nop())

	_ = store.SetSession(ctx, "tok", &domain.User{ID: "1"})
	if err := store.Clear(ctx); err != nil {
		t.Fatalf("Clear error: %v", err)
	}
	if err := store.Clear(ctx); err != nil {
		t.Fatalf("second Clear error: %v", err)
	}
	if _, ok := store.GetToken(ctx); ok {
		t.Fatalf("expected empty store after Clear")
	}
}

func TestSessionFlag_Lifecycle(t *testing.T) {
	ctx := context.Background()
	kv := testutil.NewMemoryStore()
	flag := NewSessionFlag(kv, "sess-1", zerolog.Nop())

	if flag.IsSet(ctx) {
		t.Fatalf("flag must start unset")
	}
	if err := flag.Set(ctx); err != nil {
		t.Fatalf("Set error: %v", err)
	}
	if !flag.IsSet(ctx) {
		t.Fatalf("flag must be set")
	}
	if NewSessionFlag(kv, "sess-2", zerolog.Nop()).IsSet(ctx) {
		t.Fatalf("another browser session must not see the flag")
	}
	if err := flag.Unset(ctx); err != nil {
		t.Fatalf("Unset error: %v", err)
	}
	if flag.IsSet(ctx) {
		t.Fatalf("flag must be unset")
	}
}

func TestSessionFlag_Revoke(t *testing.T) {
	ctx := context.Background()
	kv := testutil.NewMemoryStore()
	flag := NewSessionFlag(kv, "sess-1", zerolog.Nop())

	_ = flag.Set(ctx)
	if err := flag.Revoke(ctx); err != nil {
		t.Fatalf("Revoke error: %v", err)
	}
	if flag.IsSet(ctx) {
		t.Fatalf("revoked flag must read as unset")
	}
	if !flag.TakeRevoked(ctx) {
		t.Fatalf("expected pending revocation")
	}
	if flag.TakeRevoked(ctx) {
		t.Fatalf("revocation must be consumed once")
	}
}
