package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/unidash/admissions-console/internal/core/domain"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type guardFixture struct {
	*sessionFixture
	clock *fakeClock
}

func newGuardFixture() *guardFixture {
	f := &guardFixture{
		sessionFixture: newSessionFixture(),
		clock:          &fakeClock{now: time.Now()},
	}
	f.manager.WithClock(f.clock.Now)
	return f
}

func (f *guardFixture) guard(t *testing.T, req domain.Requirement) *Guard {
	t.Helper()
	g := NewGuard(req, zerolog.Nop(), WithGuardClock(f.clock.Now), WithRevalidateInterval(10*time.Second))
	t.Cleanup(g.Close)
	return g
}

// navigate runs one guard evaluation the way the HTTP middleware does.
func (f *guardFixture) navigate(g *Guard, deviceID, sessionID, path string) Decision {
	ctx := context.Background()
	sess := f.manager.Open(deviceID, sessionID)
	return g.Verify(ctx, sess, NewAuthState(ctx, sess), path)
}

func (f *guardFixture) login(t *testing.T, deviceID, sessionID, username string) {
	t.Helper()
	if _, err := f.manager.Open(deviceID, sessionID).Login(context.Background(), username, "pw"); err != nil {
		t.Fatalf("login %s: %v", username, err)
	}
}

func TestGuard_FreshVisitorRedirectsToLogin(t *testing.T) {
	f := newGuardFixture()
	g := f.guard(t, domain.RequireAny)

	d := f.navigate(g, "dev-1", "sess-1", "/admin/majors?page=2")
	g.Wait()

	if d.State != domain.GuardRedirectLogin {
		t.Fatalf("expected redirect to login, got %s", d.State)
	}
	if d.From != "/admin/majors?page=2" {
		t.Fatalf("expected attempted path carried, got %q", d.From)
	}
	if d.Hard {
		t.Fatalf("fresh visitor must get a soft redirect")
	}
	if f.backend.Calls() != 0 {
		t.Fatalf("nothing to re-validate without a token, got %d calls", f.backend.Calls())
	}
}

func TestGuard_LoggedInAllowedWithoutWaitingForBackend(t *testing.T) {
	f := newGuardFixture()
	f.backend.AddUser("u1", "alice", "pw", domain.RoleAdmin)
	f.login(t, "dev-1", "sess-1", "alice")
	g := f.guard(t, domain.RequireAdmin)

	gate := make(chan struct{})
	f.backend.MeGate = gate

	d := f.navigate(g, "dev-1", "sess-1", "/admin")
	if d.State != domain.GuardAllowed {
		t.Fatalf("expected allowed, got %s", d.State)
	}
	if d.User == nil || d.User.Username != "alice" {
		t.Fatalf("expected alice, got %+v", d.User)
	}

	close(gate)
	g.Wait()
	if f.backend.Calls() != 1 {
		t.Fatalf("expected one background re-validation, got %d", f.backend.Calls())
	}
	if !f.manager.Open("dev-1", "sess-1").Flag().IsSet(context.Background()) {
		t.Fatalf("successful re-validation must keep the flag")
	}
}

func TestGuard_TokenWithoutSessionFlagRedirects(t *testing.T) {
	f := newGuardFixture()
	f.backend.AddUser("u1", "alice", "pw", domain.RoleAdmin)
	f.login(t, "dev-1", "sess-1", "alice")
	g := f.guard(t, domain.RequireAdmin)

	// Same device, new browsing session: token is valid, flag is not set.
	d := f.navigate(g, "dev-1", "sess-2", "/admin")
	g.Wait()

	if d.State != domain.GuardRedirectLogin {
		t.Fatalf("expected redirect to login, got %s", d.State)
	}
	// The background check succeeded, so the stored session survives.
	if _, ok := f.manager.Open("dev-1", "sess-2").Credentials().GetToken(context.Background()); !ok {
		t.Fatalf("valid token must survive a successful stale check")
	}
}

func TestGuard_StaleSessionRejectedIsCleared(t *testing.T) {
	f := newGuardFixture()
	f.backend.AddUser("u1", "alice", "pw", domain.RoleAdmin)
	f.login(t, "dev-1", "sess-1", "alice")
	f.backend.MeErr = domain.ErrUnauthenticated
	g := f.guard(t, domain.RequireAny)

	d := f.navigate(g, "dev-1", "sess-2", "/staff")
	g.Wait()

	if d.State != domain.GuardRedirectLogin {
		t.Fatalf("expected redirect to login, got %s", d.State)
	}
	if _, ok := f.manager.Open("dev-1", "sess-2").Credentials().GetToken(context.Background()); ok {
		t.Fatalf("rejected session must be cleared")
	}
}

func TestGuard_ExpiredTokenUnsetsFlag(t *testing.T) {
	f := newGuardFixture()
	f.backend.AddUser("u1", "alice", "pw", domain.RoleAdmin)
	f.backend.TokenTTL = time.Minute
	f.login(t, "dev-1", "sess-1", "alice")
	g := f.guard(t, domain.RequireAny)

	f.clock.Advance(2 * time.Minute)
	d := f.navigate(g, "dev-1", "sess-1", "/admin")
	g.Wait()

	if d.State != domain.GuardRedirectLogin {
		t.Fatalf("expected redirect to login, got %s", d.State)
	}
	if f.manager.Open("dev-1", "sess-1").Flag().IsSet(context.Background()) {
		t.Fatalf("stale flag must be unset")
	}
}

func TestGuard_ThrottlesRevalidation(t *testing.T) {
	f := newGuardFixture()
	f.backend.AddUser("u1", "alice", "pw", domain.RoleAdmin)
	f.login(t, "dev-1", "sess-1", "alice")
	g := f.guard(t, domain.RequireAny)

	f.navigate(g, "dev-1", "sess-1", "/admin")
	f.clock.Advance(3 * time.Second)
	f.navigate(g, "dev-1", "sess-1", "/admin/majors")
	g.Wait()

	if got := f.backend.Calls(); got != 1 {
		t.Fatalf("expected one re-validation within the interval, got %d", got)
	}

	// Exactly one interval after the first check is not enough.
	f.clock.Advance(7 * time.Second)
	f.navigate(g, "dev-1", "sess-1", "/admin")
	g.Wait()

	if got := f.backend.Calls(); got != 1 {
		t.Fatalf("expected no re-validation at exactly the interval, got %d", got)
	}

	f.clock.Advance(time.Second)
	f.navigate(g, "dev-1", "sess-1", "/admin")
	g.Wait()

	if got := f.backend.Calls(); got != 2 {
		t.Fatalf("expected a second re-validation after the interval, got %d", got)
	}
}

func TestGuard_ThrottleIsPerDevice(t *testing.T) {
	f := newGuardFixture()
	f.backend.AddUser("u1", "alice", "pw", domain.RoleAdmin)
	f.backend.AddUser("u2", "bob", "pw", domain.RoleStaff)
	f.login(t, "dev-1", "sess-1", "alice")
	f.login(t, "dev-2", "sess-2", "bob")
	g := f.guard(t, domain.RequireAny)

	f.navigate(g, "dev-1", "sess-1", "/admin")
	f.navigate(g, "dev-2", "sess-2", "/staff")
	g.Wait()

	if got := f.backend.Calls(); got != 2 {
		t.Fatalf("expected one re-validation per device, got %d", got)
	}
}

func TestGuard_RoleGating(t *testing.T) {
	f := newGuardFixture()
	f.backend.AddUser("u1", "alice", "pw", domain.RoleAdmin)
	f.backend.AddUser("u2", "bob", "pw", domain.RoleStaff)
	f.backend.AddUser("u3", "carl", "pw", "applicant")
	f.login(t, "dev-a", "sess-a", "alice")
	f.login(t, "dev-b", "sess-b", "bob")
	f.login(t, "dev-c", "sess-c", "carl")

	admin := f.guard(t, domain.RequireAdmin)
	staff := f.guard(t, domain.RequireStaff)
	anyRole := f.guard(t, domain.RequireAny)

	cases := []struct {
		name   string
		guard  *Guard
		device string
		sess   string
		want   domain.GuardState
	}{
		{"staff on admin route", admin, "dev-b", "sess-b", domain.GuardRedirectUnauthorized},
		{"admin on admin route", admin, "dev-a", "sess-a", domain.GuardAllowed},
		{"admin on staff route", staff, "dev-a", "sess-a", domain.GuardAllowed},
		{"staff on staff route", staff, "dev-b", "sess-b", domain.GuardAllowed},
		{"unknown role on any route", anyRole, "dev-c", "sess-c", domain.GuardRedirectLogin},
	}
	for _, tc := range cases {
		d := f.navigate(tc.guard, tc.device, tc.sess, "/x")
		if d.State != tc.want {
			t.Fatalf("%s: expected %s, got %s", tc.name, tc.want, d.State)
		}
	}
}

func TestGuard_BackgroundRejectionForcesHardRedirect(t *testing.T) {
	f := newGuardFixture()
	f.backend.AddUser("u1", "alice", "pw", domain.RoleAdmin)
	f.login(t, "dev-1", "sess-1", "alice")
	f.backend.MeErr = domain.ErrUnauthenticated
	g := f.guard(t, domain.RequireAdmin)

	d := f.navigate(g, "dev-1", "sess-1", "/admin")
	if d.State != domain.GuardAllowed {
		t.Fatalf("expected optimistic allow, got %s", d.State)
	}
	g.Wait()

	if f.manager.Open("dev-1", "sess-1").Flag().IsSet(context.Background()) {
		t.Fatalf("rejected re-validation must clear the session flag")
	}

	d = f.navigate(g, "dev-1", "sess-1", "/admin/users")
	if d.State != domain.GuardRedirectLogin || !d.Hard {
		t.Fatalf("expected hard redirect to login, got %s hard=%v", d.State, d.Hard)
	}
	if d.From != "/admin/users" {
		t.Fatalf("expected from=/admin/users, got %q", d.From)
	}

	d = f.navigate(g, "dev-1", "sess-1", "/admin")
	if d.State != domain.GuardRedirectLogin || d.Hard {
		t.Fatalf("hard redirect must happen once, got %s hard=%v", d.State, d.Hard)
	}
}

func TestGuard_BackendUnavailableFailsClosed(t *testing.T) {
	f := newGuardFixture()
	f.backend.AddUser("u1", "alice", "pw", domain.RoleAdmin)
	f.login(t, "dev-1", "sess-1", "alice")
	f.backend.MeErr = domain.ErrServiceUnavailable
	g := f.guard(t, domain.RequireAny)

	f.navigate(g, "dev-1", "sess-1", "/admin")
	g.Wait()

	d := f.navigate(g, "dev-1", "sess-1", "/admin")
	if d.State != domain.GuardRedirectLogin || !d.Hard {
		t.Fatalf("expected hard redirect after unavailable backend, got %s hard=%v", d.State, d.Hard)
	}
}

func TestGuard_CloseDiscardsInFlightResults(t *testing.T) {
	f := newGuardFixture()
	f.backend.AddUser("u1", "alice", "pw", domain.RoleAdmin)
	f.login(t, "dev-1", "sess-1", "alice")
	f.backend.MeGate = make(chan struct{})
	g := NewGuard(domain.RequireAny, zerolog.Nop(), WithGuardClock(f.clock.Now))

	d := f.navigate(g, "dev-1", "sess-1", "/admin")
	if d.State != domain.GuardAllowed {
		t.Fatalf("expected allowed, got %s", d.State)
	}

	// Me fails once the guard's context is cancelled; that failure must not
	// revoke the session.
	g.Close()

	if !f.manager.Open("dev-1", "sess-1").Flag().IsSet(context.Background()) {
		t.Fatalf("results after Close must be discarded")
	}
}

func TestGuard_ReloginDuringCheckKeepsNewSession(t *testing.T) {
	f := newGuardFixture()
	f.backend.AddUser("u1", "alice", "pw", domain.RoleAdmin)
	f.login(t, "dev-1", "sess-1", "alice")
	gate := make(chan struct{})
	f.backend.MeGate = gate
	f.backend.MeErr = domain.ErrUnauthenticated
	g := f.guard(t, domain.RequireAny)

	f.navigate(g, "dev-1", "sess-2", "/admin")

	// The user logs in again while the stale check is in flight.
	f.backend.MeErr = nil
	f.login(t, "dev-1", "sess-2", "alice")
	f.backend.MeErr = domain.ErrUnauthenticated
	close(gate)
	g.Wait()

	sess := f.manager.Open("dev-1", "sess-2")
	if _, ok := sess.Credentials().GetToken(context.Background()); !ok {
		t.Fatalf("new login must survive a late failure of the old check")
	}
	if !sess.Flag().IsSet(context.Background()) {
		t.Fatalf("new login's flag must survive")
	}
}
