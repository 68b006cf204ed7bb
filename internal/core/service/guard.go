package service

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/unidash/admissions-console/internal/core/domain"
	"github.com/unidash/admissions-console/internal/pkg/metrics"
)

const (
	DefaultRevalidateInterval = 10 * time.Second
	defaultCheckTimeout       = 5 * time.Second
	maxTrackedDevices         = 10000
)

// Decision is the outcome of one guard evaluation.
type Decision struct {
	State domain.GuardState
	// From is the path the user tried to reach, carried to the login page.
	From string
	// Hard asks for a full page navigation instead of a client-side redirect.
	Hard bool
	User *domain.User
}

// GuardOption customises a Guard.
type GuardOption func(*Guard)

// WithRevalidateInterval sets the minimum spacing of background checks per device.
func WithRevalidateInterval(d time.Duration) GuardOption {
	return func(g *Guard) {
		if d > 0 {
			g.interval = d
		}
	}
}

// WithCheckTimeout bounds a single background re-validation call.
func WithCheckTimeout(d time.Duration) GuardOption {
	return func(g *Guard) {
		if d > 0 {
			g.timeout = d
		}
	}
}

// WithGuardClock replaces the wall clock used by the throttle.
func WithGuardClock(now func() time.Time) GuardOption {
	return func(g *Guard) { g.now = now }
}

// Guard decides, per navigation, whether a protected route may render.
// Background re-validations are throttled per device and run on a context
// owned by the guard, so Close stops them from touching state afterwards.
type Guard struct {
	require  domain.Requirement
	interval time.Duration
	timeout  time.Duration
	now      func() time.Time
	log      zerolog.Logger

	mu       sync.Mutex
	limiters map[string]*rate.Limiter

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewGuard(require domain.Requirement, log zerolog.Logger, opts ...GuardOption) *Guard {
	ctx, cancel := context.WithCancel(context.Background())
	g := &Guard{
		require:  require,
		interval: DefaultRevalidateInterval,
		timeout:  defaultCheckTimeout,
		now:      time.Now,
		log:      log,
		limiters: make(map[string]*rate.Limiter),
		ctx:      ctx,
		cancel:   cancel,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Verify runs the guard procedure for one navigation to path. It never
// blocks on the backend: re-validation happens in the background and only
// affects later navigations.
func (g *Guard) Verify(ctx context.Context, sess *SessionService, state *AuthState, path string) Decision {
	d := g.verify(ctx, sess, state, path)
	metrics.GuardDecisionsTotal.WithLabelValues(d.State.String(), strconv.FormatBool(d.Hard)).Inc()
	return d
}

func (g *Guard) verify(ctx context.Context, sess *SessionService, state *AuthState, path string) Decision {
	flag := sess.Flag()

	if flag.TakeRevoked(ctx) {
		state.clear()
		return Decision{State: domain.GuardRedirectLogin, From: path, Hard: true}
	}

	flagSet := flag.IsSet(ctx)
	tokenValid := sess.IsTokenValid(ctx)

	if !tokenValid || !flagSet {
		if flagSet {
			if err := flag.Unset(ctx); err != nil {
				g.log.Warn().Err(err).Msg("guard: unsetting stale session flag")
			}
		}
		g.maybeRevalidate(ctx, sess, state, g.staleFailed)
		return Decision{State: domain.GuardRedirectLogin, From: path}
	}

	g.maybeRevalidate(ctx, sess, state, g.activeFailed)

	user := state.User()
	if user == nil || !domain.KnownRole(user.Role) {
		return Decision{State: domain.GuardRedirectLogin, From: path}
	}
	if !g.require.SatisfiedBy(user.Role) {
		return Decision{State: domain.GuardRedirectUnauthorized, From: path, User: user}
	}
	return Decision{State: domain.GuardAllowed, User: user}
}

// Wait blocks until in-flight background checks have finished.
func (g *Guard) Wait() {
	g.wg.Wait()
}

// Close cancels in-flight background checks, discards their results and
// waits for them to return.
func (g *Guard) Close() {
	g.cancel()
	g.wg.Wait()
}

// allow reports whether a background check for deviceID may run now and, if
// so, consumes the slot for the current interval.
func (g *Guard) allow(deviceID string) bool {
	now := g.now()

	g.mu.Lock()
	defer g.mu.Unlock()

	lim, ok := g.limiters[deviceID]
	if !ok {
		if len(g.limiters) >= maxTrackedDevices {
			g.prune(now)
		}
		// One nanosecond over the interval: a new check needs strictly more
		// than interval since the last one.
		lim = rate.NewLimiter(rate.Every(g.interval+time.Nanosecond), 1)
		g.limiters[deviceID] = lim
	}
	return lim.AllowN(now, 1)
}

// prune forgets devices whose throttle window has fully elapsed. Caller holds mu.
func (g *Guard) prune(now time.Time) {
	for id, lim := range g.limiters {
		if lim.TokensAt(now) >= 1 {
			delete(g.limiters, id)
		}
	}
}

type failureFunc func(ctx context.Context, sess *SessionService, state *AuthState, err error)

// maybeRevalidate starts a background check when there is a token to check
// and the device's throttle window allows it.
func (g *Guard) maybeRevalidate(ctx context.Context, sess *SessionService, state *AuthState, onFailure failureFunc) {
	token, ok := sess.Credentials().GetToken(ctx)
	if !ok || !g.allow(sess.DeviceID()) {
		return
	}
	g.revalidate(sess, state, token, onFailure)
}

func (g *Guard) revalidate(sess *SessionService, state *AuthState, checked string, onFailure failureFunc) {
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				g.log.Error().Interface("panic", r).Str("device_id", sess.DeviceID()).Msg("guard: re-validation panicked")
			}
		}()

		ctx, cancel := context.WithTimeout(g.ctx, g.timeout)
		defer cancel()

		start := time.Now()
		user, err := sess.CheckAuth(ctx)
		metrics.RevalidationDuration.Observe(time.Since(start).Seconds())

		if g.ctx.Err() != nil {
			metrics.RevalidationsTotal.WithLabelValues("discarded").Inc()
			return
		}

		// The request context is gone by now; writes use a detached one.
		writeCtx, writeCancel := context.WithTimeout(context.WithoutCancel(g.ctx), g.timeout)
		defer writeCancel()

		if err != nil {
			result := "rejected"
			if errors.Is(err, domain.ErrServiceUnavailable) {
				result = "unavailable"
			}
			metrics.RevalidationsTotal.WithLabelValues(result).Inc()
			// A login that happened meanwhile replaced the token we checked.
			if current, _ := sess.Credentials().GetToken(writeCtx); current != checked {
				return
			}
			onFailure(writeCtx, sess, state, err)
			return
		}

		metrics.RevalidationsTotal.WithLabelValues("ok").Inc()
		state.refresh(user)
	}()
}

// staleFailed handles a failed check for a browser that was already being
// sent to login: whatever is stored is no longer worth keeping.
func (g *Guard) staleFailed(ctx context.Context, sess *SessionService, state *AuthState, err error) {
	g.log.Debug().Err(err).Str("device_id", sess.DeviceID()).Msg("guard: stale session rejected")
	sess.Logout(ctx)
	state.clear()
}

// activeFailed handles a failed check behind a page that was allowed to
// render: the session flag is revoked so the next navigation reloads the page
// and lands on login.
func (g *Guard) activeFailed(ctx context.Context, sess *SessionService, state *AuthState, err error) {
	g.log.Info().Err(err).Str("device_id", sess.DeviceID()).Msg("guard: session re-validation failed, forcing login")
	if rerr := sess.Flag().Revoke(ctx); rerr != nil {
		g.log.Error().Err(rerr).Str("device_id", sess.DeviceID()).Msg("guard: revoking session flag")
	}
	state.clear()
}
