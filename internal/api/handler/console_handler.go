package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/unidash/admissions-console/internal/api/middleware"
	"github.com/unidash/admissions-console/internal/core/domain"
	"github.com/unidash/admissions-console/internal/core/service"
)

// ConsoleHandler serves the browser-facing pages of the admissions console.
type ConsoleHandler struct {
	sessions *service.SessionManager
	log      zerolog.Logger
}

func NewConsoleHandler(sessions *service.SessionManager, log zerolog.Logger) *ConsoleHandler {
	return &ConsoleHandler{sessions: sessions, log: log}
}

type consoleLoginRequest struct {
	Username string `form:"username" json:"username" validate:"required"`
	Password string `form:"password" json:"password" validate:"required"`
	From     string `form:"from" json:"from"`
}

type loginPage struct {
	Title    string
	Message  string
	Username string
	From     string
}

type page struct {
	Title   string
	User    *domain.User
	Landing string
}

type sessionResponse struct {
	User     *domain.User `json:"user"`
	Redirect string       `json:"redirect,omitempty"`
}

const noDashboardMessage = "This account has no access to the admissions dashboard."

func (h *ConsoleHandler) LoginPage(c echo.Context) error {
	return c.Render(http.StatusOK, "login.html", loginPage{Title: "Sign in", From: c.QueryParam("from")})
}

// Login runs the login form. Failures re-render the form with a message and
// leave the stored session as it was.
func (h *ConsoleHandler) Login(c echo.Context) error {
	var req consoleLoginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	req.Username = strings.TrimSpace(req.Username)
	if err := c.Validate(&req); err != nil {
		return h.loginFailed(c, req, http.StatusBadRequest, err.Error())
	}

	ctx := c.Request().Context()
	state := service.NewAuthState(ctx, middleware.Session(c, h.sessions))
	if !state.Login(ctx, req.Username, req.Password) {
		err := state.Err()
		switch {
		case errors.Is(err, domain.ErrInvalidCredentials):
			return h.loginFailed(c, req, http.StatusUnauthorized, "Invalid username or password.")
		case errors.Is(err, domain.ErrServiceUnavailable):
			h.log.Warn().Err(err).Msg("console login: backend unavailable")
			return h.loginFailed(c, req, http.StatusServiceUnavailable, "The admissions service is unavailable, try again shortly.")
		default:
			h.log.Error().Err(err).Msg("console login failed")
			return h.loginFailed(c, req, http.StatusInternalServerError, "Sign in failed.")
		}
	}

	user := state.User()
	landing := domain.LandingPath(user.Role)
	if landing == "" {
		h.log.Warn().Str("username", user.Username).Str("role", user.Role).Msg("console login: role without dashboard")
		state.Logout(ctx)
		return h.loginFailed(c, req, http.StatusForbidden, noDashboardMessage)
	}

	target := landing
	if middleware.SafeReturnPath(req.From) && !strings.HasPrefix(req.From, middleware.LoginPath) {
		target = req.From
	}

	if middleware.WantsJSON(c) {
		return c.JSON(http.StatusOK, sessionResponse{User: user, Redirect: target})
	}
	return c.Redirect(http.StatusSeeOther, target)
}

func (h *ConsoleHandler) loginFailed(c echo.Context, req consoleLoginRequest, code int, msg string) error {
	if middleware.WantsJSON(c) {
		return c.JSON(code, map[string]string{"error": msg})
	}
	return c.Render(code, "login.html", loginPage{Title: "Sign in", Message: msg, Username: req.Username, From: req.From})
}

// Logout always succeeds, logged in or not.
func (h *ConsoleHandler) Logout(c echo.Context) error {
	ctx := c.Request().Context()
	service.NewAuthState(ctx, middleware.Session(c, h.sessions)).Logout(ctx)

	if middleware.WantsJSON(c) {
		return c.NoContent(http.StatusNoContent)
	}
	return c.Redirect(http.StatusSeeOther, middleware.LoginPath)
}

func (h *ConsoleHandler) Unauthorized(c echo.Context) error {
	ctx := c.Request().Context()
	user, _ := middleware.Session(c, h.sessions).Credentials().GetUser(ctx)
	p := page{Title: "Not permitted", User: user}
	if user != nil {
		p.Landing = domain.LandingPath(user.Role)
	}
	return c.Render(http.StatusForbidden, "unauthorized.html", p)
}

// Home sends an authenticated user to the landing page of their role.
func (h *ConsoleHandler) Home(c echo.Context) error {
	user, err := ctxUser(c)
	if err != nil {
		return err
	}
	return c.Redirect(http.StatusFound, domain.LandingPath(user.Role))
}

// Dashboard renders a role landing page under the given title.
func (h *ConsoleHandler) Dashboard(title string) echo.HandlerFunc {
	return func(c echo.Context) error {
		user, err := ctxUser(c)
		if err != nil {
			return err
		}
		return c.Render(http.StatusOK, "dashboard.html", page{Title: title, User: user, Landing: domain.LandingPath(user.Role)})
	}
}

// Session returns the user the guard admitted.
func (h *ConsoleHandler) Session(c echo.Context) error {
	user, err := ctxUser(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, sessionResponse{User: user})
}
