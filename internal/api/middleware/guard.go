package middleware

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/unidash/admissions-console/internal/core/domain"
	"github.com/unidash/admissions-console/internal/core/service"
)

const (
	UserKey = "user"

	LoginPath        = "/login"
	UnauthorizedPath = "/unauthorized"
)

// Session opens the console session of the browser behind c. Device must
// run before it.
func Session(c echo.Context, sessions *service.SessionManager) *service.SessionService {
	deviceID, _ := c.Get(DeviceIDKey).(string)
	sessionID, _ := c.Get(SessionIDKey).(string)
	return sessions.Open(deviceID, sessionID)
}

// Guard protects the routes behind it with g. Allowed requests find the user
// under UserKey; the rest are redirected to login or to the unauthorized
// page. JSON clients get a 401/403 carrying the redirect target instead.
func Guard(g *service.Guard, sessions *service.SessionManager) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			sess := Session(c, sessions)
			state := service.NewAuthState(ctx, sess)

			d := g.Verify(ctx, sess, state, c.Request().URL.RequestURI())
			switch d.State {
			case domain.GuardAllowed:
				c.Set(UserKey, d.User)
				return next(c)
			case domain.GuardRedirectUnauthorized:
				if WantsJSON(c) {
					return c.JSON(http.StatusForbidden, redirectBody{Error: "forbidden", Redirect: UnauthorizedPath})
				}
				return c.Redirect(http.StatusFound, UnauthorizedPath)
			default:
				return redirectToLogin(c, d)
			}
		}
	}
}

type redirectBody struct {
	Error    string `json:"error"`
	Redirect string `json:"redirect"`
	Reload   bool   `json:"reload,omitempty"`
}

func redirectToLogin(c echo.Context, d service.Decision) error {
	target := LoginURL(d.From)
	if d.Hard {
		// A full navigation that also drops cached pages of the old session.
		c.Response().Header().Set("Clear-Site-Data", `"cache"`)
	}
	if WantsJSON(c) {
		return c.JSON(http.StatusUnauthorized, redirectBody{Error: "login required", Redirect: target, Reload: d.Hard})
	}
	if d.Hard {
		return c.Redirect(http.StatusSeeOther, target)
	}
	return c.Redirect(http.StatusFound, target)
}

// LoginURL builds the login location that returns the user to from afterwards.
func LoginURL(from string) string {
	if !SafeReturnPath(from) || strings.HasPrefix(from, LoginPath) {
		return LoginPath
	}
	return LoginPath + "?" + url.Values{"from": {from}}.Encode()
}

// SafeReturnPath reports whether p is a local absolute path that can be
// redirected to without leaving the console. Control characters and
// backslashes are refused outright: browsers drop tabs and newlines and read
// "\\" as "/", which turns "/\t/host" or "/\\host" into "//host".
func SafeReturnPath(p string) bool {
	for i := 0; i < len(p); i++ {
		if p[i] < 0x20 || p[i] == 0x7f || p[i] == '\\' {
			return false
		}
	}
	if !strings.HasPrefix(p, "/") || strings.HasPrefix(p, "//") {
		return false
	}
	u, err := url.Parse(p)
	if err != nil {
		return false
	}
	return u.Scheme == "" && u.Host == "" && u.User == nil && strings.HasPrefix(u.Path, "/")
}

// WantsJSON reports whether the client sent or asked for JSON, in which case
// redirects and failures are answered with status codes and a JSON body.
func WantsJSON(c echo.Context) bool {
	req := c.Request()
	return strings.HasPrefix(req.Header.Get(echo.HeaderContentType), echo.MIMEApplicationJSON) ||
		strings.Contains(req.Header.Get(echo.HeaderAccept), echo.MIMEApplicationJSON)
}
