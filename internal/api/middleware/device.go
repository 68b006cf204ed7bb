package middleware

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

const (
	DeviceCookie  = "console_device"
	SessionCookie = "console_session"

	DeviceIDKey  = "device_id"
	SessionIDKey = "browser_session_id"

	deviceCookieAge = 400 * 24 * time.Hour
)

// DeviceConfig controls the cookies that scope console storage.
type DeviceConfig struct {
	Secure bool
}

// Device resolves the two storage scopes of a browser:
//   - the device cookie is persistent and scopes the credential store;
//   - the session cookie has no expiry, so the browser drops it when the
//     browsing session ends, which is what clears the session flag.
//
// Missing or malformed cookies are replaced with fresh random ids.
func Device(cfg DeviceConfig) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			deviceID := cookieID(c, DeviceCookie)
			if deviceID == "" {
				deviceID = uuid.NewString()
				c.SetCookie(newCookie(DeviceCookie, deviceID, int(deviceCookieAge.Seconds()), cfg.Secure))
			}

			sessionID := cookieID(c, SessionCookie)
			if sessionID == "" {
				sessionID = uuid.NewString()
				c.SetCookie(newCookie(SessionCookie, sessionID, 0, cfg.Secure))
			}

			c.Set(DeviceIDKey, deviceID)
			c.Set(SessionIDKey, sessionID)
			return next(c)
		}
	}
}

func cookieID(c echo.Context, name string) string {
	ck, err := c.Cookie(name)
	if err != nil {
		return ""
	}
	if _, err := uuid.Parse(ck.Value); err != nil {
		return ""
	}
	return ck.Value
}

func newCookie(name, value string, maxAge int, secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
}
