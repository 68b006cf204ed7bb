package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/unidash/admissions-console/internal/api/middleware"
	"github.com/unidash/admissions-console/internal/core/domain"
	"github.com/unidash/admissions-console/internal/core/ports"
)

// ctxClaims extracts the claims injected by the Auth middleware. Missing
// claims mean the route was mounted without Auth, which is a 401 rather than
// a panic.
func ctxClaims(c echo.Context) (ports.TokenClaims, error) {
	claims, ok := c.Get(middleware.ClaimsKey).(ports.TokenClaims)
	if !ok || claims.UserID == "" {
		return ports.TokenClaims{}, echo.NewHTTPError(http.StatusUnauthorized, "missing authentication claims")
	}
	return claims, nil
}

// ctxUser returns the console user the Guard middleware admitted.
func ctxUser(c echo.Context) (*domain.User, error) {
	user, ok := c.Get(middleware.UserKey).(*domain.User)
	if !ok || user == nil {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "not authenticated")
	}
	return user, nil
}
