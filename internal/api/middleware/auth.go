package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/unidash/admissions-console/internal/core/ports"
	"github.com/unidash/admissions-console/internal/core/service"
)

// ClaimsKey is the echo context key holding the verified ports.TokenClaims.
const ClaimsKey = "claims"

// Auth validates the bearer JWT, rejects revoked tokens, and injects the
// claims into the context. A revocation store outage fails closed.
func Auth(jwtSecret string, revoker ports.TokenRevoker, log zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
			if authHeader == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing authorization header")
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization header")
			}

			claims, err := service.ParseToken(jwtSecret, parts[1])
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}

			revoked, err := revoker.IsRevoked(c.Request().Context(), claims.TokenID)
			if err != nil {
				log.Error().Err(err).Str("jti", claims.TokenID).Msg("revocation lookup failed")
				return echo.NewHTTPError(http.StatusServiceUnavailable, "token status unavailable")
			}
			if revoked {
				return echo.NewHTTPError(http.StatusUnauthorized, "token revoked")
			}

			c.Set(ClaimsKey, claims)
			c.Set("role", claims.Role)
			return next(c)
		}
	}
}
