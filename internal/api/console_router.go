package api

import (
	"context"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/unidash/admissions-console/internal/api/handler"
	"github.com/unidash/admissions-console/internal/api/middleware"
	"github.com/unidash/admissions-console/internal/core/domain"
	"github.com/unidash/admissions-console/internal/core/service"
)

// Guards holds one route guard per requirement so throttling is shared by
// every page with the same requirement.
type Guards struct {
	Any   *service.Guard
	Staff *service.Guard
	Admin *service.Guard
}

func NewGuards(log zerolog.Logger, opts ...service.GuardOption) *Guards {
	return &Guards{
		Any:   service.NewGuard(domain.RequireAny, log.With().Str("guard", "any").Logger(), opts...),
		Staff: service.NewGuard(domain.RequireStaff, log.With().Str("guard", "staff").Logger(), opts...),
		Admin: service.NewGuard(domain.RequireAdmin, log.With().Str("guard", "admin").Logger(), opts...),
	}
}

// Close stops every guard, dropping the results of checks still in flight.
func (g *Guards) Close() {
	g.Any.Close()
	g.Staff.Close()
	g.Admin.Close()
}

// Wait blocks until no background check is running.
func (g *Guards) Wait() {
	g.Any.Wait()
	g.Staff.Wait()
	g.Admin.Wait()
}

// ConsoleDeps is what the console router wires together.
type ConsoleDeps struct {
	Sessions      *service.SessionManager
	Guards        *Guards
	SecureCookies bool
	Ready         func(ctx context.Context) error
	Log           zerolog.Logger
}

// NewConsoleRouter builds the dashboard gateway.
func NewConsoleRouter(deps ConsoleDeps) *echo.Echo {
	e := newEcho(deps.Log, "console")
	e.Renderer = handler.NewRenderer()

	health := handler.NewHealthHandler(map[string]handler.Pinger{"storage": deps.Ready})
	e.GET("/health", health.Liveness)
	e.GET("/health/ready", health.Readiness)
	e.GET("/metrics", echoprometheus.NewHandler())

	console := handler.NewConsoleHandler(deps.Sessions, deps.Log)
	pages := e.Group("", middleware.Device(middleware.DeviceConfig{Secure: deps.SecureCookies}), noStore)

	pages.GET(middleware.LoginPath, console.LoginPage)
	pages.POST(middleware.LoginPath, console.Login)
	pages.POST("/logout", console.Logout)
	pages.GET(middleware.UnauthorizedPath, console.Unauthorized)

	pages.GET("/", console.Home, middleware.Guard(deps.Guards.Any, deps.Sessions))
	pages.GET("/api/session", console.Session, middleware.Guard(deps.Guards.Any, deps.Sessions))

	admin := pages.Group("/admin", middleware.Guard(deps.Guards.Admin, deps.Sessions))
	admin.GET("", console.Dashboard("Admissions administration"))
	admin.GET("/*", console.Dashboard("Admissions administration"))

	staff := pages.Group("/staff", middleware.Guard(deps.Guards.Staff, deps.Sessions))
	staff.GET("", console.Dashboard("Admissions desk"))
	staff.GET("/*", console.Dashboard("Admissions desk"))

	return e
}

// noStore keeps authenticated pages out of shared and back-button caches.
func noStore(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		c.Response().Header().Set(echo.HeaderCacheControl, "no-store")
		return next(c)
	}
}
