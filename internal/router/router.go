package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/wellness-admin/internal/handler"
	"github.com/iliyamo/wellness-admin/internal/middleware"
	"github.com/iliyamo/wellness-admin/internal/session"
)

// AdminRoles may use every /v1 admin route.
var AdminRoles = []string{"ADMIN", "MANAGER"}

// RegisterRoutes registers routes that do not require authentication:
// the health check and the Prometheus scrape endpoint.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
	e.GET("/metrics", handler.Metrics)
}

// RegisterAuth registers login and logout under /v1/auth. Neither needs
// the JWT middleware; logout verifies the bearer token itself.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, mw ...echo.MiddlewareFunc) {
	g := e.Group("/v1/auth", mw...)
	g.POST("/login", a.Login)
	g.POST("/logout", a.Logout)
}

// Protected creates the /v1 group every admin route lives in: a valid
// access token with a live session and an admin role are required.
func Protected(e *echo.Echo, jwtSecret string, store session.Store, extra ...echo.MiddlewareFunc) *echo.Group {
	g := e.Group("/v1")
	g.Use(middleware.JWTAuth(jwtSecret, store))
	g.Use(middleware.RequireRole(AdminRoles...))
	g.Use(extra...)
	return g
}
