package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/wellness-admin/internal/platform"
	"github.com/iliyamo/wellness-admin/internal/service"
	"github.com/iliyamo/wellness-admin/internal/utils"
)

// Sessions is what the auth endpoints need from service.Auth.
type Sessions interface {
	Login(ctx context.Context, email, password string) (service.LoginResult, error)
	Logout(ctx context.Context, sessionID string) error
}

// AuthHandler bundles dependencies for auth endpoints.
type AuthHandler struct {
	Sessions  Sessions
	JWTSecret string
	Logger    *slog.Logger
}

func NewAuthHandler(s Sessions, jwtSecret string, logger *slog.Logger) *AuthHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthHandler{Sessions: s, JWTSecret: jwtSecret, Logger: logger}
}

// ----- DTOs -----

type loginReq struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Login forwards the credentials to the platform and opens a session.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := bindValid(c, &req); err != nil {
		return badBody(c, err)
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))

	res, err := h.Sessions.Login(c.Request().Context(), email, req.Password)
	switch {
	case err == nil:
		return c.JSON(http.StatusOK, res)
	case errors.Is(err, service.ErrRoleNotAllowed):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "role not allowed"})
	case platform.IsUnauthorized(err), platform.IsNotFound(err):
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	default:
		h.Logger.Error("login failed", "err", err)
		return c.JSON(http.StatusBadGateway, echo.Map{"error": "login failed"})
	}
}

// Logout deletes the session named by the bearer token. The token itself
// must still verify; an already deleted session is not an error.
func (h *AuthHandler) Logout(c echo.Context) error {
	auth := c.Request().Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
	}
	claims, err := utils.ParseAccessToken(h.JWTSecret, strings.TrimPrefix(auth, "Bearer "))
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
	}
	if err := h.Sessions.Logout(c.Request().Context(), claims.SessionID); err != nil {
		h.Logger.Error("logout failed", "err", err)
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "session store unavailable"})
	}
	return c.NoContent(http.StatusNoContent)
}
