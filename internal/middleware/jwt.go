package middleware // declare the middleware package; contains reusable HTTP middleware functions

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/wellness-admin/internal/session"
	"github.com/iliyamo/wellness-admin/internal/utils"
)

// JWTAuth returns an Echo middleware that validates a Bearer access token,
// resolves the session it references and injects the operator into the
// request context. Handlers read it back via OperatorID, Role and
// SessionFrom. A token whose session was deleted by logout, or expired in
// the store, is rejected even if the JWT itself is still valid.
func JWTAuth(secret string, store session.Store) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			// A valid header starts with "Bearer " followed by the JWT.
			auth := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
			}
			raw := strings.TrimPrefix(auth, "Bearer ")

			claims, err := utils.ParseAccessToken(secret, raw)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
			}

			sess, err := store.Get(c.Request().Context(), claims.SessionID)
			if errors.Is(err, session.ErrNotFound) {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "session expired"})
			}
			if err != nil {
				c.Logger().Errorf("session lookup failed: %v", err)
				return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "session store unavailable"})
			}
			if sess.Operator.ID != claims.OperatorID {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
			}

			c.Set(ctxOperatorID, claims.OperatorID)
			c.Set(ctxRole, claims.Role)
			c.Set(ctxSession, sess)
			return next(c)
		}
	}
}
