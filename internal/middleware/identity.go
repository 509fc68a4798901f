package middleware

// identity.go holds the context keys JWTAuth fills and the accessors the
// handlers and the other middleware use to read them back.

import (
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/wellness-admin/internal/model"
)

const (
	ctxOperatorID = "operator_id"
	ctxRole       = "role"
	ctxSession    = "session"
)

// OperatorID returns the authenticated operator, or 0 for anonymous requests.
func OperatorID(c echo.Context) int64 {
	id, _ := c.Get(ctxOperatorID).(int64)
	return id
}

// Role returns the authenticated operator's role.
func Role(c echo.Context) string {
	r, _ := c.Get(ctxRole).(string)
	return r
}

// SessionFrom returns the session JWTAuth resolved.
func SessionFrom(c echo.Context) (model.Session, bool) {
	s, ok := c.Get(ctxSession).(model.Session)
	return s, ok
}

// currentUserID is the operator id as a key fragment; "anon" when the
// request is not authenticated.
func currentUserID(c echo.Context) string {
	if id := OperatorID(c); id > 0 {
		return strconv.FormatInt(id, 10)
	}
	return "anon"
}
