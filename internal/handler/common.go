package handler // handler maps HTTP requests onto the workflow and the wizards

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/wellness-admin/internal/middleware"
	"github.com/iliyamo/wellness-admin/internal/platform"
	"github.com/iliyamo/wellness-admin/internal/repository"
	"github.com/iliyamo/wellness-admin/internal/service"
	"github.com/iliyamo/wellness-admin/internal/wizard"
)

// dateLayout is how the dashboard sends calendar days.
const dateLayout = "2006-01-02"

// Validator adapts go-playground/validator to echo.Validator.
type Validator struct {
	v *validator.Validate
}

func NewValidator() *Validator {
	return &Validator{v: validator.New(validator.WithRequiredStructEnabled())}
}

func (cv *Validator) Validate(i any) error {
	return cv.v.Struct(i)
}

var errInvalidBody = errors.New("invalid body")

// bindValid binds the body into dst and runs the echo validator on it. The
// returned error is safe to show to the client.
func bindValid(c echo.Context, dst any) error {
	if err := c.Bind(dst); err != nil { // malformed JSON or wrong types
		return errInvalidBody
	}
	return c.Validate(dst)
}

func badBody(c echo.Context, err error) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
}

// actorFrom builds the service actor from the session JWTAuth resolved.
func actorFrom(c echo.Context) (service.Actor, bool) {
	s, ok := middleware.SessionFrom(c)
	if !ok {
		return service.Actor{}, false
	}
	return service.Actor{OperatorID: s.Operator.ID, Token: s.PlatformToken}, true
}

// errNoSession means the request carries no resolved session.
var errNoSession = errors.New("no session")

func unauthenticated(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthenticated"})
}

// idParam parses a positive int64 path parameter.
func idParam(c echo.Context, name string) (int64, bool) {
	n, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || n <= 0 { // ids are always positive
		return 0, false
	}
	return n, true
}

func badParam(c echo.Context, name string) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid " + name})
}

// optInt reads an optional integer query parameter.
func optInt(c echo.Context, name string) (*int, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// optDate reads an optional YYYY-MM-DD query parameter in loc.
func optDate(c echo.Context, name string, loc *time.Location) (*time.Time, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return nil, nil
	}
	t, err := time.ParseInLocation(dateLayout, raw, loc)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// respondError turns workflow, wizard and platform failures into the JSON
// error body every endpoint shares.
func respondError(c echo.Context, logger *slog.Logger, err error) error {
	var ve *wizard.ValidationError
	switch {
	case errors.As(err, &ve):
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": ve.Msg})
	case errors.Is(err, wizard.ErrConfirmationRequired):
		return c.JSON(http.StatusConflict, echo.Map{"error": "confirmation_required"})
	case errors.Is(err, wizard.ErrBusy):
		return c.JSON(http.StatusConflict, echo.Map{"error": "busy"})
	case errors.Is(err, wizard.ErrClosed):
		return c.JSON(http.StatusGone, echo.Map{"error": "wizard closed"})
	case errors.Is(err, wizard.ErrForbidden):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	case errors.Is(err, wizard.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "wizard not found"})
	case errors.Is(err, service.ErrAlreadyCancelled):
		return c.JSON(http.StatusConflict, echo.Map{"error": "reservation already cancelled"})
	case errors.Is(err, service.ErrInvalidUpdate):
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": err.Error()})
	case errors.Is(err, service.ErrCenterAccess) && (platform.IsForbidden(err) || platform.IsNotFound(err)):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "center not accessible"})
	case errors.Is(err, repository.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "journal entry not found"})
	case platform.IsUnauthorized(err):
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "platform session expired"})
	case errors.Is(err, wizard.ErrSubmitFailed):
		logger.Error("submit failed", "path", c.Path(), "err", err)
		return c.JSON(http.StatusBadGateway, echo.Map{"error": "submit failed"})
	case platform.IsNotFound(err):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "could not load"})
	default:
		logger.Error("platform request failed", "path", c.Path(), "err", err)
		return c.JSON(http.StatusBadGateway, echo.Map{"error": "platform request failed"})
	}
}

// rejectionReason labels a local rejection for metrics; empty when err
// reached the platform or is not a rejection.
func rejectionReason(err error) string {
	switch {
	case wizard.IsValidation(err):
		return "validation"
	case errors.Is(err, wizard.ErrConfirmationRequired):
		return "confirmation_required"
	case errors.Is(err, wizard.ErrBusy):
		return "busy"
	default:
		return ""
	}
}
