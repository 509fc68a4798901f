package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/wellness-admin/internal/filter"
	"github.com/iliyamo/wellness-admin/internal/model"
	"github.com/iliyamo/wellness-admin/internal/repository"
	"github.com/iliyamo/wellness-admin/internal/service"
)

// AdminHandler serves the list screens and the direct, wizard-less actions
// of the admin dashboard.
type AdminHandler struct {
	Workflow *service.Workflow
	Logger   *slog.Logger
	now      func() time.Time
}

func NewAdminHandler(w *service.Workflow, logger *slog.Logger) *AdminHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AdminHandler{Workflow: w, Logger: logger, now: time.Now}
}

// scope resolves the actor and the :centerId parameter every admin route
// carries. ok is false once an error response was written.
func (h *AdminHandler) scope(c echo.Context) (a service.Actor, center int64, resp error, ok bool) {
	a, authed := actorFrom(c)
	if !authed {
		return a, 0, unauthenticated(c), false
	}
	center, valid := idParam(c, "centerId")
	if !valid {
		return a, 0, badParam(c, "center id"), false
	}
	return a, center, nil, true
}

// Tickets lists the products offered in the issuance product picker.
func (h *AdminHandler) Tickets(c echo.Context) error {
	a, center, resp, ok := h.scope(c)
	if !ok {
		return resp
	}
	ps, err := h.Workflow.ActiveProducts(c.Request().Context(), a, center)
	if err != nil {
		return respondError(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, ps)
}

// Members lists members matching the optional filters:
// remaining_cnt_min/max, remaining_days_min/max, q, created_from/to.
func (h *AdminHandler) Members(c echo.Context) error {
	a, center, resp, ok := h.scope(c)
	if !ok {
		return resp
	}
	crit, err := h.memberCriteria(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	rows, err := h.Workflow.Members(c.Request().Context(), a, center, crit)
	if err != nil {
		return respondError(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, rows)
}

type paramError string

func (e paramError) Error() string { return "invalid " + string(e) }

func (h *AdminHandler) memberCriteria(c echo.Context) (filter.MemberCriteria, error) {
	var crit filter.MemberCriteria
	ints := []struct {
		name string
		dst  **int
	}{
		{"remaining_cnt_min", &crit.RemainingCnt.Min},
		{"remaining_cnt_max", &crit.RemainingCnt.Max},
		{"remaining_days_min", &crit.RemainingDays.Min},
		{"remaining_days_max", &crit.RemainingDays.Max},
	}
	for _, p := range ints {
		v, err := optInt(c, p.name)
		if err != nil {
			return crit, paramError(p.name)
		}
		*p.dst = v
	}
	loc := h.Workflow.Location()
	from, err := optDate(c, "created_from", loc)
	if err != nil {
		return crit, paramError("created_from")
	}
	to, err := optDate(c, "created_to", loc)
	if err != nil {
		return crit, paramError("created_to")
	}
	crit.Created = filter.DateRange{From: from, To: to}
	crit.Search = c.QueryParam("q")
	return crit, nil
}

// Lectures lists one day's lectures (?date=YYYY-MM-DD, default today) with
// their active reservation counts.
func (h *AdminHandler) Lectures(c echo.Context) error {
	a, center, resp, ok := h.scope(c)
	if !ok {
		return resp
	}
	loc := h.Workflow.Location()
	day := h.now().In(loc)
	if d, err := optDate(c, "date", loc); err != nil {
		return badParam(c, "date")
	} else if d != nil {
		day = *d
	}
	ls, err := h.Workflow.Lectures(c.Request().Context(), a, center, day)
	if err != nil {
		return respondError(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, ls)
}

// LectureReservations lists the reservations of one lecture.
func (h *AdminHandler) LectureReservations(c echo.Context) error {
	a, center, resp, ok := h.scope(c)
	if !ok {
		return resp
	}
	lecture, valid := idParam(c, "lectureId")
	if !valid {
		return badParam(c, "lecture id")
	}
	rs, err := h.Workflow.Reservations(c.Request().Context(), a, center, lecture)
	if err != nil {
		return respondError(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, rs)
}

// GetIssuance loads the issuance update form.
func (h *AdminHandler) GetIssuance(c echo.Context) error {
	a, center, resp, ok := h.scope(c)
	if !ok {
		return resp
	}
	id, valid := idParam(c, "id")
	if !valid {
		return badParam(c, "issuance id")
	}
	d, err := h.Workflow.GetIssuanceDetail(c.Request().Context(), a, center, id)
	if err != nil {
		return respondError(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, d)
}

type updateIssuanceReq struct {
	StartDate    model.MinuteTime `json:"start_date" validate:"required"`
	ExpireDate   model.MinuteTime `json:"expire_date" validate:"required"`
	RemainingCnt int              `json:"remaining_cnt" validate:"gte=0"`
	LimitType    model.LimitType  `json:"limit_type" validate:"required,oneof=WEEK MONTH NONE"`
	LimitCnt     int              `json:"limit_cnt" validate:"gte=0"`
	IsDelete     bool             `json:"is_delete"`
}

// UpdateIssuance applies an operator's correction to an issued ticket.
func (h *AdminHandler) UpdateIssuance(c echo.Context) error {
	a, center, resp, ok := h.scope(c)
	if !ok {
		return resp
	}
	id, valid := idParam(c, "id")
	if !valid {
		return badParam(c, "issuance id")
	}
	var req updateIssuanceReq
	if err := bindValid(c, &req); err != nil {
		return badBody(c, err)
	}
	upd := model.IssuanceUpdate{
		ID:           id,
		StartDate:    req.StartDate,
		ExpireDate:   req.ExpireDate,
		RemainingCnt: req.RemainingCnt,
		LimitType:    req.LimitType,
		LimitCnt:     req.LimitCnt,
		IsDelete:     req.IsDelete,
	}
	if err := h.Workflow.UpdateIssuance(c.Request().Context(), a, center, upd); err != nil {
		return respondError(c, h.Logger, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// CancelReservation cancels one reservation. Cancelled reservations are
// rejected with 409.
func (h *AdminHandler) CancelReservation(c echo.Context) error {
	a, center, resp, ok := h.scope(c)
	if !ok {
		return resp
	}
	id, valid := idParam(c, "id")
	if !valid {
		return badParam(c, "reservation id")
	}
	if err := h.Workflow.CancelReservation(c.Request().Context(), a, center, id); err != nil {
		return respondError(c, h.Logger, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Journal lists the center's recent submissions (?limit=, max 200). The
// operator's platform session must be able to read the center.
func (h *AdminHandler) Journal(c echo.Context) error {
	a, center, resp, ok := h.scope(c)
	if !ok {
		return resp
	}
	limit := 0
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return badParam(c, "limit")
		}
		limit = n
	}
	vs, err := h.Workflow.Journal(c.Request().Context(), a, center, limit)
	if err != nil {
		return h.journalError(c, center, err)
	}
	return c.JSON(http.StatusOK, vs)
}

// JournalEntry returns one submission of the center.
func (h *AdminHandler) JournalEntry(c echo.Context) error {
	a, center, resp, ok := h.scope(c)
	if !ok {
		return resp
	}
	id, valid := idParam(c, "id")
	if !valid {
		return badParam(c, "journal id")
	}
	v, err := h.Workflow.JournalEntry(c.Request().Context(), a, center, id)
	if err != nil {
		return h.journalError(c, center, err)
	}
	return c.JSON(http.StatusOK, v)
}

func (h *AdminHandler) journalError(c echo.Context, center int64, err error) error {
	if errors.Is(err, service.ErrCenterAccess) || errors.Is(err, repository.ErrNotFound) {
		return respondError(c, h.Logger, err)
	}
	h.Logger.Error("journal query failed", "center_id", center, "err", err)
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "journal unavailable"})
}
