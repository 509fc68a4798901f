package handler

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/wellness-admin/internal/metrics"
	"github.com/iliyamo/wellness-admin/internal/service"
	"github.com/iliyamo/wellness-admin/internal/wizard"
)

const reservationKind = "reservation"

// ReservationWizardHandler drives the two-step reservation assignment.
type ReservationWizardHandler struct {
	Workflow *service.Workflow
	Registry *wizard.Registry[*wizard.ReservationWizard]
	Logger   *slog.Logger
}

func NewReservationWizardHandler(w *service.Workflow, reg *wizard.Registry[*wizard.ReservationWizard], logger *slog.Logger) *ReservationWizardHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReservationWizardHandler{Workflow: w, Registry: reg, Logger: logger}
}

// Open starts a wizard assigning a member to the lecture.
func (h *ReservationWizardHandler) Open(c echo.Context) error {
	a, ok := actorFrom(c)
	if !ok {
		return unauthenticated(c)
	}
	center, valid := idParam(c, "centerId")
	if !valid {
		return badParam(c, "center id")
	}
	lecture, valid := idParam(c, "lectureId")
	if !valid {
		return badParam(c, "lecture id")
	}
	var w *wizard.ReservationWizard
	id := h.Registry.Open(a.OperatorID, func(id string) *wizard.ReservationWizard {
		wa := a
		wa.WizardID = id
		w = wizard.NewReservationWizard(center, lecture, h.Workflow.ReservationBackend(wa), wizard.WithLocation(h.Workflow.Location()))
		return w
	})
	metrics.SetOpenWizards(reservationKind, h.Registry.Len())
	return c.JSON(http.StatusCreated, wizardResp{ID: id, Wizard: w.View()})
}

func (h *ReservationWizardHandler) lookup(c echo.Context) (*wizard.ReservationWizard, service.Actor, error) {
	a, ok := actorFrom(c)
	if !ok {
		return nil, a, errNoSession
	}
	w, err := h.Registry.Get(a.OperatorID, c.Param("id"))
	return w, a, err
}

func (h *ReservationWizardHandler) fail(c echo.Context, err error) error {
	if err == errNoSession {
		return unauthenticated(c)
	}
	return respondError(c, h.Logger, err)
}

func (h *ReservationWizardHandler) view(c echo.Context, w *wizard.ReservationWizard) error {
	return c.JSON(http.StatusOK, wizardResp{ID: c.Param("id"), Wizard: w.View()})
}

func (h *ReservationWizardHandler) Get(c echo.Context) error {
	w, _, err := h.lookup(c)
	if err != nil {
		return h.fail(c, err)
	}
	return h.view(c, w)
}

func (h *ReservationWizardHandler) Close(c echo.Context) error {
	a, ok := actorFrom(c)
	if !ok {
		return unauthenticated(c)
	}
	if err := h.Registry.Remove(a.OperatorID, c.Param("id")); err != nil {
		return respondError(c, h.Logger, err)
	}
	metrics.SetOpenWizards(reservationKind, h.Registry.Len())
	return c.NoContent(http.StatusNoContent)
}

// Members is the member picker; ?q= filters by name or mobile.
func (h *ReservationWizardHandler) Members(c echo.Context) error {
	w, _, err := h.lookup(c)
	if err != nil {
		return h.fail(c, err)
	}
	ms, err := w.FilterMembers(c.Request().Context(), c.QueryParam("q"))
	if err != nil {
		return respondError(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, ms)
}

type selectMemberReq struct {
	MemberID int64 `json:"member_id" validate:"required,gt=0"`
}

func (h *ReservationWizardHandler) SelectMember(c echo.Context) error {
	w, _, err := h.lookup(c)
	if err != nil {
		return h.fail(c, err)
	}
	var req selectMemberReq
	if err := bindValid(c, &req); err != nil {
		return badBody(c, err)
	}
	if err := w.SelectMember(req.MemberID); err != nil {
		return respondError(c, h.Logger, err)
	}
	return h.view(c, w)
}

// chooseTicketReq picks either the free reservation or one ticket.
type chooseTicketReq struct {
	Free     bool   `json:"free"`
	TicketID *int64 `json:"ticket_id"`
}

var errAmbiguousChoice = paramError("choice: send either free or ticket_id")

func (h *ReservationWizardHandler) ChooseTicket(c echo.Context) error {
	w, _, err := h.lookup(c)
	if err != nil {
		return h.fail(c, err)
	}
	var req chooseTicketReq
	if err := bindValid(c, &req); err != nil {
		return badBody(c, err)
	}
	if req.Free == (req.TicketID != nil) {
		return badBody(c, errAmbiguousChoice)
	}
	if req.Free {
		err = w.ChooseFree()
	} else {
		err = w.ChooseTicket(*req.TicketID)
	}
	if err != nil {
		return respondError(c, h.Logger, err)
	}
	return h.view(c, w)
}

// Advance moves to the confirm step, or from it submits the reservation.
// The response says which happened through reserved.
func (h *ReservationWizardHandler) Advance(c echo.Context) error {
	w, a, err := h.lookup(c)
	if err != nil {
		return h.fail(c, err)
	}
	if err := w.Advance(c.Request().Context()); err != nil {
		if reason := rejectionReason(err); reason != "" {
			metrics.RecordRejection(reservationKind, reason)
		}
		return respondError(c, h.Logger, err)
	}
	v := w.View()
	if !v.Reserved {
		return h.view(c, w)
	}
	_ = h.Registry.Remove(a.OperatorID, c.Param("id"))
	metrics.SetOpenWizards(reservationKind, h.Registry.Len())
	return c.JSON(http.StatusOK, echo.Map{"reserved": true, "refresh": true, "wizard": v})
}

func (h *ReservationWizardHandler) Back(c echo.Context) error {
	w, _, err := h.lookup(c)
	if err != nil {
		return h.fail(c, err)
	}
	if err := w.Back(); err != nil {
		return respondError(c, h.Logger, err)
	}
	return h.view(c, w)
}
