package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/wellness-admin/internal/metrics"
	"github.com/iliyamo/wellness-admin/internal/model"
	"github.com/iliyamo/wellness-admin/internal/service"
	"github.com/iliyamo/wellness-admin/internal/wizard"
)

const issuanceKind = "issuance"

// IssuanceWizardHandler drives ticket issuance wizards held in a registry.
type IssuanceWizardHandler struct {
	Workflow *service.Workflow
	Registry *wizard.Registry[*wizard.IssuanceWizard]
	Logger   *slog.Logger
}

func NewIssuanceWizardHandler(w *service.Workflow, reg *wizard.Registry[*wizard.IssuanceWizard], logger *slog.Logger) *IssuanceWizardHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &IssuanceWizardHandler{Workflow: w, Registry: reg, Logger: logger}
}

type wizardResp struct {
	ID     string `json:"id"`
	Wizard any    `json:"wizard"`
}

// Open starts a fresh wizard for the member. Nothing from a previous
// wizard carries over.
func (h *IssuanceWizardHandler) Open(c echo.Context) error {
	a, ok := actorFrom(c)
	if !ok {
		return unauthenticated(c)
	}
	center, valid := idParam(c, "centerId")
	if !valid {
		return badParam(c, "center id")
	}
	member, valid := idParam(c, "memberId")
	if !valid {
		return badParam(c, "member id")
	}
	var w *wizard.IssuanceWizard
	id := h.Registry.Open(a.OperatorID, func(id string) *wizard.IssuanceWizard {
		wa := a
		wa.WizardID = id
		w = wizard.NewIssuanceWizard(center, member, h.Workflow.IssuanceBackend(wa), wizard.WithLocation(h.Workflow.Location()))
		return w
	})
	metrics.SetOpenWizards(issuanceKind, h.Registry.Len())
	return c.JSON(http.StatusCreated, wizardResp{ID: id, Wizard: w.View()})
}

// lookup returns the caller's wizard named by :id.
func (h *IssuanceWizardHandler) lookup(c echo.Context) (*wizard.IssuanceWizard, service.Actor, error) {
	a, ok := actorFrom(c)
	if !ok {
		return nil, a, errNoSession
	}
	w, err := h.Registry.Get(a.OperatorID, c.Param("id"))
	return w, a, err
}

func (h *IssuanceWizardHandler) fail(c echo.Context, err error) error {
	if err == errNoSession {
		return unauthenticated(c)
	}
	return respondError(c, h.Logger, err)
}

func (h *IssuanceWizardHandler) view(c echo.Context, w *wizard.IssuanceWizard) error {
	return c.JSON(http.StatusOK, wizardResp{ID: c.Param("id"), Wizard: w.View()})
}

// Get renders the wizard with its live summary.
func (h *IssuanceWizardHandler) Get(c echo.Context) error {
	w, _, err := h.lookup(c)
	if err != nil {
		return h.fail(c, err)
	}
	return h.view(c, w)
}

// Close discards the wizard. An in-flight issue is cancelled and its
// result ignored.
func (h *IssuanceWizardHandler) Close(c echo.Context) error {
	a, ok := actorFrom(c)
	if !ok {
		return unauthenticated(c)
	}
	if err := h.Registry.Remove(a.OperatorID, c.Param("id")); err != nil {
		return respondError(c, h.Logger, err)
	}
	metrics.SetOpenWizards(issuanceKind, h.Registry.Len())
	return c.NoContent(http.StatusNoContent)
}

type selectProductReq struct {
	ProductID int64 `json:"product_id" validate:"required,gt=0"`
}

// SelectProduct loads the product from the platform and selects it.
func (h *IssuanceWizardHandler) SelectProduct(c echo.Context) error {
	w, a, err := h.lookup(c)
	if err != nil {
		return h.fail(c, err)
	}
	var req selectProductReq
	if err := bindValid(c, &req); err != nil {
		return badBody(c, err)
	}
	p, err := h.Workflow.Product(c.Request().Context(), a, w.CenterID(), req.ProductID)
	if err != nil {
		return respondError(c, h.Logger, err)
	}
	if err := w.SelectProduct(p); err != nil {
		return respondError(c, h.Logger, err)
	}
	return h.view(c, w)
}

// Advance moves from product selection to configuration.
func (h *IssuanceWizardHandler) Advance(c echo.Context) error {
	w, _, err := h.lookup(c)
	if err != nil {
		return h.fail(c, err)
	}
	if err := w.AdvanceToConfigure(); err != nil {
		return respondError(c, h.Logger, err)
	}
	return h.view(c, w)
}

// Back returns to product selection, keeping the product.
func (h *IssuanceWizardHandler) Back(c echo.Context) error {
	w, _, err := h.lookup(c)
	if err != nil {
		return h.fail(c, err)
	}
	if err := w.Back(); err != nil {
		return respondError(c, h.Logger, err)
	}
	return h.view(c, w)
}

// configureReq is a partial edit; absent fields are left alone. Dates are
// studio-local calendar days.
type configureReq struct {
	DiscountPercent   *float64         `json:"discount_percent"`
	ClearPeriod       bool             `json:"clear_period"`
	StartDate         *string          `json:"start_date"`
	EndDate           *string          `json:"end_date"`
	UsableCnt         *int             `json:"usable_cnt"`
	LimitType         *model.LimitType `json:"limit_type" validate:"omitempty,oneof=WEEK MONTH NONE"`
	LimitCnt          *int             `json:"limit_cnt"`
	CardAmount        *int64           `json:"card_amount"`
	CashAmount        *int64           `json:"cash_amount"`
	Installment       *bool            `json:"installment"`
	InstallmentMonths *int             `json:"installment_months"`
	Note              *string          `json:"note" validate:"omitempty,max=500"`
}

func parseDay(raw *string, loc *time.Location) (*time.Time, error) {
	if raw == nil {
		return nil, nil
	}
	t, err := time.ParseInLocation(dateLayout, *raw, loc)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r configureReq) patch(loc *time.Location) (wizard.ConfigurePatch, error) {
	start, err := parseDay(r.StartDate, loc)
	if err != nil {
		return wizard.ConfigurePatch{}, paramError("start_date")
	}
	end, err := parseDay(r.EndDate, loc)
	if err != nil {
		return wizard.ConfigurePatch{}, paramError("end_date")
	}
	return wizard.ConfigurePatch{
		DiscountPercent:   r.DiscountPercent,
		ClearPeriod:       r.ClearPeriod,
		Start:             start,
		End:               end,
		UsableCnt:         r.UsableCnt,
		LimitType:         r.LimitType,
		LimitCnt:          r.LimitCnt,
		CardAmount:        r.CardAmount,
		CashAmount:        r.CashAmount,
		Installment:       r.Installment,
		InstallmentMonths: r.InstallmentMonths,
		Note:              r.Note,
	}, nil
}

// Configure applies a partial edit atomically: on a validation error none
// of the fields change.
func (h *IssuanceWizardHandler) Configure(c echo.Context) error {
	w, _, err := h.lookup(c)
	if err != nil {
		return h.fail(c, err)
	}
	var req configureReq
	if err := bindValid(c, &req); err != nil {
		return badBody(c, err)
	}
	p, err := req.patch(h.Workflow.Location())
	if err != nil {
		return badBody(c, err)
	}
	if err := w.Configure(p); err != nil {
		return respondError(c, h.Logger, err)
	}
	return h.view(c, w)
}

type issueReq struct {
	Confirmed bool `json:"confirmed"`
}

// Issue submits the issuance. A zero payment needs confirmed=true. On
// success the wizard is dropped and the client refreshes its lists.
func (h *IssuanceWizardHandler) Issue(c echo.Context) error {
	w, a, err := h.lookup(c)
	if err != nil {
		return h.fail(c, err)
	}
	var req issueReq
	if err := bindValid(c, &req); err != nil {
		return badBody(c, err)
	}
	if err := w.Issue(c.Request().Context(), req.Confirmed); err != nil {
		if reason := rejectionReason(err); reason != "" {
			metrics.RecordRejection(issuanceKind, reason)
		}
		return respondError(c, h.Logger, err)
	}
	v := w.View()
	_ = h.Registry.Remove(a.OperatorID, c.Param("id"))
	metrics.SetOpenWizards(issuanceKind, h.Registry.Len())
	return c.JSON(http.StatusOK, echo.Map{"issued": true, "refresh": true, "wizard": v})
}
