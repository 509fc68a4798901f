package wizard

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/iliyamo/wellness-admin/internal/model"
	"github.com/iliyamo/wellness-admin/internal/pricing"
)

// IssuanceBackend receives the single creation call of an issuance wizard.
type IssuanceBackend interface {
	CreateIssuance(ctx context.Context, centerID int64, req model.IssuanceRequest) error
}

// Step is the issuance wizard's position. The variants are SelectProduct
// and ConfigureAndPay; the unexported marker closes the set.
type Step interface {
	issuanceStep()
	Name() string
}

// SelectProduct is the initial step: pick a ticket product.
type SelectProduct struct{}

// ConfigureAndPay holds the usage policy and payment being edited.
type ConfigureAndPay struct {
	Period  pricing.Period
	Policy  pricing.UsagePolicy
	Payment pricing.Payment
}

func (SelectProduct) issuanceStep()   {}
func (ConfigureAndPay) issuanceStep() {}

func (SelectProduct) Name() string   { return "SELECT" }
func (ConfigureAndPay) Name() string { return "CONFIGURE" }

// ConfigurePatch is a partial edit of the configure step. Nil fields are
// left untouched. ClearPeriod empties the date range before Start/End apply.
type ConfigurePatch struct {
	DiscountPercent   *float64
	ClearPeriod       bool
	Start             *time.Time
	End               *time.Time
	UsableCnt         *int
	LimitType         *model.LimitType
	LimitCnt          *int
	CardAmount        *int64
	CashAmount        *int64
	Installment       *bool
	InstallmentMonths *int
	Note              *string
}

// IssuanceWizard turns a ticket product selection into one issuance
// creation request for a member.
type IssuanceWizard struct {
	centerID int64
	memberID int64
	backend  IssuanceBackend
	opts     options

	mu       sync.Mutex
	step     Step
	product  *model.TicketProduct
	discount float64
	busy     bool
	cancel   context.CancelFunc
	closed   bool
	issued   bool
}

// NewIssuanceWizard opens a fresh wizard; state never carries over between
// opens.
func NewIssuanceWizard(centerID, memberID int64, backend IssuanceBackend, opts ...Option) *IssuanceWizard {
	return &IssuanceWizard{
		centerID: centerID,
		memberID: memberID,
		backend:  backend,
		opts:     buildOptions(opts),
		step:     SelectProduct{},
	}
}

func (w *IssuanceWizard) CenterID() int64 { return w.centerID }
func (w *IssuanceWizard) MemberID() int64 { return w.memberID }

// SelectProduct records the product and resets the discount to the
// product's default.
func (w *IssuanceWizard) SelectProduct(p model.TicketProduct) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.usable(); err != nil {
		return err
	}
	if _, ok := w.step.(SelectProduct); !ok {
		return invalid("product can only be changed on the selection step")
	}
	if p.IsDelete {
		return invalid("ticket product is no longer sold")
	}
	if err := pricing.ValidateDiscount(p.DiscountPercent); err != nil {
		return invalidErr("ticket product has an invalid discount", err)
	}
	w.product = &p
	w.discount = p.DiscountPercent
	return nil
}

// AdvanceToConfigure moves to the configure step seeded from the product.
func (w *IssuanceWizard) AdvanceToConfigure() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.usable(); err != nil {
		return err
	}
	if w.product == nil {
		return invalid("select a product first")
	}
	switch w.step.(type) {
	case SelectProduct:
		w.step = ConfigureAndPay{
			Period: pricing.DefaultPeriod(*w.product, w.opts.today()),
			Policy: pricing.DefaultPolicy(*w.product),
		}
		return nil
	case ConfigureAndPay:
		return nil
	default:
		panic(fmt.Sprintf("wizard: unknown step %T", w.step))
	}
}

// Back returns to product selection, dropping the configure inputs.
func (w *IssuanceWizard) Back() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.usable(); err != nil {
		return err
	}
	w.step = SelectProduct{}
	return nil
}

// Configure applies p atomically: either every field is accepted or the
// state is left as it was.
func (w *IssuanceWizard) Configure(p ConfigurePatch) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.usable(); err != nil {
		return err
	}
	cfg, ok := w.step.(ConfigureAndPay)
	if !ok {
		return invalid("advance to the configure step first")
	}
	discount := w.discount

	if p.DiscountPercent != nil {
		if err := pricing.ValidateDiscount(*p.DiscountPercent); err != nil {
			return invalidErr("discount must be between 0 and 100", err)
		}
		discount = *p.DiscountPercent
	}
	if p.ClearPeriod {
		cfg.Period = pricing.Period{}
	}
	if p.Start != nil {
		s := *p.Start
		cfg.Period.Start = &s
	}
	if p.End != nil {
		e := *p.End
		cfg.Period.End = &e
	}
	if p.UsableCnt != nil {
		if w.product.Kind != model.TicketKindCount {
			return invalidErr("usable count is fixed for period tickets", pricing.ErrCountNotEditable)
		}
		cfg.Policy.UsableCnt = *p.UsableCnt
	}
	if p.LimitType != nil {
		cfg.Policy.LimitType = *p.LimitType
	}
	if p.LimitCnt != nil {
		cfg.Policy.LimitCnt = *p.LimitCnt
	}
	if p.LimitType != nil || p.LimitCnt != nil || p.UsableCnt != nil {
		if err := cfg.Policy.Validate(); err != nil {
			return invalidErr("invalid usage policy", err)
		}
		if cfg.Policy.LimitType == model.LimitNone {
			cfg.Policy.LimitCnt = 0
		}
	}
	if p.CardAmount != nil {
		cfg.Payment.CardAmount = *p.CardAmount
	}
	if p.CashAmount != nil {
		cfg.Payment.CashAmount = *p.CashAmount
	}
	if p.Installment != nil {
		cfg.Payment.Installment = *p.Installment
	}
	if p.InstallmentMonths != nil {
		cfg.Payment.InstallmentMonths = *p.InstallmentMonths
	}
	if p.Note != nil {
		cfg.Payment.Note = *p.Note
	}
	if cfg.Payment.CardAmount < 0 || cfg.Payment.CashAmount < 0 {
		return invalidErr("payment amounts must not be negative", pricing.ErrNegativeAmount)
	}

	w.discount = discount
	w.step = cfg
	return nil
}

func (w *IssuanceWizard) SetDiscount(pct float64) error {
	return w.Configure(ConfigurePatch{DiscountPercent: &pct})
}

func (w *IssuanceWizard) SetPeriod(start, end time.Time) error {
	return w.Configure(ConfigurePatch{Start: &start, End: &end})
}

func (w *IssuanceWizard) ClearPeriod() error {
	return w.Configure(ConfigurePatch{ClearPeriod: true})
}

func (w *IssuanceWizard) SetUsableCnt(n int) error {
	return w.Configure(ConfigurePatch{UsableCnt: &n})
}

func (w *IssuanceWizard) SetLimit(lt model.LimitType, cnt int) error {
	return w.Configure(ConfigurePatch{LimitType: &lt, LimitCnt: &cnt})
}

// SetCard sets the card amount and installment plan together.
func (w *IssuanceWizard) SetCard(amount int64, installment bool, months int) error {
	return w.Configure(ConfigurePatch{CardAmount: &amount, Installment: &installment, InstallmentMonths: &months})
}

func (w *IssuanceWizard) SetCash(amount int64) error {
	return w.Configure(ConfigurePatch{CashAmount: &amount})
}

func (w *IssuanceWizard) SetNote(note string) error {
	return w.Configure(ConfigurePatch{Note: &note})
}

// Summary recomputes the price reconciliation from the current inputs.
// It returns false before a product has been selected.
func (w *IssuanceWizard) Summary() (pricing.Balance, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.summary()
}

func (w *IssuanceWizard) summary() (pricing.Balance, bool) {
	if w.product == nil {
		return pricing.Balance{}, false
	}
	final, err := pricing.FinalPrice(w.product.Price, w.discount)
	if err != nil {
		return pricing.Balance{}, false
	}
	var pay pricing.Payment
	if cfg, ok := w.step.(ConfigureAndPay); ok {
		pay = cfg.Payment
	}
	return pay.Balance(final), true
}

// Issue validates the inputs and sends the creation request. With nothing
// paid it refuses unless confirmed is true. On failure the wizard stays on
// the configure step with every input intact.
func (w *IssuanceWizard) Issue(ctx context.Context, confirmed bool) error {
	w.mu.Lock()
	if err := w.usable(); err != nil {
		w.mu.Unlock()
		return err
	}
	req, err := w.buildRequest(confirmed)
	if err != nil {
		w.mu.Unlock()
		return err
	}
	ctx, cancel := context.WithCancel(ctx)
	w.busy = true
	w.cancel = cancel
	w.mu.Unlock()

	err = w.backend.CreateIssuance(ctx, w.centerID, req)
	cancel()

	w.mu.Lock()
	defer w.mu.Unlock()
	w.busy = false
	w.cancel = nil
	if w.closed {
		return ErrClosed
	}
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSubmitFailed, err)
	}
	w.issued = true
	w.closed = true
	return nil
}

func (w *IssuanceWizard) buildRequest(confirmed bool) (model.IssuanceRequest, error) {
	var cfg ConfigureAndPay
	switch s := w.step.(type) {
	case SelectProduct:
		return model.IssuanceRequest{}, invalid("advance to the configure step first")
	case ConfigureAndPay:
		cfg = s
	default:
		panic(fmt.Sprintf("wizard: unknown step %T", w.step))
	}
	if !cfg.Period.Complete() {
		return model.IssuanceRequest{}, invalid("set both the start and end date")
	}
	if cfg.Period.End.Before(*cfg.Period.Start) {
		return model.IssuanceRequest{}, invalid("end date is before start date")
	}
	if err := cfg.Policy.Validate(); err != nil {
		return model.IssuanceRequest{}, invalidErr("invalid usage policy", err)
	}
	if err := cfg.Payment.Validate(); err != nil {
		return model.IssuanceRequest{}, invalidErr("invalid payment", err)
	}
	bal, ok := w.summary()
	if !ok {
		return model.IssuanceRequest{}, invalid("price could not be computed")
	}
	if bal.Paid == 0 && !confirmed {
		return model.IssuanceRequest{}, ErrConfirmationRequired
	}
	return model.IssuanceRequest{
		MemberID:        w.memberID,
		ProductID:       w.product.ID,
		StartDate:       model.MinuteTime(*cfg.Period.Start),
		ExpireDate:      model.MinuteTime(*cfg.Period.End),
		LimitType:       cfg.Policy.LimitType,
		LimitCnt:        cfg.Policy.LimitCnt,
		TotalUsableCnt:  cfg.Policy.UsableCnt,
		DiscountPercent: w.discount,
		TotalPayValue:   bal.Final,
		UnpaidValue:     bal.Unpaid,
		CardPayValue:    cfg.Payment.CardAmount,
		CashPayValue:    cfg.Payment.CashAmount,
		CardInstallment: cfg.Payment.InstallmentCount(),
		Note:            cfg.Payment.Note,
	}, nil
}

// Close cancels any in-flight submission and discards its late result.
func (w *IssuanceWizard) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	if w.cancel != nil {
		w.cancel()
	}
}

// Closed reports whether the wizard was closed or completed.
func (w *IssuanceWizard) Closed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closed
}

func (w *IssuanceWizard) usable() error {
	if w.closed {
		return ErrClosed
	}
	if w.busy {
		return ErrBusy
	}
	return nil
}

// IssuanceView is a read-only snapshot for rendering.
type IssuanceView struct {
	Step              string               `json:"step"`
	CenterID          int64                `json:"center_id"`
	MemberID          int64                `json:"member_id"`
	Product           *model.TicketProduct `json:"product,omitempty"`
	DiscountPercent   float64              `json:"discount_percent"`
	Period            *pricing.Period      `json:"period,omitempty"`
	Policy            *pricing.UsagePolicy `json:"policy,omitempty"`
	Payment           *pricing.Payment     `json:"payment,omitempty"`
	Balance           *pricing.Balance     `json:"balance,omitempty"`
	UsableCntEditable bool                 `json:"usable_cnt_editable"`
	Busy              bool                 `json:"busy"`
	Issued            bool                 `json:"issued"`
	Closed            bool                 `json:"closed"`
}

// View snapshots the wizard.
func (w *IssuanceWizard) View() IssuanceView {
	w.mu.Lock()
	defer w.mu.Unlock()
	v := IssuanceView{
		Step:            w.step.Name(),
		CenterID:        w.centerID,
		MemberID:        w.memberID,
		DiscountPercent: w.discount,
		Busy:            w.busy,
		Issued:          w.issued,
		Closed:          w.closed,
	}
	if w.product != nil {
		p := *w.product
		v.Product = &p
		v.UsableCntEditable = p.Kind == model.TicketKindCount
	}
	if cfg, ok := w.step.(ConfigureAndPay); ok {
		v.Period = &cfg.Period
		v.Policy = &cfg.Policy
		v.Payment = &cfg.Payment
	}
	if bal, ok := w.summary(); ok {
		v.Balance = &bal
	}
	return v
}
