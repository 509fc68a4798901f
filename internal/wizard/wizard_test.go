package wizard

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/wellness-admin/internal/model"
	"github.com/iliyamo/wellness-admin/internal/pricing"
)

var fixedNow = time.Date(2024, 5, 10, 9, 30, 0, 0, time.UTC)

func clock() Option { return WithClock(func() time.Time { return fixedNow }) }

type fakeIssuance struct {
	calls   atomic.Int32
	gate    chan struct{}
	entered chan struct{}
	err     error
	last    model.IssuanceRequest
	mu      sync.Mutex
}

func (f *fakeIssuance) CreateIssuance(ctx context.Context, centerID int64, req model.IssuanceRequest) error {
	f.calls.Add(1)
	f.mu.Lock()
	f.last = req
	f.mu.Unlock()
	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return f.err
}

var countProduct = model.TicketProduct{
	ID: 7, Name: "10 sessions", Kind: model.TicketKindCount,
	Price: 100000, DiscountPercent: 15, UsableCnt: 10, UsableDays: 30,
	LimitType: model.LimitWeek, LimitCnt: 2,
}

func configured(t *testing.T, b IssuanceBackend) *IssuanceWizard {
	t.Helper()
	w := NewIssuanceWizard(1, 42, b, clock(), WithLocation(time.UTC))
	require.NoError(t, w.SelectProduct(countProduct))
	require.NoError(t, w.AdvanceToConfigure())
	return w
}

func TestIssuanceAdvanceWithoutProduct(t *testing.T) {
	w := NewIssuanceWizard(1, 42, &fakeIssuance{}, clock())
	err := w.AdvanceToConfigure()
	assert.True(t, IsValidation(err))
	assert.Equal(t, "SELECT", w.View().Step)
}

func TestIssuanceDefaults(t *testing.T) {
	w := configured(t, &fakeIssuance{})
	v := w.View()
	require.NotNil(t, v.Period)
	assert.Equal(t, time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC), *v.Period.Start)
	assert.Equal(t, time.Date(2024, 6, 9, 0, 0, 0, 0, time.UTC), *v.Period.End)
	assert.Equal(t, 15.0, v.DiscountPercent)
	assert.Equal(t, pricing.Balance{Final: 85000, Paid: 0, Unpaid: 85000}, *v.Balance)
	assert.True(t, v.UsableCntEditable)
}

func TestIssueFromSelectStepSendsNothing(t *testing.T) {
	b := &fakeIssuance{}
	w := NewIssuanceWizard(1, 42, b, clock())
	require.NoError(t, w.SelectProduct(countProduct))
	err := w.Issue(context.Background(), true)
	assert.True(t, IsValidation(err))
	assert.Zero(t, b.calls.Load())
}

func TestIssueZeroPaymentNeedsConfirmation(t *testing.T) {
	b := &fakeIssuance{}
	w := configured(t, b)

	err := w.Issue(context.Background(), false)
	assert.ErrorIs(t, err, ErrConfirmationRequired)
	assert.Zero(t, b.calls.Load())
	assert.False(t, w.Closed())

	require.NoError(t, w.Issue(context.Background(), true))
	assert.EqualValues(t, 1, b.calls.Load())
	assert.Equal(t, int64(85000), b.last.UnpaidValue)
	assert.True(t, w.Closed())
}

func TestIssueBuildsRequest(t *testing.T) {
	b := &fakeIssuance{}
	w := configured(t, b)
	require.NoError(t, w.SetCard(50000, true, 3))
	require.NoError(t, w.SetCash(10000))
	require.NoError(t, w.SetNote("front desk"))
	require.NoError(t, w.SetUsableCnt(12))

	require.NoError(t, w.Issue(context.Background(), false))
	req := b.last
	assert.Equal(t, int64(42), req.MemberID)
	assert.Equal(t, int64(7), req.ProductID)
	assert.Equal(t, int64(85000), req.TotalPayValue)
	assert.Equal(t, int64(25000), req.UnpaidValue)
	assert.Equal(t, 3, req.CardInstallment)
	assert.Equal(t, 12, req.TotalUsableCnt)
	assert.Equal(t, model.LimitWeek, req.LimitType)
	assert.Equal(t, "2024-05-10T00:00:00Z", req.StartDate.String())
}

func TestIssueIncompletePeriod(t *testing.T) {
	b := &fakeIssuance{}
	w := configured(t, b)
	require.NoError(t, w.ClearPeriod())
	assert.True(t, IsValidation(w.Issue(context.Background(), true)))
	assert.Zero(t, b.calls.Load())
}

func TestConfigureIsAtomic(t *testing.T) {
	w := configured(t, &fakeIssuance{})
	bad := 150.0
	cash := int64(5000)
	err := w.Configure(ConfigurePatch{CashAmount: &cash, DiscountPercent: &bad})
	assert.ErrorIs(t, err, pricing.ErrDiscountRange)
	v := w.View()
	assert.Equal(t, 15.0, v.DiscountPercent)
	assert.Zero(t, v.Payment.CashAmount)
}

func TestPeriodTicketUsableCountFixed(t *testing.T) {
	p := countProduct
	p.Kind = model.TicketKindPeriod
	w := NewIssuanceWizard(1, 42, &fakeIssuance{}, clock())
	require.NoError(t, w.SelectProduct(p))
	require.NoError(t, w.AdvanceToConfigure())
	assert.ErrorIs(t, w.SetUsableCnt(3), pricing.ErrCountNotEditable)
}

func TestInstallmentRules(t *testing.T) {
	b := &fakeIssuance{}
	w := configured(t, b)
	require.NoError(t, w.SetCard(0, true, 3))
	assert.ErrorIs(t, w.Issue(context.Background(), true), pricing.ErrInstallmentNoCard)
	require.NoError(t, w.SetCard(1000, true, 1))
	assert.ErrorIs(t, w.Issue(context.Background(), true), pricing.ErrInstallmentMonths)
	assert.Zero(t, b.calls.Load())
}

func TestIssueFailureKeepsInputs(t *testing.T) {
	b := &fakeIssuance{err: errors.New("platform down")}
	w := configured(t, b)
	require.NoError(t, w.SetCash(85000))

	err := w.Issue(context.Background(), false)
	assert.ErrorIs(t, err, ErrSubmitFailed)
	assert.False(t, w.Closed())
	v := w.View()
	assert.Equal(t, "CONFIGURE", v.Step)
	assert.Equal(t, int64(85000), v.Payment.CashAmount)
	assert.Zero(t, v.Balance.Unpaid)
}

func TestIssueBusyGuard(t *testing.T) {
	b := &fakeIssuance{gate: make(chan struct{}), entered: make(chan struct{}, 1)}
	w := configured(t, b)

	done := make(chan error, 1)
	go func() { done <- w.Issue(context.Background(), true) }()
	<-b.entered

	assert.ErrorIs(t, w.Issue(context.Background(), true), ErrBusy)
	assert.ErrorIs(t, w.SetCash(1), ErrBusy)
	assert.True(t, w.View().Busy)

	close(b.gate)
	require.NoError(t, <-done)
	assert.EqualValues(t, 1, b.calls.Load())
}

func TestCloseDropsLateResult(t *testing.T) {
	b := &fakeIssuance{gate: make(chan struct{}), entered: make(chan struct{}, 1)}
	w := configured(t, b)

	done := make(chan error, 1)
	go func() { done <- w.Issue(context.Background(), true) }()
	<-b.entered
	w.Close()

	assert.ErrorIs(t, <-done, ErrClosed)
	assert.ErrorIs(t, w.Back(), ErrClosed)
}

func TestReopenStartsFresh(t *testing.T) {
	w := configured(t, &fakeIssuance{})
	w.Close()
	fresh := NewIssuanceWizard(1, 42, &fakeIssuance{}, clock())
	v := fresh.View()
	assert.Equal(t, "SELECT", v.Step)
	assert.Nil(t, v.Product)
	assert.Zero(t, v.DiscountPercent)
}

type fakeReservation struct {
	members     []model.Member
	lecture     model.Lecture
	memberCalls atomic.Int32
	createCalls atomic.Int32
	last        model.ReservationRequest
	err         error
}

func (f *fakeReservation) ListMembers(ctx context.Context, centerID int64) ([]model.Member, error) {
	f.memberCalls.Add(1)
	return f.members, nil
}

func (f *fakeReservation) GetLecture(ctx context.Context, centerID, lectureID int64) (model.Lecture, error) {
	return f.lecture, nil
}

func (f *fakeReservation) CreateReservation(ctx context.Context, req model.ReservationRequest) error {
	f.createCalls.Add(1)
	f.last = req
	return f.err
}

func reservationFixture() *fakeReservation {
	start := fixedNow.AddDate(0, 0, -10)
	return &fakeReservation{
		members: []model.Member{
			{ID: 3, Name: "Kim Minji", Mobile: "010-1111-2222", Tickets: []model.IssuedTicket{
				{ID: 100, Kind: model.TicketKindCount, StartDate: start, ExpireDate: fixedNow.AddDate(0, 1, 0), RemainingCnt: 4},
				{ID: 101, Kind: model.TicketKindCount, StartDate: start, ExpireDate: fixedNow.AddDate(0, 1, 0), RemainingCnt: 0},
				{ID: 102, Kind: model.TicketKindPeriod, StartDate: start, ExpireDate: fixedNow.AddDate(0, 0, -1)},
			}},
			{ID: 4, Name: "Lee Jiwon", Mobile: "010-3333-4444"},
		},
		lecture: model.Lecture{ID: 9, StartDate: fixedNow.Add(2 * time.Hour), Capacity: 10, ReservationCount: 3},
	}
}

func confirmStep(t *testing.T, b *fakeReservation) *ReservationWizard {
	t.Helper()
	w := NewReservationWizard(1, 9, b, clock(), WithLocation(time.UTC))
	require.NoError(t, w.SelectMember(3))
	require.NoError(t, w.Advance(context.Background()))
	require.Equal(t, "CONFIRM", w.View().Step)
	return w
}

func TestReservationUnselectedBlocksSubmit(t *testing.T) {
	b := reservationFixture()
	w := confirmStep(t, b)
	assert.True(t, IsValidation(w.Advance(context.Background())))
	assert.Zero(t, b.createCalls.Load())
}

func TestReservationFreeOmitsTicket(t *testing.T) {
	b := reservationFixture()
	w := confirmStep(t, b)
	require.NoError(t, w.ChooseFree())
	require.NoError(t, w.Advance(context.Background()))
	assert.EqualValues(t, 1, b.createCalls.Load())
	assert.Nil(t, b.last.TicketIssuanceID)
	assert.Equal(t, model.ReservationRequest{CenterID: 1, MemberID: 3, LectureID: 9}, b.last)
	assert.True(t, w.Closed())
}

func TestReservationWithTicket(t *testing.T) {
	b := reservationFixture()
	w := confirmStep(t, b)

	tickets := w.ConsumableTickets()
	require.Len(t, tickets, 1)
	assert.Equal(t, int64(100), tickets[0].ID)

	assert.True(t, IsValidation(w.ChooseTicket(101)))
	assert.True(t, IsValidation(w.ChooseTicket(102)))
	require.NoError(t, w.ChooseTicket(100))
	require.NoError(t, w.Advance(context.Background()))
	require.NotNil(t, b.last.TicketIssuanceID)
	assert.Equal(t, int64(100), *b.last.TicketIssuanceID)
}

func TestReservationMembersLoadedOnce(t *testing.T) {
	b := reservationFixture()
	w := NewReservationWizard(1, 9, b, clock())
	found, err := w.FilterMembers(context.Background(), "3333")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, int64(4), found[0].ID)

	require.NoError(t, w.SelectMember(3))
	require.NoError(t, w.Advance(context.Background()))
	assert.EqualValues(t, 1, b.memberCalls.Load())
}

func TestReservationUnknownMember(t *testing.T) {
	b := reservationFixture()
	w := NewReservationWizard(1, 9, b, clock())
	require.NoError(t, w.SelectMember(77))
	assert.True(t, IsValidation(w.Advance(context.Background())))
	assert.Equal(t, "SELECT_MEMBER", w.View().Step)
}

func TestReservationFullLecture(t *testing.T) {
	b := reservationFixture()
	b.lecture.ReservationCount = 10
	w := confirmStep(t, b)
	require.NoError(t, w.ChooseFree())
	assert.True(t, IsValidation(w.Advance(context.Background())))
	assert.Zero(t, b.createCalls.Load())
}

func TestReservationFailureStaysAtConfirm(t *testing.T) {
	b := reservationFixture()
	b.err = errors.New("conflict")
	w := confirmStep(t, b)
	require.NoError(t, w.ChooseTicket(100))
	assert.ErrorIs(t, w.Advance(context.Background()), ErrSubmitFailed)
	assert.Equal(t, "CONFIRM", w.View().Step)
	require.NoError(t, w.ChooseFree())
}

func TestSelectMemberResetsChoice(t *testing.T) {
	b := reservationFixture()
	w := confirmStep(t, b)
	require.NoError(t, w.ChooseFree())
	require.NoError(t, w.Back())
	require.NoError(t, w.SelectMember(4))
	assert.Equal(t, "UNSELECTED", w.View().Choice)
}

func TestRegistryOwnershipAndSweep(t *testing.T) {
	now := fixedNow
	r := NewRegistry[*IssuanceWizard](WithClock(func() time.Time { return now }))
	w := NewIssuanceWizard(1, 42, &fakeIssuance{}, clock())
	id := r.Add(5, w)

	got, err := r.Get(5, id)
	require.NoError(t, err)
	assert.Same(t, w, got)

	_, err = r.Get(6, id)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = r.Get(5, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Zero(t, r.Sweep(time.Hour))
	now = now.Add(2 * time.Hour)
	assert.Equal(t, 1, r.Sweep(time.Hour))
	assert.True(t, w.Closed())
	assert.Zero(t, r.Len())
}

func TestRegistryOpenPassesID(t *testing.T) {
	r := NewRegistry[*IssuanceWizard]()
	var seen string
	id := r.Open(5, func(id string) *IssuanceWizard {
		seen = id
		return NewIssuanceWizard(1, 42, &fakeIssuance{}, clock())
	})
	assert.Equal(t, id, seen)

	require.NoError(t, r.Remove(5, id))
	assert.ErrorIs(t, r.Remove(5, id), ErrNotFound)
}
