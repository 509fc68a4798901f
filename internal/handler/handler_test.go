package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/wellness-admin/internal/middleware"
	"github.com/iliyamo/wellness-admin/internal/model"
	"github.com/iliyamo/wellness-admin/internal/platform"
	"github.com/iliyamo/wellness-admin/internal/service"
	"github.com/iliyamo/wellness-admin/internal/session"
	"github.com/iliyamo/wellness-admin/internal/utils"
	"github.com/iliyamo/wellness-admin/internal/wizard"
)

const secret = "test-secret"

type stubPlatform struct {
	service.Platform

	mu          sync.Mutex
	products    []model.TicketProduct
	members     []model.Member
	lecture     model.Lecture
	reservation model.Reservation
	issued      []model.IssuanceRequest
	reserved    []model.ReservationRequest
	cancelled   []int64
	updates     []model.IssuanceUpdate
	loadErr     error
	submitErr   error
}

func (s *stubPlatform) ListTicketProducts(context.Context, int64) ([]model.TicketProduct, error) {
	return s.products, s.loadErr
}

func (s *stubPlatform) GetTicketProduct(_ context.Context, _, id int64) (model.TicketProduct, error) {
	for _, p := range s.products {
		if p.ID == id {
			return p, nil
		}
	}
	return model.TicketProduct{}, &platform.APIError{Status: http.StatusNotFound, Message: "no product"}
}

func (s *stubPlatform) CreateIssuance(_ context.Context, _ int64, req model.IssuanceRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.issued = append(s.issued, req)
	return s.submitErr
}

func (s *stubPlatform) ListMembers(context.Context, int64) ([]model.Member, error) {
	return s.members, s.loadErr
}

func (s *stubPlatform) GetLecture(context.Context, int64, int64) (model.Lecture, error) {
	return s.lecture, nil
}

func (s *stubPlatform) CreateReservation(_ context.Context, req model.ReservationRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reserved = append(s.reserved, req)
	return s.submitErr
}

func (s *stubPlatform) GetReservation(context.Context, int64, int64) (model.Reservation, error) {
	return s.reservation, nil
}

func (s *stubPlatform) CancelReservation(_ context.Context, _, id int64) error {
	s.cancelled = append(s.cancelled, id)
	return s.submitErr
}

func (s *stubPlatform) UpdateIssuance(_ context.Context, _ int64, upd model.IssuanceUpdate) error {
	s.updates = append(s.updates, upd)
	return s.submitErr
}

type harness struct {
	e     *echo.Echo
	p     *stubPlatform
	iw    *wizard.Registry[*wizard.IssuanceWizard]
	rw    *wizard.Registry[*wizard.ReservationWizard]
	token string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	store := session.NewMemoryStore()
	exp := time.Now().Add(time.Hour)
	require.NoError(t, store.Save(context.Background(), model.Session{
		ID: "s1", Operator: model.Operator{ID: 5, Role: "ADMIN"}, PlatformToken: "ptok", ExpiresAt: exp,
	}))
	at, err := utils.NewAccessToken(secret, utils.Claims{OperatorID: 5, SessionID: "s1", Role: "ADMIN"}, exp)
	require.NoError(t, err)

	h := &harness{
		e:     echo.New(),
		p:     &stubPlatform{},
		iw:    wizard.NewRegistry[*wizard.IssuanceWizard](),
		rw:    wizard.NewRegistry[*wizard.ReservationWizard](),
		token: at.Token,
	}
	wf := service.NewWorkflow(service.Deps{
		Dial:     func(string) service.Platform { return h.p },
		Location: time.UTC,
	})
	h.e.Validator = NewValidator()

	g := h.e.Group("/v1", middleware.JWTAuth(secret, store), middleware.RequireRole("ADMIN"))
	ah := NewAdminHandler(wf, nil)
	g.GET("/centers/:centerId/tickets", ah.Tickets)
	g.GET("/centers/:centerId/members", ah.Members)
	g.DELETE("/centers/:centerId/reservations/:id", ah.CancelReservation)
	g.PUT("/centers/:centerId/issuances/:id", ah.UpdateIssuance)
	g.GET("/centers/:centerId/journal", ah.Journal)
	g.GET("/centers/:centerId/journal/:id", ah.JournalEntry)

	iw := NewIssuanceWizardHandler(wf, h.iw, nil)
	g.POST("/centers/:centerId/members/:memberId/issuance-wizards", iw.Open)
	g.GET("/issuance-wizards/:id", iw.Get)
	g.DELETE("/issuance-wizards/:id", iw.Close)
	g.POST("/issuance-wizards/:id/product", iw.SelectProduct)
	g.POST("/issuance-wizards/:id/advance", iw.Advance)
	g.PATCH("/issuance-wizards/:id/configuration", iw.Configure)
	g.POST("/issuance-wizards/:id/issue", iw.Issue)

	rw := NewReservationWizardHandler(wf, h.rw, nil)
	g.POST("/centers/:centerId/lectures/:lectureId/reservation-wizards", rw.Open)
	g.GET("/reservation-wizards/:id/members", rw.Members)
	g.POST("/reservation-wizards/:id/member", rw.SelectMember)
	g.POST("/reservation-wizards/:id/ticket", rw.ChooseTicket)
	g.POST("/reservation-wizards/:id/advance", rw.Advance)
	return h
}

func (h *harness) do(method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	req.Header.Set("Authorization", "Bearer "+h.token)
	rec := httptest.NewRecorder()
	h.e.ServeHTTP(rec, req)
	return rec
}

func decodeMap(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m))
	return m
}

var product = model.TicketProduct{
	ID: 7, Name: "10 sessions", Kind: model.TicketKindCount,
	Price: 100000, DiscountPercent: 15, UsableCnt: 10, UsableDays: 30, LimitType: model.LimitNone,
}

func (h *harness) openIssuance(t *testing.T) string {
	t.Helper()
	rec := h.do(http.MethodPost, "/v1/centers/3/members/42/issuance-wizards", "")
	require.Equal(t, http.StatusCreated, rec.Code)
	return decodeMap(t, rec)["id"].(string)
}

func TestIssuanceWizardEndToEnd(t *testing.T) {
	h := newHarness(t)
	h.p.products = []model.TicketProduct{product}
	id := h.openIssuance(t)
	base := "/v1/issuance-wizards/" + id

	rec := h.do(http.MethodPost, base+"/advance", "")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = h.do(http.MethodPost, base+"/product", `{"product_id":7}`)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = h.do(http.MethodPost, base+"/advance", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = h.do(http.MethodPost, base+"/issue", `{}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "confirmation_required", decodeMap(t, rec)["error"])
	assert.Empty(t, h.p.issued)

	rec = h.do(http.MethodPatch, base+"/configuration", `{"card_amount":50000,"cash_amount":10000}`)
	require.Equal(t, http.StatusOK, rec.Code)
	bal := decodeMap(t, rec)["wizard"].(map[string]any)["balance"].(map[string]any)
	assert.EqualValues(t, 25000, bal["unpaid_amount"])

	rec = h.do(http.MethodPost, base+"/issue", `{}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decodeMap(t, rec)["refresh"])
	require.Len(t, h.p.issued, 1)
	assert.Equal(t, int64(42), h.p.issued[0].MemberID)
	assert.Equal(t, int64(25000), h.p.issued[0].UnpaidValue)

	assert.Zero(t, h.iw.Len())
	rec = h.do(http.MethodGet, base, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestIssuanceSelectUnknownProduct(t *testing.T) {
	h := newHarness(t)
	id := h.openIssuance(t)
	rec := h.do(http.MethodPost, "/v1/issuance-wizards/"+id+"/product", `{"product_id":99}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "could not load", decodeMap(t, rec)["error"])
}

func TestIssuanceBodyValidation(t *testing.T) {
	h := newHarness(t)
	id := h.openIssuance(t)
	rec := h.do(http.MethodPost, "/v1/issuance-wizards/"+id+"/product", `{"product_id":0}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = h.do(http.MethodPatch, "/v1/issuance-wizards/"+id+"/configuration", `{"limit_type":"DAY"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestIssuanceConfigureRejectedAtomically(t *testing.T) {
	h := newHarness(t)
	h.p.products = []model.TicketProduct{product}
	id := h.openIssuance(t)
	base := "/v1/issuance-wizards/" + id
	require.Equal(t, http.StatusOK, h.do(http.MethodPost, base+"/product", `{"product_id":7}`).Code)
	require.Equal(t, http.StatusOK, h.do(http.MethodPost, base+"/advance", "").Code)

	rec := h.do(http.MethodPatch, base+"/configuration", `{"cash_amount":10000,"discount_percent":150}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	w, err := h.iw.Get(5, id)
	require.NoError(t, err)
	assert.Zero(t, w.View().Payment.CashAmount)
}

func TestIssuanceSubmitFailureKeepsWizard(t *testing.T) {
	h := newHarness(t)
	h.p.products = []model.TicketProduct{product}
	h.p.submitErr = &platform.APIError{Status: http.StatusInternalServerError, Message: "boom"}
	id := h.openIssuance(t)
	base := "/v1/issuance-wizards/" + id
	require.Equal(t, http.StatusOK, h.do(http.MethodPost, base+"/product", `{"product_id":7}`).Code)
	require.Equal(t, http.StatusOK, h.do(http.MethodPost, base+"/advance", "").Code)

	rec := h.do(http.MethodPost, base+"/issue", `{"confirmed":true}`)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, 1, h.iw.Len())
	assert.Equal(t, http.StatusOK, h.do(http.MethodGet, base, "").Code)
}

func TestWizardOfAnotherOperatorIsForbidden(t *testing.T) {
	h := newHarness(t)
	id := h.iw.Add(99, wizard.NewIssuanceWizard(3, 42, nil))
	rec := h.do(http.MethodGet, "/v1/issuance-wizards/"+id, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestCloseIssuanceWizard(t *testing.T) {
	h := newHarness(t)
	id := h.openIssuance(t)
	assert.Equal(t, http.StatusNoContent, h.do(http.MethodDelete, "/v1/issuance-wizards/"+id, "").Code)
	assert.Equal(t, http.StatusNotFound, h.do(http.MethodDelete, "/v1/issuance-wizards/"+id, "").Code)
}

func TestReservationWizardFreeReservation(t *testing.T) {
	h := newHarness(t)
	now := time.Now()
	h.p.members = []model.Member{
		{ID: 4, Name: "Kim Minji", Mobile: "010-1111-2222", Tickets: []model.IssuedTicket{
			{ID: 100, Kind: model.TicketKindCount, StartDate: now.AddDate(0, 0, -1), ExpireDate: now.AddDate(0, 1, 0), RemainingCnt: 3},
		}},
		{ID: 5, Name: "Lee Jiwon", Mobile: "010-3333-4444"},
	}
	h.p.lecture = model.Lecture{ID: 9, Capacity: 10}

	rec := h.do(http.MethodPost, "/v1/centers/3/lectures/9/reservation-wizards", "")
	require.Equal(t, http.StatusCreated, rec.Code)
	base := "/v1/reservation-wizards/" + decodeMap(t, rec)["id"].(string)

	rec = h.do(http.MethodGet, base+"/members?q=minji", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var ms []model.Member
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ms))
	require.Len(t, ms, 1)

	require.Equal(t, http.StatusOK, h.do(http.MethodPost, base+"/member", `{"member_id":4}`).Code)
	rec = h.do(http.MethodPost, base+"/advance", "")
	require.Equal(t, http.StatusOK, rec.Code)
	tickets := decodeMap(t, rec)["wizard"].(map[string]any)["consumable_tickets"].([]any)
	assert.Len(t, tickets, 1)

	rec = h.do(http.MethodPost, base+"/advance", "")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	assert.Equal(t, http.StatusBadRequest, h.do(http.MethodPost, base+"/ticket", `{}`).Code)
	require.Equal(t, http.StatusOK, h.do(http.MethodPost, base+"/ticket", `{"free":true}`).Code)

	rec = h.do(http.MethodPost, base+"/advance", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decodeMap(t, rec)["reserved"])
	require.Len(t, h.p.reserved, 1)
	assert.Nil(t, h.p.reserved[0].TicketIssuanceID)
	assert.Zero(t, h.rw.Len())
}

func TestCancelReservationConflict(t *testing.T) {
	h := newHarness(t)
	h.p.reservation = model.Reservation{ID: 11, Status: model.StatusMemberCancel}
	rec := h.do(http.MethodDelete, "/v1/centers/3/reservations/11", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Empty(t, h.p.cancelled)

	h.p.reservation.Status = model.StatusAdminReservation
	assert.Equal(t, http.StatusNoContent, h.do(http.MethodDelete, "/v1/centers/3/reservations/11", "").Code)
	assert.Equal(t, []int64{11}, h.p.cancelled)
}

func TestMembersQueryParams(t *testing.T) {
	h := newHarness(t)
	now := time.Now()
	h.p.members = []model.Member{
		{ID: 1, Name: "A", Tickets: []model.IssuedTicket{{ID: 1, StartDate: now.AddDate(0, 0, -1), ExpireDate: now.AddDate(0, 1, 0), RemainingCnt: 5}}},
		{ID: 2, Name: "B"},
	}
	rec := h.do(http.MethodGet, "/v1/centers/3/members?remaining_cnt_min=1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var rows []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rows))
	require.Len(t, rows, 1)
	assert.EqualValues(t, 5, rows[0]["remainingCnt"])

	assert.Equal(t, http.StatusBadRequest, h.do(http.MethodGet, "/v1/centers/3/members?remaining_cnt_min=x", "").Code)
	assert.Equal(t, http.StatusBadRequest, h.do(http.MethodGet, "/v1/centers/3/members?created_from=2024/01/01", "").Code)
}

func TestLoadErrorsMapToStatus(t *testing.T) {
	h := newHarness(t)
	h.p.loadErr = &platform.APIError{Status: http.StatusUnauthorized, Message: "expired"}
	assert.Equal(t, http.StatusUnauthorized, h.do(http.MethodGet, "/v1/centers/3/tickets", "").Code)

	h.p.loadErr = &platform.APIError{Status: http.StatusBadGateway, Message: "down"}
	assert.Equal(t, http.StatusBadGateway, h.do(http.MethodGet, "/v1/centers/3/tickets", "").Code)

	assert.Equal(t, http.StatusBadRequest, h.do(http.MethodGet, "/v1/centers/abc/tickets", "").Code)
}

func TestJournalWithoutDatabase(t *testing.T) {
	h := newHarness(t)
	rec := h.do(http.MethodGet, "/v1/centers/3/journal?limit=5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
	assert.Equal(t, http.StatusBadRequest, h.do(http.MethodGet, "/v1/centers/3/journal?limit=x", "").Code)
}

func TestUpdateIssuanceRequiresDates(t *testing.T) {
	h := newHarness(t)
	rec := h.do(http.MethodPut, "/v1/centers/3/issuances/5", `{"remaining_cnt":3,"limit_type":"NONE"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, h.p.updates)

	rec = h.do(http.MethodPut, "/v1/centers/3/issuances/5",
		`{"start_date":"2024-05-01T00:00:00Z","expire_date":"2024-06-01T00:00:00Z","remaining_cnt":3,"limit_type":"NONE"}`)
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Len(t, h.p.updates, 1)
	assert.Equal(t, int64(5), h.p.updates[0].ID)
	assert.True(t, h.p.updates[0].ExpireDate.Time().Equal(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)))
}

func TestJournalCenterAccess(t *testing.T) {
	h := newHarness(t)
	assert.Equal(t, http.StatusNotFound, h.do(http.MethodGet, "/v1/centers/3/journal/1", "").Code)
	assert.Equal(t, http.StatusBadRequest, h.do(http.MethodGet, "/v1/centers/3/journal/x", "").Code)

	h.p.loadErr = &platform.APIError{Status: http.StatusForbidden, Message: "other center"}
	rec := h.do(http.MethodGet, "/v1/centers/8/journal", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "center not accessible", decodeMap(t, rec)["error"])
	assert.Equal(t, http.StatusForbidden, h.do(http.MethodGet, "/v1/centers/8/journal/1", "").Code)

	h.p.loadErr = &platform.APIError{Status: http.StatusUnauthorized, Message: "expired"}
	assert.Equal(t, http.StatusUnauthorized, h.do(http.MethodGet, "/v1/centers/8/journal", "").Code)
}

type fakeSessions struct {
	res     service.LoginResult
	err     error
	deleted []string
}

func (f *fakeSessions) Login(context.Context, string, string) (service.LoginResult, error) {
	return f.res, f.err
}

func (f *fakeSessions) Logout(_ context.Context, id string) error {
	f.deleted = append(f.deleted, id)
	return nil
}

func TestLoginAndLogout(t *testing.T) {
	fs := &fakeSessions{res: service.LoginResult{AccessToken: "tok"}}
	a := NewAuthHandler(fs, secret, nil)
	e := echo.New()
	e.Validator = NewValidator()
	e.POST("/login", a.Login)
	e.POST("/logout", a.Logout)

	post := func(path, body, auth string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		if auth != "" {
			req.Header.Set("Authorization", auth)
		}
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusBadRequest, post("/login", `{"email":"nope","password":"x"}`, "").Code)
	rec := post("/login", `{"email":"a@b.co","password":"x"}`, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "tok", decodeMap(t, rec)["access_token"])

	fs.err = service.ErrRoleNotAllowed
	assert.Equal(t, http.StatusForbidden, post("/login", `{"email":"a@b.co","password":"x"}`, "").Code)
	fs.err = &platform.APIError{Status: http.StatusUnauthorized}
	assert.Equal(t, http.StatusUnauthorized, post("/login", `{"email":"a@b.co","password":"x"}`, "").Code)

	assert.Equal(t, http.StatusUnauthorized, post("/logout", ``, "").Code)
	at, err := utils.NewAccessToken(secret, utils.Claims{OperatorID: 5, SessionID: "s9", Role: "ADMIN"}, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, post("/logout", ``, "Bearer "+at.Token).Code)
	assert.Equal(t, []string{"s9"}, fs.deleted)
}
