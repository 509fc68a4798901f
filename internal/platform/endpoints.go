package platform

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/tidwall/gjson"

	"github.com/iliyamo/wellness-admin/internal/model"
)

// LoginResult is the operator identity and token returned by Login.
type LoginResult struct {
	Token    string
	Operator model.Operator
}

// Login exchanges operator credentials for a platform access token.
func (c *Client) Login(ctx context.Context, email, password string) (LoginResult, error) {
	raw, err := c.do(ctx, http.MethodPost, "/v1/admin/login", nil, map[string]string{
		"email":    email,
		"password": password,
	})
	if err != nil {
		return LoginResult{}, err
	}
	p := payload(raw)
	token := firstString(p, "accessToken", "token", "access_token")
	if token == "" {
		return LoginResult{}, errors.New("platform: login response carries no token")
	}
	admin := p
	if a := p.Get("admin"); a.IsObject() {
		admin = a
	}
	role := firstString(admin, "role")
	if role == "" {
		role = "ADMIN"
	}
	return LoginResult{
		Token: token,
		Operator: model.Operator{
			ID:    admin.Get("id").Int(),
			Email: firstString(admin, "email"),
			Name:  firstString(admin, "name"),
			Role:  role,
		},
	}, nil
}

func firstString(r gjson.Result, paths ...string) string {
	for _, p := range paths {
		if v := r.Get(p); v.Exists() && v.String() != "" {
			return v.String()
		}
	}
	return ""
}

// TokenExpiry reads the exp claim of a platform token without verifying
// its signature. ok is false when the token carries no expiry.
func TokenExpiry(token string) (exp time.Time, ok bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	d, err := claims.GetExpirationTime()
	if err != nil || d == nil {
		return time.Time{}, false
	}
	return d.Time, true
}

func (c *Client) ListTicketProducts(ctx context.Context, centerID int64) ([]model.TicketProduct, error) {
	raw, err := c.do(ctx, http.MethodGet, centerPath("/v1/admin/wellness-ticket", centerID), nil, nil)
	if err != nil {
		return nil, err
	}
	var out []model.TicketProduct
	if err := decode(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetTicketProduct(ctx context.Context, centerID, productID int64) (model.TicketProduct, error) {
	var out model.TicketProduct
	raw, err := c.do(ctx, http.MethodGet, centerPath("/v1/admin/wellness-ticket/detail", centerID), idQuery(productID), nil)
	if err != nil {
		return out, err
	}
	err = decode(raw, &out)
	return out, err
}

// CreateIssuance creates one ticket issuance.
func (c *Client) CreateIssuance(ctx context.Context, centerID int64, req model.IssuanceRequest) error {
	raw, err := c.do(ctx, http.MethodPost, centerPath("/v1/admin/wellness-ticket-issuance", centerID), nil, req)
	if err != nil {
		return err
	}
	return succeeded(raw)
}

func (c *Client) GetIssuanceDetail(ctx context.Context, centerID, issuanceID int64) (model.IssuanceDetail, error) {
	var out model.IssuanceDetail
	raw, err := c.do(ctx, http.MethodGet, centerPath("/v1/admin/wellness-ticket-issuance/update/detail", centerID), idQuery(issuanceID), nil)
	if err != nil {
		return out, err
	}
	err = decode(raw, &out)
	return out, err
}

func (c *Client) UpdateIssuance(ctx context.Context, centerID int64, upd model.IssuanceUpdate) error {
	raw, err := c.do(ctx, http.MethodPut, centerPath("/v1/admin/wellness-ticket-issuance/update", centerID), nil, upd)
	if err != nil {
		return err
	}
	return succeeded(raw)
}

// ListMembers returns every member of the center with their issued tickets.
func (c *Client) ListMembers(ctx context.Context, centerID int64) ([]model.Member, error) {
	raw, err := c.do(ctx, http.MethodGet, centerPath("/v1/admin/member/all", centerID), nil, nil)
	if err != nil {
		return nil, err
	}
	var out []model.Member
	if err := decode(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetLecture(ctx context.Context, centerID, lectureID int64) (model.Lecture, error) {
	var out model.Lecture
	raw, err := c.do(ctx, http.MethodGet, centerPath("/v1/admin/lecture/detail", centerID), idQuery(lectureID), nil)
	if err != nil {
		return out, err
	}
	err = decode(raw, &out)
	return out, err
}

// ListLectures returns the lectures starting inside [from, to].
func (c *Client) ListLectures(ctx context.Context, centerID int64, from, to time.Time) ([]model.Lecture, error) {
	q := url.Values{
		"startDate": []string{model.MinuteTime(from).String()},
		"endDate":   []string{model.MinuteTime(to).String()},
	}
	raw, err := c.do(ctx, http.MethodGet, centerPath("/v1/admin/lecture", centerID), q, nil)
	if err != nil {
		return nil, err
	}
	var out []model.Lecture
	if err := decode(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ReservationQuery narrows ListReservations to one lecture or a date range.
type ReservationQuery struct {
	LectureID int64
	From, To  time.Time
}

func (q ReservationQuery) values() url.Values {
	v := url.Values{}
	if q.LectureID > 0 {
		v.Set("lectureId", fmt.Sprint(q.LectureID))
	}
	if !q.From.IsZero() {
		v.Set("startDate", model.MinuteTime(q.From).String())
	}
	if !q.To.IsZero() {
		v.Set("endDate", model.MinuteTime(q.To).String())
	}
	return v
}

func (c *Client) ListReservations(ctx context.Context, centerID int64, q ReservationQuery) ([]model.Reservation, error) {
	raw, err := c.do(ctx, http.MethodGet, centerPath("/v1/admin/reservation", centerID), q.values(), nil)
	if err != nil {
		return nil, err
	}
	var out []model.Reservation
	if err := decode(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetReservation(ctx context.Context, centerID, reservationID int64) (model.Reservation, error) {
	var out model.Reservation
	raw, err := c.do(ctx, http.MethodGet, centerPath("/v1/admin/reservation/detail", centerID), idQuery(reservationID), nil)
	if err != nil {
		return out, err
	}
	err = decode(raw, &out)
	return out, err
}

// CreateReservation books req.MemberID into req.LectureID. A nil ticket id
// is left out of the body.
func (c *Client) CreateReservation(ctx context.Context, req model.ReservationRequest) error {
	raw, err := c.do(ctx, http.MethodPost, centerPath("/v1/admin/reservation", req.CenterID), nil, req)
	if err != nil {
		return err
	}
	return succeeded(raw)
}

func (c *Client) CancelReservation(ctx context.Context, centerID, reservationID int64) error {
	raw, err := c.do(ctx, http.MethodPut, centerPath("/v1/admin/reservation/cancel", centerID), idQuery(reservationID), nil)
	if err != nil {
		return err
	}
	return succeeded(raw)
}
