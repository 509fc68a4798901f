package model

import "time"

// TicketKind distinguishes count-based passes from time-based passes.
type TicketKind string

const (
	TicketKindCount  TicketKind = "COUNT"  // a fixed number of uses
	TicketKindPeriod TicketKind = "PERIOD" // unlimited uses inside a date window
)

// LimitType is the cadence over which LimitCnt is enforced.
type LimitType string

const (
	LimitWeek  LimitType = "WEEK"
	LimitMonth LimitType = "MONTH"
	LimitNone  LimitType = "NONE"
)

// Valid reports whether l is one of the known limit types.
func (l LimitType) Valid() bool {
	switch l {
	case LimitWeek, LimitMonth, LimitNone:
		return true
	}
	return false
}

// TicketProduct is a purchasable pass template as returned by the platform.
// Operators create and edit products; issued tickets copy the policy values
// at issuance time so later edits never leak into existing grants.
//
// Fields:
//
//	ID              – platform identifier.
//	Name            – display name.
//	Kind            – COUNT or PERIOD.
//	Price           – base price before discount.
//	DiscountPercent – default discount offered when issuing.
//	SalesPrice      – price after the default discount (platform derived).
//	UsableCnt       – default number of uses.
//	UsableDays      – default validity window in days.
//	LimitType       – default usage cadence limit.
//	LimitCnt        – uses allowed per LimitType window.
//	IsDelete        – soft-delete / inactive flag.
type TicketProduct struct {
	ID              int64      `json:"id"`
	Name            string     `json:"name"`
	Kind            TicketKind `json:"type"`
	Price           int64      `json:"price"`
	DiscountPercent float64    `json:"discountValue"`
	SalesPrice      int64      `json:"salesPrice"`
	UsableCnt       int        `json:"totalUsableCnt"`
	UsableDays      int        `json:"usableDate"`
	LimitType       LimitType  `json:"limitType"`
	LimitCnt        int        `json:"limitCnt"`
	IsDelete        bool       `json:"isDelete"`
}

// IssuedTicket is a concrete grant of a ticket product to one member.
type IssuedTicket struct {
	ID           int64      `json:"id"`
	MemberID     int64      `json:"memberId"`
	ProductID    int64      `json:"wellnessTicketId"`
	Name         string     `json:"name"`
	Kind         TicketKind `json:"type"`
	StartDate    time.Time  `json:"startDate"`
	ExpireDate   time.Time  `json:"expireDate"`
	RemainingCnt int        `json:"remainingCnt"`
	LimitType    LimitType  `json:"limitType"`
	LimitCnt     int        `json:"limitCnt"`
	TotalPay     int64      `json:"totalPayValue"`
	UnpaidValue  int64      `json:"unpaidValue"`
	IsDelete     bool       `json:"isDelete"`
}

// Active reports whether the ticket has not been cancelled or consumed.
func (t IssuedTicket) Active() bool { return !t.IsDelete }

// Current reports whether the ticket is active and has not lapsed by now.
// A ticket without an expire date never lapses.
func (t IssuedTicket) Current(now time.Time) bool {
	if !t.Active() {
		return false
	}
	return t.ExpireDate.IsZero() || !now.After(EndOfDay(t.ExpireDate.In(now.Location())))
}

// RemainingDays is derived from the expire date; it is never stored.
// A ticket expiring later today still has one day left.
func (t IssuedTicket) RemainingDays(now time.Time) int {
	if t.ExpireDate.IsZero() {
		return 0
	}
	today := StartOfDay(now)
	last := StartOfDay(t.ExpireDate.In(now.Location()))
	if last.Before(today) {
		return 0
	}
	return daysBetween(today, last) + 1
}

// daysBetween counts calendar days from a to b, ignoring DST shifts.
func daysBetween(a, b time.Time) int {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	ua := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	ub := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)
	return int(ub.Sub(ua).Hours() / 24)
}

// Consumable reports whether a reservation at the given time may be backed
// by this ticket.
func (t IssuedTicket) Consumable(at time.Time) bool {
	if !t.Current(at) {
		return false
	}
	if !t.StartDate.IsZero() && at.Before(StartOfDay(t.StartDate.In(at.Location()))) {
		return false
	}
	if t.Kind == TicketKindCount && t.RemainingCnt <= 0 {
		return false
	}
	return true
}

// StartOfDay truncates t to midnight in its own location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// EndOfDay returns the last millisecond of t's day in its own location.
func EndOfDay(t time.Time) time.Time {
	return StartOfDay(t).AddDate(0, 0, 1).Add(-time.Millisecond)
}
