package filter

import (
	"time"

	"github.com/iliyamo/wellness-admin/internal/model"
)

// MemberCriteria is the conjunction of the member list's optional filters.
type MemberCriteria struct {
	RemainingCnt  IntRange
	RemainingDays IntRange
	Search        string
	Created       DateRange
}

// Members filters source by c. now anchors the derived remaining-days value.
func Members(source []model.Member, c MemberCriteria, now time.Time) []model.Member {
	preds := []Predicate[model.Member]{}
	if c.RemainingCnt.Min != nil || c.RemainingCnt.Max != nil {
		preds = append(preds, func(m model.Member) bool { return c.RemainingCnt.Contains(m.RemainingCnt(now)) })
	}
	if c.RemainingDays.Min != nil || c.RemainingDays.Max != nil {
		preds = append(preds, func(m model.Member) bool { return c.RemainingDays.Contains(m.RemainingDays(now)) })
	}
	if c.Search != "" {
		preds = append(preds, func(m model.Member) bool { return MatchText(c.Search, m.Name, m.Mobile) })
	}
	if c.Created.From != nil || c.Created.To != nil {
		preds = append(preds, func(m model.Member) bool { return c.Created.Contains(m.CreatedDate) })
	}
	return Apply(source, preds...)
}

// SearchMembers is the member picker's live search on name and mobile.
func SearchMembers(source []model.Member, search string) []model.Member {
	return Apply(source, func(m model.Member) bool { return MatchText(search, m.Name, m.Mobile) })
}

// ActiveProducts hides deleted products from the product picker.
func ActiveProducts(source []model.TicketProduct) []model.TicketProduct {
	return Apply(source, func(p model.TicketProduct) bool { return !p.IsDelete })
}

// LectureView is a lecture with the number of live reservations merged in.
type LectureView struct {
	model.Lecture
	Reservations int `json:"reservations"`
}

// MergeReservationCounts attaches the count of non-cancelled reservations to
// each lecture, keeping the lecture order.
func MergeReservationCounts(lectures []model.Lecture, reservations []model.Reservation) []LectureView {
	counts := make(map[int64]int, len(lectures))
	for _, r := range reservations {
		if r.Status.IsCancelled() {
			continue
		}
		counts[r.LectureID]++
	}
	out := make([]LectureView, 0, len(lectures))
	for _, l := range lectures {
		out = append(out, LectureView{Lecture: l, Reservations: counts[l.ID]})
	}
	return out
}
