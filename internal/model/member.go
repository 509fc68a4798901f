package model

import "time"

// Member is a studio member as listed by the platform, including the
// member's issued tickets.
type Member struct {
	ID          int64          `json:"id"`
	Name        string         `json:"name"`
	Mobile      string         `json:"mobile"`
	CreatedDate time.Time      `json:"createdDate"`
	Tickets     []IssuedTicket `json:"ticketIssuances"`
}

// RemainingCnt sums the remaining uses across the member's tickets that
// are still current at now.
func (m Member) RemainingCnt(now time.Time) int {
	n := 0
	for _, t := range m.Tickets {
		if t.Current(now) {
			n += t.RemainingCnt
		}
	}
	return n
}

// RemainingDays is the longest remaining validity across current tickets.
func (m Member) RemainingDays(now time.Time) int {
	best := 0
	for _, t := range m.Tickets {
		if !t.Current(now) {
			continue
		}
		if d := t.RemainingDays(now); d > best {
			best = d
		}
	}
	return best
}

// ConsumableTickets returns the tickets that may back a reservation at the
// given time, in the platform's order.
func (m Member) ConsumableTickets(at time.Time) []IssuedTicket {
	out := make([]IssuedTicket, 0, len(m.Tickets))
	for _, t := range m.Tickets {
		if t.Consumable(at) {
			out = append(out, t)
		}
	}
	return out
}

// Lecture is one scheduled class occurrence.
type Lecture struct {
	ID               int64     `json:"id"`
	Title            string    `json:"title"`
	Room             string    `json:"room"`
	TeacherName      string    `json:"teacherName"`
	StartDate        time.Time `json:"startDate"`
	EndDate          time.Time `json:"endDate"`
	Capacity         int       `json:"maxReservationCnt"`
	ReservationCount int       `json:"reservationCnt"`
}

// Full reports whether the lecture has no free seat left. A zero capacity
// means unlimited.
func (l Lecture) Full() bool {
	return l.Capacity > 0 && l.ReservationCount >= l.Capacity
}
