package model

import "time"

// ReservationStatus is either an origin state, a cancellation state or a
// terminal attendance state.
type ReservationStatus string

const (
	StatusAdminReservation   ReservationStatus = "ADMIN_RESERVATION"
	StatusOnSiteReservation  ReservationStatus = "ON_SITE_RESERVATION"
	StatusAppReservation     ReservationStatus = "APP_RESERVATION"
	StatusAppPaidReservation ReservationStatus = "APP_PAID_RESERVATION"

	StatusMemberCancel       ReservationStatus = "MEMBER_CANCEL"
	StatusMemberRefundCancel ReservationStatus = "MEMBER_REFUND_CANCEL"
	StatusAdminCancel        ReservationStatus = "ADMIN_CANCEL"

	StatusCheckIn ReservationStatus = "CHECK_IN"
	StatusAbsent  ReservationStatus = "ABSENT"
)

// IsCancelled reports whether s is one of the cancellation states.
func (s ReservationStatus) IsCancelled() bool {
	switch s {
	case StatusMemberCancel, StatusMemberRefundCancel, StatusAdminCancel:
		return true
	}
	return false
}

// Reservation records a member's seat in a lecture. TicketIssuanceID is nil
// for a free reservation that consumes no ticket.
type Reservation struct {
	ID               int64             `json:"id"`
	CenterID         int64             `json:"centerId"`
	MemberID         int64             `json:"memberId"`
	MemberName       string            `json:"memberName"`
	LectureID        int64             `json:"lectureId"`
	TicketIssuanceID *int64            `json:"ticketIssuanceId,omitempty"`
	Status           ReservationStatus `json:"status"`
	CreatedDate      time.Time         `json:"createdDate"`
}

// Free reports whether the reservation consumes no ticket.
func (r Reservation) Free() bool { return r.TicketIssuanceID == nil }

// Cancellable reports whether the cancel action should be offered.
func (r Reservation) Cancellable() bool { return !r.Status.IsCancelled() }

// ReservationRequest is the reservation creation payload. A nil
// TicketIssuanceID is omitted from the wire body entirely.
type ReservationRequest struct {
	CenterID         int64  `json:"centerId"`
	MemberID         int64  `json:"memberId"`
	LectureID        int64  `json:"lectureId"`
	TicketIssuanceID *int64 `json:"ticketIssuanceId,omitempty"`
}
