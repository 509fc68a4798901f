// Package queue defines the audit message exchanged over the broker and the
// background consumer that appends it to the audit log.
package queue

import "time"

// AuditQueueName is the default durable queue for audit events.
const AuditQueueName = "wellness_audit"

// Audit actions.
const (
	ActionTicketIssued        = "ticket.issued"
	ActionIssuanceUpdated     = "issuance.updated"
	ActionReservationCreated  = "reservation.created"
	ActionReservationCanceled = "reservation.cancelled"
)

// AuditEvent is published after every successful platform mutation. It
// carries enough context for the audit log without calling the platform
// again.
type AuditEvent struct {
	Action     string    `json:"action"`
	CenterID   int64     `json:"center_id"`
	OperatorID int64     `json:"operator_id"`
	WizardID   string    `json:"wizard_id,omitempty"`
	JournalID  int64     `json:"journal_id,omitempty"`
	MemberID   int64     `json:"member_id,omitempty"`
	SubjectID  int64     `json:"subject_id,omitempty"`
	Amount     int64     `json:"amount,omitempty"`
	Unpaid     int64     `json:"unpaid,omitempty"`
	Free       bool      `json:"free,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}
