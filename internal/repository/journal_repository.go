package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// SubmissionKind names the platform mutation a journal entry records.
type SubmissionKind string

const (
	KindIssuance          SubmissionKind = "ISSUANCE"
	KindIssuanceUpdate    SubmissionKind = "ISSUANCE_UPDATE"
	KindReservation       SubmissionKind = "RESERVATION"
	KindReservationCancel SubmissionKind = "RESERVATION_CANCEL"
)

// SubmissionStatus is the lifecycle of an entry. PENDING is written before
// the platform call; the other states are terminal.
type SubmissionStatus string

const (
	StatusPending   SubmissionStatus = "PENDING"
	StatusSucceeded SubmissionStatus = "SUCCEEDED"
	StatusFailed    SubmissionStatus = "FAILED"
	StatusAbandoned SubmissionStatus = "ABANDONED"
)

// Submission mirrors the submissions table.
//
// Fields:
//
//	ID         – auto increment key.
//	Kind       – which platform mutation was attempted.
//	CenterID   – studio the call targeted.
//	OperatorID – operator who triggered it.
//	WizardID   – registry id of the wizard, empty for direct actions.
//	SubjectID  – member id for issuances and reservations, reservation or
//	             issuance id for cancels and updates.
//	Payload    – the request body sent to the platform.
//	Status     – PENDING until Finish or the stale sweep runs.
//	Error      – failure message for FAILED entries.
type Submission struct {
	ID         int64            `db:"id" json:"id"`
	Kind       SubmissionKind   `db:"kind" json:"kind"`
	CenterID   int64            `db:"center_id" json:"center_id"`
	OperatorID int64            `db:"operator_id" json:"operator_id"`
	WizardID   sql.NullString   `db:"wizard_id" json:"-"`
	SubjectID  int64            `db:"subject_id" json:"subject_id"`
	Payload    json.RawMessage  `db:"payload" json:"payload"`
	Status     SubmissionStatus `db:"status" json:"status"`
	Error      sql.NullString   `db:"error" json:"-"`
	CreatedAt  time.Time        `db:"created_at" json:"created_at"`
	FinishedAt sql.NullTime     `db:"finished_at" json:"-"`
}

// JournalRepo records submissions in MySQL.
type JournalRepo struct {
	db *sqlx.DB
}

func NewJournalRepo(db *sqlx.DB) *JournalRepo { return &JournalRepo{db: db} }

// Begin inserts a PENDING entry and fills s.ID. payload is marshalled as
// the stored request body.
func (r *JournalRepo) Begin(ctx context.Context, s *Submission, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("journal: encode payload: %w", err)
	}
	s.Payload = body
	s.Status = StatusPending
	const q = `INSERT INTO submissions (kind, center_id, operator_id, wizard_id, subject_id, payload, status)
VALUES (?, ?, ?, ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, q, s.Kind, s.CenterID, s.OperatorID, s.WizardID, s.SubjectID, string(body), s.Status)
	if err != nil {
		return fmt.Errorf("journal: insert: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("journal: insert id: %w", err)
	}
	s.ID = id
	return nil
}

// Finish moves a PENDING entry to SUCCEEDED, or FAILED when callErr is
// non-nil. ErrConflict means the entry was no longer pending.
func (r *JournalRepo) Finish(ctx context.Context, id int64, callErr error) error {
	status := StatusSucceeded
	var msg sql.NullString
	if callErr != nil {
		status = StatusFailed
		msg = sql.NullString{String: callErr.Error(), Valid: true}
	}
	const q = `UPDATE submissions SET status = ?, error = ?, finished_at = ? WHERE id = ? AND status = 'PENDING'`
	res, err := r.db.ExecContext(ctx, q, status, msg, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("journal: finish: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("journal: finish: %w", err)
	}
	if n == 0 {
		return ErrConflict
	}
	return nil
}

// Get loads one entry.
func (r *JournalRepo) Get(ctx context.Context, id int64) (Submission, error) {
	var s Submission
	const q = `SELECT id, kind, center_id, operator_id, wizard_id, subject_id, payload, status, error, created_at, finished_at
FROM submissions WHERE id = ?`
	if err := r.db.GetContext(ctx, &s, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Submission{}, ErrNotFound
		}
		return Submission{}, fmt.Errorf("journal: get: %w", err)
	}
	return s, nil
}

// ListRecent returns the newest entries of a center, newest first.
func (r *JournalRepo) ListRecent(ctx context.Context, centerID int64, limit int) ([]Submission, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	const q = `SELECT id, kind, center_id, operator_id, wizard_id, subject_id, payload, status, error, created_at, finished_at
FROM submissions WHERE center_id = ? ORDER BY created_at DESC, id DESC LIMIT ?`
	out := []Submission{}
	if err := r.db.SelectContext(ctx, &out, q, centerID, limit); err != nil {
		return nil, fmt.Errorf("journal: list: %w", err)
	}
	return out, nil
}

// AbandonStale marks entries still PENDING before cutoff as ABANDONED. It
// covers calls whose gateway process died before Finish ran.
func (r *JournalRepo) AbandonStale(ctx context.Context, cutoff time.Time) (int64, error) {
	const q = `UPDATE submissions SET status = 'ABANDONED', finished_at = ? WHERE status = 'PENDING' AND created_at < ?`
	res, err := r.db.ExecContext(ctx, q, time.Now().UTC(), cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("journal: abandon: %w", err)
	}
	return res.RowsAffected()
}

// View is the JSON shape of an entry for the journal endpoint.
type View struct {
	Submission
	WizardID   string     `json:"wizard_id,omitempty"`
	Error      string     `json:"error,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// Views flattens the nullable columns for rendering.
func Views(in []Submission) []View {
	out := make([]View, 0, len(in))
	for _, s := range in {
		v := View{Submission: s, WizardID: s.WizardID.String, Error: s.Error.String}
		if s.FinishedAt.Valid {
			t := s.FinishedAt.Time
			v.FinishedAt = &t
		}
		out = append(out, v)
	}
	return out
}
