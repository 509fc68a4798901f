// Package service binds the wizards and list views to the platform client.
// Every mutating call goes through one path: journal entry, platform call,
// metrics, cache invalidation for the center, audit event.
package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/iliyamo/wellness-admin/internal/filter"
	"github.com/iliyamo/wellness-admin/internal/metrics"
	"github.com/iliyamo/wellness-admin/internal/model"
	"github.com/iliyamo/wellness-admin/internal/platform"
	"github.com/iliyamo/wellness-admin/internal/queue"
	"github.com/iliyamo/wellness-admin/internal/repository"
)

var (
	// ErrAlreadyCancelled is returned when cancelling a reservation whose
	// status is already a cancellation state.
	ErrAlreadyCancelled = errors.New("reservation already cancelled")
	// ErrInvalidUpdate is returned for an issuance correction that fails
	// local checks.
	ErrInvalidUpdate = errors.New("invalid issuance update")
	// ErrCenterAccess wraps the platform's answer when the operator's
	// session cannot read a center.
	ErrCenterAccess = errors.New("center not accessible")
)

// Platform is the subset of the platform client the gateway uses.
type Platform interface {
	ListTicketProducts(ctx context.Context, centerID int64) ([]model.TicketProduct, error)
	GetTicketProduct(ctx context.Context, centerID, productID int64) (model.TicketProduct, error)
	CreateIssuance(ctx context.Context, centerID int64, req model.IssuanceRequest) error
	GetIssuanceDetail(ctx context.Context, centerID, issuanceID int64) (model.IssuanceDetail, error)
	UpdateIssuance(ctx context.Context, centerID int64, upd model.IssuanceUpdate) error
	ListMembers(ctx context.Context, centerID int64) ([]model.Member, error)
	GetLecture(ctx context.Context, centerID, lectureID int64) (model.Lecture, error)
	ListLectures(ctx context.Context, centerID int64, from, to time.Time) ([]model.Lecture, error)
	ListReservations(ctx context.Context, centerID int64, q platform.ReservationQuery) ([]model.Reservation, error)
	GetReservation(ctx context.Context, centerID, reservationID int64) (model.Reservation, error)
	CreateReservation(ctx context.Context, req model.ReservationRequest) error
	CancelReservation(ctx context.Context, centerID, reservationID int64) error
}

// Dialer returns a Platform authenticated with an operator's token.
type Dialer func(token string) Platform

// Journal records mutating calls.
type Journal interface {
	Begin(ctx context.Context, s *repository.Submission, payload any) error
	Finish(ctx context.Context, id int64, callErr error) error
	Get(ctx context.Context, id int64) (repository.Submission, error)
	ListRecent(ctx context.Context, centerID int64, limit int) ([]repository.Submission, error)
}

// Invalidator drops cached list responses of a center.
type Invalidator interface {
	InvalidateCenter(ctx context.Context, centerID int64) error
}

// Actor is the operator on whose behalf a call runs.
type Actor struct {
	OperatorID int64
	Token      string
	WizardID   string
}

// Workflow is the gateway's service layer.
type Workflow struct {
	dial      Dialer
	journal   Journal
	publisher Publisher
	cache     Invalidator
	logger    *slog.Logger
	loc       *time.Location
	now       func() time.Time
}

// Deps are the collaborators of a Workflow. Journal, Publisher and Cache
// may be nil.
type Deps struct {
	Dial      Dialer
	Journal   Journal
	Publisher Publisher
	Cache     Invalidator
	Logger    *slog.Logger
	Location  *time.Location
}

func NewWorkflow(d Deps) *Workflow {
	w := &Workflow{
		dial:      d.Dial,
		journal:   d.Journal,
		publisher: d.Publisher,
		cache:     d.Cache,
		logger:    d.Logger,
		loc:       d.Location,
		now:       time.Now,
	}
	if w.logger == nil {
		w.logger = slog.Default()
	}
	if w.loc == nil {
		w.loc = time.UTC
	}
	return w
}

// Location is the studio timezone.
func (w *Workflow) Location() *time.Location { return w.loc }

// submission describes one mutating call for run.
type submission struct {
	kind      repository.SubmissionKind
	centerID  int64
	subjectID int64
	payload   any
	call      func(ctx context.Context) error
	event     queue.AuditEvent
}

// background detaches follow-up work from a request context that may be
// cancelled as soon as the platform call returns.
func background(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
}

func (w *Workflow) run(ctx context.Context, a Actor, s submission) error {
	log := w.logger.With("kind", s.kind, "center_id", s.centerID, "operator_id", a.OperatorID)
	if a.WizardID != "" {
		log = log.With("wizard_id", a.WizardID)
	}

	entry := &repository.Submission{
		Kind:       s.kind,
		CenterID:   s.centerID,
		OperatorID: a.OperatorID,
		SubjectID:  s.subjectID,
		WizardID:   sql.NullString{String: a.WizardID, Valid: a.WizardID != ""},
	}
	journaled := false
	if w.journal != nil {
		if err := w.journal.Begin(ctx, entry, s.payload); err != nil {
			log.Warn("journal begin failed", "err", err)
		} else {
			journaled = true
		}
	}

	start := w.now()
	err := s.call(ctx)
	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.RecordSubmission(string(s.kind), status, time.Since(start).Seconds())

	bg, cancel := background(ctx)
	defer cancel()
	if journaled {
		if ferr := w.journal.Finish(bg, entry.ID, err); ferr != nil {
			log.Warn("journal finish failed", "err", ferr, "journal_id", entry.ID)
		}
	}
	if err != nil {
		log.Error("platform mutation failed", "err", err)
		return err
	}

	if w.cache != nil {
		if cerr := w.cache.InvalidateCenter(bg, s.centerID); cerr != nil {
			log.Warn("cache invalidation failed", "err", cerr)
		}
	}
	if w.publisher != nil {
		ev := s.event
		ev.CenterID = s.centerID
		ev.OperatorID = a.OperatorID
		ev.WizardID = a.WizardID
		ev.JournalID = entry.ID
		ev.SubjectID = s.subjectID
		ev.OccurredAt = w.now().UTC()
		if perr := w.publisher.Publish(bg, ev); perr != nil {
			log.Warn("audit publish failed", "err", perr, "action", ev.Action, "journal_id", entry.ID)
		}
	}
	log.Info("platform mutation succeeded", "journal_id", entry.ID)
	return nil
}

// IssuanceBackend binds an issuance wizard to the actor's platform session.
func (w *Workflow) IssuanceBackend(a Actor) *IssuanceBackend {
	return &IssuanceBackend{w: w, actor: a}
}

// IssuanceBackend implements wizard.IssuanceBackend.
type IssuanceBackend struct {
	w     *Workflow
	actor Actor
}

func (b *IssuanceBackend) CreateIssuance(ctx context.Context, centerID int64, req model.IssuanceRequest) error {
	p := b.w.dial(b.actor.Token)
	return b.w.run(ctx, b.actor, submission{
		kind:      repository.KindIssuance,
		centerID:  centerID,
		subjectID: req.MemberID,
		payload:   req,
		call:      func(ctx context.Context) error { return p.CreateIssuance(ctx, centerID, req) },
		event: queue.AuditEvent{
			Action:   queue.ActionTicketIssued,
			MemberID: req.MemberID,
			Amount:   req.TotalPayValue,
			Unpaid:   req.UnpaidValue,
		},
	})
}

// ReservationBackend binds a reservation wizard to the actor's session.
func (w *Workflow) ReservationBackend(a Actor) *ReservationBackend {
	return &ReservationBackend{w: w, actor: a}
}

// ReservationBackend implements wizard.ReservationBackend.
type ReservationBackend struct {
	w     *Workflow
	actor Actor
}

func (b *ReservationBackend) ListMembers(ctx context.Context, centerID int64) ([]model.Member, error) {
	return b.w.dial(b.actor.Token).ListMembers(ctx, centerID)
}

func (b *ReservationBackend) GetLecture(ctx context.Context, centerID, lectureID int64) (model.Lecture, error) {
	return b.w.dial(b.actor.Token).GetLecture(ctx, centerID, lectureID)
}

func (b *ReservationBackend) CreateReservation(ctx context.Context, req model.ReservationRequest) error {
	p := b.w.dial(b.actor.Token)
	return b.w.run(ctx, b.actor, submission{
		kind:      repository.KindReservation,
		centerID:  req.CenterID,
		subjectID: req.MemberID,
		payload:   req,
		call:      func(ctx context.Context) error { return p.CreateReservation(ctx, req) },
		event: queue.AuditEvent{
			Action:   queue.ActionReservationCreated,
			MemberID: req.MemberID,
			Free:     req.TicketIssuanceID == nil,
		},
	})
}

// CancelReservation cancels one reservation. It refuses reservations that
// are already in a cancellation state; whether the consumed ticket count is
// restored is left to the platform.
func (w *Workflow) CancelReservation(ctx context.Context, a Actor, centerID, reservationID int64) error {
	p := w.dial(a.Token)
	r, err := p.GetReservation(ctx, centerID, reservationID)
	if err != nil {
		return err
	}
	if !r.Cancellable() {
		return ErrAlreadyCancelled
	}
	return w.run(ctx, a, submission{
		kind:      repository.KindReservationCancel,
		centerID:  centerID,
		subjectID: reservationID,
		payload:   map[string]int64{"id": reservationID},
		call:      func(ctx context.Context) error { return p.CancelReservation(ctx, centerID, reservationID) },
		event: queue.AuditEvent{
			Action:   queue.ActionReservationCanceled,
			MemberID: r.MemberID,
		},
	})
}

// GetIssuanceDetail loads the issuance update form.
func (w *Workflow) GetIssuanceDetail(ctx context.Context, a Actor, centerID, issuanceID int64) (model.IssuanceDetail, error) {
	return w.dial(a.Token).GetIssuanceDetail(ctx, centerID, issuanceID)
}

// UpdateIssuance applies an operator's direct correction of an issued
// ticket.
func (w *Workflow) UpdateIssuance(ctx context.Context, a Actor, centerID int64, upd model.IssuanceUpdate) error {
	if err := validateUpdate(upd); err != nil {
		return err
	}
	p := w.dial(a.Token)
	return w.run(ctx, a, submission{
		kind:      repository.KindIssuanceUpdate,
		centerID:  centerID,
		subjectID: upd.ID,
		payload:   upd,
		call:      func(ctx context.Context) error { return p.UpdateIssuance(ctx, centerID, upd) },
		event:     queue.AuditEvent{Action: queue.ActionIssuanceUpdated},
	})
}

func validateUpdate(upd model.IssuanceUpdate) error {
	switch {
	case upd.ID <= 0:
		return fmt.Errorf("%w: missing issuance id", ErrInvalidUpdate)
	case upd.StartDate.Time().IsZero() || upd.ExpireDate.Time().IsZero():
		return fmt.Errorf("%w: start and expire dates are required", ErrInvalidUpdate)
	case upd.ExpireDate.Time().Before(upd.StartDate.Time()):
		return fmt.Errorf("%w: end date is before start date", ErrInvalidUpdate)
	case upd.RemainingCnt < 0:
		return fmt.Errorf("%w: remaining count must not be negative", ErrInvalidUpdate)
	case !upd.LimitType.Valid():
		return fmt.Errorf("%w: unknown limit type", ErrInvalidUpdate)
	case upd.LimitType != model.LimitNone && upd.LimitCnt < 1:
		return fmt.Errorf("%w: limit count must be at least 1", ErrInvalidUpdate)
	}
	return nil
}

// ActiveProducts lists the products an operator may issue.
func (w *Workflow) ActiveProducts(ctx context.Context, a Actor, centerID int64) ([]model.TicketProduct, error) {
	ps, err := w.dial(a.Token).ListTicketProducts(ctx, centerID)
	if err != nil {
		return nil, err
	}
	return filter.ActiveProducts(ps), nil
}

// Product loads one product for the issuance wizard.
func (w *Workflow) Product(ctx context.Context, a Actor, centerID, productID int64) (model.TicketProduct, error) {
	return w.dial(a.Token).GetTicketProduct(ctx, centerID, productID)
}

// MemberRow is a member list row with its derived aggregates.
type MemberRow struct {
	model.Member
	RemainingCnt  int `json:"remainingCnt"`
	RemainingDays int `json:"remainingDays"`
}

// Members returns the center's members filtered by c.
func (w *Workflow) Members(ctx context.Context, a Actor, centerID int64, c filter.MemberCriteria) ([]MemberRow, error) {
	ms, err := w.dial(a.Token).ListMembers(ctx, centerID)
	if err != nil {
		return nil, err
	}
	now := w.now().In(w.loc)
	kept := filter.Members(ms, c, now)
	out := make([]MemberRow, 0, len(kept))
	for _, m := range kept {
		out = append(out, MemberRow{Member: m, RemainingCnt: m.RemainingCnt(now), RemainingDays: m.RemainingDays(now)})
	}
	return out, nil
}

// Lectures lists the lectures of one studio day with live reservation
// counts merged in.
func (w *Workflow) Lectures(ctx context.Context, a Actor, centerID int64, day time.Time) ([]filter.LectureView, error) {
	day = day.In(w.loc)
	from, to := model.StartOfDay(day), model.EndOfDay(day)
	p := w.dial(a.Token)
	lectures, err := p.ListLectures(ctx, centerID, from, to)
	if err != nil {
		return nil, err
	}
	reservations, err := p.ListReservations(ctx, centerID, platform.ReservationQuery{From: from, To: to})
	if err != nil {
		return nil, err
	}
	return filter.MergeReservationCounts(lectures, reservations), nil
}

// Reservations lists one lecture's reservations.
func (w *Workflow) Reservations(ctx context.Context, a Actor, centerID, lectureID int64) ([]model.Reservation, error) {
	return w.dial(a.Token).ListReservations(ctx, centerID, platform.ReservationQuery{LectureID: lectureID})
}

// centerAccess asks the platform whether the operator may read centerID.
// Journal data is local, so it is served only after this check.
func (w *Workflow) centerAccess(ctx context.Context, a Actor, centerID int64) error {
	if _, err := w.dial(a.Token).ListTicketProducts(ctx, centerID); err != nil {
		return fmt.Errorf("%w: %w", ErrCenterAccess, err)
	}
	return nil
}

// Journal lists the most recent submissions of a center.
func (w *Workflow) Journal(ctx context.Context, a Actor, centerID int64, limit int) ([]repository.View, error) {
	if err := w.centerAccess(ctx, a, centerID); err != nil {
		return nil, err
	}
	if w.journal == nil {
		return []repository.View{}, nil
	}
	s, err := w.journal.ListRecent(ctx, centerID, limit)
	if err != nil {
		return nil, err
	}
	return repository.Views(s), nil
}

// JournalEntry loads one submission. Entries of other centers are reported
// as not found.
func (w *Workflow) JournalEntry(ctx context.Context, a Actor, centerID, id int64) (repository.View, error) {
	if err := w.centerAccess(ctx, a, centerID); err != nil {
		return repository.View{}, err
	}
	if w.journal == nil {
		return repository.View{}, repository.ErrNotFound
	}
	s, err := w.journal.Get(ctx, id)
	if err != nil {
		return repository.View{}, err
	}
	if s.CenterID != centerID {
		return repository.View{}, repository.ErrNotFound
	}
	return repository.Views([]repository.Submission{s})[0], nil
}
