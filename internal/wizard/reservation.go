package wizard

import (
	"context"
	"fmt"
	"sync"

	"github.com/iliyamo/wellness-admin/internal/filter"
	"github.com/iliyamo/wellness-admin/internal/model"
)

// ReservationBackend is the platform surface the reservation wizard needs.
type ReservationBackend interface {
	ListMembers(ctx context.Context, centerID int64) ([]model.Member, error)
	GetLecture(ctx context.Context, centerID, lectureID int64) (model.Lecture, error)
	CreateReservation(ctx context.Context, req model.ReservationRequest) error
}

// ReservationStep is SelectMember or Confirm.
type ReservationStep int

const (
	StepSelectMember ReservationStep = iota
	StepConfirm
)

func (s ReservationStep) String() string {
	switch s {
	case StepSelectMember:
		return "SELECT_MEMBER"
	case StepConfirm:
		return "CONFIRM"
	default:
		panic(fmt.Sprintf("wizard: unknown reservation step %d", int(s)))
	}
}

// TicketChoice is tri-state: nothing chosen yet, an explicit free
// reservation, or a specific issued ticket.
type TicketChoice struct {
	kind     choiceKind
	ticketID int64
}

type choiceKind int

const (
	choiceUnselected choiceKind = iota
	choiceFree
	choiceTicket
)

var (
	Unselected      = TicketChoice{}
	FreeReservation = TicketChoice{kind: choiceFree}
)

// Ticket is the choice of the issued ticket with the given id.
func Ticket(id int64) TicketChoice { return TicketChoice{kind: choiceTicket, ticketID: id} }

func (c TicketChoice) IsUnselected() bool { return c.kind == choiceUnselected }
func (c TicketChoice) IsFree() bool       { return c.kind == choiceFree }

// TicketID returns the chosen ticket, if any.
func (c TicketChoice) TicketID() (int64, bool) { return c.ticketID, c.kind == choiceTicket }

func (c TicketChoice) String() string {
	switch c.kind {
	case choiceUnselected:
		return "UNSELECTED"
	case choiceFree:
		return "FREE"
	case choiceTicket:
		return fmt.Sprintf("TICKET(%d)", c.ticketID)
	default:
		panic(fmt.Sprintf("wizard: unknown ticket choice %d", int(c.kind)))
	}
}

// ReservationWizard assigns one member to one lecture.
type ReservationWizard struct {
	centerID  int64
	lectureID int64
	backend   ReservationBackend
	opts      options

	mu       sync.Mutex
	step     ReservationStep
	memberID int64
	choice   TicketChoice
	members  []model.Member
	lecture  *model.Lecture
	busy     bool
	cancel   context.CancelFunc
	closed   bool
	reserved bool
}

// NewReservationWizard opens a wizard for lectureID at the member step.
func NewReservationWizard(centerID, lectureID int64, backend ReservationBackend, opts ...Option) *ReservationWizard {
	return &ReservationWizard{
		centerID:  centerID,
		lectureID: lectureID,
		backend:   backend,
		opts:      buildOptions(opts),
		step:      StepSelectMember,
	}
}

func (w *ReservationWizard) CenterID() int64  { return w.centerID }
func (w *ReservationWizard) LectureID() int64 { return w.lectureID }

// Members returns the center's member list, loading it on first use.
func (w *ReservationWizard) Members(ctx context.Context) ([]model.Member, error) {
	w.mu.Lock()
	if err := w.usable(); err != nil {
		w.mu.Unlock()
		return nil, err
	}
	if w.members != nil {
		ms := w.members
		w.mu.Unlock()
		return ms, nil
	}
	ctx = w.begin(ctx)
	w.mu.Unlock()

	ms, err := w.backend.ListMembers(ctx, w.centerID)

	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.end(); err != nil {
		return nil, err
	}
	if err != nil {
		return nil, err
	}
	if ms == nil {
		ms = []model.Member{}
	}
	w.members = ms
	return ms, nil
}

// FilterMembers is the member picker's search by name or mobile.
func (w *ReservationWizard) FilterMembers(ctx context.Context, search string) ([]model.Member, error) {
	ms, err := w.Members(ctx)
	if err != nil {
		return nil, err
	}
	return filter.SearchMembers(ms, search), nil
}

// SelectMember picks the member and resets the ticket choice.
func (w *ReservationWizard) SelectMember(memberID int64) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.usable(); err != nil {
		return err
	}
	if w.step != StepSelectMember {
		return invalid("member can only be changed on the member step")
	}
	if memberID <= 0 {
		return invalid("invalid member id")
	}
	w.memberID = memberID
	w.choice = Unselected
	return nil
}

// Back returns to member selection.
func (w *ReservationWizard) Back() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.usable(); err != nil {
		return err
	}
	w.step = StepSelectMember
	w.choice = Unselected
	return nil
}

// Advance moves from the member step to confirmation, or submits the
// reservation from the confirmation step.
func (w *ReservationWizard) Advance(ctx context.Context) error {
	w.mu.Lock()
	if err := w.usable(); err != nil {
		w.mu.Unlock()
		return err
	}
	if w.memberID == 0 {
		w.mu.Unlock()
		return invalid("select a member first")
	}
	step := w.step
	w.mu.Unlock()
	switch step {
	case StepSelectMember:
		return w.toConfirm(ctx)
	case StepConfirm:
		return w.submit(ctx)
	default:
		panic(fmt.Sprintf("wizard: unknown reservation step %d", int(step)))
	}
}

func (w *ReservationWizard) toConfirm(ctx context.Context) error {
	if _, err := w.Members(ctx); err != nil {
		return err
	}
	w.mu.Lock()
	if err := w.usable(); err != nil {
		w.mu.Unlock()
		return err
	}
	if _, ok := w.member(); !ok {
		w.mu.Unlock()
		return invalid("member not found in this center")
	}
	if w.lecture != nil {
		w.step = StepConfirm
		w.mu.Unlock()
		return nil
	}
	ctx = w.begin(ctx)
	w.mu.Unlock()

	l, err := w.backend.GetLecture(ctx, w.centerID, w.lectureID)

	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.end(); err != nil {
		return err
	}
	if err != nil {
		return err
	}
	w.lecture = &l
	w.step = StepConfirm
	return nil
}

func (w *ReservationWizard) submit(ctx context.Context) error {
	w.mu.Lock()
	if err := w.confirmStep(); err != nil {
		w.mu.Unlock()
		return err
	}
	if w.choice.IsUnselected() {
		w.mu.Unlock()
		return invalid("choose a ticket or a free reservation")
	}
	if w.lecture != nil && w.lecture.Full() {
		w.mu.Unlock()
		return invalid("lecture is full")
	}
	req := model.ReservationRequest{
		CenterID:  w.centerID,
		MemberID:  w.memberID,
		LectureID: w.lectureID,
	}
	if id, ok := w.choice.TicketID(); ok {
		req.TicketIssuanceID = &id
	}
	ctx = w.begin(ctx)
	w.mu.Unlock()

	err := w.backend.CreateReservation(ctx, req)

	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.end(); err != nil {
		return err
	}
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSubmitFailed, err)
	}
	w.reserved = true
	w.closed = true
	return nil
}

// ChooseFree marks the reservation as consuming no ticket.
func (w *ReservationWizard) ChooseFree() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.confirmStep(); err != nil {
		return err
	}
	w.choice = FreeReservation
	return nil
}

// ChooseTicket backs the reservation with one of the member's consumable
// tickets.
func (w *ReservationWizard) ChooseTicket(ticketID int64) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.confirmStep(); err != nil {
		return err
	}
	for _, t := range w.consumable() {
		if t.ID == ticketID {
			w.choice = Ticket(ticketID)
			return nil
		}
	}
	return invalid("ticket cannot be used for this lecture")
}

// ConsumableTickets lists the selected member's tickets usable for the
// lecture. Empty before the confirmation step.
func (w *ReservationWizard) ConsumableTickets() []model.IssuedTicket {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.step != StepConfirm {
		return []model.IssuedTicket{}
	}
	return w.consumable()
}

func (w *ReservationWizard) consumable() []model.IssuedTicket {
	m, ok := w.member()
	if !ok {
		return []model.IssuedTicket{}
	}
	at := w.opts.now()
	if w.lecture != nil && !w.lecture.StartDate.IsZero() {
		at = w.lecture.StartDate
	}
	return m.ConsumableTickets(at.In(w.opts.loc))
}

func (w *ReservationWizard) member() (model.Member, bool) {
	for _, m := range w.members {
		if m.ID == w.memberID {
			return m, true
		}
	}
	return model.Member{}, false
}

func (w *ReservationWizard) confirmStep() error {
	if err := w.usable(); err != nil {
		return err
	}
	if w.step != StepConfirm {
		return invalid("advance to the confirmation step first")
	}
	return nil
}

// begin marks the wizard busy and derives a cancellable context. Callers
// hold mu.
func (w *ReservationWizard) begin(ctx context.Context) context.Context {
	ctx, cancel := context.WithCancel(ctx)
	w.busy = true
	w.cancel = cancel
	return ctx
}

// end clears the busy mark. Callers hold mu. A wizard closed while the
// call was in flight reports ErrClosed so the late result is dropped.
func (w *ReservationWizard) end() error {
	if w.cancel != nil {
		w.cancel()
	}
	w.busy = false
	w.cancel = nil
	if w.closed {
		return ErrClosed
	}
	return nil
}

// Close cancels any in-flight call and discards its late result.
func (w *ReservationWizard) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	if w.cancel != nil {
		w.cancel()
	}
}

// Closed reports whether the wizard was closed or completed.
func (w *ReservationWizard) Closed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closed
}

func (w *ReservationWizard) usable() error {
	if w.closed {
		return ErrClosed
	}
	if w.busy {
		return ErrBusy
	}
	return nil
}

// ReservationView is a read-only snapshot for rendering.
type ReservationView struct {
	Step              string               `json:"step"`
	CenterID          int64                `json:"center_id"`
	LectureID         int64                `json:"lecture_id"`
	MemberID          int64                `json:"member_id,omitempty"`
	Lecture           *model.Lecture       `json:"lecture,omitempty"`
	Choice            string               `json:"ticket_choice"`
	ConsumableTickets []model.IssuedTicket `json:"consumable_tickets"`
	Busy              bool                 `json:"busy"`
	Reserved          bool                 `json:"reserved"`
	Closed            bool                 `json:"closed"`
}

// View snapshots the wizard.
func (w *ReservationWizard) View() ReservationView {
	w.mu.Lock()
	defer w.mu.Unlock()
	v := ReservationView{
		Step:              w.step.String(),
		CenterID:          w.centerID,
		LectureID:         w.lectureID,
		MemberID:          w.memberID,
		Choice:            w.choice.String(),
		ConsumableTickets: []model.IssuedTicket{},
		Busy:              w.busy,
		Reserved:          w.reserved,
		Closed:            w.closed,
	}
	if w.lecture != nil {
		l := *w.lecture
		v.Lecture = &l
	}
	if w.step == StepConfirm {
		v.ConsumableTickets = w.consumable()
	}
	return v
}
