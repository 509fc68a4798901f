// Package wizard implements the operator workflows that end in a single
// mutating platform call: ticket issuance and reservation assignment.
// Each wizard owns its state exclusively; at most one submission per
// wizard is in flight at any time.
package wizard

import (
	"errors"
	"time"
)

var (
	// ErrConfirmationRequired is returned by Issue when nothing was paid and
	// the operator has not confirmed a free issuance.
	ErrConfirmationRequired = errors.New("wizard: no payment entered, confirmation required")
	// ErrBusy is returned while a submission of the same wizard is in flight.
	ErrBusy = errors.New("wizard: submission already in flight")
	// ErrClosed is returned by every operation on a closed wizard.
	ErrClosed = errors.New("wizard: closed")
	// ErrSubmitFailed wraps the backend error of a failed submission.
	ErrSubmitFailed = errors.New("wizard: submission failed")
	// ErrNotFound and ErrForbidden are returned by the registry.
	ErrNotFound  = errors.New("wizard: not found")
	ErrForbidden = errors.New("wizard: owned by another operator")
)

// ValidationError is a local precondition failure. No request was sent and
// no state changed.
type ValidationError struct {
	Msg string
	Err error
}

func (e *ValidationError) Error() string { return e.Msg }

func (e *ValidationError) Unwrap() error { return e.Err }

func invalid(msg string) error { return &ValidationError{Msg: msg} }

func invalidErr(msg string, err error) error { return &ValidationError{Msg: msg, Err: err} }

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// Option configures a wizard.
type Option func(*options)

type options struct {
	now func() time.Time
	loc *time.Location
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithLocation sets the studio timezone used to compute "today".
func WithLocation(loc *time.Location) Option {
	return func(o *options) {
		if loc != nil {
			o.loc = loc
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now, loc: time.Local}
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

func (o options) today() time.Time { return o.now().In(o.loc) }
