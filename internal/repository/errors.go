// Package repository persists the gateway's own records. The platform owns
// members, tickets and reservations; this package only keeps the
// submission journal that records every mutating call the gateway makes.
package repository

import "errors"

// ErrNotFound is returned when a journal entry does not exist. Handlers
// translate it into an HTTP 404 response.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when an entry is no longer pending, for example
// a late Finish on an entry the stale sweep already abandoned. Callers log
// it; the platform call itself has already happened.
var ErrConflict = errors.New("conflict")
