// Package filter applies the list views' client-side predicates to arrays
// already returned by the platform. Every function preserves the source
// order and never mutates its input.
package filter

import (
	"strings"
	"time"

	"github.com/iliyamo/wellness-admin/internal/model"
)

// Predicate reports whether x is kept.
type Predicate[T any] func(x T) bool

// Apply keeps the elements of source satisfying every predicate.
func Apply[T any](source []T, preds ...Predicate[T]) []T {
	out := make([]T, 0, len(source))
	for _, x := range source {
		if all(x, preds) {
			out = append(out, x)
		}
	}
	return out
}

func all[T any](x T, preds []Predicate[T]) bool {
	for _, p := range preds {
		if !p(x) {
			return false
		}
	}
	return true
}

// MatchText is a case-insensitive substring match of search against any of
// fields. An empty search matches everything.
func MatchText(search string, fields ...string) bool {
	q := strings.ToLower(strings.TrimSpace(search))
	if q == "" {
		return true
	}
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), q) {
			return true
		}
	}
	return false
}

// DateRange is an inclusive day range: From is truncated to the start of its
// day and To extended to the last millisecond of its day. A nil end is open.
type DateRange struct {
	From *time.Time
	To   *time.Time
}

// Contains reports whether t falls inside the range. Bounds are evaluated
// in the bounds' own location.
func (r DateRange) Contains(t time.Time) bool {
	if r.From != nil && t.Before(model.StartOfDay(*r.From)) {
		return false
	}
	if r.To != nil && t.After(model.EndOfDay(*r.To)) {
		return false
	}
	return true
}

// IntRange is an inclusive optional numeric range.
type IntRange struct {
	Min *int
	Max *int
}

// Contains reports whether n is inside the range.
func (r IntRange) Contains(n int) bool {
	if r.Min != nil && n < *r.Min {
		return false
	}
	if r.Max != nil && n > *r.Max {
		return false
	}
	return true
}
